// Package domain defines the core business entities and interfaces for build-prep.
// This package contains no external dependencies and represents the innermost layer
// of the CLEAN architecture.
package domain

import (
	"context"
)

//go:generate mockgen -destination=mocks/mock_source_control.go -package=mocks . SourceControl

// SourceControl is the capability set the synchronizer needs from a version
// control system. Implementations must not retry on failure.
type SourceControl interface {
	// Clone clones remoteURL into path. The path must not exist yet.
	Clone(ctx context.Context, remoteURL, path string) error

	// ResolveBranchTip asks the remote for the commit at the tip of branch.
	// Returns ErrBranchNotFound if the remote has no such branch.
	ResolveBranchTip(ctx context.Context, remoteURL, branch string) (string, error)

	// ResetToRevision hard-resets the working copy at path to revision,
	// discarding local modifications, and returns the resulting HEAD hash.
	// Objects missing locally are fetched from remoteURL first.
	ResetToRevision(ctx context.Context, path, remoteURL, revision string) (string, error)
}

// EnvironmentPreparer builds the environment mapping for a workspace root.
type EnvironmentPreparer interface {
	// Prepare returns the environment for builds rooted at workspace.
	// The result must contain EnvRepositoryHome.
	Prepare(workspace string) (Environment, error)
}

// BuildExecutor performs the actual compile/package step.
type BuildExecutor interface {
	// Build runs once per pipeline, after synchronization.
	Build(ctx context.Context, env Environment, cfg *PipelineConfig) error
}

// ManifestWriter persists the final manifest.
type ManifestWriter interface {
	// WriteManifest writes m to path. Either the whole manifest is written or nothing is.
	WriteManifest(path string, m *BuildManifest) error
}

// SlipFinder queries the slip store to find slips by commit.
type SlipFinder interface {
	// FindByCommits searches for a slip matching any of the given commits.
	// Returns (nil, "", nil) if no matching slip is found.
	FindByCommits(ctx context.Context, repository string, commits []string) (*Slip, string, error)

	// Close releases any resources held by the finder.
	Close() error
}

// Synchronizer brings a working copy to the configured revision.
type Synchronizer interface {
	Synchronize(ctx context.Context, cfg *PipelineConfig, env Environment) (*ResolvedRevision, error)
}

// Classifier derives the deploy track for a remote and branch.
type Classifier interface {
	Classify(remoteURL, branch string) Classification
}

// Pipeline runs one build end to end.
type Pipeline interface {
	Run(ctx context.Context, cfg *PipelineConfig) (*BuildManifest, error)
}
