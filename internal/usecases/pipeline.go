// Package usecases contains the application business logic.
// This package orchestrates domain entities and interfaces to fulfill use cases.
package usecases

import (
	"context"
	"fmt"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
)

// Logger defines the logging interface required by the use cases.
// This abstracts the logger dependency to avoid coupling to a specific implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// PipelineDeps are the collaborators of a BuildPipeline.
type PipelineDeps struct {
	Preparer     domain.EnvironmentPreparer
	Synchronizer domain.Synchronizer
	Executor     domain.BuildExecutor
	Classifier   domain.Classifier
	Writer       domain.ManifestWriter

	// Finder is optional. When set, the routing slip for the built revision
	// is looked up and recorded in the manifest.
	Finder domain.SlipFinder

	Logger Logger
}

// BuildPipeline runs one build: synchronize, build, classify, emit manifest.
// Steps run strictly in sequence. Any failure aborts the run before a
// manifest is written.
type BuildPipeline struct {
	deps PipelineDeps
}

// NewBuildPipeline creates a BuildPipeline.
func NewBuildPipeline(deps PipelineDeps) *BuildPipeline {
	return &BuildPipeline{deps: deps}
}

// Run executes the pipeline for a resolved configuration and returns the
// manifest. The manifest is written to cfg.ManifestPath when one is set.
// Errors are logged and returned unchanged.
func (p *BuildPipeline) Run(ctx context.Context, cfg *domain.PipelineConfig) (*domain.BuildManifest, error) {
	log := p.deps.Logger

	env, err := p.deps.Preparer.Prepare(cfg.BuildWorkspace)
	if err != nil {
		log.Error(ctx, "failed to prepare build environment", err, map[string]interface{}{
			"build_workspace": cfg.BuildWorkspace,
		})
		return nil, err
	}
	p.logEnvironment(ctx, env)

	resolved, err := p.deps.Synchronizer.Synchronize(ctx, cfg, env)
	if err != nil {
		log.Error(ctx, "failed to synchronize working copy", err, map[string]interface{}{
			"remote":          cfg.RemoteURL,
			"branch":          cfg.Branch,
			"target_revision": cfg.TargetRevision,
			"repository_home": env.RepositoryHome(),
		})
		return nil, err
	}

	pinned := cfg
	if cfg.TargetRevision == "" {
		pinned, err = cfg.PinRevision(resolved.Revision)
		if err != nil {
			log.Error(ctx, "failed to fix target revision", err, nil)
			return nil, err
		}
	}

	if err := p.deps.Executor.Build(ctx, env, pinned); err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrBuildFailed, err)
		log.Error(ctx, "build step failed", err, map[string]interface{}{
			"revision": resolved.Revision,
		})
		return nil, err
	}
	log.Debug(ctx, "build completed", map[string]interface{}{
		"revision": resolved.Revision,
	})

	class := p.deps.Classifier.Classify(pinned.RemoteURL, pinned.Branch)

	manifest := &domain.BuildManifest{
		TargetRevision: resolved.Revision,
		RepositoryHome: resolved.WorkingCopyPath,
		DeployTrack:    class.DeployTrack,
		UserNamespace:  class.UserNamespace,
		AMIName:        class.AMIName,
		Config:         pinned,
	}

	if p.deps.Finder != nil {
		correlationID, err := p.lookupSlip(ctx, pinned.RemoteURL, resolved.Revision)
		if err != nil {
			log.Error(ctx, "failed to look up routing slip", err, map[string]interface{}{
				"revision": resolved.Revision,
			})
			return nil, err
		}
		manifest.CorrelationID = correlationID
	}

	if pinned.ManifestPath != "" {
		if err := p.deps.Writer.WriteManifest(pinned.ManifestPath, manifest); err != nil {
			log.Error(ctx, "failed to write manifest", err, map[string]interface{}{
				"manifest_path": pinned.ManifestPath,
			})
			return nil, err
		}
	}

	log.Info(ctx, "build pipeline complete", map[string]interface{}{
		"target_revision": manifest.TargetRevision,
		"repository_home": manifest.RepositoryHome,
		"deploy_track":    manifest.DeployTrack,
		"user_namespace":  manifest.UserNamespace,
		"ami_name":        manifest.AMIName,
		"manifest_path":   pinned.ManifestPath,
	})

	return manifest, nil
}

// lookupSlip returns the correlation ID of the slip recorded for revision, or
// "" when none exists.
func (p *BuildPipeline) lookupSlip(ctx context.Context, remoteURL, revision string) (string, error) {
	remote, err := domain.ParseRemote(remoteURL)
	if err != nil {
		p.deps.Logger.Warn(ctx, "skipping slip lookup for unrecognized remote", map[string]interface{}{
			"remote": remoteURL,
		})
		return "", nil
	}

	slip, matched, err := p.deps.Finder.FindByCommits(ctx, remote.FullName(), []string{revision})
	if err != nil {
		return "", fmt.Errorf("failed to find slip by commit: %w", err)
	}
	if slip == nil {
		p.deps.Logger.Warn(ctx, "no slip recorded for revision", map[string]interface{}{
			"repository": remote.FullName(),
			"revision":   revision,
		})
		return "", nil
	}

	p.deps.Logger.Debug(ctx, "slip found", map[string]interface{}{
		"correlation_id": slip.CorrelationID,
		"matched_commit": matched,
	})
	return slip.CorrelationID, nil
}

// logEnvironment prints the build-specific part of the environment at debug
// level. The inherited process environment is left out since it may hold secrets.
func (p *BuildPipeline) logEnvironment(ctx context.Context, env domain.Environment) {
	fields := make(map[string]interface{})
	for _, k := range []string{domain.EnvBuildWorkspace, domain.EnvRepositoryHome} {
		if v, ok := env[k]; ok {
			fields[k] = v
		}
	}
	p.deps.Logger.Debug(ctx, "build environment", fields)
}
