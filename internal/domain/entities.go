// Package domain defines the core business entities and interfaces for build-prep.
package domain

import (
	"fmt"
	"maps"
	"strings"
)

// Canonical production coordinates. Exactly one (organization, branch)
// combination maps to the shared production track.
const (
	CanonicalOrganization = "Numenta"
	CanonicalRepository   = "numenta-apps"
	CanonicalRemoteURL    = "git@github.com:" + CanonicalOrganization + "/" + CanonicalRepository + ".git"
	CanonicalBranch       = "master"
)

// Deploy track naming.
const (
	ProductionTrack     = "production-track"
	nonProductionSuffix = "-nonproduction"

	// UnknownAccount is used when no account segment can be found in a remote.
	UnknownAccount = "unknown"
)

// WorkingCopyDirName is the directory under the build workspace holding the checkout.
const WorkingCopyDirName = "products"

// Environment variable names shared with the build executor.
const (
	EnvBuildWorkspace = "BUILD_WORKSPACE"
	EnvRepositoryHome = "REPOSITORY_HOME"
	EnvTargetRevision = "BUILD_TARGET_REVISION"
	EnvReleaseVersion = "BUILD_RELEASE_VERSION"
	EnvRemoteURL      = "BUILD_REMOTE_URL"
	EnvBranch         = "BUILD_BRANCH"
)

// NonProductionTrack returns the per-account track name for builds that are
// not on the canonical remote and branch.
func NonProductionTrack(account string) string {
	return account + nonProductionSuffix
}

// ConfigSource identifies which input channel supplied the pipeline parameters.
type ConfigSource int

const (
	// SourceDefault means nothing but built-in defaults (and the workspace env override) applied.
	SourceDefault ConfigSource = iota
	// SourceManifestFile means parameters were read from a JSON manifest file.
	SourceManifestFile
	// SourceDirectOverride means parameters were supplied as flags.
	SourceDirectOverride
)

// sourcePrecedence orders the sources; a higher value wins.
var sourcePrecedence = map[ConfigSource]int{
	SourceDefault:        0,
	SourceManifestFile:   1,
	SourceDirectOverride: 2,
}

// Precedence returns the rank of the source. Higher ranks override lower ones.
func (s ConfigSource) Precedence() int {
	return sourcePrecedence[s]
}

// String implements fmt.Stringer.
func (s ConfigSource) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceManifestFile:
		return "manifest-file"
	case SourceDirectOverride:
		return "direct-override"
	default:
		return fmt.Sprintf("ConfigSource(%d)", int(s))
	}
}

// PipelineConfig is the authoritative record for one build.
// It is treated as immutable once resolved; use PinRevision to obtain a copy
// with the target revision fixed.
type PipelineConfig struct {
	// BuildWorkspace is the absolute path builds happen under.
	BuildWorkspace string

	// RemoteURL is the source-control remote, e.g. git@github.com:org/repo.git.
	RemoteURL string

	// Branch is the branch to build when no explicit revision is given.
	Branch string

	// TargetRevision is the commit to build. Empty means "tip of Branch".
	TargetRevision string

	// ReleaseVersion is the base version handed to the build executor.
	ReleaseVersion string

	// ExtraParams holds every non-reserved parameter, passed through verbatim.
	ExtraParams map[string]any

	// ManifestPath is where parameters were read from and where the final
	// manifest is written. Empty means the manifest is only returned.
	ManifestPath string

	// LogLevel is the requested logging level.
	LogLevel string

	// Source records which channel supplied the parameters.
	Source ConfigSource
}

// PinRevision returns a copy of the config with TargetRevision set to rev.
// A revision that was already fixed cannot be moved to a different commit
// during a run.
func (c *PipelineConfig) PinRevision(rev string) (*PipelineConfig, error) {
	if rev == "" {
		return nil, fmt.Errorf("%w: empty revision", ErrRevisionPinned)
	}
	if c.TargetRevision != "" && !SameRevision(c.TargetRevision, rev) {
		return nil, fmt.Errorf("%w: %s is already fixed, refusing %s", ErrRevisionPinned, c.TargetRevision, rev)
	}

	pinned := *c
	pinned.TargetRevision = rev
	pinned.ExtraParams = maps.Clone(c.ExtraParams)
	return &pinned, nil
}

// SameRevision reports whether a and b name the same commit, allowing one of
// them to be an abbreviated hash of the other.
func SameRevision(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	if len(a) < 7 || len(b) < 7 {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return b[:len(a)] == a
}

// Environment is the variable mapping used for process and filesystem placement.
type Environment map[string]string

// RepositoryHome returns the working-copy path recorded in the environment.
func (e Environment) RepositoryHome() string {
	return e[EnvRepositoryHome]
}

// RepositoryState is the synchronizer's transient view of one working copy.
type RepositoryState struct {
	WorkingCopyPath string
	CurrentRevision string
	IsFreshClone    bool
}

// ResolvedRevision is the outcome of a successful synchronization.
type ResolvedRevision struct {
	// Revision is the full commit hash the working copy was reset to.
	Revision string

	// WorkingCopyPath is where the working copy lives.
	WorkingCopyPath string

	// FreshClone is true when the working copy had to be cloned.
	FreshClone bool

	// ResolvedFromBranch is true when Revision was the queried tip of the branch.
	ResolvedFromBranch bool
}

// Classification is the deploy track derived from a remote and branch.
type Classification struct {
	DeployTrack   string
	UserNamespace string
	AMIName       string
}

// BuildManifest is the record of a completed run consumed by downstream stages.
type BuildManifest struct {
	TargetRevision string
	RepositoryHome string
	DeployTrack    string
	UserNamespace  string
	AMIName        string

	// CorrelationID is the routing slip matched to TargetRevision, if looked up.
	CorrelationID string

	// Config is the pinned configuration the manifest was produced from.
	Config *PipelineConfig
}

// Slip represents a routing slip found in the store.
type Slip struct {
	// CorrelationID is the unique identifier for the slip.
	CorrelationID string
}

// Credentials are HTTP basic credentials for private remotes.
// The zero value means anonymous access or ambient SSH agent auth.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// IsZero reports whether no credentials were configured.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}
