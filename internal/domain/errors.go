package domain

import (
	"errors"
	"strings"
)

// Configuration errors.
var (
	// ErrAmbiguousConfigSource indicates a manifest file was combined with other overrides.
	ErrAmbiguousConfigSource = errors.New("ambiguous configuration source")

	// ErrMissingBuildWorkspace indicates no channel supplied a build workspace.
	ErrMissingBuildWorkspace = errors.New("missing build workspace")

	// ErrInvalidManifest indicates the manifest file is not a JSON object.
	ErrInvalidManifest = errors.New("unparsable manifest file")

	// ErrManifestNotFound indicates the manifest file does not exist.
	ErrManifestNotFound = errors.New("manifest file not found")
)

// Synchronization errors.
var (
	// ErrCloneFailed indicates the working copy could not be cloned.
	ErrCloneFailed = errors.New("clone failed")

	// ErrBranchNotFound indicates the remote has no branch with the requested name.
	ErrBranchNotFound = errors.New("remote branch not found")

	// ErrRemoteQueryFailed indicates the remote could not be listed.
	ErrRemoteQueryFailed = errors.New("remote query failed")

	// ErrResetFailed indicates the hard reset did not complete.
	ErrResetFailed = errors.New("hard reset failed")

	// ErrRevisionMismatch indicates HEAD did not land on the resolved revision.
	ErrRevisionMismatch = errors.New("working copy HEAD does not match target revision")
)

// Run errors.
var (
	// ErrRevisionPinned indicates an attempt to move an already fixed target revision.
	ErrRevisionPinned = errors.New("target revision is already fixed for this run")

	// ErrBuildFailed indicates the build executor reported failure.
	ErrBuildFailed = errors.New("build failed")

	// ErrInvalidRemoteURL indicates the remote URL could not be parsed to extract owner/repo.
	ErrInvalidRemoteURL = errors.New("could not parse repository name from remote URL")
)

// ConfigError reports malformed or contradictory input configuration.
// It is raised before any filesystem or network side effect.
type ConfigError struct {
	// Detail adds context such as the offending key or path.
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	b := new(strings.Builder)
	b.WriteString("configuration error: ")
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps a configuration sentinel with detail.
func NewConfigError(err error, detail string) *ConfigError {
	return &ConfigError{Err: err, Detail: detail}
}

// SyncOp names the source-control operation that failed.
type SyncOp string

const (
	OpClone         SyncOp = "clone"
	OpResolveBranch SyncOp = "resolve-branch"
	OpReset         SyncOp = "reset"
	OpInspect       SyncOp = "inspect"
)

// SyncError reports a failed source-control operation. Err carries the
// underlying diagnostic. The working copy is left as the failing operation
// left it.
type SyncError struct {
	Op   SyncOp
	Path string
	Err  error
}

func (e *SyncError) Error() string {
	b := new(strings.Builder)
	b.WriteString("sync ")
	b.WriteString(string(e.Op))
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsSyncError reports whether err is, or wraps, a SyncError.
func IsSyncError(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}
