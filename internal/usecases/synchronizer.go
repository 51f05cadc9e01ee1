package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
)

// RepositorySynchronizer brings a working copy to the configured revision.
//
// It separates "does a working copy exist" from "is it at the right
// revision": an existing working copy is reused without cloning, and the
// revision is always applied with a hard reset so the tree only depends on
// the revision identifier.
type RepositorySynchronizer struct {
	scm    domain.SourceControl
	fs     afero.Fs
	logger Logger
}

// NewRepositorySynchronizer creates a RepositorySynchronizer.
func NewRepositorySynchronizer(scm domain.SourceControl, fs afero.Fs, log Logger) *RepositorySynchronizer {
	return &RepositorySynchronizer{
		scm:    scm,
		fs:     fs,
		logger: log,
	}
}

// Synchronize ensures the working copy named by env exists and sits at the
// target revision. When cfg has no TargetRevision the remote tip of
// cfg.Branch is resolved once and used. Any source-control failure is
// returned as a *domain.SyncError and is not retried.
func (s *RepositorySynchronizer) Synchronize(
	ctx context.Context,
	cfg *domain.PipelineConfig,
	env domain.Environment,
) (*domain.ResolvedRevision, error) {
	state, err := s.inspect(env)
	if err != nil {
		return nil, err
	}

	if !state.exists {
		s.logger.Info(ctx, "working copy absent, cloning", map[string]interface{}{
			"remote": cfg.RemoteURL,
			"path":   state.WorkingCopyPath,
		})
		if err := s.scm.Clone(ctx, cfg.RemoteURL, state.WorkingCopyPath); err != nil {
			return nil, &domain.SyncError{Op: domain.OpClone, Path: state.WorkingCopyPath, Err: err}
		}
		state.IsFreshClone = true
	}

	target := cfg.TargetRevision
	fromBranch := false
	if target == "" {
		target, err = s.scm.ResolveBranchTip(ctx, cfg.RemoteURL, cfg.Branch)
		if err != nil {
			return nil, &domain.SyncError{Op: domain.OpResolveBranch, Path: state.WorkingCopyPath, Err: err}
		}
		fromBranch = true
	}

	s.logger.Debug(ctx, "resetting working copy", map[string]interface{}{
		"path":        state.WorkingCopyPath,
		"revision":    target,
		"from_branch": fromBranch,
	})

	head, err := s.scm.ResetToRevision(ctx, state.WorkingCopyPath, cfg.RemoteURL, target)
	if err != nil {
		return nil, &domain.SyncError{Op: domain.OpReset, Path: state.WorkingCopyPath, Err: err}
	}
	if (fromBranch || isCommitHash(target)) && !domain.SameRevision(head, target) {
		return nil, &domain.SyncError{
			Op:   domain.OpReset,
			Path: state.WorkingCopyPath,
			Err:  fmt.Errorf("%w: HEAD %s, target %s", domain.ErrRevisionMismatch, head, target),
		}
	}
	state.CurrentRevision = head

	s.logger.Info(ctx, "working copy synchronized", map[string]interface{}{
		"path":        state.WorkingCopyPath,
		"revision":    state.CurrentRevision,
		"fresh_clone": state.IsFreshClone,
	})

	return &domain.ResolvedRevision{
		Revision:           state.CurrentRevision,
		WorkingCopyPath:    state.WorkingCopyPath,
		FreshClone:         state.IsFreshClone,
		ResolvedFromBranch: fromBranch,
	}, nil
}

// workingCopy is the synchronizer's view of the working copy for one call.
type workingCopy struct {
	domain.RepositoryState
	exists bool
}

func (s *RepositorySynchronizer) inspect(env domain.Environment) (*workingCopy, error) {
	path := env.RepositoryHome()
	if path == "" {
		return nil, &domain.SyncError{
			Op:  domain.OpInspect,
			Err: fmt.Errorf("environment has no %s", domain.EnvRepositoryHome),
		}
	}

	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return nil, &domain.SyncError{Op: domain.OpInspect, Path: path, Err: err}
	}

	return &workingCopy{
		RepositoryState: domain.RepositoryState{WorkingCopyPath: path},
		exists:          exists,
	}, nil
}

// isCommitHash reports whether rev looks like a full or abbreviated SHA-1.
func isCommitHash(rev string) bool {
	if len(rev) < 7 || len(rev) > 40 {
		return false
	}
	for _, c := range rev {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
