// Package git provides adapters for interacting with Git repositories.
// This package implements the domain.SourceControl interface using go-git/v5.
package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
)

// RemoteName is the name given to the remote a working copy is cloned from.
const RemoteName = "origin"

// fetchRefSpecs fetch every branch and tag so any reachable revision can be reset to.
var fetchRefSpecs = []config.RefSpec{
	"+refs/heads/*:refs/remotes/origin/*",
	"+refs/tags/*:refs/tags/*",
}

// Logger defines the logging interface for the git adapter.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// GoGitSourceControl implements domain.SourceControl using go-git/v5.
type GoGitSourceControl struct {
	credentials domain.Credentials
	progress    io.Writer
	logger      Logger
}

var _ domain.SourceControl = (*GoGitSourceControl)(nil)

// NewGoGitSourceControl creates a GoGitSourceControl. The zero Credentials
// value means anonymous HTTP access and SSH agent auth for SSH remotes.
func NewGoGitSourceControl(creds domain.Credentials, log Logger) *GoGitSourceControl {
	return &GoGitSourceControl{
		credentials: creds,
		progress:    io.Discard,
		logger:      log,
	}
}

// WithProgress returns a copy that streams transfer progress to w.
func (s *GoGitSourceControl) WithProgress(w io.Writer) *GoGitSourceControl {
	cp := *s
	cp.progress = w
	return &cp
}

// Clone clones remoteURL into path with all branches.
func (s *GoGitSourceControl) Clone(ctx context.Context, remoteURL, path string) error {
	s.logger.Debug(ctx, "cloning repository", map[string]interface{}{
		"remote": remoteURL,
		"path":   path,
	})

	_, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:        remoteURL,
		RemoteName: RemoteName,
		Auth:       s.auth(remoteURL),
		Progress:   s.progress,
		Tags:       git.AllTags,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrCloneFailed, remoteURL, err)
	}
	return nil
}

// ResolveBranchTip lists the remote's refs, like `git ls-remote`, and returns
// the commit at refs/heads/<branch>.
func (s *GoGitSourceControl) ResolveBranchTip(ctx context.Context, remoteURL, branch string) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: RemoteName,
		URLs: []string{remoteURL},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: s.auth(remoteURL)})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return "", fmt.Errorf("%w: %s has no branches", domain.ErrBranchNotFound, remoteURL)
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrRemoteQueryFailed, remoteURL, err)
	}

	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want && ref.Type() == plumbing.HashReference {
			s.logger.Debug(ctx, "resolved branch tip", map[string]interface{}{
				"remote": remoteURL,
				"branch": branch,
				"sha":    ref.Hash().String(),
			})
			return ref.Hash().String(), nil
		}
	}

	return "", fmt.Errorf("%w: %s on %s", domain.ErrBranchNotFound, branch, remoteURL)
}

// ResetToRevision hard-resets the working copy at path to revision.
// When the revision is not present locally it is fetched from remoteURL first.
func (s *GoGitSourceControl) ResetToRevision(ctx context.Context, path, remoteURL, revision string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", domain.ErrResetFailed, path, err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		s.logger.Debug(ctx, "revision not present locally, fetching", map[string]interface{}{
			"revision": revision,
			"remote":   remoteURL,
		})
		if err := s.fetch(ctx, repo, remoteURL); err != nil {
			return "", err
		}
		hash, err = repo.ResolveRevision(plumbing.Revision(revision))
		if err != nil {
			return "", fmt.Errorf("%w: unknown revision %s: %w", domain.ErrResetFailed, revision, err)
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrResetFailed, err)
	}
	if err := worktree.Reset(&git.ResetOptions{Commit: *hash, Mode: git.HardReset}); err != nil {
		return "", fmt.Errorf("%w: reset to %s: %w", domain.ErrResetFailed, hash, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("%w: failed to get HEAD: %w", domain.ErrResetFailed, err)
	}

	s.logger.Debug(ctx, "working copy reset", map[string]interface{}{
		"path":     path,
		"revision": revision,
		"head_sha": head.Hash().String(),
	})

	return head.Hash().String(), nil
}

func (s *GoGitSourceControl) fetch(ctx context.Context, repo *git.Repository, remoteURL string) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: RemoteName,
		RemoteURL:  remoteURL,
		RefSpecs:   fetchRefSpecs,
		Auth:       s.auth(remoteURL),
		Progress:   s.progress,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("%w: fetch %s: %w", domain.ErrResetFailed, remoteURL, err)
	}
	return nil
}

// auth returns basic auth for HTTP remotes when credentials are configured.
// SSH remotes fall back to go-git's default agent auth.
func (s *GoGitSourceControl) auth(remoteURL string) transport.AuthMethod {
	if s.credentials.IsZero() || !isHTTPRemote(remoteURL) {
		return nil
	}
	return &http.BasicAuth{
		Username: s.credentials.Username,
		Password: s.credentials.Password,
	}
}

func isHTTPRemote(remoteURL string) bool {
	u := strings.ToLower(strings.TrimSpace(remoteURL))
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
}
