// Package store provides adapters for slip storage backends.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/slippy"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
)

// ClickHouseAdapter wraps goLibMyCarrier's SlipStore to implement domain.SlipFinder.
// The pipeline uses it to attach the routing slip of the built revision to the manifest.
type ClickHouseAdapter struct {
	store slippy.SlipStore
}

var _ domain.SlipFinder = (*ClickHouseAdapter)(nil)

// NewClickHouseAdapter creates a new adapter wrapping the given SlipStore.
func NewClickHouseAdapter(store slippy.SlipStore) *ClickHouseAdapter {
	return &ClickHouseAdapter{
		store: store,
	}
}

// FindByCommits searches for a slip matching any of the given commits.
// Slips are recorded against lowercase commit hashes, so the commits are
// normalized and deduplicated before the query.
// Returns (nil, "", nil) if no matching slip is found.
func (a *ClickHouseAdapter) FindByCommits(
	ctx context.Context,
	repository string,
	commits []string,
) (*domain.Slip, string, error) {
	commits = normalizeCommits(commits)
	if len(commits) == 0 {
		return nil, "", nil
	}

	slip, matchedCommit, err := a.store.FindByCommits(ctx, repository, commits)
	if err != nil {
		return nil, "", fmt.Errorf("slip store query for %s: %w", repository, err)
	}

	if slip == nil {
		return nil, "", nil
	}

	return &domain.Slip{
		CorrelationID: slip.CorrelationID,
	}, matchedCommit, nil
}

// Close releases any resources held by the store.
func (a *ClickHouseAdapter) Close() error {
	return a.store.Close()
}

// normalizeCommits lowercases and trims commits, dropping blanks and duplicates
// while keeping the caller's order.
func normalizeCommits(commits []string) []string {
	seen := make(map[string]struct{}, len(commits))
	out := make([]string, 0, len(commits))
	for _, c := range commits {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
