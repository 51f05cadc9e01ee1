package usecases

import (
	"strings"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
)

// TrackClassifier maps a remote and branch onto a deploy track.
// Only the canonical organization's canonical branch is production; every
// other build gets a track named after the account it came from.
type TrackClassifier struct {
	organization string
	branch       string
}

// NewTrackClassifier creates a classifier for the canonical production remote.
func NewTrackClassifier() *TrackClassifier {
	return &TrackClassifier{
		organization: domain.CanonicalOrganization,
		branch:       domain.CanonicalBranch,
	}
}

// Classify derives the deploy track, user namespace and AMI name. It never fails.
func (c *TrackClassifier) Classify(remoteURL, branch string) domain.Classification {
	account := AccountFromRemote(remoteURL)

	track := domain.NonProductionTrack(account)
	if account == c.organization && branch == c.branch {
		track = domain.ProductionTrack
	}

	return domain.Classification{
		DeployTrack:   track,
		UserNamespace: account,
		AMIName:       account + "-" + branch,
	}
}

// AccountFromRemote returns the account segment of a remote URL.
// Unrecognized formats fall back to the path segment before the repository
// name, then to domain.UnknownAccount.
func AccountFromRemote(remoteURL string) string {
	if remote, err := domain.ParseRemote(remoteURL); err == nil {
		return remote.Account
	}

	trimmed := strings.TrimSuffix(strings.TrimSpace(remoteURL), "/")
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
	}
	segments := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '/' || r == ':' || r == '\\'
	})
	if len(segments) >= 2 {
		return segments[len(segments)-2]
	}
	return domain.UnknownAccount
}
