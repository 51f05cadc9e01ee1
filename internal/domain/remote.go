package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Remote is a parsed source-control remote address.
type Remote struct {
	// Account is the owner, organization, or fork namespace.
	Account string

	// Name is the repository name without a .git suffix.
	Name string
}

// FullName returns the repository in owner/repo form.
func (r Remote) FullName() string {
	return r.Account + "/" + r.Name
}

// Regular expressions for parsing Git remote URLs.
var (
	// httpsURLPattern matches URLs like:
	// https://github.com/owner/repo.git
	// ssh://git@github.com/owner/repo
	httpsURLPattern = regexp.MustCompile(`^(?:https?|ssh|git)://[^/]+/([^/]+)/([^/]+?)(?:\.git)?/?$`)

	// scpURLPattern matches scp-style URLs like:
	// git@github.com:owner/repo.git
	// deploy@host:owner/repo
	scpURLPattern = regexp.MustCompile(`^(?:[^@/]+@)?[^:/]+:([^/]+)/([^/]+?)(?:\.git)?/?$`)
)

// ParseRemote extracts the account and repository name from a remote URL.
// Supports HTTPS, ssh:// and scp-style formats.
func ParseRemote(url string) (Remote, error) {
	url = strings.TrimSpace(url)

	if matches := httpsURLPattern.FindStringSubmatch(url); len(matches) == 3 {
		return Remote{Account: matches[1], Name: matches[2]}, nil
	}

	if matches := scpURLPattern.FindStringSubmatch(url); len(matches) == 3 {
		return Remote{Account: matches[1], Name: matches[2]}, nil
	}

	return Remote{}, fmt.Errorf("%w: unrecognized URL format: %s", ErrInvalidRemoteURL, url)
}
