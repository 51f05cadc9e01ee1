package git

import (
	"os"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
)

func TestAuth(t *testing.T) {
	creds := domain.Credentials{Username: "ci-bot", Password: "token"}

	tests := []struct {
		name     string
		creds    domain.Credentials
		remote   string
		wantAuth bool
	}{
		{name: "https with credentials", creds: creds, remote: "https://github.com/alice/numenta-apps.git", wantAuth: true},
		{name: "http with credentials", creds: creds, remote: "HTTP://git.local/alice/numenta-apps", wantAuth: true},
		{name: "ssh with credentials", creds: creds, remote: "git@github.com:alice/numenta-apps.git"},
		{name: "https without credentials", remote: "https://github.com/alice/numenta-apps.git"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := NewGoGitSourceControl(tt.creds, &testLogger{}).auth(tt.remote)
			if !tt.wantAuth {
				assert.Nil(t, auth)
				return
			}
			require.IsType(t, &http.BasicAuth{}, auth)
			basic := auth.(*http.BasicAuth)
			assert.Equal(t, "ci-bot", basic.Username)
			assert.Equal(t, "token", basic.Password)
		})
	}
}

func TestWithProgress(t *testing.T) {
	scm := NewGoGitSourceControl(domain.Credentials{}, &testLogger{})
	withProgress := scm.WithProgress(os.Stderr)

	assert.NotSame(t, scm, withProgress)
	assert.Equal(t, os.Stderr, withProgress.progress)
}
