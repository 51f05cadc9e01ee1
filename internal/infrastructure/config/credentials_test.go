package config

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
)

func TestLoadCredentials_FromFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/git.yaml", []byte("username: ci-bot\npassword: s3cret\n"), 0o600))

	creds, err := LoadCredentials(context.Background(), fs, "/etc/git.yaml", nil)

	require.NoError(t, err)
	assert.Equal(t, domain.Credentials{Username: "ci-bot", Password: "s3cret"}, creds)
}

func TestLoadCredentials_FileWinsOverVault(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/git.yaml", []byte("username: from-file\npassword: x\n"), 0o600))
	t.Setenv(EnvVaultCredentialsPath, "ci/git")

	factory := mockVaultClientFactory(nil, errors.New("vault must not be called"))
	creds, err := LoadCredentials(context.Background(), fs, "/etc/git.yaml", factory)

	require.NoError(t, err)
	assert.Equal(t, "from-file", creds.Username)
}

func TestLoadCredentials_MissingFile(t *testing.T) {
	_, err := LoadCredentials(context.Background(), afero.NewMemMapFs(), "/missing.yaml", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read credentials file")
}

func TestLoadCredentials_InvalidYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/git.yaml", []byte("username: [unterminated"), 0o600))

	_, err := LoadCredentials(context.Background(), fs, "/etc/git.yaml", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialsInvalid)
}

func TestLoadCredentials_NoSourceConfigured(t *testing.T) {
	os.Unsetenv(EnvVaultCredentialsPath)

	creds, err := LoadCredentials(context.Background(), afero.NewMemMapFs(), "", nil)

	require.NoError(t, err)
	assert.True(t, creds.IsZero())
}

func TestLoadCredentials_FromVault(t *testing.T) {
	t.Setenv(EnvVaultCredentialsPath, "ci/git")
	t.Setenv(EnvVaultCredentialsMount, "kv")

	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/git": {"username": "vault-bot", "password": "token"},
		},
	}

	creds, err := LoadCredentials(context.Background(), afero.NewMemMapFs(), "", mockVaultClientFactory(mockClient, nil))

	require.NoError(t, err)
	assert.Equal(t, domain.Credentials{Username: "vault-bot", Password: "token"}, creds)
}

func TestLoadCredentials_VaultSecretMissingKeys(t *testing.T) {
	t.Setenv(EnvVaultCredentialsPath, "ci/git")

	mockClient := &mockVaultClient{
		secrets: map[string]map[string]interface{}{
			"ci/git": {"username": "vault-bot"},
		},
	}

	_, err := LoadCredentials(context.Background(), afero.NewMemMapFs(), "", mockVaultClientFactory(mockClient, nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialsInvalid)
}

func TestLoadCredentials_VaultSecretNotFound(t *testing.T) {
	t.Setenv(EnvVaultCredentialsPath, "ci/missing")

	mockClient := &mockVaultClient{secrets: map[string]map[string]interface{}{}}

	_, err := LoadCredentials(context.Background(), afero.NewMemMapFs(), "", mockVaultClientFactory(mockClient, nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVaultSecretNotFound)
}
