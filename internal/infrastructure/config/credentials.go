package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
)

// ErrCredentialsInvalid indicates the credentials source could not be decoded.
var ErrCredentialsInvalid = errors.New("git credentials are invalid")

// LoadCredentials returns git credentials for private remotes.
// A credentials file wins over Vault; with neither configured the zero value
// is returned, which is safe to use.
func LoadCredentials(
	ctx context.Context,
	fsys afero.Fs,
	file string,
	vaultClientFactory VaultClientFactory,
) (domain.Credentials, error) {
	if file != "" {
		return loadCredentialsFromFile(fsys, file)
	}

	vaultPath := os.Getenv(EnvVaultCredentialsPath)
	if vaultPath == "" {
		return domain.Credentials{}, nil
	}

	secretData, err := readVaultSecret(ctx, vaultClientFactory, vaultPath, envOr(EnvVaultCredentialsMount, DefaultVaultMount))
	if err != nil {
		return domain.Credentials{}, err
	}
	return parseCredentialsFromVault(secretData)
}

func loadCredentialsFromFile(fsys afero.Fs, file string) (domain.Credentials, error) {
	var creds domain.Credentials

	data, err := afero.ReadFile(fsys, file)
	if err != nil {
		return creds, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("%w: %w", ErrCredentialsInvalid, err)
	}
	return creds, nil
}

func parseCredentialsFromVault(secretData map[string]interface{}) (domain.Credentials, error) {
	username, uok := secretData["username"].(string)
	password, pok := secretData["password"].(string)
	if !uok || !pok {
		return domain.Credentials{}, fmt.Errorf("%w: secret needs string username and password keys", ErrCredentialsInvalid)
	}
	return domain.Credentials{Username: username, Password: password}, nil
}
