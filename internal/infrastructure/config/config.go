// Package config provides configuration loading for the build-prep application.
// It resolves the pipeline configuration from the environment, direct
// parameters and manifest files, and loads runtime settings, git credentials
// and the optional slip store configuration from environment variables and
// HashiCorp Vault.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	ch "github.com/MyCarrier-DevOps/goLibMyCarrier/clickhouse"
	"github.com/MyCarrier-DevOps/goLibMyCarrier/slippy"
	"github.com/MyCarrier-DevOps/goLibMyCarrier/vault"
	"github.com/spf13/afero"
)

// Environment variable names.
const (
	// EnvPipelineConfig is the path to the slip pipeline configuration JSON file.
	EnvPipelineConfig = "SLIPPY_PIPELINE_CONFIG"

	// EnvLogLevel is the log level (debug, info, warn, error).
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogAppName is the application name for log context.
	EnvLogAppName = "LOG_APP_NAME"

	// EnvBuildCommand is the command the build executor runs.
	EnvBuildCommand = "BUILD_COMMAND"

	// EnvCredentialsFile is the path to a YAML file with git credentials.
	EnvCredentialsFile = "GIT_CREDENTIALS_FILE"

	// EnvVaultPipelineConfigPath is the path in Vault KV where the slip pipeline config is stored.
	EnvVaultPipelineConfigPath = "VAULT_PIPELINE_CONFIG_PATH"

	// EnvVaultPipelineConfigMount is the Vault KV mount point (defaults to "secret").
	EnvVaultPipelineConfigMount = "VAULT_PIPELINE_CONFIG_MOUNT"

	// EnvVaultCredentialsPath is the path in Vault KV where git credentials are stored.
	EnvVaultCredentialsPath = "VAULT_GIT_CREDENTIALS_PATH"

	// EnvVaultCredentialsMount is the Vault KV mount for git credentials (defaults to "secret").
	EnvVaultCredentialsMount = "VAULT_GIT_CREDENTIALS_MOUNT"
)

// Default values.
const (
	DefaultLogLevel   = "info"
	DefaultLogAppName = "build-prep"
	DefaultDatabase   = "ci"
	DefaultVaultMount = "secret"
)

// Configuration errors.
var (
	// ErrPipelineConfigRequired indicates the slip pipeline config source is not available.
	ErrPipelineConfigRequired = errors.New(
		"slip pipeline configuration required: set VAULT_PIPELINE_CONFIG_PATH (with VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID) " +
			"or SLIPPY_PIPELINE_CONFIG for local file",
	)

	// ErrPipelineConfigNotFound indicates the slip pipeline config file does not exist.
	ErrPipelineConfigNotFound = errors.New("slip pipeline configuration file not found")

	// ErrPipelineConfigInvalid indicates the slip pipeline config is not valid JSON.
	ErrPipelineConfigInvalid = errors.New("slip pipeline configuration is not valid JSON")

	// ErrVaultClientFailed indicates failure to create or authenticate with Vault.
	ErrVaultClientFailed = errors.New("failed to create Vault client")

	// ErrVaultSecretNotFound indicates the secret was not found in Vault.
	ErrVaultSecretNotFound = errors.New("secret not found in Vault")

	// ErrUnknownLogLevel indicates an unsupported log level was requested.
	ErrUnknownLogLevel = errors.New("unknown log level")
)

// VaultClient defines the interface for Vault operations.
// This interface allows for dependency injection and testing.
type VaultClient interface {
	// GetKVSecret retrieves a secret from Vault's KV v2 secrets engine.
	GetKVSecret(ctx context.Context, path, mount string) (map[string]interface{}, error)
}

// VaultClientFactory creates a VaultClient using AppRole authentication.
type VaultClientFactory func(ctx context.Context) (VaultClient, error)

// DefaultVaultClientFactory creates a VaultClient using goLibMyCarrier/vault with AppRole auth.
func DefaultVaultClientFactory(ctx context.Context) (VaultClient, error) {
	// Uses: VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID
	vaultConfig, err := vault.VaultLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	client, err := vault.CreateVaultClient(ctx, vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	return client, nil
}

// Settings holds runtime settings that are not part of the pipeline configuration.
type Settings struct {
	// LogLevel is the logging level (debug, info, warn, error).
	LogLevel string

	// LogAppName is the application name for log context.
	LogAppName string

	// BuildCommand is the command line the build executor runs. Empty skips the build step.
	BuildCommand string

	// CredentialsFile is a YAML file with git credentials.
	CredentialsFile string
}

// LoadSettings reads runtime settings from environment variables.
func LoadSettings() Settings {
	return Settings{
		LogLevel:        envOr(EnvLogLevel, DefaultLogLevel),
		LogAppName:      envOr(EnvLogAppName, DefaultLogAppName),
		BuildCommand:    os.Getenv(EnvBuildCommand),
		CredentialsFile: os.Getenv(EnvCredentialsFile),
	}
}

// NormalizeLogLevel maps user supplied levels onto the names the logger understands.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return DefaultLogLevel, nil
	case "debug":
		return "debug", nil
	case "info":
		return "info", nil
	case "warn", "warning":
		return "warn", nil
	case "error", "critical":
		return "error", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLogLevel, level)
	}
}

// SlipStoreConfig holds what the slip store needs.
type SlipStoreConfig struct {
	// ClickHouse holds the ClickHouse connection configuration.
	ClickHouse *ch.ClickhouseConfig

	// PipelineConfig holds the pipeline step definitions.
	PipelineConfig *slippy.PipelineConfig

	// Database is the ClickHouse database name for slip storage.
	Database string
}

// LoadSlipStore loads the configuration for the optional slip lookup.
// ClickHouse settings come from the CLICKHOUSE_* variables. The pipeline
// definition is read from Vault when VAULT_PIPELINE_CONFIG_PATH is set
// (with VAULT_ADDRESS, VAULT_ROLE_ID and VAULT_SECRET_ID), otherwise from
// the file named by SLIPPY_PIPELINE_CONFIG on fsys.
//
// If vaultClientFactory is nil, DefaultVaultClientFactory is used.
func LoadSlipStore(
	ctx context.Context,
	fsys afero.Fs,
	vaultClientFactory VaultClientFactory,
) (*SlipStoreConfig, error) {
	chConfig, err := ch.ClickhouseLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ClickHouse config: %w", err)
	}

	pipelineConfig, err := loadPipelineConfig(ctx, fsys, vaultClientFactory)
	if err != nil {
		return nil, err
	}

	return &SlipStoreConfig{
		ClickHouse:     chConfig,
		PipelineConfig: pipelineConfig,
		Database:       DefaultDatabase,
	}, nil
}

func loadPipelineConfig(
	ctx context.Context,
	fsys afero.Fs,
	vaultClientFactory VaultClientFactory,
) (*slippy.PipelineConfig, error) {
	if vaultPath := os.Getenv(EnvVaultPipelineConfigPath); vaultPath != "" {
		secretData, err := readVaultSecret(ctx, vaultClientFactory, vaultPath, envOr(EnvVaultPipelineConfigMount, DefaultVaultMount))
		if err != nil {
			return nil, err
		}
		data, err := pipelineConfigJSON(secretData)
		if err != nil {
			return nil, err
		}
		return decodePipelineConfig(data)
	}

	path := os.Getenv(EnvPipelineConfig)
	if path == "" {
		return nil, ErrPipelineConfigRequired
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPipelineConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	return decodePipelineConfig(data)
}

// readVaultSecret reads one KV v2 secret.
func readVaultSecret(
	ctx context.Context,
	vaultClientFactory VaultClientFactory,
	path, mount string,
) (map[string]interface{}, error) {
	if vaultClientFactory == nil {
		vaultClientFactory = DefaultVaultClientFactory
	}

	client, err := vaultClientFactory(ctx)
	if err != nil {
		return nil, err
	}

	secretData, err := client.GetKVSecret(ctx, path, mount)
	if err != nil {
		return nil, fmt.Errorf("%w at path %s: %w", ErrVaultSecretNotFound, path, err)
	}
	return secretData, nil
}

// pipelineConfigJSON extracts the pipeline definition from a Vault secret,
// stored either as a JSON string under "config" or as the secret's fields.
func pipelineConfigJSON(secretData map[string]interface{}) ([]byte, error) {
	if configStr, ok := secretData["config"].(string); ok {
		return []byte(configStr), nil
	}
	data, err := json.Marshal(secretData)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal secret data: %w", ErrPipelineConfigInvalid, err)
	}
	return data, nil
}

func decodePipelineConfig(data []byte) (*slippy.PipelineConfig, error) {
	var pipelineConfig slippy.PipelineConfig
	if err := json.Unmarshal(data, &pipelineConfig); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipelineConfigInvalid, err)
	}
	return &pipelineConfig, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
