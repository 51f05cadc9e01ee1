package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
)

// Parameter keys. Manifest files use the same names as top-level keys.
const (
	KeyBuildWorkspace = "buildWorkspace"
	KeyRemoteURL      = "remoteUrl"
	KeyBranch         = "branch"
	KeyTargetRevision = "targetRevision"
	KeyReleaseVersion = "releaseVersion"
	KeyPipelineJSON   = "pipelineJson"
	KeyLogLevel       = "logLevel"

	// KeyLegacyManifest is the nested object older manifests carry.
	KeyLegacyManifest = "manifest"
)

// reservedKeys are consumed by the resolver and not passed through.
var reservedKeys = map[string]struct{}{
	KeyBuildWorkspace: {},
	KeyRemoteURL:      {},
	KeyBranch:         {},
	KeyTargetRevision: {},
	KeyPipelineJSON:   {},
	KeyLogLevel:       {},
}

// legacyKeys are the only fields looked up in the nested legacy manifest object.
var legacyKeys = map[string]struct{}{
	KeyBuildWorkspace: {},
	KeyRemoteURL:      {},
	KeyBranch:         {},
	KeyTargetRevision: {},
}

// Args are the direct parameters, equivalent to command-line flags.
// An empty field means the parameter was not supplied.
type Args struct {
	ManifestPath   string
	BuildWorkspace string
	RemoteURL      string
	Branch         string
	TargetRevision string
	ReleaseVersion string
	LogLevel       string
}

// overrides returns the supplied parameters that compete with a manifest file.
// The log level is excluded: it only tunes logging.
func (a Args) overrides() map[string]any {
	out := make(map[string]any)
	for key, value := range map[string]string{
		KeyBuildWorkspace: a.BuildWorkspace,
		KeyRemoteURL:      a.RemoteURL,
		KeyBranch:         a.Branch,
		KeyTargetRevision: a.TargetRevision,
		KeyReleaseVersion: a.ReleaseVersion,
	} {
		if value != "" {
			out[key] = value
		}
	}
	return out
}

// Source determines the single channel the parameters come from.
// Returns a ConfigError wrapping domain.ErrAmbiguousConfigSource when a
// manifest path is combined with any other override.
func (a Args) Source() (domain.ConfigSource, error) {
	overrides := a.overrides()
	switch {
	case a.ManifestPath != "" && len(overrides) > 0:
		keys := make([]string, 0, len(overrides))
		for k := range overrides {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return domain.SourceDefault, domain.NewConfigError(
			domain.ErrAmbiguousConfigSource,
			fmt.Sprintf("provide parameters via %s or via %s, not both", KeyPipelineJSON, strings.Join(keys, ", ")),
		)
	case a.ManifestPath != "":
		return domain.SourceManifestFile, nil
	case len(overrides) > 0:
		return domain.SourceDirectOverride, nil
	default:
		return domain.SourceDefault, nil
	}
}

// layer is one source's parameter set.
type layer struct {
	source domain.ConfigSource
	params map[string]any
}

// Resolve merges the environment, direct parameters, and an optional manifest
// blob into a PipelineConfig. The manifest blob is only consulted when
// args.ManifestPath is set. Resolve performs no I/O.
func Resolve(env map[string]string, args Args, manifest []byte) (*domain.PipelineConfig, error) {
	source, err := args.Source()
	if err != nil {
		return nil, err
	}

	layers := []layer{{source: domain.SourceDefault, params: map[string]any{}}}
	switch source {
	case domain.SourceManifestFile:
		params, err := ParseManifest(manifest)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer{source: source, params: params})
	case domain.SourceDirectOverride:
		layers = append(layers, layer{source: source, params: args.overrides()})
	}
	params := merge(layers)

	legacy, err := legacySection(params)
	if err != nil {
		return nil, err
	}

	cfg := &domain.PipelineConfig{
		ManifestPath: args.ManifestPath,
		LogLevel:     args.LogLevel,
		Source:       source,
		ExtraParams:  make(map[string]any),
	}

	cfg.BuildWorkspace = env[domain.EnvBuildWorkspace]
	if cfg.BuildWorkspace == "" {
		if cfg.BuildWorkspace, err = lookup(params, legacy, KeyBuildWorkspace); err != nil {
			return nil, err
		}
	}
	if cfg.BuildWorkspace == "" {
		return nil, domain.NewConfigError(domain.ErrMissingBuildWorkspace,
			"set "+domain.EnvBuildWorkspace+" or pass --build-workspace via the command line or manifest file")
	}

	if cfg.RemoteURL, err = lookup(params, legacy, KeyRemoteURL); err != nil {
		return nil, err
	}
	if cfg.RemoteURL == "" {
		cfg.RemoteURL = domain.CanonicalRemoteURL
	}

	if cfg.Branch, err = lookup(params, legacy, KeyBranch); err != nil {
		return nil, err
	}
	if cfg.Branch == "" {
		cfg.Branch = domain.CanonicalBranch
	}

	if cfg.TargetRevision, err = lookup(params, legacy, KeyTargetRevision); err != nil {
		return nil, err
	}

	for key, value := range params {
		if _, reserved := reservedKeys[key]; reserved {
			continue
		}
		cfg.ExtraParams[key] = value
	}
	if rv, ok := params[KeyReleaseVersion].(string); ok {
		cfg.ReleaseVersion = rv
	}

	return cfg, nil
}

// merge overlays the layers in ascending precedence.
func merge(layers []layer) map[string]any {
	sort.SliceStable(layers, func(i, j int) bool {
		return layers[i].source.Precedence() < layers[j].source.Precedence()
	})
	out := make(map[string]any)
	for _, l := range layers {
		maps.Copy(out, l.params)
	}
	return out
}

// legacySection returns the nested legacy manifest object, if any.
func legacySection(params map[string]any) (map[string]any, error) {
	raw, ok := params[KeyLegacyManifest]
	if !ok || raw == nil {
		return nil, nil
	}
	section, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.NewConfigError(domain.ErrInvalidManifest,
			fmt.Sprintf("%q must be an object", KeyLegacyManifest))
	}
	return section, nil
}

// lookup reads a string parameter, falling back to the legacy section for the
// fields it is allowed to supply.
func lookup(params, legacy map[string]any, key string) (string, error) {
	value, err := stringParam(params, key)
	if err != nil || value != "" {
		return value, err
	}
	if _, ok := legacyKeys[key]; !ok || legacy == nil {
		return "", nil
	}
	value, err = stringParam(legacy, key)
	if err != nil {
		return "", domain.NewConfigError(domain.ErrInvalidManifest,
			fmt.Sprintf("%s.%s must be a string", KeyLegacyManifest, key))
	}
	return value, nil
}

func stringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", domain.NewConfigError(domain.ErrInvalidManifest, fmt.Sprintf("%q must be a string", key))
	}
	return s, nil
}

// ParseManifest decodes a manifest blob into its top-level parameters.
func ParseManifest(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.NewConfigError(domain.ErrInvalidManifest, "manifest is empty")
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, &domain.ConfigError{Err: domain.ErrInvalidManifest, Detail: err.Error()}
	}
	if params == nil {
		return nil, domain.NewConfigError(domain.ErrInvalidManifest, "manifest must be a JSON object")
	}
	return params, nil
}

// ReadManifestFile reads the manifest at path.
func ReadManifestFile(fsys afero.Fs, path string) ([]byte, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewConfigError(domain.ErrManifestNotFound, path)
		}
		return nil, domain.NewConfigError(domain.ErrInvalidManifest, fmt.Sprintf("read %s: %v", path, err))
	}
	return data, nil
}

// EnvironMap converts os.Environ-style entries into a map.
func EnvironMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
