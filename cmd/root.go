// Package cmd provides the CLI commands for build-prep.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
	"github.com/MyCarrier-DevOps/build-prep/internal/infrastructure/config"
)

// Logger defines the logging interface used by the command.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// ManifestPrinter prints a manifest when no manifest path is configured.
type ManifestPrinter interface {
	Print(m *domain.BuildManifest) error
}

// Dependencies holds all injectable dependencies for the command.
// This enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates the logger for one run. It is called after the
	// log level has been applied.
	LoggerFactory func() Logger

	// ConfigLoader loads runtime settings.
	ConfigLoader func() (*AppConfig, error)

	// ManifestReader reads the manifest file named by --pipeline-json.
	ManifestReader func(path string) ([]byte, error)

	// Resolver merges direct parameters and the manifest into a PipelineConfig.
	Resolver func(args config.Args, manifest []byte) (*domain.PipelineConfig, error)

	// SourceControlFactory creates the source-control capability.
	SourceControlFactory func(ctx context.Context, cfg *AppConfig, log Logger) (domain.SourceControl, error)

	// ExecutorFactory creates the build executor.
	ExecutorFactory func(cfg *AppConfig, log Logger) (domain.BuildExecutor, error)

	// SlipFinderFactory creates a SlipFinder. Only used with --slip-lookup.
	SlipFinderFactory func(ctx context.Context, cfg *AppConfig, log Logger) (domain.SlipFinder, error)

	// PipelineFactory creates the pipeline from its collaborators. finder may be nil.
	PipelineFactory func(
		scm domain.SourceControl,
		executor domain.BuildExecutor,
		finder domain.SlipFinder,
		log Logger,
	) domain.Pipeline

	// OutputWriterFactory creates the printer used when no manifest path is set.
	OutputWriterFactory func() ManifestPrinter

	// Stdout is the writer for standard output (for the manifest).
	Stdout io.Writer

	// Stderr is the writer for standard error (for warnings/errors).
	Stderr io.Writer
}

// AppConfig holds application configuration loaded by ConfigLoader.
type AppConfig struct {
	// LogLevel is the log level setting.
	LogLevel string

	// LogAppName is the application name for logging.
	LogAppName string

	// BuildCommand is the command line of the build step.
	BuildCommand string

	// CredentialsFile is a YAML file with git credentials.
	CredentialsFile string
}

// options are the parsed command-line flags of one invocation.
type options struct {
	pipelineJSON    string
	buildWorkspace  string
	remoteURL       string
	branch          string
	targetRevision  string
	releaseVersion  string
	logLevel        string
	verbose         bool
	buildCommand    string
	credentialsFile string
	slipLookup      bool
}

func (o *options) args() config.Args {
	return config.Args{
		ManifestPath:   o.pipelineJSON,
		BuildWorkspace: o.buildWorkspace,
		RemoteURL:      o.remoteURL,
		Branch:         o.branch,
		TargetRevision: o.targetRevision,
		ReleaseVersion: o.releaseVersion,
		LogLevel:       o.logLevel,
	}
}

// defaultDeps holds the production dependencies.
// This is set by the production wiring in main or via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for build-prep.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "build-prep",
		Short: "Resolve pipeline configuration, synchronize the source repository and emit a build manifest",
		Long: `build-prep prepares a build workspace for the build pipeline.

It resolves the pipeline configuration from either a manifest file or
command-line parameters (never both), clones or reuses the working copy under
<workspace>/products, hard-resets it to the target revision (resolving the
branch tip when no revision is given), runs the build command, classifies the
build into a deploy track and writes the resulting manifest.

The BUILD_WORKSPACE environment variable overrides the workspace from any
other source.

Examples:
  # Build the canonical production branch
  build-prep --build-workspace /var/builds/ws

  # Build a fork's branch
  build-prep --build-workspace /var/builds/ws \
    --remote-url git@github.com:alice/numenta-apps.git --branch feature-x

  # Drive the run from a manifest produced by an earlier stage
  build-prep --pipeline-json /var/builds/pipeline.json`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts, deps)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.pipelineJSON, "pipeline-json", "",
		"JSON manifest file to read parameters from and write the build manifest to")
	flags.StringVar(&opts.buildWorkspace, "build-workspace", "",
		"Common directory prefix for the build (overridden by "+domain.EnvBuildWorkspace+")")
	flags.StringVar(&opts.remoteURL, "remote-url", "",
		"Git remote to build from, e.g. "+domain.CanonicalRemoteURL)
	flags.StringVar(&opts.branch, "branch", "",
		"Branch to build when no target revision is given (default "+domain.CanonicalBranch+")")
	flags.StringVar(&opts.targetRevision, "target-revision", "",
		"Commit to build; resolved from the branch tip when omitted")
	flags.StringVar(&opts.releaseVersion, "release-version", "",
		"Release version passed to the build as its base version")
	flags.StringVar(&opts.logLevel, "log", "",
		"Logging level (debug, info, warn, error)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable verbose/debug logging")
	flags.StringVar(&opts.buildCommand, "build-command", "",
		"Build command to run in the working copy (overrides "+config.EnvBuildCommand+")")
	flags.StringVar(&opts.credentialsFile, "credentials-file", "",
		"YAML file with git username/password (overrides "+config.EnvCredentialsFile+")")
	flags.BoolVar(&opts.slipLookup, "slip-lookup", false,
		"Record the routing slip correlation ID of the built revision in the manifest")

	return rootCmd
}

// runBuild executes one pipeline run with injected dependencies.
func runBuild(cmd *cobra.Command, opts *options, deps *Dependencies) error {
	if deps == nil {
		return errors.New("dependencies not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stderr := deps.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	if err := applyLogLevel(opts); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log := deps.LoggerFactory()

	cfg, err := deps.ConfigLoader()
	if err != nil {
		log.Error(ctx, "failed to load configuration", err, nil)
		return fmt.Errorf("configuration error: %w", err)
	}
	if opts.buildCommand != "" {
		cfg.BuildCommand = opts.buildCommand
	}
	if opts.credentialsFile != "" {
		cfg.CredentialsFile = opts.credentialsFile
	}

	pipelineCfg, err := resolvePipelineConfig(opts.args(), deps)
	if err != nil {
		log.Error(ctx, "failed to resolve pipeline configuration", err, nil)
		return err
	}

	log.Info(ctx, "resolved pipeline configuration", map[string]interface{}{
		"source":          pipelineCfg.Source.String(),
		"build_workspace": pipelineCfg.BuildWorkspace,
		"remote":          pipelineCfg.RemoteURL,
		"branch":          pipelineCfg.Branch,
		"target_revision": pipelineCfg.TargetRevision,
		"release_version": pipelineCfg.ReleaseVersion,
		"manifest_path":   pipelineCfg.ManifestPath,
		"extra_params":    len(pipelineCfg.ExtraParams),
	})

	scm, err := deps.SourceControlFactory(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialize source control", err, nil)
		return fmt.Errorf("configuration error: %w", err)
	}

	executor, err := deps.ExecutorFactory(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialize build executor", err, nil)
		return fmt.Errorf("configuration error: %w", err)
	}

	var finder domain.SlipFinder
	if opts.slipLookup {
		finder, err = deps.SlipFinderFactory(ctx, cfg, log)
		if err != nil {
			log.Error(ctx, "failed to initialize slip finder", err, nil)
			return fmt.Errorf("database error: %w", err)
		}
		defer func() {
			if closeErr := finder.Close(); closeErr != nil {
				log.Warn(ctx, "failed to close slip finder", map[string]interface{}{
					"error": closeErr.Error(),
				})
			}
		}()
	}

	pipeline := deps.PipelineFactory(scm, executor, finder, log)
	manifest, err := pipeline.Run(ctx, pipelineCfg)
	if err != nil {
		if domain.IsSyncError(err) {
			writeWarningf(stderr, "working copy may be partially synchronized; the next run re-synchronizes it\n")
		}
		return err
	}

	if pipelineCfg.ManifestPath == "" {
		if err := deps.OutputWriterFactory().Print(manifest); err != nil {
			log.Error(ctx, "failed to write output", err, nil)
			return fmt.Errorf("output error: %w", err)
		}
	}

	return nil
}

// resolvePipelineConfig checks the input channels, reads the manifest file
// when one is the source, and resolves the configuration.
func resolvePipelineConfig(args config.Args, deps *Dependencies) (*domain.PipelineConfig, error) {
	source, err := args.Source()
	if err != nil {
		return nil, err
	}

	var manifest []byte
	if source == domain.SourceManifestFile {
		manifest, err = deps.ManifestReader(args.ManifestPath)
		if err != nil {
			return nil, err
		}
	}

	return deps.Resolver(args, manifest)
}

// applyLogLevel exports the requested level for the logger library.
func applyLogLevel(opts *options) error {
	level := opts.logLevel
	if opts.verbose {
		level = "debug"
	}
	if level == "" {
		return nil
	}

	normalized, err := config.NormalizeLogLevel(level)
	if err != nil {
		return err
	}
	return os.Setenv(config.EnvLogLevel, normalized)
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// writeWarningf writes a warning message to the given writer.
// This is a best-effort operation; errors are intentionally ignored
// because there is no recovery action if stderr writes fail.
func writeWarningf(w io.Writer, format string, args ...any) {
	_, err := fmt.Fprintf(w, format, args...)
	if err != nil {
		return
	}
}
