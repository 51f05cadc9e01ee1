// Package main is the entry point for the build-prep CLI application.
// build-prep resolves the pipeline configuration, synchronizes the source
// repository to the target revision, runs the build and emits the manifest
// consumed by the next pipeline stage.
package main

import (
	"context"
	"os"
	"sync"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/logger"
	"github.com/MyCarrier-DevOps/goLibMyCarrier/slippy"
	"github.com/spf13/afero"

	"github.com/MyCarrier-DevOps/build-prep/cmd"
	"github.com/MyCarrier-DevOps/build-prep/internal/adapters/environment"
	"github.com/MyCarrier-DevOps/build-prep/internal/adapters/executor"
	"github.com/MyCarrier-DevOps/build-prep/internal/adapters/git"
	logadapter "github.com/MyCarrier-DevOps/build-prep/internal/adapters/logger"
	"github.com/MyCarrier-DevOps/build-prep/internal/adapters/output"
	"github.com/MyCarrier-DevOps/build-prep/internal/adapters/store"
	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
	"github.com/MyCarrier-DevOps/build-prep/internal/infrastructure/config"
	"github.com/MyCarrier-DevOps/build-prep/internal/usecases"
)

func main() {
	fs := afero.NewOsFs()

	// The zap logger is built lazily so it picks up the level from the flags.
	zapLog := sync.OnceValue(logger.NewZapLoggerFromConfig)
	runLogger := sync.OnceValue(func() *logadapter.ZapAdapter {
		return logadapter.NewZapAdapter(zapLog())
	})

	deps := &cmd.Dependencies{
		LoggerFactory: func() cmd.Logger {
			return runLogger()
		},

		ConfigLoader: func() (*cmd.AppConfig, error) {
			settings := config.LoadSettings()
			return &cmd.AppConfig{
				LogLevel:        settings.LogLevel,
				LogAppName:      settings.LogAppName,
				BuildCommand:    settings.BuildCommand,
				CredentialsFile: settings.CredentialsFile,
			}, nil
		},

		ManifestReader: func(path string) ([]byte, error) {
			return config.ReadManifestFile(fs, path)
		},

		Resolver: func(args config.Args, manifest []byte) (*domain.PipelineConfig, error) {
			return config.Resolve(config.EnvironMap(os.Environ()), args, manifest)
		},

		SourceControlFactory: func(ctx context.Context, cfg *cmd.AppConfig, _ cmd.Logger) (domain.SourceControl, error) {
			creds, err := config.LoadCredentials(ctx, fs, cfg.CredentialsFile, nil)
			if err != nil {
				return nil, err
			}
			return git.NewGoGitSourceControl(creds, runLogger().ForComponent("git")), nil
		},

		ExecutorFactory: func(cfg *cmd.AppConfig, _ cmd.Logger) (domain.BuildExecutor, error) {
			return executor.NewCommandExecutor(cfg.BuildCommand, os.Stderr, os.Stderr, runLogger().ForComponent("executor"))
		},

		SlipFinderFactory: func(ctx context.Context, _ *cmd.AppConfig, _ cmd.Logger) (domain.SlipFinder, error) {
			storeCfg, err := config.LoadSlipStore(ctx, fs, nil)
			if err != nil {
				return nil, err
			}

			slippyStore, err := slippy.NewClickHouseStoreFromConfig(storeCfg.ClickHouse, slippy.ClickHouseStoreOptions{
				PipelineConfig: storeCfg.PipelineConfig,
				Database:       storeCfg.Database,
				Logger:         zapLog(),
				SkipMigrations: true,
			})
			if err != nil {
				return nil, err
			}
			return store.NewClickHouseAdapter(slippyStore), nil
		},

		PipelineFactory: func(
			scm domain.SourceControl,
			exec domain.BuildExecutor,
			finder domain.SlipFinder,
			_ cmd.Logger,
		) domain.Pipeline {
			log := runLogger()
			return usecases.NewBuildPipeline(usecases.PipelineDeps{
				Preparer:     environment.NewPreparer(os.Environ()),
				Synchronizer: usecases.NewRepositorySynchronizer(scm, fs, log.ForComponent("synchronizer")),
				Executor:     exec,
				Classifier:   usecases.NewTrackClassifier(),
				Writer:       output.NewWriterWithOutput(fs, os.Stdout),
				Finder:       finder,
				Logger:       log.ForComponent("pipeline"),
			})
		},

		OutputWriterFactory: func() cmd.ManifestPrinter {
			return output.NewWriterWithOutput(fs, os.Stdout)
		},

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	cmd.SetDefaultDependencies(deps)
	cmd.Execute()
}
