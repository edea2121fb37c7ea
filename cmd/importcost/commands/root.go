// Package commands implements the importcost command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/importcost/pkg/config"
	"github.com/Sumatoshi-tech/importcost/pkg/importcost"
	"github.com/Sumatoshi-tech/importcost/pkg/observability"
	"github.com/Sumatoshi-tech/importcost/pkg/sizecache"
	"github.com/Sumatoshi-tech/importcost/pkg/sizeengine"
	"github.com/Sumatoshi-tech/importcost/pkg/version"
)

// Streams are the process standard streams.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// EngineBuilder creates the estimation engine from loaded configuration.
type EngineBuilder func(ctx context.Context, cfg *config.Config, logger *slog.Logger,
	metrics *observability.EstimationMetrics) (importcost.Engine, error)

type options struct {
	configPath string
	verbose    bool
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, streams Streams) int {
	return execute(ctx, args, streams, buildEngine)
}

func execute(ctx context.Context, args []string, streams Streams, build EngineBuilder) int {
	code := importcost.ExitFailure
	ran := false

	root := newRootCommand(streams, build, func(c int) {
		ran = true
		code = c
	})
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)

	switch {
	case ran:
		return code
	case err != nil:
		// Flag errors never reach the runner; report them the same way.
		emitErr := importcost.NewEmitter(streams.Out).Emit(importcost.ErrorMessage(
			fmt.Errorf("%w: %w", importcost.ErrInvalidArgs, err), importcost.KindArgument, ""))
		if emitErr != nil {
			fmt.Fprintf(streams.Err, "Error: %v\n", err)
		}

		return importcost.ExitFailure
	default:
		// --help and --version.
		return importcost.ExitOK
	}
}

func newRootCommand(streams Streams, build EngineBuilder, setCode func(int)) *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:   "importcost <file>",
		Short: "Report the bundle size of every package a module imports",
		Long: `importcost reads a JavaScript or TypeScript module from stdin and prints a
single JSON message with the size and gzip size of each imported package.

The file argument names the module: its extension selects the language and
its directory is where node_modules lookup starts.`,
		Version:       version.String(),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setCode(run(cmd.Context(), args, streams, opts, build))

			return nil
		},
	}

	root.SetIn(streams.In)
	root.SetOut(streams.Err)
	root.SetErr(streams.Err)

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default .importcost.yaml in . or $HOME)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")

	return root
}

func run(ctx context.Context, args []string, streams Streams, opts options, build EngineBuilder) int {
	cfg, cfgErr := config.LoadConfig(opts.configPath)

	providers, err := initObservability(cfg, opts.verbose, streams.Err)
	if err != nil {
		fmt.Fprintf(streams.Err, "Error: observability: %v\n", err)

		providers = fallbackProviders(streams.Err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	metrics, err := observability.NewEstimationMetrics(providers.Meter)
	if err != nil {
		providers.Logger.Warn("estimation metrics unavailable", "error", err)
	}

	runner := importcost.Runner{
		NewEngine: func(ctx context.Context) (importcost.Engine, error) {
			if cfgErr != nil {
				return nil, cfgErr
			}

			return build(ctx, cfg, providers.Logger, metrics)
		},
		Stdin:  streams.In,
		Stdout: streams.Out,
		Logger: providers.Logger,
	}

	return runner.Run(ctx, args)
}

func initObservability(cfg *config.Config, verbose bool, logOut io.Writer) (observability.Providers, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.LogOutput = logOut

	if cfg != nil {
		level, err := cfg.LogLevel()
		if err == nil {
			obsCfg.LogLevel = level
		}

		obsCfg.LogJSON = cfg.Logging.JSON
		obsCfg.Environment = cfg.Telemetry.Environment
		obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
		obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
		obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
		obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	}

	if verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	return observability.Init(obsCfg)
}

func fallbackProviders(logOut io.Writer) observability.Providers {
	cfg := observability.DefaultConfig()
	cfg.LogOutput = logOut

	providers, err := observability.Init(cfg)
	if err != nil {
		return observability.Providers{
			Logger:   observability.NewLogger(cfg),
			Shutdown: func(context.Context) error { return nil },
		}
	}

	return providers
}

// buildEngine creates the tree-sitter size engine.
func buildEngine(
	ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.EstimationMetrics,
) (importcost.Engine, error) {
	maxBytes, err := cfg.MaxBundleBytes()
	if err != nil {
		return nil, err
	}

	cacheOpts := sizecache.Options{MaxEntries: cfg.Cache.MaxEntries}

	if cfg.Cache.Persist {
		cacheOpts.Directory = cfg.Cache.Directory
		if cacheOpts.Directory == "" {
			cacheOpts.Directory = sizecache.DefaultDirectory()
		}
	}

	engine, err := sizeengine.New(ctx, sizeengine.Options{
		Workers:        cfg.Engine.Workers,
		MaxFiles:       cfg.Engine.MaxFiles,
		MaxBundleBytes: maxBytes,
		StripComments:  cfg.Engine.StripComments,
		CacheEnabled:   cfg.Cache.Enabled,
		Cache:          cacheOpts,
		Logger:         logger,
		Metrics:        metrics,
	})
	if err != nil {
		return nil, err
	}

	return engine, nil
}
