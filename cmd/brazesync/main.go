package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/brazesync/internal/pipeline"
	"github.com/ajitpratap0/brazesync/pkg/braze"
	"github.com/ajitpratap0/brazesync/pkg/capture"
	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/registry"
	"github.com/ajitpratap0/brazesync/pkg/logger"
	"github.com/ajitpratap0/brazesync/pkg/observability"
	"github.com/ajitpratap0/brazesync/pkg/pool"

	// Register the built-in connectors.
	_ "github.com/ajitpratap0/brazesync/pkg/connector"
)

var version = "0.1.0"

var (
	logLevel    string
	metricsPort int
	tracing     bool
)

func main() {
	// A .env beside the binary is a dev convenience; missing is fine.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "brazesync",
		Short: "brazesync - Braze <-> analytics pipeline connector",
		Long: `brazesync moves data between an analytics event pipeline and the Braze API.
It exports inbound analytics events as batched /users/track calls and imports
Braze campaign, canvas, custom event, KPI, news feed, segment, and session
analytics as flattened events.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().IntVar(&metricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port (0 = disabled)")
	root.PersistentFlags().BoolVar(&tracing, "tracing", false, "Enable OpenTelemetry tracing (stdout exporter)")

	root.AddCommand(versionCmd())
	root.AddCommand(listCmd())
	root.AddCommand(configCmd())
	root.AddCommand(runCmd())
	root.AddCommand(importCmd())
	root.AddCommand(exportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup initializes logging, tracing, and the metrics endpoint once per
// invocation.
func setup() error {
	if err := logger.Init(logger.Config{Level: logLevel, Encoding: "json"}); err != nil {
		return err
	}
	if tracing {
		cfg := observability.DefaultConfig()
		cfg.Tracing.ServiceVersion = version
		if err := observability.Initialize(cfg); err != nil {
			return err
		}
	}
	if metricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			addr := fmt.Sprintf(":%d", metricsPort)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}
	return nil
}

// teardown flushes whatever setup started.
func teardown() {
	if tracing {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(ctx); err != nil {
			logger.Warn("observability shutdown failed", zap.Error(err))
		}
	}
	_ = logger.Sync()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("brazesync v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available connectors",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available Source Connectors:")
			for _, source := range registry.ListSources() {
				fmt.Printf("  - %s\n", source)
			}
			fmt.Println("\nAvailable Destination Connectors:")
			for _, dest := range registry.ListDestinations() {
				fmt.Printf("  - %s\n", dest)
			}
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect connector configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <file>",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			out, err := config.Dump(cfg)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Printf("%s: ok\n", args[0])
			return nil
		},
	})

	return cmd
}

func runCmd() *cobra.Command {
	var (
		sourceFile    string
		destFile      string
		batchSize     int
		workers       int
		flushInterval time.Duration
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a source-to-destination pipeline",
		Long: `Run a pipeline between any registered source and destination.
Configuration files are YAML or JSON; ${VAR} references resolve from the
environment.

Example:
  brazesync run --source braze-source.yaml --destination jsonfile-dest.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer teardown()
			sourceCfg, err := loadConfig(sourceFile)
			if err != nil {
				return err
			}
			destCfg, err := loadConfig(destFile)
			if err != nil {
				return err
			}
			pipeCfg := &pipeline.Config{
				BatchSize:     batchSize,
				WorkerCount:   workers,
				FlushInterval: flushInterval,
			}
			ctx, stop := signalContext(timeout)
			defer stop()
			return runPipeline(ctx, sourceCfg, destCfg, pipeCfg, nil)
		},
	}

	cmd.Flags().StringVarP(&sourceFile, "source", "s", "", "Path to source configuration file (required)")
	cmd.Flags().StringVarP(&destFile, "destination", "d", "", "Path to destination configuration file (required)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("destination")
	cmd.Flags().IntVar(&batchSize, "batch-size", 75, "Records per destination batch")
	cmd.Flags().IntVar(&workers, "workers", 4, "Parallel transform workers")
	cmd.Flags().DurationVar(&flushInterval, "flush-interval", 5*time.Second, "Partial-batch flush interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Pipeline timeout")

	return cmd
}

// importCmd runs one daily import pass: the Braze source walks the
// enabled resources and the flattened events go to the capture
// endpoint.
func importCmd() *cobra.Command {
	var (
		configFile string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run the daily Braze analytics import now",
		Long: `Run one import pass against the Braze API. Per-resource import flags
(import_campaigns, import_canvases, ...) come from the configuration's
credentials, as do the capture endpoint settings (capture_url,
capture_api_key).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer teardown()
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(timeout)
			defer stop()
			return runImport(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to Braze source configuration file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Import pass timeout")

	return cmd
}

// exportCmd replays a JSON-lines file of inbound analytics events
// through the Braze destination.
func exportCmd() *cobra.Command {
	var (
		configFile string
		inputFile  string
		only       string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Replay a JSON-lines event file to Braze",
		Long: `Replay captured inbound events (one JSON object per line) through the
export shaper and /users/track batcher. The allow lists in the
configuration's credentials decide what each event contributes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer teardown()
			destCfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			sourceCfg := config.NewBaseConfig("replay", "jsonfile")
			sourceCfg.Security.Credentials["path"] = inputFile
			sourceCfg.Performance = destCfg.Performance

			var transforms []pipeline.Transform
			if only != "" {
				allowed := braze.NewExportConfig(only, "", false)
				transforms = append(transforms, pipeline.FilterTransform(func(r *pool.Record) bool {
					v, ok := r.GetData("event")
					if !ok {
						return false
					}
					name, ok := v.(string)
					return ok && allowed.ExportsEvent(name)
				}))
			}

			ctx, stop := signalContext(timeout)
			defer stop()
			return runPipeline(ctx, sourceCfg, destCfg, nil, transforms)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to Braze destination configuration file (required)")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Path to JSON-lines event file (required)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("input")
	cmd.Flags().StringVar(&only, "events", "", "Replay only these event names (comma-separated)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Replay timeout")

	return cmd
}

// runPipeline wires connectors from the registry and streams source to
// destination.
func runPipeline(ctx context.Context, sourceCfg, destCfg *config.BaseConfig, pipeCfg *pipeline.Config, transforms []pipeline.Transform) error {
	log := logger.Get().With(
		zap.String("component", "brazesync-cli"),
		zap.String("source", sourceCfg.Type),
		zap.String("destination", destCfg.Type),
	)

	source, err := registry.CreateSource(sourceCfg.Type, sourceCfg)
	if err != nil {
		return err
	}
	destination, err := registry.CreateDestination(destCfg.Type, destCfg)
	if err != nil {
		return err
	}

	if err := source.Initialize(ctx, sourceCfg); err != nil {
		return err
	}
	defer func() {
		if err := source.Close(ctx); err != nil {
			log.Warn("failed to close source", zap.Error(err))
		}
	}()
	if err := destination.Initialize(ctx, destCfg); err != nil {
		return err
	}
	defer func() {
		if err := destination.Close(ctx); err != nil {
			log.Warn("failed to close destination", zap.Error(err))
		}
	}()

	p := pipeline.New(source, destination, pipeCfg, log)
	for _, t := range transforms {
		p.AddTransform(t)
	}

	start := time.Now()
	if err := p.Run(ctx); err != nil {
		return err
	}

	stats := p.Metrics()
	log.Info("pipeline completed",
		zap.Duration("duration", time.Since(start)),
		zap.Any("records_processed", stats["records_processed"]),
		zap.Any("records_failed", stats["records_failed"]))
	return nil
}

// runImport streams one Braze import pass into the capture client.
func runImport(ctx context.Context, cfg *config.BaseConfig) error {
	log := logger.Get().With(zap.String("component", "brazesync-cli"))

	emitter, err := capture.NewClient(capture.Config{
		URL:              cfg.Security.Credential("capture_url"),
		APIKey:           cfg.Security.Credential("capture_api_key"),
		CompressRequests: cfg.Advanced.IsCompressionEnabled(),
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := emitter.Close(); err != nil {
			log.Warn("failed to close capture client", zap.Error(err))
		}
	}()

	source, err := registry.CreateSource("braze", cfg)
	if err != nil {
		return err
	}
	if err := source.Initialize(ctx, cfg); err != nil {
		return err
	}
	defer func() {
		if err := source.Close(ctx); err != nil {
			log.Warn("failed to close braze source", zap.Error(err))
		}
	}()

	stream, err := source.Read(ctx)
	if err != nil {
		return err
	}

	batchSize := cfg.Performance.BatchSize
	if batchSize <= 0 {
		batchSize = capture.DefaultBatchSize
	}
	events := make([]braze.OutputEvent, 0, batchSize)
	emitted := 0

	flush := func() error {
		if len(events) == 0 {
			return nil
		}
		if err := emitter.EmitBatch(ctx, events); err != nil {
			return err
		}
		emitted += len(events)
		events = events[:0]
		return nil
	}

	for record := range stream.Records {
		events = append(events, outputEventFrom(record))
		record.Release()
		if len(events) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	if err, ok := <-stream.Errors; ok && err != nil {
		return err
	}

	log.Info("import pass completed", zap.Int("events_captured", emitted))
	return nil
}

// outputEventFrom rebuilds the flattened event carried by a record.
func outputEventFrom(record *pool.Record) braze.OutputEvent {
	var ev braze.OutputEvent
	if v, ok := record.GetData("event"); ok {
		if s, ok := v.(string); ok {
			ev.Event = s
		}
	}
	if v, ok := record.GetData("properties"); ok {
		if m, ok := v.(map[string]interface{}); ok {
			ev.Properties = m
		}
	}
	if v, ok := record.GetData("timestamp"); ok {
		if s, ok := v.(string); ok {
			ev.Timestamp = s
		}
	}
	return ev
}

// loadConfig reads a connector configuration with defaults applied.
func loadConfig(path string) (*config.BaseConfig, error) {
	cfg := config.NewBaseConfig("", "")
	if err := config.Load(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// signalContext derives a context that ends on SIGINT/SIGTERM or the
// timeout, whichever first.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
