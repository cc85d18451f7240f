// Command bolson converts a newline-delimited JSON TCP stream into
// sequenced Arrow IPC messages published to a message bus, grounded on
// original_source/src/bolson/stream.cpp's ProduceFromStream driver.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	arrowpkg "github.com/apache/arrow-go/v18/arrow"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/SigmaX-ai/bolson/bench"
	"github.com/SigmaX-ai/bolson/buffer"
	"github.com/SigmaX-ai/bolson/config"
	"github.com/SigmaX-ai/bolson/convert"
	bolsonerrors "github.com/SigmaX-ai/bolson/errors"
	"github.com/SigmaX-ai/bolson/ingress"
	"github.com/SigmaX-ai/bolson/latency"
	"github.com/SigmaX-ai/bolson/metric"
	"github.com/SigmaX-ai/bolson/natsclient"
	"github.com/SigmaX-ai/bolson/parse"
	"github.com/SigmaX-ai/bolson/publish"
)

// appName is used in usage text and as the prefix of fatal error output.
const appName = "bolson"

// Version and BuildTime are set at release time via -ldflags; left as
// "dev"/"unknown" for local builds.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printTopLevelUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "stream":
		err = runStream(os.Args[2:])
	case "bench":
		err = runBench(os.Args[2:])
	case "-h", "--help", "help":
		printTopLevelUsage()
		return
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		printTopLevelUsage()
		os.Exit(1)
	}

	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// defaultRecordSchema is the JSON record shape this build expects absent a
// schema file option; stream.cpp reads the schema from an Arrow IPC file on
// disk, simplified here to a fixed schema matching spec.md's examples.
func defaultRecordSchema() *arrowpkg.Schema {
	return arrowpkg.NewSchema([]arrowpkg.Field{
		{Name: "voltage", Type: arrowpkg.PrimitiveTypes.Float64, Nullable: false},
	}, nil)
}

// slogNatsLogger adapts a *slog.Logger to natsclient.Logger.
type slogNatsLogger struct{ l *slog.Logger }

func (s slogNatsLogger) Printf(format string, v ...any) { s.l.Info(fmt.Sprintf(format, v...)) }
func (s slogNatsLogger) Errorf(format string, v ...any) { s.l.Error(fmt.Sprintf(format, v...)) }
func (s slogNatsLogger) Debugf(format string, v ...any) { s.l.Debug(fmt.Sprintf(format, v...)) }

func runStream(args []string) error {
	fs := flag.NewFlagSet("stream", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML run configuration file")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "json", "log format: json or text")
	metricsPort := fs.Int("metrics-port", 9090, "Prometheus metrics HTTP port (0 disables)")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "grace period for in-flight work on shutdown")

	cfg := config.DefaultRunConfig()
	fs.StringVar(&cfg.LatencyFile, "latency", "", "write per-record latency checkpoints to this CSV file")
	fs.StringVar(&cfg.MetricsFile, "metrics", "", "write final pipeline statistics to this file")
	addClientFlags(fs, &cfg.Client)
	addConverterFlags(fs, &cfg.Converter)
	addPublishFlags(fs, &cfg.Publish)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *configPath != "" {
		fileCfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		// CLI flags were parsed against in-memory defaults above; a config
		// file only supplies values the user did not pass on the command
		// line. Re-apply the flags that were set on top of the file so flags
		// still win.
		passed := map[string]string{}
		fs.Visit(func(f *flag.Flag) { passed[f.Name] = f.Value.String() })
		cfg = fileCfg
		for name, value := range passed {
			if err := fs.Set(name, value); err != nil {
				return err
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(*logLevel, *logFormat)
	logger.Info("starting stream", "backend", cfg.Converter.Backend, "threads", cfg.Converter.NumThreads)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewMetricsRegistry()
	var metricsServer *metric.Server
	if *metricsPort > 0 {
		metricsServer = metric.NewServer(*metricsPort, "/metrics", registry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer metricsServer.Stop()
	}

	tracker := latency.NewTracker()

	pool := buffer.NewPool(cfg.Converter.NumBuffers, cfg.Converter.BufferCap)

	parserCtx, err := buildParserContext(cfg.Converter)
	if err != nil {
		return err
	}
	defer parserCtx.Close()

	client := ingress.NewClient(ingress.Options{
		Host: cfg.Client.Host,
		Port: cfg.Client.Port,
	}, pool, tracker, registry, logger)

	natsClient, err := natsclient.NewClient(cfg.Publish.URL,
		natsclient.WithLogger(slogNatsLogger{logger}),
		natsclient.WithMetrics(registry),
	)
	if err != nil {
		return bolsonerrors.WrapKind(bolsonerrors.KindBus, err, "main", "runStream", "connect to message bus")
	}
	if err := natsClient.Connect(ctx); err != nil {
		return bolsonerrors.WrapKind(bolsonerrors.KindBus, err, "main", "runStream", "connect to message bus")
	}
	defer natsClient.Close(ctx)

	streamName := strings.ReplaceAll(cfg.Publish.Subject, ".", "_")
	if _, err := natsClient.CreateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{cfg.Publish.Subject},
	}); err != nil {
		return bolsonerrors.WrapKind(bolsonerrors.KindBus, err, "main", "runStream", "ensure jetstream stream")
	}

	serialized := make(chan convert.SerializedBatch, cfg.Converter.NumBuffers)

	orchestrator := &convert.Orchestrator{
		Pool:       pool,
		Parsers:    parserCtx.Parsers(),
		Resizer:    convert.Resizer{MaxRows: cfg.Converter.MaxRowsPerBatch},
		Serializer: convert.NewSerializer(cfg.Publish.MaxMsgSize, nil),
		Output:     serialized,
		Tracker:    tracker,
		Logger:     logger,
	}

	publisher := publish.NewPublisher(publish.Options{
		URL:        cfg.Publish.URL,
		Subject:    cfg.Publish.Subject,
		MaxMsgSize: cfg.Publish.MaxMsgSize,
		Batching: publish.BatchingOptions{
			Enable:      cfg.Publish.BatchEnable,
			MaxMessages: cfg.Publish.BatchMaxMsgs,
			MaxDelay:    cfg.Publish.BatchMaxDelay,
		},
	}, natsClient, serialized, tracker, logger)

	ingressErrCh := make(chan error, 1)
	go func() { ingressErrCh <- client.ReceiveJSONs(ctx) }()

	convertDone := make(chan struct{})
	var convertStats convert.Stats
	var convertErr error
	go func() {
		defer close(convertDone)
		convertStats, convertErr = orchestrator.Start(ctx)
		close(serialized)
	}()

	publishDone := make(chan error, 1)
	go func() { publishDone <- publisher.Run(ctx) }()

	// Termination predicate from stream.cpp: the stream is fully drained
	// once every received record has been published, or shutdown was
	// requested externally.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
drain:
	for {
		select {
		case <-ticker.C:
			if client.Received() > 0 && client.Received() == publisher.PublishedRows() {
				stop()
				break drain
			}
		case <-ctx.Done():
			break drain
		}
	}

	select {
	case <-convertDone:
	case <-time.After(*shutdownTimeout):
		logger.Warn("shutdown timeout exceeded waiting for converter")
	}
	<-publishDone

	if ingressErr := <-ingressErrCh; ingressErr != nil && !errors.Is(ingressErr, context.Canceled) {
		logger.Warn("ingress stopped with error", "error", ingressErr)
	}
	if convertErr != nil {
		logger.Warn("converter stopped with error", "error", convertErr)
	}

	logger.Info("stream finished",
		"records_received", client.Received(),
		"records_published", publisher.PublishedRows(),
		"json_bytes", convertStats.JSONBytes,
		"ipc_bytes", convertStats.IPCBytes)

	if cfg.LatencyFile != "" {
		if err := latency.DumpCSV(tracker, cfg.LatencyFile); err != nil {
			logger.Warn("failed to write latency file", "error", err)
		}
	}
	if cfg.MetricsFile != "" {
		statsCSV := fmt.Sprintf("num_jsons,json_bytes,num_parsed,num_ipc,ipc_bytes,records_published\n%d,%d,%d,%d,%d,%d\n",
			convertStats.NumJSONs, convertStats.JSONBytes, convertStats.NumParsed,
			convertStats.NumIPC, convertStats.IPCBytes, publisher.PublishedRows())
		if err := os.WriteFile(cfg.MetricsFile, []byte(statsCSV), 0o644); err != nil {
			logger.Warn("failed to write metrics file", "error", err)
		}
	}
	return nil
}

// buildParserContext selects the software or accelerator parsing backend
// per cfg.Backend, mirroring stream.cpp's Impl-keyed ParserContext factory.
func buildParserContext(cfg config.ConverterConfig) (parse.Context, error) {
	switch cfg.Backend {
	case "accelerator":
		opts := parse.DefaultAcceleratorOptions()
		opts.NumParsers = cfg.NumThreads
		opts.SeqColumn = cfg.SeqColumn
		if cfg.AFUID != "" {
			opts.AFUID = cfg.AFUID
		}
		return parse.NewAcceleratorContext(opts, nil, parse.IdentityAddressTranslator{})
	default:
		allocator := buffer.NewHeapAllocator()
		return parse.NewSoftwareContext(parse.SoftwareOptions{
			Schema:    defaultRecordSchema(),
			SeqColumn: cfg.SeqColumn,
			ChunkSize: 1 << 20,
		}, cfg.NumThreads, allocator), nil
	}
}

func runBench(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("bench requires a stage: client, convert, queue, pulsar")
	}
	logger := setupLogger("info", "text")
	stage, rest := args[0], args[1:]
	switch stage {
	case "client":
		return bench.RunClient(rest, logger)
	case "convert":
		return bench.RunConvert(rest, logger)
	case "queue":
		return bench.RunQueue(rest, logger)
	case "pulsar":
		return bench.RunPulsar(rest, logger)
	default:
		return fmt.Errorf("unknown bench stage %q", stage)
	}
}
