package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/SigmaX-ai/bolson/config"
)

// addClientFlags mirrors cli.cpp's AddClientOptionsToCLI: --host/--port on
// whichever FlagSet needs a TCP ingress connection.
func addClientFlags(fs *flag.FlagSet, cfg *config.ClientConfig) {
	fs.StringVar(&cfg.Host, "host", getEnv("BOLSON_HOST", "localhost"), "JSON source TCP server hostname")
	fs.IntVar(&cfg.Port, "port", getEnvInt("BOLSON_PORT", 5000), "JSON source TCP server port")
}

// addConverterFlags mirrors AddConverterOptionsToCLI (referenced but not
// reproduced in cli.cpp's excerpt; shape grounded on bench.h's
// ConvertBenchOptions and stream.cpp's Impl selection).
func addConverterFlags(fs *flag.FlagSet, cfg *config.ConverterConfig) {
	fs.StringVar(&cfg.Backend, "backend", getEnv("BOLSON_BACKEND", "software"), "parser backend: software or accelerator")
	fs.IntVar(&cfg.NumThreads, "threads", getEnvInt("BOLSON_THREADS", 4), "number of parser worker threads")
	fs.IntVar(&cfg.NumBuffers, "num-buffers", getEnvInt("BOLSON_NUM_BUFFERS", 4), "number of input buffers in the pool")
	fs.IntVar(&cfg.BufferCap, "buffer-capacity", getEnvInt("BOLSON_BUFFER_CAPACITY", 1<<20), "capacity in bytes of each input buffer")
	fs.Var((*int64Value)(&cfg.MaxRowsPerBatch), "max-rows", "maximum rows per serialized batch")
	fs.BoolVar(&cfg.SeqColumn, "seq-column", true, "prepend an explicit sequence-number column")
	fs.StringVar(&cfg.AFUID, "afu-id", "", "accelerator AFU identifier (accelerator backend only)")
}

// addPublishFlags mirrors AddPublishOptsToCLI.
func addPublishFlags(fs *flag.FlagSet, cfg *config.PublishConfig) {
	fs.StringVar(&cfg.URL, "bus-url", getEnv("BOLSON_BUS_URL", "nats://localhost:4222"), "message bus connection URL")
	fs.StringVar(&cfg.Subject, "bus-subject", getEnv("BOLSON_BUS_SUBJECT", "bolson.records"), "message bus subject/topic")
	fs.IntVar(&cfg.MaxMsgSize, "max-msg-size", getEnvInt("BOLSON_MAX_MSG_SIZE", config.DefaultRunConfig().Publish.MaxMsgSize), "maximum message size in bytes")
}

// int64Value implements flag.Value for an int64-typed flag with scaling
// suffixes, matching cli.cpp's --total-json-bytes accepting "<n>Ki, <n>Mi".
type int64Value int64

func (v *int64Value) String() string { return strconv.FormatInt(int64(*v), 10) }

func (v *int64Value) Set(s string) error {
	n, err := parseScaledInt(s)
	if err != nil {
		return err
	}
	*v = int64Value(n)
	return nil
}

// parseScaledInt parses an integer with an optional Ki/Mi/Gi binary scaling
// suffix, matching cli.cpp's --total-json-bytes help text.
func parseScaledInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "Ki"):
		mult = 1024
		s = strings.TrimSuffix(s, "Ki")
	case strings.HasSuffix(s, "Mi"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "Mi")
	case strings.HasSuffix(s, "Gi"):
		mult = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "Gi")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid scaled integer %q: %w", s, err)
	}
	return n * mult, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func printTopLevelUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - a JSON to Arrow IPC converter and message-bus publishing tool.

Usage:
  %s stream [options]           Produce bus messages from a JSON TCP stream.
  %s bench <stage> [options]    Run a micro-benchmark on an isolated pipeline stage.

Stages for 'bench': client, convert, queue, pulsar

Run '%s <subcommand> -h' for subcommand-specific options.

Version: %s
`, appName, os.Args[0], os.Args[0], os.Args[0], Version)
}
