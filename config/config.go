// Package config holds the run configuration for the stream pipeline and
// its microbenchmarks, loadable from YAML with CLI flags overriding file
// values — the same layered-override shape as the teacher's config manager,
// re-grounded on this module's flat RunConfig rather than its
// component-registry model (see DESIGN.md).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SigmaX-ai/bolson/errors"
)

// ClientConfig configures the TCP ingress connection, matching cli.cpp's
// AddClientOptionsToCLI.
type ClientConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PublishConfig configures the message-bus publisher.
type PublishConfig struct {
	URL          string        `yaml:"url"`
	Subject      string        `yaml:"subject"`
	MaxMsgSize   int           `yaml:"max_msg_size"`
	BatchEnable  bool          `yaml:"batch_enable"`
	BatchMaxMsgs int           `yaml:"batch_max_messages"`
	BatchMaxDelay time.Duration `yaml:"batch_max_delay"`
}

// ConverterConfig configures the parser/resizer/serializer pipeline stages.
type ConverterConfig struct {
	Backend       string `yaml:"backend"` // "software" or "accelerator"
	NumThreads    int    `yaml:"num_threads"`
	NumBuffers    int    `yaml:"num_buffers"`
	BufferCap     int    `yaml:"buffer_capacity"`
	MaxRowsPerBatch int64 `yaml:"max_rows_per_batch"`
	SeqColumn     bool   `yaml:"seq_column"`
	AFUID         string `yaml:"afu_id"`
}

// DefaultConverterConfig matches the original's defaults: software backend,
// a handful of threads, one buffer per thread.
func DefaultConverterConfig() ConverterConfig {
	return ConverterConfig{
		Backend:         "software",
		NumThreads:      4,
		NumBuffers:      4,
		BufferCap:       1 << 20,
		MaxRowsPerBatch: 1 << 16,
		SeqColumn:       true,
	}
}

// RunConfig is the full configuration for `bolson stream`, matching
// spec.md §6's CLI surface.
type RunConfig struct {
	Client      ClientConfig    `yaml:"client"`
	Publish     PublishConfig   `yaml:"publish"`
	Converter   ConverterConfig `yaml:"converter"`
	LatencyFile string          `yaml:"latency_file"`
	MetricsFile string          `yaml:"metrics_file"`
}

// DefaultRunConfig returns sane defaults for every field.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Client:    ClientConfig{Host: "localhost", Port: 5000},
		Publish:   PublishConfig{Subject: "bolson.records", MaxMsgSize: 5*1024*1024 - 10*1024},
		Converter: DefaultConverterConfig(),
	}
}

// Load reads a YAML file into a RunConfig seeded with defaults. A missing
// path is not an error: the caller relies on flag overrides alone.
func Load(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.WrapKind(errors.KindConfig, err, "config", "Load", "read config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WrapKind(errors.KindConfig, err, "config", "Load", "parse YAML config")
	}
	return cfg, nil
}

// Validate checks the configuration for combinations spec.md §8 requires to
// fail at setup, before any MMIO: an accelerator worker count request above
// the backend's maximum.
func (c RunConfig) Validate() error {
	if c.Converter.Backend != "software" && c.Converter.Backend != "accelerator" {
		return errors.WrapKind(errors.KindConfig, errors.ErrInvalidConfig, "RunConfig", "Validate",
			fmt.Sprintf("unknown backend %q", c.Converter.Backend))
	}
	if c.Converter.NumThreads < 1 {
		return errors.WrapKind(errors.KindConfig, errors.ErrInvalidConfig, "RunConfig", "Validate", "num_threads must be >= 1")
	}
	if c.Converter.Backend == "accelerator" && c.Converter.NumThreads > 255 {
		return errors.WrapKind(errors.KindConfig, errors.ErrInvalidConfig, "RunConfig", "Validate",
			"accelerator backend supports at most 255 worker threads")
	}
	return nil
}
