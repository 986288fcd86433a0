// Package config loads the operator configuration of a ledger.
//
// Values come from, in increasing precedence: Default, an optional YAML
// file, and PQLEDGER_* environment variables. Load validates the result
// against the algorithm registry, so an unsupported mode is a setup-time
// error rather than a failed commit.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/registry"
	"github.com/pzverkov/quantum-agility/pkg/store"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PQLEDGER_"

// Config is the complete operator configuration.
type Config struct {
	DataDir       string `yaml:"data_dir" env:"DATA_DIR"`
	Backend       string `yaml:"backend" env:"BACKEND"`
	KEMMode       string `yaml:"kem_mode" env:"KEM_MODE"`
	SigMode       string `yaml:"sig_mode" env:"SIG_MODE"`
	Confidential  bool   `yaml:"confidential" env:"CONFIDENTIAL"`
	MaxEntrySize  int    `yaml:"max_entry_size" env:"MAX_ENTRY_SIZE"`
	VerifyWorkers int    `yaml:"verify_workers" env:"VERIFY_WORKERS"`

	// CommitRate limits commits per second; zero disables the limit.
	CommitRate  float64 `yaml:"commit_rate" env:"COMMIT_RATE"`
	CommitBurst int     `yaml:"commit_burst" env:"COMMIT_BURST"`

	// Passphrase unlocks the key file. It is read from the environment
	// only and never from the YAML file.
	Passphrase string `yaml:"-" env:"PASSPHRASE"`

	KeyFile KeyFileConfig `yaml:"key_file" envPrefix:"KEYFILE_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
	Tracing TracingConfig `yaml:"tracing" envPrefix:"TRACING_"`
}

// KeyFileConfig holds the argon2id cost of the key file.
type KeyFileConfig struct {
	Time      uint32 `yaml:"time" env:"TIME"`
	MemoryKiB uint32 `yaml:"memory_kib" env:"MEMORY_KIB"`
	Threads   uint8  `yaml:"threads" env:"THREADS"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// MetricsConfig configures the observability HTTP server. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// TracingConfig selects the tracer: none, simple or otel.
type TracingConfig struct {
	Mode        string `yaml:"mode" env:"MODE"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	kf := store.DefaultKeyFileParams
	return &Config{
		DataDir:      "pqledger-data",
		Backend:      store.BackendBadger,
		KEMMode:      hybridkem.HybridMode(registry.Lattice).String(),
		SigMode:      hybridsig.HybridMode(registry.LatticeDSA).String(),
		Confidential: true,
		KeyFile: KeyFileConfig{
			Time:      kf.Time,
			MemoryKiB: kf.Memory,
			Threads:   kf.Threads,
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Namespace: "pqledger"},
		Tracing: TracingConfig{Mode: "none", ServiceName: "pqledger"},
	}
}

// Load builds the configuration from Default, the YAML file at path (when
// path is not empty) and the process environment.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// LoadEnviron is Load with an explicit environment instead of the
// process environment.
func LoadEnviron(path string, environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return load(path, environ)
}

func load(path string, environ map[string]string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, qerrors.NewConfigError("file", path, err)
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, qerrors.NewConfigError("env", EnvPrefix+"*", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field. Modes are checked against the registry of
// this build.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" && c.Backend != store.BackendMemory {
		return qerrors.NewConfigError("data_dir", c.DataDir, errors.New("required for persistent backends"))
	}
	switch c.Backend {
	case store.BackendMemory, store.BackendBadger, store.BackendSQLite:
	default:
		return qerrors.NewConfigError("backend", c.Backend, errors.New("want memory, badger or sqlite"))
	}
	if _, _, err := c.Modes(); err != nil {
		return err
	}
	if c.MaxEntrySize < 0 {
		return qerrors.NewConfigError("max_entry_size", fmt.Sprint(c.MaxEntrySize), errors.New("must not be negative"))
	}
	if c.VerifyWorkers < 0 {
		return qerrors.NewConfigError("verify_workers", fmt.Sprint(c.VerifyWorkers), errors.New("must not be negative"))
	}
	if c.CommitRate < 0 || c.CommitBurst < 0 {
		return qerrors.NewConfigError("commit_rate", fmt.Sprintf("%g/%d", c.CommitRate, c.CommitBurst), errors.New("must not be negative"))
	}
	if err := c.KeyFileParams().Validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error", "silent", "none", "off":
	default:
		return qerrors.NewConfigError("log.level", c.Log.Level, errors.New("unknown level"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return qerrors.NewConfigError("log.format", c.Log.Format, errors.New("want text or json"))
	}
	switch c.Tracing.Mode {
	case "none", "simple", "otel":
	default:
		return qerrors.NewConfigError("tracing.mode", c.Tracing.Mode, errors.New("want none, simple or otel"))
	}
	return nil
}

// Modes parses the configured KEM and signature modes.
func (c *Config) Modes() (hybridkem.Mode, hybridsig.Mode, error) {
	kem, err := hybridkem.ParseMode(c.KEMMode)
	if err != nil {
		return hybridkem.Mode{}, hybridsig.Mode{}, err
	}
	sig, err := hybridsig.ParseMode(c.SigMode)
	if err != nil {
		return hybridkem.Mode{}, hybridsig.Mode{}, err
	}
	return kem, sig, nil
}

// KeyFileParams returns the key file cost parameters.
func (c *Config) KeyFileParams() store.KeyFileParams {
	return store.KeyFileParams{
		Time:    c.KeyFile.Time,
		Memory:  c.KeyFile.MemoryKiB,
		Threads: c.KeyFile.Threads,
	}
}

// StorePath returns where the configured backend keeps its data.
func (c *Config) StorePath() string {
	switch c.Backend {
	case store.BackendSQLite:
		return filepath.Join(c.DataDir, "ledger.db")
	case store.BackendBadger:
		return filepath.Join(c.DataDir, "ledger")
	}
	return ""
}

// KeyFilePath returns the path of the encrypted key ring.
func (c *Config) KeyFilePath() string {
	return filepath.Join(c.DataDir, "keys.pqk")
}
