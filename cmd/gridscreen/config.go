package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/executor"
	"github.com/23skdu/gridscreen/internal/ranking"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces every environment variable, e.g. GRIDSCREEN_BACKEND.
const envPrefix = "GRIDSCREEN"

// Config validation errors
var (
	ErrInvalidProteinDir     = errors.New("protein_dir cannot be empty")
	ErrInvalidLigandDir      = errors.New("ligand_dir cannot be empty")
	ErrInvalidThreads        = errors.New("threads must be >= 0")
	ErrInvalidChunkSize      = errors.New("chunk_size must be >= 0")
	ErrInvalidWorldSize      = errors.New("world_size must be positive")
	ErrInvalidRank           = errors.New("rank must be in [0, world_size)")
	ErrInvalidCoordinator    = errors.New("coordinator cannot be empty with the flight transport")
	ErrInvalidSplitFraction  = errors.New("split_fraction must be in [0, 1]")
	ErrInvalidLanesPerBlock  = errors.New("lanes_per_block must be >= 0")
	ErrInvalidDeviceMemory   = errors.New("device_memory_limit must be >= 0")
	ErrInvalidTopK           = errors.New("top_k must be >= 0")
	ErrInvalidLogFormat      = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel       = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidGatherTimeout  = errors.New("gather_timeout must be >= 0")
	ErrInvalidMaxMessageSize = errors.New("max_message_bytes must be >= 0")
)

// Config is the complete run configuration. Values come from defaults, then
// GRIDSCREEN_* environment variables (optionally from a .env file), then flags.
type Config struct {
	Backend    string `envconfig:"BACKEND"`
	ProteinDir string `envconfig:"PROTEIN_DIR"`
	LigandDir  string `envconfig:"LIGAND_DIR"`

	Threads   int `envconfig:"THREADS"`
	ChunkSize int `envconfig:"CHUNK_SIZE"`

	WorldSize       int           `envconfig:"WORLD_SIZE"`
	Rank            int           `envconfig:"RANK"`
	Transport       string        `envconfig:"TRANSPORT"`
	Coordinator     string        `envconfig:"COORDINATOR"`
	GatherTimeout   time.Duration `envconfig:"GATHER_TIMEOUT"`
	MaxMessageBytes int           `envconfig:"MAX_MESSAGE_BYTES"`

	SplitFraction         float64 `envconfig:"SPLIT_FRACTION"`
	LanesPerBlock         int     `envconfig:"LANES_PER_BLOCK"`
	DeviceMultiprocessors int     `envconfig:"DEVICE_MULTIPROCESSORS"`
	DeviceMemoryLimit     int64   `envconfig:"DEVICE_MEMORY_LIMIT"`

	TopK        int    `envconfig:"TOP_K"`
	ParquetPath string `envconfig:"PARQUET_PATH"`
	Verbose     bool   `envconfig:"VERBOSE"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
	LogFormat   string `envconfig:"LOG_FORMAT"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Backend:           string(core.BackendShared),
		ProteinDir:        "data/proteins",
		LigandDir:         "data/ligands",
		Threads:           0, // all CPUs
		ChunkSize:         0, // sized from the range
		WorldSize:         1,
		Rank:              0,
		Transport:         string(core.TransportLocal),
		Coordinator:       "127.0.0.1:3000",
		GatherTimeout:     0,
		MaxMessageBytes:   0, // cluster default
		SplitFraction:     executor.DefaultSplitFraction,
		LanesPerBlock:     256,
		DeviceMemoryLimit: 0, // unlimited
		TopK:              ranking.DefaultTopK,
		MetricsAddr:       "",
		LogFormat:         "json",
		LogLevel:          "info",
	}
}

// LoadConfig applies the optional .env file and GRIDSCREEN_* variables on top
// of the defaults. Variables already set in the environment win over .env.
func LoadConfig(envFile string) (Config, error) {
	cfg := DefaultConfig()
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid.
// Backend and Transport are rewritten to their canonical lower-case names.
func ValidateConfig(cfg *Config) error {
	backend, err := core.ParseBackend(cfg.Backend)
	if err != nil {
		return err
	}
	transport, err := core.ParseTransport(cfg.Transport)
	if err != nil {
		return err
	}
	// dispatch compares against the canonical names
	cfg.Backend, cfg.Transport = string(backend), string(transport)
	if cfg.ProteinDir == "" {
		return ErrInvalidProteinDir
	}
	if cfg.LigandDir == "" {
		return ErrInvalidLigandDir
	}
	if cfg.Threads < 0 {
		return ErrInvalidThreads
	}
	if cfg.ChunkSize < 0 {
		return ErrInvalidChunkSize
	}
	if cfg.WorldSize <= 0 {
		return ErrInvalidWorldSize
	}
	if cfg.Rank < 0 || cfg.Rank >= cfg.WorldSize {
		return ErrInvalidRank
	}
	if core.Transport(cfg.Transport) == core.TransportFlight && cfg.Coordinator == "" {
		return ErrInvalidCoordinator
	}
	if cfg.GatherTimeout < 0 {
		return ErrInvalidGatherTimeout
	}
	if cfg.MaxMessageBytes < 0 {
		return ErrInvalidMaxMessageSize
	}
	if cfg.SplitFraction < 0 || cfg.SplitFraction > 1 {
		return ErrInvalidSplitFraction
	}
	if cfg.LanesPerBlock < 0 {
		return ErrInvalidLanesPerBlock
	}
	if cfg.DeviceMemoryLimit < 0 {
		return ErrInvalidDeviceMemory
	}
	if cfg.TopK < 0 {
		return ErrInvalidTopK
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	return nil
}
