package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/AnishMulay/blockfs/internal/allocator"
	"github.com/AnishMulay/blockfs/internal/communication"
	"github.com/AnishMulay/blockfs/internal/disk"
	"github.com/AnishMulay/blockfs/internal/log_service"
)

const (
	EnvPrefix  = "BLOCKFS"
	appName    = "blockfs"
	configFile = "config.yaml"
)

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreS3       = "s3"
	StorePostgres = "postgres"
)

// Environment keys are derived from field names, BLOCKFS_<SECTION>_<FIELD>.
type DiskConfig struct {
	TotalBlocks int `yaml:"total_blocks" split_words:"true"`
	BlockSize   int `yaml:"block_size"   split_words:"true"`
}

type StoreConfig struct {
	Type     string `yaml:"type"`
	Path     string `yaml:"path"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	DSN      string `yaml:"dsn"`
	Table    string `yaml:"table"`
}

type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

type ServerConfig struct {
	NodeID    string `yaml:"node_id" split_words:"true"`
	Address   string `yaml:"address"`
	Transport string `yaml:"transport"`
}

type Config struct {
	Disk            DiskConfig   `yaml:"disk"`
	DefaultStrategy string       `yaml:"default_strategy" split_words:"true"`
	Store           StoreConfig  `yaml:"store"`
	Log             LogConfig    `yaml:"log"`
	Server          ServerConfig `yaml:"server"`
}

// Default returns the configuration written on first run: a 512 block disk of
// 4 KiB blocks persisted to a file under the user's data directory.
func Default() *Config {
	return &Config{
		Disk: DiskConfig{
			TotalBlocks: disk.DefaultTotalBlocks,
			BlockSize:   disk.DefaultBlockSize,
		},
		DefaultStrategy: allocator.DefaultStrategy.String(),
		Store: StoreConfig{
			Type: StoreFile,
			Path: filepath.Join(dataDir(), "state"),
		},
		Log: LogConfig{
			Level: log_service.InfoLevel,
		},
		Server: ServerConfig{
			NodeID:    appName,
			Address:   "localhost:8080",
			Transport: communication.TransportGRPC,
		},
	}
}

func dataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.TempDir(), appName)
}

// DefaultPath is $BLOCKFS_CONFIG_FILE, or config.yaml under the user's config
// directory.
func DefaultPath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, appName, configFile)
}

// Load reads the YAML file at path, writing the defaults there first when it
// does not exist. BLOCKFS_* environment variables override file values, e.g.
// BLOCKFS_DISK_TOTAL_BLOCKS or BLOCKFS_STORE_TYPE.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := writeDefault(path, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefault(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Disk.TotalBlocks <= 0 {
		return fmt.Errorf("%w: disk.total_blocks must be positive, got %d", ErrInvalidConfig, c.Disk.TotalBlocks)
	}
	if c.Disk.BlockSize <= 0 {
		return fmt.Errorf("%w: disk.block_size must be positive, got %d", ErrInvalidConfig, c.Disk.BlockSize)
	}
	if _, err := allocator.ParseStrategy(c.DefaultStrategy); err != nil {
		return fmt.Errorf("%w: default_strategy: %w", ErrInvalidConfig, err)
	}
	if c.Log.Level != "" && !log_service.IsValidLevel(c.Log.Level) {
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}

	switch c.Server.Transport {
	case communication.TransportGRPC, communication.TransportHTTP:
	default:
		return fmt.Errorf("%w: unknown server.transport %q", ErrInvalidConfig, c.Server.Transport)
	}

	switch c.Store.Type {
	case StoreMemory, StorePostgres:
	case StoreFile:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the file store", ErrInvalidConfig)
		}
	case StoreS3:
		if c.Store.Bucket == "" {
			return fmt.Errorf("%w: store.bucket is required for the s3 store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store.type %q", ErrInvalidConfig, c.Store.Type)
	}
	return nil
}

// Strategy returns the parsed default strategy. Call Validate first.
func (c *Config) Strategy() allocator.Strategy {
	s, err := allocator.ParseStrategy(c.DefaultStrategy)
	if err != nil {
		return allocator.DefaultStrategy
	}
	return s
}
