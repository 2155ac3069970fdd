package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk (YAML) configuration for one database directory.
type Config struct {
	RootDir string `yaml:"root_dir"`
	// PageSize is the fixed block/page size in bytes for every file this
	// engine manages (spec.md §6.1).
	PageSize int `yaml:"page_size"`
	// PoolSize is the number of frames in the shared buffer pool.
	PoolSize int `yaml:"pool_size"`
	// CheckpointSchedule is a robfig/cron expression (standard 5-field,
	// or an "@every ..." shorthand) controlling how often the engine
	// attempts a quiescent checkpoint.
	CheckpointSchedule string `yaml:"checkpoint_schedule"`
}

// DefaultConfig returns sane defaults for an ad-hoc or test database.
func DefaultConfig(rootDir string) Config {
	return Config{
		RootDir:            rootDir,
		PageSize:           4096,
		PoolSize:           64,
		CheckpointSchedule: "@every 1m",
	}
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}
	cfg := DefaultConfig("")
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config %s: %w", path, err)
	}
	if cfg.RootDir == "" {
		return Config{}, fmt.Errorf("engine: config %s: root_dir is required", path)
	}
	return cfg, nil
}
