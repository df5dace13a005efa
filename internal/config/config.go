// Package config loads kvdoc host settings from a YAML file, a .env file and
// KVDOC_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "KVDOC_"

type Config struct {
	DBPath      string  `yaml:"db_path"`
	InMemory    bool    `yaml:"in_memory"`
	Verbose     bool    `yaml:"verbose"`
	LogLevel    string  `yaml:"log_level"`
	LogFormat   string  `yaml:"log_format"`
	ServiceName string  `yaml:"service_name"`
	MmapSize    int     `yaml:"mmap_size"`
	Tracing     Tracing `yaml:"tracing"`
}

type Tracing struct {
	Stdout bool `yaml:"stdout"`
}

func Default() Config {
	return Config{
		DBPath:      "kvdoc.db",
		LogLevel:    "info",
		LogFormat:   "console",
		ServiceName: "kvdoc",
	}
}

// Load reads configPath (if non-empty) and envFile (if it exists), then
// applies environment overrides. A missing .env file is not an error.
func Load(configPath, envFile string) (Config, error) {
	cfg := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", configPath, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config: %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (cfg *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
		return nil
	}

	str("DB_PATH", &cfg.DBPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("SERVICE_NAME", &cfg.ServiceName)
	if err := boolean("IN_MEMORY", &cfg.InMemory); err != nil {
		return err
	}
	if err := boolean("VERBOSE", &cfg.Verbose); err != nil {
		return err
	}
	if err := boolean("TRACING_STDOUT", &cfg.Tracing.Stdout); err != nil {
		return err
	}
	if v, ok := lookup(EnvPrefix + "MMAP_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sMMAP_SIZE: %w", EnvPrefix, err)
		}
		cfg.MmapSize = n
	}
	return nil
}

func (cfg *Config) Validate() error {
	if !cfg.InMemory && cfg.DBPath == "" {
		return errors.New("config: db_path is required unless in_memory is set")
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", cfg.LogFormat)
	}
	if cfg.MmapSize < 0 {
		return fmt.Errorf("config: negative mmap_size %d", cfg.MmapSize)
	}
	return nil
}
