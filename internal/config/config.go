// Package config loads server configuration from a YAML file with
// environment-variable overrides. A .env file, if present, is loaded
// before the environment is read.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the server's full runtime configuration.
type Config struct {
	Address string   `yaml:"address"`
	Port    int      `yaml:"port"`
	Tickers []string `yaml:"tickers"`

	StorePath string `yaml:"store_path"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Address:   "0.0.0.0",
		Port:      9001,
		Tickers:   []string{"AAPL"},
		StorePath: "ledgerbook.db",
	}
}

// Load reads a YAML config file at path (if it exists) layered over
// Default, then applies LEDGERBOOK_*-prefixed environment variables,
// loading a .env file first if one is present (godotenv.Load is a no-op
// returning an error when the file is absent, which Load ignores).
func Load(path string) (Config, error) {
	cfg := Default()

	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to defaults + env
		default:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("LEDGERBOOK_ADDRESS"); ok {
		cfg.Address = v
	}
	if v, ok := os.LookupEnv("LEDGERBOOK_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v, ok := os.LookupEnv("LEDGERBOOK_STORE_PATH"); ok {
		cfg.StorePath = v
	}
}
