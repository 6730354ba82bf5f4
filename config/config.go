package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	perr "github.com/next-trace/scg-pubsub/contract/errors"
)

// Config holds the connection settings for the messaging backend.
// Address is required: a process must refuse to start without it rather
// than silently run disconnected.
type Config struct {
	Address       string        `yaml:"address" env:"PUBSUB_ADDRESS"`
	Name          string        `yaml:"name" env:"PUBSUB_CLIENT_NAME" env-default:"scg-pubsub"`
	ConnTimeout   time.Duration `yaml:"conn_timeout" env:"PUBSUB_CONN_TIMEOUT" env-default:"5s"`
	MaxReconnects int           `yaml:"max_reconnects" env:"PUBSUB_MAX_RECONNECTS" env-default:"5"`
}

// Load reads configuration from the environment, merged from the YAML file
// named by PUBSUB_CONFIG_PATH when set. A .env file is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config

	if path := os.Getenv("PUBSUB_CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	if cfg.Address == "" {
		return Config{}, fmt.Errorf("config: %w", perr.ErrAddressRequired)
	}

	return cfg, nil
}

// MustLoad is Load for composition roots: it exits the process on error.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("pubsub config: %v", err)
	}

	return cfg
}
