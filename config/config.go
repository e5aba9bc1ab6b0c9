// Package config loads process configuration from the environment.
package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Config holds every tunable of the server process. Values come from the
// environment (a .env file is loaded first when present); the -port and -db
// flags in main override the corresponding fields.
type Config struct {
	Port      int    `env:"PORT, default=8080"`
	DBPath    string `env:"DB_PATH, default=data/agua.db"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`
}

// Load reads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
