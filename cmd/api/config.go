package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/tablestakes/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"API_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"API_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// AdminToken guards the wallet delta endpoint; empty disables it.
	AdminToken string `env:"ADMIN_TOKEN" envDefault:""`

	Storage config.StorageConfig
	Session config.SessionConfig
	Feed    config.FeedConfig
}
