package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/custbalance/internal/config"
)

const (
	storagePostgres = "postgres"
	storageMemory   = "memory"
)

type apiConfig struct {
	Port            uint16        `env:"API_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"API_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// StorageDriver is "postgres" or "memory". The memory store loses all
	// data on exit.
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	Postgres config.PostgresConfig
	Kafka    config.KafkaConfig
	Balance  config.BalanceConfig
}

func (c *apiConfig) validate() error {
	switch c.StorageDriver {
	case storagePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("PG_DSN is required with STORAGE_DRIVER=%s", storagePostgres)
		}
	case storageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("API_SHUTDOWN_TIMEOUT must be positive")
	}

	return nil
}
