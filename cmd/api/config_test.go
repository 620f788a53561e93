package main

import (
	"testing"
	"time"

	"github.com/fastprodman/custbalance/internal/config"
	"github.com/fastprodman/custbalance/pkg/envconf"
)

//nolint:paralleltest
func TestConfigDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", storageMemory)

	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	err = cfg.validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Port != 8080 || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Balance.ConflictRetries != 3 || cfg.Balance.OperationTimeout != 5*time.Second {
		t.Fatalf("unexpected balance defaults: %+v", cfg.Balance)
	}
	if cfg.Kafka.Topic != "balance.changed" || len(cfg.Kafka.Brokers) != 0 {
		t.Fatalf("unexpected kafka defaults: %+v", cfg.Kafka)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     apiConfig
		wantErr bool
	}{
		{
			name: "postgres_with_dsn",
			cfg: apiConfig{
				StorageDriver:   storagePostgres,
				ShutdownTimeout: time.Second,
				Postgres:        config.PostgresConfig{DSN: "postgres://u:p@localhost:5432/db"},
			},
		},
		{
			name:    "postgres_without_dsn",
			cfg:     apiConfig{StorageDriver: storagePostgres, ShutdownTimeout: time.Second},
			wantErr: true,
		},
		{
			name:    "unknown_driver",
			cfg:     apiConfig{StorageDriver: "redis", ShutdownTimeout: time.Second},
			wantErr: true,
		},
		{
			name:    "zero_shutdown_timeout",
			cfg:     apiConfig{StorageDriver: storageMemory},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
