package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN" envDefault:""`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"25"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"1m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// KafkaConfig configures balance event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envDefault:""`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"balance.changed"`
}

type BalanceConfig struct {
	// OperationTimeout bounds one deposit or withdraw, transaction included.
	// Zero means no limit beyond the caller's context.
	OperationTimeout time.Duration `env:"BALANCE_OPERATION_TIMEOUT" envDefault:"5s"`
	// ConflictRetries is how many times the HTTP layer resubmits an operation
	// that lost an optimistic-concurrency race.
	ConflictRetries uint64 `env:"BALANCE_CONFLICT_RETRIES" envDefault:"3"`
}
