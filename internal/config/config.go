package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL        string        `env:"DATABASE_URL,required,notEmpty"`
	IdentityServiceURL string        `env:"IDENTITY_SERVICE_URL,required,notEmpty"`
	IdentityTimeout    time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"5s"`
	IdentityMaxRetries uint64        `env:"IDENTITY_MAX_RETRIES" envDefault:"2"`
	IdentityRetryWait  time.Duration `env:"IDENTITY_RETRY_INITIAL" envDefault:"100ms"`
	Port               int           `env:"PORT" envDefault:"8082"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv             string        `env:"APP_ENV" envDefault:"production"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	MigrateOnStart     bool          `env:"MIGRATE_ON_START" envDefault:"true"`

	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic         string        `env:"KAFKA_TOPIC" envDefault:"banking.transactions"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	OutboxMaxAttempts  int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"10"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// EventsEnabled reports whether committed transactions are published to Kafka.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
