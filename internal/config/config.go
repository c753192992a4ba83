package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN" envDefault:""`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:"tablestakes.db"`
}

// StorageConfig selects the backend: "postgres" or "sqlite".
type StorageConfig struct {
	Driver   string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

type SessionConfig struct {
	GraceTTL        time.Duration `env:"SESSION_GRACE_TTL" envDefault:"10m"`
	MaxCrapsPlayers int           `env:"SESSION_MAX_CRAPS_PLAYERS" envDefault:"8"`
}

type FeedConfig struct {
	PollInterval time.Duration `env:"FEED_POLL_INTERVAL" envDefault:"500ms"`
	IdleBudget   time.Duration `env:"FEED_IDLE_BUDGET" envDefault:"2m"`
}
