package internal

import (
	"fmt"
	"time"
)

const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=INFO"`
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080"`

	StoreBackend   string `env:"STORE_BACKEND,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger"`
	BadgerInMemory bool   `env:"BADGER_IN_MEMORY,default=false"`
	RedisAddr      string `env:"REDIS_ADDR,default=localhost:6379"`
	LimitMessages  *int   `env:"LIMIT_MESSAGES"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	AllowAllMembers   bool          `env:"ALLOW_ALL_MEMBERS,default=false"`

	EventBufferSize   int           `env:"EVENT_BUFFER_SIZE,default=64"`
	BaseBackoff       time.Duration `env:"BASE_BACKOFF,default=1s"`
	MaxBackoff        time.Duration `env:"MAX_BACKOFF,default=30s"`
	ProbeInterval     time.Duration `env:"PROBE_INTERVAL,default=5s"`
	ProbeTimeout      time.Duration `env:"PROBE_TIMEOUT,default=2s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=1s"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=10s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	DebugInspector    bool          `env:"DEBUG_INSPECTOR,default=false"`
}

// Validate checks the combinations the env tags cannot express.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendBadger, BackendRedis:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendBadger, BackendRedis, c.StoreBackend)
	}
	if len(c.AuthSecret) < 16 {
		return fmt.Errorf("AUTH_SECRET must be at least 16 characters")
	}
	if c.BaseBackoff <= 0 || c.MaxBackoff < c.BaseBackoff {
		return fmt.Errorf("BASE_BACKOFF must be positive and not above MAX_BACKOFF")
	}
	if c.LimitMessages != nil && *c.LimitMessages <= 0 {
		return fmt.Errorf("LIMIT_MESSAGES must be positive, got %d", *c.LimitMessages)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
