package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults_From_Environ(t *testing.T) {
	req := require.New(t)
	t.Setenv("AUTH_SECRET", "0123456789abcdef0123")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("MAX_BACKOFF", "1m")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "9000")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	req.NoError(err)
	req.NoError(config.Validate())
	req.Equal(BackendRedis, config.StoreBackend)
	req.Equal(time.Second, config.BaseBackoff)
	req.Equal(time.Minute, config.MaxBackoff)
	req.Equal(24*time.Hour, config.AuthTokenDuration)
	req.Equal("0.0.0.0:9000", config.Address())
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		StoreBackend: BackendBadger,
		AuthSecret:   "0123456789abcdef",
		BaseBackoff:  time.Second,
		MaxBackoff:   30 * time.Second,
	}
	tests := []struct {
		name    string
		change  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.StoreBackend = "postgres" }, true},
		{"short secret", func(c *Config) { c.AuthSecret = "short" }, true},
		{"backoff above cap", func(c *Config) { c.BaseBackoff = time.Minute }, true},
		{"zero backoff", func(c *Config) { c.BaseBackoff = 0 }, true},
		{"negative limit", func(c *Config) { c.LimitMessages = lo.ToPtr(-1) }, true},
		{"positive limit", func(c *Config) { c.LimitMessages = lo.ToPtr(100) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.change(&config)
			err := config.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
