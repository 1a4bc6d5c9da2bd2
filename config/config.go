package config

import (
	"time"

	"jine-api-go/logcolors"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		Port               string `envconfig:"PORT" default:"8080"`
		SaavnBaseURL       string `envconfig:"SAAVN_BASE_URL" default:"https://saavn.dev/api"`
		SaavnTimeoutSecs   int    `envconfig:"SAAVN_TIMEOUT_SECS" default:"10"`
		ResponseCacheTTLMs int    `envconfig:"RESPONSE_CACHE_TTL_MS" default:"600000"` // Metadata responses are served from cache for this long

		RateLimitPerSecond        int `envconfig:"RATE_LIMIT_PER_SECOND" default:"5"`
		RateLimitBurstLimit       int `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"10"`
		CachedRateLimitPerSecond  int `envconfig:"CACHED_RATE_LIMIT_PER_SECOND" default:"10"`
		CachedRateLimitBurstLimit int `envconfig:"CACHED_RATE_LIMIT_BURST_LIMIT" default:"20"`

		CacheAccessToken string `envconfig:"CACHE_ACCESS_TOKEN" default:""`
		APIKey           string `envconfig:"API_KEY" default:""`

		LikesDBPath            string `envconfig:"LIKES_DB_PATH" default:"data/likes.db"`
		LikesBackupPath        string `envconfig:"LIKES_BACKUP_PATH" default:"data/backups"`
		StatsDBPath            string `envconfig:"STATS_DB_PATH" default:"data/stats.db"`
		StatsSaveIntervalSecs  int    `envconfig:"STATS_SAVE_INTERVAL_SECS" default:"300"`
		SessionIdleTimeoutSecs int    `envconfig:"SESSION_IDLE_TIMEOUT_SECS" default:"1800"` // Sessions without activity are dropped after this
		SessionSweepSecs       int    `envconfig:"SESSION_SWEEP_SECS" default:"300"`

		CircuitBreakerThreshold    int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`      // Consecutive failures before circuit opens
		CircuitBreakerCooldownSecs int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"60"` // Seconds to wait before retrying

		AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
		SingleFlight     bool `envconfig:"FF_SINGLE_FLIGHT" default:"true"`
	}
}

// ResponseCacheTTL returns the metadata cache lifetime
func (c Config) ResponseCacheTTL() time.Duration {
	return time.Duration(c.Configuration.ResponseCacheTTLMs) * time.Millisecond
}

// SaavnTimeout returns the upstream HTTP timeout
func (c Config) SaavnTimeout() time.Duration {
	return time.Duration(c.Configuration.SaavnTimeoutSecs) * time.Second
}

// CircuitBreakerCooldown returns how long the breaker stays open
func (c Config) CircuitBreakerCooldown() time.Duration {
	return time.Duration(c.Configuration.CircuitBreakerCooldownSecs) * time.Second
}

// SessionIdleTimeout returns how long an idle session survives
func (c Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.Configuration.SessionIdleTimeoutSecs) * time.Second
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("%s Error loading env config: %v", logcolors.LogConfig, err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("%s Unable to load configuration", logcolors.LogConfig)
	}

	return c
}

func Get() Config {
	return conf
}
