package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

// unsetAll clears the given env vars and restores them when the test ends
func unsetAll(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, value) })
		}
		os.Unsetenv(key)
	}
}

func TestConfigDefaultValues(t *testing.T) {
	unsetAll(t,
		"PORT",
		"SAAVN_BASE_URL",
		"RESPONSE_CACHE_TTL_MS",
		"RATE_LIMIT_PER_SECOND",
		"RATE_LIMIT_BURST_LIMIT",
		"CACHED_RATE_LIMIT_PER_SECOND",
		"CACHED_RATE_LIMIT_BURST_LIMIT",
		"CIRCUIT_BREAKER_THRESHOLD",
		"CIRCUIT_BREAKER_COOLDOWN_SECS",
		"LIKES_DB_PATH",
		"FF_CACHE_COMPRESSION",
		"FF_SINGLE_FLIGHT",
	)

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port default", cfg.Configuration.Port, "8080"},
		{"SaavnBaseURL default", cfg.Configuration.SaavnBaseURL, "https://saavn.dev/api"},
		{"ResponseCacheTTLMs default", cfg.Configuration.ResponseCacheTTLMs, 600000},
		{"RateLimitPerSecond default", cfg.Configuration.RateLimitPerSecond, 5},
		{"RateLimitBurstLimit default", cfg.Configuration.RateLimitBurstLimit, 10},
		{"CachedRateLimitPerSecond default", cfg.Configuration.CachedRateLimitPerSecond, 10},
		{"CachedRateLimitBurstLimit default", cfg.Configuration.CachedRateLimitBurstLimit, 20},
		{"CircuitBreakerThreshold default", cfg.Configuration.CircuitBreakerThreshold, 5},
		{"CircuitBreakerCooldownSecs default", cfg.Configuration.CircuitBreakerCooldownSecs, 60},
		{"LikesDBPath default", cfg.Configuration.LikesDBPath, "data/likes.db"},
		{"CacheCompression default", cfg.FeatureFlags.CacheCompression, true},
		{"SingleFlight default", cfg.FeatureFlags.SingleFlight, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}
}

func TestConfigEnvironmentOverrides(t *testing.T) {
	unsetAll(t, "PORT", "RESPONSE_CACHE_TTL_MS", "CACHE_ACCESS_TOKEN", "API_KEY", "FF_SINGLE_FLIGHT", "ALLOWED_ORIGINS")
	os.Setenv("PORT", "9090")
	os.Setenv("RESPONSE_CACHE_TTL_MS", "1500")
	os.Setenv("CACHE_ACCESS_TOKEN", "test_token_123")
	os.Setenv("API_KEY", "secret")
	os.Setenv("FF_SINGLE_FLIGHT", "false")
	os.Setenv("ALLOWED_ORIGINS", "https://jine.example,http://localhost:8000")

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port override", cfg.Configuration.Port, "9090"},
		{"ResponseCacheTTLMs override", cfg.Configuration.ResponseCacheTTLMs, 1500},
		{"CacheAccessToken override", cfg.Configuration.CacheAccessToken, "test_token_123"},
		{"APIKey override", cfg.Configuration.APIKey, "secret"},
		{"SingleFlight override", cfg.FeatureFlags.SingleFlight, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}

	wantOrigins := []string{"https://jine.example", "http://localhost:8000"}
	if !reflect.DeepEqual(cfg.Configuration.AllowedOrigins, wantOrigins) {
		t.Errorf("Expected origins %v, got %v", wantOrigins, cfg.Configuration.AllowedOrigins)
	}
}

func TestDurationHelpers(t *testing.T) {
	var cfg Config
	cfg.Configuration.ResponseCacheTTLMs = 600000
	cfg.Configuration.SaavnTimeoutSecs = 10
	cfg.Configuration.CircuitBreakerCooldownSecs = 60
	cfg.Configuration.SessionIdleTimeoutSecs = 1800

	tests := []struct {
		name     string
		got      time.Duration
		expected time.Duration
	}{
		{"ResponseCacheTTL", cfg.ResponseCacheTTL(), 10 * time.Minute},
		{"SaavnTimeout", cfg.SaavnTimeout(), 10 * time.Second},
		{"CircuitBreakerCooldown", cfg.CircuitBreakerCooldown(), time.Minute},
		{"SessionIdleTimeout", cfg.SessionIdleTimeout(), 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}
}

func TestFeatureFlagCacheCompression(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{"enabled (true)", "true", true},
		{"disabled (false)", "false", false},
		{"enabled (1)", "1", true},
		{"disabled (0)", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("FF_CACHE_COMPRESSION", tt.envValue)
			defer os.Unsetenv("FF_CACHE_COMPRESSION")

			cfg, err := load()
			if err != nil {
				t.Fatalf("Failed to load config: %v", err)
			}

			if cfg.FeatureFlags.CacheCompression != tt.expected {
				t.Errorf("Expected CacheCompression %v, got %v", tt.expected, cfg.FeatureFlags.CacheCompression)
			}
		})
	}
}

func TestInvalidValueFails(t *testing.T) {
	os.Setenv("RESPONSE_CACHE_TTL_MS", "ten minutes")
	defer os.Unsetenv("RESPONSE_CACHE_TTL_MS")

	if _, err := load(); err == nil {
		t.Error("Expected error for non-numeric RESPONSE_CACHE_TTL_MS")
	}
}

func TestMustLoad(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("mustLoad() panicked: %v", r)
		}
	}()

	cfg := mustLoad()
	if cfg.Configuration.ResponseCacheTTLMs <= 0 {
		t.Error("Expected mustLoad to return a positive ResponseCacheTTLMs")
	}
}

func TestGet(t *testing.T) {
	cfg := Get()
	if cfg.Configuration.Port == "" {
		t.Error("Expected Get() to return initialized config")
	}
}
