package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig describes one token bucket.  Capacity is the burst size;
// RefillTokens are added every RefillInterval up to Capacity.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// GlobalRateLimit applies to every API request: 300 requests per minute.
func GlobalRateLimit() RateLimitConfig {
	return LoadRateLimitConfig("RATE_LIMIT", RateLimitConfig{
		Enabled:        true,
		Capacity:       300,
		RefillTokens:   5,
		RefillInterval: time.Second,
		KeyStrategy:    "ip",
		Prefix:         "rl:global",
	})
}

// AuthRateLimit guards /api/auth: 100 requests per 15 minutes per client.
func AuthRateLimit() RateLimitConfig {
	return LoadRateLimitConfig("AUTH_RATE_LIMIT", RateLimitConfig{
		Enabled:        true,
		Capacity:       100,
		RefillTokens:   1,
		RefillInterval: 9 * time.Second,
		KeyStrategy:    "ip",
		Prefix:         "rl:auth",
	})
}

// LoadRateLimitConfig overlays <envPrefix>_* variables on def.
func LoadRateLimitConfig(envPrefix string, def RateLimitConfig) RateLimitConfig {
	k := func(s string) string { return envPrefix + "_" + s }
	cfg := RateLimitConfig{
		Enabled:        envBool(k("ENABLED"), def.Enabled),
		Capacity:       envInt(k("CAPACITY"), def.Capacity),
		RefillTokens:   envInt(k("REFILL_TOKENS"), def.RefillTokens),
		RefillInterval: envDur(k("REFILL_INTERVAL"), def.RefillInterval),
		TTL:            envDur(k("TTL"), def.TTL),
		KeyStrategy:    envStr(k("KEY_STRATEGY"), def.KeyStrategy),
		Prefix:         envStr(k("PREFIX"), def.Prefix),
		Debug:          envBool(k("DEBUG"), def.Debug),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if cfg.KeyStrategy == "" {
		cfg.KeyStrategy = "ip"
	}
	// keep idle buckets around long enough to refill completely
	minTTL := time.Duration(cfg.Capacity/cfg.RefillTokens+1) * cfg.RefillInterval
	if cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}
func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}
func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
