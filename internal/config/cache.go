package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the page cache middleware that fronts the
// public marketing pages.  When Enabled is false or no Redis client is
// configured, caching is disabled.  Methods lists the HTTP methods to cache,
// TTL the lifetime of an entry and KeyStrategy which parts of the request
// contribute to the cache key.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("PAGE_CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("PAGE_CACHE_METHODS", "GET")),
		TTL:          envDur("PAGE_CACHE_TTL", 5*time.Minute),
		KeyStrategy:  envStr("PAGE_CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("PAGE_CACHE_PREFIX", "page"),
		MaxBodyBytes: envInt("PAGE_CACHE_MAX_BODY_BYTES", 512<<10),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
