package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Wikidot
	WikiUsername string // bot account username
	WikiPassword string // bot account password
	BaseSite     string // coordination site base URL (ex: https://backrooms-tech-cn.wikidot.com)
	HomeSiteID   int64  // wikidot site id of the coordination site
	BranchFile   string // optional YAML overriding the built-in branch registry

	// Reconciliation
	PassInterval  time.Duration // interval between reconciliation passes (default: 300s)
	StaleAfter    time.Duration // reservation age before it is moved to outdate: (default: 720h)
	MaxConcurrent int           // per-pass record concurrency ceiling (default: 4)

	// Read API cache
	CacheRefresh time.Duration // interval between reservation snapshot refreshes (default: 30s)

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDialTimeout    time.Duration // ex: 5s
	RedisReadTimeout    time.Duration // ex: 3s
	RedisWriteTimeout   time.Duration // ex: 3s
	RedisPoolSize       int           // connection pool size
	RedisConnectTimeout time.Duration // total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // initial wait between connect retries (ex: 2s)
	RedisMaxWait        time.Duration // max wait between connect retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
}

func Load() *Config {
	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	cfg := &Config{
		ListenPort:      getenv("RSV_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("RSV_SHUTDOWN_TIMEOUT", 5*time.Second),

		LogLevel:  getenv("RSV_LOG_LEVEL", "info"),
		PrettyLog: mustBool("RSV_PRETTY_LOG", true),

		WikiUsername: requireEnv("RSV_WIKI_USERNAME"),
		WikiPassword: requireEnv("RSV_WIKI_PASSWORD"),
		BaseSite:     getenv("RSV_BASE_SITE", "https://backrooms-tech-cn.wikidot.com"),
		HomeSiteID:   mustInt64("RSV_HOME_SITE_ID", 5041861),
		BranchFile:   getenv("RSV_BRANCH_FILE", ""), // empty = built-in registry

		PassInterval:  mustDuration("RSV_PASS_INTERVAL", 300*time.Second),
		StaleAfter:    mustDuration("RSV_STALE_AFTER", 30*24*time.Hour),
		MaxConcurrent: getenvInt("RSV_MAX_CONCURRENT", 4),

		CacheRefresh: mustDuration("RSV_CACHE_REFRESH", 30*time.Second),

		RedisAddr:           requireEnv("RSV_REDIS_ADDR"),
		RedisUser:           getenv("RSV_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("RSV_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("RSV_REDIS_DB", 0),
		RedisDialTimeout:    mustDuration("RSV_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisReadTimeout:    mustDuration("RSV_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWriteTimeout:   mustDuration("RSV_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:       getenvInt("RSV_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("RSV_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("RSV_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisMaxWait:        mustDuration("RSV_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("RSV_REDIS_PING_TIMEOUT", 5*time.Second),
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}

	// Log config only in debug mode, with credentials redacted.
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.WikiPassword = "***REDACTED***"
		cfgCopy.RedisPassword = "***REDACTED***"
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("FATAL: required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
