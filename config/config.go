// Package config loads runtime settings from the environment.
//
// An optional .env file in the working directory is read first; variables
// already set in the environment win over it. cmd/server flags override
// both.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/warp/tour-pricing/refund"
)

type Config struct {
	Port string // APP_PORT

	// DBPath is the SQLite file for standalone mode. Ignored when
	// BackendURL is set.
	DBPath string // DB_PATH

	BackendURL     string        // BACKEND_URL
	BackendTimeout time.Duration // BACKEND_TIMEOUT

	LogLevel logrus.Level // LOG_LEVEL

	RedisAddr     string // REDIS_ADDR, empty disables Redis
	RedisPassword string // REDIS_PASSWORD
	RedisDB       int    // REDIS_DB

	GuideCacheTTL        time.Duration // GUIDE_CACHE_TTL
	GuideCacheMaxEntries int           // GUIDE_CACHE_MAX_ENTRIES

	BalanceDue refund.BalanceDuePolicy // REFUND_BALANCE_DUE_POLICY

	CORSOrigins []string // CORS_ORIGINS, comma separated
}

// Load reads the .env file, if any, then the environment. It reports
// whether a .env file was found and any setting it could not parse.
func Load() (Config, bool, error) {
	dotenv := godotenv.Load() == nil
	cfg, err := FromEnv()
	return cfg, dotenv, err
}

// FromEnv builds a Config from environment variables and defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:                 getenv("APP_PORT", "8080"),
		DBPath:               getenv("DB_PATH", "tours.db"),
		BackendURL:           strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		BackendTimeout:       parseDur(getenv("BACKEND_TIMEOUT", "10s"), 10*time.Second),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              atoi(getenv("REDIS_DB", "0")),
		GuideCacheTTL:        parseDur(getenv("GUIDE_CACHE_TTL", "5m"), 5*time.Minute),
		GuideCacheMaxEntries: atoi(getenv("GUIDE_CACHE_MAX_ENTRIES", "1024")),
		CORSOrigins:          parseList(getenv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
	}

	level, err := logrus.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return cfg, err
	}
	cfg.LogLevel = level

	cfg.BalanceDue, err = refund.ParseBalanceDuePolicy(os.Getenv("REFUND_BALANCE_DUE_POLICY"))
	if err != nil {
		return cfg, err
	}

	if cfg.GuideCacheMaxEntries < 1 {
		cfg.GuideCacheMaxEntries = 1
	}
	return cfg, nil
}

// Standalone reports whether the engine runs on its local SQLite backend.
func (c Config) Standalone() bool {
	return c.BackendURL == ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
