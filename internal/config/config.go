package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// PrefixAuto asks the API client to query the backend for its route prefix at startup.
const PrefixAuto = "auto"

type Config struct {
	Port                 string
	APIBaseURL           string
	APIPrefix            string
	MaxSessionHours      float64
	RequestTimeout       time.Duration
	SessionCheckInterval time.Duration
	SessionWarning       time.Duration
	StoreDriver          string
	StoreDSN             string
	AllowedOrigins       []string
}

// MaxSession returns MaxSessionHours as a duration.
func (c *Config) MaxSession() time.Duration {
	return time.Duration(c.MaxSessionHours * float64(time.Hour))
}

func Load() *Config {
	return &Config{
		Port:                 getEnv("PORT", "8090"),
		APIBaseURL:           strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:3000/api"), "/"),
		APIPrefix:            getEnv("API_PREFIX", PrefixAuto),
		MaxSessionHours:      getEnvFloat("MAX_SESSION_HOURS", 24),
		RequestTimeout:       getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		SessionCheckInterval: getEnvDuration("SESSION_CHECK_INTERVAL", time.Minute),
		SessionWarning:       getEnvDuration("SESSION_WARNING", 30*time.Minute),
		StoreDriver:          getEnv("STORE_DRIVER", "sqlite"),
		StoreDSN:             getEnv("STORE_DSN", "comanda.db"),
		AllowedOrigins:       splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5500,http://127.0.0.1:5500")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("WARNING: invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("10s") or bare milliseconds ("10000").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("WARNING: invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
