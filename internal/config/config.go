package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Wallet node settings
	ProviderURL  string
	PollInterval time.Duration

	// Explorer / token metadata services
	ExplorerURL     string
	ExplorerAPIKey  string
	TokenMetaURL    string
	TokenMetaAPIKey string

	// Redis settings
	RedisAddr string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// API server settings
	APIAddr string
	APIKey  string
	DevMode bool

	// Accounts the background indexer watches
	WatchAccounts []string
}

func Load() *Config {
	return &Config{
		// Wallet node
		ProviderURL:  getEnv("KEETA_PROVIDER_URL", "https://node.test.keeta.com/api"),
		PollInterval: getDurationEnv("POLL_INTERVAL", 30*time.Second),

		// Explorer / token metadata
		ExplorerURL:     getEnv("EXPLORER_URL", "https://explorer.test.keeta.com/api"),
		ExplorerAPIKey:  getEnv("EXPLORER_API_KEY", ""),
		TokenMetaURL:    getEnv("TOKEN_META_URL", "https://tokens.test.keeta.com/api"),
		TokenMetaAPIKey: getEnv("TOKEN_META_API_KEY", ""),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// Indexer
		WatchAccounts: getListEnv("WATCH_ACCOUNTS"),
	}
}

func (c *Config) Validate() error {
	if c.ProviderURL == "" {
		return fmt.Errorf("KEETA_PROVIDER_URL is required")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
