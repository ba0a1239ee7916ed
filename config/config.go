package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingAPIKey = errors.New("NOTION_API_KEY is not set")

type Config struct {
	NotionAPIKey     string
	NotionBaseURL    string
	NotionVersion    string
	NotionTimeout    time.Duration
	RetryAttempts    uint
	EntityDatabaseID string
	Host             string
	Port             string
	Endpoint         string
	LogLevel         string
}

// Load reads env files and then the process environment. Without files an
// optional .env in the working directory is used.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	timeout, err := time.ParseDuration(getEnv("NOTION_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTION_TIMEOUT: %w", err)
	}
	attempts, err := strconv.ParseUint(getEnv("NOTION_RETRY_ATTEMPTS", "3"), 10, 32)
	if err != nil || attempts == 0 {
		return nil, fmt.Errorf("invalid NOTION_RETRY_ATTEMPTS %q", os.Getenv("NOTION_RETRY_ATTEMPTS"))
	}
	port := getEnv("MCP_PORT", "3004")
	if n, err := strconv.ParseUint(port, 10, 16); err != nil || n == 0 {
		return nil, fmt.Errorf("invalid MCP_PORT %q", port)
	}

	cfg := &Config{
		NotionAPIKey:     os.Getenv("NOTION_API_KEY"),
		NotionBaseURL:    getEnv("NOTION_BASE_URL", "https://api.notion.com/v1"),
		NotionVersion:    getEnv("NOTION_VERSION", "2022-06-28"),
		NotionTimeout:    timeout,
		RetryAttempts:    uint(attempts),
		EntityDatabaseID: os.Getenv("NOTION_ENTITY_DATABASE_ID"),
		Host:             getEnv("MCP_HOST", "127.0.0.1"),
		Port:             port,
		Endpoint:         getEnv("MCP_ENDPOINT", "/mcp"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
	if cfg.NotionAPIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP transports.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
