package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/worldtv/internal/models"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

const (
	defaultPort            = "8080"
	defaultUserAgent       = "WorldTV/1.0"
	defaultTimeout         = 30 * time.Second
	defaultRefreshInterval = 30 * time.Minute
	defaultLogLevel        = "info"
)

// Config holds application configuration. DatabaseURL and RedisURL are
// optional: without a database user lists live in memory, without Redis
// nothing is cached and refreshes are only serialised in-process.
type Config struct {
	DatabaseURL      string
	RedisURL         string
	ServerPort       string
	UserAgent        string
	Timeout          time.Duration
	FetchConcurrency int
	HTTPSOnly        bool
	RefreshInterval  time.Duration
	PinnedCountries  []string
	LogLevel         string
	// Sources overrides the built-in playlist source list when non-empty.
	Sources []models.Source
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ServerPort:      defaultPort,
		UserAgent:       defaultUserAgent,
		Timeout:         defaultTimeout,
		HTTPSOnly:       true,
		RefreshInterval: defaultRefreshInterval,
		PinnedCountries: []string{"PK", "IN"},
		LogLevel:        defaultLogLevel,
	}
}

// Load builds config from environment variables, after filling unset
// variables from .env.local and .env.
func Load() (*Config, error) {
	loadEnvFiles()
	c := Default()
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.RedisURL = os.Getenv("REDIS_URL")
	if s := os.Getenv("SERVER_PORT"); s != "" {
		c.ServerPort = s
	}
	if s := os.Getenv("FETCHER_USER_AGENT"); s != "" {
		c.UserAgent = s
	}
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		c.LogLevel = s
	}
	if s := os.Getenv("PINNED_COUNTRIES"); s != "" {
		c.PinnedCountries = splitCodes(s)
	}

	var err error
	if c.Timeout, err = envDuration("FETCHER_TIMEOUT", c.Timeout); err != nil {
		return nil, err
	}
	if c.RefreshInterval, err = envDuration("REFRESH_INTERVAL", c.RefreshInterval); err != nil {
		return nil, err
	}
	if s := os.Getenv("FETCH_CONCURRENCY"); s != "" {
		if c.FetchConcurrency, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("%w: FETCH_CONCURRENCY: %v", ErrInvalid, err)
		}
	}
	if s := os.Getenv("HTTPS_ONLY"); s != "" {
		if c.HTTPSOnly, err = strconv.ParseBool(s); err != nil {
			return nil, fmt.Errorf("%w: HTTPS_ONLY: %v", ErrInvalid, err)
		}
	}
	return c, c.Validate()
}

// Validate checks ranges and formats.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.ServerPort)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("%w: server port %q", ErrInvalid, c.ServerPort)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: fetcher timeout must be positive", ErrInvalid)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("%w: refresh interval must not be negative", ErrInvalid)
	}
	if c.FetchConcurrency < 0 {
		return fmt.Errorf("%w: fetch concurrency must not be negative", ErrInvalid)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for i, s := range c.Sources {
		if s.URL == "" {
			return fmt.Errorf("%w: source %d has no url", ErrInvalid, i)
		}
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// AllowedSchemes returns the stream URL schemes the parser accepts.
func (c *Config) AllowedSchemes() []string {
	if c.HTTPSOnly {
		return []string{"https"}
	}
	return nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return d, nil
}

func splitCodes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
