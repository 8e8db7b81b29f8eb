package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/sirupsen/logrus"

	"github.com/voyagen/worldtv/internal/models"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "SERVER_PORT", "FETCHER_USER_AGENT", "LOG_LEVEL",
		"PINNED_COUNTRIES", "FETCHER_TIMEOUT", "REFRESH_INTERVAL", "FETCH_CONCURRENCY", "HTTPS_ONLY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_defaults(t *testing.T) {
	is := is.New(t)
	clearEnv(t)

	c, err := Load()
	is.NoErr(err)
	is.Equal(c.ServerPort, "8080")
	is.Equal(c.UserAgent, "WorldTV/1.0")
	is.Equal(c.Timeout, 30*time.Second)
	is.Equal(c.RefreshInterval, 30*time.Minute)
	is.True(c.HTTPSOnly)
	is.Equal(c.PinnedCountries, []string{"PK", "IN"})
	is.Equal(c.AllowedSchemes(), []string{"https"})
	is.Equal(c.Level(), logrus.InfoLevel)
}

func TestLoad_env(t *testing.T) {
	is := is.New(t)
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("FETCHER_TIMEOUT", "5s")
	t.Setenv("REFRESH_INTERVAL", "0")
	t.Setenv("HTTPS_ONLY", "false")
	t.Setenv("PINNED_COUNTRIES", " us, gb ,")
	t.Setenv("FETCH_CONCURRENCY", "4")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := Load()
	is.NoErr(err)
	is.Equal(c.ServerPort, "9090")
	is.Equal(c.Timeout, 5*time.Second)
	is.Equal(c.RefreshInterval, time.Duration(0)) // zero disables the refresher
	is.True(!c.HTTPSOnly)
	is.Equal(c.AllowedSchemes(), nil)
	is.Equal(c.PinnedCountries, []string{"US", "GB"})
	is.Equal(c.FetchConcurrency, 4)
	is.Equal(c.Level(), logrus.DebugLevel)
}

func TestLoad_invalid(t *testing.T) {
	tests := map[string]string{
		"SERVER_PORT":       "99999",
		"FETCHER_TIMEOUT":   "soon",
		"HTTPS_ONLY":        "maybe",
		"FETCH_CONCURRENCY": "many",
		"LOG_LEVEL":         "loud",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			is := is.New(t)
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			is.True(errors.Is(err, ErrInvalid))
		})
	}
}

func TestParseFile(t *testing.T) {
	is := is.New(t)
	c, err := parseFile([]byte(`
server_port: "3000"
https_only: false
refresh_interval: 10m
sources:
  - name: pk
    url: https://example.com/pk.m3u
    tier: country
    country: PK
  - name: news
    url: https://example.com/news.m3u
    tier: category
    category: News
  - name: all
    url: https://example.com/all.m3u
`))
	is.NoErr(err)
	is.Equal(c.ServerPort, "3000")
	is.True(!c.HTTPSOnly)
	is.Equal(c.RefreshInterval, 10*time.Minute)
	is.Equal(c.Timeout, 30*time.Second) // unset keys keep defaults
	is.Equal(len(c.Sources), 3)
	is.Equal(c.Sources[0].Tier, models.TierPriority)
	is.Equal(c.Sources[0].Country, "PK")
	is.Equal(c.Sources[1].Tier, models.TierCategory)
	is.Equal(c.Sources[2].Tier, models.TierFallback)
}

func TestParseFile_errors(t *testing.T) {
	is := is.New(t)

	_, err := parseFile([]byte("sources: [name: x"))
	is.True(err != nil) // malformed yaml

	_, err = parseFile([]byte("timeout: whenever\n"))
	is.True(errors.Is(err, ErrInvalid))

	_, err = parseFile([]byte("sources:\n  - name: nourl\n"))
	is.True(errors.Is(err, ErrInvalid))
}

func TestParseEnvFile(t *testing.T) {
	is := is.New(t)
	got := parseEnvFile([]byte(`
# comment
DATABASE_URL=postgres://localhost/worldtv
export REDIS_URL="redis://localhost:6379/0"
LOG_LEVEL = 'debug'
NOEQUALS
=novalue
`))
	is.Equal(len(got), 3)
	is.Equal(got["DATABASE_URL"], "postgres://localhost/worldtv")
	is.Equal(got["REDIS_URL"], "redis://localhost:6379/0")
	is.Equal(got["LOG_LEVEL"], "debug")
}

func TestLoadFromFile_durations(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "worldtv.yaml")
	is.NoErr(os.WriteFile(path, []byte("timeout: 12s\nrefresh_interval: 1h\n"), 0o600))

	c, err := LoadFromFile(path)
	is.NoErr(err)
	is.Equal(c.Timeout, 12*time.Second)
	is.Equal(c.RefreshInterval, time.Hour)

	is.NoErr(os.WriteFile(path, []byte("refresh_interval: hourly\n"), 0o600))
	_, err = LoadFromFile(path)
	is.True(errors.Is(err, ErrInvalid))
}
