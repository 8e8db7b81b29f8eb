package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voyagen/worldtv/internal/models"
)

type fileConfig struct {
	DatabaseURL      string       `yaml:"database_url"`
	RedisURL         string       `yaml:"redis_url"`
	ServerPort       string       `yaml:"server_port"`
	UserAgent        string       `yaml:"user_agent"`
	Timeout          string       `yaml:"timeout"`
	FetchConcurrency int          `yaml:"fetch_concurrency"`
	HTTPSOnly        *bool        `yaml:"https_only"`
	RefreshInterval  string       `yaml:"refresh_interval"`
	PinnedCountries  []string     `yaml:"pinned_countries"`
	LogLevel         string       `yaml:"log_level"`
	Sources          []fileSource `yaml:"sources"`
}

type fileSource struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Tier     string `yaml:"tier"`
	Country  string `yaml:"country"`
	Category string `yaml:"category"`
}

// LoadFromFile loads config from a YAML file. Unset keys keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseFile(data)
}

func parseFile(data []byte) (*Config, error) {
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c := Default()
	c.DatabaseURL = f.DatabaseURL
	c.RedisURL = f.RedisURL
	c.FetchConcurrency = f.FetchConcurrency
	if f.ServerPort != "" {
		c.ServerPort = f.ServerPort
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.HTTPSOnly != nil {
		c.HTTPSOnly = *f.HTTPSOnly
	}
	if len(f.PinnedCountries) > 0 {
		c.PinnedCountries = f.PinnedCountries
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: timeout: %v", ErrInvalid, err)
		}
		c.Timeout = d
	}
	if f.RefreshInterval != "" {
		d, err := time.ParseDuration(f.RefreshInterval)
		if err != nil {
			return nil, fmt.Errorf("%w: refresh_interval: %v", ErrInvalid, err)
		}
		c.RefreshInterval = d
	}
	for _, s := range f.Sources {
		c.Sources = append(c.Sources, models.Source{
			Name:     s.Name,
			URL:      s.URL,
			Tier:     models.ParseTier(s.Tier),
			Country:  s.Country,
			Category: s.Category,
		})
	}
	return c, c.Validate()
}
