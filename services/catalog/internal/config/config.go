package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/nimestream/nimestream/services/catalog/internal/samehadaku"
)

// Config holds settings for both the catalog server and the gateway.
type Config struct {
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Cache     CacheConfig     `yaml:"cache"`
	Bookmarks BookmarksConfig `yaml:"bookmarks"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type CatalogConfig struct {
	Port        int    `yaml:"port"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type GatewayConfig struct {
	Port        string        `yaml:"port"`
	CatalogAddr string        `yaml:"catalog_addr"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Timezone    string        `yaml:"timezone"`
}

type CacheConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
}

type BookmarksConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL: samehadaku.DefaultBaseURL,
			Timeout: samehadaku.DefaultTimeout,
		},
		Catalog: CatalogConfig{
			Port: 50051,
		},
		Gateway: GatewayConfig{
			Port:        "3000",
			CatalogAddr: "localhost:50051",
			DialTimeout: 5 * time.Second,
			Timezone:    "Asia/Jakarta",
		},
		Bookmarks: BookmarksConfig{
			Path: "nimestream.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("UPSTREAM_TIMEOUT: %w", err)
		}
		c.Upstream.Timeout = d
	}
	if v := os.Getenv("CATALOG_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CATALOG_PORT: %w", err)
		}
		c.Catalog.Port = p
	}
	if v := os.Getenv("CATALOG_GRPC_ADDR"); v != "" {
		c.Gateway.CatalogAddr = v
	}
	// GATEWAY_PORT wins over the generic PORT.
	if v := os.Getenv("PORT"); v != "" {
		c.Gateway.Port = v
	}
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		c.Gateway.Port = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		c.Gateway.Timezone = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		c.Cache.TTL = d
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("BOOKMARKS_DB"); v != "" {
		c.Bookmarks.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream.base_url must be an absolute URL, got %q", c.Upstream.BaseURL))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}
	if c.Catalog.Port <= 0 || c.Catalog.Port > 65535 {
		errs = append(errs, fmt.Errorf("catalog.port out of range: %d", c.Catalog.Port))
	}
	if p, err := strconv.Atoi(c.Gateway.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port invalid: %q", c.Gateway.Port))
	}
	if c.Gateway.CatalogAddr == "" {
		errs = append(errs, errors.New("gateway.catalog_addr is required"))
	}
	if _, err := time.LoadLocation(c.Gateway.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("gateway.timezone: %w", err))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if c.Bookmarks.Path == "" {
		errs = append(errs, errors.New("bookmarks.path is required"))
	}
	return errors.Join(errs...)
}

// Location returns the timezone used to pick today's schedule tab.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Gateway.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
