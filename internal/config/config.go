// Package config holds the configuration of the cartd and catalog binaries.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abgdnv/rocketcart/pkg/config"
	"github.com/abgdnv/rocketcart/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config is the cartd configuration.
type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Grpc       config.GrpcServerConfig `koanf:"grpc"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Catalog    CatalogClientConfig     `koanf:"catalog"`
	Storage    StorageConfig           `koanf:"storage"`
	Notify     NotifyConfig            `koanf:"notify"`
	Cart       struct {
		// AdvisoryExistenceCheck set to true restores the upstream storefront's add behavior.
		AdvisoryExistenceCheck bool `koanf:"advisoryexistencecheck"`
	} `koanf:"cart"`
}

type CatalogClientConfig struct {
	BaseURL        string                      `koanf:"baseurl"`
	Timeout        time.Duration               `koanf:"timeout"`
	CircuitBreaker config.CircuitBreakerConfig `koanf:"circuitbreaker"`
}

type StorageConfig struct {
	Driver  string        `koanf:"driver"`
	Key     string        `koanf:"key"`
	Timeout time.Duration `koanf:"timeout"`
	SQLite  struct {
		Path string `koanf:"path"`
	} `koanf:"sqlite"`
	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`
	Postgres config.DatabaseConfig `koanf:"postgres"`
}

type NotifyConfig struct {
	Locale string `koanf:"locale"`
	Feed   struct {
		Size int `koanf:"size"`
	} `koanf:"feed"`
	Nats config.NATSConfig `koanf:"nats"`
}

// Defaults are applied before config.yaml and the environment.
func Defaults() map[string]any {
	return map[string]any{
		"server.port":                    8080,
		"server.maxheaderbytes":          1 << 20,
		"server.timeout.read":            "5s",
		"server.timeout.write":           "10s",
		"server.timeout.idle":            "60s",
		"server.timeout.readheader":      "2s",
		"log.level":                      "info",
		"log.format":                     "json",
		"shutdown.timeout":               "10s",
		"catalog.baseurl":                "http://localhost:3333",
		"catalog.timeout":                "3s",
		"storage.driver":                 DriverSQLite,
		"storage.timeout":                "2s",
		"storage.sqlite.path":            "rocketcart.db",
		"notify.locale":                  "en",
		"notify.feed.size":               100,
		"notify.nats.timeout":            "5s",
		"notify.nats.subject":            "cart.notifications.error",
		"notify.nats.stream":             "CART_NOTIFICATIONS",
		"catalog.circuitbreaker.enabled": false,
	}
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Grpc.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	b.WriteString(c.Telemetry.String())

	b.WriteString("\n--- Catalog ---\n")
	b.WriteString(fmt.Sprintf("  baseurl: %s\n", c.Catalog.BaseURL))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Catalog.Timeout))
	b.WriteString(c.Catalog.CircuitBreaker.String())

	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Storage.Driver))
	b.WriteString(fmt.Sprintf("  key: %s\n", c.Storage.Key))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Storage.Timeout))
	switch c.Storage.Driver {
	case DriverSQLite:
		b.WriteString(fmt.Sprintf("  sqlite.path: %s\n", c.Storage.SQLite.Path))
	case DriverRedis:
		b.WriteString(fmt.Sprintf("  redis.addr: %s\n", config.MaskURL(c.Storage.Redis.Addr)))
		b.WriteString(fmt.Sprintf("  redis.db: %d\n", c.Storage.Redis.DB))
	case DriverPostgres:
		b.WriteString(fmt.Sprintf("  postgres.url: %s\n", config.MaskURL(c.Storage.Postgres.URL)))
	}

	b.WriteString("\n--- Notifications ---\n")
	b.WriteString(fmt.Sprintf("  locale: %s\n", c.Notify.Locale))
	b.WriteString(fmt.Sprintf("  feed.size: %d\n", c.Notify.Feed.Size))
	b.WriteString(c.Notify.Nats.String())

	b.WriteString("\n--- Cart ---\n")
	b.WriteString(fmt.Sprintf("  advisoryexistencecheck: %t\n", c.Cart.AdvisoryExistenceCheck))
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if err := c.Shutdown.Validate(); err != nil {
		return err
	}
	if err := c.Grpc.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return c.Notify.Validate()
}

func (c *CatalogClientConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("catalog.baseurl must be an absolute http(s) URL: %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be greater than 0")
	}
	return c.CircuitBreaker.Validate()
}

func (c *StorageConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("storage.timeout must be greater than 0")
	}
	switch c.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is not configured")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is not configured")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("storage.redis.db must not be negative")
		}
	case DriverPostgres:
		if err := c.Postgres.Validate(); err != nil {
			return fmt.Errorf("storage.postgres: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.Driver)
	}
	return nil
}

func (c *NotifyConfig) Validate() error {
	switch c.Locale {
	case "", "en", "pt-BR":
	default:
		return fmt.Errorf("unsupported notify.locale: %q", c.Locale)
	}
	if c.Feed.Size <= 0 {
		return fmt.Errorf("notify.feed.size must be greater than 0")
	}
	return c.Nats.Validate()
}

var _ configloader.Validator = (*CatalogConfig)(nil)

// CatalogConfig is the configuration of the fixture catalog server.
type CatalogConfig struct {
	HTTPServer config.HTTPConfig     `koanf:"server"`
	Log        config.LogConfig      `koanf:"log"`
	Shutdown   config.ShutdownConfig `koanf:"shutdown"`
	SeedFile   string                `koanf:"seedfile"`
}

func CatalogDefaults() map[string]any {
	return map[string]any{
		"server.port":               3333,
		"server.maxheaderbytes":     1 << 20,
		"server.timeout.read":       "5s",
		"server.timeout.write":      "10s",
		"server.timeout.idle":       "60s",
		"server.timeout.readheader": "2s",
		"log.level":                 "info",
		"log.format":                "json",
		"shutdown.timeout":          "5s",
		"seedfile":                  "server.json",
	}
}

func (c *CatalogConfig) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.Shutdown.String())
	b.WriteString(fmt.Sprintf("\n  seedfile: %s\n", c.SeedFile))
	return b.String()
}

func (c *CatalogConfig) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Shutdown.Validate(); err != nil {
		return err
	}
	if c.SeedFile == "" {
		return fmt.Errorf("seedfile is not configured")
	}
	return nil
}
