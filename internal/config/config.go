// Package config loads gatepass settings from defaults, an optional YAML file
// and GATEPASS_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "GATEPASS"

type Config struct {
	Env     string        `mapstructure:"env"` // "dev" | "prod"
	HTTP    HTTPConfig    `mapstructure:"http"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Store   StoreConfig   `mapstructure:"store"`
	Gate    GateConfig    `mapstructure:"gate"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Events  EventsConfig  `mapstructure:"events"`
	Printer PrinterConfig `mapstructure:"printer"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// HTTPConfig: QRPreviewSize is the PNG edge embedded in issue responses, 0
// to leave it out.
type HTTPConfig struct {
	Addr          string `mapstructure:"addr"`
	QRPreviewSize int    `mapstructure:"qr_preview_size"`
}

// GRPCConfig: an empty Addr disables the gRPC listener.
type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"` // sqlite | postgres | memory
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

type GateConfig struct {
	Issuer               string `mapstructure:"issuer"`
	DefaultExpiryMinutes int    `mapstructure:"default_expiry_minutes"`
	DefaultMaxScans      int    `mapstructure:"default_max_scans"`
	Timezone             string `mapstructure:"timezone"`
}

// Location resolves Timezone, falling back to UTC.
func (g GateConfig) Location() *time.Location {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RedisConfig: an empty Addr disables event publishing and print jobs.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EventsConfig struct {
	Channel string `mapstructure:"channel"`
	Buffer  int    `mapstructure:"buffer"`
}

// PrinterConfig: QRMode is "native" (printer draws the code) or "bitmap".
type PrinterConfig struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
	QRMode  string        `mapstructure:"qr_mode"`
}

type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type MetricsConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.qr_preview_size", 256)
	v.SetDefault("grpc.addr", ":9090")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "./data/gatepass.db")
	v.SetDefault("store.postgres_url", "")

	v.SetDefault("gate.issuer", "GatePass")
	v.SetDefault("gate.default_expiry_minutes", 60)
	v.SetDefault("gate.default_max_scans", 2)
	v.SetDefault("gate.timezone", "UTC")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("events.channel", "gatepass:events")
	v.SetDefault("events.buffer", 256)

	v.SetDefault("printer.addr", "")
	v.SetDefault("printer.timeout", 5*time.Second)
	v.SetDefault("printer.qr_mode", "native")

	v.SetDefault("worker.concurrency", 4)

	v.SetDefault("metrics.refresh_interval", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
}

// Load reads path (if non-empty) on top of the defaults and applies env
// overrides such as GATEPASS_GATE_ISSUER.  Out-of-range values fail soft to
// their defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != "dev" && c.Env != "prod" {
		c.Env = "dev"
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		c.Store.Driver = "sqlite"
	}

	if c.Gate.Issuer == "" {
		c.Gate.Issuer = "GatePass"
	}
	if c.Gate.DefaultExpiryMinutes < 0 {
		c.Gate.DefaultExpiryMinutes = 60
	}
	if c.Gate.DefaultMaxScans < 1 {
		c.Gate.DefaultMaxScans = 2
	}
	if c.HTTP.QRPreviewSize < 0 {
		c.HTTP.QRPreviewSize = 0
	}
	if c.Events.Buffer <= 0 {
		c.Events.Buffer = 256
	}
	c.Printer.QRMode = strings.ToLower(strings.TrimSpace(c.Printer.QRMode))
	if c.Printer.QRMode != "bitmap" {
		c.Printer.QRMode = "native"
	}
	if c.Printer.Timeout <= 0 {
		c.Printer.Timeout = 5 * time.Second
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 4
	}
	if c.Metrics.RefreshInterval < 0 {
		c.Metrics.RefreshInterval = 0
	}
}

var ErrPostgresURL = errors.New("store.postgres_url is required for the postgres driver")

// Validate reports settings that make startup impossible.
func (c Config) Validate() error {
	if c.Store.Driver == "postgres" && c.Store.PostgresURL == "" {
		return ErrPostgresURL
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	return nil
}
