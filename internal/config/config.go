package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

// Duration accepts "30s" / "2m" style values in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type ServerConfig struct {
	Port int `yaml:"port"`
}

type AdminConfig struct {
	Port       int      `yaml:"port"`
	APIKey     string   `yaml:"api_key"`
	JWTSecret  string   `yaml:"jwt_secret"`
	SessionTTL Duration `yaml:"session_ttl"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LimitsConfig struct {
	ValidatePerMinute int `yaml:"validate_per_minute"`
	WebhookPerMinute  int `yaml:"webhook_per_minute"`
	SweepPerMinute    int `yaml:"sweep_per_minute"`
	WindowMinutes     int `yaml:"window_minutes"`
}

type ReservationConfig struct {
	TTLMinutes          int `yaml:"ttl_minutes"`
	DefaultGraceMinutes int `yaml:"default_grace_minutes"`
}

type ReaperConfig struct {
	Interval  Duration `yaml:"interval"`
	BatchSize int      `yaml:"batch_size"`
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Admin       AdminConfig       `yaml:"admin"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Limits      LimitsConfig      `yaml:"limits"`
	Reservation ReservationConfig `yaml:"reservation"`
	Reaper      ReaperConfig      `yaml:"reaper"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8081
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = Duration(30 * time.Minute)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Limits.ValidatePerMinute <= 0 {
		cfg.Limits.ValidatePerMinute = 10
	}
	if cfg.Limits.WebhookPerMinute <= 0 {
		cfg.Limits.WebhookPerMinute = 120
	}
	if cfg.Limits.SweepPerMinute <= 0 {
		cfg.Limits.SweepPerMinute = 6
	}
	if cfg.Limits.WindowMinutes <= 0 {
		cfg.Limits.WindowMinutes = 1
	}
	if cfg.Reservation.TTLMinutes <= 0 {
		cfg.Reservation.TTLMinutes = 15
	}
	if cfg.Reservation.DefaultGraceMinutes <= 0 {
		cfg.Reservation.DefaultGraceMinutes = 30
	}
	if cfg.Reaper.Interval <= 0 {
		cfg.Reaper.Interval = Duration(2 * time.Minute)
	}
	if cfg.Reaper.BatchSize <= 0 {
		cfg.Reaper.BatchSize = 100
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Admin.JWTSecret == "" {
		return nil, errors.New("admin.jwt_secret is required")
	}
	if cfg.Admin.APIKey == "" {
		return nil, errors.New("admin.api_key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
