// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JobServiceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// TurnConfig holds the coordinator tunables. Staleness and the retry
// budgets are product-tuned, not contractual; change them freely.
type TurnConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	Staleness        time.Duration `yaml:"staleness"`          // orphan threshold for unknown jobs
	OrphanRetries    int           `yaml:"orphan_retries"`     // 404s tolerated on a fresh record
	TransientRetries int           `yaml:"transient_retries"`  // 5xx/timeouts tolerated before failing
	LockTimeout      time.Duration `yaml:"lock_timeout"`       // how long a submit waits for admission
	LockTTL          time.Duration `yaml:"lock_ttl"`           // hard lifetime of a held lock
	HistoryWindow    time.Duration `yaml:"history_dedup_window"` // time tolerance when deduping history
}

type Config struct {
	UserID     string           `yaml:"user_id"`
	RoleField  string           `yaml:"role"`
	Log        LogConfig        `yaml:"log"`
	Admin      AdminConfig      `yaml:"admin"`
	Redis      RedisConfig      `yaml:"redis"`
	JobService JobServiceConfig `yaml:"job_service"`
	Turn       TurnConfig       `yaml:"turn"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string = ""
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode (in-memory store, no redis)")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Turn = normalizeTurn(cfg.Turn)
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.RoleField == "" {
		cfg.RoleField = "student"
	}
	if cfg.JobService.Timeout <= 0 {
		cfg.JobService.Timeout = 15 * time.Second
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 9091
	}

	// Minimal validation
	if cfg.UserID == "" {
		return nil, errors.New("user_id is required")
	}
	if cfg.JobService.BaseURL == "" {
		return nil, errors.New("job_service.base_url is required")
	}
	if cfg.Redis.URL == "" && !dev {
		return nil, errors.New("redis.url is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTurn(t TurnConfig) TurnConfig {
	if t.PollInterval <= 0 {
		t.PollInterval = 2 * time.Second
	}
	if t.Staleness <= 0 {
		t.Staleness = 90 * time.Second
	}
	if t.OrphanRetries <= 0 {
		t.OrphanRetries = 3
	}
	if t.TransientRetries <= 0 {
		t.TransientRetries = 5
	}
	if t.LockTimeout <= 0 {
		t.LockTimeout = 3 * time.Second
	}
	if t.LockTTL <= 0 {
		// Slightly past a slow start round-trip so a dead holder frees up.
		t.LockTTL = 20 * time.Second
	}
	if t.HistoryWindow <= 0 {
		t.HistoryWindow = 2 * time.Minute
	}
	return t
}
