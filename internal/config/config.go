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

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WhatsAppConfig struct {
	BaseURL       string        `yaml:"base_url"`
	PhoneNumberID string        `yaml:"phone_number_id"`
	AccessToken   string        `yaml:"access_token"`
	VerifyToken   string        `yaml:"verify_token"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
}

type QueueConfig struct {
	// RatePerSecond is the per-category ceiling of jobs admitted to
	// in-flight within one second, shared by all workers of the category.
	RatePerSecond int           `yaml:"rate_per_second"`
	MaxRetries    int           `yaml:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	Workers       int           `yaml:"workers"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	// StaleAfter is how long an in-flight job may go without an outcome
	// before it is requeued as orphaned.
	StaleAfter time.Duration `yaml:"stale_after"`
}

type SchedulerConfig struct {
	// TickCron gates scheduler evaluation; each schedule then matches its
	// own send hour against the tick.
	TickCron string `yaml:"tick_cron"`
}

type RetentionConfig struct {
	Window     time.Duration `yaml:"window"`
	KeepRecent int           `yaml:"keep_recent"`
	SweepCron  string        `yaml:"sweep_cron"`
}

type WebConfig struct {
	Port        int    `yaml:"port"`
	AdminSecret string `yaml:"admin_secret"`
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	DefaultModel string `yaml:"default_model"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
	Queue     QueueConfig     `yaml:"queue"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Retention RetentionConfig `yaml:"retention"`
	Web       WebConfig       `yaml:"web"`
	AI        AIConfig        `yaml:"ai"`

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

	// Secrets may come from the environment instead of the file.
	if v := os.Getenv("WHATSAPP_ACCESS_TOKEN"); v != "" {
		cfg.WhatsApp.AccessToken = v
	}
	if v := os.Getenv("WHATSAPP_VERIFY_TOKEN"); v != "" {
		cfg.WhatsApp.VerifyToken = v
	}
	if v := os.Getenv("ADMIN_API_SECRET"); v != "" {
		cfg.Web.AdminSecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}

	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.WhatsApp.VerifyToken == "" {
		return nil, errors.New("whatsapp.verify_token is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.WhatsApp.BaseURL == "" {
		cfg.WhatsApp.BaseURL = "https://graph.facebook.com/v19.0"
	}
	if cfg.WhatsApp.SendTimeout <= 0 {
		cfg.WhatsApp.SendTimeout = 60 * time.Second
	}
	if cfg.Queue.RatePerSecond <= 0 {
		cfg.Queue.RatePerSecond = 12
	}
	if cfg.Queue.MaxRetries <= 0 {
		cfg.Queue.MaxRetries = 3
	}
	if cfg.Queue.BaseDelay <= 0 {
		cfg.Queue.BaseDelay = 60 * time.Second
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 5
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = 500 * time.Millisecond
	}
	if cfg.Queue.StaleAfter <= 0 {
		cfg.Queue.StaleAfter = 5 * time.Minute
	}
	if cfg.Scheduler.TickCron == "" {
		cfg.Scheduler.TickCron = "0 * * * *"
	}
	if cfg.Retention.Window <= 0 {
		cfg.Retention.Window = 30 * 24 * time.Hour
	}
	if cfg.Retention.KeepRecent <= 0 {
		cfg.Retention.KeepRecent = 5
	}
	if cfg.Retention.SweepCron == "" {
		cfg.Retention.SweepCron = "30 3 * * *"
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8080
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
}
