package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	SES       SESConfig       `yaml:"ses"`
	Bedrock   BedrockConfig   `yaml:"bedrock"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Tracking  TrackingConfig  `yaml:"tracking"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds Postgres connection settings. When URL is empty the
// process falls back to the in-memory store.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings for the send rate limiter. When Addr is
// empty, rate limiting is disabled.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SESConfig holds AWS SES v2 credentials for the production sender.
type SESConfig struct {
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	Region         string `yaml:"region"`
	FromName       string `yaml:"from_name"`
	FromEmail      string `yaml:"from_email"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// BedrockConfig holds AWS Bedrock settings for personalization and scoring.
type BedrockConfig struct {
	Enabled bool   `yaml:"enabled"`
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

// DispatchConfig holds bulk-send pacing settings.
type DispatchConfig struct {
	BatchSize      int `yaml:"batch_size"`
	BatchDelayMS   int `yaml:"batch_delay_ms"`
	SendsPerSecond int `yaml:"sends_per_second"`
	SendsPerMinute int `yaml:"sends_per_minute"`
	DailySendLimit int `yaml:"daily_send_limit"`
}

// SchedulerConfig holds the periodic task intervals. Zero values take the
// production defaults in Load.
type SchedulerConfig struct {
	PromoteInterval    time.Duration `yaml:"promote_interval"`
	EngagementInterval time.Duration `yaml:"engagement_interval"`
	ReminderInterval   time.Duration `yaml:"reminder_interval"`
	PruneInterval      time.Duration `yaml:"prune_interval"`
	RetentionDays      int           `yaml:"retention_days"`
	ActivityWindowDays int           `yaml:"activity_window_days"`
}

// TrackingConfig holds settings for open/click tracking URLs.
type TrackingConfig struct {
	BaseURL    string `yaml:"base_url"`
	SigningKey string `yaml:"signing_key"`
}

// Default returns a configuration with every default applied and no file
// read at all.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and parses the configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-east-1"
	}
	if cfg.Bedrock.ModelID == "" {
		cfg.Bedrock.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Dispatch.BatchSize == 0 {
		cfg.Dispatch.BatchSize = 10
	}
	if cfg.Dispatch.BatchDelayMS == 0 {
		cfg.Dispatch.BatchDelayMS = 1000
	}
	if cfg.Dispatch.SendsPerSecond == 0 {
		cfg.Dispatch.SendsPerSecond = 50
	}
	if cfg.Dispatch.SendsPerMinute == 0 {
		cfg.Dispatch.SendsPerMinute = 1000
	}
	if cfg.Dispatch.DailySendLimit == 0 {
		cfg.Dispatch.DailySendLimit = 100000
	}
	if cfg.Scheduler.PromoteInterval == 0 {
		cfg.Scheduler.PromoteInterval = time.Minute
	}
	if cfg.Scheduler.EngagementInterval == 0 {
		cfg.Scheduler.EngagementInterval = 24 * time.Hour
	}
	if cfg.Scheduler.ReminderInterval == 0 {
		cfg.Scheduler.ReminderInterval = time.Hour
	}
	if cfg.Scheduler.PruneInterval == 0 {
		cfg.Scheduler.PruneInterval = 7 * 24 * time.Hour
	}
	if cfg.Scheduler.RetentionDays == 0 {
		cfg.Scheduler.RetentionDays = 90
	}
	if cfg.Scheduler.ActivityWindowDays == 0 {
		cfg.Scheduler.ActivityWindowDays = 30
	}
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = "http://localhost:8080"
	}
	if cfg.Tracking.SigningKey == "" {
		cfg.Tracking.SigningKey = "eventpulse-signing-key-dev"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first, so secrets can live in .env
// locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = Default()
	} else if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("FROM_EMAIL"); v != "" {
		cfg.SES.FromEmail = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Bedrock.ModelID = v
	}
	if v := os.Getenv("BEDROCK_ENABLED"); v != "" {
		cfg.Bedrock.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("TRACKING_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("SIGNING_KEY"); v != "" {
		cfg.Tracking.SigningKey = v
	}

	return cfg, nil
}
