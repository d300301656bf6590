package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Auth        AuthConfig        `yaml:"auth"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Sweep       SweepConfig       `yaml:"sweep"`
	Reports     ReportsConfig     `yaml:"reports"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Redis       RedisConfig       `yaml:"redis"`
	Tiers       []TierConfig      `yaml:"tiers"`
	Users       []User            `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port" env:"SLA_SERVER_PORT"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"SLA_LOG_LEVEL"`
	Format string `yaml:"format" env:"SLA_LOG_FORMAT"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret" env:"SLA_JWT_SECRET"`
	TokenExpireHours int    `yaml:"token_expire_hours" env:"SLA_TOKEN_EXPIRE_HOURS"`
}

// EligibilityConfig points at the upstream profile source the eligibility
// gate fans out to.
type EligibilityConfig struct {
	BaseURL        string `yaml:"base_url" env:"SLA_ELIGIBILITY_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"SLA_ELIGIBILITY_TIMEOUT_SECONDS"`
}

type SweepConfig struct {
	Enabled       bool `yaml:"enabled" env:"SLA_SWEEP_ENABLED"`
	IntervalHours int  `yaml:"interval_hours" env:"SLA_SWEEP_INTERVAL_HOURS"`
}

// ReportsConfig configures the MinIO bucket that receives violation
// analysis reports. Reporting is disabled when the endpoint is empty.
type ReportsConfig struct {
	Endpoint   string `yaml:"endpoint" env:"SLA_REPORTS_ENDPOINT"`
	AccessKey  string `yaml:"access_key" env:"SLA_REPORTS_ACCESS_KEY"`
	SecretKey  string `yaml:"secret_key" env:"SLA_REPORTS_SECRET_KEY"`
	Bucket     string `yaml:"bucket" env:"SLA_REPORTS_BUCKET"`
	UseSSL     bool   `yaml:"use_ssl" env:"SLA_REPORTS_USE_SSL"`
	ExpireDays int    `yaml:"expire_days" env:"SLA_REPORTS_EXPIRE_DAYS"`
}

// ArchiveConfig configures the Postgres audit archive. Archiving is
// disabled when the DSN is empty.
type ArchiveConfig struct {
	DSN string `yaml:"dsn" env:"SLA_ARCHIVE_DSN"`
}

// RedisConfig configures the cross-process sweep lock. A local in-process
// lock is used when the address is empty.
type RedisConfig struct {
	Addr           string `yaml:"addr" env:"SLA_REDIS_ADDR"`
	LockKey        string `yaml:"lock_key" env:"SLA_REDIS_LOCK_KEY"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds" env:"SLA_REDIS_LOCK_TTL_SECONDS"`
}

// TierConfig overrides pieces of the built-in tier policy table.
type TierConfig struct {
	Name                   string  `yaml:"name"`
	GuaranteedInterviews   int     `yaml:"guaranteed_interviews"`
	DeadlineDays           int     `yaml:"deadline_days"`
	MinConfidenceThreshold float64 `yaml:"min_confidence_threshold"`
	Price                  float64 `yaml:"price"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UserID   string `yaml:"user_id"`
	Role     string `yaml:"role"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Environment variables override file values
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env overrides: %w", err)
	}

	applyDefaults(&cfg)

	GlobalConfig = &cfg
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Eligibility.TimeoutSeconds == 0 {
		cfg.Eligibility.TimeoutSeconds = 10
	}
	if cfg.Sweep.IntervalHours == 0 {
		cfg.Sweep.IntervalHours = 24
	}
	if cfg.Reports.ExpireDays == 0 {
		cfg.Reports.ExpireDays = 7
	}
	if cfg.Redis.LockKey == "" {
		cfg.Redis.LockKey = "sla:sweep:lock"
	}
	if cfg.Redis.LockTTLSeconds == 0 {
		cfg.Redis.LockTTLSeconds = 300
	}
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
