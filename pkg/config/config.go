package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"3000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// 数据库配置
	DatabaseDriver string `env:"DATABASE_DRIVER"`
	PostgresDSN    string `env:"POSTGRES_DSN"`
	SQLitePath     string `env:"SQLITE_PATH"`
	AutoMigrate    bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// JWT配置
	JWTSecret string        `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"10h"`

	// CORS配置
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// 限流配置
	RateLimitEnabled  bool   `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	RateLimitRate     string `env:"RATE_LIMIT_RATE" envDefault:"100-M"`
	RateLimitStorage  string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"`
	RateLimitRedisURL string `env:"RATE_LIMIT_REDIS_URL"`

	// 监控配置
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsPath    string `env:"METRICS_PATH" envDefault:"/metrics"`
}

// LoadConfig 加载配置（支持本地和Vercel环境）
func LoadConfig() (*Config, error) {
	// 根据环境加载对应的 .env 文件，已存在的环境变量优先
	switch os.Getenv("ENVIRONMENT") {
	case "production":
		_ = godotenv.Load(".env.production")
	default:
		_ = godotenv.Load(".env.local")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	cfg.PostgresDSN = strings.TrimSpace(cfg.PostgresDSN)
	cfg.SQLitePath = strings.TrimSpace(cfg.SQLitePath)
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	for i, o := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(o)
	}
	return cfg, nil
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	cachedErr    error
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless (Vercel), it initializes once per cold start and
// reuses it across warm invocations, avoiding per-request parsing.
func GetCached() (*Config, error) {
	configOnce.Do(func() {
		cachedConfig, cachedErr = LoadConfig()
	})
	return cachedConfig, cachedErr
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}

	// 验证JWT密钥
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}

	// 验证数据库配置
	switch c.DatabaseDriver {
	case "", "memory":
		if c.IsProduction() && c.PostgresDSN == "" && c.SQLitePath == "" {
			errs = append(errs, errors.New("production requires POSTGRES_DSN or SQLITE_PATH"))
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("DATABASE_DRIVER=postgres requires POSTGRES_DSN"))
		}
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("DATABASE_DRIVER=sqlite requires SQLITE_PATH"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	if c.RateLimitEnabled {
		switch c.RateLimitStorage {
		case "memory":
		case "redis":
			if c.RateLimitRedisURL == "" {
				errs = append(errs, errors.New("RATE_LIMIT_STORAGE=redis requires RATE_LIMIT_REDIS_URL"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_STORAGE %q", c.RateLimitStorage))
		}
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// NewLogger builds the process logger: JSON in production, text otherwise.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if c.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
