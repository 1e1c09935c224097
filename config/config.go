package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultJWTSecret = "change-me-in-production"

type Config struct {
	Port       string
	Env        string
	MongoURI   string
	DBName     string
	JWTSecret  string
	JWTExpire  time.Duration
	CookieDays int
	BcryptCost int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromName     string
	FromEmail    string

	S3Bucket      string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string
	MaxUploadSize int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins        []string
	RateLimitPerMinute int
}

// Production reports whether cookies must be marked Secure.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// CookieExpire is the lifetime of the token cookie.
func (c *Config) CookieExpire() time.Duration {
	return time.Duration(c.CookieDays) * 24 * time.Hour
}

func Load() (*Config, error) {
	var errs []error
	intEnv := func(key string, fallback int) int {
		v := getEnv(key, "")
		if v == "" {
			return fallback
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return fallback
		}
		return n
	}

	jwtExpire, err := ParseDuration(getEnv("JWT_EXPIRE", "30d"))
	if err != nil {
		errs = append(errs, fmt.Errorf("JWT_EXPIRE: %w", err))
	}

	cfg := &Config{
		Port:               getEnv("PORT", "5000"),
		Env:                getEnv("ENV", "development"),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:             getEnv("MONGO_DB", "devcamper"),
		JWTSecret:          getEnv("JWT_SECRET", defaultJWTSecret),
		JWTExpire:          jwtExpire,
		CookieDays:         intEnv("JWT_COOKIE_EXPIRE", 30),
		BcryptCost:         intEnv("BCRYPT_COST", 10),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           intEnv("SMTP_PORT", 587),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		FromName:           getEnv("FROM_NAME", "DevCamper"),
		FromEmail:          getEnv("FROM_EMAIL", "noreply@devcamper.io"),
		S3Bucket:           getEnv("AWS_S3_BUCKET", ""),
		S3Region:           getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:        getEnv("AWS_SECRET_ACCESS_KEY", ""),
		MaxUploadSize:      int64(intEnv("MAX_FILE_UPLOAD", 1000000)),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            intEnv("REDIS_DB", 0),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
		RateLimitPerMinute: intEnv("RATE_LIMIT_PER_MINUTE", 10),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate rejects settings that are unsafe or unusable.
func (c *Config) Validate() error {
	if c.Production() && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set to a strong secret in production")
	}
	if c.JWTExpire <= 0 {
		return errors.New("JWT_EXPIRE must be positive")
	}
	if c.CookieDays <= 0 {
		return errors.New("JWT_COOKIE_EXPIRE must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31 (got %d)", c.BcryptCost)
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("MAX_FILE_UPLOAD must be positive")
	}
	return nil
}

// LogSummary logs which optional backends are configured, without secret values.
func (c *Config) LogSummary(log *slog.Logger) {
	log.Info("config loaded",
		"env", c.Env,
		"port", c.Port,
		"db", c.DBName,
		"smtp", c.SMTPHost != "",
		"s3", c.S3Bucket != "",
		"redis", c.RedisAddr != "",
	)
}

// ParseDuration accepts Go durations ("12h") and whole days ("30d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
