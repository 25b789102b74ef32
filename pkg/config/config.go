package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Enrollment levels. The legacy deployment used the column names of the
// electives table as level identifiers, both spellings are accepted.
const (
	LevelThird  = "third"
	LevelFourth = "fourth"

	legacyLevelThird  = "enabled_3medio"
	legacyLevelFourth = "enabled_4medio"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Enrollment EnrollmentConfig
	Mail       MailConfig
	RateLimit  RateLimitConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EnrollmentConfig holds the parameters of the open enrollment window.
type EnrollmentConfig struct {
	ProcessYear      int
	Level            string
	ElectiveCapacity int
	GECapacity       int
	LookupCacheTTL   time.Duration
	Timezone         string
}

// MailConfig configures the confirmation mailer. An empty host disables delivery.
type MailConfig struct {
	Host         string
	Port         int
	Sender       string
	Password     string
	Timeout      time.Duration
	RetryWorkers int
	RetryMax     int
	RetryDelay   time.Duration
}

// RateLimitConfig bounds submissions per client IP. Requires Redis.
type RateLimitConfig struct {
	Enabled     bool
	Submissions int
	Window      time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 8*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	level, err := NormalizeLevel(v.GetString("ENROLLMENT_LEVEL"))
	if err != nil {
		return nil, err
	}
	cfg.Enrollment = EnrollmentConfig{
		ProcessYear:      v.GetInt("PROCESS_YEAR"),
		Level:            level,
		ElectiveCapacity: firstPositive(v.GetInt("ELECTIVE_CAPACITY"), v.GetInt("CUPOS")),
		GECapacity:       firstPositive(v.GetInt("GE_CAPACITY"), v.GetInt("CUPO_FG")),
		LookupCacheTTL:   parseDuration(v.GetString("LOOKUP_CACHE_TTL"), time.Hour),
		Timezone:         v.GetString("ENROLLMENT_TIMEZONE"),
	}
	if cfg.Enrollment.ProcessYear <= 0 {
		cfg.Enrollment.ProcessYear = time.Now().Year() + 1
	}
	if cfg.Enrollment.ElectiveCapacity <= 0 || cfg.Enrollment.GECapacity <= 0 {
		return nil, fmt.Errorf("elective and GE capacities must be positive")
	}

	cfg.Mail = MailConfig{
		Host:         v.GetString("SMTP_SERVER"),
		Port:         v.GetInt("SMTP_PORT"),
		Sender:       v.GetString("SENDER_EMAIL"),
		Password:     v.GetString("SENDER_PASSWORD"),
		Timeout:      parseDuration(v.GetString("SMTP_TIMEOUT"), 10*time.Second),
		RetryWorkers: v.GetInt("MAIL_RETRY_WORKERS"),
		RetryMax:     v.GetInt("MAIL_RETRY_MAX"),
		RetryDelay:   parseDuration(v.GetString("MAIL_RETRY_DELAY"), time.Minute),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:     v.GetBool("ENABLE_RATE_LIMIT"),
		Submissions: v.GetInt("RATE_LIMIT_SUBMISSIONS"),
		Window:      parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Minute),
	}

	return cfg, nil
}

// NormalizeLevel maps accepted level spellings to LevelThird or LevelFourth.
func NormalizeLevel(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case LevelThird, legacyLevelThird, "3", "3medio":
		return LevelThird, nil
	case LevelFourth, legacyLevelFourth, "4", "4medio":
		return LevelFourth, nil
	default:
		return "", fmt.Errorf("unknown enrollment level %q", raw)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "electives")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "8h")
	v.SetDefault("JWT_ISSUER", "sma-electives-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENROLLMENT_LEVEL", LevelThird)
	v.SetDefault("PROCESS_YEAR", 0)
	v.SetDefault("ELECTIVE_CAPACITY", 0)
	v.SetDefault("CUPOS", 35)
	v.SetDefault("GE_CAPACITY", 0)
	v.SetDefault("CUPO_FG", 35)
	v.SetDefault("LOOKUP_CACHE_TTL", "1h")
	v.SetDefault("ENROLLMENT_TIMEZONE", "America/Santiago")

	v.SetDefault("SMTP_SERVER", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SENDER_EMAIL", "")
	v.SetDefault("SENDER_PASSWORD", "")
	v.SetDefault("SMTP_TIMEOUT", "10s")
	v.SetDefault("MAIL_RETRY_WORKERS", 1)
	v.SetDefault("MAIL_RETRY_MAX", 3)
	v.SetDefault("MAIL_RETRY_DELAY", "1m")

	v.SetDefault("ENABLE_RATE_LIMIT", false)
	v.SetDefault("RATE_LIMIT_SUBMISSIONS", 5)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
