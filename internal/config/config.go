// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingToken  = errors.New("BOT_TOKEN is not set")
	ErrMissingDBName = errors.New("DB_NAME is not set")
	ErrMissingSecret = errors.New("JWT_SECRET is required when HTTP_ADDR is set")
)

type DatabaseConfig struct {
	Driver   string
	Name     string
	Host     string
	Port     string
	User     string
	Password string
}

// Config is built once at startup and shared read-only.
type Config struct {
	BotToken        string
	Database        DatabaseConfig
	SuperAdmins     []int64
	RedisAddr       string
	HTTPAddr        string
	AllowedOrigins  []string
	JWTSecret       string
	CertificatesDir string
	PurgeSchedule   string
	PurgeAfter      time.Duration
	Location        *time.Location
	BroadcastPace   time.Duration
}

// IsSuperAdmin reports whether userID is listed in SUPER_ADMINS.
func (c *Config) IsSuperAdmin(userID int64) bool {
	for _, id := range c.SuperAdmins {
		if id == userID {
			return true
		}
	}
	return false
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("CERTIFICATES_DIR", ".")
	v.SetDefault("PURGE_SCHEDULE", "@daily")
	v.SetDefault("PURGE_AFTER_DAYS", 4)
	v.SetDefault("TIMEZONE", "Asia/Tashkent")
	v.SetDefault("BROADCAST_PACE_MS", 50)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		BotToken: strings.TrimSpace(v.GetString("BOT_TOKEN")),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Name:     strings.TrimSpace(v.GetString("DB_NAME")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
		},
		RedisAddr:       v.GetString("REDIS_ADDR"),
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		CertificatesDir: v.GetString("CERTIFICATES_DIR"),
		PurgeSchedule:   v.GetString("PURGE_SCHEDULE"),
		PurgeAfter:      time.Duration(v.GetInt("PURGE_AFTER_DAYS")) * 24 * time.Hour,
		BroadcastPace:   time.Duration(v.GetInt("BROADCAST_PACE_MS")) * time.Millisecond,
	}

	if cfg.BotToken == "" {
		return nil, ErrMissingToken
	}
	if cfg.Database.Name == "" {
		return nil, ErrMissingDBName
	}
	if cfg.HTTPAddr != "" && cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}

	admins, err := ParseAdmins(v.GetString("SUPER_ADMINS"))
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		log.Printf("Warning: SUPER_ADMINS is empty, admin panel is disabled")
	}
	cfg.SuperAdmins = admins

	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		log.Printf("Warning: unknown TIMEZONE %q, using UTC", v.GetString("TIMEZONE"))
		loc = time.UTC
	}
	cfg.Location = loc

	for _, origin := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	return cfg, nil
}

// ParseAdmins parses a comma separated list of Telegram user ids.
func ParseAdmins(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SUPER_ADMINS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
