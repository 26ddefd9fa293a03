// Package config loads server settings from an optional YAML file, a .env
// file and SMARTCART_* environment variables, in increasing precedence.
package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/smartcart/internal/backup"
	"github.com/dukerupert/smartcart/internal/email"
	"github.com/dukerupert/smartcart/internal/push"
	"github.com/dukerupert/smartcart/internal/shopping"
)

const envPrefix = "SMARTCART_"

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	Addr        string               `yaml:"addr"`
	Store       string               `yaml:"store"`
	DBPath      string               `yaml:"db_path"`
	LogLevel    string               `yaml:"log_level"`
	LogFormat   string               `yaml:"log_format"`
	CORSOrigins []string             `yaml:"cors_origins"`
	Auth        AuthConfig           `yaml:"auth"`
	Redis       shopping.RedisConfig `yaml:"redis"`
	Email       email.Config         `yaml:"email"`
	Push        push.Config          `yaml:"push"`
	Backup      backup.Config        `yaml:"backup"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`

	// SecretGenerated is set when no secret was configured and a random one
	// was created. Tokens then do not survive a restart.
	SecretGenerated bool `yaml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:      ":8080",
		Store:     StoreSQLite,
		DBPath:    "smartcart.db",
		LogLevel:  "info",
		LogFormat: "text",
		Auth: AuthConfig{
			AccessTTL:  24 * time.Hour,
			RefreshTTL: 30 * 24 * time.Hour,
			RateLimit:  10,
			RateWindow: time.Minute,
		},
		Redis: shopping.RedisConfig{Prefix: "smartcart"},
		Push:  push.Config{Subscriber: "noreply@smartcart.app"},
		Backup: backup.Config{
			Region:    "auto",
			Prefix:    "backups",
			Interval:  24 * time.Hour,
			Retention: 30 * 24 * time.Hour,
		},
	}
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips it. A .env file in the working directory is loaded if present
// and never overrides variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ADDR", &cfg.Addr)
	str("STORE", &cfg.Store)
	str("DB_PATH", &cfg.DBPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("REDIS_PREFIX", &cfg.Redis.Prefix)
	str("POSTMARK_TOKEN", &cfg.Email.ServerToken)
	str("EMAIL_FROM", &cfg.Email.FromEmail)
	str("APP_URL", &cfg.Email.AppURL)
	str("VAPID_PUBLIC_KEY", &cfg.Push.VAPIDPublicKey)
	str("VAPID_PRIVATE_KEY", &cfg.Push.VAPIDPrivateKey)
	str("VAPID_SUBSCRIBER", &cfg.Push.Subscriber)
	str("BACKUP_ENDPOINT", &cfg.Backup.Endpoint)
	str("BACKUP_BUCKET", &cfg.Backup.Bucket)
	str("BACKUP_REGION", &cfg.Backup.Region)
	str("BACKUP_ACCESS_KEY", &cfg.Backup.AccessKey)
	str("BACKUP_SECRET_KEY", &cfg.Backup.SecretKey)
	str("BACKUP_PREFIX", &cfg.Backup.Prefix)
	str("BACKUP_PASSPHRASE", &cfg.Backup.Passphrase)

	if v, ok := lookup(envPrefix + "CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"ACCESS_TTL", &cfg.Auth.AccessTTL},
		{"REFRESH_TTL", &cfg.Auth.RefreshTTL},
		{"RATE_WINDOW", &cfg.Auth.RateWindow},
		{"BACKUP_INTERVAL", &cfg.Backup.Interval},
		{"BACKUP_RETENTION", &cfg.Backup.Retention},
	}
	for _, d := range durations {
		v, ok := lookup(envPrefix + d.name)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, d.name, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"REDIS_DB", &cfg.Redis.DB},
		{"RATE_LIMIT", &cfg.Auth.RateLimit},
	}
	for _, n := range ints {
		v, ok := lookup(envPrefix + n.name)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, n.name, err)
		}
		*n.dst = parsed
	}
	return nil
}

// finish validates the merged values and fills in the JWT secret.
func (c *Config) finish() error {
	c.Store = strings.ToLower(c.Store)
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			return errors.New("db_path is required for the sqlite store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q: must be %q or %q", c.Store, StoreSQLite, StoreMemory)
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.Auth.RateLimit <= 0 || c.Auth.RateWindow <= 0 {
		return errors.New("auth rate limit and window must be positive")
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		return errors.New("both VAPID keys must be set to enable push")
	}
	if c.Backup.Interval < 0 || c.Backup.Retention < 0 {
		return errors.New("backup interval and retention must not be negative")
	}

	if c.Auth.JWTSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generate jwt secret: %w", err)
		}
		c.Auth.JWTSecret = hex.EncodeToString(b)
		c.Auth.SecretGenerated = true
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
