package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smartcart.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Store != StoreSQLite || cfg.DBPath != "smartcart.db" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Auth.AccessTTL != 24*time.Hour {
		t.Errorf("access ttl = %v", cfg.Auth.AccessTTL)
	}
	if !cfg.Auth.SecretGenerated || len(cfg.Auth.JWTSecret) != 64 {
		t.Errorf("expected a generated 32-byte hex secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Push.Enabled() {
		t.Error("push should be disabled by default")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, `
addr: ":9000"
store: memory
log_level: debug
cors_origins: ["https://app.example.com"]
auth:
  jwt_secret: file-secret
  access_ttl: 15m
redis:
  addr: localhost:6379
  db: 2
email:
  server_token: pm-token
  from_email: lists@example.com
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.Store != StoreMemory || cfg.LogLevel != "debug" {
		t.Errorf("top-level fields not applied: %+v", cfg)
	}
	if cfg.Auth.JWTSecret != "file-secret" || cfg.Auth.SecretGenerated {
		t.Errorf("jwt secret = %q, generated = %v", cfg.Auth.JWTSecret, cfg.Auth.SecretGenerated)
	}
	if cfg.Auth.AccessTTL != 15*time.Minute {
		t.Errorf("access ttl = %v, want 15m", cfg.Auth.AccessTTL)
	}
	if cfg.Auth.RefreshTTL != 30*24*time.Hour {
		t.Errorf("refresh ttl default lost: %v", cfg.Auth.RefreshTTL)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 || cfg.Redis.Prefix != "smartcart" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Email.ServerToken != "pm-token" || cfg.Email.FromEmail != "lists@example.com" {
		t.Errorf("email = %+v", cfg.Email)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("cors = %v", cfg.CORSOrigins)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "addr: \":9000\"\nauth:\n  jwt_secret: file-secret\n")
	t.Setenv("SMARTCART_ADDR", ":7000")
	t.Setenv("SMARTCART_JWT_SECRET", "env-secret")
	t.Setenv("SMARTCART_REFRESH_TTL", "72h")
	t.Setenv("SMARTCART_RATE_LIMIT", "3")
	t.Setenv("SMARTCART_CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("SMARTCART_VAPID_PUBLIC_KEY", "pub")
	t.Setenv("SMARTCART_VAPID_PRIVATE_KEY", "priv")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("addr = %q, want env value", cfg.Addr)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("jwt secret = %q, want env value", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.RefreshTTL != 72*time.Hour {
		t.Errorf("refresh ttl = %v", cfg.Auth.RefreshTTL)
	}
	if cfg.Auth.RateLimit != 3 {
		t.Errorf("rate limit = %d", cfg.Auth.RateLimit)
	}
	if strings.Join(cfg.CORSOrigins, "|") != "https://a.example|https://b.example" {
		t.Errorf("cors = %v", cfg.CORSOrigins)
	}
	if !cfg.Push.Enabled() {
		t.Error("push should be enabled with both keys")
	}
}

func TestLoadBackup(t *testing.T) {
	path := writeFile(t, "backup:\n  bucket: snaps\n  endpoint: https://s3.example.com\n")
	t.Setenv("SMARTCART_BACKUP_ACCESS_KEY", "ak")
	t.Setenv("SMARTCART_BACKUP_SECRET_KEY", "sk")
	t.Setenv("SMARTCART_BACKUP_PASSPHRASE", "pass")
	t.Setenv("SMARTCART_BACKUP_RETENTION", "168h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Backup.Enabled() {
		t.Errorf("backup should be enabled: %+v", cfg.Backup)
	}
	if cfg.Backup.Bucket != "snaps" || cfg.Backup.Prefix != "backups" || cfg.Backup.Region != "auto" {
		t.Errorf("backup = %+v", cfg.Backup)
	}
	if cfg.Backup.Interval != 24*time.Hour || cfg.Backup.Retention != 7*24*time.Hour {
		t.Errorf("interval = %v, retention = %v", cfg.Backup.Interval, cfg.Backup.Retention)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "unknown field", yaml: "colour: blue\n"},
		{name: "unknown store", yaml: "store: postgres\n"},
		{name: "bad duration", env: map[string]string{"SMARTCART_ACCESS_TTL": "soon"}},
		{name: "bad int", env: map[string]string{"SMARTCART_REDIS_DB": "two"}},
		{name: "half vapid pair", env: map[string]string{"SMARTCART_VAPID_PUBLIC_KEY": "pub"}},
		{name: "zero ttl", yaml: "auth:\n  access_ttl: 0s\n"},
		{name: "negative backup interval", env: map[string]string{"SMARTCART_BACKUP_INTERVAL": "-1h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, tt.yaml)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}
