package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vaultfm/vaultfm/internal/constants"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Upload.MaxSizeBytes != constants.MaxUploadSize {
		t.Errorf("MaxSizeBytes = %d, want %d", cfg.Upload.MaxSizeBytes, constants.MaxUploadSize)
	}
	if cfg.Upload.SingleShotThresholdBytes != constants.SingleShotThreshold {
		t.Errorf("SingleShotThresholdBytes = %d, want %d", cfg.Upload.SingleShotThresholdBytes, constants.SingleShotThreshold)
	}
	if cfg.Poller.Interval != 5*time.Second {
		t.Errorf("Poller.Interval = %v, want 5s", cfg.Poller.Interval)
	}
	if !cfg.Poller.Enabled {
		t.Error("expected poller to be enabled by default")
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv(EnvServerURL, "")
	t.Setenv(EnvToken, "")
	t.Setenv(EnvPollInterval, "")
	path := filepath.Join(t.TempDir(), "config")

	cfg := New()
	cfg.ServerURL = "https://files.example.com/api"
	cfg.Token = "secret-token"
	cfg.Upload.ChunkSizeBytes = 5 * 1024 * 1024
	cfg.Poller.Interval = 10 * time.Second
	cfg.Notify = map[string]string{"enabled": "false"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ServerURL != cfg.ServerURL {
		t.Errorf("ServerURL = %q, want %q", loaded.ServerURL, cfg.ServerURL)
	}
	if loaded.Token != cfg.Token {
		t.Errorf("Token = %q, want %q", loaded.Token, cfg.Token)
	}
	if loaded.Upload.ChunkSizeBytes != cfg.Upload.ChunkSizeBytes {
		t.Errorf("ChunkSizeBytes = %d, want %d", loaded.Upload.ChunkSizeBytes, cfg.Upload.ChunkSizeBytes)
	}
	if loaded.Poller.Interval != 10*time.Second {
		t.Errorf("Poller.Interval = %v, want 10s", loaded.Poller.Interval)
	}
	if loaded.Notify["enabled"] != "false" {
		t.Errorf("Notify[enabled] = %q, want %q", loaded.Notify["enabled"], "false")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv(EnvServerURL, "")
	t.Setenv(EnvToken, "")
	t.Setenv(EnvPollInterval, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerURL != New().ServerURL {
		t.Errorf("ServerURL = %q, want default", cfg.ServerURL)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvServerURL, "https://env.example.com")
	t.Setenv(EnvToken, "env-token")
	t.Setenv(EnvPollInterval, "2s")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerURL != "https://env.example.com" {
		t.Errorf("ServerURL = %q, want env override", cfg.ServerURL)
	}
	if cfg.Token != "env-token" {
		t.Errorf("Token = %q, want env override", cfg.Token)
	}
	if cfg.Poller.Interval != 2*time.Second {
		t.Errorf("Poller.Interval = %v, want 2s", cfg.Poller.Interval)
	}
}

func TestEnvBadInterval(t *testing.T) {
	t.Setenv(EnvPollInterval, "soon")
	if _, err := Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for unparsable interval")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := New()
		c.ServerURL = "https://files.example.com"
		c.Token = "t"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing url", func(c *Config) { c.ServerURL = " " }, ErrMissingServerURL},
		{"relative url", func(c *Config) { c.ServerURL = "files.example.com" }, ErrInvalidServerURL},
		{"missing token", func(c *Config) { c.Token = "" }, ErrMissingToken},
		{"threshold above max", func(c *Config) { c.Upload.SingleShotThresholdBytes = c.Upload.MaxSizeBytes + 1 }, ErrInvalidUploadSizes},
		{"zero chunk", func(c *Config) { c.Upload.ChunkSizeBytes = 0 }, ErrInvalidUploadSizes},
		{"fast poller", func(c *Config) { c.Poller.Interval = 100 * time.Millisecond }, ErrInvalidInterval},
		{"fast poller disabled", func(c *Config) {
			c.Poller.Enabled = false
			c.Poller.Interval = 0
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserIDFromToken(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-42"})
	signed, err := tok.SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	id, err := UserIDFromToken(signed)
	if err != nil {
		t.Fatalf("UserIDFromToken failed: %v", err)
	}
	if id != "user-42" {
		t.Errorf("id = %q, want %q", id, "user-42")
	}

	cfg := &Config{Token: "not-a-jwt"}
	if got := cfg.UserID(); got != "anonymous" {
		t.Errorf("UserID() = %q, want anonymous", got)
	}
}

func TestRedactedToken(t *testing.T) {
	cfg := &Config{Token: "abcdefgh1234"}
	if got := cfg.RedactedToken(); got != "********1234" {
		t.Errorf("RedactedToken() = %q, want %q", got, "********1234")
	}
}
