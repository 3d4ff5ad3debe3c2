// Package config provides configuration management for vaultfm.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/vaultfm/vaultfm/internal/constants"
)

// Config is the client configuration.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\vaultfm\config
//   - Unix: ~/.config/vaultfm/config
//
// INI format:
//
//	[server]
//	url = https://files.example.com/api
//	token = <bearer token>
//	log_level = info
//
//	[upload]
//	max_size_bytes = 268435456
//	single_shot_threshold_bytes = 94371840
//	chunk_size_bytes = 10485760
//
//	[poller]
//	enabled = true
//	interval_seconds = 5
//
//	[notify]
//	enabled = true
//	show_infected = true
//	show_upload_complete = false
//
// Values from the file are overridden by VAULTFM_* environment variables,
// which may themselves come from a .env file in the working directory.
type Config struct {
	ServerURL string
	Token     string
	LogLevel  string

	Upload UploadConfig
	Poller PollerConfig

	// Notify holds the raw [notify] keys, parsed by the notify package.
	Notify map[string]string
}

// UploadConfig holds the upload strategy thresholds.
type UploadConfig struct {
	// MaxSizeBytes - larger files are rejected. A file of exactly this size is accepted.
	MaxSizeBytes int64
	// SingleShotThresholdBytes - files strictly below use the multipart endpoint.
	SingleShotThresholdBytes int64
	// ChunkSizeBytes - part size of the chunked protocol.
	ChunkSizeBytes int64
}

// PollerConfig controls the scan status poller.
type PollerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Validation errors
var (
	ErrMissingServerURL   = errors.New("server url is required")
	ErrInvalidServerURL   = errors.New("server url must be an absolute http(s) url")
	ErrMissingToken       = errors.New("token is required")
	ErrInvalidUploadSizes = errors.New("upload thresholds must satisfy 0 < chunk_size and single_shot_threshold <= max_size")
	ErrInvalidInterval    = errors.New("poller interval must be at least 1 second")
)

// Environment variable names
const (
	EnvServerURL    = constants.EnvPrefix + "URL"
	EnvToken        = constants.EnvPrefix + "TOKEN"
	EnvLogLevel     = constants.EnvPrefix + "LOG_LEVEL"
	EnvPollInterval = constants.EnvPrefix + "POLL_INTERVAL"
	EnvConfigFile   = constants.EnvPrefix + "CONFIG"
)

// New returns a Config with default values.
func New() *Config {
	return &Config{
		ServerURL: "http://localhost:3000",
		LogLevel:  "info",
		Upload: UploadConfig{
			MaxSizeBytes:             constants.MaxUploadSize,
			SingleShotThresholdBytes: constants.SingleShotThreshold,
			ChunkSizeBytes:           constants.ChunkSize,
		},
		Poller: PollerConfig{
			Enabled:  true,
			Interval: constants.ScanPollInterval,
		},
	}
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		return filepath.Join(userProfile, ".config", constants.ConfigDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", constants.ConfigDirName), nil
}

// DefaultPath returns the default config file path, honoring VAULTFM_CONFIG.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ConfigFileName), nil
}

// Load reads configuration from an INI file and applies environment overrides.
// A missing file yields defaults and no error; a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			path = ""
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			iniFile, err := ini.Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
			cfg.fromINI(iniFile)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) fromINI(f *ini.File) {
	server := f.Section("server")
	cfg.ServerURL = server.Key("url").MustString(cfg.ServerURL)
	cfg.Token = server.Key("token").String()
	cfg.LogLevel = server.Key("log_level").MustString(cfg.LogLevel)

	upload := f.Section("upload")
	cfg.Upload.MaxSizeBytes = upload.Key("max_size_bytes").MustInt64(cfg.Upload.MaxSizeBytes)
	cfg.Upload.SingleShotThresholdBytes = upload.Key("single_shot_threshold_bytes").MustInt64(cfg.Upload.SingleShotThresholdBytes)
	cfg.Upload.ChunkSizeBytes = upload.Key("chunk_size_bytes").MustInt64(cfg.Upload.ChunkSizeBytes)

	poller := f.Section("poller")
	cfg.Poller.Enabled = poller.Key("enabled").MustBool(cfg.Poller.Enabled)
	secs := poller.Key("interval_seconds").MustInt(int(cfg.Poller.Interval / time.Second))
	cfg.Poller.Interval = time.Duration(secs) * time.Second

	if sec, err := f.GetSection("notify"); err == nil {
		cfg.Notify = sec.KeysHash()
	}
}

// applyEnv loads .env (without overriding the real environment) and then
// applies VAULTFM_* variables.
func (cfg *Config) applyEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPollInterval, v, err)
		}
		cfg.Poller.Interval = d
	}
	return nil
}

// Save writes configuration to an INI file. Parent directories are created.
// The token is stored in the file, so the file is restricted to the owner.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	server, err := iniFile.NewSection("server")
	if err != nil {
		return fmt.Errorf("failed to create server section: %w", err)
	}
	server.Key("url").SetValue(cfg.ServerURL)
	server.Key("token").SetValue(cfg.Token)
	server.Key("log_level").SetValue(cfg.LogLevel)

	upload, err := iniFile.NewSection("upload")
	if err != nil {
		return fmt.Errorf("failed to create upload section: %w", err)
	}
	upload.Key("max_size_bytes").SetValue(fmt.Sprintf("%d", cfg.Upload.MaxSizeBytes))
	upload.Key("single_shot_threshold_bytes").SetValue(fmt.Sprintf("%d", cfg.Upload.SingleShotThresholdBytes))
	upload.Key("chunk_size_bytes").SetValue(fmt.Sprintf("%d", cfg.Upload.ChunkSizeBytes))

	poller, err := iniFile.NewSection("poller")
	if err != nil {
		return fmt.Errorf("failed to create poller section: %w", err)
	}
	poller.Key("enabled").SetValue(fmt.Sprintf("%t", cfg.Poller.Enabled))
	poller.Key("interval_seconds").SetValue(fmt.Sprintf("%d", int(cfg.Poller.Interval/time.Second)))

	if len(cfg.Notify) > 0 {
		notify, err := iniFile.NewSection("notify")
		if err != nil {
			return fmt.Errorf("failed to create notify section: %w", err)
		}
		for k, v := range cfg.Notify {
			notify.Key(k).SetValue(v)
		}
	}

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Validate checks everything needed to talk to the backend.
func (cfg *Config) Validate() error {
	if err := cfg.ValidateForConnection(); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return ErrMissingToken
	}
	u := cfg.Upload
	if u.ChunkSizeBytes <= 0 || u.MaxSizeBytes <= 0 || u.SingleShotThresholdBytes > u.MaxSizeBytes {
		return ErrInvalidUploadSizes
	}
	if cfg.Poller.Enabled && cfg.Poller.Interval < constants.MinScanPollInterval {
		return ErrInvalidInterval
	}
	return nil
}

// ValidateForConnection checks only the server url. Used by commands that
// do not need a token, such as health.
func (cfg *Config) ValidateForConnection() error {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return ErrMissingServerURL
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidServerURL
	}
	return nil
}

// RedactedToken returns the token with everything but the last 4 characters masked.
func (cfg *Config) RedactedToken() string {
	if len(cfg.Token) <= 4 {
		return strings.Repeat("*", len(cfg.Token))
	}
	return strings.Repeat("*", 8) + cfg.Token[len(cfg.Token)-4:]
}
