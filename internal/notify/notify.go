// Package notify sends desktop notifications for infected files and
// finished upload batches. It uses github.com/gen2brain/beeep.
package notify

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/vaultfm/vaultfm/internal/logging"
	"github.com/vaultfm/vaultfm/internal/models"
)

const appTitle = "vaultfm"

// Config holds notification configuration.
type Config struct {
	// Enabled determines if notifications are sent.
	Enabled bool

	// ShowInfected raises an alert for every infected file reported by the scanner.
	ShowInfected bool

	// ShowUploadComplete shows a notification when an upload batch ends.
	ShowUploadComplete bool
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:            true,
		ShowInfected:       true,
		ShowUploadComplete: false, // The terminal already shows the summary
	}
}

// Notifier handles desktop notifications.
type Notifier struct {
	logger *logging.Logger
	cfg    Config
	mu     sync.RWMutex

	notify func(title, message string) error
	alert  func(title, message string) error
}

// NewNotifier creates a notifier. A nil cfg uses DefaultConfig.
func NewNotifier(cfg *Config, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Notifier{
		logger: logging.OrNop(logger).Component("notify"),
		cfg:    *cfg,
		notify: func(title, message string) error { return beeep.Notify(title, message, "") },
		alert:  func(title, message string) error { return beeep.Alert(title, message, "") },
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cfg.Enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cfg.Enabled
}

func (n *Notifier) config() Config {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cfg
}

// Alert raises the infected-file alert. It satisfies scanpoll.Alerter.
func (n *Notifier) Alert(node models.Node) {
	cfg := n.config()
	if !cfg.Enabled || !cfg.ShowInfected {
		return
	}

	title := appTitle + ": infected file removed"
	message := fmt.Sprintf("%q was flagged by the virus scanner.", truncate(node.Name, 60))
	if node.ScanResult != "" {
		message += "\n" + truncate(node.ScanResult, 100)
	}

	// Alert is more prominent on some platforms; fall back to a plain notification
	if err := n.alert(title, message); err != nil {
		if err := n.notify(title, message); err != nil {
			n.logger.Error().Err(err).Str("file_id", node.ID).Msg("Failed to send infected file alert")
		}
	}
}

// UploadsFinished reports the end of an upload batch.
func (n *Notifier) UploadsFinished(succeeded, total int, folder string) {
	cfg := n.config()
	if !cfg.Enabled || !cfg.ShowUploadComplete || total == 0 {
		return
	}

	title := appTitle + ": upload complete"
	if succeeded < total {
		title = appTitle + ": upload finished with errors"
	}
	message := fmt.Sprintf("%d of %d file(s) uploaded to %s", succeeded, total, truncate(folder, 60))

	if err := n.notify(title, message); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send upload notification")
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// ParseConfig parses notification settings from an INI section.
// Expected keys: enabled, show_infected, show_upload_complete
func ParseConfig(settings map[string]string) *Config {
	cfg := DefaultConfig()

	if v, ok := settings["enabled"]; ok {
		cfg.Enabled = strings.ToLower(v) == "true"
	}
	if v, ok := settings["show_infected"]; ok {
		cfg.ShowInfected = strings.ToLower(v) == "true"
	}
	if v, ok := settings["show_upload_complete"]; ok {
		cfg.ShowUploadComplete = strings.ToLower(v) == "true"
	}
	return cfg
}
