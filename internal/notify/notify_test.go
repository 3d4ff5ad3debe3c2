package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/vaultfm/vaultfm/internal/models"
)

type recorder struct {
	notified []string
	alerted  []string
	alertErr error
}

func newTestNotifier(cfg *Config) (*Notifier, *recorder) {
	rec := &recorder{}
	n := NewNotifier(cfg, nil)
	n.notify = func(title, message string) error {
		rec.notified = append(rec.notified, title+"|"+message)
		return nil
	}
	n.alert = func(title, message string) error {
		rec.alerted = append(rec.alerted, title+"|"+message)
		return rec.alertErr
	}
	return n, rec
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled {
		t.Error("Expected Enabled to be true by default")
	}
	if !cfg.ShowInfected {
		t.Error("Expected ShowInfected to be true by default")
	}
	if cfg.ShowUploadComplete {
		t.Error("Expected ShowUploadComplete to be false by default")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a long string", 10, "this is..."},
		{"", 10, ""},
		{"abc", 3, "abc"},
		{"abcd", 3, "..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestAlertInfected(t *testing.T) {
	n, rec := newTestNotifier(nil)

	n.Alert(models.Node{ID: "9", Name: "evil.exe", ScanResult: "Eicar-Test-Signature"})

	if len(rec.alerted) != 1 {
		t.Fatalf("alerts = %d, want 1", len(rec.alerted))
	}
	if !strings.Contains(rec.alerted[0], "evil.exe") || !strings.Contains(rec.alerted[0], "Eicar") {
		t.Errorf("alert = %q, want file name and scan result", rec.alerted[0])
	}
	if len(rec.notified) != 0 {
		t.Errorf("plain notification sent although the alert succeeded")
	}
}

func TestAlertFallsBackToNotify(t *testing.T) {
	n, rec := newTestNotifier(nil)
	rec.alertErr = errors.New("no alert support")

	n.Alert(models.Node{ID: "9", Name: "evil.exe"})

	if len(rec.notified) != 1 {
		t.Errorf("notifications = %d, want 1 fallback", len(rec.notified))
	}
}

func TestDisabled(t *testing.T) {
	n, rec := newTestNotifier(&Config{Enabled: false, ShowInfected: true, ShowUploadComplete: true})

	n.Alert(models.Node{ID: "9", Name: "evil.exe"})
	n.UploadsFinished(1, 1, "/docs")

	if len(rec.alerted)+len(rec.notified) != 0 {
		t.Errorf("disabled notifier sent %d notification(s)", len(rec.alerted)+len(rec.notified))
	}

	n.SetEnabled(true)
	n.UploadsFinished(1, 2, "/docs")
	if len(rec.notified) != 1 || !strings.Contains(rec.notified[0], "with errors") {
		t.Errorf("notified = %v, want one partial-failure notification", rec.notified)
	}
}

func TestParseConfig(t *testing.T) {
	cfg := ParseConfig(map[string]string{"enabled": "TRUE", "show_infected": "false", "show_upload_complete": "true"})
	if !cfg.Enabled || cfg.ShowInfected || !cfg.ShowUploadComplete {
		t.Errorf("ParseConfig = %+v", cfg)
	}
}
