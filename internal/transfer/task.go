package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaultfm/vaultfm/internal/models"
)

// Task is one logical file of an upload batch, independent of how many
// requests or chunks it takes.
// Thread-safe: Use the provided methods to read and update state.
type Task struct {
	ID       string
	Name     string
	Size     int64
	FolderID string // Target folder

	state    models.UploadState
	progress int // 0-100
	err      error

	// Speed calculation internals (EMA smoothing)
	speed          float64
	lastBytes      int64
	lastUpdateTime time.Time

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	// onCancel runs after the context is cancelled, e.g. to abort a
	// server-side upload session
	onCancel []func()
}

// NewTask creates a queued task whose context derives from parent.
func NewTask(parent context.Context, name string, size int64, folderID string) *Task {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Task{
		ID:        uuid.New().String(),
		Name:      name,
		Size:      size,
		FolderID:  folderID,
		state:     models.UploadQueued,
		CreatedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Context returns the task's context. It is cancelled by Cancel.
func (t *Task) Context() context.Context {
	return t.ctx
}

// State returns the current state.
func (t *Task) State() models.UploadState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Progress returns the current percentage.
func (t *Task) Progress() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}

// Speed returns the smoothed transfer speed in bytes/sec.
func (t *Task) Speed() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.speed
}

// Err returns the failure, if any.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// IsTerminal reports whether the task completed, failed or was cancelled.
func (t *Task) IsTerminal() bool {
	return t.State().IsTerminal()
}

func (t *Task) setState(state models.UploadState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return false
	}
	t.state = state
	if state == models.UploadUploading && t.StartedAt.IsZero() {
		t.StartedAt = time.Now()
	}
	if state.IsTerminal() {
		t.CompletedAt = time.Now()
	}
	return true
}

// updateProgress stores the percentage and recomputes speed from the byte
// count using EMA.
func (t *Task) updateProgress(percent int, bytesSent int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return false
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	t.progress = percent

	now := time.Now()
	if t.lastUpdateTime.IsZero() || bytesSent < t.lastBytes {
		t.lastBytes = bytesSent
		t.lastUpdateTime = now
		return true
	}
	elapsed := now.Sub(t.lastUpdateTime).Seconds()
	if elapsed > 0.1 && bytesSent > t.lastBytes {
		instant := float64(bytesSent-t.lastBytes) / elapsed
		// alpha=0.25: 25% weight to new value, 75% to previous
		const speedSmoothingAlpha = 0.25
		if t.speed > 0 {
			t.speed = speedSmoothingAlpha*instant + (1-speedSmoothingAlpha)*t.speed
		} else {
			t.speed = instant
		}
		t.lastBytes = bytesSent
		t.lastUpdateTime = now
	}
	return true
}

func (t *Task) fail(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return false
	}
	t.state = models.UploadError
	t.err = err
	t.CompletedAt = time.Now()
	return true
}

// OnCancel registers fn to run when the task is cancelled.
func (t *Task) OnCancel(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCancel = append(t.onCancel, fn)
}

// Status returns the task as an UploadStatus.
func (t *Task) Status() models.UploadStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := models.UploadStatus{
		ID:       t.ID,
		Name:     t.Name,
		Progress: t.progress,
		Status:   t.state,
		Size:     t.Size,
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}
