// Package transfer tracks the files of upload batches.
//
// The queue OBSERVES uploads, it does not execute them: the upload
// orchestrator registers each file, reports state and progress, and the
// queue publishes events and holds the cancel hooks.
package transfer

import (
	"context"
	"errors"
	"sync"

	"github.com/vaultfm/vaultfm/internal/events"
	"github.com/vaultfm/vaultfm/internal/models"
)

// ErrCancelled is the failure recorded for a cancelled task.
var ErrCancelled = errors.New("upload cancelled")

// Task lookup errors
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskFinished = errors.New("task already finished")
)

// QueueStats holds statistics about the queue.
type QueueStats struct {
	Queued     int
	Hashing    int
	Uploading  int
	Processing int
	Completed  int
	Failed     int
}

// Total returns total number of tasks in queue.
func (s QueueStats) Total() int {
	return s.Queued + s.Hashing + s.Uploading + s.Processing + s.Completed + s.Failed
}

// Active returns the number of unfinished tasks.
func (s QueueStats) Active() int {
	return s.Queued + s.Hashing + s.Uploading + s.Processing
}

// Queue is a passive upload tracker that publishes events for UI updates.
type Queue struct {
	tasks     []*Task          // All tasks in creation order
	tasksByID map[string]*Task // Index by ID for quick lookup
	mu        sync.RWMutex

	eventBus *events.EventBus
}

// NewQueue creates a new queue. eventBus may be nil.
func NewQueue(eventBus *events.EventBus) *Queue {
	return &Queue{
		tasksByID: make(map[string]*Task),
		eventBus:  eventBus,
	}
}

// Track registers a file that will be uploaded elsewhere. The task starts
// queued; its context derives from ctx.
func (q *Queue) Track(ctx context.Context, name string, size int64, folderID string) *Task {
	task := NewTask(ctx, name, size, folderID)

	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.tasksByID[task.ID] = task
	q.mu.Unlock()

	q.publish(events.EventUploadQueued, task)
	return task
}

// SetState moves a task to a non-terminal state. Use Complete and Fail for
// terminal ones.
func (q *Queue) SetState(taskID string, state models.UploadState) {
	task, ok := q.get(taskID)
	if !ok || state.IsTerminal() {
		return
	}
	if task.setState(state) {
		q.publish(events.EventUploadProgress, task)
	}
}

// UpdateProgress stores the task percentage and the bytes sent so far.
func (q *Queue) UpdateProgress(taskID string, percent int, bytesSent int64) {
	task, ok := q.get(taskID)
	if !ok {
		return
	}
	if task.updateProgress(percent, bytesSent) {
		q.publish(events.EventUploadProgress, task)
	}
}

// Complete marks a task as successfully completed.
func (q *Queue) Complete(taskID string) {
	task, ok := q.get(taskID)
	if !ok {
		return
	}
	task.mu.Lock()
	if !task.state.IsTerminal() {
		task.progress = 100
	}
	task.mu.Unlock()
	if task.setState(models.UploadCompleted) {
		q.publish(events.EventUploadCompleted, task)
	}
}

// Fail marks a task as failed with an error.
func (q *Queue) Fail(taskID string, err error) {
	task, ok := q.get(taskID)
	if !ok {
		return
	}
	if task.fail(err) {
		q.publish(events.EventUploadFailed, task)
	}
}

// Cancel aborts an unfinished task: its context is cancelled, the cancel
// hooks run and the task is recorded as failed with ErrCancelled.
func (q *Queue) Cancel(taskID string) error {
	task, ok := q.get(taskID)
	if !ok {
		return ErrTaskNotFound
	}
	if !task.fail(ErrCancelled) {
		return ErrTaskFinished
	}
	task.cancel()

	task.mu.RLock()
	hooks := append([]func(){}, task.onCancel...)
	task.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}

	q.publish(events.EventUploadCancelled, task)
	return nil
}

// CancelAll cancels every unfinished task.
func (q *Queue) CancelAll() {
	q.mu.RLock()
	ids := make([]string, 0, len(q.tasks))
	for _, task := range q.tasks {
		if !task.IsTerminal() {
			ids = append(ids, task.ID)
		}
	}
	q.mu.RUnlock()

	for _, id := range ids {
		_ = q.Cancel(id)
	}
}

// ClearCompleted removes finished tasks from the queue.
func (q *Queue) ClearCompleted() {
	q.mu.Lock()
	defer q.mu.Unlock()

	filtered := make([]*Task, 0, len(q.tasks))
	for _, task := range q.tasks {
		if !task.IsTerminal() {
			filtered = append(filtered, task)
		} else {
			delete(q.tasksByID, task.ID)
		}
	}
	q.tasks = filtered
}

// Stats returns current queue statistics.
func (q *Queue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := QueueStats{}
	for _, task := range q.tasks {
		switch task.State() {
		case models.UploadQueued:
			stats.Queued++
		case models.UploadHashing:
			stats.Hashing++
		case models.UploadUploading:
			stats.Uploading++
		case models.UploadProcessing:
			stats.Processing++
		case models.UploadCompleted:
			stats.Completed++
		case models.UploadError:
			stats.Failed++
		}
	}
	return stats
}

// Statuses returns the status of every task in creation order.
func (q *Queue) Statuses() []models.UploadStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]models.UploadStatus, len(q.tasks))
	for i, task := range q.tasks {
		result[i] = task.Status()
	}
	return result
}

// Get returns the task with the given id.
func (q *Queue) Get(taskID string) (*Task, bool) {
	return q.get(taskID)
}

func (q *Queue) get(taskID string) (*Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	task, ok := q.tasksByID[taskID]
	return task, ok && task != nil
}

func (q *Queue) publish(eventType events.EventType, task *Task) {
	q.eventBus.PublishUpload(eventType, task.Status())
}
