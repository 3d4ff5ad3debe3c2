package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vaultfm/vaultfm/internal/constants"
	"github.com/vaultfm/vaultfm/internal/metrics"
	"github.com/vaultfm/vaultfm/internal/models"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog EventType = "log"

	// File-system model
	EventModelChanged  EventType = "model_changed"  // A folder page was merged or nodes removed
	EventFolderChanged EventType = "folder_changed" // Current folder navigation

	// Selection and clipboard
	EventSelectionChanged EventType = "selection_changed"
	EventClipboardChanged EventType = "clipboard_changed"

	// Bulk operations
	EventMovingChanged EventType = "moving_changed" // Move in flight toggled
	EventSharesStale   EventType = "shares_stale"   // Share list should be refetched

	// Uploads
	EventUploadQueued    EventType = "upload_queued"
	EventUploadProgress  EventType = "upload_progress"
	EventUploadCompleted EventType = "upload_completed"
	EventUploadFailed    EventType = "upload_failed"
	EventUploadCancelled EventType = "upload_cancelled"
	EventBatchProgress   EventType = "batch_progress" // Aggregate percentage across a batch

	// Scanning
	EventInfectedFile EventType = "infected_file"

	// Session
	EventSessionInvalidated EventType = "session_invalidated" // Backend answered 401
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Stage   string
	Error   error
}

// ModelChangedEvent is published after a folder merge or an explicit removal.
type ModelChangedEvent struct {
	BaseEvent
	FolderID   string   // Folder whose children were replaced; empty for removals
	RemovedIDs []string // Ids dropped by an explicit delete acknowledgment
	Count      int      // Number of nodes in the merged page
}

// FolderChangedEvent reports navigation to another folder.
type FolderChangedEvent struct {
	BaseEvent
	OldFolderID string
	NewFolderID string
}

// SelectionChangedEvent carries the selection after a change.
type SelectionChangedEvent struct {
	BaseEvent
	SelectedIDs []string
}

// ClipboardChangedEvent carries the clipboard after a change.
type ClipboardChangedEvent struct {
	BaseEvent
	Clipboard models.Clipboard
}

// MovingChangedEvent reports the transient "move in flight" flag.
type MovingChangedEvent struct {
	BaseEvent
	Moving bool
}

// SharesStaleEvent asks the share-list owner to refetch.
type SharesStaleEvent struct {
	BaseEvent
	Reason string // "delete", "move", "rename"
}

// UploadEvent reports a per-file status transition.
type UploadEvent struct {
	BaseEvent
	Status models.UploadStatus
}

// BatchProgressEvent carries the aggregate percentage of an upload batch.
type BatchProgressEvent struct {
	BaseEvent
	Percent   int
	Completed int
	Total     int
}

// InfectedFileEvent is the one-time alert for an infected file.
type InfectedFileEvent struct {
	BaseEvent
	NodeID     string
	Name       string
	ParentID   string
	ScanResult string
}

// SessionInvalidatedEvent is published when the bearer token is rejected.
type SessionInvalidatedEvent struct {
	BaseEvent
	Path string
}

// subscription is one subscriber channel. all subscribers get every event,
// the others only the types in the set.
type subscription struct {
	ch    chan Event
	all   bool
	types map[EventType]struct{}
}

func (s *subscription) wants(t EventType) bool {
	if s.all {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// EventBus fans events out to subscriber channels. Publishing never blocks:
// a subscriber whose buffer is full misses the event and the drop is
// counted.
type EventBus struct {
	mu         sync.RWMutex
	subs       []*subscription
	bufferSize int
	closed     bool
	dropped    atomic.Int64
}

// NewEventBus creates a bus whose subscriber channels hold bufferSize events.
func NewEventBus(bufferSize int) *EventBus {
	switch {
	case bufferSize <= 0:
		bufferSize = constants.EventBusDefaultBuffer
	case bufferSize > constants.EventBusMaxBuffer:
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{bufferSize: bufferSize}
}

func (eb *EventBus) subscribe(all bool, types ...EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	sub := &subscription{ch: make(chan Event, eb.bufferSize), all: all, types: make(map[EventType]struct{}, len(types))}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}
	eb.subs = append(eb.subs, sub)
	return sub.ch
}

// Subscribe returns a channel receiving events of the given types.
func (eb *EventBus) Subscribe(types ...EventType) <-chan Event {
	return eb.subscribe(false, types...)
}

// SubscribeAll returns a channel receiving every event.
func (eb *EventBus) SubscribeAll() <-chan Event {
	return eb.subscribe(true)
}

// Publish delivers event to every interested subscriber.
// A nil bus is valid and drops everything, so components can run without one.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	t := event.Type()
	for _, sub := range eb.subs {
		if !sub.wants(t) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			eb.dropped.Add(1)
			metrics.RecordDroppedEvent(string(t))
		}
	}
}

// Close closes every subscriber channel. Later publishes are dropped and
// later subscriptions get a closed channel.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	for _, sub := range eb.subs {
		close(sub.ch)
	}
	eb.subs = nil
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, stage string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: base(EventLog),
		Level:     level,
		Message:   message,
		Stage:     stage,
		Error:     err,
	})
}

// PublishModelChanged reports a merged folder page.
func (eb *EventBus) PublishModelChanged(folderID string, count int) {
	eb.Publish(&ModelChangedEvent{BaseEvent: base(EventModelChanged), FolderID: folderID, Count: count})
}

// PublishNodesRemoved reports an explicit removal.
func (eb *EventBus) PublishNodesRemoved(ids []string) {
	eb.Publish(&ModelChangedEvent{BaseEvent: base(EventModelChanged), RemovedIDs: ids})
}

// PublishFolderChanged reports navigation from oldID to newID.
func (eb *EventBus) PublishFolderChanged(oldID, newID string) {
	eb.Publish(&FolderChangedEvent{BaseEvent: base(EventFolderChanged), OldFolderID: oldID, NewFolderID: newID})
}

// PublishSelection reports the current selection.
func (eb *EventBus) PublishSelection(ids []string) {
	eb.Publish(&SelectionChangedEvent{BaseEvent: base(EventSelectionChanged), SelectedIDs: ids})
}

// PublishClipboard reports the current clipboard.
func (eb *EventBus) PublishClipboard(c models.Clipboard) {
	eb.Publish(&ClipboardChangedEvent{BaseEvent: base(EventClipboardChanged), Clipboard: c})
}

// PublishMoving reports the move-in-flight flag.
func (eb *EventBus) PublishMoving(moving bool) {
	eb.Publish(&MovingChangedEvent{BaseEvent: base(EventMovingChanged), Moving: moving})
}

// PublishSharesStale asks share-list owners to refetch.
func (eb *EventBus) PublishSharesStale(reason string) {
	eb.Publish(&SharesStaleEvent{BaseEvent: base(EventSharesStale), Reason: reason})
}

// PublishUpload reports an upload status under the given event type.
func (eb *EventBus) PublishUpload(t EventType, status models.UploadStatus) {
	eb.Publish(&UploadEvent{BaseEvent: base(t), Status: status})
}

// PublishBatchProgress reports aggregate upload progress.
func (eb *EventBus) PublishBatchProgress(percent, completed, total int) {
	eb.Publish(&BatchProgressEvent{
		BaseEvent: base(EventBatchProgress),
		Percent:   percent,
		Completed: completed,
		Total:     total,
	})
}

// PublishInfected raises the infected-file alert.
func (eb *EventBus) PublishInfected(n models.Node) {
	eb.Publish(&InfectedFileEvent{
		BaseEvent:  base(EventInfectedFile),
		NodeID:     n.ID,
		Name:       n.Name,
		ParentID:   n.ParentID,
		ScanResult: n.ScanResult,
	})
}

// PublishSessionInvalidated reports a rejected bearer token.
func (eb *EventBus) PublishSessionInvalidated(path string) {
	eb.Publish(&SessionInvalidatedEvent{BaseEvent: base(EventSessionInvalidated), Path: path})
}

// Unsubscribe stops delivering eventType to ch. A subscription left with no
// types is removed. The channel is not closed.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for i, sub := range eb.subs {
		if sub.ch != ch || sub.all {
			continue
		}
		delete(sub.types, eventType)
		if len(sub.types) == 0 {
			eb.subs = append(eb.subs[:i], eb.subs[i+1:]...)
		}
		return
	}
}

// UnsubscribeAll removes ch entirely. The channel is not closed.
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for i, sub := range eb.subs {
		if sub.ch == ch {
			eb.subs = append(eb.subs[:i], eb.subs[i+1:]...)
			return
		}
	}
}

// Dropped returns how many deliveries were skipped because of full buffers.
func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Load()
}
