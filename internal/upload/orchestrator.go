// Package upload turns a batch of local files into backend entries: size
// check, content hash, dedup pre-check, then a link, a single-shot upload or
// the chunked protocol.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vaultfm/vaultfm/internal/api"
	"github.com/vaultfm/vaultfm/internal/config"
	"github.com/vaultfm/vaultfm/internal/constants"
	"github.com/vaultfm/vaultfm/internal/events"
	inthttp "github.com/vaultfm/vaultfm/internal/http"
	"github.com/vaultfm/vaultfm/internal/logging"
	"github.com/vaultfm/vaultfm/internal/metrics"
	"github.com/vaultfm/vaultfm/internal/models"
	"github.com/vaultfm/vaultfm/internal/transfer"
)

// ErrFileTooLarge is reported for files above the configured maximum.
var ErrFileTooLarge = errors.New("file too large")

// Backend is the slice of the API client the orchestrator needs.
type Backend interface {
	PreCheck(ctx context.Context, hash string, size int64) (*models.PreCheckResponse, error)
	LinkFile(ctx context.Context, storageID, filename, parentID string) (*models.UploadResponse, error)
	UploadSimple(ctx context.Context, filename string, body io.Reader, parentID string, progress api.ProgressFunc) (*models.UploadResponse, error)
	InitUpload(ctx context.Context, filename, mimeType string, size int64) (*models.InitUploadResponse, error)
	UploadChunk(ctx context.Context, uploadID string, partNumber int, data []byte, progress api.ProgressFunc) (string, error)
	CompleteUpload(ctx context.Context, uploadID, parentID, hash string) (*models.CompletedUpload, error)
	AbortUpload(ctx context.Context, uploadID string) error
	CreateFolder(ctx context.Context, name, parentID string) (models.Node, error)
	ListFiles(ctx context.Context, parentID string, limit, offset int) ([]models.Node, error)
}

// Refresher refetches a folder into the model.
type Refresher interface {
	Refresh(ctx context.Context, folderID string, silent bool) ([]models.Node, error)
}

// ProgressFunc receives the aggregate batch percentage.
type ProgressFunc func(percent int)

// Options configures an Orchestrator. Zero values fall back to defaults.
type Options struct {
	Limits     config.UploadConfig
	Queue      *transfer.Queue
	EventBus   *events.EventBus
	Logger     *logging.Logger
	Retry      inthttp.Config
	OnProgress ProgressFunc
}

// FileResult is the outcome of one file.
type FileResult struct {
	Name         string
	RelativePath string
	TaskID       string
	NodeID       string
	Strategy     string // metrics.Strategy*
	Err          error
}

// BatchResult lists per-file outcomes in input order.
type BatchResult struct {
	TargetID string
	Files    []FileResult
}

// Succeeded returns the number of files that made it to the backend.
func (r *BatchResult) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the files that did not.
func (r *BatchResult) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Orchestrator runs upload batches. Files of a batch go one at a time.
type Orchestrator struct {
	backend    Backend
	refresher  Refresher
	limits     config.UploadConfig
	queue      *transfer.Queue
	eventBus   *events.EventBus
	retry      inthttp.Config
	onProgress ProgressFunc
	logger     *logging.Logger
}

// New creates an orchestrator. refresher may be nil.
func New(backend Backend, refresher Refresher, opts Options) *Orchestrator {
	limits := opts.Limits
	defaults := config.New().Upload
	if limits.MaxSizeBytes <= 0 {
		limits.MaxSizeBytes = defaults.MaxSizeBytes
	}
	if limits.SingleShotThresholdBytes <= 0 {
		limits.SingleShotThresholdBytes = defaults.SingleShotThresholdBytes
	}
	if limits.ChunkSizeBytes <= 0 {
		limits.ChunkSizeBytes = defaults.ChunkSizeBytes
	}
	retry := opts.Retry
	if retry.MaxRetries <= 0 {
		retry = inthttp.DefaultConfig()
	}
	queue := opts.Queue
	if queue == nil {
		queue = transfer.NewQueue(opts.EventBus)
	}
	return &Orchestrator{
		backend:    backend,
		refresher:  refresher,
		limits:     limits,
		queue:      queue,
		eventBus:   opts.EventBus,
		retry:      retry,
		onProgress: opts.OnProgress,
		logger:     logging.OrNop(opts.Logger).Component("upload"),
	}
}

// Queue returns the status queue the orchestrator reports into.
func (o *Orchestrator) Queue() *transfer.Queue {
	return o.queue
}

// Cancel aborts one file of a running batch.
func (o *Orchestrator) Cancel(taskID string) error {
	return o.queue.Cancel(taskID)
}

// batch carries the per-run state.
type batch struct {
	targetID  string
	total     int
	completed int
	folders   map[string]string // relative dir -> folder id
}

// Upload uploads sources into targetID. A failing file is recorded and the
// loop moves on. The target folder is refreshed once at the end whatever
// happened.
func (o *Orchestrator) Upload(ctx context.Context, sources []Source, targetID string) *BatchResult {
	if targetID == "" {
		targetID = models.RootID
	}
	b := &batch{
		targetID: targetID,
		total:    len(sources),
		folders:  map[string]string{"": targetID},
	}
	result := &BatchResult{TargetID: targetID, Files: make([]FileResult, 0, len(sources))}

	o.logger.Info().Int("files", len(sources)).Str("target", targetID).Msg("Upload batch started")

	tasks := make([]*transfer.Task, len(sources))
	for i, src := range sources {
		tasks[i] = o.queue.Track(ctx, src.Name, src.Size, targetID)
	}

	for i, src := range sources {
		fr := o.uploadOne(b, tasks[i], src)
		result.Files = append(result.Files, fr)
		b.completed++
		o.report(b, 0)
	}

	if o.refresher != nil {
		// The batch context may be cancelled by now; the refresh still runs.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		if _, err := o.refresher.Refresh(rctx, targetID, false); err != nil {
			o.logger.Warn().Err(err).Str("target", targetID).Msg("Refresh after upload failed")
		}
		cancel()
	}

	o.logger.Info().
		Int("succeeded", result.Succeeded()).
		Int("failed", len(result.Failed())).
		Str("target", targetID).
		Msg("Upload batch finished")
	return result
}

func (o *Orchestrator) report(b *batch, current int) {
	if b.total == 0 {
		return
	}
	percent := (b.completed*100 + current) / b.total
	if percent > 100 {
		percent = 100
	}
	o.eventBus.PublishBatchProgress(percent, b.completed, b.total)
	if o.onProgress != nil {
		o.onProgress(percent)
	}
}

func (o *Orchestrator) uploadOne(b *batch, task *transfer.Task, src Source) FileResult {
	fr := FileResult{Name: src.Name, RelativePath: src.RelativePath, TaskID: task.ID}
	ctx := task.Context()
	log := o.logger.With().Str("file", src.Name).Str("task_id", task.ID).Logger()

	fail := func(strategy string, err error) FileResult {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			err = transfer.ErrCancelled
		}
		o.queue.Fail(task.ID, err)
		metrics.RecordUpload(strategy, src.Size, err)
		log.Warn().Err(err).Str("strategy", strategy).Msg("Upload failed")
		fr.Strategy = strategy
		fr.Err = err
		return fr
	}

	if src.Size > o.limits.MaxSizeBytes {
		return fail(metrics.StrategyRejected, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrFileTooLarge, src.Name, src.Size, o.limits.MaxSizeBytes))
	}

	parentID, err := o.ensureFolders(ctx, b, src.Dir())
	if err != nil {
		return fail(metrics.StrategyRejected, err)
	}

	o.queue.SetState(task.ID, models.UploadHashing)
	digest, err := hashSource(src)
	if err != nil {
		return fail(metrics.StrategyRejected, fmt.Errorf("failed to hash %s: %w", src.Name, err))
	}
	if err := ctx.Err(); err != nil {
		return fail(metrics.StrategyRejected, err)
	}

	pre, err := o.backend.PreCheck(ctx, digest, src.Size)
	if err != nil {
		return fail(metrics.StrategyRejected, err)
	}

	progress := func(percent int, sent int64) {
		o.queue.UpdateProgress(task.ID, percent, sent)
		o.report(b, percent)
	}

	var strategy string
	var nodeID string
	switch {
	case pre.Exists && pre.FileID != nil && *pre.FileID != "":
		strategy = metrics.StrategyLinked
		o.queue.SetState(task.ID, models.UploadProcessing)
		resp, lerr := o.backend.LinkFile(ctx, *pre.FileID, src.Name, parentID)
		if lerr == nil {
			nodeID = resp.FileID
		}
		err = lerr
	case src.Size < o.limits.SingleShotThresholdBytes:
		strategy = metrics.StrategySingleShot
		nodeID, err = o.uploadSingle(ctx, task, src, parentID, progress)
	default:
		strategy = metrics.StrategyChunked
		nodeID, err = o.uploadChunked(ctx, task, src, parentID, digest, progress)
	}
	if err != nil {
		return fail(strategy, err)
	}

	o.queue.Complete(task.ID)
	o.report(b, 100)
	metrics.RecordUpload(strategy, src.Size, nil)
	log.Info().Str("strategy", strategy).Str("node_id", nodeID).Msg("Upload completed")

	fr.Strategy = strategy
	fr.NodeID = nodeID
	return fr
}

func percentOf(sent, size int64) int {
	if size <= 0 {
		return 100
	}
	return int(sent * 100 / size)
}

func (o *Orchestrator) uploadSingle(ctx context.Context, task *transfer.Task, src Source, parentID string, progress func(int, int64)) (string, error) {
	rc, err := src.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	o.queue.SetState(task.ID, models.UploadUploading)
	resp, err := o.backend.UploadSimple(ctx, src.Name, rc, parentID, func(sent int64) {
		progress(percentOf(sent, src.Size), sent)
	})
	if err != nil {
		return "", err
	}
	return resp.FileID, nil
}

func (o *Orchestrator) uploadChunked(ctx context.Context, task *transfer.Task, src Source, parentID, digest string, progress func(int, int64)) (string, error) {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(src.Name)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	session, err := o.backend.InitUpload(ctx, src.Name, mimeType, src.Size)
	if err != nil {
		return "", err
	}

	var abortOnce sync.Once
	abort := func() {
		abortOnce.Do(func() {
			actx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := o.backend.AbortUpload(actx, session.UploadID); err != nil {
				o.logger.Debug().Err(err).Str("upload_id", session.UploadID).Msg("Abort upload failed")
			}
		})
	}
	task.OnCancel(abort)

	id, err := o.sendChunks(ctx, task, src, session, parentID, digest, progress)
	if err != nil {
		abort()
		return "", err
	}
	return id, nil
}

func (o *Orchestrator) sendChunks(ctx context.Context, task *transfer.Task, src Source, session *models.InitUploadResponse, parentID, digest string, progress func(int, int64)) (string, error) {
	rc, err := src.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	chunkSize := o.limits.ChunkSizeBytes
	buf := make([]byte, chunkSize)
	capped := func(sent int64) int {
		p := percentOf(sent, src.Size)
		if p > 99 {
			p = 99
		}
		return p
	}

	o.queue.SetState(task.ID, models.UploadUploading)
	var offset int64
	for part := 1; ; part++ {
		n, rerr := io.ReadFull(rc, buf)
		if rerr == io.EOF {
			break
		}
		if rerr != nil && rerr != io.ErrUnexpectedEOF {
			return "", fmt.Errorf("failed to read %s: %w", src.Name, rerr)
		}

		data := buf[:n]
		base := offset
		err := inthttp.ExecuteWithRetry(ctx, o.retry, func(ctx context.Context) error {
			_, err := o.backend.UploadChunk(ctx, session.UploadID, part, data, func(sent int64) {
				progress(capped(base+sent), base+sent)
			})
			return err
		})
		if err != nil {
			return "", fmt.Errorf("chunk %d of %s failed: %w", part, src.Name, err)
		}
		offset += int64(n)
		progress(capped(offset), offset)

		if rerr == io.ErrUnexpectedEOF {
			break
		}
	}

	o.queue.SetState(task.ID, models.UploadProcessing)
	done, err := o.backend.CompleteUpload(ctx, session.UploadID, parentID, digest)
	if err != nil {
		return "", err
	}
	return done.ID, nil
}

// ensureFolders creates the missing folders of dir below the batch target
// and returns the id of the deepest one. Created ids are cached per batch.
func (o *Orchestrator) ensureFolders(ctx context.Context, b *batch, dir string) (string, error) {
	if id, ok := b.folders[dir]; ok {
		return id, nil
	}
	parentID, err := o.ensureFolders(ctx, b, parentDir(dir))
	if err != nil {
		return "", err
	}

	name := path.Base(dir)
	node, err := o.backend.CreateFolder(ctx, name, parentID)
	if err != nil {
		if !api.IsFileExistsError(err) {
			return "", fmt.Errorf("failed to create folder %s: %w", dir, err)
		}
		id, ferr := o.findFolder(ctx, parentID, name)
		if ferr != nil {
			return "", fmt.Errorf("failed to create folder %s: %w", dir, err)
		}
		node.ID = id
	}
	o.logger.Debug().Str("path", dir).Str("folder_id", node.ID).Msg("Folder ready")
	b.folders[dir] = node.ID
	return node.ID, nil
}

// findFolder looks an existing folder up by name. It lists the parent
// directly so the model is only refreshed once, at the end of the batch.
func (o *Orchestrator) findFolder(ctx context.Context, parentID, name string) (string, error) {
	for offset := 0; ; offset += constants.DefaultPageSize {
		page, err := o.backend.ListFiles(ctx, parentID, constants.DefaultPageSize, offset)
		if err != nil {
			return "", err
		}
		for _, n := range page {
			if n.IsDir && n.Name == name {
				return n.ID, nil
			}
		}
		if len(page) < constants.DefaultPageSize {
			return "", fmt.Errorf("folder %s not found in %s", name, parentID)
		}
	}
}

func parentDir(dir string) string {
	p := path.Dir(dir)
	if p == "." || p == "/" {
		return ""
	}
	return p
}
