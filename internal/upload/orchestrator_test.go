package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vaultfm/vaultfm/internal/api"
	"github.com/vaultfm/vaultfm/internal/config"
	inthttp "github.com/vaultfm/vaultfm/internal/http"
	"github.com/vaultfm/vaultfm/internal/models"
	"github.com/vaultfm/vaultfm/internal/transfer"
)

// fakeBackend stores uploaded content by hash so a second upload of the
// same bytes dedups.
type fakeBackend struct {
	mu sync.Mutex

	stored  map[string]string // hash -> storage id
	nextID  int
	calls   []string
	chunks  []int
	folders map[string]string // parent/name -> id

	chunkErrs  []error // consumed one per UploadChunk call
	onChunk    func()
	aborted    []string
	folderErr  error
	createdIDs []string
	listing    []models.Node // returned by ListFiles for any parent
	parents    []string      // parent id of each simple upload
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		stored:  make(map[string]string),
		folders: make(map[string]string),
	}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) id(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeBackend) PreCheck(ctx context.Context, hash string, size int64) (*models.PreCheckResponse, error) {
	f.record("precheck")
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.stored[hash]; ok {
		return &models.PreCheckResponse{Exists: true, FileID: &id}, nil
	}
	return &models.PreCheckResponse{}, nil
}

func (f *fakeBackend) LinkFile(ctx context.Context, storageID, filename, parentID string) (*models.UploadResponse, error) {
	f.record("link")
	return &models.UploadResponse{FileID: f.id("l"), Filename: filename}, nil
}

func (f *fakeBackend) UploadSimple(ctx context.Context, filename string, body io.Reader, parentID string, progress api.ProgressFunc) (*models.UploadResponse, error) {
	f.record("simple")
	f.mu.Lock()
	f.parents = append(f.parents, parentID)
	f.mu.Unlock()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(int64(len(data)) / 2)
		progress(int64(len(data)))
	}
	digest, _, _ := ContentHash(bytes.NewReader(data))
	id := f.id("s")
	f.mu.Lock()
	f.stored[digest] = id
	f.mu.Unlock()
	return &models.UploadResponse{FileID: id, Filename: filename}, nil
}

func (f *fakeBackend) InitUpload(ctx context.Context, filename, mimeType string, size int64) (*models.InitUploadResponse, error) {
	f.record("init")
	return &models.InitUploadResponse{UploadID: "up-1"}, nil
}

func (f *fakeBackend) UploadChunk(ctx context.Context, uploadID string, partNumber int, data []byte, progress api.ProgressFunc) (string, error) {
	f.record("chunk")
	if f.onChunk != nil {
		f.onChunk()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	if len(f.chunkErrs) > 0 {
		err := f.chunkErrs[0]
		f.chunkErrs = f.chunkErrs[1:]
		f.mu.Unlock()
		if err != nil {
			return "", err
		}
	} else {
		f.mu.Unlock()
	}
	if progress != nil {
		progress(int64(len(data)))
	}
	f.mu.Lock()
	f.chunks = append(f.chunks, len(data))
	f.mu.Unlock()
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (f *fakeBackend) CompleteUpload(ctx context.Context, uploadID, parentID, hash string) (*models.CompletedUpload, error) {
	f.record("complete")
	return &models.CompletedUpload{ID: "c1"}, nil
}

func (f *fakeBackend) AbortUpload(ctx context.Context, uploadID string) error {
	f.mu.Lock()
	f.aborted = append(f.aborted, uploadID)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) CreateFolder(ctx context.Context, name, parentID string) (models.Node, error) {
	f.record("mkdir")
	if f.folderErr != nil {
		return models.Node{}, f.folderErr
	}
	id := f.id("d")
	f.mu.Lock()
	f.folders[parentID+"/"+name] = id
	f.createdIDs = append(f.createdIDs, id)
	f.mu.Unlock()
	return models.Node{ID: id, Name: name, IsDir: true, ParentID: parentID}, nil
}

func (f *fakeBackend) ListFiles(ctx context.Context, parentID string, limit, offset int) ([]models.Node, error) {
	f.record("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Node
	for _, n := range f.listing {
		if n.ParentID == parentID {
			out = append(out, n)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:], nil
}

type fakeRefresher struct {
	mu      sync.Mutex
	folders []string
	nodes   []models.Node
}

func (r *fakeRefresher) Refresh(ctx context.Context, folderID string, silent bool) ([]models.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.folders = append(r.folders, folderID)
	return r.nodes, nil
}

func memSource(name, rel string, data []byte) Source {
	return Source{
		Name:         name,
		RelativePath: rel,
		Size:         int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func smallLimits() config.UploadConfig {
	return config.UploadConfig{
		MaxSizeBytes:             10,
		SingleShotThresholdBytes: 8,
		ChunkSizeBytes:           4,
	}
}

func fastRetry() inthttp.Config {
	return inthttp.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestSecondUploadLinks(t *testing.T) {
	backend := newFakeBackend()
	refresher := &fakeRefresher{}
	o := New(backend, refresher, Options{})

	data := []byte("the same bytes")
	first := o.Upload(context.Background(), []Source{memSource("a.txt", "", data)}, "0")
	if first.Files[0].Err != nil {
		t.Fatalf("first upload error = %v", first.Files[0].Err)
	}
	if first.Files[0].Strategy != "single_shot" {
		t.Errorf("first strategy = %q, want single_shot", first.Files[0].Strategy)
	}

	second := o.Upload(context.Background(), []Source{memSource("copy.txt", "", data)}, "f1")
	if second.Files[0].Err != nil {
		t.Fatalf("second upload error = %v", second.Files[0].Err)
	}
	if second.Files[0].Strategy != "linked" {
		t.Errorf("second strategy = %q, want linked", second.Files[0].Strategy)
	}
	if n := backend.count("simple"); n != 1 {
		t.Errorf("simple uploads = %d, want 1", n)
	}
	if n := backend.count("link"); n != 1 {
		t.Errorf("links = %d, want 1", n)
	}
}

func TestMaxSizeBoundary(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend, &fakeRefresher{}, Options{Limits: smallLimits(), Retry: fastRetry()})

	opened := false
	tooBig := Source{
		Name: "big.bin",
		Size: 11,
		Open: func() (io.ReadCloser, error) {
			opened = true
			return io.NopCloser(strings.NewReader("")), nil
		},
	}
	exact := memSource("exact.bin", "", bytes.Repeat([]byte("x"), 10))

	res := o.Upload(context.Background(), []Source{tooBig, exact}, "0")

	if !errors.Is(res.Files[0].Err, ErrFileTooLarge) {
		t.Errorf("oversized error = %v, want ErrFileTooLarge", res.Files[0].Err)
	}
	if opened {
		t.Error("oversized file was opened")
	}
	if res.Files[1].Err != nil {
		t.Errorf("file at the limit failed: %v", res.Files[1].Err)
	}
	if res.Succeeded() != 1 || len(res.Failed()) != 1 {
		t.Errorf("Succeeded() = %d, Failed() = %d, want 1 and 1", res.Succeeded(), len(res.Failed()))
	}
}

func TestDefaultLimits(t *testing.T) {
	o := New(newFakeBackend(), nil, Options{})
	if o.limits.MaxSizeBytes != 256*1024*1024 {
		t.Errorf("MaxSizeBytes = %d", o.limits.MaxSizeBytes)
	}
	if o.limits.SingleShotThresholdBytes != 90*1024*1024 {
		t.Errorf("SingleShotThresholdBytes = %d", o.limits.SingleShotThresholdBytes)
	}
	if o.limits.ChunkSizeBytes != 10*1024*1024 {
		t.Errorf("ChunkSizeBytes = %d", o.limits.ChunkSizeBytes)
	}
}

func TestChunkedUpload(t *testing.T) {
	backend := newFakeBackend()
	var percents []int
	o := New(backend, &fakeRefresher{}, Options{
		Limits:     smallLimits(),
		Retry:      fastRetry(),
		OnProgress: func(p int) { percents = append(percents, p) },
	})

	res := o.Upload(context.Background(), []Source{memSource("v.bin", "", []byte("0123456789"))}, "f1")
	if err := res.Files[0].Err; err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Files[0].Strategy != "chunked" || res.Files[0].NodeID != "c1" {
		t.Errorf("result = %+v", res.Files[0])
	}

	want := []int{4, 4, 2}
	if len(backend.chunks) != len(want) {
		t.Fatalf("chunks = %v, want %v", backend.chunks, want)
	}
	for i := range want {
		if backend.chunks[i] != want[i] {
			t.Errorf("chunk %d size = %d, want %d", i+1, backend.chunks[i], want[i])
		}
	}

	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("progress = %v, want to end at 100", percents)
	}
	for _, p := range percents[:len(percents)-2] {
		if p > 99 {
			t.Errorf("progress %d reported before completion in %v", p, percents)
		}
	}
}

func TestChunkRetriedThenAborted(t *testing.T) {
	backend := newFakeBackend()
	backend.chunkErrs = []error{errors.New("connection reset by peer")}
	o := New(backend, &fakeRefresher{}, Options{Limits: smallLimits(), Retry: fastRetry()})

	res := o.Upload(context.Background(), []Source{memSource("v.bin", "", []byte("0123456789"))}, "0")
	if err := res.Files[0].Err; err != nil {
		t.Fatalf("retried upload failed: %v", err)
	}
	if n := backend.count("chunk"); n != 4 {
		t.Errorf("chunk calls = %d, want 4", n)
	}

	backend = newFakeBackend()
	backend.chunkErrs = []error{nil, errors.New("chunk rejected")}
	o = New(backend, &fakeRefresher{}, Options{Limits: smallLimits(), Retry: fastRetry()})

	res = o.Upload(context.Background(), []Source{memSource("v.bin", "", []byte("0123456789"))}, "0")
	if res.Files[0].Err == nil {
		t.Fatal("expected failure")
	}
	if len(backend.aborted) != 1 || backend.aborted[0] != "up-1" {
		t.Errorf("aborted = %v, want [up-1]", backend.aborted)
	}
	if backend.count("complete") != 0 {
		t.Error("failed session was completed")
	}
}

func TestCancelAbortsSession(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend, &fakeRefresher{}, Options{Limits: smallLimits(), Retry: fastRetry()})
	backend.onChunk = func() {
		for _, st := range o.Queue().Statuses() {
			_ = o.Cancel(st.ID)
		}
	}

	res := o.Upload(context.Background(), []Source{memSource("v.bin", "", []byte("0123456789"))}, "0")
	if !errors.Is(res.Files[0].Err, transfer.ErrCancelled) {
		t.Errorf("error = %v, want ErrCancelled", res.Files[0].Err)
	}
	if len(backend.aborted) != 1 {
		t.Errorf("aborted = %v, want one abort", backend.aborted)
	}
	st := o.Queue().Statuses()[0]
	if st.Status != models.UploadError {
		t.Errorf("status = %q, want error", st.Status)
	}
}

func TestRelativePathsCreateFoldersOnce(t *testing.T) {
	backend := newFakeBackend()
	refresher := &fakeRefresher{}
	o := New(backend, refresher, Options{})

	res := o.Upload(context.Background(), []Source{
		memSource("a.jpg", "photos/2024/a.jpg", []byte("a")),
		memSource("b.jpg", "photos/2024/b.jpg", []byte("b")),
		memSource("c.jpg", "photos/c.jpg", []byte("c")),
		memSource("top.txt", "", []byte("t")),
	}, "f1")

	if len(res.Failed()) != 0 {
		t.Fatalf("failures: %+v", res.Failed())
	}
	if n := backend.count("mkdir"); n != 2 {
		t.Errorf("folders created = %d, want 2", n)
	}
	photos, ok := backend.folders["f1/photos"]
	if !ok {
		t.Fatalf("photos not created under f1: %v", backend.folders)
	}
	if _, ok := backend.folders[photos+"/2024"]; !ok {
		t.Errorf("2024 not created under photos: %v", backend.folders)
	}
}

func TestExistingFolderIsReused(t *testing.T) {
	backend := newFakeBackend()
	backend.folderErr = &api.StatusError{Op: "create folder", Code: 409, Body: "folder already exists"}
	backend.listing = []models.Node{
		{ID: "f7", Name: "docs", ParentID: "0"},
		{ID: "old", Name: "docs", IsDir: true, ParentID: "0"},
	}
	refresher := &fakeRefresher{}
	o := New(backend, refresher, Options{})

	res := o.Upload(context.Background(), []Source{memSource("a.txt", "docs/a.txt", []byte("a"))}, "0")
	if err := res.Files[0].Err; err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(backend.parents) != 1 || backend.parents[0] != "old" {
		t.Errorf("upload parents = %v, want [old]", backend.parents)
	}
	if len(refresher.folders) != 1 || refresher.folders[0] != "0" {
		t.Errorf("refreshed = %v, want [0]", refresher.folders)
	}
}

func TestExistingFolderMissingFails(t *testing.T) {
	backend := newFakeBackend()
	backend.folderErr = &api.StatusError{Op: "create folder", Code: 409, Body: "folder already exists"}
	o := New(backend, &fakeRefresher{}, Options{})

	res := o.Upload(context.Background(), []Source{memSource("a.txt", "docs/a.txt", []byte("a"))}, "0")
	if res.Files[0].Err == nil {
		t.Fatal("Upload() succeeded, want folder error")
	}
	if n := backend.count("simple"); n != 0 {
		t.Errorf("simple uploads = %d, want 0", n)
	}
}

func TestTargetRefreshedOnce(t *testing.T) {
	backend := newFakeBackend()
	refresher := &fakeRefresher{}
	o := New(backend, refresher, Options{Limits: smallLimits()})

	o.Upload(context.Background(), []Source{
		memSource("a", "", []byte("a")),
		memSource("big", "", bytes.Repeat([]byte("x"), 11)),
		memSource("b", "", []byte("b")),
	}, "f9")

	if len(refresher.folders) != 1 || refresher.folders[0] != "f9" {
		t.Errorf("refreshed = %v, want [f9]", refresher.folders)
	}
}

func TestAggregateProgress(t *testing.T) {
	var percents []int
	o := New(newFakeBackend(), nil, Options{OnProgress: func(p int) { percents = append(percents, p) }})

	o.Upload(context.Background(), []Source{
		memSource("a", "", []byte("aaaa")),
		memSource("b", "", []byte("bbbb")),
	}, "0")

	// first file halfway is (0*100+50)/2
	want := []int{25, 50, 50, 50, 75, 100, 100, 100}
	if len(percents) != len(want) {
		t.Fatalf("progress = %v, want %v", percents, want)
	}
	for i := range want {
		if percents[i] != want[i] {
			t.Errorf("progress[%d] = %d, want %d (all %v)", i, percents[i], want[i], percents)
		}
	}
}
