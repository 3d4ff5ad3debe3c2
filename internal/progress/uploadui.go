package progress

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/vaultfm/vaultfm/internal/events"
	"github.com/vaultfm/vaultfm/internal/models"
)

// UploadUI renders one mpb bar per file of an upload batch. It is driven by
// the upload events on the bus, so the orchestrator does not know about it.
type UploadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	totalFiles int
	folderPath string

	mu      sync.Mutex
	bars    map[string]*fileBar // task id -> bar
	started int
	done    chan struct{}
}

type fileBar struct {
	bar       *mpb.Bar
	index     int
	name      string
	size      int64
	state     models.UploadState
	startTime time.Time
}

// NewUploadUI creates a UI for totalFiles uploads into folderPath.
func NewUploadUI(totalFiles int, folderPath string) *UploadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		enableANSIOnWindows(os.Stderr)
		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(100),
		)
	} else {
		// Non-TTY: no bars, one line per file
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &UploadUI{
		progress:   p,
		out:        os.Stdout,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
		folderPath: folderPath,
		bars:       make(map[string]*fileBar),
	}
}

// Attach consumes upload events from bus until Detach is called.
func (u *UploadUI) Attach(bus *events.EventBus) {
	ch := bus.SubscribeAll()
	u.done = make(chan struct{})
	go func() {
		defer bus.UnsubscribeAll(ch)
		for {
			select {
			case <-u.done:
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ue, ok := ev.(*events.UploadEvent); ok {
					u.Handle(ue)
				}
			}
		}
	}()
}

// Detach stops consuming events.
func (u *UploadUI) Detach() {
	if u.done != nil {
		close(u.done)
		u.done = nil
	}
}

// Handle applies one upload event.
func (u *UploadUI) Handle(ev *events.UploadEvent) {
	st := ev.Status
	switch ev.EventType {
	case events.EventUploadQueued:
		u.addBar(st)
	case events.EventUploadProgress:
		u.update(st)
	case events.EventUploadCompleted:
		u.finish(st, nil)
	case events.EventUploadFailed, events.EventUploadCancelled:
		u.finish(st, fmt.Errorf("%s", st.Error))
	}
}

func (u *UploadUI) addBar(st models.UploadStatus) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.bars[st.ID]; ok {
		return
	}
	u.started++
	fb := &fileBar{index: u.started, name: st.Name, size: st.Size, state: st.Status, startTime: time.Now()}
	u.bars[st.ID] = fb

	if !u.isTerminal {
		fmt.Fprintf(u.out, "Uploading [%d/%d]: %s (%.1f MiB) → %s\n",
			fb.index, u.totalFiles, truncatePath(st.Name, 2), mib(st.Size), u.folderPath)
		return
	}

	label := fmt.Sprintf("[%d/%d] %s (%.1f MiB) → %s", fb.index, u.totalFiles, truncatePath(st.Name, 2), mib(st.Size), u.folderPath)
	fb.bar = u.progress.New(100,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WCSyncSpace),
			decor.Any(func(decor.Statistics) string {
				return string(u.stateOf(st.ID))
			}, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
		mpb.BarRemoveOnComplete(),
	)
}

func (u *UploadUI) stateOf(id string) models.UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()
	if fb, ok := u.bars[id]; ok {
		return fb.state
	}
	return ""
}

func (u *UploadUI) update(st models.UploadStatus) {
	u.mu.Lock()
	fb, ok := u.bars[st.ID]
	if ok {
		fb.state = st.Status
	}
	u.mu.Unlock()
	if !ok || fb.bar == nil {
		return
	}
	fb.bar.SetCurrent(int64(st.Progress))
}

func (u *UploadUI) finish(st models.UploadStatus, err error) {
	u.mu.Lock()
	fb, ok := u.bars[st.ID]
	u.mu.Unlock()
	if !ok {
		return
	}

	elapsed := time.Since(fb.startTime)
	var msg string
	if err == nil {
		if fb.bar != nil {
			fb.bar.SetCurrent(100)
		}
		msg = fmt.Sprintf("✓ %s → %s (%.1f MiB, %s)\n", truncatePath(fb.name, 2), u.folderPath, mib(fb.size), elapsed.Round(time.Second))
	} else {
		if fb.bar != nil {
			fb.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s → %s: %v\n", truncatePath(fb.name, 2), u.folderPath, err)
	}

	// Write through mpb's writer so the bars are not torn
	if u.isTerminal {
		_, _ = u.progress.Write([]byte(msg))
	} else {
		fmt.Fprint(u.out, msg)
	}
}

// Wait blocks until every bar is complete or aborted.
func (u *UploadUI) Wait() {
	u.Detach()
	u.mu.Lock()
	for _, fb := range u.bars {
		if fb.bar != nil && !fb.bar.Completed() {
			fb.bar.Abort(false)
		}
	}
	u.mu.Unlock()
	u.progress.Wait()
}

// Writer returns a writer that prints above the bars.
func (u *UploadUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return os.Stderr
}

// IsTerminal reports whether bars are rendered.
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}

func mib(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

// truncatePath keeps the last maxComponents elements of a slash path.
// Example: truncatePath("a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(p string, maxComponents int) string {
	parts := strings.Split(p, "/")
	if len(parts) <= maxComponents {
		return path.Base(p)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}

// enableANSIOnWindows enables Virtual Terminal processing on Windows consoles.
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
