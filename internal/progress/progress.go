// Package progress renders upload progress in the terminal: per-file mpb
// bars when stderr is a TTY, and a single aggregate bar for batch progress.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// BatchBar shows the aggregate percentage of an upload batch.
type BatchBar struct {
	bar *progressbar.ProgressBar
}

// NewBatchBar creates a 0-100 bar written to w (os.Stderr when nil).
func NewBatchBar(w io.Writer, description string) *BatchBar {
	if w == nil {
		w = os.Stderr
	}
	return &BatchBar{bar: progressbar.NewOptions(100,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)}
}

// Set moves the bar to percent. It matches upload.ProgressFunc.
func (b *BatchBar) Set(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_ = b.bar.Set(percent)
}

// Current returns the last percentage shown.
func (b *BatchBar) Current() int {
	return int(b.bar.State().CurrentNum)
}

// Finish completes the bar.
func (b *BatchBar) Finish() {
	_ = b.bar.Finish()
}
