// Package progress renders the per-file analysis progress bar shown while
// checking a tree. It stays on stderr so findings on stdout remain pipeable.
package progress

import (
	"os"

	"github.com/schollz/progressbar/v3"
)

// Tracker counts analyzed files against a known total.
type Tracker struct {
	bar *progressbar.ProgressBar
}

// NewTracker creates a bar for the given number of files.
func NewTracker(label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar}
}

// Tick records one completed file. Safe for concurrent use; the workers
// call it directly.
func (t *Tracker) Tick() {
	t.bar.Add(1)
}

// FinishSuccess removes the bar so the report starts on a clean line.
func (t *Tracker) FinishSuccess() {
	t.bar.Finish()
	t.bar.Clear()
}
