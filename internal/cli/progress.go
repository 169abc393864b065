package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/file-panel/backend/internal/upload"
)

const (
	barWidth       = 30
	nameWidth      = 24
	redrawInterval = 100 * time.Millisecond
)

// progressView prints a bar line for upload progress events, at most every
// redrawInterval per file except for the final 100%.
type progressView struct {
	out  io.Writer
	last map[string]time.Time
}

func newProgressView(out io.Writer) *progressView {
	return &progressView{out: out, last: make(map[string]time.Time)}
}

func (p *progressView) run(events <-chan upload.Event) {
	for ev := range events {
		if ev.Type != upload.EventProgress {
			continue
		}
		v := ev.Entry
		if v.Progress < 100 && time.Since(p.last[v.ID]) < redrawInterval {
			continue
		}
		p.last[v.ID] = time.Now()
		fmt.Fprintf(p.out, "⬆️  %-*s [%s] %3d%%\n", nameWidth, truncate(v.Name, nameWidth), bar(v.Progress, barWidth), v.Progress)
	}
}

// bar renders percent (clamped to 0-100) as a fixed-width bar.
func bar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	completed := width * percent / 100
	return strings.Repeat("█", completed) + strings.Repeat("░", width-completed)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
