package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives batch progress. Calls may come from several
// workers, so implementations must be safe for concurrent use.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(done, total int)
	OnError(path string, err error)
	OnComplete()
}

// NoOpProgress discards all events.
type NoOpProgress struct{}

func (NoOpProgress) OnStart(int)           {}
func (NoOpProgress) OnProgress(int, int)   {}
func (NoOpProgress) OnError(string, error) {}
func (NoOpProgress) OnComplete()           {}

// ConsoleProgress draws a single-line progress bar.
type ConsoleProgress struct {
	mu       sync.Mutex
	w        io.Writer
	prefix   string
	width    int
	interval time.Duration
	started  time.Time
	last     time.Time
}

// NewConsoleProgress writes to w, or stderr when w is nil.
func NewConsoleProgress(w io.Writer, prefix string, interval time.Duration) *ConsoleProgress {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgress{w: w, prefix: prefix, width: 40, interval: interval}
}

func (c *ConsoleProgress) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = time.Now()
	c.last = time.Time{}
	_, _ = fmt.Fprintf(c.w, "%s0/%d images\n", c.prefix, total)
}

func (c *ConsoleProgress) OnProgress(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if done < total && now.Sub(c.last) < c.interval {
		return
	}
	c.last = now
	if total <= 0 {
		return
	}

	filled := c.width * done / total
	line := fmt.Sprintf("\r%s[%s%s] %d/%d", c.prefix,
		strings.Repeat("#", filled), strings.Repeat(".", c.width-filled), done, total)
	if elapsed := now.Sub(c.started); elapsed > 0 && done > 0 {
		rate := float64(done) / elapsed.Seconds()
		line += fmt.Sprintf(" %.1f img/s", rate)
		if done < total {
			eta := time.Duration(float64(total-done) / rate * float64(time.Second))
			line += fmt.Sprintf(" ETA %v", eta.Round(time.Second))
		}
	}
	_, _ = fmt.Fprint(c.w, line)
}

func (c *ConsoleProgress) OnError(path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%s%s: %v\n", c.prefix, path, err)
}

func (c *ConsoleProgress) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%sdone in %v\n", c.prefix, time.Since(c.started).Round(time.Millisecond))
}

// LogProgress reports through slog every Every images.
type LogProgress struct {
	mu      sync.Mutex
	logger  *slog.Logger
	level   slog.Level
	every   int
	logged  int
	started time.Time
}

// NewLogProgress logs at level; a nil logger uses slog.Default().
func NewLogProgress(logger *slog.Logger, level slog.Level, every int) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{logger: logger, level: level, every: max(every, 1)}
}

func (l *LogProgress) OnStart(total int) {
	l.mu.Lock()
	l.started = time.Now()
	l.logged = 0
	l.mu.Unlock()
	l.logger.Log(context.Background(), l.level, "Batch started", "total", total)
}

func (l *LogProgress) OnProgress(done, total int) {
	l.mu.Lock()
	if done-l.logged < l.every && done != total {
		l.mu.Unlock()
		return
	}
	l.logged = done
	elapsed := time.Since(l.started)
	l.mu.Unlock()

	l.logger.Log(context.Background(), l.level, "Batch progress",
		"done", done,
		"total", total,
		"elapsed", elapsed.Round(time.Millisecond))
}

func (l *LogProgress) OnError(path string, err error) {
	l.logger.Error("Batch image failed", "path", path, "error", err)
}

func (l *LogProgress) OnComplete() {
	l.mu.Lock()
	elapsed := time.Since(l.started)
	l.mu.Unlock()
	l.logger.Log(context.Background(), l.level, "Batch complete", "elapsed", elapsed.Round(time.Millisecond))
}

// MultiProgress fans events out to several callbacks.
type MultiProgress []ProgressCallback

func (m MultiProgress) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgress) OnProgress(done, total int) {
	for _, cb := range m {
		cb.OnProgress(done, total)
	}
}

func (m MultiProgress) OnError(path string, err error) {
	for _, cb := range m {
		cb.OnError(path, err)
	}
}

func (m MultiProgress) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}
