package linksync

import (
	"context"
	"log/slog"
	"sync"
)

type logEntry struct {
	Level slog.Level
	Msg   string
}

// logRecorder is a slog.Handler that keeps every record in memory.
type logRecorder struct {
	mu      sync.Mutex
	entries []logEntry
}

func newLogRecorder() (*logRecorder, *slog.Logger) {
	r := &logRecorder{}
	return r, slog.New(r)
}

func (r *logRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *logRecorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logEntry{Level: rec.Level, Msg: rec.Message})
	return nil
}

func (r *logRecorder) WithAttrs([]slog.Attr) slog.Handler { return r }

func (r *logRecorder) WithGroup(string) slog.Handler { return r }

// visible returns the INFO and above records, the ones a default console shows.
func (r *logRecorder) visible() []logEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []logEntry
	for _, e := range r.entries {
		if e.Level >= slog.LevelInfo {
			out = append(out, e)
		}
	}
	return out
}

func (r *logRecorder) count(level slog.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

func (r *logRecorder) levels() []slog.Level {
	var out []slog.Level
	for _, e := range r.visible() {
		out = append(out, e.Level)
	}
	return out
}

func (r *logRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
