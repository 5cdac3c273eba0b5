package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultLogLines bounds the lines a run log keeps.
const DefaultLogLines = 500

const subscriberBuffer = 256

// Log is a bounded buffer of run log lines with live subscribers.
type Log struct {
	mu     sync.Mutex
	lines  []string
	max    int
	subs   map[int]chan string
	nextID int
	closed bool
}

func NewLog(max int) *Log {
	if max <= 0 {
		max = DefaultLogLines
	}
	return &Log{
		max:  max,
		subs: make(map[int]chan string),
	}
}

// Append adds a line and fans it out. Subscribers that fall behind miss
// lines rather than block the run.
func (l *Log) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.lines = append(l.lines, line)
	if over := len(l.lines) - l.max; over > 0 {
		l.lines = append(l.lines[:0:0], l.lines[over:]...)
	}

	for _, ch := range l.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

// Lines returns a copy of the retained lines.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Subscribe returns the current backlog and a channel of subsequent lines.
// The channel is closed when the log closes or cancel is called.
func (l *Log) Subscribe() (backlog []string, lines <-chan string, cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	backlog = append([]string(nil), l.lines...)
	ch := make(chan string, subscriberBuffer)
	if l.closed {
		close(ch)
		return backlog, ch, func() {}
	}

	id := l.nextID
	l.nextID++
	l.subs[id] = ch

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if sub, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(sub)
			}
		})
	}
	return backlog, ch, cancel
}

// Close ends every subscription. Later appends are dropped.
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
}

// Write appends each newline-terminated line in p.
func (l *Log) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		l.Append(line)
	}
	return len(p), nil
}

// Handler returns an slog handler that renders records as text lines into
// the log.
func (l *Log) Handler(level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(l, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.TimeOnly))
			}
			return a
		},
	})
}

// teeHandler sends every record to each handler that accepts it.
type teeHandler []slog.Handler

// Tee combines handlers into one.
func Tee(handlers ...slog.Handler) slog.Handler {
	return teeHandler(handlers)
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
