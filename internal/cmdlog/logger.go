// Package cmdlog writes an append-only NDJSON transcript of processed
// commands, one file per user. Writes are asynchronous so a slow disk
// never stalls command handling.
package cmdlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Event is one logged command round-trip.
type Event struct {
	CommandID string    `json:"command_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel"` // text_http | voice_http | voice_ws
	Input     string    `json:"input"`
	Intent    string    `json:"intent"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	Response  string    `json:"response,omitempty"`
}

// Logger records command events. The zero-config disabled logger is a
// no-op, so callers never branch on whether logging is on.
type Logger interface {
	Log(Event)
	Close() error
}

// Config controls where and how the command log writes.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// New returns an async file logger, or a no-op one when disabled.
func New(cfg Config, log *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return noopLogger{}, nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("command log enabled but no directory configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create command log dir: %w", err)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}

	l := &fileLogger{
		dir:   cfg.Dir,
		queue: make(chan Event, queueSize),
		done:  make(chan struct{}),
		log:   log,
	}
	go l.run()
	return l, nil
}

type fileLogger struct {
	dir   string
	queue chan Event
	done  chan struct{}
	log   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Log enqueues an event. When the queue is full the event is dropped
// and counted; the command path never blocks on the log. Events that
// arrive after Close are dropped: a hijacked voice stream can still be
// finishing a command while the server shuts down.
func (l *fileLogger) Log(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.log.Debug("command log closed, dropping event",
			"user_id", ev.UserID, "command_id", ev.CommandID)
		return
	}

	select {
	case l.queue <- ev:
	default:
		l.log.Warn("command log queue full, dropping event",
			"user_id", ev.UserID, "command_id", ev.CommandID)
	}
}

// Close stops the writer after draining queued events. The closed flag
// is flipped under the write lock, so no Log can be mid-send when the
// queue channel is closed.
func (l *fileLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.queue)
	<-l.done
	return nil
}

func (l *fileLogger) run() {
	defer close(l.done)
	for ev := range l.queue {
		if err := l.write(ev); err != nil {
			l.log.Error("command log write failed",
				"user_id", ev.UserID, "error", err)
		}
	}
}

func (l *fileLogger) write(ev Event) error {
	userDir := filepath.Join(l.dir, sanitizeComponent(ev.UserID))
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return fmt.Errorf("create user log dir: %w", err)
	}

	path := filepath.Join(userDir, "commands.ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open command log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal command log event: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append command log line: %w", err)
	}
	return nil
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// sanitizeComponent keeps user ids from escaping the log directory.
func sanitizeComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "anonymous"
	}
	return unsafePathChars.ReplaceAllString(s, "_")
}

type noopLogger struct{}

func (noopLogger) Log(Event)    {}
func (noopLogger) Close() error { return nil }
