package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// writeTimeout bounds each background insert so one hung write cannot
// stall the queue forever.
const writeTimeout = 10 * time.Second

// Entry is one command execution to be recorded.
type Entry struct {
	DeviceID       string
	CommandType    string
	CommandData    map[string]any
	Success        bool
	ResponseTimeMS int64
	ErrorMessage   string
}

// WriteFunc persists one entry. The production logger uses
// Repository.Insert; tests inject fakes.
type WriteFunc func(ctx context.Context, entry Entry) error

// Logger writes command history entries from a bounded queue on a single
// background goroutine.
//
// Enqueue never blocks: when the queue is full the entry is dropped and
// counted. Stop drains whatever is queued before returning, so entries
// accepted before shutdown are not lost.
type Logger struct {
	queue   chan Entry
	write   WriteFunc
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool

	done chan struct{}

	logger interface {
		Warn(msg string, args ...any)
		Error(msg string, args ...any)
	}
}

// NewLogger creates a history logger and starts its worker.
//
// Parameters:
//   - queueSize: Maximum entries buffered before drops begin
//   - write: Persistence function, called once per entry
//
// Returns:
//   - *Logger: Running logger; callers must Stop it on shutdown
func NewLogger(queueSize int, write WriteFunc) *Logger {
	if queueSize < 1 {
		queueSize = 1
	}

	l := &Logger{
		queue: make(chan Entry, queueSize),
		write: write,
		done:  make(chan struct{}),
	}

	go l.run()
	return l
}

// SetLogger sets an optional logger for drop warnings and write failures.
func (l *Logger) SetLogger(logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}) {
	l.mu.Lock()
	l.logger = logger
	l.mu.Unlock()
}

// Enqueue queues an entry for background persistence.
//
// Returns false when the entry was dropped, either because the queue is
// full or the logger has been stopped. Callers treat a drop as a warning,
// never an error: history is best-effort.
func (l *Logger) Enqueue(entry Entry) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.dropped.Add(1)
		return false
	}

	select {
	case l.queue <- entry:
		return true
	default:
		l.dropped.Add(1)
		// Read the logger field directly: recursive RLock is not allowed.
		if l.logger != nil {
			l.logger.Warn("history queue full, dropping entry",
				"device_id", entry.DeviceID,
				"command", entry.CommandType,
				"dropped_total", l.dropped.Load())
		}
		return false
	}
}

// Dropped returns how many entries have been discarded since start.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Stop closes the queue and waits for the worker to drain it.
// Safe to call more than once.
func (l *Logger) Stop() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
}

// run is the worker loop. It exits when the queue is closed and empty.
func (l *Logger) run() {
	defer close(l.done)

	for entry := range l.queue {
		l.writeOne(entry)
	}
}

// writeOne persists a single entry, recovering from panics so one bad
// entry cannot kill the worker.
func (l *Logger) writeOne(entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			l.errorLog("panic writing history entry",
				"device_id", entry.DeviceID,
				"command", entry.CommandType,
				"panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := l.write(ctx, entry); err != nil {
		l.errorLog("failed to write history entry",
			"device_id", entry.DeviceID,
			"command", entry.CommandType,
			"error", err)
	}
}

func (l *Logger) errorLog(msg string, args ...any) {
	l.mu.RLock()
	logger := l.logger
	l.mu.RUnlock()
	if logger != nil {
		logger.Error(msg, args...)
	}
}
