package gaze

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

const defaultTraceQueueSize = 1000

// TraceConfig controls raw detection frame tracing.
type TraceConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// TraceLogger appends raw detection frames to a per-session NDJSON
// file, one file per focus session. Writes happen on a background
// goroutine behind a bounded queue, so a slow disk drops frames
// instead of stalling the read loop.
type TraceLogger struct {
	dir    string
	logger *slog.Logger

	mu        sync.Mutex
	sessionID string
	closed    bool

	queue   chan traceEntry
	done    chan struct{}
	dropped atomic.Int64
}

type traceEntry struct {
	sessionID string
	data      []byte
}

// NewTraceLogger creates a trace logger. A disabled config returns a
// logger whose methods are no-ops.
func NewTraceLogger(cfg TraceConfig, logger *slog.Logger) (*TraceLogger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return &TraceLogger{logger: logger}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultTraceQueueSize
	}

	t := &TraceLogger{
		dir:    cfg.Dir,
		logger: logger,
		queue:  make(chan traceEntry, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go t.run()
	return t, nil
}

// SetSession routes subsequent frames to the given session's file. An
// empty ID stops tracing until the next session starts.
func (t *TraceLogger) SetSession(id string) {
	if t == nil || t.queue == nil {
		return
	}
	t.mu.Lock()
	t.sessionID = id
	t.mu.Unlock()
}

// Log enqueues one raw frame. Frames arriving while no session is set
// are discarded. The caller may reuse data after Log returns.
func (t *TraceLogger) Log(data []byte) {
	if t == nil || t.queue == nil {
		return
	}
	t.mu.Lock()
	sessionID := t.sessionID
	closed := t.closed
	t.mu.Unlock()
	if closed || sessionID == "" {
		return
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case t.queue <- traceEntry{sessionID: sessionID, data: buf}:
	default:
		if t.dropped.Add(1)%100 == 1 {
			t.logger.Warn("Trace queue full, dropping frames", "dropped", t.dropped.Load())
		}
	}
}

// Dropped reports the number of frames discarded due to a full queue.
func (t *TraceLogger) Dropped() int64 {
	if t == nil {
		return 0
	}
	return t.dropped.Load()
}

// Close drains the queue and stops the writer. Further Log calls are
// no-ops.
func (t *TraceLogger) Close() error {
	if t == nil || t.queue == nil {
		return nil
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.queue)
	<-t.done

	if n := t.dropped.Load(); n > 0 {
		t.logger.Warn("Trace logger dropped frames", "count", n)
	}
	return nil
}

func (t *TraceLogger) run() {
	defer close(t.done)

	var (
		file      *os.File
		sessionID string
	)
	closeFile := func() {
		if file == nil {
			return
		}
		if err := file.Close(); err != nil {
			t.logger.Warn("Failed to close trace file", "session_id", sessionID, "error", err)
		}
		file = nil
	}
	defer closeFile()

	for entry := range t.queue {
		if file == nil || entry.sessionID != sessionID {
			closeFile()
			path := filepath.Join(t.dir, entry.sessionID+".ndjson")
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				t.logger.Warn("Failed to open trace file", "path", path, "error", err)
				continue
			}
			file = f
			sessionID = entry.sessionID
		}

		if _, err := file.Write(append(entry.data, '\n')); err != nil {
			t.logger.Warn("Failed to write trace entry", "session_id", sessionID, "error", err)
		}
	}
}
