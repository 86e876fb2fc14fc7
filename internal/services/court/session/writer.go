package session

import (
	"context"
	"log"
	"sync"
	"time"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
	"github.com/louisbranch/courtroom/internal/platform/timeouts"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

// WriteKind names a match write.
type WriteKind string

const (
	WriteProgress WriteKind = "progress"
	WriteResult   WriteKind = "result"
)

// WriterConfig wires a Writer.
type WriterConfig struct {
	Store   storage.MatchStore
	MatchID string
	// Timeout caps each store call. Defaults to timeouts.PersistWrite.
	Timeout time.Duration
	// OnComplete runs on the writer goroutine after every write, with a nil
	// error on success.
	OnComplete func(kind WriteKind, err error)
	Logf       func(string, ...any)
}

type write struct {
	kind     WriteKind
	progress match.Progress
	result   match.Result
}

// Writer applies match writes in order on its own goroutine. Enqueuing never
// blocks and failed writes are not retried.
type Writer struct {
	store      storage.MatchStore
	matchID    string
	timeout    time.Duration
	onComplete func(WriteKind, error)
	logf       func(string, ...any)

	mu     sync.Mutex
	queue  []write
	closed bool

	startOnce sync.Once
	wake      chan struct{}
	done      chan struct{}
}

// NewWriter creates a writer. Writes queue up until Start is called.
func NewWriter(cfg WriterConfig) *Writer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.PersistWrite
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Writer{
		store:      cfg.Store,
		matchID:    cfg.MatchID,
		timeout:    cfg.Timeout,
		onComplete: cfg.OnComplete,
		logf:       cfg.Logf,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (w *Writer) Start() {
	w.startOnce.Do(func() {
		go w.loop()
	})
}

// SaveProgress queues a progress write. A queued progress write that has not
// started yet is replaced, since each one overwrites the last.
func (w *Writer) SaveProgress(p match.Progress) {
	w.enqueue(write{kind: WriteProgress, progress: p})
}

// SaveResult queues the final write.
func (w *Writer) SaveResult(r match.Result) {
	w.enqueue(write{kind: WriteResult, result: r})
}

// Close stops accepting writes, waits for queued writes to finish and stops
// the writer goroutine.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.Start()
	w.signal()
	<-w.done
}

func (w *Writer) enqueue(job write) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logf("court writer: dropping %s write for match %s after close", job.kind, w.matchID)
		return
	}
	if n := len(w.queue); n > 0 && job.kind == WriteProgress && w.queue[n-1].kind == WriteProgress {
		w.queue[n-1] = job
	} else {
		w.queue = append(w.queue, job)
	}
	w.mu.Unlock()
	w.signal()
}

func (w *Writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Writer) loop() {
	defer close(w.done)
	for {
		job, ok := w.next()
		if !ok {
			return
		}
		w.apply(job)
	}
}

func (w *Writer) next() (write, bool) {
	for {
		w.mu.Lock()
		if len(w.queue) > 0 {
			job := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()
			return job, true
		}
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return write{}, false
		}
		<-w.wake
	}
}

func (w *Writer) apply(job write) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	var err error
	switch job.kind {
	case WriteProgress:
		err = w.store.SaveMatchProgress(ctx, w.matchID, job.progress)
	case WriteResult:
		err = w.store.SaveMatchResult(ctx, w.matchID, job.result)
	}
	cancel()
	if err != nil {
		err = apperrors.WrapWithMetadata(apperrors.CodePersistFailed, "match write failed", map[string]string{
			"match_id": w.matchID,
			"write":    string(job.kind),
		}, err)
		w.logf("court writer: %s write for match %s failed: %v", job.kind, w.matchID, err)
	}
	if w.onComplete != nil {
		w.onComplete(job.kind, err)
	}
}
