package actionlog

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrWriterClosed is returned when using a Writer after Close.
var ErrWriterClosed = errors.New("action log writer is closed")

// Writer persists snapshots to a Store asynchronously and in order. Enqueue
// never blocks: a snapshot still waiting when a newer one arrives is replaced
// by it, so a slow store sees fewer, more recent writes. Flush is the barrier
// that confirms the latest snapshot enqueued before it has reached the store.
type Writer struct {
	store  Store
	key    string
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	pending *Record
	waiters []chan error
	lastErr error

	wake chan struct{}
	done chan struct{}
}

// NewWriter starts a writer that stores records under key.
func NewWriter(store Store, key string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{
		store:  store,
		key:    key,
		logger: logger.Named("actionlog.writer"),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// Key returns the store key this writer persists to.
func (w *Writer) Key() string { return w.key }

// Enqueue schedules rec for persistence.
func (w *Writer) Enqueue(rec Record) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("Dropping snapshot enqueued after close", zap.String("key", w.key))
		return
	}
	if w.pending != nil {
		w.logger.Debug("Coalescing pending snapshot", zap.String("key", w.key))
	}
	w.pending = &rec
	w.mu.Unlock()
	w.signal()
}

// Flush blocks until every snapshot enqueued before the call has been
// written, returning the first write error seen since the previous Flush.
func (w *Writer) Flush(ctx context.Context) error {
	ack := make(chan error, 1)
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.waiters = append(w.waiters, ack)
	w.mu.Unlock()
	w.signal()

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes the pending snapshot and stops the writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	w.signal()

	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *Writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for range w.wake {
		for {
			w.mu.Lock()
			rec, waiters, closed := w.pending, w.waiters, w.closed
			w.pending, w.waiters = nil, nil
			w.mu.Unlock()

			if rec == nil && len(waiters) == 0 {
				if closed {
					return
				}
				break
			}
			if rec != nil {
				w.write(rec)
			}
			if len(waiters) > 0 {
				w.mu.Lock()
				err := w.lastErr
				w.lastErr = nil
				w.mu.Unlock()
				for _, ack := range waiters {
					ack <- err
				}
			}
		}
	}
}

func (w *Writer) write(rec *Record) {
	if err := w.store.Put(context.Background(), w.key, *rec); err != nil {
		w.logger.Error("Failed to persist action log",
			zap.String("key", w.key), zap.Error(err))
		w.mu.Lock()
		if w.lastErr == nil {
			w.lastErr = err
		}
		w.mu.Unlock()
		return
	}
	w.logger.Debug("Persisted action log",
		zap.String("key", w.key), zap.Int("actions", len(rec.Actions)))
}
