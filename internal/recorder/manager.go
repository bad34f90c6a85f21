package recorder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"looprec/backend/internal/actionlog"
)

var (
	ErrSessionExists   = errors.New("recording session already exists")
	ErrSessionNotFound = errors.New("recording session not found")
)

type entry struct {
	session *Session
	host    Host
	stream  *Stream
	writer  *actionlog.Writer
}

// RecorderManager owns every live capture session.
type RecorderManager struct {
	mu      sync.RWMutex
	entries map[string]*entry

	store  actionlog.Store
	logger *zap.Logger
	launch LaunchOptions
}

// Manager is the process-wide session registry used by the HTTP handlers.
var Manager = NewManager(actionlog.NewMemoryStore(), nil, LaunchOptions{})

func NewManager(store actionlog.Store, logger *zap.Logger, launch LaunchOptions) *RecorderManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecorderManager{
		entries: make(map[string]*entry),
		store:   store,
		logger:  logger.Named("recorder"),
		launch:  launch,
	}
}

// Configure replaces the store, logger and launch options used for sessions
// started afterwards.
func (rm *RecorderManager) Configure(store actionlog.Store, logger *zap.Logger, launch LaunchOptions) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if store != nil {
		rm.store = store
	}
	if logger != nil {
		rm.logger = logger.Named("recorder")
	}
	rm.launch = launch
}

// Store returns the store session logs are persisted to.
func (rm *RecorderManager) Store() actionlog.Store {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.store
}

// StartRecording opens a browser at targetURL and begins a session under
// sessionID.
func (rm *RecorderManager) StartRecording(ctx context.Context, sessionID, targetURL string, device DeviceInfo) (*Session, error) {
	rm.mu.RLock()
	_, exists := rm.entries[sessionID]
	store, logger, launch := rm.store, rm.logger, rm.launch
	rm.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}

	writer := actionlog.NewWriter(store, sessionID, logger)
	session := NewSession(sessionID, WithWriter(writer), WithLogger(logger))
	if err := session.Start(ctx, targetURL); err != nil {
		writer.Close()
		return nil, err
	}

	host := NewChromeRecorder(session, device, launch, logger)
	if err := host.Launch(ctx, targetURL); err != nil {
		writer.Close()
		return nil, err
	}

	if err := rm.adopt(session, host, writer); err != nil {
		host.Close()
		writer.Close()
		return nil, err
	}
	return session, nil
}

// Adopt registers a session driven by host, which may be nil for sessions
// fed from elsewhere.
func (rm *RecorderManager) Adopt(session *Session, host Host) error {
	return rm.adopt(session, host, session.writer)
}

func (rm *RecorderManager) adopt(session *Session, host Host, writer *actionlog.Writer) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, exists := rm.entries[session.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrSessionExists, session.ID())
	}
	rm.entries[session.ID()] = &entry{
		session: session,
		host:    host,
		stream:  newStream(session, rm.logger),
		writer:  writer,
	}
	return nil
}

func (rm *RecorderManager) Get(sessionID string) (*Session, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	e, ok := rm.entries[sessionID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Stream returns the live action stream of a session.
func (rm *RecorderManager) Stream(sessionID string) (*Stream, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	e, ok := rm.entries[sessionID]
	if !ok {
		return nil, false
	}
	return e.stream, true
}

// StopRecording ends capture and closes the browser. The session stays
// registered so its log can still be read and saved.
func (rm *RecorderManager) StopRecording(ctx context.Context, sessionID string) error {
	rm.mu.Lock()
	e, ok := rm.entries[sessionID]
	var host Host
	if ok {
		host, e.host = e.host, nil
	}
	rm.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	err := e.session.Stop(ctx)
	if host != nil {
		if cerr := host.Close(); cerr != nil {
			rm.logger.Warn("Recording browser did not close cleanly", zap.String("session", sessionID), zap.Error(cerr))
		}
	}
	return err
}

// Remove forgets a session, closing its browser, subscribers and writer.
func (rm *RecorderManager) Remove(sessionID string) error {
	rm.mu.Lock()
	e, ok := rm.entries[sessionID]
	delete(rm.entries, sessionID)
	rm.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return rm.release(e)
}

// Sweep removes sessions idle for longer than idle and returns their ids.
func (rm *RecorderManager) Sweep(idle time.Duration) []string {
	cutoff := time.Now().Add(-idle)

	rm.mu.Lock()
	var stale []*entry
	for id, e := range rm.entries {
		if e.session.LastActivity().Before(cutoff) {
			stale = append(stale, e)
			delete(rm.entries, id)
		}
	}
	rm.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, e := range stale {
		if err := rm.release(e); err != nil {
			rm.logger.Warn("Error releasing idle session", zap.String("session", e.session.ID()), zap.Error(err))
		}
		ids = append(ids, e.session.ID())
	}
	sort.Strings(ids)
	return ids
}

// IDs lists registered sessions in sorted order.
func (rm *RecorderManager) IDs() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	ids := make([]string, 0, len(rm.entries))
	for id := range rm.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown removes every session.
func (rm *RecorderManager) Shutdown() {
	for _, id := range rm.IDs() {
		if err := rm.Remove(id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			rm.logger.Warn("Error closing session", zap.String("session", id), zap.Error(err))
		}
	}
}

func (rm *RecorderManager) release(e *entry) error {
	var errs []error
	if e.host != nil {
		errs = append(errs, e.host.Close())
	}
	e.stream.close()
	if e.writer != nil {
		errs = append(errs, e.writer.Close())
	}
	return errors.Join(errs...)
}
