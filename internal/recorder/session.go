package recorder

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"looprec/backend/internal/actionlog"
	"looprec/backend/internal/classifier"
	"looprec/backend/internal/selector"
	"looprec/backend/internal/tableloop"
	"looprec/backend/pkg/dom"
)

var (
	ErrNotRecording     = errors.New("no recording in progress")
	ErrAlreadyRecording = errors.New("recording is already in progress")
)

// Keys that drive the table-loop shortcuts.
const (
	ModifierKey = "Alt"
	SkipKey     = "Escape"
)

// Session is the state of one capture session. Every recorder-side decision
// (recording flag, loop phase, highlight tracking) is read from here.
type Session struct {
	id     string
	logger *zap.Logger
	now    func() time.Time
	writer *actionlog.Writer

	mu           sync.Mutex
	recording    bool
	log          *actionlog.Log
	loop         *tableloop.Machine
	hovered      *html.Node
	hoveredTable *html.Node
	lastActivity time.Time
	listeners    []func(actionlog.Action)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithWriter persists every change of the log through w.
func WithWriter(w *actionlog.Writer) SessionOption {
	return func(s *Session) { s.writer = w }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession returns an idle session.
func NewSession(id string, opts ...SessionOption) *Session {
	s := &Session{
		id:     id,
		logger: zap.NewNop(),
		now:    time.Now,
		log:    actionlog.NewLog(),
		loop:   tableloop.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", id))
	s.lastActivity = s.now()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Start begins recording at baseURL. Writes left over from an earlier run
// are flushed first so they cannot land after the reset.
func (s *Session) Start(ctx context.Context, baseURL string) error {
	if s.writer != nil {
		if err := s.writer.Flush(ctx); err != nil {
			s.logger.Warn("Earlier action log writes failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return ErrAlreadyRecording
	}
	s.log.Reset(baseURL)
	s.loop.Reset()
	s.hovered, s.hoveredTable = nil, nil
	s.recording = true
	s.lastActivity = s.now()
	s.persistLocked()
	s.logger.Info("Recording started", zap.String("base_url", baseURL))
	return nil
}

// Stop ends recording and waits for the final snapshot to be persisted.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return ErrNotRecording
	}
	s.recording = false
	s.lastActivity = s.now()
	s.persistLocked()
	n := s.log.Len()
	s.mu.Unlock()

	s.logger.Info("Recording stopped", zap.Int("actions", n))
	if s.writer != nil {
		return s.writer.Flush(ctx)
	}
	return nil
}

// Recording reports whether the session is capturing.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Actions returns a snapshot of the action log.
func (s *Session) Actions() []actionlog.Action {
	return s.log.Actions()
}

// Record returns the persisted form of the session.
func (s *Session) Record() actionlog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Snapshot(s.recording)
}

// Clear empties the log, keeping the base URL and the recording flag.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Reset(s.log.BaseURL())
	s.loop.Reset()
	s.persistLocked()
}

// Toggle advances the table-loop toggle control.
func (s *Session) Toggle() (tableloop.State, error) {
	var emitted []actionlog.Action

	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return tableloop.Inactive, ErrNotRecording
	}
	s.lastActivity = s.now()
	if a, ok := s.loop.Toggle(); ok {
		a.Timestamp = s.now().UnixMilli()
		if committed, ok := s.appendLocked(a); ok {
			emitted = append(emitted, committed)
		}
	}
	state := s.loop.State()
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, emitted)
	return state, nil
}

// LoopState returns the table-loop phase.
func (s *Session) LoopState() tableloop.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop.State()
}

// LoopSubject returns the locator of the committed loop subject, if any.
func (s *Session) LoopSubject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, loc := s.loop.Subject()
	return loc
}

// Highlighted returns the element offered for labeling and the table under
// the pointer.
func (s *Session) Highlighted() (el, table *html.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop.ModifierHeld() && s.loop.Pending() != nil {
		return s.hovered, s.loop.Pending()
	}
	return s.hovered, s.hoveredTable
}

// LastActivity is when the session last saw a command or event.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// OnAction registers fn to receive every committed action. fn runs on the
// goroutine that fed the event and must not block.
func (s *Session) OnAction(fn func(actionlog.Action)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// HandleEvent feeds one captured event. It returns the committed action when
// the event produced one.
func (s *Session) HandleEvent(ev classifier.Event) (actionlog.Action, bool) {
	var emitted []actionlog.Action

	s.mu.Lock()
	if !s.recording || !dom.IsElement(ev.Target) || classifier.ShouldIgnore(ev.Target) {
		s.mu.Unlock()
		return actionlog.Action{}, false
	}
	s.lastActivity = s.now()

	for _, a := range s.interpretLocked(ev) {
		if committed, ok := s.appendLocked(a); ok {
			emitted = append(emitted, committed)
		}
	}
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, emitted)
	if len(emitted) == 0 {
		return actionlog.Action{}, false
	}
	return emitted[len(emitted)-1], true
}

func (s *Session) interpretLocked(ev classifier.Event) []actionlog.Action {
	target := ev.Target
	switch ev.Type {
	case classifier.EventMouseOver:
		s.hoveredTable = classifier.FindTable(target)
		s.hovered = nil
		if classifier.IsHighlightable(target) {
			s.hovered = target
		}
		s.loop.Hover(target)
		return nil

	case classifier.EventKeyDown:
		switch ev.Key {
		case ModifierKey:
			s.loop.ModifierDown()
		case SkipKey:
			s.loop.SkipPagination()
		}
		return nil

	case classifier.EventKeyUp:
		if ev.Key == ModifierKey {
			s.loop.ModifierUp()
		}
		return nil

	case classifier.EventClick:
		if s.loop.ModifierHeld() {
			if a, ok := s.loop.ModifierClick(target); ok {
				return []actionlog.Action{stamp(a, ev, s.now)}
			}
		}
		if a, ok := s.loop.Click(target, ev.Cursor); ok {
			return []actionlog.Action{stamp(a, ev, s.now)}
		}
	}

	kind, ok := classifier.Classify(ev)
	if !ok {
		return nil
	}
	a := actionlog.Action{
		Kind:    kind,
		Locator: s.locateLocked(target),
		Value:   ev.Value,
	}
	switch kind {
	case actionlog.KindSelect:
		a.OptionValue = ev.Value
		if text := classifier.SelectedOptionText(target, ev.Value); text != "" {
			a.Value = text
		}
	case actionlog.KindLabel:
		a.Label = ev.Label
		a.Value = classifier.TextContent(target)
	case actionlog.KindClick:
		a.Value = ""
	}
	return []actionlog.Action{stamp(a, ev, s.now)}
}

// locateLocked addresses target. Inside the committed loop subject the
// locator is the subject's locator followed by a path relative to it, so
// the synthesizer can tell body actions from everything else.
func (s *Session) locateLocked(target *html.Node) string {
	if _, subjectLoc := s.loop.Subject(); subjectLoc != "" {
		for _, subject := range selector.Matches(dom.RootOf(target), subjectLoc) {
			if subject != target && dom.Contains(subject, target) {
				return subjectLoc + " " + selector.SynthesizeWithin(target, subject)
			}
		}
	}
	return selector.Synthesize(target)
}

func (s *Session) appendLocked(a actionlog.Action) (actionlog.Action, bool) {
	committed, err := s.log.Append(a)
	if err != nil {
		s.logger.Warn("Dropping action", zap.String("kind", string(a.Kind)), zap.Error(err))
		return actionlog.Action{}, false
	}
	s.logger.Debug("Recorded action",
		zap.String("kind", string(committed.Kind)), zap.String("locator", committed.Locator))
	s.persistLocked()
	return committed, true
}

func (s *Session) persistLocked() {
	if s.writer != nil {
		s.writer.Enqueue(s.log.Snapshot(s.recording))
	}
}

func stamp(a actionlog.Action, ev classifier.Event, now func() time.Time) actionlog.Action {
	a.Timestamp = ev.Timestamp
	if a.Timestamp == 0 {
		a.Timestamp = now().UnixMilli()
	}
	return a
}

func notify(listeners []func(actionlog.Action), actions []actionlog.Action) {
	for _, a := range actions {
		for _, fn := range listeners {
			fn(a)
		}
	}
}
