package actionlog

import "sync"

// Log is the in-memory action log of a session. It is only mutated through
// Append, which owns the coalescing rule.
type Log struct {
	mu      sync.RWMutex
	baseURL string
	actions []Action
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{actions: make([]Action, 0)}
}

// Append validates and appends a, first dropping trailing entries that a
// supersedes: consecutive edits (input/select) of the same locator collapse
// into the latest value. Timestamps are clamped so the log never goes back
// in time. The stored action is returned.
func (l *Log) Append(a Action) (Action, error) {
	if err := a.Validate(); err != nil {
		return Action{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if coalesces(a.Kind) {
		for len(l.actions) > 0 {
			last := l.actions[len(l.actions)-1]
			if last.Kind != a.Kind || last.Locator != a.Locator {
				break
			}
			l.actions = l.actions[:len(l.actions)-1]
		}
	}
	if n := len(l.actions); n > 0 && a.Timestamp < l.actions[n-1].Timestamp {
		a.Timestamp = l.actions[n-1].Timestamp
	}
	l.actions = append(l.actions, a)
	return a, nil
}

// Reset clears the log for a new session.
func (l *Log) Reset(baseURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.baseURL = baseURL
	l.actions = make([]Action, 0)
}

// SetBaseURL records the page the session started on if none is known yet.
func (l *Log) SetBaseURL(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.baseURL == "" {
		l.baseURL = url
	}
}

// BaseURL returns the recorded start page.
func (l *Log) BaseURL() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.baseURL
}

// Actions returns a copy of the recorded actions.
func (l *Log) Actions() []Action {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Action(nil), l.actions...)
}

// Len returns the number of recorded actions.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.actions)
}

// Snapshot returns an immutable copy suitable for persistence or compilation.
func (l *Log) Snapshot(recording bool) Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Record{
		BaseURL:   l.baseURL,
		Recording: recording,
		Actions:   append([]Action(nil), l.actions...),
	}
}

func coalesces(k Kind) bool {
	return k == KindInput || k == KindSelect
}
