// Package actionlog holds the ordered, append-only log of recorded actions and
// the plumbing that persists it.
package actionlog

import "errors"

// Kind is the type of a recorded action.
type Kind string

const (
	KindClick               Kind = "click"
	KindInput               Kind = "input"
	KindSelect              Kind = "select"
	KindLabel               Kind = "label"
	KindTableLoopStart      Kind = "tableLoopStart"
	KindTableLoopEnd        Kind = "tableLoopEnd"
	KindTablePaginationNext Kind = "tablePaginationNext"
)

var (
	ErrEmptyLocator = errors.New("action locator is empty")
	ErrUnknownKind  = errors.New("unknown action kind")
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindClick, KindInput, KindSelect, KindLabel,
		KindTableLoopStart, KindTableLoopEnd, KindTablePaginationNext:
		return true
	}
	return false
}

// Boundary reports whether k demarcates a table loop rather than acting on
// the page.
func (k Kind) Boundary() bool {
	return k == KindTableLoopStart || k == KindTableLoopEnd || k == KindTablePaginationNext
}

// Action is one recorded user interaction.
type Action struct {
	Kind    Kind   `json:"kind"`
	Locator string `json:"locator"`
	// Value is typed text, the selected option's display text, or the text
	// captured for a label.
	Value string `json:"value,omitempty"`
	Label string `json:"label,omitempty"`
	// OptionValue is the underlying value of the option chosen in a select.
	OptionValue string `json:"optionValue,omitempty"`
	// Timestamp is capture time in milliseconds; used for ordering and
	// debugging only.
	Timestamp int64 `json:"timestamp"`
}

// Validate checks the invariants of a committed action.
func (a Action) Validate() error {
	if !a.Kind.Valid() {
		return ErrUnknownKind
	}
	if a.Locator == "" {
		return ErrEmptyLocator
	}
	return nil
}

// Record is the persisted state of one capture session.
type Record struct {
	BaseURL   string   `json:"baseUrl,omitempty"`
	Recording bool     `json:"isRecording"`
	Actions   []Action `json:"actions"`
}
