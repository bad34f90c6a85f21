package tableloop

import (
	"golang.org/x/net/html"

	"looprec/backend/internal/actionlog"
	"looprec/backend/internal/classifier"
	"looprec/backend/internal/selector"
)

// Machine is the table-loop state machine. Transitions that do not apply in
// the current state are no-ops. Emitted actions carry kind and locator; the
// caller stamps and records them.
type Machine struct {
	state State

	subject        *html.Node
	subjectLocator string

	modifier bool
	pending  *html.Node
}

// New returns a machine in the Inactive state.
func New() *Machine {
	return &Machine{}
}

// State returns the current phase.
func (m *Machine) State() State { return m.state }

// Subject returns the committed loop container and its locator, if any.
func (m *Machine) Subject() (*html.Node, string) {
	return m.subject, m.subjectLocator
}

// Open reports whether a tableLoopStart has been emitted and not yet closed.
func (m *Machine) Open() bool {
	return m.state == SelectingNextButton || m.state == Active
}

// Pending returns the table under the modifier gesture, if any.
func (m *Machine) Pending() *html.Node { return m.pending }

// ModifierHeld reports whether the shortcut modifier is down.
func (m *Machine) ModifierHeld() bool { return m.modifier }

// Reset returns to Inactive and forgets every selection.
func (m *Machine) Reset() {
	*m = Machine{}
}

// Toggle advances the toggle control. Closing an open loop emits
// tableLoopEnd with the committed subject's locator.
func (m *Machine) Toggle() (actionlog.Action, bool) {
	switch m.state {
	case Inactive:
		m.state = Selecting
	case Selecting:
		m.state = Inactive
	case SelectingNextButton, Active:
		end := actionlog.Action{Kind: actionlog.KindTableLoopEnd, Locator: m.subjectLocator}
		m.close()
		return end, true
	}
	return actionlog.Action{}, false
}

// SkipPagination leaves the pagination step without choosing a control; the
// loop continues as Active with pagination absent.
func (m *Machine) SkipPagination() bool {
	if m.state != SelectingNextButton {
		return false
	}
	m.state = Active
	return true
}

// Click feeds a click on target. It returns an action when the click drove a
// transition, in which case the click is consumed and must not be recorded
// as an ordinary click.
func (m *Machine) Click(target *html.Node, cursor string) (actionlog.Action, bool) {
	switch m.state {
	case Selecting:
		if table := classifier.FindTable(target); table != nil {
			return m.commit(table), true
		}
	case SelectingNextButton:
		if classifier.IsInteractive(target, cursor) {
			m.state = Active
			return actionlog.Action{
				Kind:    actionlog.KindTablePaginationNext,
				Locator: selector.Synthesize(target),
			}, true
		}
	}
	return actionlog.Action{}, false
}

// ModifierDown starts the shortcut gesture. It is only available while no
// loop is being set up or open.
func (m *Machine) ModifierDown() {
	if m.state != Inactive {
		return
	}
	m.modifier = true
}

// Hover updates the pending table while the modifier is held.
func (m *Machine) Hover(target *html.Node) {
	if !m.modifier {
		return
	}
	m.pending = classifier.FindTable(target)
}

// ModifierClick commits the table under target (or the pending one) and
// emits tableLoopStart.
func (m *Machine) ModifierClick(target *html.Node) (actionlog.Action, bool) {
	if !m.modifier || m.state != Inactive {
		return actionlog.Action{}, false
	}
	table := classifier.FindTable(target)
	if table == nil {
		table = m.pending
	}
	if table == nil {
		return actionlog.Action{}, false
	}
	m.modifier = false
	return m.commit(table), true
}

// ModifierUp ends the gesture, abandoning any uncommitted selection.
func (m *Machine) ModifierUp() {
	m.modifier = false
	m.pending = nil
}

func (m *Machine) commit(table *html.Node) actionlog.Action {
	m.subject = table
	m.subjectLocator = selector.Synthesize(table)
	m.pending = nil
	m.state = SelectingNextButton
	return actionlog.Action{Kind: actionlog.KindTableLoopStart, Locator: m.subjectLocator}
}

func (m *Machine) close() {
	m.state = Inactive
	m.subject = nil
	m.subjectLocator = ""
}
