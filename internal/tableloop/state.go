// Package tableloop tracks the user's demarcation of a repeating container
// (the loop subject) and its optional pagination control.
package tableloop

// State is the phase of the table-loop gesture.
type State int

const (
	Inactive State = iota
	Selecting
	SelectingNextButton
	Active
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Selecting:
		return "selecting"
	case SelectingNextButton:
		return "selecting_next_button"
	case Active:
		return "active"
	}
	return "unknown"
}

// Display is how the toggle control presents a state.
type Display struct {
	State string `json:"state"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Display returns the toggle surface for s.
func (s State) Display() Display {
	switch s {
	case Selecting:
		return Display{State: s.String(), Label: "Select Table...", Color: "#ffc107"}
	case SelectingNextButton:
		return Display{State: s.String(), Label: "Select Next Button...", Color: "#ff6b35"}
	case Active:
		return Display{State: s.String(), Label: "TableLoop (Active)", Color: "#28a745"}
	}
	return Display{State: Inactive.String(), Label: "TableLoop", Color: "#007bff"}
}
