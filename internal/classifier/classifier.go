// Package classifier decides which raw DOM events are user-intended actions.
package classifier

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"looprec/backend/internal/actionlog"
	"looprec/backend/pkg/dom"
)

// IgnoreClass marks the recorder's own overlay UI; anything below it is
// invisible to classification.
const IgnoreClass = "ignore-recorder"

// EventType is the DOM event name reported by the host.
type EventType string

const (
	EventClick     EventType = "click"
	EventInput     EventType = "input"
	EventChange    EventType = "change"
	EventMouseOver EventType = "mouseover"
	EventKeyDown   EventType = "keydown"
	EventKeyUp     EventType = "keyup"
	EventLabel     EventType = "label"
)

// Event is one captured interaction.
type Event struct {
	Type   EventType
	Target *html.Node
	// Cursor is the target's computed cursor style, when the host knows it.
	Cursor string
	// Value is the control's value for input/change events.
	Value string
	// Key is the key name for keyboard events.
	Key string
	// Label is the user-assigned name for label events.
	Label     string
	Timestamp int64
}

var interactiveTags = map[string]bool{
	"button": true,
	"a":      true,
	"input":  true,
}

var interactiveRoles = map[string]bool{
	"button": true,
	"link":   true,
}

var formControls = map[string]bool{
	"input":    true,
	"textarea": true,
	"select":   true,
}

// Classify maps an event to the action kind it denotes. ok is false for
// events that are not actions, which is a normal outcome.
func Classify(ev Event) (kind actionlog.Kind, ok bool) {
	if !dom.IsElement(ev.Target) || ShouldIgnore(ev.Target) {
		return "", false
	}
	switch ev.Type {
	case EventClick:
		if IsInteractive(ev.Target, ev.Cursor) {
			return actionlog.KindClick, true
		}
	case EventInput, EventChange:
		if dom.Tag(ev.Target) == "select" {
			if ev.Type == EventChange {
				return actionlog.KindSelect, true
			}
			return "", false
		}
		if isFormControl(ev.Target) {
			return actionlog.KindInput, true
		}
	case EventLabel:
		if strings.TrimSpace(ev.Label) != "" {
			return actionlog.KindLabel, true
		}
	}
	return "", false
}

// IsInteractive reports whether a click on el is a deliberate action rather
// than a passive hover: an intrinsically interactive tag, an interactive ARIA
// role, an onclick attribute, a pointer cursor or keyboard focusability.
func IsInteractive(el *html.Node, cursor string) bool {
	if !dom.IsElement(el) {
		return false
	}
	if interactiveTags[dom.Tag(el)] {
		return true
	}
	if role, _ := dom.Attr(el, "role"); interactiveRoles[role] {
		return true
	}
	if onclick, _ := dom.Attr(el, "onclick"); onclick != "" {
		return true
	}
	if cursor == "" {
		cursor = inlineCursor(el)
	}
	if cursor == "pointer" {
		return true
	}
	return TabIndex(el) >= 0
}

// ShouldIgnore reports whether el or any ancestor carries IgnoreClass.
func ShouldIgnore(el *html.Node) bool {
	for cur := el; cur != nil; cur = dom.ParentElement(cur) {
		if dom.HasClass(cur, IgnoreClass) {
			return true
		}
	}
	return false
}

// FindTable walks up from el to the nearest table-like container: a <table>,
// an element with role=table, or one carrying the "table" class. The walk
// stops at <body>.
func FindTable(el *html.Node) *html.Node {
	for cur := el; cur != nil && dom.Tag(cur) != "body"; cur = dom.ParentElement(cur) {
		if !dom.IsElement(cur) {
			continue
		}
		if dom.Tag(cur) == "table" || dom.HasClass(cur, "table") {
			return cur
		}
		if role, _ := dom.Attr(cur, "role"); role == "table" {
			return cur
		}
	}
	return nil
}

// IsHighlightable reports whether el is a text leaf worth offering for
// labeling.
func IsHighlightable(el *html.Node) bool {
	if !dom.IsElement(el) || ShouldIgnore(el) {
		return false
	}
	if len(dom.ElementChildren(el)) > 0 {
		return false
	}
	return TextContent(el) != ""
}

// TextContent is the trimmed text below el.
func TextContent(el *html.Node) string {
	return strings.TrimSpace(dom.Text(el))
}

// TabIndex mirrors HTMLElement.tabIndex: the parsed tabindex attribute, else
// 0 for natively focusable elements and -1 otherwise.
func TabIndex(el *html.Node) int {
	if v, ok := dom.Attr(el, "tabindex"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	switch dom.Tag(el) {
	case "a", "area":
		if _, ok := dom.Attr(el, "href"); ok {
			return 0
		}
	case "button", "select", "textarea", "iframe", "summary":
		return 0
	case "input":
		if t, _ := dom.Attr(el, "type"); !strings.EqualFold(t, "hidden") {
			return 0
		}
	}
	if v, ok := dom.Attr(el, "contenteditable"); ok && !strings.EqualFold(v, "false") {
		return 0
	}
	return -1
}

// SelectedOptionText returns the display text of the <option> whose value is
// value. Options without a value attribute use their text as value.
func SelectedOptionText(sel *html.Node, value string) string {
	var found string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if dom.Tag(c) == "option" {
				text := TextContent(c)
				v, ok := dom.Attr(c, "value")
				if !ok {
					v = text
				}
				if v == value {
					found = text
					return true
				}
			}
			if walk(c) {
				return true
			}
		}
		return false
	}
	if sel != nil {
		walk(sel)
	}
	return found
}

func isFormControl(el *html.Node) bool {
	if formControls[dom.Tag(el)] {
		return true
	}
	v, ok := dom.Attr(el, "contenteditable")
	return ok && !strings.EqualFold(v, "false")
}

func inlineCursor(el *html.Node) string {
	style, _ := dom.Attr(el, "style")
	for _, decl := range strings.Split(style, ";") {
		name, val, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "cursor") {
			return strings.ToLower(strings.TrimSpace(val))
		}
	}
	return ""
}
