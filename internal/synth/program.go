// Package synth compiles a finished action log into a standalone Python
// Selenium script that replays it, looping over table rows and following
// pagination where the log demarcates a table loop.
package synth

import (
	"fmt"

	"looprec/backend/internal/actionlog"
)

// Step is one compiled page operation. Steps live in Program.Steps and refer
// to each other by index.
type Step struct {
	Kind        actionlog.Kind
	Locator     string
	Value       string
	Label       string
	OptionValue string
	// InRow marks locators that resolve within the row being iterated.
	InRow bool
	// PostClick lists the steps run on the page this click leads to; only
	// loop-body clicks own one.
	PostClick []int
}

// Loop is a table-loop block.
type Loop struct {
	Subject string
	// Rows selects the repeating rows within Subject; "" lets the script
	// detect them.
	Rows string
	// Next is the pagination control; "" when the loop has no pagination.
	Next string
	// Setup runs once before row enumeration.
	Setup []int
	Body  []int
}

// Item is one top-level entry: a step or a loop.
type Item struct {
	Step int
	Loop *Loop
}

// Program is the compiled form of an action log.
type Program struct {
	BaseURL  string
	Steps    []Step
	Items    []Item
	Warnings []string
}

// Build compiles actions in one left-to-right pass. Orphaned boundary actions
// are skipped with a warning; a loop left open at the end of the log is
// closed implicitly.
func Build(actions []actionlog.Action) *Program {
	p := &Program{}
	var (
		open      *Loop
		lastClick = -1
	)

	for i, a := range actions {
		pos := i + 1
		switch a.Kind {
		case actionlog.KindTableLoopStart:
			if open != nil {
				p.warnf("action %d: tableLoopStart while a loop is open, ignored", pos)
				continue
			}
			if a.Locator == "" {
				p.warnf("action %d: tableLoopStart without a locator, ignored", pos)
				continue
			}
			open = &Loop{Subject: a.Locator}
			lastClick = -1

		case actionlog.KindTablePaginationNext:
			if open == nil {
				p.warnf("action %d: tablePaginationNext outside a loop, ignored", pos)
				continue
			}
			open.Next = a.Locator

		case actionlog.KindTableLoopEnd:
			if open == nil {
				p.warnf("action %d: tableLoopEnd without a matching start, ignored", pos)
				continue
			}
			p.Items = append(p.Items, Item{Step: -1, Loop: open})
			open = nil

		case actionlog.KindClick, actionlog.KindInput, actionlog.KindSelect, actionlog.KindLabel:
			if open == nil {
				p.Items = append(p.Items, Item{Step: p.add(stepOf(a))})
				continue
			}
			if rel, ok := Relative(open.Subject, a.Locator); ok {
				rows, within := splitRow(rel)
				if open.Rows == "" {
					open.Rows = rows
				}
				s := stepOf(a)
				s.Locator = within
				s.InRow = true
				idx := p.add(s)
				open.Body = append(open.Body, idx)
				if a.Kind == actionlog.KindClick {
					lastClick = idx
				}
				continue
			}
			idx := p.add(stepOf(a))
			if lastClick >= 0 {
				p.Steps[lastClick].PostClick = append(p.Steps[lastClick].PostClick, idx)
			} else {
				open.Setup = append(open.Setup, idx)
			}

		default:
			p.warnf("action %d: unknown kind %q, ignored", pos, a.Kind)
		}
	}

	if open != nil {
		p.warnf("loop over %s was never closed; closed at end of log", open.Subject)
		p.Items = append(p.Items, Item{Step: -1, Loop: open})
	}
	return p
}

// BuildRecord is Build over a persisted record, keeping its base URL.
func BuildRecord(rec actionlog.Record) *Program {
	p := Build(rec.Actions)
	p.BaseURL = rec.BaseURL
	return p
}

// Loops returns the program's loop blocks in order.
func (p *Program) Loops() []*Loop {
	var out []*Loop
	for _, it := range p.Items {
		if it.Loop != nil {
			out = append(out, it.Loop)
		}
	}
	return out
}

func (p *Program) add(s Step) int {
	p.Steps = append(p.Steps, s)
	return len(p.Steps) - 1
}

func (p *Program) warnf(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

func stepOf(a actionlog.Action) Step {
	return Step{
		Kind:        a.Kind,
		Locator:     a.Locator,
		Value:       a.Value,
		Label:       a.Label,
		OptionValue: a.OptionValue,
	}
}
