package synth

import (
	"regexp"
	"strings"
)

var nthOfType = regexp.MustCompile(`:nth-of-type\(\s*\d+\s*\)`)

// cellTags never act as rows even when they carry a positional qualifier.
var cellTags = map[string]bool{"td": true, "th": true}

// Relative reports whether locator lies under the loop subject and returns the
// part below it. Both the direct-descendant joiner and plain descendant
// whitespace count as containment.
func Relative(subject, locator string) (string, bool) {
	if subject == "" || !strings.HasPrefix(locator, subject) {
		return "", false
	}
	rest := locator[len(subject):]
	trimmed := strings.TrimLeft(rest, " \t\n")
	if strings.HasPrefix(trimmed, ">") {
		rel := strings.TrimSpace(trimmed[1:])
		return rel, rel != ""
	}
	// subject ending in an escape keeps its terminating space, so whitespace
	// alone is only a combinator when something follows it
	if trimmed != "" && len(trimmed) < len(rest) {
		return trimmed, true
	}
	return "", false
}

// splitRow separates a subject-relative locator into the selector of the row
// it was captured in and the locator of the target within that row. The row
// selector drops the positional qualifier, and a table row is reduced to its
// bare tag so that striped rows all match. rows is "" when the locator names
// no row; within is "" when the target is the row itself.
func splitRow(rel string) (rows, within string) {
	segs := segments(rel)
	r := -1
	for i, s := range segs {
		if tagOf(s) == "tr" {
			r = i
			break
		}
	}
	if r < 0 {
		for i, s := range segs {
			if nthOfType.MatchString(s) && !cellTags[tagOf(s)] {
				r = i
				break
			}
		}
	}
	if r < 0 {
		return "", rel
	}
	row := nthOfType.ReplaceAllString(segs[r], "")
	if tagOf(row) == "tr" {
		row = "tr"
	}
	head := append([]string(nil), segs[:r]...)
	head = append(head, row)
	return strings.Join(head, " > "), strings.Join(segs[r+1:], " > ")
}

// segments splits a locator on '>' combinators, ignoring escaped characters
// and anything inside brackets, parentheses or quotes.
func segments(loc string) []string {
	var (
		out   []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(loc); i++ {
		c := loc[i]
		switch {
		case c == '\\':
			i++
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == '>' && depth == 0:
			out = append(out, strings.TrimSpace(loc[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(loc[start:]))
}

// tagOf returns the type selector that leads a compound, lower-cased.
func tagOf(compound string) string {
	end := strings.IndexAny(compound, ".#:[ ")
	if end < 0 {
		end = len(compound)
	}
	return strings.ToLower(compound[:end])
}
