// Package selector derives stable CSS locators for page elements.
//
// A locator is built most-specific first: a unique id wins outright, then a
// tag+class compound, then a positional :nth-of-type qualifier, and finally
// the parent's locator joined with the direct-descendant combinator.
// Uniqueness is best effort: when no unique form exists the longest
// discriminating locator is returned.
package selector

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"looprec/backend/pkg/dom"
)

// Joiner separates ancestor and descendant parts of a locator.
const Joiner = " > "

// Synthesize returns a locator for el that is unique within its document
// whenever the document allows it.
func Synthesize(el *html.Node) string {
	return SynthesizeWithin(el, dom.RootOf(el))
}

// SynthesizeWithin is Synthesize with uniqueness judged among the descendants
// of root and ancestor escalation stopping at root. An element equal to root
// yields "".
func SynthesizeWithin(el, root *html.Node) string {
	if !dom.IsElement(el) || el == root || root == nil {
		return ""
	}

	if id, ok := dom.Attr(el, "id"); ok && id != "" {
		byID := "#" + dom.EscapeIdent(id)
		if count(root, byID) == 1 {
			return byID
		}
	}

	sel := compound(el)
	if count(root, sel) != 1 {
		sel += positional(el)
	}
	if count(root, sel) == 1 {
		return sel
	}

	parent := dom.ParentElement(el)
	if parent == nil || !dom.Contains(root, parent) {
		return sel
	}
	prefix := SynthesizeWithin(parent, root)
	if prefix == "" {
		return sel
	}
	return prefix + Joiner + sel
}

// Matches resolves locator against the descendants of root.
func Matches(root *html.Node, locator string) []*html.Node {
	nodes, err := dom.QueryAll(root, locator)
	if err != nil {
		return nil
	}
	return nodes
}

// compound is tag followed by every escaped class.
func compound(el *html.Node) string {
	var b strings.Builder
	b.WriteString(dom.Tag(el))
	for _, c := range dom.Classes(el) {
		b.WriteByte('.')
		b.WriteString(dom.EscapeIdent(c))
	}
	return b.String()
}

// positional returns the :nth-of-type qualifier, or "" when el has no
// same-tag siblings.
func positional(el *html.Node) string {
	parent := dom.ParentElement(el)
	if parent == nil {
		return ""
	}
	tag := dom.Tag(el)
	index, total := 0, 0
	for _, sib := range dom.ElementChildren(parent) {
		if dom.Tag(sib) != tag {
			continue
		}
		total++
		if sib == el {
			index = total
		}
	}
	if total <= 1 {
		return ""
	}
	return ":nth-of-type(" + strconv.Itoa(index) + ")"
}

func count(root *html.Node, sel string) int {
	return len(Matches(root, sel))
}
