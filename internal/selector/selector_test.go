package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"looprec/backend/pkg/dom"
)

const resultsPage = `<html><body>
<form><input id="q" name="q"><button id="login" class="btn primary">Go</button></form>
<div id="a"><span>left</span></div>
<div id="b"><span>right</span></div>
<ul class="menu"><li>one</li><li>two</li><li>three</li></ul>
<table id="results"><tbody>
<tr><td class="name">Alice</td><td><a class="details" href="/a">more</a></td></tr>
<tr><td class="name">Bob</td><td><a class="details" href="/b">more</a></td></tr>
</tbody></table>
<p id="dup">x</p><p id="dup" class="second">y</p>
<em id="1st">first</em>
</body></html>`

func load(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(src)
	require.NoError(t, err)
	return doc
}

func only(t *testing.T, doc *dom.Document, sel string, idx int) *html.Node {
	t.Helper()
	nodes := doc.Find(sel)
	require.Greater(t, len(nodes), idx, "fixture selector %q", sel)
	return nodes[idx]
}

func TestSynthesize(t *testing.T) {
	doc := load(t, resultsPage)

	tests := []struct {
		name string
		find string
		idx  int
		want string
	}{
		{"unique id", "#login", 0, "#login"},
		{"duplicate id falls back to classes", "p.second", 0, "p.second"},
		{"nth-of-type among siblings", "ul.menu li", 1, "li:nth-of-type(2)"},
		{"ancestor escalation", "#b span", 0, "#b > span"},
		{"row cell", "td.name", 1, "tr:nth-of-type(2) > td.name:nth-of-type(1)"},
		{"escaped id", "em", 0, `#\31 st`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := only(t, doc, tt.find, tt.idx)
			got := Synthesize(el)
			assert.Equal(t, tt.want, got)

			matches := Matches(doc.Root(), got)
			require.Len(t, matches, 1)
			assert.Same(t, el, matches[0])
		})
	}
}

func TestSynthesizeIsIdempotent(t *testing.T) {
	doc := load(t, resultsPage)
	for _, el := range doc.Find("body *") {
		first := Synthesize(el)
		assert.Equal(t, first, Synthesize(el))
	}
}

func TestSynthesizeUniqueIDIsIdentifierForm(t *testing.T) {
	doc := load(t, resultsPage)
	for _, el := range doc.Find("[id]") {
		id, _ := dom.Attr(el, "id")
		if len(doc.Find("[id='"+id+"']")) != 1 {
			continue
		}
		assert.Equal(t, "#"+dom.EscapeIdent(id), Synthesize(el))
	}
}

func TestSynthesizeWithin(t *testing.T) {
	doc := load(t, resultsPage)
	table := doc.First("#results")
	require.NotNil(t, table)

	assert.Equal(t, "", SynthesizeWithin(table, table))
	assert.Equal(t, "tr:nth-of-type(2) > td.name:nth-of-type(1)",
		SynthesizeWithin(only(t, doc, "td.name", 1), table))
	assert.Equal(t, "tr:nth-of-type(1) > td:nth-of-type(2) > a.details",
		SynthesizeWithin(only(t, doc, "a.details", 0), table))
}

func TestSynthesizeNonElement(t *testing.T) {
	doc := load(t, resultsPage)
	assert.Equal(t, "", Synthesize(doc.Root()))
	assert.Equal(t, "", Synthesize(nil))
}

func TestSynthesizeBestEffortWhenAmbiguous(t *testing.T) {
	doc := load(t, `<html><body><div><b></b></div><div><b></b></div></body></html>`)
	el := only(t, doc, "b", 1)
	got := Synthesize(el)
	assert.Equal(t, "div:nth-of-type(2) > b", got)
	assert.Len(t, Matches(doc.Root(), got), 1)
}
