package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/net/html"

	"looprec/backend/internal/actionlog"
	"looprec/backend/internal/classifier"
	"looprec/backend/internal/synth"
	"looprec/backend/internal/tableloop"
	"looprec/backend/pkg/dom"
)

const ordersPage = `<html><body>
<h1 id="title">Orders</h1>
<input id="q">
<select id="size"><option value="s">Small</option><option value="l">Large</option></select>
<table class="results"><tbody>
<tr><td class="name">Alice</td><td><a class="details" href="/a">more</a></td></tr>
<tr><td class="name">Bob</td><td><a class="details" href="/b">more</a></td></tr>
</tbody></table>
<a id="next" href="?p=2">Next</a>
<div class="ignore-recorder"><button id="overlay">x</button></div>
</body></html>`

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func loadPage(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(ordersPage)
	require.NoError(t, err)
	return doc
}

func nth(t *testing.T, doc *dom.Document, sel string, idx int) *html.Node {
	t.Helper()
	nodes := doc.Find(sel)
	require.Greater(t, len(nodes), idx, sel)
	return nodes[idx]
}

func startedSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()
	opts = append([]SessionOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	s := NewSession("s1", opts...)
	require.NoError(t, s.Start(context.Background(), "https://shop.test/orders"))
	return s
}

func click(el *html.Node) classifier.Event {
	return classifier.Event{Type: classifier.EventClick, Target: el}
}

func TestHandleEventIgnoredWhenNotRecording(t *testing.T) {
	doc := loadPage(t)
	s := NewSession("idle")

	_, ok := s.HandleEvent(click(doc.First("#next")))
	assert.False(t, ok)
	assert.Empty(t, s.Actions())

	_, err := s.Toggle()
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.ErrorIs(t, s.Stop(context.Background()), ErrNotRecording)
}

func TestStartTwiceFails(t *testing.T) {
	s := startedSession(t)
	assert.ErrorIs(t, s.Start(context.Background(), "x"), ErrAlreadyRecording)
}

func TestHandleEventRecordsActions(t *testing.T) {
	doc := loadPage(t)
	s := startedSession(t)

	a, ok := s.HandleEvent(click(doc.First("#next")))
	require.True(t, ok)
	assert.Equal(t, actionlog.Action{Kind: actionlog.KindClick, Locator: "#next", Timestamp: fixedNow.UnixMilli()}, a)

	_, ok = s.HandleEvent(click(doc.First("#overlay")))
	assert.False(t, ok, "recorder overlay is ignored")

	_, ok = s.HandleEvent(click(doc.First("h1")))
	assert.False(t, ok, "passive element")

	q := doc.First("#q")
	s.HandleEvent(classifier.Event{Type: classifier.EventInput, Target: q, Value: "al", Timestamp: 10})
	s.HandleEvent(classifier.Event{Type: classifier.EventInput, Target: q, Value: "alice", Timestamp: 20})

	a, ok = s.HandleEvent(classifier.Event{Type: classifier.EventChange, Target: doc.First("#size"), Value: "l"})
	require.True(t, ok)
	assert.Equal(t, "Large", a.Value)
	assert.Equal(t, "l", a.OptionValue)

	actions := s.Actions()
	require.Len(t, actions, 3)
	assert.Equal(t, actionlog.KindInput, actions[1].Kind)
	assert.Equal(t, "alice", actions[1].Value)
	assert.Equal(t, "#size", actions[2].Locator)
	assert.Equal(t, "https://shop.test/orders", s.Record().BaseURL)
}

func TestTableLoopFlowCompiles(t *testing.T) {
	doc := loadPage(t)
	s := startedSession(t)

	state, err := s.Toggle()
	require.NoError(t, err)
	assert.Equal(t, tableloop.Selecting, state)

	a, ok := s.HandleEvent(click(nth(t, doc, "td.name", 0)))
	require.True(t, ok)
	assert.Equal(t, actionlog.KindTableLoopStart, a.Kind)
	assert.Equal(t, "table.results", a.Locator)
	assert.Equal(t, tableloop.SelectingNextButton, s.LoopState())

	_, ok = s.HandleEvent(classifier.Event{Type: classifier.EventKeyDown, Target: doc.DocumentElement(), Key: SkipKey})
	assert.False(t, ok)
	assert.Equal(t, tableloop.Active, s.LoopState())

	a, ok = s.HandleEvent(click(nth(t, doc, "a.details", 1)))
	require.True(t, ok)
	assert.Equal(t, "table.results tr:nth-of-type(2) > td:nth-of-type(2) > a.details", a.Locator)

	a, ok = s.HandleEvent(classifier.Event{Type: classifier.EventLabel, Target: nth(t, doc, "td.name", 0), Label: "Name"})
	require.True(t, ok)
	assert.Equal(t, "table.results tr:nth-of-type(1) > td.name:nth-of-type(1)", a.Locator)
	assert.Equal(t, "Alice", a.Value)
	assert.Equal(t, "Name", a.Label)

	state, err = s.Toggle()
	require.NoError(t, err)
	assert.Equal(t, tableloop.Inactive, state)

	actions := s.Actions()
	require.Len(t, actions, 4)
	assert.Equal(t, actionlog.Action{Kind: actionlog.KindTableLoopEnd, Locator: "table.results", Timestamp: fixedNow.UnixMilli()}, actions[3])

	p := synth.Build(actions)
	assert.Empty(t, p.Warnings)
	require.Len(t, p.Loops(), 1)
	loop := p.Loops()[0]
	assert.Equal(t, "tr", loop.Rows)
	assert.Equal(t, []int{0, 1}, loop.Body)
	assert.Equal(t, "td:nth-of-type(2) > a.details", p.Steps[0].Locator)
	assert.Equal(t, "td.name:nth-of-type(1)", p.Steps[1].Locator)
}

const stripedPage = `<html><body>
<table id="t">
<tr class="odd"><td>1</td><td><a href="/1">open</a></td></tr>
<tr class="even"><td>2</td><td><a href="/2">open</a></td></tr>
<tr class="odd"><td>3</td><td><a href="/3">open</a></td></tr>
<tr class="even"><td>4</td><td><a href="/4">open</a></td></tr>
</table>
</body></html>`

func TestStripedRowsLoopOverEveryRow(t *testing.T) {
	doc, err := dom.ParseString(stripedPage)
	require.NoError(t, err)
	s := startedSession(t)

	_, err = s.Toggle()
	require.NoError(t, err)
	_, ok := s.HandleEvent(click(nth(t, doc, "td", 0)))
	require.True(t, ok)
	s.HandleEvent(classifier.Event{Type: classifier.EventKeyDown, Target: doc.DocumentElement(), Key: SkipKey})
	require.Equal(t, "#t", s.LoopSubject())

	a, ok := s.HandleEvent(click(nth(t, doc, "a", 1)))
	require.True(t, ok)
	assert.Equal(t, "#t tr.even:nth-of-type(2) > td:nth-of-type(2) > a", a.Locator)

	_, err = s.Toggle()
	require.NoError(t, err)

	p := synth.Build(s.Actions())
	require.Len(t, p.Loops(), 1)
	loop := p.Loops()[0]
	assert.Equal(t, "tr", loop.Rows)
	assert.Equal(t, "td:nth-of-type(2) > a", p.Steps[0].Locator)
	rows, err := dom.QueryAll(doc.First("#t"), loop.Rows)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	script := synth.Render(p, synth.Options{})
	assert.Contains(t, script, `row_locator = "tr"`)
	assert.NotContains(t, script, "tr.even")
}

func TestModifierGestureAndPagination(t *testing.T) {
	doc := loadPage(t)
	s := startedSession(t)
	cell := nth(t, doc, "td.name", 1)
	table := doc.First("table.results")

	s.HandleEvent(classifier.Event{Type: classifier.EventKeyDown, Target: doc.DocumentElement(), Key: ModifierKey})
	s.HandleEvent(classifier.Event{Type: classifier.EventMouseOver, Target: cell})
	hovered, hoveredTable := s.Highlighted()
	assert.Same(t, cell, hovered)
	assert.Same(t, table, hoveredTable)

	a, ok := s.HandleEvent(click(cell))
	require.True(t, ok)
	assert.Equal(t, actionlog.KindTableLoopStart, a.Kind)
	s.HandleEvent(classifier.Event{Type: classifier.EventKeyUp, Target: doc.DocumentElement(), Key: ModifierKey})

	a, ok = s.HandleEvent(click(doc.First("#next")))
	require.True(t, ok)
	assert.Equal(t, actionlog.Action{Kind: actionlog.KindTablePaginationNext, Locator: "#next", Timestamp: fixedNow.UnixMilli()}, a)
	assert.Equal(t, tableloop.Active, s.LoopState())
	assert.Equal(t, "table.results", s.LoopSubject())
}

func TestActionsOutsideSubjectStayAbsolute(t *testing.T) {
	doc := loadPage(t)
	s := startedSession(t)

	s.Toggle()
	s.HandleEvent(click(nth(t, doc, "td.name", 0)))
	s.HandleEvent(classifier.Event{Type: classifier.EventKeyDown, Target: doc.DocumentElement(), Key: SkipKey})

	a, ok := s.HandleEvent(classifier.Event{Type: classifier.EventInput, Target: doc.First("#q"), Value: "x"})
	require.True(t, ok)
	assert.Equal(t, "#q", a.Locator)
}

func TestSessionPersistsThroughWriter(t *testing.T) {
	defer goleak.VerifyNone(t)

	doc := loadPage(t)
	store := actionlog.NewMemoryStore()
	w := actionlog.NewWriter(store, "s1", nil)
	defer w.Close()

	s := startedSession(t, WithWriter(w))
	s.HandleEvent(click(doc.First("#next")))
	require.NoError(t, s.Stop(context.Background()))

	rec, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, rec.Recording)
	assert.Equal(t, "https://shop.test/orders", rec.BaseURL)
	require.Len(t, rec.Actions, 1)
	assert.Equal(t, "#next", rec.Actions[0].Locator)

	require.NoError(t, s.Start(context.Background(), "https://shop.test/other"))
	require.NoError(t, w.Flush(context.Background()))
	rec, err = store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, rec.Recording)
	assert.Empty(t, rec.Actions)
}

func TestClearKeepsBaseURL(t *testing.T) {
	doc := loadPage(t)
	s := startedSession(t)
	s.HandleEvent(click(doc.First("#next")))

	s.Clear()
	assert.Empty(t, s.Actions())
	assert.True(t, s.Recording())
	assert.Equal(t, "https://shop.test/orders", s.Record().BaseURL)
}

func TestOnActionListeners(t *testing.T) {
	doc := loadPage(t)
	s := startedSession(t)
	var got []actionlog.Action
	s.OnAction(func(a actionlog.Action) { got = append(got, a) })

	s.HandleEvent(click(doc.First("#next")))
	s.HandleEvent(click(doc.First("h1")))
	require.Len(t, got, 1)
	assert.Equal(t, "#next", got[0].Locator)
}
