package actionlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCoalescesConsecutiveEdits(t *testing.T) {
	l := NewLog()

	_, err := l.Append(Action{Kind: KindInput, Locator: "#q", Value: "h", Timestamp: 1})
	require.NoError(t, err)
	_, err = l.Append(Action{Kind: KindInput, Locator: "#q", Value: "hello", Timestamp: 2})
	require.NoError(t, err)

	actions := l.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, "hello", actions[0].Value)
}

func TestAppendKeepsEditsOnDifferentTargets(t *testing.T) {
	l := NewLog()
	for _, a := range []Action{
		{Kind: KindInput, Locator: "#first", Value: "a"},
		{Kind: KindInput, Locator: "#last", Value: "b"},
		{Kind: KindInput, Locator: "#first", Value: "c"},
	} {
		_, err := l.Append(a)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, l.Len())
}

func TestAppendNeverCoalescesClicks(t *testing.T) {
	l := NewLog()
	for i := 0; i < 2; i++ {
		_, err := l.Append(Action{Kind: KindClick, Locator: "#next"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, l.Len())
}

func TestAppendCoalescesSelect(t *testing.T) {
	l := NewLog()
	_, err := l.Append(Action{Kind: KindSelect, Locator: "#country", Value: "France", OptionValue: "fr"})
	require.NoError(t, err)
	_, err = l.Append(Action{Kind: KindSelect, Locator: "#country", Value: "Spain", OptionValue: "es"})
	require.NoError(t, err)

	actions := l.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, "es", actions[0].OptionValue)
}

func TestAppendRejectsInvalidActions(t *testing.T) {
	l := NewLog()

	_, err := l.Append(Action{Kind: KindClick})
	assert.ErrorIs(t, err, ErrEmptyLocator)

	_, err = l.Append(Action{Kind: "hover", Locator: "#x"})
	assert.ErrorIs(t, err, ErrUnknownKind)

	assert.Zero(t, l.Len())
}

func TestAppendClampsTimestamps(t *testing.T) {
	l := NewLog()
	_, err := l.Append(Action{Kind: KindClick, Locator: "#a", Timestamp: 100})
	require.NoError(t, err)
	got, err := l.Append(Action{Kind: KindClick, Locator: "#b", Timestamp: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Timestamp)
}

func TestResetAndBaseURL(t *testing.T) {
	l := NewLog()
	l.SetBaseURL("https://example.com/list")
	l.SetBaseURL("https://example.com/other")
	assert.Equal(t, "https://example.com/list", l.BaseURL())

	_, err := l.Append(Action{Kind: KindClick, Locator: "#a"})
	require.NoError(t, err)

	l.Reset("https://example.com/start")
	assert.Zero(t, l.Len())
	assert.Equal(t, "https://example.com/start", l.BaseURL())

	snap := l.Snapshot(true)
	assert.True(t, snap.Recording)
	assert.Empty(t, snap.Actions)
}

func TestActionsReturnsCopy(t *testing.T) {
	l := NewLog()
	_, err := l.Append(Action{Kind: KindClick, Locator: "#a"})
	require.NoError(t, err)

	actions := l.Actions()
	actions[0].Locator = "#mutated"
	assert.Equal(t, "#a", l.Actions()[0].Locator)
}
