package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"looprec/backend/internal/actionlog"
)

type fakeHost struct{ closed int }

func (h *fakeHost) Close() error {
	h.closed++
	return nil
}

type fakeConn struct {
	msgs   []StreamMessage
	fail   bool
	closed bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.fail {
		return errors.New("broken pipe")
	}
	c.msgs = append(c.msgs, v.(StreamMessage))
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestManagerAdoptGetRemove(t *testing.T) {
	m := NewManager(actionlog.NewMemoryStore(), nil, LaunchOptions{})
	s := startedSession(t)
	host := &fakeHost{}

	require.NoError(t, m.Adopt(s, host))
	assert.ErrorIs(t, m.Adopt(s, nil), ErrSessionExists)

	got, ok := m.Get("s1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, []string{"s1"}, m.IDs())

	require.NoError(t, m.StopRecording(context.Background(), "s1"))
	assert.Equal(t, 1, host.closed)
	assert.False(t, s.Recording())
	_, ok = m.Get("s1")
	assert.True(t, ok, "stopped sessions stay readable")

	require.NoError(t, m.Remove("s1"))
	assert.Equal(t, 1, host.closed, "host closed once")
	_, ok = m.Get("s1")
	assert.False(t, ok)

	assert.ErrorIs(t, m.Remove("s1"), ErrSessionNotFound)
	assert.ErrorIs(t, m.StopRecording(context.Background(), "s1"), ErrSessionNotFound)
}

func TestManagerStreamsActions(t *testing.T) {
	m := NewManager(actionlog.NewMemoryStore(), nil, LaunchOptions{})
	s := startedSession(t)
	require.NoError(t, m.Adopt(s, nil))

	st, ok := m.Stream("s1")
	require.True(t, ok)
	good, bad := &fakeConn{}, &fakeConn{fail: true}
	st.Subscribe(good)
	st.Subscribe(bad)

	doc := loadPage(t)
	s.HandleEvent(click(doc.First("#next")))

	require.Len(t, good.msgs, 1)
	assert.Equal(t, "action", good.msgs[0].Type)
	assert.Equal(t, "s1", good.msgs[0].SessionID)
	assert.Equal(t, "#next", good.msgs[0].Action.Locator)
	assert.Equal(t, "inactive", good.msgs[0].LoopState)
	assert.True(t, bad.closed)
	assert.Equal(t, 1, st.Subscribers())

	require.NoError(t, m.Remove("s1"))
	assert.True(t, good.closed)
}

func TestManagerSweep(t *testing.T) {
	m := NewManager(actionlog.NewMemoryStore(), nil, LaunchOptions{})
	stale := NewSession("old", WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	fresh := NewSession("new")
	host := &fakeHost{}
	require.NoError(t, m.Adopt(stale, host))
	require.NoError(t, m.Adopt(fresh, nil))

	assert.Equal(t, []string{"old"}, m.Sweep(time.Hour))
	assert.Equal(t, 1, host.closed)
	assert.Equal(t, []string{"new"}, m.IDs())

	m.Shutdown()
	assert.Empty(t, m.IDs())
}
