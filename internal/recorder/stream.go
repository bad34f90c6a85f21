package recorder

import (
	"sync"

	"go.uber.org/zap"

	"looprec/backend/internal/actionlog"
)

// Conn is the write side of a subscriber connection. *websocket.Conn
// satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// StreamMessage is what subscribers receive for every committed action.
type StreamMessage struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Action    actionlog.Action `json:"action"`
	LoopState string           `json:"loop_state"`
}

// Stream fans committed actions out to live subscribers. Connections that
// fail a write are dropped.
type Stream struct {
	session *Session
	logger  *zap.Logger

	mu    sync.Mutex
	conns map[Conn]struct{}
}

func newStream(session *Session, logger *zap.Logger) *Stream {
	st := &Stream{
		session: session,
		logger:  logger.Named("stream"),
		conns:   make(map[Conn]struct{}),
	}
	session.OnAction(st.broadcast)
	return st
}

func (st *Stream) Subscribe(c Conn) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.conns[c] = struct{}{}
}

func (st *Stream) Unsubscribe(c Conn) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.conns, c)
}

// Subscribers returns the number of live connections.
func (st *Stream) Subscribers() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.conns)
}

func (st *Stream) broadcast(a actionlog.Action) {
	msg := StreamMessage{
		Type:      "action",
		SessionID: st.session.ID(),
		Action:    a,
		LoopState: st.session.LoopState().String(),
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for c := range st.conns {
		if err := c.WriteJSON(msg); err != nil {
			st.logger.Debug("Dropping subscriber", zap.Error(err))
			c.Close()
			delete(st.conns, c)
		}
	}
}

// close disconnects every subscriber.
func (st *Stream) close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for c := range st.conns {
		c.Close()
		delete(st.conns, c)
	}
}
