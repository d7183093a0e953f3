package rooms

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrRoomClosed is returned by Join when the room was released between
// resolution and the join. Callers should refuse the connection, exactly as
// for a failed resolve.
var ErrRoomClosed = errors.New("room closed")

// sendQueueSize bounds the per-participant outbound queue. A participant that
// cannot drain it in time is disconnected rather than blocking the room.
const sendQueueSize = 256

type participant struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func (p *participant) close() {
	p.closeOnce.Do(func() {
		close(p.send)
	})
}

// writePump is the only writer on the connection. It exits when the send
// queue is closed or the peer goes away.
func (p *participant) writePump() {
	defer p.conn.Close()
	for frame := range p.send {
		if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
	_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// Room owns one collaborative document's live participant set. At most one
// live Room exists per id at any time; the Registry enforces that.
type Room struct {
	id    string
	state DocumentState

	mu           sync.Mutex
	participants map[string]*participant
	closed       bool

	onRelease func(*Room)
}

func newRoom(id string, state DocumentState, onRelease func(*Room)) *Room {
	return &Room{
		id:           id,
		state:        state,
		participants: make(map[string]*participant),
		onRelease:    onRelease,
	}
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Closed reports whether the room has been released.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// ParticipantCount returns the number of connected participants.
func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// Join registers a socket under a session id and starts its write pump. The
// new participant is sent the current document snapshot first so it starts
// from the same state everyone else sees. A second join with the same session
// id replaces the first.
func (r *Room) Join(sessionID string, conn *websocket.Conn) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}

	if prev, ok := r.participants[sessionID]; ok {
		prev.close()
	}

	p := &participant{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, sendQueueSize),
	}
	r.participants[sessionID] = p

	if snapshot := r.state.Snapshot(); snapshot != nil {
		p.send <- snapshot
	}
	r.mu.Unlock()

	go p.writePump()

	logrus.WithFields(logrus.Fields{
		"room":    r.id,
		"session": sessionID,
	}).Info("Participant joined")
	return nil
}

// HandleMessage ingests one frame from a participant and broadcasts the
// engine's resulting payload to every other participant. Frame contents are
// opaque to this layer.
func (r *Room) HandleMessage(sessionID string, frame []byte) {
	payload, err := r.state.Apply(sessionID, frame)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"room":    r.id,
			"session": sessionID,
		}).WithError(err).Warn("Engine rejected frame")
		return
	}
	if payload == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.participants {
		if id == sessionID {
			continue
		}
		select {
		case p.send <- payload:
		default:
			// Queue full: the participant is too far behind to stay
			// consistent, drop it.
			logrus.WithFields(logrus.Fields{
				"room":    r.id,
				"session": id,
			}).Warn("Dropping slow participant")
			p.close()
			delete(r.participants, id)
		}
	}
}

// Leave removes a participant. The conn must match the one registered for the
// session id: a stale handler unwinding after its socket was replaced by a
// reconnect must not evict the replacement. When the last participant leaves
// the room persists its snapshot and is released from the registry.
func (r *Room) Leave(sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	p, ok := r.participants[sessionID]
	if ok && p.conn != conn {
		ok = false
	}
	if ok {
		p.close()
		delete(r.participants, sessionID)
	}
	empty := len(r.participants) == 0 && !r.closed
	if empty {
		r.closed = true
	}
	r.mu.Unlock()

	if ok {
		logrus.WithFields(logrus.Fields{
			"room":    r.id,
			"session": sessionID,
		}).Info("Participant left")
	}
	if empty {
		r.release()
	}
}

// Shutdown disconnects all participants and persists the snapshot. Used when
// the process is going down.
func (r *Room) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for id, p := range r.participants {
		p.close()
		delete(r.participants, id)
	}
	r.mu.Unlock()

	r.release()
}

func (r *Room) release() {
	if err := r.state.Release(context.Background()); err != nil {
		logrus.WithField("room", r.id).WithError(err).Error("Failed to persist room state on release")
	}
	if r.onRelease != nil {
		r.onRelease(r)
	}
	logrus.WithField("room", r.id).Info("Room released")
}
