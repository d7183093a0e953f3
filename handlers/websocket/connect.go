package websocket

import (
	"mountains-server/rooms"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Authenticator is the slice of the auth gate this handler needs.
type Authenticator interface {
	CurrentUser(r *http.Request) (string, bool)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Cross-origin clients are expected; the session cookie is the gate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pendingFrameBuffer bounds how many frames queue up while the room loads.
// When full, the read pump blocks and TCP backpressures the peer; frames are
// never dropped or reordered.
const pendingFrameBuffer = 256

// Handle upgrades /connect/{roomId}?sessionId= to a websocket and bridges it
// to its room. Frames arriving while the room is still loading are buffered
// and replayed into the room in arrival order before live relay begins.
func Handle(registry *rooms.Registry, gate Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := gate.CurrentUser(r)
		if !ok {
			logrus.Warn("Unauthenticated websocket upgrade refused")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		roomID := chi.URLParam(r, "roomId")
		sessionID := r.URL.Query().Get("sessionId")
		if roomID == "" || sessionID == "" {
			http.Error(w, "roomId and sessionId are required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Warn("Websocket upgrade failed")
			return
		}

		log := logrus.WithFields(logrus.Fields{
			"conn":    ulid.Make().String(),
			"room":    roomID,
			"session": sessionID,
			"user":    user,
		})
		log.Info("Websocket connected")

		// The read pump starts before the room is resolved so that nothing
		// the peer sends during the load is lost. The channel preserves
		// arrival order end to end.
		inbound := make(chan []byte, pendingFrameBuffer)
		go func() {
			defer close(inbound)
			for {
				_, frame, err := conn.ReadMessage()
				if err != nil {
					return
				}
				inbound <- frame
			}
		}()

		room, err := registry.Resolve(r.Context(), roomID)
		if err != nil {
			log.WithError(err).Error("Room resolution failed, closing connection")
			discard(conn, inbound)
			return
		}

		if err := room.Join(sessionID, conn); err != nil {
			log.WithError(err).Warn("Room refused the connection")
			discard(conn, inbound)
			return
		}

		// Drains frames buffered during the load first, in capture order,
		// then relays live until the peer goes away.
		for frame := range inbound {
			room.HandleMessage(sessionID, frame)
		}

		room.Leave(sessionID, conn)
		log.Info("Websocket disconnected")
	}
}

// closeWithError signals a protocol-level failure and discards the socket.
// Frames buffered so far are dropped with it; a failed room keeps no state.
func closeWithError(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, reason), deadline)
	conn.Close()
}

// discard closes the socket and drains the inbound channel until the read
// pump closes it. The pump may be parked on a send when the channel filled
// during the load; only consuming lets it see the dead socket and exit.
func discard(conn *websocket.Conn, inbound <-chan []byte) {
	closeWithError(conn, "room unavailable")
	for range inbound {
	}
}
