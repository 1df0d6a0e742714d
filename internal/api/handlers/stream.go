package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harborbank/demo/internal/api/middleware"
	"github.com/harborbank/demo/internal/notify"
)

// StreamHandler pushes the session's notifications to the browser over a
// websocket, so remote-driven changes surface without polling.
type StreamHandler struct {
	registry *Registry
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(registry *Registry, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Demo server, same-origin policy handled by CORS upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

type streamMessage struct {
	Kind    notify.Kind `json:"kind"`
	Message string      `json:"message"`
	Time    time.Time   `json:"time"`
}

// Serve handles GET /api/stream
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "No session")
		return
	}
	ss, ok := h.registry.ForSession(sess.ID)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Session sync not active")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	notifications, cancel := ss.Watch()
	defer cancel()

	// Reader goroutine exists only to detect the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case n, open := <-notifications:
			if !open {
				// Session ended server-side.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session ended"),
					time.Now().Add(time.Second))
				return
			}
			msg := streamMessage{Kind: n.Kind, Message: n.Message, Time: time.Now().UTC()}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
