package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

const wsWriteTimeout = 5 * time.Second

type snapshotMessage struct {
	Type    string      `json:"type"`
	Session sessionView `json:"session"`
}

// streamSession upgrades to a websocket and sends the current session, then
// one snapshot after every change. The stream ends when the client leaves or
// the session is discarded.
func (h *handler) streamSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	updates, cancel, err := h.svc.Subscribe(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer cancel()

	current, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.CloseNow()

	// Snapshots only flow outward; CloseRead handles control frames.
	ctx := conn.CloseRead(r.Context())

	if err := h.writeSnapshot(ctx, conn, snapshotMessage{Type: "snapshot", Session: newSessionView(current)}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case sess, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session discarded")
				return
			}
			if err := h.writeSnapshot(ctx, conn, snapshotMessage{Type: "snapshot", Session: newSessionView(sess)}); err != nil {
				return
			}
		}
	}
}

func (h *handler) writeSnapshot(ctx context.Context, conn *websocket.Conn, msg snapshotMessage) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()

	err := wsjson.Write(ctx, conn, msg)
	if err != nil && !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
		h.logger.Warn("websocket write failed", "session_id", msg.Session.ID, "error", err)
	}
	return err
}
