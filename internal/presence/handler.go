package presence

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The route sits behind bearer-token auth; origin checks add nothing
	// for a token-authenticated socket.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades a viewer's connection and streams membership snapshots.
// Every change on the playbook's channel triggers a full-snapshot push;
// clients replace their local list wholesale.
type Handler struct {
	channel *Channel
}

func NewHandler(channel *Channel) *Handler {
	return &Handler{channel: channel}
}

type snapshotMessage struct {
	Type    string   `json:"type"`
	Members []Member `json:"members"`
}

// Serve runs the socket until the viewer disconnects. The member record is
// removed on any exit path so liveness is tied to the connection itself.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, playbookID string, m Member) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("presence upgrade failed", "playbook_id", playbookID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := h.channel.Join(ctx, playbookID, m); err != nil {
		slog.Error("presence join failed", "playbook_id", playbookID, "user_id", m.UserID, "error", err)
		return
	}
	defer func() {
		// The request context is gone once the socket drops.
		leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer leaveCancel()
		if err := h.channel.Leave(leaveCtx, playbookID, m.UserID); err != nil {
			slog.Error("presence leave failed", "playbook_id", playbookID, "user_id", m.UserID, "error", err)
		}
	}()

	sub := h.channel.Subscribe(ctx, playbookID)
	defer sub.Close()

	// Reader exists only to detect disconnect and answer pings.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.pushSnapshot(ctx, conn, playbookID); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	events := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			if err := h.pushSnapshot(ctx, conn, playbookID); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) pushSnapshot(ctx context.Context, conn *websocket.Conn, playbookID string) error {
	members, err := h.channel.Members(ctx, playbookID)
	if err != nil {
		slog.Error("presence snapshot failed", "playbook_id", playbookID, "error", err)
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snapshotMessage{Type: "presence", Members: members})
}
