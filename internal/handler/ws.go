package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gridscope/internal/hub"
	"gridscope/internal/interaction"
	"gridscope/internal/session"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsError is sent to a single client when one of its gestures fails
type wsError struct {
	Type    string        `json:"type"`
	Payload ErrorResponse `json:"payload"`
}

// ServeWS upgrades to a websocket that accepts gestures and streams
// session events back
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	client, err := h.hub.Subscribe()
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(wsWriteWait))
		conn.Close()
		return
	}

	replies := make(chan []byte, 16)
	done := make(chan struct{})

	// The current frame lets the client draw before the next tick
	if data, err := json.Marshal(session.Event{Type: session.EventFrame, Payload: h.runner.Session().Frame()}); err == nil {
		replies <- data
	}

	go h.wsWritePump(conn, client, replies, done)
	h.wsReadPump(conn, replies)

	close(done)
	h.hub.Unsubscribe(client)
	conn.Close()
}

func (h *Handler) wsReadPump(conn *websocket.Conn, replies chan<- []byte) {
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed", "error", err)
			}
			return
		}

		var g interaction.Gesture
		if err := json.Unmarshal(message, &g); err != nil {
			h.reply(replies, "Invalid gesture", err.Error())
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), wsWriteWait)
		err = h.runner.Do(ctx, func(s *session.Session) error {
			return s.Gesture(g)
		})
		cancel()
		if err != nil {
			h.reply(replies, "Gesture rejected", err.Error())
		}
	}
}

func (h *Handler) reply(replies chan<- []byte, message, details string) {
	data, err := json.Marshal(wsError{Type: "error", Payload: ErrorResponse{Error: message, Details: details}})
	if err != nil {
		return
	}
	select {
	case replies <- data:
	default:
		// Client is slow, skip
	}
}

func (h *Handler) wsWritePump(conn *websocket.Conn, client *hub.Client, replies <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(data []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.TextMessage, data) == nil
	}

	for {
		select {
		case msg, ok := <-client.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			if !write(msg.Data) {
				return
			}

		case data := <-replies:
			if !write(data) {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
