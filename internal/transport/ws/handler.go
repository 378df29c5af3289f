package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/model"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler upgrades sockets and wires them to their room coordinator.
type Handler struct {
	registry *room.Registry
}

// NewHandler creates a new WebSocket handler.
func NewHandler(registry *room.Registry) *Handler {
	return &Handler{registry: registry}
}

// RoomWS handles GET /v1/ws/rooms/{code}. The player identifies itself via
// the playerId field of its JOIN envelope, not at upgrade time.
func (h *Handler) RoomWS(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := newConnection(wsConn)
	coordinator := h.registry.Get(code)

	go conn.writePump()
	go h.readPump(wsConn, conn, coordinator)
}

// readPump is the connection's single reader: it keeps per-player command
// order by construction, since every envelope is forwarded from here in
// receipt order.
func (h *Handler) readPump(wsConn *websocket.Conn, conn *connection, coordinator *room.Coordinator) {
	defer func() {
		coordinator.Detach(conn)
		conn.Close()
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			// Protocol error: answer privately, keep the socket alive.
			if out, merr := model.NewServerEnvelope(model.EvtError, &model.ErrorPayload{
				Code:    model.ErrInvalidRequest,
				Message: "malformed envelope",
			}); merr == nil {
				conn.Send(out)
			}
			continue
		}
		coordinator.Deliver(&env, conn)
	}
}
