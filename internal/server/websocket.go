package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // single trusted host, CORS is already open
	},
}

// handleLogsWS streams the same log events as the SSE endpoint over a
// websocket, for frontends that prefer one.
func (s *Server) handleLogsWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	rn, found := s.sup.Registry().Get(id)
	if !found {
		wsWriteJSON(conn, logEvent{Type: "error", Message: "Run not found or already terminated."})
		return
	}

	// The client never sends data; the read loop only detects disconnects.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	cursor := 0
	for {
		line, next, more, err := rn.Logs.Next(ctx, cursor)
		if err != nil {
			return
		}
		if !more {
			wsWriteJSON(conn, logEvent{Type: "done", Message: "Process terminated."})
			return
		}
		wsWriteJSON(conn, logEvent{Type: "log", Message: line})
		cursor = next
	}
}

func wsWriteJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}
