package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// logEvent is one message on a run's log stream, SSE or websocket.
type logEvent struct {
	Type    string `json:"type"` // "log", "done" or "error"
	Message string `json:"message"`
}

// handleLogs streams a run's log lines as server-sent events. The stream
// blocks on the run's buffer, emits a terminal "done" event when the
// process is gone and the buffer drained, and stops iterating as soon as
// the client disconnects.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rn, found := s.sup.Registry().Get(id)
	if !found {
		writeSSE(w, flusher, logEvent{Type: "error", Message: "Run not found or already terminated."})
		return
	}

	log.Printf("[%s] log stream opened", id)
	defer log.Printf("[%s] log stream closed", id)

	ctx := r.Context()
	cursor := 0
	for {
		line, next, more, err := rn.Logs.Next(ctx, cursor)
		if err != nil {
			// Client went away; the run itself is unaffected.
			return
		}
		if !more {
			writeSSE(w, flusher, logEvent{Type: "done", Message: "Process terminated."})
			return
		}
		writeSSE(w, flusher, logEvent{Type: "log", Message: line})
		cursor = next
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev logEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("sse marshal error: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
