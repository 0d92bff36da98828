package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentforge/previewd/internal/detect"
	"github.com/agentforge/previewd/internal/proc"
	"github.com/agentforge/previewd/internal/vfs"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_runs": s.sup.Registry().Len(),
	})
}

// --- Run lifecycle handlers ---

type runRequest struct {
	FileSystem vfs.Tree `json:"fileSystem"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.FileSystem) == 0 {
		writeError(w, http.StatusBadRequest, "fileSystem is required")
		return
	}

	rn, err := s.sup.Launch(req.FileSystem)
	if err != nil {
		// Detection problems are the caller's to fix; everything else is ours.
		if errors.Is(err, detect.ErrNoProjectRoot) || errors.Is(err, detect.ErrNoRunCommand) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"url":    fmt.Sprintf("%s/api/proxy/%s", s.cfg.Server.BaseURL, rn.ID),
		"run_id": rn.ID,
	})
}

type stopRequest struct {
	RunID string `json:"run_id"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := decodeJSON(r, &req); err != nil || req.RunID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	if _, ok := s.sup.Registry().Get(req.RunID); !ok {
		// Benign: stopping something already gone is a success for the caller.
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": fmt.Sprintf("Run %s not found or already stopped.", req.RunID),
		})
		return
	}

	// Teardown can block on a reluctant child; do it off the request.
	go s.sup.Teardown().Cleanup(req.RunID)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Run %s stop initiated.", req.RunID),
	})
}

func (s *Server) handleForceStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := decodeJSON(r, &req); err != nil || req.RunID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	killed, ok := s.sup.Teardown().ForceStop(req.RunID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": fmt.Sprintf("Run %s not found or already stopped.", req.RunID),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Run %s force stopped, %d stray processes killed.", req.RunID, len(killed)),
	})
}

type killPortRequest struct {
	Port int `json:"port"`
}

func (s *Server) handleKillPort(w http.ResponseWriter, r *http.Request) {
	var req killPortRequest
	if err := decodeJSON(r, &req); err != nil || req.Port <= 0 {
		writeError(w, http.StatusBadRequest, "port is required")
		return
	}

	killed, err := proc.KillByPort(req.Port)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if killed == nil {
		killed = []int32{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"killed":  killed,
	})
}

func (s *Server) handleCleanupAll(w http.ResponseWriter, r *http.Request) {
	n := s.sup.Teardown().CleanupAll()
	writeJSON(w, http.StatusOK, map[string]any{"cleaned": n})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	n := s.sup.Teardown().CleanupAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"cleaned": n,
	})
}

// --- Debug handlers ---

func (s *Server) handleActiveRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.sup.Registry().List()
	summaries := make([]any, 0, len(runs))
	for _, rn := range runs {
		summaries = append(summaries, rn.Summary())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(summaries),
		"runs":  summaries,
	})
}

// handleCheckHeaders fetches the child app's root page and reports the
// headers it sends, for diagnosing embedding problems.
func (s *Server) handleCheckHeaders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	rn, ok := s.sup.Registry().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	url := fmt.Sprintf("http://127.0.0.1:%d", rn.Port)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"url":         url,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	records, err := s.history.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}
