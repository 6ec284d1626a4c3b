package server

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/michaelbrown/codecollab/internal/executor"
	"github.com/michaelbrown/codecollab/internal/logger"
	"github.com/michaelbrown/codecollab/internal/storage"
	"github.com/michaelbrown/codecollab/internal/toolchain"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
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
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "CodeCollab Backend is running",
	})
}

// --- Execution ---

type executeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type executeResponse struct {
	Output string `json:"output"`
}

const (
	// bodySlack covers the JSON envelope around the code field.
	bodySlack = 4 << 10
	// escapeRatio bounds how much JSON escaping grows a source byte ("\u001f").
	escapeRatio = 6
)

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many execution requests, please slow down")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Execution.MaxSource*escapeRatio+bodySlack)
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "Code is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Code == "" || req.Language == "" {
		writeError(w, http.StatusBadRequest, "Code and language are required")
		return
	}
	if int64(len(req.Code)) > s.cfg.Execution.MaxSource {
		writeError(w, http.StatusBadRequest, "Code is too large")
		return
	}

	out, err := s.exec.Run(r.Context(), executor.Request{Source: req.Code, Language: req.Language})
	switch {
	case errors.Is(err, executor.ErrEmptySource):
		writeError(w, http.StatusBadRequest, "Code and language are required")
		return
	case errors.Is(err, toolchain.ErrUnsupported):
		writeError(w, http.StatusBadRequest, "Unsupported language")
		return
	case err != nil:
		s.log.Errorw("execution failed",
			logger.FieldLanguage, req.Language,
			logger.FieldError, err,
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch out.Kind {
	case executor.KindSuccess, executor.KindRuntimeError:
		// Runtime errors are reported as output; existing clients render
		// them in the console pane.
		writeJSON(w, http.StatusOK, executeResponse{Output: out.Text})
	default:
		writeError(w, http.StatusBadRequest, out.Text)
	}
}

// --- Languages ---

type languageInfo struct {
	Language  toolchain.Language `json:"language"`
	Kind      toolchain.Kind     `json:"kind"`
	Extension string             `json:"extension"`
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	tcs := s.registry.Toolchains()
	out := make([]languageInfo, 0, len(tcs))
	for _, tc := range tcs {
		out = append(out, languageInfo{Language: tc.Language, Kind: tc.Kind, Extension: tc.Extension})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Rooms ---

type roomInfo struct {
	RoomID   string `json:"room_id"`
	Clients  int    `json:"clients"`
	Files    int    `json:"files"`
	Messages int    `json:"messages"`
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	ids := s.store.Rooms()
	out := make([]roomInfo, 0, len(ids))
	for _, id := range ids {
		info := roomInfo{RoomID: id, Clients: s.hub.Count(id)}
		if snap, ok := s.store.Get(id); ok {
			info.Files = len(snap.Files)
			info.Messages = len(snap.Messages)
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRoomExport downloads a room's current snapshot as JSON (default) or
// markdown.
func (s *Server) handleRoomExport(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	snap, ok := s.store.Get(roomID)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		data, err := storage.ExportJSON(roomID, snap)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(storage.ExportMarkdown(roomID, snap)))
	default:
		w.Header().Set("Content-Type", "application/json")
		writeError(w, http.StatusBadRequest, "Unsupported export format")
	}
}
