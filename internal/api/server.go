// Package api serves the servo bridge's HTTP interface: status, move
// injection, the command log, angle presets, stats, and a live event stream.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gimbalworks/servolink/internal/db"
	"github.com/gimbalworks/servolink/internal/units"
	"github.com/gimbalworks/servolink/internal/version"
)

// Injector queues a command line for the interpreter goroutine. The line
// travels the same validation path as bytes from the serial port.
type Injector func(line, source string) error

type Server struct {
	state  *State
	db     *db.DB
	inject Injector
}

// NewServer creates an API server over the shared state, the command log,
// and the interpreter's injection queue.
func NewServer(state *State, database *db.DB, inject Injector) *Server {
	return &Server{
		state:  state,
		db:     database,
		inject: inject,
	}
}

// ServeMux returns the route table for the API.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /move", s.handleMove)
	mux.HandleFunc("GET /commands", s.handleCommands)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /chart", s.handleAngleChart)

	mux.HandleFunc("GET /presets", s.handleListPresets)
	mux.HandleFunc("POST /presets", s.handleCreatePreset)
	mux.HandleFunc("PUT /presets/{id}", s.handleUpdatePreset)
	mux.HandleFunc("DELETE /presets/{id}", s.handleDeletePreset)
	mux.HandleFunc("POST /presets/{id}/go", s.handleGoPreset)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusResponse struct {
	Ready        bool   `json:"ready"`
	Angle        int    `json:"angle"`
	PulseMicros  int    `json:"pulse_micros"`
	LastLine     string `json:"last_line,omitempty"`
	LastResponse string `json:"last_response,omitempty"`
	LastAt       int64  `json:"last_at,omitempty"`
	UptimeSecs   int64  `json:"uptime_seconds"`
	Version      string `json:"version"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	resp := statusResponse{
		Ready:        snap.Ready,
		Angle:        snap.Angle,
		PulseMicros:  units.PulseMicros(snap.Angle),
		LastLine:     snap.LastLine,
		LastResponse: snap.LastResponse,
		UptimeSecs:   int64(snap.Uptime.Seconds()),
		Version:      version.Version,
	}
	if !snap.LastAt.IsZero() {
		resp.LastAt = snap.LastAt.Unix()
	}
	writeJSON(w, http.StatusOK, resp)
}

type moveRequest struct {
	Angle *int `json:"angle"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Angle == nil {
		writeJSONError(w, http.StatusBadRequest, "angle is required")
		return
	}
	if !units.InRange(*req.Angle) {
		writeJSONError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("angle %d outside [%d, %d]", *req.Angle, units.MinAngle, units.MaxAngle))
		return
	}

	if err := s.inject(strconv.Itoa(*req.Angle), db.SourceAPI); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "interpreter unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"angle": *req.Angle, "status": "queued"})
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeJSONError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	commands, err := s.db.RecentCommands(limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if commands == nil {
		commands = []db.Command{}
	}
	writeJSON(w, http.StatusOK, commands)
}

// handleEvents streams handled commands as Server-Sent Events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.state.Subscribe()
	defer s.state.Unsubscribe(id)

	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.db.GetAllAnglePresets()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, presets)
}

func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var preset db.AnglePreset
	if err := json.NewDecoder(r.Body).Decode(&preset); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.db.CreateAnglePreset(preset)
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) presetID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid preset id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleUpdatePreset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.presetID(w, r)
	if !ok {
		return
	}

	var preset db.AnglePreset
	if err := json.NewDecoder(r.Body).Decode(&preset); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := s.db.UpdateAnglePreset(id, preset)
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.presetID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteAnglePreset(id); err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGoPreset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.presetID(w, r)
	if !ok {
		return
	}

	preset, err := s.db.GetAnglePreset(id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := s.inject(strconv.Itoa(preset.Angle), db.SourcePreset); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "interpreter unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"preset": preset.Name,
		"angle":  preset.Angle,
		"status": "queued",
	})
}
