// Package api exposes the ground-segment HTTP surface: kernel status,
// task and device inspection, telemetry reads, and command ingest. The
// HTTP layer only enqueues; every command executes inside the tick loop.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrel-flight/kestrel/internal/command"
	"github.com/kestrel-flight/kestrel/internal/domain"
	"github.com/kestrel-flight/kestrel/internal/exec"
	"github.com/kestrel-flight/kestrel/internal/health"
	"github.com/kestrel-flight/kestrel/internal/telemetry"
)

// ModeReader is the state-manager surface the API reads.
type ModeReader interface {
	Current() domain.Mode
}

// Server is the kestrel HTTP API server.
type Server struct {
	exec           *exec.Executive
	modes          ModeReader
	monitor        *health.Monitor
	store          *telemetry.Store
	queue          *command.Queue
	version        string
	started        time.Time
	metricsEnabled bool
}

// NewServer creates the API server over the kernel surfaces.
func NewServer(ex *exec.Executive, modes ModeReader, monitor *health.Monitor, store *telemetry.Store, queue *command.Queue, version string) *Server {
	return &Server{
		exec:    ex,
		modes:   modes,
		monitor: monitor,
		store:   store,
		queue:   queue,
		version: version,
		started: time.Now(),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/tasks", s.handleTasks)
		r.Get("/devices", s.handleDevices)
		r.Get("/telemetry", s.handleStreams)
		r.Get("/telemetry/{stream}/latest", s.handleLatest)
		r.Post("/commands", s.handleCommand)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Handlers ───────────────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.exec.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"version":        s.version,
		"mode":           s.modes.Current().String(),
		"tick":           stats.Tick,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"tasks_active":   stats.Registered,
		"total_runs":     stats.TotalRuns,
		"total_faults":   stats.TotalFaults,
		"queue_depth":    s.queue.Len(),
	})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.exec.Snapshot()})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"devices": s.monitor.Records()})
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	streams, err := s.store.Streams()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"streams": streams})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "stream")
	frame, err := s.store.Latest(name)
	if err != nil {
		if errors.Is(err, domain.ErrStreamUnknown) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// commandRequest is the uplink ingest body. Either the command name or
// the raw opcode may be given.
type commandRequest struct {
	Command string   `json:"command"`
	Opcode  uint8    `json:"opcode,omitempty"`
	Args    []string `json:"args,omitempty"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var id command.CommandID
	if req.Command != "" {
		parsed, err := command.ParseCommand(req.Command)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		id = parsed
	} else if req.Opcode != 0 {
		id = command.CommandID(req.Opcode)
	} else {
		writeError(w, http.StatusBadRequest, errors.New("command name or opcode required"))
		return
	}

	env := command.Envelope{
		ID:       uuid.New(),
		Command:  id,
		Args:     req.Args,
		Received: time.Now(),
	}
	if err := s.queue.Push(env); err != nil {
		if errors.Is(err, domain.ErrUplinkQueueFull) {
			writeError(w, http.StatusTooManyRequests, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// Accepted, not executed: the COMMAND task drains the queue in-loop.
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":          env.ID.String(),
		"queue_depth": s.queue.Len(),
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
