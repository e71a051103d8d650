package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gridscope/internal/hub"
	"gridscope/internal/session"
)

// Handler serves the operator API over a running session
type Handler struct {
	runner *session.Runner
	hub    *hub.Hub
	log    *slog.Logger

	// HistoryLimit caps GET /api/history when no limit is requested
	HistoryLimit int
}

// New creates a handler. hub may be nil, in which case /events and /ws are
// not routed.
func New(runner *session.Runner, h *hub.Hub, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		runner:       runner,
		hub:          h,
		log:          log,
		HistoryLimit: 50,
	}
}

// Routes builds the mux with every endpoint and the standard middleware
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// View
	mux.HandleFunc("GET /api/frame", h.GetFrame)
	mux.HandleFunc("GET /api/state", h.GetState)
	mux.HandleFunc("GET /api/topology", h.GetTopology)

	// Interaction
	mux.HandleFunc("POST /api/gestures", h.PostGesture)
	mux.HandleFunc("PUT /api/nodes/{id}", h.UpdateNode)
	mux.HandleFunc("PUT /api/links/{id}", h.UpdateLink)
	mux.HandleFunc("POST /api/viewport", h.SetViewport)

	// Backend
	mux.HandleFunc("POST /api/cases/load", h.LoadCase)
	mux.HandleFunc("POST /api/calculate", h.Calculate)

	// History
	mux.HandleFunc("GET /api/history", h.ListHistory)
	mux.HandleFunc("GET /api/history/{id}", h.GetHistory)

	// Import/export
	mux.HandleFunc("POST /api/import/{format}", h.Import)
	mux.HandleFunc("GET /api/export/{format}", h.Export)

	// Streams
	if h.hub != nil {
		mux.Handle("GET /events", h.hub)
		mux.HandleFunc("GET /ws", h.ServeWS)
	}

	mux.Handle("GET /metrics", promhttp.Handler())

	return Chain(mux,
		Recover,
		CORS,
		Logger,
	)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Helper methods

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		h.log.Error("failed to encode error response", "error", err)
	}
}

// fail writes err with the status its kind maps to
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(message, "error", err, "status", status)
	} else {
		h.log.Debug(message, "error", err, "status", status)
	}
	h.writeError(w, message, err.Error(), status)
}

// badBody rejects an unreadable request body. Bodies over the size limit get
// 413, anything else 400.
func (h *Handler) badBody(w http.ResponseWriter, message string, err error) {
	status := http.StatusBadRequest
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	h.log.Debug(message, "error", err, "status", status)
	h.writeError(w, message, err.Error(), status)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

const maxBodyBytes = 8 << 20
