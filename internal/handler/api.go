package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"gridscope/internal/codec"
	"gridscope/internal/domain"
	"gridscope/internal/interaction"
	"gridscope/internal/repository"
	"gridscope/internal/session"
)

// StateResponse describes the session as a whole
type StateResponse struct {
	State    interaction.State `json:"state"`
	Case     string            `json:"case"`
	Scale    domain.Scale      `json:"scale"`
	Nodes    int               `json:"nodes"`
	Links    int               `json:"links"`
	Active   bool              `json:"active"`
	InFlight bool              `json:"in_flight"`
	Width    float64           `json:"width"`
	Height   float64           `json:"height"`
	Stats    *domain.Stats     `json:"stats,omitempty"`
}

// NodeEditRequest commits edited node fields and optionally a new type
type NodeEditRequest struct {
	Type   string             `json:"type,omitempty"`
	Fields map[string]float64 `json:"fields"`
}

// LinkEditRequest commits line parameters
type LinkEditRequest struct {
	Resistance *float64 `json:"resistance,omitempty"`
	Reactance  *float64 `json:"reactance,omitempty"`
}

// LoadCaseRequest names a predefined backend case
type LoadCaseRequest struct {
	Case string `json:"case"`
}

// CalculateRequest selects the power-flow method
type CalculateRequest struct {
	Method string `json:"method,omitempty"`
}

// CalculateResponse reports a completed calculation
type CalculateResponse struct {
	Converged bool          `json:"converged"`
	Case      string        `json:"case"`
	Stats     *domain.Stats `json:"stats,omitempty"`
}

// ViewportRequest reports the renderer's size
type ViewportRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// GetFrame returns the latest published frame
func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.runner.Session().Frame(), http.StatusOK)
}

// GetState returns the interaction state and session summary
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	var resp StateResponse
	err := h.runner.Do(r.Context(), func(s *session.Session) error {
		resp = stateOf(s)
		return nil
	})
	if err != nil {
		h.fail(w, "Failed to get state", err)
		return
	}
	h.writeJSON(w, resp, http.StatusOK)
}

func stateOf(s *session.Session) StateResponse {
	label, scale := s.Case()
	nodes, links := s.Store().Len()
	width, height := s.Viewport()
	return StateResponse{
		State:    s.State(),
		Case:     label,
		Scale:    scale,
		Nodes:    nodes,
		Links:    links,
		Active:   s.Active(),
		InFlight: s.InFlight(),
		Width:    width,
		Height:   height,
		Stats:    s.Stats(),
	}
}

// GetTopology returns the canonical payload with current positions
func (h *Handler) GetTopology(w http.ResponseWriter, r *http.Request) {
	p, err := h.topology(r)
	if err != nil {
		h.fail(w, "Failed to get topology", err)
		return
	}
	h.writeJSON(w, p, http.StatusOK)
}

func (h *Handler) topology(r *http.Request) (domain.Payload, error) {
	var p domain.Payload
	err := h.runner.Do(r.Context(), func(s *session.Session) error {
		p = s.Topology()
		return nil
	})
	return p, err
}

// PostGesture applies one operator gesture and returns the resulting state
func (h *Handler) PostGesture(w http.ResponseWriter, r *http.Request) {
	var g interaction.Gesture
	if err := decodeBody(w, r, &g); err != nil {
		h.badBody(w, "Invalid request body", err)
		return
	}

	var state interaction.State
	err := h.runner.Do(r.Context(), func(s *session.Session) error {
		err := s.Gesture(g)
		state = s.State()
		return err
	})
	if err != nil {
		h.fail(w, "Gesture rejected", err)
		return
	}
	h.writeJSON(w, state, http.StatusOK)
}

// UpdateNode commits an edit to a node's fields or type
func (h *Handler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, "Invalid node ID", "Node ID is required", http.StatusBadRequest)
		return
	}

	var req NodeEditRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.badBody(w, "Invalid request body", err)
		return
	}

	var rec domain.NodeRecord
	err := h.runner.Do(r.Context(), func(s *session.Session) error {
		if err := s.CommitNodeEdit(id, req.Fields, req.Type); err != nil {
			return err
		}
		rec = s.Store().Node(id).Record()
		return nil
	})
	if err != nil {
		h.fail(w, "Failed to update node", err)
		return
	}
	h.writeJSON(w, rec, http.StatusOK)
}

// UpdateLink commits an edit to a link's line parameters
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, "Invalid link ID", "Link ID is required", http.StatusBadRequest)
		return
	}

	var req LinkEditRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.badBody(w, "Invalid request body", err)
		return
	}

	var rec domain.LinkRecord
	err := h.runner.Do(r.Context(), func(s *session.Session) error {
		if err := s.CommitLinkEdit(id, req.Resistance, req.Reactance); err != nil {
			return err
		}
		rec = s.Store().Link(id).Record()
		return nil
	})
	if err != nil {
		h.fail(w, "Failed to update link", err)
		return
	}
	h.writeJSON(w, rec, http.StatusOK)
}

// SetViewport records the renderer size. Recentering is debounced, so the
// response only acknowledges the request.
func (h *Handler) SetViewport(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.badBody(w, "Invalid request body", err)
		return
	}

	err := h.runner.Do(r.Context(), func(s *session.Session) error {
		return s.Resize(req.Width, req.Height)
	})
	if err != nil {
		h.fail(w, "Failed to resize viewport", err)
		return
	}
	h.writeJSON(w, req, http.StatusAccepted)
}

// LoadCase replaces the topology with a predefined backend case
func (h *Handler) LoadCase(w http.ResponseWriter, r *http.Request) {
	var req LoadCaseRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.badBody(w, "Invalid request body", err)
		return
	}
	if req.Case == "" {
		h.writeError(w, "Invalid case", "case is required", http.StatusBadRequest)
		return
	}

	if err := h.runner.LoadCase(r.Context(), req.Case); err != nil {
		h.fail(w, "Failed to load case", err)
		return
	}
	h.writeSummary(w, r)
}

// Import replaces the topology with an uploaded document
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(r.PathValue("format"))
	if err != nil {
		h.writeError(w, "Unknown import format", err.Error(), http.StatusNotFound)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.badBody(w, "Failed to read request body", err)
		return
	}
	res, err := c.Parse(bytes.NewReader(data))
	if err != nil {
		h.badBody(w, "Failed to parse "+c.Format(), err)
		return
	}

	if err := h.runner.Do(r.Context(), func(s *session.Session) error {
		return s.InitFrom(res)
	}); err != nil {
		h.fail(w, "Failed to import topology", err)
		return
	}
	h.writeSummary(w, r)
}

func (h *Handler) writeSummary(w http.ResponseWriter, r *http.Request) {
	var info session.TopologyInfo
	err := h.runner.Do(r.Context(), func(s *session.Session) error {
		label, scale := s.Case()
		nodes, links := s.Store().Len()
		info = session.TopologyInfo{Case: label, Scale: string(scale), Nodes: nodes, Links: links}
		return nil
	})
	if err != nil {
		h.fail(w, "Failed to get topology", err)
		return
	}
	h.writeJSON(w, info, http.StatusOK)
}

// Calculate runs a power-flow calculation on the current topology. Only one
// calculation may be in flight.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.badBody(w, "Invalid request body", err)
		return
	}

	if err := h.runner.Calculate(r.Context(), req.Method); err != nil {
		h.fail(w, "Calculation failed", err)
		return
	}

	var resp CalculateResponse
	err := h.runner.Do(r.Context(), func(s *session.Session) error {
		resp.Converged = true
		resp.Case, _ = s.Case()
		resp.Stats = s.Stats()
		return nil
	})
	if err != nil {
		h.fail(w, "Failed to read calculation result", err)
		return
	}
	h.writeJSON(w, resp, http.StatusOK)
}

// ListHistory returns recent calculation runs, newest first
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := h.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, "Invalid limit", "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	repo := h.history()
	if repo == nil {
		h.writeJSON(w, []repository.Run{}, http.StatusOK)
		return
	}

	runs, err := repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, "Failed to list history", err)
		return
	}
	h.writeJSON(w, runs, http.StatusOK)
}

// GetHistory returns one calculation run
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	repo := h.history()
	if repo == nil {
		h.fail(w, "Not found", domain.ErrRunNotFound)
		return
	}

	run, err := repo.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "Failed to get run", err)
		return
	}
	h.writeJSON(w, run, http.StatusOK)
}

// history is fixed at construction, so reading it off the session
// goroutine is safe
func (h *Handler) history() repository.HistoryRepository {
	return h.runner.Session().History()
}

// Export downloads the topology as JSON or YAML
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(r.PathValue("format"))
	if err != nil {
		h.writeError(w, "Unknown export format", err.Error(), http.StatusNotFound)
		return
	}

	p, err := h.topology(r)
	if err != nil {
		h.fail(w, "Failed to export topology", err)
		return
	}

	var buf bytes.Buffer
	if err := c.Export(p, &buf); err != nil {
		h.fail(w, "Failed to export topology", err)
		return
	}

	name := p.Case
	if name == "" {
		name = "topology"
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+c.Format()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.Warn("failed to write export", "format", c.Format(), "error", err)
	}
}
