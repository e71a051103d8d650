// Package backend talks to the external power-flow computation service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gridscope/internal/domain"
	"gridscope/internal/metrics"
)

// DefaultTimeout bounds a single backend request
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response is read
const maxBody = 32 << 20

// Client calls the computation backend's JSON API
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for the backend at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// FlowRequest is the body of a calculate-flow call
type FlowRequest struct {
	Nodes  []domain.NodeRecord `json:"nodes"`
	Links  []domain.LinkRecord `json:"links"`
	Method string              `json:"method,omitempty"`
}

// FlowResponse is a calculate-flow result. Raw holds the whole document for
// the adapter; Stats is decoded from it for display.
type FlowResponse struct {
	Raw       map[string]any
	Stats     *domain.Stats
	Converged bool
	Error     string
}

// GridData fetches the startup topology
func (c *Client) GridData(ctx context.Context) (map[string]any, error) {
	var doc map[string]any
	if err := c.do(ctx, "grid-data", http.MethodGet, "/api/grid-data", nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadCase fetches one of the backend's predefined cases
func (c *Client) LoadCase(ctx context.Context, name string) (map[string]any, error) {
	var doc map[string]any
	body := map[string]string{"case": name}
	if err := c.do(ctx, "load-case", http.MethodPost, "/api/load-case", body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// CalculateFlow submits the topology for a power-flow run. A response that
// reports non-convergence is returned together with a CalculationError.
func (c *Client) CalculateFlow(ctx context.Context, req FlowRequest) (*FlowResponse, error) {
	var doc map[string]any
	if err := c.do(ctx, "calculate-flow", http.MethodPost, "/api/calculate-flow", req, &doc); err != nil {
		return nil, err
	}

	resp := &FlowResponse{Raw: doc, Converged: true}
	if v, ok := doc["converged"].(bool); ok {
		resp.Converged = v
	}
	if msg, ok := doc["error"].(string); ok {
		resp.Error = msg
	}
	if raw, ok := doc["stats"]; ok && raw != nil {
		stats, err := decodeStats(raw)
		if err != nil {
			return nil, &domain.InvalidShapeError{Path: "stats", Reason: err.Error()}
		}
		resp.Stats = stats
	}

	if !resp.Converged || (resp.Error != "" && doc["nodes"] == nil) {
		return resp, &domain.CalculationError{Message: resp.Error}
	}
	return resp, nil
}

func decodeStats(raw any) (*domain.Stats, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var stats domain.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if c == nil || c.BaseURL == "" {
		return domain.ErrNoBackend
	}

	start := time.Now()
	status := 0
	defer func() {
		metrics.BackendRequestDuration.
			WithLabelValues(op, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("backend request", "op", op, "request_id", requestID)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &domain.NetworkError{Op: op, Status: status, Err: err}
	}

	if status < 200 || status > 299 {
		return &domain.NetworkError{Op: op, Status: status, Err: errorMessage(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &domain.InvalidShapeError{Reason: fmt.Sprintf("%s: decode response: %v", op, err)}
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a failure body when present
func errorMessage(data []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return errors.New(body.Error)
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		return nil
	}
	return errors.New(text)
}
