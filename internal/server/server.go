// Package server exposes the dashboard over HTTP: the rendered page, the
// layout and dependency descriptions, and the update endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verte-zerg/gapdash/internal/binding"
	"github.com/verte-zerg/gapdash/internal/dashboard"
	"github.com/verte-zerg/gapdash/internal/figure"
	"github.com/verte-zerg/gapdash/internal/metrics"
)

const maxUpdateBody = 1 << 20

// UpdateRequest is the body of POST /_dash-update-component.
type UpdateRequest struct {
	Changed []binding.InputID       `json:"changed"`
	Inputs  map[binding.InputID]any `json:"inputs"`
	Seq     int64                   `json:"seq"`
	Session string                  `json:"session,omitempty"`
}

// UpdateResponse carries one batch per re-evaluated rule. Seq echoes the
// request so clients can drop responses that arrive out of order.
type UpdateResponse struct {
	Seq     int64         `json:"seq"`
	Batches []BatchResult `json:"batches"`
}

// BatchResult is one rule's complete set of outputs.
type BatchResult struct {
	Rule    string                             `json:"rule"`
	Outputs map[binding.OutputID]figure.Figure `json:"outputs"`
}

// DependenciesResponse describes the dependency table.
type DependenciesResponse struct {
	Rules []binding.Dependency `json:"rules"`
}

// Option configures a Handler.
type Option func(*Handler)

// WithDebug enables pretty JSON. With a template directory set, debug mode
// also re-reads the page template from disk on every request.
func WithDebug(debug bool) Option {
	return func(h *Handler) {
		h.debug = debug
	}
}

// WithTemplateDir reads the page template from dir instead of the copy
// compiled into the binary.
func WithTemplateDir(dir string) Option {
	return func(h *Handler) {
		h.templateDir = dir
	}
}

// WithGatherer serves g at /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

// Handler serves the dashboard endpoints.
type Handler struct {
	dash     *dashboard.Dashboard
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	debug    bool

	templateDir string
	templates   fs.FS
	page        *template.Template
}

// New creates a Handler. The page template is parsed once unless debug is
// set together with a template directory.
func New(dash *dashboard.Dashboard, logger *slog.Logger, m *metrics.Metrics, opts ...Option) (*Handler, error) {
	h := &Handler{
		dash:     dash,
		logger:   logger,
		metrics:  m,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(h)
	}
	templates, err := templateSource(h.templateDir)
	if err != nil {
		return nil, err
	}
	page, err := parsePage(templates)
	if err != nil {
		return nil, err
	}
	h.templates = templates
	h.page = page
	return h, nil
}

// Register registers the dashboard routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/_dash-layout", h.handleLayout)
	r.Get("/_dash-dependencies", h.handleDependencies)
	r.Post("/_dash-update-component", h.handleUpdate)
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// NewRouter wraps the handler routes with request IDs, panic recovery,
// request logging and request counting.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(requestCounter(h.metrics))
	h.Register(r)
	return r
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	layout, err := h.dash.Page(ctx, h.dash.DefaultState())
	if err != nil {
		h.internalError(ctx, w, "failed to build page", err)
		return
	}
	tmpl := h.page
	if h.reloadTemplates() {
		if tmpl, err = parsePage(h.templates); err != nil {
			h.internalError(ctx, w, "failed to parse page template", err)
			return
		}
	}
	session := uuid.NewString()
	data, err := newPageData(layout, session)
	if err != nil {
		h.internalError(ctx, w, "failed to encode layout", err)
		return
	}
	h.logger.DebugContext(ctx, "page served", "session", session)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		h.logger.ErrorContext(ctx, "failed to render page",
			"error", err,
			"request_id", chimw.GetReqID(ctx),
		)
	}
}

func (h *Handler) reloadTemplates() bool {
	return h.debug && h.templateDir != ""
}

func (h *Handler) handleLayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	layout, err := h.dash.Page(ctx, h.dash.DefaultState())
	if err != nil {
		h.internalError(ctx, w, "failed to build layout", err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, layout)
}

func (h *Handler) handleDependencies(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(r.Context(), w, http.StatusOK, DependenciesResponse{Rules: h.dash.Graph().Rules()})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimw.GetReqID(ctx)

	var req UpdateRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBody))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid update request",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if req.Session != "" {
		if _, err := uuid.Parse(req.Session); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadSession, "session must be a UUID")
			return
		}
	}
	if err := h.checkInputs(req.Inputs); err != nil {
		h.logger.WarnContext(ctx, "rejected update", "request_id", requestID, "session", req.Session, "error", err.Error())
		writeError(w, http.StatusBadRequest, CodeUnknownInput, err.Error())
		return
	}

	state := make(binding.State, len(req.Inputs))
	for id, v := range req.Inputs {
		state[id] = v
	}
	batches, err := h.dash.Update(ctx, req.Changed, state)
	if err != nil {
		status, code := errorFor(err)
		if status >= http.StatusInternalServerError {
			h.internalError(ctx, w, "failed to dispatch update", err)
			return
		}
		h.logger.WarnContext(ctx, "rejected update", "request_id", requestID, "session", req.Session, "error", err.Error())
		writeError(w, status, code, err.Error())
		return
	}

	resp := UpdateResponse{Seq: req.Seq, Batches: make([]BatchResult, len(batches))}
	for i, b := range batches {
		resp.Batches[i] = BatchResult{Rule: b.Rule, Outputs: b.Outputs}
	}
	h.logger.DebugContext(ctx, "update dispatched",
		"request_id", requestID,
		"session", req.Session,
		"seq", req.Seq,
		"changed", req.Changed,
		"batches", len(batches),
	)
	h.writeJSON(ctx, w, http.StatusOK, resp)
}

// checkInputs rejects values for controls the page does not have.
func (h *Handler) checkInputs(inputs map[binding.InputID]any) error {
	known := make(map[binding.InputID]struct{})
	for _, id := range h.dash.Graph().Inputs() {
		known[id] = struct{}{}
	}
	for id := range inputs {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: %s", binding.ErrUnknownInput, id)
		}
	}
	return nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.debug {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.ErrorContext(ctx, "failed to write response",
			"error", err,
			"request_id", chimw.GetReqID(ctx),
		)
	}
}

func (h *Handler) internalError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", chimw.GetReqID(ctx),
	)
	writeError(w, http.StatusInternalServerError, CodeInternal, msg)
}
