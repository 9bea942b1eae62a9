// Package server exposes a single assistant session over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	. "github.com/stevegt/goadapt"

	"github.com/arnaudmiribel/arctic-metric-assistant/core"
	"github.com/arnaudmiribel/arctic-metric-assistant/util"
)

// Handler serves one in-memory conversation.  Requests that touch the
// conversation are serialized.
type Handler struct {
	mu        sync.Mutex
	assistant *core.Assistant
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	// Reset is true when the client should offer a reset.
	Reset bool `json:"reset,omitempty"`
}

type askRequest struct {
	Question string `json:"question"`
}

type historyResponse struct {
	Session string      `json:"session"`
	Turns   []core.Turn `json:"turns"`
}

type metricsEvent struct {
	Names   []string       `json:"names"`
	Metrics []*core.Metric `json:"metrics"`
}

// NewHandler creates a Handler for the given assistant.
func NewHandler(assistant *core.Assistant) *Handler {
	return &Handler{assistant: assistant}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/metrics", h.ListMetrics)
	e.GET("/api/metrics/:name", h.GetMetric)
	e.GET("/api/prompt", h.Prompt)
	e.GET("/api/history", h.History)
	e.POST("/api/reset", h.Reset)
	e.POST("/api/ask", h.Ask)
}

// New creates and configures the HTTP server.
func New(assistant *core.Assistant) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	NewHandler(assistant).RegisterRoutes(e)
	return e
}

// ListMetrics returns the catalog without data.
// GET /api/metrics
func (h *Handler) ListMetrics(c echo.Context) error {
	var out []core.Metric
	for _, m := range h.assistant.Catalog.Metrics() {
		out = append(out, core.Metric{Name: m.Name, Description: m.Description, Chart: m.Chart})
	}
	return c.JSON(http.StatusOK, out)
}

// GetMetric returns one metric with its data, optionally limited to
// the from and to dates.
// GET /api/metrics/:name
func (h *Handler) GetMetric(c echo.Context) error {
	m, err := h.assistant.Catalog.Find(c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	}
	from, to, err := util.ParseDateRange(c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	out := *m
	out.Data = m.Slice(from, to)
	return c.JSON(http.StatusOK, out)
}

// Prompt returns the instruction prompt.
// GET /api/prompt
func (h *Handler) Prompt(c echo.Context) error {
	return c.String(http.StatusOK, h.assistant.Sysmsg)
}

// History returns the conversation so far.
// GET /api/history
func (h *Handler) History(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.JSON(http.StatusOK, historyResponse{
		Session: h.assistant.SessionID(),
		Turns:   h.assistant.History(),
	})
}

// Reset clears the conversation.
// POST /api/reset
func (h *Handler) Reset(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assistant.Reset()
	return c.JSON(http.StatusOK, historyResponse{
		Session: h.assistant.SessionID(),
		Turns:   h.assistant.History(),
	})
}

// Ask streams the model reply as server-sent events: one "chunk"
// event per model chunk, one "metrics" event with the matched
// metrics, then a [DONE] marker.
// POST /api/ask
func (h *Handler) Ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil || req.Question == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question is required"})
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	w := &sseWriter{c: c}
	reply, err := h.assistant.Ask(c.Request().Context(), req.Question, w)
	switch {
	case errors.Is(err, core.ErrPromptTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: Spf("Conversation length too long. Please keep it under %d tokens.", core.PromptTokenLimit),
			Reset: true,
		})
	case err != nil && !w.started:
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	case err != nil:
		// Can't change status code after streaming started
		Debug("ask: stream failed: %v", err)
		w.event("error", ErrorResponse{Error: err.Error()})
	default:
		w.event("metrics", metricsEvent{Names: reply.Names, Metrics: reply.Metrics})
	}
	w.done()
	return nil
}

// sseWriter writes model chunks as server-sent events, sending the
// headers on the first write.
type sseWriter struct {
	c       echo.Context
	started bool
}

func (w *sseWriter) start() {
	if w.started {
		return
	}
	w.started = true
	res := w.c.Response()
	res.Header().Set("Content-Type", "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
}

func (w *sseWriter) Write(p []byte) (n int, err error) {
	err = w.event("chunk", string(p))
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *sseWriter) event(name string, v any) (err error) {
	w.start()
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	res := w.c.Response()
	_, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", name, data)
	if err != nil {
		return
	}
	res.Flush()
	return
}

func (w *sseWriter) done() {
	w.start()
	res := w.c.Response()
	io.WriteString(res, "data: [DONE]\n\n")
	res.Flush()
}
