// Package api contains the HTTP handlers for the workflow builder service.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/kaijie-yu/google-ui/internal/engine"
	"github.com/kaijie-yu/google-ui/internal/repository"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Handler contains HTTP handlers for the builder REST API
type Handler struct {
	repo     repository.Repository
	session  *engine.Session
	logger   Logger
	version  string
	upgrader websocket.Upgrader
}

// NewHandler creates a new Handler with required dependencies
func NewHandler(repo repository.Repository, session *engine.Session, logger Logger) *Handler {
	return &Handler{
		repo:    repo,
		session: session,
		logger:  logger,
		version: "1.0.0",
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterHandlers mounts every route on g.
func RegisterHandlers(g *echo.Group, h *Handler) {
	g.GET("/health", h.HandleHealth)
	g.GET("/operations", h.ListOperations)

	g.GET("/elements", h.ListElements)
	g.POST("/elements", h.CreateElement)
	g.DELETE("/elements/:id", h.DeleteElement)

	g.GET("/workflows", h.ListWorkflows)
	g.PUT("/workflows", h.PutWorkflow)
	g.DELETE("/workflows/:id", h.DeleteWorkflow)

	b := g.Group("/builder")
	b.GET("", h.GetBuilder)
	b.POST("/workflows/:id/select", h.SelectWorkflow)
	b.POST("/new", h.NewWorkflow)
	b.PUT("/name", h.RenameWorkflow)
	b.POST("/steps", h.AddStep)
	b.PATCH("/steps/:id", h.UpdateStep)
	b.DELETE("/steps/:id", h.RemoveStep)
	b.POST("/steps/reorder", h.ReorderSteps)
	b.POST("/drag", h.Drag)
	b.PUT("/mode", h.SetMode)
	b.POST("/run", h.Run)
	b.GET("/log", h.GetLog)
	b.GET("/log/stream", h.StreamLog)
	b.POST("/save", h.Save)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Storage   string    `json:"storage"`
}

// HandleHealth returns basic health status. The storage field reports
// whether the repository answers a ping; the endpoint itself always returns 200.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "autoflow",
		Version:   h.version,
		Storage:   "ok",
	}
	if err := h.repo.Ping(c.Request().Context()); err != nil {
		h.logger.Warn("storage ping failed", "error", err)
		status.Storage = "unavailable"
	}
	return c.JSON(http.StatusOK, status)
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// writeError writes an RFC 7807 Problem Details JSON error response
func writeError(c echo.Context, status int, title, detail string) error {
	problem := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, problem)
}

// ErrorHandler returns an echo.HTTPErrorHandler rendering every error as
// Problem Details. Engine and repository sentinels map to their status codes.
func ErrorHandler(logger Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := statusFor(err)
		detail := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if msg, ok := he.Message.(string); ok {
				detail = msg
			} else {
				detail = http.StatusText(status)
			}
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "path", c.Request().URL.Path, "error", err)
		}

		if werr := writeError(c, status, http.StatusText(status), detail); werr != nil {
			logger.Error("failed to write error response", "error", werr)
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrRunInProgress), errors.Is(err, engine.ErrNoDraft):
		return http.StatusConflict
	case errors.Is(err, engine.ErrWorkflowNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrIndexOutOfRange),
		errors.Is(err, engine.ErrNotDragging),
		errors.Is(err, engine.ErrInvalidRunMode),
		errors.Is(err, engine.ErrInvalidOperation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
