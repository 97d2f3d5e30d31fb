package runner

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kaijie-yu/google-ui/internal/services"
	"github.com/kaijie-yu/google-ui/pkg/models"
)

// Handler exposes the Executor over HTTP.
type Handler struct {
	exec   *Executor
	logger Logger
}

// NewHandler creates a new Handler.
func NewHandler(exec *Executor, logger Logger) *Handler {
	return &Handler{exec: exec, logger: logger}
}

// RunAutomation executes the posted steps and answers with the status and
// the log. Step failures are reported in the body, not as HTTP errors.
// (POST /api/run-automation)
func (h *Handler) RunAutomation(c echo.Context) error {
	var req models.AutomationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	h.logger.Info("automation requested", "workflow_id", req.WorkflowID, "steps", len(req.Steps))

	result := h.exec.Execute(c.Request().Context(), req)
	return c.JSON(http.StatusOK, result)
}

// NewEcho builds the runner HTTP server. Cross-origin requests are allowed
// from allowedOrigins so a browser-hosted builder can call it directly.
func NewEcho(h *Handler, allowedOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.POST(services.RunAutomationPath, h.RunAutomation)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return e
}
