package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// ListWorkflows returns a list of all committed workflows
// (GET /api/v1/workflows)
func (h *Handler) ListWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	workflows, err := h.repo.ListWorkflows(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if workflows == nil {
		workflows = []*models.Workflow{}
	}

	return c.JSON(http.StatusOK, workflows)
}

// PutWorkflow creates or replaces a committed workflow without going
// through the builder draft.
// (PUT /api/v1/workflows)
func (h *Handler) PutWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var workflow models.Workflow
	if err := c.Bind(&workflow); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}
	if workflow.Steps == nil {
		workflow.Steps = []models.Step{}
	}
	for i, step := range workflow.Steps {
		if !step.Operation.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown operation: "+string(step.Operation))
		}
		if step.ID == "" {
			workflow.Steps[i].ID = uuid.New().String()
		}
	}
	if workflow.LastRunStatus == "" {
		workflow.LastRunStatus = models.RunStatusNone
	}

	if err := h.repo.UpsertWorkflow(ctx, &workflow); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save workflow: "+err.Error())
	}

	return c.JSON(http.StatusOK, workflow)
}

// DeleteWorkflow removes a committed workflow. An open draft of it is kept.
// (DELETE /api/v1/workflows/:id)
func (h *Handler) DeleteWorkflow(c echo.Context) error {
	if err := h.repo.DeleteWorkflow(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete workflow: "+err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
