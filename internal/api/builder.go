package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kaijie-yu/google-ui/internal/engine"
	"github.com/kaijie-yu/google-ui/pkg/models"
)

// ListOperations returns the operation catalog.
// (GET /api/v1/operations)
func (h *Handler) ListOperations(c echo.Context) error {
	return c.JSON(http.StatusOK, models.Operations)
}

// GetBuilder returns the session state: draft, run state, mode and log.
// (GET /api/v1/builder)
func (h *Handler) GetBuilder(c echo.Context) error {
	return c.JSON(http.StatusOK, h.session.Snapshot())
}

// SelectWorkflow opens a committed workflow as the draft.
// (POST /api/v1/builder/workflows/:id/select)
func (h *Handler) SelectWorkflow(c echo.Context) error {
	draft, err := h.session.SelectWorkflow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, draft)
}

// NewWorkflow opens an empty draft.
// (POST /api/v1/builder/new)
func (h *Handler) NewWorkflow(c echo.Context) error {
	draft, err := h.session.NewWorkflow()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, draft)
}

type renameRequest struct {
	Name string `json:"name"`
}

// RenameWorkflow sets the draft name.
// (PUT /api/v1/builder/name)
func (h *Handler) RenameWorkflow(c echo.Context) error {
	var req renameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if err := h.session.Rename(req.Name); err != nil {
		return err
	}
	return h.GetBuilder(c)
}

// AddStep appends a default step to the draft.
// (POST /api/v1/builder/steps)
func (h *Handler) AddStep(c echo.Context) error {
	step, err := h.session.AddStep(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, step)
}

// stepPatch carries the step attributes to change. Absent fields are left
// as they are; an empty string clears the attribute.
type stepPatch struct {
	Operation       *models.Operation `json:"operation"`
	TargetElementID *string           `json:"targetElementId"`
	Value           *string           `json:"value"`
	Description     *string           `json:"description"`
}

func (p stepPatch) edits() []engine.StepEdit {
	var edits []engine.StepEdit
	if p.Operation != nil {
		edits = append(edits, engine.SetOperation{Operation: *p.Operation})
	}
	if p.TargetElementID != nil {
		edits = append(edits, engine.SetTarget{ElementID: *p.TargetElementID})
	}
	if p.Value != nil {
		edits = append(edits, engine.SetValue{Value: *p.Value})
	}
	if p.Description != nil {
		edits = append(edits, engine.SetDescription{Description: *p.Description})
	}
	return edits
}

// UpdateStep edits one step of the draft.
// (PATCH /api/v1/builder/steps/:id)
func (h *Handler) UpdateStep(c echo.Context) error {
	var patch stepPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if err := h.session.UpdateStep(c.Param("id"), patch.edits()...); err != nil {
		return err
	}
	return h.GetBuilder(c)
}

// RemoveStep deletes a step from the draft.
// (DELETE /api/v1/builder/steps/:id)
func (h *Handler) RemoveStep(c echo.Context) error {
	if err := h.session.RemoveStep(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ReorderSteps moves a step from one index to another.
// (POST /api/v1/builder/steps/reorder)
func (h *Handler) ReorderSteps(c echo.Context) error {
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if err := h.session.MoveStep(req.From, req.To); err != nil {
		return err
	}
	return h.GetBuilder(c)
}

const (
	dragStart = "start"
	dragOver  = "over"
	dragEnd   = "end"
)

type dragRequest struct {
	Action string `json:"action"`
	Index  int    `json:"index"`
}

// Drag drives the drag gesture: start at an index, move over indices, end.
// (POST /api/v1/builder/drag)
func (h *Handler) Drag(c echo.Context) error {
	var req dragRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	var err error
	switch req.Action {
	case dragStart:
		err = h.session.BeginDrag(req.Index)
	case dragOver:
		err = h.session.DragOver(req.Index)
	case dragEnd:
		h.session.EndDrag()
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown drag action: "+req.Action)
	}
	if err != nil {
		return err
	}
	return h.GetBuilder(c)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

// SetMode selects SIMULATED or REAL for the next run.
// (PUT /api/v1/builder/mode)
func (h *Handler) SetMode(c echo.Context) error {
	var req modeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	mode, err := engine.ParseRunMode(req.Mode)
	if err != nil {
		return err
	}
	if err := h.session.SetMode(mode); err != nil {
		return err
	}
	return h.GetBuilder(c)
}

// Run starts a run of the draft. The run continues after the response;
// follow it through the log endpoints.
// (POST /api/v1/builder/run)
func (h *Handler) Run(c echo.Context) error {
	if _, err := h.session.Run(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, h.session.Snapshot())
}

// GetLog returns the log of the current or last run.
// (GET /api/v1/builder/log)
func (h *Handler) GetLog(c echo.Context) error {
	return c.JSON(http.StatusOK, h.session.Log().Snapshot())
}

// Save commits the draft.
// (POST /api/v1/builder/save)
func (h *Handler) Save(c echo.Context) error {
	wf, err := h.session.Save(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}
