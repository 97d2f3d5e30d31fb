package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

// ListElements returns the element directory, optionally filtered by the
// q query parameter against name and locator.
// (GET /api/v1/elements)
func (h *Handler) ListElements(c echo.Context) error {
	elements, err := h.repo.ListElements(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list elements: "+err.Error())
	}

	q := c.QueryParam("q")
	out := make([]models.Element, 0, len(elements))
	for _, el := range elements {
		if el.Matches(q) {
			out = append(out, el)
		}
	}
	return c.JSON(http.StatusOK, out)
}

// CreateElement adds an element to the directory.
// (POST /api/v1/elements)
func (h *Handler) CreateElement(c echo.Context) error {
	var el models.Element
	if err := c.Bind(&el); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	el.Name = strings.TrimSpace(el.Name)
	el.Locator = strings.TrimSpace(el.Locator)
	if el.Name == "" || el.Locator == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and locator are required")
	}
	if el.LocatorType == "" {
		el.LocatorType = models.LocatorXPath
	}
	if !el.LocatorType.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown locatorType: "+string(el.LocatorType))
	}
	el.ID = uuid.NewString()

	if err := h.repo.CreateElement(c.Request().Context(), &el); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save element: "+err.Error())
	}
	h.logger.Info("element created", "element_id", el.ID, "name", el.Name)
	return c.JSON(http.StatusCreated, el)
}

// DeleteElement removes an element. Steps referencing it keep the dangling
// reference and render as unknown.
// (DELETE /api/v1/elements/:id)
func (h *Handler) DeleteElement(c echo.Context) error {
	if err := h.repo.DeleteElement(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete element: "+err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
