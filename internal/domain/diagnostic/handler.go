package diagnostic

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medq/medq/internal/platform/auth"
	"github.com/medq/medq/internal/platform/httpx"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/assignments/:id/analytics", h.AssignmentAnalytics)
}

// AssignmentAnalytics is only available to the doctor who made the
// assignment.
func (h *Handler) AssignmentAnalytics(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := h.engine.assignments.GetAssignment(ctx, id)
	if err != nil {
		return httpx.Error(err)
	}
	if !auth.CanActAs(ctx, a.DoctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "not the assigning doctor")
	}
	report, err := h.engine.AssignmentAnalytics(ctx, id)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, report)
}
