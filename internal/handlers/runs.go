package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/adamsch0100/leadsynergy-sub002/internal/auth"
	"github.com/adamsch0100/leadsynergy-sub002/internal/executor"
)

// RunDriver is the slice of the executor the HTTP surface needs.
type RunDriver interface {
	RunScan(ctx context.Context, organizationID string, execute bool, batchSize int) (executor.RunSummary, error)
}

type RunsHandler struct {
	runner RunDriver
}

func NewRunsHandler(runner RunDriver) *RunsHandler {
	return &RunsHandler{runner: runner}
}

func (h *RunsHandler) Register(e *echo.Echo) {
	e.POST("/orgs/:org_id/scan", h.Run)
}

type runRequest struct {
	Execute   bool `json:"execute"`
	BatchSize int  `json:"batch_size"`
}

// Run triggers one scan pass for the organization. With execute false the
// ranked recommendations come back as dry-run results for operator review.
func (h *RunsHandler) Run(c echo.Context) error {
	orgID := strings.TrimSpace(c.Param("org_id"))
	if orgID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "organization id is required")
	}
	if err := auth.AuthorizeOrg(c, orgID); err != nil {
		return err
	}
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	summary, err := h.runner.RunScan(c.Request().Context(), orgID, req.Execute, req.BatchSize)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}
