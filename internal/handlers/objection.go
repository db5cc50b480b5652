package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/adamsch0100/leadsynergy-sub002/internal/auth"
	"github.com/adamsch0100/leadsynergy-sub002/internal/objection"
	"github.com/adamsch0100/leadsynergy-sub002/internal/router"
)

type ObjectionHandler struct {
	selector router.ObjectionSelector
}

func NewObjectionHandler(selector router.ObjectionSelector) *ObjectionHandler {
	return &ObjectionHandler{selector: selector}
}

func (h *ObjectionHandler) Register(e *echo.Echo) {
	e.POST("/orgs/:org_id/contacts/:id/objection", h.Select)
}

type objectionRequest struct {
	Category  string `json:"category"`
	Sentiment string `json:"sentiment"`
	LeadScore int    `json:"lead_score"`
	Timeline  string `json:"timeline"`
}

// Select returns the response posture for a classified objection. This is
// the synchronous API counterpart of the inbound webhook path.
func (h *ObjectionHandler) Select(c echo.Context) error {
	orgID := strings.TrimSpace(c.Param("org_id"))
	if orgID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "organization id is required")
	}
	if err := auth.AuthorizeOrg(c, orgID); err != nil {
		return err
	}
	contactID := strings.TrimSpace(c.Param("id"))
	if contactID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contact id is required")
	}
	var req objectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	category, ok := objection.ParseCategory(req.Category)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown objection category")
	}
	decision, err := h.selector.Select(c.Request().Context(), objection.Input{
		ContactID:      contactID,
		OrganizationID: orgID,
		Category:       category,
		Sentiment:      req.Sentiment,
		LeadScore:      req.LeadScore,
		Timeline:       req.Timeline,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, decision)
}
