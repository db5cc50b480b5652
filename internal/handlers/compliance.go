package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/adamsch0100/leadsynergy-sub002/internal/auth"
	"github.com/adamsch0100/leadsynergy-sub002/internal/compliance"
	"github.com/adamsch0100/leadsynergy-sub002/internal/contacts"
)

type ComplianceHandler struct {
	gate     *compliance.Gate
	consent  *compliance.Service
	contacts contacts.Reader
}

func NewComplianceHandler(gate *compliance.Gate, consent *compliance.Service, reader contacts.Reader) *ComplianceHandler {
	return &ComplianceHandler{
		gate:     gate,
		consent:  consent,
		contacts: reader,
	}
}

func (h *ComplianceHandler) Register(e *echo.Echo) {
	group := e.Group("/orgs/:org_id/contacts/:id")
	group.GET("/compliance", h.Check)
	group.POST("/consent", h.RecordConsent)
	group.POST("/opt_out", h.RecordOptOut)
	group.DELETE("/opt_out", h.ClearOptOut)
}

type consentRequest struct {
	Source string `json:"source"`
}

type optOutRequest struct {
	Reason string `json:"reason"`
}

// Check runs the full compliance evaluation (stage eligibility plus the SMS
// checks) for one contact and returns the result without side effects.
func (h *ComplianceHandler) Check(c echo.Context) error {
	orgID, contactID, err := h.pathIDs(c)
	if err != nil {
		return err
	}
	contact, err := h.contacts.GetByID(c.Request().Context(), contactID)
	if err != nil {
		if errors.Is(err, contacts.ErrContactNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "contact not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	result, err := h.gate.EvaluateFull(c.Request().Context(), compliance.FullRequest{
		ContactID:      contactID,
		OrganizationID: orgID,
		PhoneNumber:    contact.Phone,
		Timezone:       contact.Timezone,
		Stage:          contact.Stage,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *ComplianceHandler) RecordConsent(c echo.Context) error {
	orgID, contactID, err := h.pathIDs(c)
	if err != nil {
		return err
	}
	var req consentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	record, err := h.consent.RecordConsent(c.Request().Context(), contactID, orgID, req.Source)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, record)
}

func (h *ComplianceHandler) RecordOptOut(c echo.Context) error {
	orgID, contactID, err := h.pathIDs(c)
	if err != nil {
		return err
	}
	var req optOutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = "manual opt-out"
	}
	record, err := h.consent.RecordOptOut(c.Request().Context(), contactID, orgID, req.Reason)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, record)
}

func (h *ComplianceHandler) ClearOptOut(c echo.Context) error {
	orgID, contactID, err := h.pathIDs(c)
	if err != nil {
		return err
	}
	record, err := h.consent.ClearOptOut(c.Request().Context(), contactID, orgID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, record)
}

func (h *ComplianceHandler) pathIDs(c echo.Context) (orgID, contactID string, err error) {
	orgID = strings.TrimSpace(c.Param("org_id"))
	if orgID == "" {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "organization id is required")
	}
	if err := auth.AuthorizeOrg(c, orgID); err != nil {
		return "", "", err
	}
	contactID = strings.TrimSpace(c.Param("id"))
	if contactID == "" {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "contact id is required")
	}
	return orgID, contactID, nil
}
