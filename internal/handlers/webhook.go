package handlers

import (
	"crypto/hmac"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/adamsch0100/leadsynergy-sub002/internal/router"
)

// WebhookHandler receives provider callbacks for inbound contact messages.
// The route skips JWT auth; a shared-secret header stands in for provider
// signature verification.
type WebhookHandler struct {
	processor *router.InboundProcessor
	secret    string
}

func NewWebhookHandler(processor *router.InboundProcessor, secret string) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		secret:    strings.TrimSpace(secret),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/inbound", h.Inbound)
}

type inboundRequest struct {
	ContactID      string `json:"contact_id"`
	OrganizationID string `json:"organization_id"`
	From           string `json:"from"`
	Text           string `json:"text"`
	Intent         string `json:"intent"`
	Sentiment      string `json:"sentiment"`
	LeadScore      int    `json:"lead_score"`
	Timeline       string `json:"timeline"`
}

func (h *WebhookHandler) Inbound(c echo.Context) error {
	if h.secret == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "webhook secret not configured")
	}
	provided := c.Request().Header.Get("X-Webhook-Secret")
	if !hmac.Equal([]byte(provided), []byte(h.secret)) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook secret")
	}
	var req inboundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.processor.HandleInbound(c.Request().Context(), router.InboundMessage{
		ContactID:      req.ContactID,
		OrganizationID: req.OrganizationID,
		From:           req.From,
		Text:           req.Text,
		Intent:         req.Intent,
		Sentiment:      req.Sentiment,
		LeadScore:      req.LeadScore,
		Timeline:       req.Timeline,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
