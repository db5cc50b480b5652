package scanner

import (
	"strings"
	"time"
)

// ActionType names the concrete side effect a recommendation asks for.
type ActionType string

const (
	ActionFirstContactSMS   ActionType = "first_contact_sms"
	ActionFirstContactEmail ActionType = "first_contact_email"
	ActionFollowUpSMS       ActionType = "followup_sms"
	ActionFollowUpDue       ActionType = "followup_due"
	ActionReengagementSMS   ActionType = "reengagement_sms"
	ActionReengagementEmail ActionType = "reengagement_email"
	ActionEscalateHandoff   ActionType = "escalate_stale_handoff"
)

// FollowUpClass reports whether the action belongs to the followup_* class
// gated by the executor's circuit breaker.
func (t ActionType) FollowUpClass() bool {
	return strings.HasPrefix(string(t), "followup_")
}

// SMSClass reports whether executing the action sends over SMS and so needs
// the time-window re-check.
func (t ActionType) SMSClass() bool {
	switch t {
	case ActionFirstContactSMS, ActionFollowUpSMS, ActionFollowUpDue, ActionReengagementSMS:
		return true
	default:
		return false
	}
}

// RecommendedAction is one ranked recommendation. Immutable once emitted by
// a scan; consumed exactly once by the executor or serialized to a caller.
type RecommendedAction struct {
	ContactID      string                 `json:"contact_id"`
	OrganizationID string                 `json:"organization_id"`
	Type           ActionType             `json:"action_type"`
	PriorityScore  int                    `json:"priority_score"`
	Reason         string                 `json:"reason"`
	ExecuteAt      *time.Time             `json:"execute_at,omitempty"`
	FollowUpID     string                 `json:"followup_id,omitempty"`
	MessageContext map[string]interface{} `json:"message_context,omitempty"`
}

// ScanResult is one sub-scan's contribution. A failed sub-scan contributes
// no items but its error is surfaced rather than swallowed.
type ScanResult struct {
	Source string
	Items  []RecommendedAction
	Err    error
}
