package compliance

import (
	"errors"
	"time"
)

// Status is the outcome class of a compliance evaluation. Blocked statuses
// are first-class results, not errors; callers branch on them.
type Status string

const (
	StatusCompliant       Status = "compliant"
	StatusBlockedOptedOut Status = "blocked_opted_out"
	StatusBlockedDNC      Status = "blocked_dnc"
	StatusBlockedHours    Status = "blocked_outside_hours"
	StatusBlockedRate     Status = "blocked_rate_limit"
	StatusBlockedStage    Status = "blocked_stage"
)

// ErrNoConsentRecord is returned by a Store when no row exists for the
// (contact, organization) pair. Absence of a record never blocks a send; the
// gate treats it as implied consent with a warning.
var ErrNoConsentRecord = errors.New("consent record not found")

// ConsentRecord is the stored opt-in/opt-out/DNC/rate-tracking state for one
// contact within one organization. MessagesSentToday is reset lazily at read
// time whenever LastMessageDate falls on a different local day.
type ConsentRecord struct {
	ContactID         string    `json:"contact_id"`
	OrganizationID    string    `json:"organization_id"`
	ConsentGiven      bool      `json:"consent_given"`
	ConsentSource     string    `json:"consent_source,omitempty"`
	ConsentTimestamp  time.Time `json:"consent_timestamp,omitempty"`
	OptedOut          bool      `json:"opted_out"`
	OptedOutAt        time.Time `json:"opted_out_at,omitempty"`
	OptOutReason      string    `json:"opt_out_reason,omitempty"`
	IsOnDNC           bool      `json:"is_on_dnc"`
	MessagesSentToday int       `json:"messages_sent_today"`
	LastMessageDate   time.Time `json:"last_message_date,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Result is a transient evaluation value. Created fresh per call, never
// persisted. NextAllowedTime is set only for window and rate-limit blocks.
type Result struct {
	Status          Status     `json:"status"`
	CanSend         bool       `json:"can_send"`
	Reason          string     `json:"reason"`
	NextAllowedTime *time.Time `json:"next_allowed_time,omitempty"`
	Warnings        []string   `json:"warnings,omitempty"`
}

// Blocked reports whether the result denies the send.
func (r Result) Blocked() bool {
	return !r.CanSend
}
