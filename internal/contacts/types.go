package contacts

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrContactNotFound is returned when no contact row matches.
var ErrContactNotFound = errors.New("contact not found")

// Contact is a flat CRM row for a person under outreach management. The
// engine reads these through Reader; the CRM of record owns the rest of the
// lifecycle.
type Contact struct {
	ID               string
	OrganizationID   string
	DisplayName      string
	Phone            string
	Email            string
	Timezone         string
	Stage            string
	Source           string
	LeadScore        int
	Tags             []string
	Metadata         map[string]interface{}
	FirstContactedAt time.Time
	LastActivityAt   time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Reachable reports whether the contact has any usable outreach address.
func (c Contact) Reachable() bool {
	return strings.TrimSpace(c.Phone) != "" || strings.TrimSpace(c.Email) != ""
}

// HasPhone reports whether an SMS-capable number is on file.
func (c Contact) HasPhone() bool {
	return strings.TrimSpace(c.Phone) != ""
}

// Reader is the CRM read collaborator consumed by the scanner.
type Reader interface {
	GetByID(ctx context.Context, contactID string) (Contact, error)
	// QueryNew returns contacts created at or after since that have never
	// had an AI-originated first contact.
	QueryNew(ctx context.Context, organizationID string, since time.Time, limit int) ([]Contact, error)
	// QueryDormant returns contacts whose last activity predates before,
	// excluding terminal stages.
	QueryDormant(ctx context.Context, organizationID string, before time.Time, limit int) ([]Contact, error)
}

// Writer covers the single contact mutation the executor performs.
type Writer interface {
	MarkFirstContacted(ctx context.Context, contactID string, at time.Time) error
}
