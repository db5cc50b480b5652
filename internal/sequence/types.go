package sequence

import (
	"context"
	"time"
)

// FollowUp is one persisted scheduled touch. The sequence engine owns the
// cadence content; the decision core only decides that one should start or
// that a due one should fire.
type FollowUp struct {
	ID             string
	ContactID      string
	OrganizationID string
	Trigger        string
	Channel        string
	DueAt          time.Time
	SentAt         time.Time
	Context        map[string]interface{}
	CreatedAt      time.Time
}

// Pending reports whether the follow-up is still waiting to fire.
func (f FollowUp) Pending() bool {
	return f.SentAt.IsZero()
}

// ScheduleRequest asks the sequence engine to queue a follow-up.
type ScheduleRequest struct {
	ContactID      string
	OrganizationID string
	Trigger        string
	Channel        string
	DelayHours     int
	Context        map[string]interface{}
}

// Scheduler is the sequencing collaborator contract.
type Scheduler interface {
	SchedulePending(ctx context.Context, req ScheduleRequest) (FollowUp, error)
	// GetDue returns unsent follow-ups whose due time is at or before the
	// given instant.
	GetDue(ctx context.Context, organizationID string, before time.Time) ([]FollowUp, error)
	// HasPending reports whether the contact already has an unsent
	// follow-up queued. The silent-lead scan uses this as its
	// de-duplication guard.
	HasPending(ctx context.Context, contactID string) (bool, error)
	MarkSent(ctx context.Context, followUpID string) error
}
