package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrConversationNotFound is returned when no conversation row matches.
var ErrConversationNotFound = errors.New("conversation not found")

// State is the finite-state position of a conversation. The decision engine
// reads state to pick tone and triggers; transitions are applied by the
// conversation subsystem, never here.
type State string

const (
	StateInitial           State = "initial"
	StateQualifying        State = "qualifying"
	StateObjectionHandling State = "objection_handling"
	StateScheduling        State = "scheduling"
	StateNurture           State = "nurture"
	StateHandedOff         State = "handed_off"
	StateCompleted         State = "completed"
	StateEngaged           State = "engaged"
)

// Conversation is one (contact, organization) conversation record.
type Conversation struct {
	ID                 string
	ContactID          string
	OrganizationID     string
	State              State
	Active             bool
	LeadScore          int
	LastAiMessageAt    time.Time
	LastHumanMessageAt time.Time
	LastInboundAt      time.Time
	QualificationData  map[string]interface{}
	ObjectionsRaised   []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Filter narrows QueryConversations. Zero values are ignored.
type Filter struct {
	OrganizationID      string
	States              []State
	Active              *bool
	LastAiMessageBefore time.Time
	UpdatedBefore       time.Time
	Limit               int
}

// Store is the conversation read collaborator. The persisted objection
// history here is the system of record that the in-process objection ledger
// rehydrates from after a restart.
type Store interface {
	GetByContact(ctx context.Context, contactID string) (Conversation, error)
	QueryConversations(ctx context.Context, filter Filter) ([]Conversation, error)
	// QueryHandoffs returns handed_off conversations whose last update
	// predates before.
	QueryHandoffs(ctx context.Context, organizationID string, before time.Time) ([]Conversation, error)
	// ObjectionHistory returns the ordered objection categories raised by a
	// contact, oldest first.
	ObjectionHistory(ctx context.Context, contactID string) ([]string, error)
	// AppendObjection persists one observed objection category.
	AppendObjection(ctx context.Context, contactID, category string) error
}
