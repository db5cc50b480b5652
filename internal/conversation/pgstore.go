package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const conversationColumns = `
	id, contact_id, organization_id, state, active, lead_score,
	last_ai_message_at, last_human_message_at, last_inbound_at,
	qualification_data, objections_raised, created_at, updated_at`

// PGStore persists conversation records and their objection history.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetByContact(ctx context.Context, contactID string) (Conversation, error) {
	if s.pool == nil {
		return Conversation{}, fmt.Errorf("conversation pool not configured")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT`+conversationColumns+`
		FROM conversations
		WHERE contact_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`, contactID)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrConversationNotFound
		}
		return Conversation{}, err
	}
	return conv, nil
}

func (s *PGStore) QueryConversations(ctx context.Context, filter Filter) ([]Conversation, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("conversation pool not configured")
	}
	clauses := []string{"1=1"}
	args := []interface{}{}
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.OrganizationID != "" {
		clauses = append(clauses, "organization_id = "+arg(filter.OrganizationID))
	}
	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, state := range filter.States {
			states = append(states, string(state))
		}
		clauses = append(clauses, "state = ANY("+arg(states)+")")
	}
	if filter.Active != nil {
		clauses = append(clauses, "active = "+arg(*filter.Active))
	}
	if !filter.LastAiMessageBefore.IsZero() {
		clauses = append(clauses, "last_ai_message_at IS NOT NULL AND last_ai_message_at < "+arg(filter.LastAiMessageBefore.UTC()))
	}
	if !filter.UpdatedBefore.IsZero() {
		clauses = append(clauses, "updated_at < "+arg(filter.UpdatedBefore.UTC()))
	}
	query := `SELECT` + conversationColumns + ` FROM conversations WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY updated_at ASC`
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectConversations(rows)
}

func (s *PGStore) QueryHandoffs(ctx context.Context, organizationID string, before time.Time) ([]Conversation, error) {
	return s.QueryConversations(ctx, Filter{
		OrganizationID: organizationID,
		States:         []State{StateHandedOff},
		UpdatedBefore:  before,
	})
}

func (s *PGStore) ObjectionHistory(ctx context.Context, contactID string) ([]string, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("conversation pool not configured")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT category
		FROM objection_events
		WHERE contact_id = $1
		ORDER BY created_at ASC`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (s *PGStore) AppendObjection(ctx context.Context, contactID, category string) error {
	if s.pool == nil {
		return fmt.Errorf("conversation pool not configured")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO objection_events (id, contact_id, category, created_at)
		VALUES ($1, $2, $3, now())`,
		uuid.NewString(), contactID, category)
	return err
}

func collectConversations(rows pgx.Rows) ([]Conversation, error) {
	items := make([]Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, conv)
	}
	return items, rows.Err()
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		conv              Conversation
		state             string
		lastAiMessageAt   pgtype.Timestamptz
		lastHumanAt       pgtype.Timestamptz
		lastInboundAt     pgtype.Timestamptz
		qualificationData []byte
		createdAt         pgtype.Timestamptz
		updatedAt         pgtype.Timestamptz
	)
	err := row.Scan(
		&conv.ID, &conv.ContactID, &conv.OrganizationID, &state, &conv.Active,
		&conv.LeadScore, &lastAiMessageAt, &lastHumanAt, &lastInboundAt,
		&qualificationData, &conv.ObjectionsRaised, &createdAt, &updatedAt)
	if err != nil {
		return Conversation{}, err
	}
	conv.State = State(state)
	if len(qualificationData) > 0 {
		if err := json.Unmarshal(qualificationData, &conv.QualificationData); err != nil {
			return Conversation{}, fmt.Errorf("decode qualification data: %w", err)
		}
	}
	conv.LastAiMessageAt = timeFromPg(lastAiMessageAt)
	conv.LastHumanMessageAt = timeFromPg(lastHumanAt)
	conv.LastInboundAt = timeFromPg(lastInboundAt)
	conv.CreatedAt = timeFromPg(createdAt)
	conv.UpdatedAt = timeFromPg(updatedAt)
	return conv, nil
}

func timeFromPg(value pgtype.Timestamptz) time.Time {
	if value.Valid {
		return value.Time
	}
	return time.Time{}
}
