package sequence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed Scheduler.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) SchedulePending(ctx context.Context, req ScheduleRequest) (FollowUp, error) {
	if s.pool == nil {
		return FollowUp{}, fmt.Errorf("sequence pool not configured")
	}
	if req.ContactID == "" || req.Trigger == "" {
		return FollowUp{}, fmt.Errorf("contact id and trigger are required")
	}
	contextPayload, err := json.Marshal(req.Context)
	if err != nil {
		return FollowUp{}, err
	}
	dueAt := time.Now().UTC().Add(time.Duration(req.DelayHours) * time.Hour)
	row := s.pool.QueryRow(ctx, `
		INSERT INTO scheduled_followups (id, contact_id, organization_id, trigger, channel, due_at, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING id, contact_id, organization_id, trigger, channel, due_at, sent_at, context, created_at`,
		uuid.NewString(), req.ContactID, req.OrganizationID, req.Trigger, req.Channel, dueAt, contextPayload)
	return scanFollowUp(row)
}

func (s *PGStore) GetDue(ctx context.Context, organizationID string, before time.Time) ([]FollowUp, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("sequence pool not configured")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, contact_id, organization_id, trigger, channel, due_at, sent_at, context, created_at
		FROM scheduled_followups
		WHERE organization_id = $1 AND sent_at IS NULL AND due_at <= $2
		ORDER BY due_at ASC`,
		organizationID, before.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]FollowUp, 0)
	for rows.Next() {
		item, err := scanFollowUp(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PGStore) HasPending(ctx context.Context, contactID string) (bool, error) {
	if s.pool == nil {
		return false, fmt.Errorf("sequence pool not configured")
	}
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM scheduled_followups
			WHERE contact_id = $1 AND sent_at IS NULL
		)`, contactID).Scan(&exists)
	return exists, err
}

func (s *PGStore) MarkSent(ctx context.Context, followUpID string) error {
	if s.pool == nil {
		return fmt.Errorf("sequence pool not configured")
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE scheduled_followups SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`,
		followUpID)
	return err
}

func scanFollowUp(row pgx.Row) (FollowUp, error) {
	var (
		item           FollowUp
		dueAt          pgtype.Timestamptz
		sentAt         pgtype.Timestamptz
		contextPayload []byte
		createdAt      pgtype.Timestamptz
	)
	err := row.Scan(&item.ID, &item.ContactID, &item.OrganizationID, &item.Trigger,
		&item.Channel, &dueAt, &sentAt, &contextPayload, &createdAt)
	if err != nil {
		return FollowUp{}, err
	}
	if len(contextPayload) > 0 {
		if err := json.Unmarshal(contextPayload, &item.Context); err != nil {
			return FollowUp{}, fmt.Errorf("decode followup context: %w", err)
		}
	}
	if dueAt.Valid {
		item.DueAt = dueAt.Time
	}
	if sentAt.Valid {
		item.SentAt = sentAt.Time
	}
	if createdAt.Valid {
		item.CreatedAt = createdAt.Time
	}
	return item, nil
}
