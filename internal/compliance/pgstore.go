package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists consent records in Postgres, one row per
// (contact, organization).
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, contactID, organizationID string) (ConsentRecord, error) {
	if s.pool == nil {
		return ConsentRecord{}, fmt.Errorf("consent pool not configured")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT contact_id, organization_id, consent_given, consent_source, consent_timestamp,
		       opted_out, opted_out_at, opt_out_reason, is_on_dnc,
		       messages_sent_today, last_message_date, created_at, updated_at
		FROM consent_records
		WHERE contact_id = $1 AND organization_id = $2`,
		contactID, organizationID)
	record, err := scanConsentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConsentRecord{}, ErrNoConsentRecord
		}
		return ConsentRecord{}, err
	}
	return record, nil
}

func (s *PGStore) Upsert(ctx context.Context, record ConsentRecord) (ConsentRecord, error) {
	if s.pool == nil {
		return ConsentRecord{}, fmt.Errorf("consent pool not configured")
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO consent_records (
			contact_id, organization_id, consent_given, consent_source, consent_timestamp,
			opted_out, opted_out_at, opt_out_reason, is_on_dnc,
			messages_sent_today, last_message_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		ON CONFLICT (contact_id, organization_id) DO UPDATE SET
			consent_given = EXCLUDED.consent_given,
			consent_source = EXCLUDED.consent_source,
			consent_timestamp = EXCLUDED.consent_timestamp,
			opted_out = EXCLUDED.opted_out,
			opted_out_at = EXCLUDED.opted_out_at,
			opt_out_reason = EXCLUDED.opt_out_reason,
			is_on_dnc = EXCLUDED.is_on_dnc,
			messages_sent_today = EXCLUDED.messages_sent_today,
			last_message_date = EXCLUDED.last_message_date,
			updated_at = now()
		RETURNING contact_id, organization_id, consent_given, consent_source, consent_timestamp,
		          opted_out, opted_out_at, opt_out_reason, is_on_dnc,
		          messages_sent_today, last_message_date, created_at, updated_at`,
		record.ContactID, record.OrganizationID, record.ConsentGiven, record.ConsentSource,
		toPgTime(record.ConsentTimestamp), record.OptedOut, toPgTime(record.OptedOutAt),
		record.OptOutReason, record.IsOnDNC, record.MessagesSentToday, toPgTime(record.LastMessageDate))
	return scanConsentRow(row)
}

func scanConsentRow(row pgx.Row) (ConsentRecord, error) {
	var (
		record           ConsentRecord
		consentTimestamp pgtype.Timestamptz
		optedOutAt       pgtype.Timestamptz
		lastMessageDate  pgtype.Timestamptz
		createdAt        pgtype.Timestamptz
		updatedAt        pgtype.Timestamptz
	)
	err := row.Scan(
		&record.ContactID, &record.OrganizationID, &record.ConsentGiven, &record.ConsentSource,
		&consentTimestamp, &record.OptedOut, &optedOutAt, &record.OptOutReason, &record.IsOnDNC,
		&record.MessagesSentToday, &lastMessageDate, &createdAt, &updatedAt)
	if err != nil {
		return ConsentRecord{}, err
	}
	record.ConsentTimestamp = timeFromPg(consentTimestamp)
	record.OptedOutAt = timeFromPg(optedOutAt)
	record.LastMessageDate = timeFromPg(lastMessageDate)
	record.CreatedAt = timeFromPg(createdAt)
	record.UpdatedAt = timeFromPg(updatedAt)
	return record, nil
}

func toPgTime(value time.Time) pgtype.Timestamptz {
	if value.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: value.UTC(), Valid: true}
}

func timeFromPg(value pgtype.Timestamptz) time.Time {
	if value.Valid {
		return value.Time
	}
	return time.Time{}
}
