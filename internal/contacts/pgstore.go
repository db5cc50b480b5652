package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const contactColumns = `
	id, organization_id, display_name, phone, email, timezone, stage, source,
	lead_score, tags, metadata, first_contacted_at, last_activity_at,
	created_at, updated_at`

// PGStore reads and updates contact rows in Postgres. It implements Reader
// and Writer plus the org listing used by the scheduler loop.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetByID(ctx context.Context, contactID string) (Contact, error) {
	if s.pool == nil {
		return Contact{}, fmt.Errorf("contacts pool not configured")
	}
	row := s.pool.QueryRow(ctx, `SELECT`+contactColumns+` FROM contacts WHERE id = $1`, contactID)
	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, ErrContactNotFound
		}
		return Contact{}, err
	}
	return contact, nil
}

func (s *PGStore) QueryNew(ctx context.Context, organizationID string, since time.Time, limit int) ([]Contact, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("contacts pool not configured")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT`+contactColumns+`
		FROM contacts
		WHERE organization_id = $1
		  AND created_at >= $2
		  AND first_contacted_at IS NULL
		  AND (COALESCE(phone, '') <> '' OR COALESCE(email, '') <> '')
		ORDER BY created_at DESC
		LIMIT $3`,
		organizationID, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContacts(rows)
}

func (s *PGStore) QueryDormant(ctx context.Context, organizationID string, before time.Time, limit int) ([]Contact, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("contacts pool not configured")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT`+contactColumns+`
		FROM contacts
		WHERE organization_id = $1
		  AND last_activity_at IS NOT NULL
		  AND last_activity_at < $2
		  AND lower(stage) NOT LIKE '%closed%'
		  AND lower(stage) NOT LIKE '%lost%'
		  AND lower(stage) NOT LIKE '%trash%'
		ORDER BY last_activity_at ASC
		LIMIT $3`,
		organizationID, before.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContacts(rows)
}

func (s *PGStore) MarkFirstContacted(ctx context.Context, contactID string, at time.Time) error {
	if s.pool == nil {
		return fmt.Errorf("contacts pool not configured")
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE contacts
		SET first_contacted_at = $2, updated_at = now()
		WHERE id = $1 AND first_contacted_at IS NULL`,
		contactID, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Already marked or missing; first-contact marking is idempotent.
		return nil
	}
	return nil
}

// ListOrganizationIDs returns the distinct organizations with contacts on
// file. The scheduler fans scan runs out over this list.
func (s *PGStore) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("contacts pool not configured")
	}
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT organization_id FROM contacts ORDER BY organization_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectContacts(rows pgx.Rows) ([]Contact, error) {
	items := make([]Contact, 0)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, contact)
	}
	return items, rows.Err()
}

func scanContact(row pgx.Row) (Contact, error) {
	var (
		contact          Contact
		phone            pgtype.Text
		email            pgtype.Text
		timezone         pgtype.Text
		metadataPayload  []byte
		firstContactedAt pgtype.Timestamptz
		lastActivityAt   pgtype.Timestamptz
		createdAt        pgtype.Timestamptz
		updatedAt        pgtype.Timestamptz
	)
	err := row.Scan(
		&contact.ID, &contact.OrganizationID, &contact.DisplayName, &phone, &email,
		&timezone, &contact.Stage, &contact.Source, &contact.LeadScore, &contact.Tags,
		&metadataPayload, &firstContactedAt, &lastActivityAt, &createdAt, &updatedAt)
	if err != nil {
		return Contact{}, err
	}
	contact.Phone = phone.String
	contact.Email = email.String
	contact.Timezone = timezone.String
	if len(metadataPayload) > 0 {
		if err := json.Unmarshal(metadataPayload, &contact.Metadata); err != nil {
			return Contact{}, fmt.Errorf("decode contact metadata: %w", err)
		}
	}
	contact.FirstContactedAt = timeFromPg(firstContactedAt)
	contact.LastActivityAt = timeFromPg(lastActivityAt)
	contact.CreatedAt = timeFromPg(createdAt)
	contact.UpdatedAt = timeFromPg(updatedAt)
	return contact, nil
}

func timeFromPg(value pgtype.Timestamptz) time.Time {
	if value.Valid {
		return value.Time
	}
	return time.Time{}
}
