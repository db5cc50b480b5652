package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Service owns the consent write paths. Evaluation never mutates; every
// change to a ConsentRecord flows through one of these operations.
type Service struct {
	store           Store
	defaultTimezone string
	logger          *slog.Logger
	now             func() time.Time
}

func NewService(log *slog.Logger, store Store, defaultTimezone string) *Service {
	if log == nil {
		log = slog.Default()
	}
	if defaultTimezone == "" {
		defaultTimezone = "America/Denver"
	}
	return &Service{
		store:           store,
		defaultTimezone: defaultTimezone,
		logger:          log.With(slog.String("component", "consent")),
		now:             time.Now,
	}
}

// RecordConsent marks explicit consent for a contact, clearing any previous
// opt-out.
func (s *Service) RecordConsent(ctx context.Context, contactID, organizationID, source string) (ConsentRecord, error) {
	if s.store == nil {
		return ConsentRecord{}, fmt.Errorf("consent store not configured")
	}
	record, err := s.load(ctx, contactID, organizationID)
	if err != nil {
		return ConsentRecord{}, err
	}
	record.ConsentGiven = true
	record.ConsentSource = strings.TrimSpace(source)
	record.ConsentTimestamp = s.now().UTC()
	record.OptedOut = false
	record.OptedOutAt = time.Time{}
	record.OptOutReason = ""
	return s.store.Upsert(ctx, record)
}

// RecordOptOut marks a contact as opted out. The reason is stored as given
// and echoed back by the gate on every subsequent evaluation.
func (s *Service) RecordOptOut(ctx context.Context, contactID, organizationID, reason string) (ConsentRecord, error) {
	if s.store == nil {
		return ConsentRecord{}, fmt.Errorf("consent store not configured")
	}
	record, err := s.load(ctx, contactID, organizationID)
	if err != nil {
		return ConsentRecord{}, err
	}
	record.OptedOut = true
	record.OptedOutAt = s.now().UTC()
	record.OptOutReason = strings.TrimSpace(reason)
	s.logger.Info("opt-out recorded",
		slog.String("contact_id", contactID),
		slog.String("organization_id", organizationID),
		slog.String("reason", record.OptOutReason))
	return s.store.Upsert(ctx, record)
}

// ClearOptOut removes an opt-out, e.g. after an explicit re-subscribe.
func (s *Service) ClearOptOut(ctx context.Context, contactID, organizationID string) (ConsentRecord, error) {
	if s.store == nil {
		return ConsentRecord{}, fmt.Errorf("consent store not configured")
	}
	record, err := s.load(ctx, contactID, organizationID)
	if err != nil {
		return ConsentRecord{}, err
	}
	record.OptedOut = false
	record.OptedOutAt = time.Time{}
	record.OptOutReason = ""
	return s.store.Upsert(ctx, record)
}

// IncrementMessageCount bumps the rolling-day counter after a successful
// send. The daily reset happens exactly when the stored LastMessageDate falls
// on a different local day than now, using the contact's timezone (or the
// org default) as the single day-boundary reference for both the reset and
// the comparison.
func (s *Service) IncrementMessageCount(ctx context.Context, contactID, organizationID, timezone string) (ConsentRecord, error) {
	if s.store == nil {
		return ConsentRecord{}, fmt.Errorf("consent store not configured")
	}
	record, err := s.load(ctx, contactID, organizationID)
	if err != nil {
		return ConsentRecord{}, err
	}
	loc := s.location(timezone)
	localNow := s.now().In(loc)
	if !sameLocalDay(record.LastMessageDate, localNow) {
		record.MessagesSentToday = 0
	}
	record.MessagesSentToday++
	record.LastMessageDate = localNow.UTC()
	return s.store.Upsert(ctx, record)
}

func (s *Service) load(ctx context.Context, contactID, organizationID string) (ConsentRecord, error) {
	contactID = strings.TrimSpace(contactID)
	organizationID = strings.TrimSpace(organizationID)
	if contactID == "" || organizationID == "" {
		return ConsentRecord{}, fmt.Errorf("contact id and organization id are required")
	}
	record, err := s.store.Get(ctx, contactID, organizationID)
	if err != nil {
		if errors.Is(err, ErrNoConsentRecord) {
			return ConsentRecord{
				ContactID:      contactID,
				OrganizationID: organizationID,
			}, nil
		}
		return ConsentRecord{}, fmt.Errorf("load consent record: %w", err)
	}
	return record, nil
}

func (s *Service) location(timezone string) *time.Location {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(s.defaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}
