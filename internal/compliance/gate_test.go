package compliance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]ConsentRecord
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]ConsentRecord{}}
}

func (f *fakeStore) key(contactID, organizationID string) string {
	return contactID + "/" + organizationID
}

func (f *fakeStore) Get(ctx context.Context, contactID, organizationID string) (ConsentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return ConsentRecord{}, f.getErr
	}
	record, ok := f.records[f.key(contactID, organizationID)]
	if !ok {
		return ConsentRecord{}, ErrNoConsentRecord
	}
	return record, nil
}

func (f *fakeStore) Upsert(ctx context.Context, record ConsentRecord) (ConsentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record.UpdatedAt = time.Now().UTC()
	f.records[f.key(record.ContactID, record.OrganizationID)] = record
	return record, nil
}

func gateAt(t *testing.T, store Store, now time.Time) *Gate {
	t.Helper()
	return NewGate(nil, store, Config{Now: func() time.Time { return now }})
}

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestEvaluateWindowBoundaries(t *testing.T) {
	t.Parallel()

	zones := []string{"America/Denver", "America/New_York", "Europe/Berlin", "Asia/Tokyo", "UTC"}
	cases := []struct {
		hour, minute int
		blocked      bool
	}{
		{7, 59, true},
		{8, 0, false},
		{19, 59, false},
		{20, 0, true},
		{0, 0, true},
		{12, 30, false},
		{23, 59, true},
	}
	for _, zone := range zones {
		loc := mustLoc(t, zone)
		for _, tc := range cases {
			name := fmt.Sprintf("%s_%02d:%02d", zone, tc.hour, tc.minute)
			t.Run(name, func(t *testing.T) {
				now := time.Date(2026, 3, 10, tc.hour, tc.minute, 0, 0, loc)
				gate := gateAt(t, newFakeStore(), now)

				result, err := gate.Evaluate(context.Background(), "c-1", "org-1", "+13035550100", zone)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if tc.blocked {
					if result.Status != StatusBlockedHours {
						t.Fatalf("expected blocked_outside_hours, got %s", result.Status)
					}
					if result.NextAllowedTime == nil {
						t.Fatal("expected next allowed time")
					}
					next := result.NextAllowedTime.In(loc)
					if !next.After(now) {
						t.Fatalf("next allowed time %v is not after %v", next, now)
					}
					if next.Hour() != 8 || next.Minute() != 0 {
						t.Fatalf("next allowed time is not an 08:00 boundary: %v", next)
					}
				} else if result.Status == StatusBlockedHours {
					t.Fatalf("unexpected window block at %v", now)
				}
			})
		}
	}
}

func TestEvaluateOptedOutIsTerminal(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	loc := mustLoc(t, "America/Denver")
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	store.records["c-1/org-1"] = ConsentRecord{
		ContactID:      "c-1",
		OrganizationID: "org-1",
		OptedOut:       true,
		OptedOutAt:     now.AddDate(0, 0, -1),
		OptOutReason:   "STOP keyword",
	}
	gate := gateAt(t, store, now)

	result, err := gate.Evaluate(context.Background(), "c-1", "org-1", "+13035550100", "America/Denver")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != StatusBlockedOptedOut {
		t.Fatalf("expected blocked_opted_out, got %s", result.Status)
	}
	if result.CanSend {
		t.Fatal("opted-out contact must not be sendable")
	}
	if !strings.Contains(result.Reason, "STOP keyword") {
		t.Fatalf("reason must carry the stored opt-out reason, got %q", result.Reason)
	}
	if result.NextAllowedTime != nil {
		t.Fatalf("opt-out is terminal, got next allowed time %v", result.NextAllowedTime)
	}
}

func TestEvaluateDNC(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	loc := mustLoc(t, "America/Denver")
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	store.records["c-1/org-1"] = ConsentRecord{
		ContactID:      "c-1",
		OrganizationID: "org-1",
		ConsentGiven:   true,
		IsOnDNC:        true,
	}
	gate := gateAt(t, store, now)

	result, err := gate.Evaluate(context.Background(), "c-1", "org-1", "+13035550100", "America/Denver")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != StatusBlockedDNC {
		t.Fatalf("expected blocked_dnc, got %s", result.Status)
	}
	if result.NextAllowedTime != nil {
		t.Fatal("DNC is terminal, no next allowed time expected")
	}
}

func TestEvaluateRateLimitBoundary(t *testing.T) {
	t.Parallel()

	loc := mustLoc(t, "America/Denver")
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)

	for _, tc := range []struct {
		sent    int
		blocked bool
	}{
		{29, false},
		{30, true},
		{31, true},
	} {
		t.Run(fmt.Sprintf("sent_%d", tc.sent), func(t *testing.T) {
			store := newFakeStore()
			store.records["c-1/org-1"] = ConsentRecord{
				ContactID:         "c-1",
				OrganizationID:    "org-1",
				ConsentGiven:      true,
				MessagesSentToday: tc.sent,
				LastMessageDate:   now.Add(-time.Hour),
			}
			gate := gateAt(t, store, now)

			result, err := gate.Evaluate(context.Background(), "c-1", "org-1", "+13035550100", "America/Denver")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tc.blocked {
				if result.Status != StatusBlockedRate {
					t.Fatalf("expected blocked_rate_limit, got %s", result.Status)
				}
				if result.NextAllowedTime == nil {
					t.Fatal("expected next allowed time")
				}
				next := result.NextAllowedTime.In(loc)
				if next.Hour() != 8 || next.Day() != now.Day()+1 {
					t.Fatalf("expected 08:00 the next local day, got %v", next)
				}
			} else if result.Status != StatusCompliant {
				t.Fatalf("expected compliant, got %s (%s)", result.Status, result.Reason)
			}
		})
	}
}

func TestEvaluateRateCounterResetsOnNewLocalDay(t *testing.T) {
	t.Parallel()

	loc := mustLoc(t, "America/Denver")
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	store := newFakeStore()
	store.records["c-1/org-1"] = ConsentRecord{
		ContactID:         "c-1",
		OrganizationID:    "org-1",
		ConsentGiven:      true,
		MessagesSentToday: 30,
		LastMessageDate:   now.AddDate(0, 0, -1),
	}
	gate := gateAt(t, store, now)

	result, err := gate.Evaluate(context.Background(), "c-1", "org-1", "+13035550100", "America/Denver")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != StatusCompliant {
		t.Fatalf("stale counter must reset lazily, got %s", result.Status)
	}
}

func TestEvaluateMissingConsentWarnsOnly(t *testing.T) {
	t.Parallel()

	loc := mustLoc(t, "America/Denver")
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	gate := gateAt(t, newFakeStore(), now)

	result, err := gate.Evaluate(context.Background(), "c-1", "org-1", "+13035550100", "America/Denver")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != StatusCompliant || !result.CanSend {
		t.Fatalf("missing consent record must not block, got %s", result.Status)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected an implied-consent warning")
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	t.Parallel()

	loc := mustLoc(t, "America/Denver")
	now := time.Date(2026, 3, 10, 6, 30, 0, 0, loc)
	store := newFakeStore()
	store.records["c-1/org-1"] = ConsentRecord{
		ContactID:      "c-1",
		OrganizationID: "org-1",
		ConsentGiven:   true,
	}
	gate := gateAt(t, store, now)

	first, err := gate.Evaluate(context.Background(), "c-1", "org-1", "+13035550100", "America/Denver")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := gate.Evaluate(context.Background(), "c-1", "org-1", "+13035550100", "America/Denver")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first.Status != second.Status || first.Reason != second.Reason {
		t.Fatalf("evaluate is not idempotent: %+v vs %+v", first, second)
	}
	if first.NextAllowedTime == nil || second.NextAllowedTime == nil || !first.NextAllowedTime.Equal(*second.NextAllowedTime) {
		t.Fatalf("next allowed time differs: %v vs %v", first.NextAllowedTime, second.NextAllowedTime)
	}
}

func TestEvaluateUnknownTimezoneFallsBack(t *testing.T) {
	t.Parallel()

	loc := mustLoc(t, "America/Denver")
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	gate := gateAt(t, newFakeStore(), now)

	result, err := gate.Evaluate(context.Background(), "c-1", "org-1", "+13035550100", "Not/AZone")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != StatusCompliant {
		t.Fatalf("default-timezone evaluation should be inside window, got %s", result.Status)
	}
}

func TestEvaluateFullStageFailsClosed(t *testing.T) {
	t.Parallel()

	loc := mustLoc(t, "America/Denver")
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	store := newFakeStore()
	// Opted out AND a blocked stage: stage must win, SMS checks skipped.
	store.records["c-1/org-1"] = ConsentRecord{
		ContactID:      "c-1",
		OrganizationID: "org-1",
		OptedOut:       true,
	}
	gate := gateAt(t, store, now)

	result, err := gate.EvaluateFull(context.Background(), FullRequest{
		ContactID:      "c-1",
		OrganizationID: "org-1",
		PhoneNumber:    "+13035550100",
		Timezone:       "America/Denver",
		Stage:          "Closed - Sold",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != StatusBlockedStage {
		t.Fatalf("expected blocked_stage, got %s", result.Status)
	}
}

func TestEvaluateFullMergesHandoffWarning(t *testing.T) {
	t.Parallel()

	loc := mustLoc(t, "America/Denver")
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	gate := gateAt(t, newFakeStore(), now)

	result, err := gate.EvaluateFull(context.Background(), FullRequest{
		ContactID:      "c-1",
		OrganizationID: "org-1",
		PhoneNumber:    "+13035550100",
		Timezone:       "America/Denver",
		Stage:          "Showing Scheduled",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.CanSend {
		t.Fatalf("handoff stage must stay sendable, got %s", result.Status)
	}
	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "handoff") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a handoff warning, got %v", result.Warnings)
	}
}
