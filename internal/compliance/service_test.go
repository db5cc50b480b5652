package compliance

import (
	"context"
	"testing"
	"time"
)

func serviceAt(store Store, now time.Time) *Service {
	svc := NewService(nil, store, "America/Denver")
	svc.now = func() time.Time { return now }
	return svc
}

func TestRecordOptOutAndClear(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)
	svc := serviceAt(store, now)

	record, err := svc.RecordOptOut(context.Background(), "c-1", "org-1", "STOP keyword")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !record.OptedOut || record.OptOutReason != "STOP keyword" {
		t.Fatalf("unexpected record after opt-out: %+v", record)
	}
	if record.OptedOutAt.IsZero() {
		t.Fatal("opted_out_at must be set")
	}

	record, err = svc.ClearOptOut(context.Background(), "c-1", "org-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record.OptedOut || record.OptOutReason != "" || !record.OptedOutAt.IsZero() {
		t.Fatalf("opt-out not cleared: %+v", record)
	}
}

func TestRecordConsentClearsOptOut(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)
	svc := serviceAt(store, now)

	if _, err := svc.RecordOptOut(context.Background(), "c-1", "org-1", "STOP keyword"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	record, err := svc.RecordConsent(context.Background(), "c-1", "org-1", "web form")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !record.ConsentGiven || record.OptedOut {
		t.Fatalf("consent must clear opt-out: %+v", record)
	}
	if record.ConsentSource != "web form" {
		t.Fatalf("unexpected consent source: %q", record.ConsentSource)
	}
}

func TestIncrementMessageCountSameDay(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	loc, _ := time.LoadLocation("America/Denver")
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	svc := serviceAt(store, now)

	for i := 1; i <= 3; i++ {
		record, err := svc.IncrementMessageCount(context.Background(), "c-1", "org-1", "America/Denver")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if record.MessagesSentToday != i {
			t.Fatalf("expected count %d, got %d", i, record.MessagesSentToday)
		}
	}
}

func TestIncrementMessageCountResetsAcrossLocalDays(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	loc, _ := time.LoadLocation("America/Denver")

	day1 := time.Date(2026, 3, 10, 19, 0, 0, 0, loc)
	svc := serviceAt(store, day1)
	for i := 0; i < 5; i++ {
		if _, err := svc.IncrementMessageCount(context.Background(), "c-1", "org-1", "America/Denver"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	// 01:00 UTC the next calendar day in UTC is still the same Denver day;
	// the counter must not reset until the local date changes.
	sameLocalDay := time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC)
	svc = serviceAt(store, sameLocalDay)
	record, err := svc.IncrementMessageCount(context.Background(), "c-1", "org-1", "America/Denver")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record.MessagesSentToday != 6 {
		t.Fatalf("UTC midnight must not reset the local-day counter, got %d", record.MessagesSentToday)
	}

	day2 := time.Date(2026, 3, 11, 9, 0, 0, 0, loc)
	svc = serviceAt(store, day2)
	record, err = svc.IncrementMessageCount(context.Background(), "c-1", "org-1", "America/Denver")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record.MessagesSentToday != 1 {
		t.Fatalf("expected reset to 1 on a new local day, got %d", record.MessagesSentToday)
	}
}
