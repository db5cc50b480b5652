package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Store is the consent persistence collaborator, keyed by
// (contact, organization). Get returns ErrNoConsentRecord when no row exists.
type Store interface {
	Get(ctx context.Context, contactID, organizationID string) (ConsentRecord, error)
	Upsert(ctx context.Context, record ConsentRecord) (ConsentRecord, error)
}

// Config carries the gate policy knobs.
type Config struct {
	AllowedHourStart int
	AllowedHourEnd   int
	DailyMessageCap  int
	DefaultTimezone  string
	ExcludedStages   []string

	// Now overrides the clock in tests. Leave nil in production.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.AllowedHourStart == 0 && c.AllowedHourEnd == 0 {
		c.AllowedHourStart = 8
		c.AllowedHourEnd = 20
	}
	if c.DailyMessageCap == 0 {
		c.DailyMessageCap = 30
	}
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = "America/Denver"
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Gate evaluates whether an outbound message may be sent to a contact right
// now. Evaluation reads consent state and nothing else; all mutation lives
// on Service.
type Gate struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

func NewGate(log *slog.Logger, store Store, cfg Config) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: log.With(slog.String("component", "compliance")),
	}
}

// Evaluate runs the ordered SMS compliance checks for one contact:
// opt-out, consent (warning only), DNC, local time window, daily rate limit.
// Checks short-circuit on the first blocking status.
func (g *Gate) Evaluate(ctx context.Context, contactID, organizationID, phoneNumber, timezone string) (Result, error) {
	if g.store == nil {
		return Result{}, fmt.Errorf("compliance store not configured")
	}
	record, err := g.store.Get(ctx, contactID, organizationID)
	hasRecord := true
	if err != nil {
		if !errors.Is(err, ErrNoConsentRecord) {
			return Result{}, fmt.Errorf("load consent record: %w", err)
		}
		hasRecord = false
	}
	return g.evaluateRecord(record, hasRecord, timezone, g.cfg.Now()), nil
}

// FullRequest is the input to EvaluateFull.
type FullRequest struct {
	ContactID      string
	OrganizationID string
	PhoneNumber    string
	Timezone       string
	Stage          string
}

// EvaluateFull applies stage eligibility first (fails closed), then the SMS
// checks, merging warnings from both. A handoff-class stage does not block
// but appends a routing warning.
func (g *Gate) EvaluateFull(ctx context.Context, req FullRequest) (Result, error) {
	stage := EvaluateStage(req.Stage, g.cfg.ExcludedStages)
	if !stage.Eligible {
		return Result{
			Status:  stage.Status,
			CanSend: false,
			Reason:  stage.Reason,
		}, nil
	}
	result, err := g.Evaluate(ctx, req.ContactID, req.OrganizationID, req.PhoneNumber, req.Timezone)
	if err != nil {
		return Result{}, err
	}
	if stage.Handoff {
		result.Warnings = append(result.Warnings, stage.Reason)
	}
	return result, nil
}

// CheckWindow reports whether the contact-local clock is inside the allowed
// send window, and the next window opening when it is not. Used by the
// executor to re-check the one condition most likely to have drifted between
// scan and execute.
func (g *Gate) CheckWindow(timezone string) (bool, time.Time) {
	now := g.cfg.Now()
	loc := g.location(timezone)
	local := now.In(loc)
	if insideWindow(local, g.cfg.AllowedHourStart, g.cfg.AllowedHourEnd) {
		return true, time.Time{}
	}
	return false, nextWindowOpen(local, g.cfg.AllowedHourStart, g.cfg.AllowedHourEnd)
}

func (g *Gate) evaluateRecord(record ConsentRecord, hasRecord bool, timezone string, now time.Time) Result {
	var warnings []string

	if hasRecord && record.OptedOut {
		reason := "contact opted out"
		if record.OptOutReason != "" {
			reason = record.OptOutReason
		}
		if !record.OptedOutAt.IsZero() {
			reason = fmt.Sprintf("%s (opted out %s)", reason, record.OptedOutAt.Format("2006-01-02"))
		}
		return Result{Status: StatusBlockedOptedOut, CanSend: false, Reason: reason}
	}

	// Imported leads carry implied consent from their original inquiry;
	// a missing or unset record warns rather than blocks.
	if !hasRecord || !record.ConsentGiven {
		warnings = append(warnings, "no explicit consent on file, treating as implied consent")
	}

	if hasRecord && record.IsOnDNC {
		return Result{
			Status:   StatusBlockedDNC,
			CanSend:  false,
			Reason:   "contact is on the Do-Not-Call registry",
			Warnings: warnings,
		}
	}

	loc := g.location(timezone)
	local := now.In(loc)
	if !insideWindow(local, g.cfg.AllowedHourStart, g.cfg.AllowedHourEnd) {
		next := nextWindowOpen(local, g.cfg.AllowedHourStart, g.cfg.AllowedHourEnd)
		return Result{
			Status:          StatusBlockedHours,
			CanSend:         false,
			Reason:          fmt.Sprintf("outside allowed hours %02d:00-%02d:00 %s", g.cfg.AllowedHourStart, g.cfg.AllowedHourEnd, loc.String()),
			NextAllowedTime: &next,
			Warnings:        warnings,
		}
	}

	sentToday := 0
	if hasRecord && sameLocalDay(record.LastMessageDate, local) {
		sentToday = record.MessagesSentToday
	}
	if sentToday >= g.cfg.DailyMessageCap {
		next := startOfNextDay(local, g.cfg.AllowedHourStart)
		return Result{
			Status:          StatusBlockedRate,
			CanSend:         false,
			Reason:          fmt.Sprintf("daily message cap reached (%d/%d)", sentToday, g.cfg.DailyMessageCap),
			NextAllowedTime: &next,
			Warnings:        warnings,
		}
	}

	return Result{
		Status:   StatusCompliant,
		CanSend:  true,
		Reason:   "all compliance checks passed",
		Warnings: warnings,
	}
}

func (g *Gate) location(timezone string) *time.Location {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err == nil {
			return loc
		}
		g.logger.Warn("unparseable timezone, using default", slog.String("timezone", timezone), slog.String("default", g.cfg.DefaultTimezone))
	}
	if loc, err := time.LoadLocation(g.cfg.DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

func insideWindow(local time.Time, startHour, endHour int) bool {
	hour := local.Hour()
	return hour >= startHour && hour < endHour
}

// nextWindowOpen returns the next boundary at startHour:00 local, strictly
// in the future: same day when the clock is before the window, next day when
// at or past the close.
func nextWindowOpen(local time.Time, startHour, endHour int) time.Time {
	if local.Hour() < startHour {
		return time.Date(local.Year(), local.Month(), local.Day(), startHour, 0, 0, 0, local.Location())
	}
	return startOfNextDay(local, startHour)
}

func startOfNextDay(local time.Time, startHour int) time.Time {
	next := local.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), startHour, 0, 0, 0, local.Location())
}

func sameLocalDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
