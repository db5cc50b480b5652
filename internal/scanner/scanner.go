package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/adamsch0100/leadsynergy-sub002/internal/compliance"
	"github.com/adamsch0100/leadsynergy-sub002/internal/contacts"
	"github.com/adamsch0100/leadsynergy-sub002/internal/conversation"
	"github.com/adamsch0100/leadsynergy-sub002/internal/sequence"
)

// Config carries the scan thresholds and ceilings.
type Config struct {
	BatchSize    int
	RunCeiling   int
	SilentAfter  time.Duration
	DormantAfter time.Duration
	RevivalAfter time.Duration
	HandoffStale time.Duration

	// Now overrides the clock in tests. Leave nil in production.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 30
	}
	if c.RunCeiling <= 0 {
		c.RunCeiling = 100
	}
	if c.SilentAfter <= 0 {
		c.SilentAfter = 24 * time.Hour
	}
	if c.DormantAfter <= 0 {
		c.DormantAfter = 30 * 24 * time.Hour
	}
	if c.RevivalAfter <= 0 {
		c.RevivalAfter = 90 * 24 * time.Hour
	}
	if c.HandoffStale <= 0 {
		c.HandoffStale = 48 * time.Hour
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Scanner classifies and ranks the contact population into actionable
// recommendations. It only reads; every side effect belongs to the executor.
type Scanner struct {
	contacts      contacts.Reader
	conversations conversation.Store
	sequences     sequence.Scheduler
	gate          *compliance.Gate
	cfg           Config
	logger        *slog.Logger
}

func New(log *slog.Logger, reader contacts.Reader, conversations conversation.Store, sequences sequence.Scheduler, gate *compliance.Gate, cfg Config) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{
		contacts:      reader,
		conversations: conversations,
		sequences:     sequences,
		gate:          gate,
		cfg:           cfg.withDefaults(),
		logger:        log.With(slog.String("component", "scanner")),
	}
}

// Scan runs the five sub-scans, merges their output and returns it sorted by
// descending priority with stable discovery-order tie-breaking, capped at
// the run ceiling. Sub-scan failures degrade to empty contributions; the
// joined error is returned alongside whatever was found so monitoring sees
// the problem without the run going dark.
func (s *Scanner) Scan(ctx context.Context, organizationID string, batchSize int) ([]RecommendedAction, error) {
	if s.contacts == nil || s.conversations == nil || s.sequences == nil || s.gate == nil {
		return nil, fmt.Errorf("scanner collaborators not configured")
	}
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}
	subCap := batchSize / 3
	if subCap < 1 {
		subCap = 1
	}
	now := s.cfg.Now()

	results := []ScanResult{
		s.scanNewLeads(ctx, organizationID, now, subCap),
		s.scanSilentLeads(ctx, organizationID, now, subCap),
		s.scanDormant(ctx, organizationID, now, subCap),
		s.scanDueFollowUps(ctx, organizationID, now),
		s.scanStaleHandoffs(ctx, organizationID, now),
	}

	var merged []RecommendedAction
	var errs []error
	for _, result := range results {
		if result.Err != nil {
			s.logger.Error("sub-scan failed",
				slog.String("source", result.Source),
				slog.String("organization_id", organizationID),
				slog.Any("error", result.Err))
			errs = append(errs, fmt.Errorf("%s: %w", result.Source, result.Err))
			continue
		}
		merged = append(merged, result.Items...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PriorityScore > merged[j].PriorityScore
	})
	if len(merged) > s.cfg.RunCeiling {
		merged = merged[:s.cfg.RunCeiling]
	}
	s.logger.Info("scan complete",
		slog.String("organization_id", organizationID),
		slog.Int("recommendations", len(merged)),
		slog.Int("sub_scan_errors", len(errs)))
	return merged, errors.Join(errs...)
}

func (s *Scanner) scanNewLeads(ctx context.Context, organizationID string, now time.Time, limit int) ScanResult {
	result := ScanResult{Source: "new_leads"}
	since := now.Add(-24 * time.Hour)
	items, err := s.contacts.QueryNew(ctx, organizationID, since, limit)
	if err != nil {
		result.Err = err
		return result
	}
	for _, contact := range items {
		if !contact.Reachable() || !contact.FirstContactedAt.IsZero() {
			continue
		}
		hours := int(now.Sub(contact.CreatedAt).Hours())
		score := 90 - 2*hours
		if score < 50 {
			score = 50
		}
		actionType := ActionFirstContactSMS
		if !contact.HasPhone() {
			actionType = ActionFirstContactEmail
		}
		executeAt, ok := s.clearance(ctx, contact, actionType, now)
		if !ok {
			continue
		}
		result.Items = append(result.Items, RecommendedAction{
			ContactID:      contact.ID,
			OrganizationID: contact.OrganizationID,
			Type:           actionType,
			PriorityScore:  score,
			Reason:         fmt.Sprintf("new lead created %dh ago with no first contact", hours),
			ExecuteAt:      &executeAt,
			MessageContext: contactContext(contact, map[string]interface{}{
				"trigger": "first_contact",
			}),
		})
	}
	return result
}

func (s *Scanner) scanSilentLeads(ctx context.Context, organizationID string, now time.Time, limit int) ScanResult {
	result := ScanResult{Source: "silent_leads"}
	active := true
	conversations, err := s.conversations.QueryConversations(ctx, conversation.Filter{
		OrganizationID:      organizationID,
		Active:              &active,
		LastAiMessageBefore: now.Add(-s.cfg.SilentAfter),
	})
	if err != nil {
		result.Err = err
		return result
	}
	for _, conv := range conversations {
		if len(result.Items) >= limit {
			break
		}
		if conv.State == conversation.StateHandedOff || conv.State == conversation.StateCompleted {
			continue
		}
		// A reply before the last outbound does not count as silence broken;
		// only an inbound after it does.
		if !conv.LastInboundAt.IsZero() && conv.LastInboundAt.After(conv.LastAiMessageAt) {
			continue
		}
		pending, err := s.sequences.HasPending(ctx, conv.ContactID)
		if err != nil {
			s.logger.Error("pending check failed", slog.String("contact_id", conv.ContactID), slog.Any("error", err))
			continue
		}
		if pending {
			continue
		}
		contact, err := s.contacts.GetByID(ctx, conv.ContactID)
		if err != nil {
			s.logger.Error("load contact failed", slog.String("contact_id", conv.ContactID), slog.Any("error", err))
			continue
		}
		executeAt, ok := s.clearance(ctx, contact, ActionFollowUpSMS, now)
		if !ok {
			continue
		}
		trigger, lastObjection := resumptionTrigger(conv)
		messageContext := contactContext(contact, map[string]interface{}{
			"trigger":              trigger,
			"conversation_state":   string(conv.State),
			"conversation_summary": BuildSummary(conv),
		})
		if lastObjection != "" {
			messageContext["last_objection"] = lastObjection
		}
		result.Items = append(result.Items, RecommendedAction{
			ContactID:      conv.ContactID,
			OrganizationID: conv.OrganizationID,
			Type:           ActionFollowUpSMS,
			PriorityScore:  conv.LeadScore,
			Reason:         fmt.Sprintf("no reply since last outbound %s ago", now.Sub(conv.LastAiMessageAt).Round(time.Hour)),
			ExecuteAt:      &executeAt,
			MessageContext: messageContext,
		})
	}
	return result
}

func (s *Scanner) scanDormant(ctx context.Context, organizationID string, now time.Time, limit int) ScanResult {
	result := ScanResult{Source: "dormant_leads"}
	before := now.Add(-s.cfg.DormantAfter)
	items, err := s.contacts.QueryDormant(ctx, organizationID, before, limit)
	if err != nil {
		result.Err = err
		return result
	}
	for _, contact := range items {
		stage := compliance.EvaluateStage(contact.Stage, nil)
		if !stage.Eligible {
			continue
		}
		days := int(now.Sub(contact.LastActivityAt).Hours() / 24)
		score := 60 - (days - 30)
		if score < 20 {
			score = 20
		}
		// Long-dormant contacts get the lower-pressure email-first revival
		// path; the 30-90 day band stays SMS-first.
		actionType := ActionReengagementSMS
		reason := fmt.Sprintf("dormant %d days, SMS re-engagement", days)
		if time.Duration(days)*24*time.Hour >= s.cfg.RevivalAfter {
			actionType = ActionReengagementEmail
			reason = fmt.Sprintf("dormant %d days, email-first revival", days)
		}
		if actionType == ActionReengagementSMS && !contact.HasPhone() {
			actionType = ActionReengagementEmail
		}
		executeAt, ok := s.clearance(ctx, contact, actionType, now)
		if !ok {
			continue
		}
		result.Items = append(result.Items, RecommendedAction{
			ContactID:      contact.ID,
			OrganizationID: contact.OrganizationID,
			Type:           actionType,
			PriorityScore:  score,
			Reason:         reason,
			ExecuteAt:      &executeAt,
			MessageContext: contactContext(contact, map[string]interface{}{
				"trigger":      "reengagement",
				"days_dormant": days,
			}),
		})
	}
	return result
}

func (s *Scanner) scanDueFollowUps(ctx context.Context, organizationID string, now time.Time) ScanResult {
	result := ScanResult{Source: "due_followups"}
	due, err := s.sequences.GetDue(ctx, organizationID, now)
	if err != nil {
		result.Err = err
		return result
	}
	for _, item := range due {
		messageContext := map[string]interface{}{
			"trigger": item.Trigger,
			"channel": item.Channel,
		}
		for key, value := range item.Context {
			messageContext[key] = value
		}
		executeAt := now
		result.Items = append(result.Items, RecommendedAction{
			ContactID:      item.ContactID,
			OrganizationID: item.OrganizationID,
			Type:           ActionFollowUpDue,
			PriorityScore:  70,
			Reason:         fmt.Sprintf("scheduled %s follow-up due since %s", item.Trigger, item.DueAt.Format(time.RFC3339)),
			ExecuteAt:      &executeAt,
			FollowUpID:     item.ID,
			MessageContext: messageContext,
		})
	}
	return result
}

func (s *Scanner) scanStaleHandoffs(ctx context.Context, organizationID string, now time.Time) ScanResult {
	result := ScanResult{Source: "stale_handoffs"}
	handoffs, err := s.conversations.QueryHandoffs(ctx, organizationID, now.Add(-s.cfg.HandoffStale))
	if err != nil {
		result.Err = err
		return result
	}
	for _, conv := range handoffs {
		// Compare the human-message timestamp against the handoff's
		// updatedAt, not against now: a human who replied promptly after
		// the handoff is not a dropped ball however old the row is.
		if !conv.LastHumanMessageAt.IsZero() && conv.LastHumanMessageAt.After(conv.UpdatedAt) {
			continue
		}
		staleFor := now.Sub(conv.UpdatedAt)
		score := 75
		if staleFor >= 72*time.Hour {
			score = 85
		}
		result.Items = append(result.Items, RecommendedAction{
			ContactID:      conv.ContactID,
			OrganizationID: conv.OrganizationID,
			Type:           ActionEscalateHandoff,
			PriorityScore:  score,
			Reason:         fmt.Sprintf("handed off %s ago with no human follow-up", staleFor.Round(time.Hour)),
			MessageContext: map[string]interface{}{
				"conversation_id": conv.ID,
				"handed_off_at":   conv.UpdatedAt.Format(time.RFC3339),
			},
		})
	}
	return result
}

// clearance consults the compliance gate at scan time. Terminal blocks drop
// the candidate; a window or rate block keeps it with execution pushed to
// the next allowed time.
func (s *Scanner) clearance(ctx context.Context, contact contacts.Contact, actionType ActionType, now time.Time) (time.Time, bool) {
	if !actionType.SMSClass() {
		return now, true
	}
	result, err := s.gate.EvaluateFull(ctx, compliance.FullRequest{
		ContactID:      contact.ID,
		OrganizationID: contact.OrganizationID,
		PhoneNumber:    contact.Phone,
		Timezone:       contact.Timezone,
		Stage:          contact.Stage,
	})
	if err != nil {
		s.logger.Error("compliance check failed", slog.String("contact_id", contact.ID), slog.Any("error", err))
		return time.Time{}, false
	}
	if result.CanSend {
		return now, true
	}
	if result.NextAllowedTime != nil {
		return *result.NextAllowedTime, true
	}
	return time.Time{}, false
}

func resumptionTrigger(conv conversation.Conversation) (trigger, lastObjection string) {
	switch conv.State {
	case conversation.StateQualifying:
		return "resume_qualification", ""
	case conversation.StateScheduling:
		return "resume_scheduling", ""
	}
	if len(conv.ObjectionsRaised) > 0 || conv.State == conversation.StateObjectionHandling {
		if len(conv.ObjectionsRaised) > 0 {
			lastObjection = conv.ObjectionsRaised[len(conv.ObjectionsRaised)-1]
		}
		return "resume_objection", lastObjection
	}
	return "no_response_followup", ""
}

func contactContext(contact contacts.Contact, extra map[string]interface{}) map[string]interface{} {
	messageContext := map[string]interface{}{
		"display_name": contact.DisplayName,
		"phone":        contact.Phone,
		"email":        contact.Email,
		"timezone":     contact.Timezone,
		"stage":        contact.Stage,
		"source":       contact.Source,
		"lead_score":   contact.LeadScore,
	}
	for key, value := range extra {
		messageContext[key] = value
	}
	return messageContext
}
