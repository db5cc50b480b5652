package scanner

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/adamsch0100/leadsynergy-sub002/internal/compliance"
	"github.com/adamsch0100/leadsynergy-sub002/internal/contacts"
	"github.com/adamsch0100/leadsynergy-sub002/internal/conversation"
	"github.com/adamsch0100/leadsynergy-sub002/internal/sequence"
)

type fakeContacts struct {
	byID     map[string]contacts.Contact
	newItems []contacts.Contact
	dormant  []contacts.Contact
	newErr   error
}

func (f *fakeContacts) GetByID(ctx context.Context, contactID string) (contacts.Contact, error) {
	contact, ok := f.byID[contactID]
	if !ok {
		return contacts.Contact{}, contacts.ErrContactNotFound
	}
	return contact, nil
}

func (f *fakeContacts) QueryNew(ctx context.Context, organizationID string, since time.Time, limit int) ([]contacts.Contact, error) {
	if f.newErr != nil {
		return nil, f.newErr
	}
	items := f.newItems
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *fakeContacts) QueryDormant(ctx context.Context, organizationID string, before time.Time, limit int) ([]contacts.Contact, error) {
	items := f.dormant
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

type fakeConversations struct {
	conversations []conversation.Conversation
	handoffs      []conversation.Conversation
}

func (f *fakeConversations) GetByContact(ctx context.Context, contactID string) (conversation.Conversation, error) {
	for _, conv := range f.conversations {
		if conv.ContactID == contactID {
			return conv, nil
		}
	}
	return conversation.Conversation{}, conversation.ErrConversationNotFound
}

func (f *fakeConversations) QueryConversations(ctx context.Context, filter conversation.Filter) ([]conversation.Conversation, error) {
	items := make([]conversation.Conversation, 0)
	for _, conv := range f.conversations {
		if !filter.LastAiMessageBefore.IsZero() {
			if conv.LastAiMessageAt.IsZero() || !conv.LastAiMessageAt.Before(filter.LastAiMessageBefore) {
				continue
			}
		}
		if filter.Active != nil && conv.Active != *filter.Active {
			continue
		}
		items = append(items, conv)
	}
	return items, nil
}

func (f *fakeConversations) QueryHandoffs(ctx context.Context, organizationID string, before time.Time) ([]conversation.Conversation, error) {
	items := make([]conversation.Conversation, 0)
	for _, conv := range f.handoffs {
		if conv.UpdatedAt.Before(before) {
			items = append(items, conv)
		}
	}
	return items, nil
}

func (f *fakeConversations) ObjectionHistory(ctx context.Context, contactID string) ([]string, error) {
	return nil, nil
}

func (f *fakeConversations) AppendObjection(ctx context.Context, contactID, category string) error {
	return nil
}

type fakeSequences struct {
	due     []sequence.FollowUp
	pending map[string]bool
}

func (f *fakeSequences) SchedulePending(ctx context.Context, req sequence.ScheduleRequest) (sequence.FollowUp, error) {
	return sequence.FollowUp{ID: "f-new", ContactID: req.ContactID}, nil
}

func (f *fakeSequences) GetDue(ctx context.Context, organizationID string, before time.Time) ([]sequence.FollowUp, error) {
	return f.due, nil
}

func (f *fakeSequences) HasPending(ctx context.Context, contactID string) (bool, error) {
	return f.pending[contactID], nil
}

func (f *fakeSequences) MarkSent(ctx context.Context, followUpID string) error {
	return nil
}

type fakeConsentStore struct {
	records map[string]compliance.ConsentRecord
}

func (f *fakeConsentStore) Get(ctx context.Context, contactID, organizationID string) (compliance.ConsentRecord, error) {
	record, ok := f.records[contactID]
	if !ok {
		return compliance.ConsentRecord{}, compliance.ErrNoConsentRecord
	}
	return record, nil
}

func (f *fakeConsentStore) Upsert(ctx context.Context, record compliance.ConsentRecord) (compliance.ConsentRecord, error) {
	f.records[record.ContactID] = record
	return record, nil
}

type fixture struct {
	contacts      *fakeContacts
	conversations *fakeConversations
	sequences     *fakeSequences
	consent       *fakeConsentStore
	now           time.Time
	scanner       *Scanner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Denver")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	f := &fixture{
		contacts:      &fakeContacts{byID: map[string]contacts.Contact{}},
		conversations: &fakeConversations{},
		sequences:     &fakeSequences{pending: map[string]bool{}},
		consent:       &fakeConsentStore{records: map[string]compliance.ConsentRecord{}},
		now:           now,
	}
	gate := compliance.NewGate(nil, f.consent, compliance.Config{Now: func() time.Time { return now }})
	f.scanner = New(nil, f.contacts, f.conversations, f.sequences, gate, Config{
		Now: func() time.Time { return now },
	})
	return f
}

func (f *fixture) addContact(contact contacts.Contact) {
	if contact.OrganizationID == "" {
		contact.OrganizationID = "org-1"
	}
	f.contacts.byID[contact.ID] = contact
}

func TestScanRanksByDescendingPriority(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// Scores 50, 90 and 70 via three different sub-scans.
	aged := contacts.Contact{ID: "c-old", OrganizationID: "org-1", Phone: "+13035550101", CreatedAt: f.now.Add(-20 * time.Hour)}
	fresh := contacts.Contact{ID: "c-new", OrganizationID: "org-1", Phone: "+13035550102", CreatedAt: f.now}
	f.contacts.newItems = []contacts.Contact{aged, fresh}
	f.addContact(aged)
	f.addContact(fresh)
	f.sequences.due = []sequence.FollowUp{{
		ID: "f-1", ContactID: "c-due", OrganizationID: "org-1", Trigger: "checkin", DueAt: f.now.Add(-time.Hour),
	}}

	actions, err := f.scanner.Scan(context.Background(), "org-1", 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	scores := []int{actions[0].PriorityScore, actions[1].PriorityScore, actions[2].PriorityScore}
	if scores[0] != 90 || scores[1] != 70 || scores[2] != 50 {
		t.Fatalf("expected [90 70 50], got %v", scores)
	}
}

func TestScanCapsAtRunCeiling(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for i := 0; i < 120; i++ {
		f.sequences.due = append(f.sequences.due, sequence.FollowUp{
			ID:             fmt.Sprintf("f-%d", i),
			ContactID:      fmt.Sprintf("c-%d", i),
			OrganizationID: "org-1",
			Trigger:        "checkin",
			DueAt:          f.now.Add(-time.Hour),
		})
	}
	for i := 0; i < 30; i++ {
		contact := contacts.Contact{
			ID:             fmt.Sprintf("n-%d", i),
			OrganizationID: "org-1",
			Phone:          "+13035550100",
			CreatedAt:      f.now,
		}
		f.contacts.newItems = append(f.contacts.newItems, contact)
		f.addContact(contact)
	}

	actions, err := f.scanner.Scan(context.Background(), "org-1", 90)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(actions) != 100 {
		t.Fatalf("expected the 100-action ceiling, got %d", len(actions))
	}
	// The top of the list must be the high-score new leads, and order must
	// never increase.
	if actions[0].PriorityScore != 90 {
		t.Fatalf("expected a 90-score action first, got %d", actions[0].PriorityScore)
	}
	for i := 1; i < len(actions); i++ {
		if actions[i].PriorityScore > actions[i-1].PriorityScore {
			t.Fatalf("actions not sorted at index %d", i)
		}
	}
}

func TestScanNewLeadEmitsFirstContact(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	contact := contacts.Contact{
		ID:             "c-1",
		OrganizationID: "org-1",
		Phone:          "+13035550100",
		CreatedAt:      f.now.Add(-10 * time.Minute),
	}
	f.contacts.newItems = []contacts.Contact{contact}
	f.addContact(contact)

	actions, err := f.scanner.Scan(context.Background(), "org-1", 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	action := actions[0]
	if action.Type != ActionFirstContactSMS {
		t.Fatalf("expected first_contact_sms, got %s", action.Type)
	}
	if action.PriorityScore < 88 {
		t.Fatalf("expected priority >= 88 for a 10-minute-old lead, got %d", action.PriorityScore)
	}
	if action.ExecuteAt == nil || !action.ExecuteAt.Equal(f.now) {
		t.Fatalf("expected execute_at = now, got %v", action.ExecuteAt)
	}
}

func TestScanNewLeadWithoutPhoneUsesEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	contact := contacts.Contact{
		ID:             "c-1",
		OrganizationID: "org-1",
		Email:          "lead@example.com",
		CreatedAt:      f.now.Add(-2 * time.Hour),
	}
	f.contacts.newItems = []contacts.Contact{contact}
	f.addContact(contact)

	actions, err := f.scanner.Scan(context.Background(), "org-1", 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(actions) != 1 || actions[0].Type != ActionFirstContactEmail {
		t.Fatalf("expected first_contact_email, got %+v", actions)
	}
}

func TestScanSilentLeadDeduplication(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addContact(contacts.Contact{ID: "c-1", OrganizationID: "org-1", Phone: "+13035550100"})
	f.conversations.conversations = []conversation.Conversation{{
		ID:              "conv-1",
		ContactID:       "c-1",
		OrganizationID:  "org-1",
		State:           conversation.StateEngaged,
		Active:          true,
		LeadScore:       55,
		LastAiMessageAt: f.now.Add(-30 * time.Hour),
	}}
	f.sequences.pending["c-1"] = true

	actions, err := f.scanner.Scan(context.Background(), "org-1", 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("contact with pending follow-up must not be re-emitted, got %+v", actions)
	}
}

func TestScanSilentLeadTriggers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addContact(contacts.Contact{ID: "c-q", OrganizationID: "org-1", Phone: "+13035550101"})
	f.addContact(contacts.Contact{ID: "c-o", OrganizationID: "org-1", Phone: "+13035550102"})
	f.conversations.conversations = []conversation.Conversation{
		{
			ID: "conv-q", ContactID: "c-q", OrganizationID: "org-1",
			State: conversation.StateQualifying, Active: true, LeadScore: 60,
			LastAiMessageAt:   f.now.Add(-30 * time.Hour),
			QualificationData: map[string]interface{}{"timeline": "3 months"},
		},
		{
			ID: "conv-o", ContactID: "c-o", OrganizationID: "org-1",
			State: conversation.StateEngaged, Active: true, LeadScore: 50,
			LastAiMessageAt:  f.now.Add(-26 * time.Hour),
			ObjectionsRaised: []string{"price_too_high", "bad_timing"},
		},
	}

	actions, err := f.scanner.Scan(context.Background(), "org-1", 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	byContact := map[string]RecommendedAction{}
	for _, action := range actions {
		byContact[action.ContactID] = action
	}
	qualifying := byContact["c-q"]
	if qualifying.MessageContext["trigger"] != "resume_qualification" {
		t.Fatalf("expected resume_qualification, got %v", qualifying.MessageContext["trigger"])
	}
	summary, _ := qualifying.MessageContext["conversation_summary"].(string)
	if !strings.Contains(summary, "timeline=3 months") {
		t.Fatalf("summary must carry answered questions, got %q", summary)
	}
	if !strings.Contains(summary, "open:") {
		t.Fatalf("summary must list open questions, got %q", summary)
	}
	objection := byContact["c-o"]
	if objection.MessageContext["trigger"] != "resume_objection" {
		t.Fatalf("expected resume_objection, got %v", objection.MessageContext["trigger"])
	}
	if objection.MessageContext["last_objection"] != "bad_timing" {
		t.Fatalf("expected most recent objection carried, got %v", objection.MessageContext["last_objection"])
	}
	if objection.PriorityScore != 50 {
		t.Fatalf("silent lead priority must equal lead score, got %d", objection.PriorityScore)
	}
}

func TestScanSilentLeadIgnoresRepliedConversations(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addContact(contacts.Contact{ID: "c-1", OrganizationID: "org-1", Phone: "+13035550100"})
	f.conversations.conversations = []conversation.Conversation{{
		ID: "conv-1", ContactID: "c-1", OrganizationID: "org-1",
		State: conversation.StateEngaged, Active: true, LeadScore: 55,
		LastAiMessageAt: f.now.Add(-30 * time.Hour),
		LastInboundAt:   f.now.Add(-5 * time.Hour),
	}}

	actions, err := f.scanner.Scan(context.Background(), "org-1", 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("a reply after the outbound breaks silence, got %+v", actions)
	}
}

func TestScanDormantScoringAndRevivalSplit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	recent := contacts.Contact{
		ID: "c-40", OrganizationID: "org-1", Phone: "+13035550101",
		Stage:          "Nurture",
		LastActivityAt: f.now.Add(-40 * 24 * time.Hour),
	}
	ancient := contacts.Contact{
		ID: "c-120", OrganizationID: "org-1", Phone: "+13035550102",
		Stage:          "Nurture",
		LastActivityAt: f.now.Add(-120 * 24 * time.Hour),
	}
	f.contacts.dormant = []contacts.Contact{recent, ancient}
	f.addContact(recent)
	f.addContact(ancient)

	actions, err := f.scanner.Scan(context.Background(), "org-1", 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	byContact := map[string]RecommendedAction{}
	for _, action := range actions {
		byContact[action.ContactID] = action
	}
	if got := byContact["c-40"]; got.Type != ActionReengagementSMS || got.PriorityScore != 50 {
		t.Fatalf("40-day dormant expected sms score 50, got %+v", got)
	}
	if got := byContact["c-120"]; got.Type != ActionReengagementEmail || got.PriorityScore != 20 {
		t.Fatalf("120-day dormant expected email score floor 20, got %+v", got)
	}
}

func TestScanStaleHandoffs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.conversations.handoffs = []conversation.Conversation{
		{
			ID: "conv-replied", ContactID: "c-1", OrganizationID: "org-1",
			State:              conversation.StateHandedOff,
			UpdatedAt:          f.now.Add(-80 * time.Hour),
			LastHumanMessageAt: f.now.Add(-79 * time.Hour),
		},
		{
			ID: "conv-dropped", ContactID: "c-2", OrganizationID: "org-1",
			State:     conversation.StateHandedOff,
			UpdatedAt: f.now.Add(-80 * time.Hour),
		},
		{
			ID: "conv-fresh", ContactID: "c-3", OrganizationID: "org-1",
			State:     conversation.StateHandedOff,
			UpdatedAt: f.now.Add(-50 * time.Hour),
		},
	}

	actions, err := f.scanner.Scan(context.Background(), "org-1", 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 stale handoffs, got %d", len(actions))
	}
	byContact := map[string]RecommendedAction{}
	for _, action := range actions {
		if action.Type != ActionEscalateHandoff {
			t.Fatalf("expected escalate_stale_handoff, got %s", action.Type)
		}
		byContact[action.ContactID] = action
	}
	if _, ok := byContact["c-1"]; ok {
		t.Fatal("a prompt human reply must not be flagged stale")
	}
	if byContact["c-2"].PriorityScore != 85 {
		t.Fatalf("80h stale expected 85, got %d", byContact["c-2"].PriorityScore)
	}
	if byContact["c-3"].PriorityScore != 75 {
		t.Fatalf("50h stale expected 75, got %d", byContact["c-3"].PriorityScore)
	}
}

func TestScanOptedOutContactDropped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	contact := contacts.Contact{ID: "c-1", OrganizationID: "org-1", Phone: "+13035550100", CreatedAt: f.now}
	f.contacts.newItems = []contacts.Contact{contact}
	f.addContact(contact)
	f.consent.records["c-1"] = compliance.ConsentRecord{
		ContactID:      "c-1",
		OrganizationID: "org-1",
		OptedOut:       true,
		OptOutReason:   "STOP keyword",
	}

	actions, err := f.scanner.Scan(context.Background(), "org-1", 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("opted-out contact must be dropped at scan time, got %+v", actions)
	}
}

func TestScanSubScanFailureDegradesGracefully(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.contacts.newErr = fmt.Errorf("crm unreachable")
	f.sequences.due = []sequence.FollowUp{{
		ID: "f-1", ContactID: "c-1", OrganizationID: "org-1", Trigger: "checkin", DueAt: f.now.Add(-time.Hour),
	}}

	actions, err := f.scanner.Scan(context.Background(), "org-1", 30)
	if err == nil {
		t.Fatal("sub-scan failure must be surfaced")
	}
	if len(actions) != 1 {
		t.Fatalf("healthy sub-scans must still contribute, got %d actions", len(actions))
	}
}
