package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adamsch0100/leadsynergy-sub002/internal/compliance"
	"github.com/adamsch0100/leadsynergy-sub002/internal/objection"
	"github.com/adamsch0100/leadsynergy-sub002/internal/sequence"
)

// ConsentRecorder is the slice of the compliance service the inbound router
// writes through.
type ConsentRecorder interface {
	RecordOptOut(ctx context.Context, contactID, organizationID, reason string) (compliance.ConsentRecord, error)
	ClearOptOut(ctx context.Context, contactID, organizationID string) (compliance.ConsentRecord, error)
}

// ObjectionSelector picks the response posture for a classified objection.
type ObjectionSelector interface {
	Select(ctx context.Context, in objection.Input) (objection.Decision, error)
}

// InboundMessage is one normalized inbound contact message. Intent and
// sentiment labels arrive from the upstream classifier; this router never
// does its own language understanding.
type InboundMessage struct {
	ContactID      string
	OrganizationID string
	From           string
	Text           string
	Intent         string
	Sentiment      string
	LeadScore      int
	Timeline       string
}

// InboundResult is what the caller should do with the message: an optional
// reply body plus the disposition taken.
type InboundResult struct {
	Disposition string             `json:"disposition"`
	Reply       string             `json:"reply,omitempty"`
	Decision    *objection.Decision `json:"decision,omitempty"`
}

const (
	DispositionOptOut    = "opt_out"
	DispositionOptIn     = "opt_in"
	DispositionHelp      = "help"
	DispositionObjection = "objection"
	DispositionIgnored   = "ignored"
)

const (
	optOutConfirmReply = "You have been unsubscribed and will receive no further messages. Reply START to re-subscribe."
	optInConfirmReply  = "You are re-subscribed. Reply STOP at any time to unsubscribe."
	helpReply          = "Reply STOP to unsubscribe. Msg&data rates may apply."
)

// Carrier-mandated keyword sets. Matching is on the whole trimmed message,
// case-insensitive, so "stop calling me please" routes to the classifier
// rather than the keyword path.
var (
	stopKeywords  = map[string]bool{"stop": true, "stopall": true, "unsubscribe": true, "cancel": true, "end": true, "quit": true}
	startKeywords = map[string]bool{"start": true, "unstop": true, "subscribe": true}
	helpKeywords  = map[string]bool{"help": true, "info": true}
)

// InboundProcessor routes inbound messages to the compliance service
// (keyword opt-outs) or the objection selector, and applies the selector's
// follow-up effects through the sequence engine.
type InboundProcessor struct {
	consent   ConsentRecorder
	selector  ObjectionSelector
	sequences sequence.Scheduler
	logger    *slog.Logger
}

func NewInboundProcessor(log *slog.Logger, consent ConsentRecorder, selector ObjectionSelector, sequences sequence.Scheduler) *InboundProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &InboundProcessor{
		consent:   consent,
		selector:  selector,
		sequences: sequences,
		logger:    log.With(slog.String("component", "inbound_router")),
	}
}

func (p *InboundProcessor) HandleInbound(ctx context.Context, msg InboundMessage) (InboundResult, error) {
	if p.consent == nil {
		return InboundResult{}, fmt.Errorf("inbound processor not configured")
	}
	if strings.TrimSpace(msg.ContactID) == "" || strings.TrimSpace(msg.OrganizationID) == "" {
		return InboundResult{}, fmt.Errorf("contact id and organization id are required")
	}

	keyword := strings.ToLower(strings.TrimSpace(msg.Text))
	switch {
	case stopKeywords[keyword]:
		if _, err := p.consent.RecordOptOut(ctx, msg.ContactID, msg.OrganizationID, "STOP keyword"); err != nil {
			return InboundResult{}, fmt.Errorf("record opt-out: %w", err)
		}
		p.logger.Info("stop keyword processed",
			slog.String("contact_id", msg.ContactID),
			slog.String("organization_id", msg.OrganizationID),
			slog.String("keyword", keyword))
		return InboundResult{Disposition: DispositionOptOut, Reply: optOutConfirmReply}, nil
	case startKeywords[keyword]:
		if _, err := p.consent.ClearOptOut(ctx, msg.ContactID, msg.OrganizationID); err != nil {
			return InboundResult{}, fmt.Errorf("clear opt-out: %w", err)
		}
		return InboundResult{Disposition: DispositionOptIn, Reply: optInConfirmReply}, nil
	case helpKeywords[keyword]:
		return InboundResult{Disposition: DispositionHelp, Reply: helpReply}, nil
	}

	category, ok := objection.ParseCategory(msg.Intent)
	if !ok {
		// Not a keyword, not an objection: nothing for the decision engine
		// to do with it.
		return InboundResult{Disposition: DispositionIgnored}, nil
	}
	if p.selector == nil {
		return InboundResult{}, fmt.Errorf("objection selector not configured")
	}
	decision, err := p.selector.Select(ctx, objection.Input{
		ContactID:      msg.ContactID,
		OrganizationID: msg.OrganizationID,
		Category:       category,
		Sentiment:      msg.Sentiment,
		LeadScore:      msg.LeadScore,
		Timeline:       msg.Timeline,
	})
	if err != nil {
		return InboundResult{}, fmt.Errorf("select objection strategy: %w", err)
	}
	p.applyEffects(ctx, msg, category, decision)
	return InboundResult{
		Disposition: DispositionObjection,
		Reply:       decision.Script,
		Decision:    &decision,
	}, nil
}

// applyEffects turns the selector's data-only decision into side effects.
// Failures here degrade to logs; the reply already chosen still goes out.
func (p *InboundProcessor) applyEffects(ctx context.Context, msg InboundMessage, category objection.Category, decision objection.Decision) {
	if !decision.ShouldFollowUp || p.sequences == nil {
		return
	}
	_, err := p.sequences.SchedulePending(ctx, sequence.ScheduleRequest{
		ContactID:      msg.ContactID,
		OrganizationID: msg.OrganizationID,
		Trigger:        "objection_followup",
		Channel:        "sms",
		DelayHours:     decision.FollowUpDelayDays * 24,
		Context: map[string]interface{}{
			"objection": string(category),
			"strategy":  string(decision.Strategy),
		},
	})
	if err != nil {
		p.logger.Error("schedule objection follow-up failed",
			slog.String("contact_id", msg.ContactID),
			slog.Any("error", err))
	}
}
