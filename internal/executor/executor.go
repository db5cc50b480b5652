package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adamsch0100/leadsynergy-sub002/internal/compliance"
	"github.com/adamsch0100/leadsynergy-sub002/internal/contacts"
	"github.com/adamsch0100/leadsynergy-sub002/internal/delivery"
	"github.com/adamsch0100/leadsynergy-sub002/internal/escalation"
	"github.com/adamsch0100/leadsynergy-sub002/internal/scanner"
	"github.com/adamsch0100/leadsynergy-sub002/internal/sequence"
)

// ActionScanner produces the ranked recommendations a run works through.
type ActionScanner interface {
	Scan(ctx context.Context, organizationID string, batchSize int) ([]scanner.RecommendedAction, error)
}

// Executor turns ranked recommendations into side effects. It owns every
// write the decision core performs: first-contact marks, sequence
// scheduling, outbound sends, counter increments and escalation tasks.
type Executor struct {
	scanner     ActionScanner
	contacts    contacts.Reader
	writer      contacts.Writer
	sequences   sequence.Scheduler
	escalations escalation.TaskCreator
	sender      delivery.Sender
	gate        *compliance.Gate
	consent     *compliance.Service
	logger      *slog.Logger

	// Now overrides the clock in tests. Leave nil in production.
	Now func() time.Time
}

func New(log *slog.Logger, scan ActionScanner, reader contacts.Reader, writer contacts.Writer, sequences sequence.Scheduler, escalations escalation.TaskCreator, sender delivery.Sender, gate *compliance.Gate, consent *compliance.Service) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		scanner:     scan,
		contacts:    reader,
		writer:      writer,
		sequences:   sequences,
		escalations: escalations,
		sender:      sender,
		gate:        gate,
		consent:     consent,
		logger:      log.With(slog.String("component", "executor")),
	}
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// RunScan drives one scan-and-execute pass for an organization. With execute
// false the ranked list is returned as dry_run results and no side effect
// runs. A sub-scan error degrades to a warning on the summary; whatever the
// scan did find is still processed.
//
// The run carries a circuit breaker: the first failure whose error text
// matches a systemic-outage signature suppresses every later followup_*
// action in the run. First-contact and re-engagement actions only schedule
// sequences and stay ungated.
func (e *Executor) RunScan(ctx context.Context, organizationID string, execute bool, batchSize int) (RunSummary, error) {
	if e.scanner == nil {
		return RunSummary{}, fmt.Errorf("scanner not configured")
	}
	summary := RunSummary{
		OrganizationID: organizationID,
		StartedAt:      e.now().UTC(),
		DryRun:         !execute,
	}
	actions, err := e.scanner.Scan(ctx, organizationID, batchSize)
	if err != nil {
		summary.ScanWarning = err.Error()
	}
	summary.Scanned = len(actions)

	for _, action := range actions {
		if !execute {
			summary.record(Result{Action: action, Status: StatusDryRun})
			continue
		}
		if summary.BreakerTripped && action.Type.FollowUpClass() {
			summary.record(Result{
				Action: action,
				Status: StatusSkipped,
				Detail: fmt.Sprintf("follow-ups suppressed for this run: %s", summary.BreakerReason),
			})
			continue
		}
		result, execErr := e.execute(ctx, action)
		summary.record(result)
		if execErr != nil && systemicOutage(execErr) && !summary.BreakerTripped {
			summary.BreakerTripped = true
			summary.BreakerReason = execErr.Error()
			e.logger.Warn("delivery outage detected, suppressing follow-ups for the rest of the run",
				slog.String("organization_id", organizationID),
				slog.Any("error", execErr))
		}
	}

	summary.FinishedAt = e.now().UTC()
	e.logger.Info("run complete",
		slog.String("organization_id", organizationID),
		slog.Bool("dry_run", summary.DryRun),
		slog.Int("scanned", summary.Scanned),
		slog.Int("executed", summary.Executed),
		slog.Int("deferred", summary.Deferred),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Bool("breaker_tripped", summary.BreakerTripped))
	return summary, nil
}

// Execute performs one action. Errors are captured on the Result rather than
// returned; a run never dies on one bad contact.
func (e *Executor) Execute(ctx context.Context, action scanner.RecommendedAction) Result {
	result, _ := e.execute(ctx, action)
	return result
}

func (e *Executor) execute(ctx context.Context, action scanner.RecommendedAction) (Result, error) {
	if e.contacts == nil {
		err := fmt.Errorf("contact reader not configured")
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}
	contact, err := e.contacts.GetByID(ctx, action.ContactID)
	if err != nil {
		err = fmt.Errorf("load contact: %w", err)
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}

	if smsBound(action) {
		if !contact.HasPhone() {
			// Non-retryable: a missing number will not fix itself by the
			// next run.
			err := fmt.Errorf("no phone number on file for sms action")
			return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
		}
		// The window is the one check most likely to have drifted between
		// scan and execute. Deferred, never dropped.
		if e.gate != nil {
			open, next := e.gate.CheckWindow(contact.Timezone)
			if !open {
				return Result{
					Action:        action,
					Status:        StatusDeferred,
					Detail:        "outside allowed hours at execution time",
					NextAttemptAt: &next,
				}, nil
			}
		}
	}

	switch action.Type {
	case scanner.ActionFirstContactSMS, scanner.ActionFirstContactEmail:
		return e.executeFirstContact(ctx, action, contact)
	case scanner.ActionFollowUpSMS, scanner.ActionFollowUpDue:
		return e.executeSend(ctx, action, contact)
	case scanner.ActionReengagementSMS, scanner.ActionReengagementEmail:
		return e.executeReengagement(ctx, action)
	case scanner.ActionEscalateHandoff:
		return e.executeEscalation(ctx, action)
	default:
		err := fmt.Errorf("unknown action type: %s", action.Type)
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}
}

// smsBound reports whether the action will actually go over SMS. A due
// follow-up carries its channel in the action context and may ride email, in
// which case the phone and window guards do not apply.
func smsBound(action scanner.RecommendedAction) bool {
	if action.Type == scanner.ActionFollowUpDue {
		raw, _ := action.MessageContext["channel"].(string)
		return raw == "" || raw == delivery.ChannelSMS.String()
	}
	return action.Type.SMSClass()
}

// executeFirstContact stamps the contact and hands the cadence to the
// sequence engine. The engine authors no message text; the sequence content
// is owned downstream.
func (e *Executor) executeFirstContact(ctx context.Context, action scanner.RecommendedAction, contact contacts.Contact) (Result, error) {
	if e.writer == nil || e.sequences == nil {
		err := fmt.Errorf("first-contact collaborators not configured")
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}
	if err := e.writer.MarkFirstContacted(ctx, contact.ID, e.now().UTC()); err != nil {
		err = fmt.Errorf("mark first contacted: %w", err)
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}
	channel := delivery.ChannelSMS
	if action.Type == scanner.ActionFirstContactEmail {
		channel = delivery.ChannelEmail
	}
	followUp, err := e.sequences.SchedulePending(ctx, sequence.ScheduleRequest{
		ContactID:      contact.ID,
		OrganizationID: contact.OrganizationID,
		Trigger:        "first_contact",
		Channel:        channel.String(),
		Context:        action.MessageContext,
	})
	if err != nil {
		err = fmt.Errorf("schedule first-contact sequence: %w", err)
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}
	return Result{
		Action: action,
		Status: StatusExecuted,
		Detail: fmt.Sprintf("first-contact sequence %s scheduled over %s", followUp.ID, channel),
	}, nil
}

// executeSend delivers a follow-up message now. The body arrives from the
// message generator via the action context.
func (e *Executor) executeSend(ctx context.Context, action scanner.RecommendedAction, contact contacts.Contact) (Result, error) {
	if e.sender == nil {
		err := fmt.Errorf("delivery sender not configured")
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}
	body, _ := action.MessageContext["body"].(string)
	if strings.TrimSpace(body) == "" {
		err := fmt.Errorf("no message body in action context")
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}
	channel := delivery.ChannelSMS
	if raw, ok := action.MessageContext["channel"].(string); ok && raw != "" {
		parsed, err := delivery.ParseChannel(raw)
		if err != nil {
			return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
		}
		channel = parsed
	}
	target := contact.Phone
	if channel == delivery.ChannelEmail {
		target = contact.Email
	}
	subject, _ := action.MessageContext["subject"].(string)

	err := e.sender.Send(ctx, delivery.Message{
		ContactID:      contact.ID,
		OrganizationID: contact.OrganizationID,
		Channel:        channel,
		To:             target,
		Subject:        subject,
		Body:           body,
	})
	if err != nil {
		err = fmt.Errorf("send %s: %w", channel, err)
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}

	if action.FollowUpID != "" && e.sequences != nil {
		if err := e.sequences.MarkSent(ctx, action.FollowUpID); err != nil {
			e.logger.Error("mark follow-up sent failed",
				slog.String("followup_id", action.FollowUpID),
				slog.Any("error", err))
		}
	}
	if channel == delivery.ChannelSMS && e.consent != nil {
		if _, err := e.consent.IncrementMessageCount(ctx, contact.ID, contact.OrganizationID, contact.Timezone); err != nil {
			e.logger.Error("increment message count failed",
				slog.String("contact_id", contact.ID),
				slog.Any("error", err))
		}
	}
	return Result{
		Action: action,
		Status: StatusExecuted,
		Detail: fmt.Sprintf("sent over %s", channel),
	}, nil
}

func (e *Executor) executeReengagement(ctx context.Context, action scanner.RecommendedAction) (Result, error) {
	if e.sequences == nil {
		err := fmt.Errorf("sequence scheduler not configured")
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}
	channel := delivery.ChannelSMS
	if action.Type == scanner.ActionReengagementEmail {
		channel = delivery.ChannelEmail
	}
	followUp, err := e.sequences.SchedulePending(ctx, sequence.ScheduleRequest{
		ContactID:      action.ContactID,
		OrganizationID: action.OrganizationID,
		Trigger:        "reengagement",
		Channel:        channel.String(),
		Context:        action.MessageContext,
	})
	if err != nil {
		err = fmt.Errorf("schedule re-engagement sequence: %w", err)
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}
	return Result{
		Action: action,
		Status: StatusExecuted,
		Detail: fmt.Sprintf("re-engagement sequence %s scheduled over %s", followUp.ID, channel),
	}, nil
}

func (e *Executor) executeEscalation(ctx context.Context, action scanner.RecommendedAction) (Result, error) {
	if e.escalations == nil {
		err := fmt.Errorf("escalation task creator not configured")
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}
	conversationID, _ := action.MessageContext["conversation_id"].(string)
	task, err := e.escalations.CreateTask(ctx, escalation.Task{
		ContactID:      action.ContactID,
		OrganizationID: action.OrganizationID,
		Title:          "Handed-off conversation needs a human reply",
		Detail:         fmt.Sprintf("%s (conversation %s)", action.Reason, conversationID),
	})
	if err != nil {
		err = fmt.Errorf("create escalation task: %w", err)
		return Result{Action: action, Status: StatusFailed, Detail: err.Error()}, err
	}
	return Result{
		Action: action,
		Status: StatusExecuted,
		Detail: fmt.Sprintf("escalation task %s created", task.ID),
	}, nil
}
