package executor

import (
	"time"

	"github.com/adamsch0100/leadsynergy-sub002/internal/scanner"
)

// Status is the terminal outcome of one action execution attempt.
type Status string

const (
	// StatusExecuted means the side effect completed.
	StatusExecuted Status = "executed"
	// StatusDeferred means a compliance window closed between scan and
	// execute; the action is rescheduled, not dropped.
	StatusDeferred Status = "deferred"
	// StatusSkipped means the run-scoped circuit breaker suppressed the
	// action.
	StatusSkipped Status = "skipped"
	// StatusFailed means the attempt errored; Detail carries the cause.
	StatusFailed Status = "failed"
	// StatusDryRun means the run was advisory and no side effect ran.
	StatusDryRun Status = "dry_run"
)

// Result is the per-action outcome record.
type Result struct {
	Action        scanner.RecommendedAction `json:"action"`
	Status        Status                    `json:"status"`
	Detail        string                    `json:"detail,omitempty"`
	NextAttemptAt *time.Time                `json:"next_attempt_at,omitempty"`
}

// RunSummary aggregates one scan-and-execute pass for an organization.
type RunSummary struct {
	OrganizationID string     `json:"organization_id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
	DryRun         bool       `json:"dry_run"`
	Scanned        int        `json:"scanned"`
	Executed       int        `json:"executed"`
	Deferred       int        `json:"deferred"`
	Skipped        int        `json:"skipped"`
	Failed         int        `json:"failed"`
	BreakerTripped bool       `json:"breaker_tripped"`
	BreakerReason  string     `json:"breaker_reason,omitempty"`
	ScanWarning    string     `json:"scan_warning,omitempty"`
	Results        []Result   `json:"results"`
}

func (s *RunSummary) record(result Result) {
	s.Results = append(s.Results, result)
	switch result.Status {
	case StatusExecuted:
		s.Executed++
	case StatusDeferred:
		s.Deferred++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}
