package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/adamsch0100/leadsynergy-sub002/internal/executor"
)

// OrganizationLister enumerates the organizations with contacts under
// management.
type OrganizationLister interface {
	ListOrganizationIDs(ctx context.Context) ([]string, error)
}

// RunDriver drives one scan-and-execute pass.
type RunDriver interface {
	RunScan(ctx context.Context, organizationID string, execute bool, batchSize int) (executor.RunSummary, error)
}

// Runner triggers periodic runs for every organization, sequentially. One
// writer per organization is an engine-wide assumption; the loop never
// overlaps runs.
type Runner struct {
	orgs      OrganizationLister
	driver    RunDriver
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewRunner(log *slog.Logger, orgs OrganizationLister, driver RunDriver, interval time.Duration, batchSize int) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Runner{
		orgs:      orgs,
		driver:    driver,
		interval:  interval,
		batchSize: batchSize,
		logger:    log.With(slog.String("component", "schedule")),
	}
}

// Start blocks until the context is canceled, running one pass per tick.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.logger.Info("scheduler started", slog.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	orgIDs, err := r.orgs.ListOrganizationIDs(ctx)
	if err != nil {
		r.logger.Error("list organizations failed", slog.Any("error", err))
		return
	}
	for _, orgID := range orgIDs {
		if ctx.Err() != nil {
			return
		}
		summary, err := r.driver.RunScan(ctx, orgID, true, r.batchSize)
		if err != nil {
			r.logger.Error("scheduled run failed",
				slog.String("organization_id", orgID),
				slog.Any("error", err))
			continue
		}
		if summary.BreakerTripped {
			r.logger.Warn("scheduled run tripped the delivery breaker",
				slog.String("organization_id", orgID),
				slog.String("reason", summary.BreakerReason))
		}
	}
}
