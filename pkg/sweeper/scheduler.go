package sweeper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Cron schedules for the two expiry jobs.
const (
	ApprovalSchedule   = "*/30 * * * *"
	BreakpointSchedule = "*/15 * * * *"
)

// Scheduler runs both sweeps on their fixed intervals. The same sweeps stay
// invocable on demand through the job endpoints; running them twice is safe.
type Scheduler struct {
	logger      *slog.Logger
	cron        *cron.Cron
	approvals   *ApprovalSweeper
	breakpoints *BreakpointSweeper
}

// NewScheduler creates the sweep scheduler.
func NewScheduler(logger *slog.Logger, approvals *ApprovalSweeper, breakpoints *BreakpointSweeper) *Scheduler {
	return &Scheduler{
		logger:      logger.With("module", "sweep_scheduler"),
		cron:        cron.New(),
		approvals:   approvals,
		breakpoints: breakpoints,
	}
}

// Start registers both jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(ApprovalSchedule, func() {
		if _, err := s.approvals.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Scheduled approval sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule approval sweep: %w", err)
	}

	_, err = s.cron.AddFunc(BreakpointSchedule, func() {
		if _, err := s.breakpoints.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Scheduled breakpoint sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule breakpoint sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Sweep scheduler started",
		"approval_schedule", ApprovalSchedule,
		"breakpoint_schedule", BreakpointSchedule,
	)

	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.logger.Info("Sweep scheduler stopped")
}
