// Package sweeper implements the periodic expiry jobs for approval requests
// and breakpoints.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SanketsMane/Flowversal-sub007/pkg/approval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/eventbus"
	"github.com/SanketsMane/Flowversal-sub007/pkg/events"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
	"github.com/SanketsMane/Flowversal-sub007/pkg/runner"
)

// Job names used in logs and notification events.
const (
	ApprovalJobName   = "sweep-expired-approvals"
	BreakpointJobName = "sweep-expired-breakpoints"
)

// ApprovalSweeper expires pending approval requests whose timeout elapsed
// and fails their owning executions. Sweeping is idempotent: the conditional
// pending-to-expired transition excludes rows a previous or concurrent sweep
// already took.
type ApprovalSweeper struct {
	logger    *slog.Logger
	approvals persistence.ApprovalRepository
	service   *approval.Service
	runner    *runner.Runner
	publisher eventbus.EventPublisher
}

// NewApprovalSweeper creates the approval expiry job.
func NewApprovalSweeper(
	logger *slog.Logger,
	approvals persistence.ApprovalRepository,
	service *approval.Service,
	executionRunner *runner.Runner,
	publisher eventbus.EventPublisher,
) *ApprovalSweeper {
	return &ApprovalSweeper{
		logger:    logger.With("module", "approval_sweeper"),
		approvals: approvals,
		service:   service,
		runner:    executionRunner,
		publisher: publisher,
	}
}

// Sweep expires every due pending approval and returns how many records this
// invocation actually transitioned. On failure the error is logged, a
// best-effort notification is published, and the error is returned so the
// scheduler's retry and alerting apply.
func (s *ApprovalSweeper) Sweep(ctx context.Context) (int, error) {
	count, err := s.sweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Approval sweep failed", "error", err)
		s.notifyFailure(ctx, ApprovalJobName, err)

		return count, err
	}

	s.logger.InfoContext(ctx, "Approval sweep completed", "count", count)
	s.notifyCompleted(ctx, ApprovalJobName, count)

	return count, nil
}

func (s *ApprovalSweeper) sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	due, err := s.approvals.ListDuePending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due approvals: %w", err)
	}

	count := 0

	for _, request := range due {
		won, err := s.service.Expire(ctx, request.ID, now)
		if err != nil {
			return count, fmt.Errorf("failed to expire approval %s: %w", request.ID, err)
		}

		if !won {
			// Another sweep or a decision got there first.
			continue
		}

		if err := s.runner.ExpireApproval(ctx, request); err != nil {
			return count, fmt.Errorf("failed to apply timeout of approval %s: %w", request.ID, err)
		}

		count++
	}

	return count, nil
}

func (s *ApprovalSweeper) notifyCompleted(ctx context.Context, job string, count int) {
	if s.publisher == nil {
		return
	}

	event := events.SweepCompleted{
		BaseEvent: events.NewBaseEvent(events.SweepCompletedEvent, ""),
		Job:       job,
		Count:     count,
	}
	if err := s.publisher.Publish(ctx, job, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish sweep notification", "error", err)
	}
}

func (s *ApprovalSweeper) notifyFailure(ctx context.Context, job string, sweepErr error) {
	if s.publisher == nil {
		return
	}

	event := events.SweepFailed{
		BaseEvent: events.NewBaseEvent(events.SweepFailedEvent, ""),
		Job:       job,
		Error:     sweepErr.Error(),
	}
	if err := s.publisher.Publish(ctx, job, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish sweep failure notification", "error", err)
	}
}

// BreakpointSweeper deletes expired breakpoints. Deletion rather than a
// status transition: breakpoints are a debug construct without meaningful
// terminal states.
type BreakpointSweeper struct {
	logger      *slog.Logger
	breakpoints persistence.BreakpointRepository
	publisher   eventbus.EventPublisher
}

// NewBreakpointSweeper creates the breakpoint expiry job.
func NewBreakpointSweeper(logger *slog.Logger, breakpoints persistence.BreakpointRepository, publisher eventbus.EventPublisher) *BreakpointSweeper {
	return &BreakpointSweeper{
		logger:      logger.With("module", "breakpoint_sweeper"),
		breakpoints: breakpoints,
		publisher:   publisher,
	}
}

// Sweep deletes every expired breakpoint and returns how many this
// invocation removed. Delete reports whether the record was still present,
// so concurrent sweeps never double-count.
func (s *BreakpointSweeper) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	expired, err := s.breakpoints.ListExpired(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Breakpoint sweep failed", "error", err)
		s.notifyFailure(ctx, err)

		return 0, fmt.Errorf("failed to list expired breakpoints: %w", err)
	}

	count := 0

	for _, breakpoint := range expired {
		removed, err := s.breakpoints.Delete(ctx, breakpoint.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Breakpoint sweep failed", "error", err)
			s.notifyFailure(ctx, err)

			return count, fmt.Errorf("failed to delete breakpoint %s: %w", breakpoint.ID, err)
		}

		if removed {
			count++
		}
	}

	s.logger.InfoContext(ctx, "Breakpoint sweep completed", "count", count)

	if s.publisher != nil {
		event := events.SweepCompleted{
			BaseEvent: events.NewBaseEvent(events.SweepCompletedEvent, ""),
			Job:       BreakpointJobName,
			Count:     count,
		}
		if err := s.publisher.Publish(ctx, BreakpointJobName, event); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish sweep notification", "error", err)
		}
	}

	return count, nil
}

func (s *BreakpointSweeper) notifyFailure(ctx context.Context, sweepErr error) {
	if s.publisher == nil {
		return
	}

	event := events.SweepFailed{
		BaseEvent: events.NewBaseEvent(events.SweepFailedEvent, ""),
		Job:       BreakpointJobName,
		Error:     sweepErr.Error(),
	}
	if err := s.publisher.Publish(ctx, BreakpointJobName, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish sweep failure notification", "error", err)
	}
}
