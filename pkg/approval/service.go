// Package approval implements the human-approval state machine: pending
// requests, decision resolution and timeout expiry.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
)

const defaultTimeout = 24 * time.Hour

// Decisions accepted by Decide.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// ErrInvalidDecision is returned when a decision callback carries something
// other than approved or rejected.
var ErrInvalidDecision = errors.New("decision must be 'approved' or 'rejected'")

// Service owns approval request lifecycle. Every transition out of pending
// goes through the repository's conditional Resolve, so a decision and a
// concurrent sweep settle on exactly one winner.
type Service struct {
	logger    *slog.Logger
	approvals persistence.ApprovalRepository
}

// NewService creates the approval service.
func NewService(logger *slog.Logger, approvals persistence.ApprovalRepository) *Service {
	return &Service{
		logger:    logger.With("module", "approval"),
		approvals: approvals,
	}
}

// Request validates the node configuration and persists a new pending
// approval request for the given execution and node.
func (s *Service) Request(ctx context.Context, execution *models.WorkflowExecution, node *models.WorkflowNode) (*models.ApprovalRequest, error) {
	report := ValidateConfig(node.Config)
	if !report.Valid {
		return nil, fmt.Errorf("invalid approval configuration: %v", report.Errors)
	}

	approvalType := models.ApprovalTypeManualReview
	if configured, ok := node.Config["approvalType"].(string); ok && configured != "" {
		approvalType = models.ApprovalType(configured)
	}

	timeout := defaultTimeout
	if hours, ok := node.Config["timeoutHours"].(float64); ok && hours > 0 {
		timeout = time.Duration(hours * float64(time.Hour))
	}

	message, _ := node.Config["message"].(string)
	requestedBy, _ := node.Config["requestedBy"].(string)

	now := time.Now().UTC()

	request := &models.ApprovalRequest{
		ID:           uuid.New().String(),
		ExecutionID:  execution.ID,
		NodeID:       node.ID,
		ApprovalType: approvalType,
		Status:       models.ApprovalStatusPending,
		Message:      message,
		RequestedBy:  requestedBy,
		Fields:       parseFields(node.Config),
		CreatedAt:    now,
		TimeoutAt:    now.Add(timeout),
	}

	if err := s.approvals.Save(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to persist approval request: %w", err)
	}

	s.logger.InfoContext(ctx, "Approval requested",
		"approval_id", request.ID,
		"execution_id", execution.ID,
		"node_id", node.ID,
		"timeout_at", request.TimeoutAt,
	)

	return request, nil
}

// Decide applies an external decision to a pending approval. It returns the
// resolved request together with the node result the execution driver should
// record: rejected decisions produce a failed result, approved decisions a
// successful one carrying the submitted payload. A request that already left
// pending yields persistence.ErrApprovalResolved.
func (s *Service) Decide(ctx context.Context, approvalID, decision string, approvalData map[string]any) (*models.ApprovalRequest, *models.NodeExecutionResult, error) {
	var status models.ApprovalStatus

	switch decision {
	case DecisionApproved:
		status = models.ApprovalStatusApproved
	case DecisionRejected:
		status = models.ApprovalStatusRejected
	default:
		return nil, nil, fmt.Errorf("%w: got %q", ErrInvalidDecision, decision)
	}

	request, err := s.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()

	won, err := s.approvals.Resolve(ctx, approvalID, status, now)
	if err != nil {
		return nil, nil, err
	}

	if !won {
		return nil, nil, fmt.Errorf("approval %s: %w", approvalID, persistence.ErrApprovalResolved)
	}

	request.Status = status
	request.ResolvedAt = &now

	if approvalData != nil {
		request.ApprovalData = approvalData

		if err := s.approvals.Save(ctx, request); err != nil {
			return nil, nil, fmt.Errorf("failed to persist approval data: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "Approval decided",
		"approval_id", approvalID,
		"decision", decision,
	)

	return request, decisionResult(request, now), nil
}

// Expire transitions a pending approval to expired. It returns false when
// the request already left pending, which makes repeated sweeps safe.
func (s *Service) Expire(ctx context.Context, approvalID string, now time.Time) (bool, error) {
	return s.approvals.Resolve(ctx, approvalID, models.ApprovalStatusExpired, now)
}

// TimeoutResult builds the node result recorded when an approval expires.
func TimeoutResult(request *models.ApprovalRequest) *models.NodeExecutionResult {
	result := models.FailedResult(fmt.Sprintf("approval %s timed out", request.ID))
	result.Output = map[string]any{
		"approvalId":      request.ID,
		"approvalTimeout": true,
		"expiredAt":       request.TimeoutAt,
	}

	return result
}

func decisionResult(request *models.ApprovalRequest, resolvedAt time.Time) *models.NodeExecutionResult {
	if request.Status == models.ApprovalStatusRejected {
		result := models.FailedResult(fmt.Sprintf("approval %s rejected", request.ID))
		result.Output = map[string]any{
			"approvalId":       request.ID,
			"approvalDecision": DecisionRejected,
			"rejectedAt":       resolvedAt,
		}

		return result
	}

	output := map[string]any{
		"approvalId":       request.ID,
		"approvalDecision": DecisionApproved,
		"approvedAt":       resolvedAt,
	}

	for key, value := range request.ApprovalData {
		output[key] = value
	}

	return models.SuccessResult(output)
}

// ValidateConfig checks a human-approval node configuration at save time.
// Failures are reported as a structured report, not at execution time.
func ValidateConfig(config map[string]any) models.ValidationReport {
	var errs []string

	if configured, ok := config["approvalType"].(string); ok && configured != "" {
		if !models.ValidApprovalType(models.ApprovalType(configured)) {
			errs = append(errs, fmt.Sprintf("unknown approvalType %q", configured))
		}
	}

	if raw, exists := config["timeoutHours"]; exists {
		hours, ok := raw.(float64)
		if !ok || hours <= 0 {
			errs = append(errs, "timeoutHours must be a positive number")
		}
	}

	if raw, exists := config["approvalFields"]; exists {
		fields, ok := raw.([]any)
		if !ok {
			errs = append(errs, "approvalFields must be a list")
		} else {
			for i, rawField := range fields {
				errs = append(errs, validateField(i, rawField)...)
			}
		}
	}

	return models.ValidationReport{Valid: len(errs) == 0, Errors: errs}
}

func validateField(index int, raw any) []string {
	field, ok := raw.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("approvalFields[%d] must be an object", index)}
	}

	var errs []string

	name, _ := field["fieldName"].(string)
	if name == "" {
		errs = append(errs, fmt.Sprintf("approvalFields[%d] missing fieldName", index))
	}

	fieldType, _ := field["fieldType"].(string)
	if !models.ValidApprovalFieldType(models.ApprovalFieldType(fieldType)) {
		errs = append(errs, fmt.Sprintf("approvalFields[%d] has invalid fieldType %q", index, fieldType))
	}

	return errs
}

func parseFields(config map[string]any) []models.ApprovalField {
	raw, ok := config["approvalFields"].([]any)
	if !ok {
		return nil
	}

	fields := make([]models.ApprovalField, 0, len(raw))

	for _, rawField := range raw {
		fieldMap, ok := rawField.(map[string]any)
		if !ok {
			continue
		}

		name, _ := fieldMap["fieldName"].(string)
		fieldType, _ := fieldMap["fieldType"].(string)
		label, _ := fieldMap["label"].(string)
		required, _ := fieldMap["required"].(bool)

		fields = append(fields, models.ApprovalField{
			FieldName: name,
			FieldType: models.ApprovalFieldType(fieldType),
			Label:     label,
			Required:  required,
		})
	}

	return fields
}
