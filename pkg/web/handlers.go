// Package web provides the HTTP surface of the orchestrator: run and resume
// entry points, sweep jobs, and a minimal workflow and breakpoint API.
package web

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/SanketsMane/Flowversal-sub007/pkg/approval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
	"github.com/SanketsMane/Flowversal-sub007/pkg/runner"
	"github.com/SanketsMane/Flowversal-sub007/pkg/sweeper"
)

const defaultBreakpointTTL = time.Hour

type APIHandlers struct {
	store           persistence.Persistence
	runner          *runner.Runner
	approvalSweep   *sweeper.ApprovalSweeper
	breakpointSweep *sweeper.BreakpointSweeper
	validator       *validator.Validate
}

func NewAPIHandlers(
	store persistence.Persistence,
	executionRunner *runner.Runner,
	approvalSweep *sweeper.ApprovalSweeper,
	breakpointSweep *sweeper.BreakpointSweeper,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		store:           store,
		runner:          executionRunner,
		approvalSweep:   approvalSweep,
		breakpointSweep: breakpointSweep,
		validator:       validate,
	}
}

// RunExecution is the scheduler's run entry point.
func (h *APIHandlers) RunExecution(c fiber.Ctx) error {
	var req runner.RunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.runner.Run(c.Context(), &req)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(result)
}

// ResumeApproval is the approval decision callback.
func (h *APIHandlers) ResumeApproval(c fiber.Ctx) error {
	var req runner.ResumeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.runner.ResumeApproval(c.Context(), &req)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.store.ExecutionRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(execution)
}

// SweepApprovals triggers the approval expiry job on demand.
func (h *APIHandlers) SweepApprovals(c fiber.Ctx) error {
	count, err := h.approvalSweep.Sweep(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(SweepResponse{Count: count})
}

// SweepBreakpoints triggers the breakpoint expiry job on demand.
func (h *APIHandlers) SweepBreakpoints(c fiber.Ctx) error {
	count, err := h.breakpointSweep.Sweep(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(SweepResponse{Count: count})
}

func (h *APIHandlers) CreateBreakpoint(c fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req CreateBreakpointRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.store.ExecutionRepository().GetByID(c.Context(), executionID); err != nil {
		return handleError(c, err)
	}

	ttl := defaultBreakpointTTL
	if req.ExpiresInMinutes > 0 {
		ttl = time.Duration(req.ExpiresInMinutes * float64(time.Minute))
	}

	now := time.Now().UTC()

	breakpoint := &models.Breakpoint{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		NodeID:      req.NodeID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	if err := h.store.BreakpointRepository().Save(c.Context(), breakpoint); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(breakpoint)
}

func (h *APIHandlers) DeleteBreakpoint(c fiber.Ctx) error {
	executionID := c.Params("id")
	nodeID := c.Params("nodeId")

	if executionID == "" || nodeID == "" {
		return badRequest(c, "Execution ID and node ID are required")
	}

	breakpoint, err := h.store.BreakpointRepository().GetByNode(c.Context(), executionID, nodeID)
	if err != nil {
		return handleError(c, err)
	}

	if _, err := h.store.BreakpointRepository().Delete(c.Context(), breakpoint.ID); err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if report := validateApprovalNodes(req.Nodes); !report.Valid {
		return c.Status(fiber.StatusBadRequest).JSON(report)
	}

	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		Nodes:       req.Nodes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if err := h.store.WorkflowRepository().Save(c.Context(), workflow); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

// validateApprovalNodes checks every human-approval node's configuration at
// save time, so a misconfigured approval never surfaces as a runtime node
// failure.
func validateApprovalNodes(nodes []*models.WorkflowNode) models.ValidationReport {
	var errs []string

	for _, node := range nodes {
		if node.Type != models.NodeTypeHumanApproval {
			continue
		}

		report := approval.ValidateConfig(node.Config)
		for _, msg := range report.Errors {
			errs = append(errs, fmt.Sprintf("node %s: %s", node.ID, msg))
		}
	}

	return models.ValidationReport{Valid: len(errs) == 0, Errors: errs}
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.store.WorkflowRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.store.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
	}

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
