package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
)

// WorkflowRepository stores workflows as whole documents keyed by _id.
type WorkflowRepository struct {
	collection *mongo.Collection
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	opts := options.Replace().SetUpsert(true)

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": workflow.ID}, workflow, opts)
	if err != nil {
		return &persistence.StoreError{Op: "save", Collection: workflowsCollection, ID: workflow.ID, Err: err}
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&workflow)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, persistence.ErrWorkflowNotFound
	}

	if err != nil {
		return nil, &persistence.StoreError{Op: "get", Collection: workflowsCollection, ID: id, Err: err}
	}

	return &workflow, nil
}

// ExecutionRepository stores workflow executions.
type ExecutionRepository struct {
	collection *mongo.Collection
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	opts := options.Replace().SetUpsert(true)

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": execution.ID}, execution, opts)
	if err != nil {
		return &persistence.StoreError{Op: "save", Collection: executionsCollection, ID: execution.ID, Err: err}
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&execution)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, persistence.ErrExecutionNotFound
	}

	if err != nil {
		return nil, &persistence.StoreError{Op: "get", Collection: executionsCollection, ID: id, Err: err}
	}

	return &execution, nil
}

// ApprovalRepository stores approval requests. Resolve is a conditional
// update so concurrent resolvers settle on exactly one winner.
type ApprovalRepository struct {
	collection *mongo.Collection
}

func (r *ApprovalRepository) Save(ctx context.Context, approval *models.ApprovalRequest) error {
	opts := options.Replace().SetUpsert(true)

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": approval.ID}, approval, opts)
	if err != nil {
		return &persistence.StoreError{Op: "save", Collection: approvalsCollection, ID: approval.ID, Err: err}
	}

	return nil
}

func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	var approval models.ApprovalRequest

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&approval)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, persistence.ErrApprovalNotFound
	}

	if err != nil {
		return nil, &persistence.StoreError{Op: "get", Collection: approvalsCollection, ID: id, Err: err}
	}

	return &approval, nil
}

func (r *ApprovalRepository) ListDuePending(ctx context.Context, now time.Time) ([]*models.ApprovalRequest, error) {
	filter := bson.M{
		"status":     models.ApprovalStatusPending,
		"timeout_at": bson.M{"$lte": now},
	}

	return r.find(ctx, filter)
}

func (r *ApprovalRepository) Resolve(ctx context.Context, id string, to models.ApprovalStatus, resolvedAt time.Time) (bool, error) {
	filter := bson.M{"_id": id, "status": models.ApprovalStatusPending}
	update := bson.M{"$set": bson.M{"status": to, "resolved_at": resolvedAt}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, &persistence.StoreError{Op: "resolve", Collection: approvalsCollection, ID: id, Err: err}
	}

	return result.ModifiedCount > 0, nil
}

func (r *ApprovalRepository) find(ctx context.Context, filter bson.M) ([]*models.ApprovalRequest, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, &persistence.StoreError{Op: "list", Collection: approvalsCollection, Err: err}
	}

	var approvals []*models.ApprovalRequest
	if err := cursor.All(ctx, &approvals); err != nil {
		return nil, &persistence.StoreError{Op: "list", Collection: approvalsCollection, Err: err}
	}

	return approvals, nil
}

// BreakpointRepository stores execution breakpoints.
type BreakpointRepository struct {
	collection *mongo.Collection
}

func (r *BreakpointRepository) Save(ctx context.Context, breakpoint *models.Breakpoint) error {
	opts := options.Replace().SetUpsert(true)

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": breakpoint.ID}, breakpoint, opts)
	if err != nil {
		return &persistence.StoreError{Op: "save", Collection: breakpointsCollection, ID: breakpoint.ID, Err: err}
	}

	return nil
}

func (r *BreakpointRepository) GetByNode(ctx context.Context, executionID, nodeID string) (*models.Breakpoint, error) {
	var breakpoint models.Breakpoint

	err := r.collection.FindOne(ctx, bson.M{"execution_id": executionID, "node_id": nodeID}).Decode(&breakpoint)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, persistence.ErrBreakpointNotFound
	}

	if err != nil {
		return nil, &persistence.StoreError{Op: "get", Collection: breakpointsCollection, Err: err}
	}

	return &breakpoint, nil
}

func (r *BreakpointRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Breakpoint, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return nil, &persistence.StoreError{Op: "list", Collection: breakpointsCollection, Err: err}
	}

	var breakpoints []*models.Breakpoint
	if err := cursor.All(ctx, &breakpoints); err != nil {
		return nil, &persistence.StoreError{Op: "list", Collection: breakpointsCollection, Err: err}
	}

	return breakpoints, nil
}

func (r *BreakpointRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, &persistence.StoreError{Op: "delete", Collection: breakpointsCollection, ID: id, Err: err}
	}

	return result.DeletedCount > 0, nil
}

func (r *BreakpointRepository) DeleteByExecution(ctx context.Context, executionID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"execution_id": executionID})
	if err != nil {
		return &persistence.StoreError{Op: "delete", Collection: breakpointsCollection, Err: err}
	}

	return nil
}
