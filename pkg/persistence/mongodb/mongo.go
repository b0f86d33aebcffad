// Package mongodb provides the MongoDB record store implementation.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
)

const (
	defaultDatabase = "flowversal"

	workflowsCollection   = "workflows"
	executionsCollection  = "workflow_executions"
	approvalsCollection   = "approval_requests"
	breakpointsCollection = "breakpoints"
)

// Persistence implements the record store over MongoDB collections. All
// operations are document-level read-modify-write with last-write-wins
// semantics; conditional updates carry their pre-state in the filter.
type Persistence struct {
	client *mongo.Client
	logger *slog.Logger

	workflows   *WorkflowRepository
	executions  *ExecutionRepository
	approvals   *ApprovalRepository
	breakpoints *BreakpointRepository
}

// NewPersistence connects to MongoDB and prepares the collections.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(defaultDatabase)

	p := &Persistence{
		client:      client,
		logger:      logger,
		workflows:   &WorkflowRepository{collection: database.Collection(workflowsCollection)},
		executions:  &ExecutionRepository{collection: database.Collection(executionsCollection)},
		approvals:   &ApprovalRepository{collection: database.Collection(approvalsCollection)},
		breakpoints: &BreakpointRepository{collection: database.Collection(breakpointsCollection)},
	}

	if err := p.ensureIndexes(ctx, database); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Persistence) ensureIndexes(ctx context.Context, database *mongo.Database) error {
	approvalIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "timeout_at", Value: 1}},
	}
	if _, err := database.Collection(approvalsCollection).Indexes().CreateOne(ctx, approvalIndex); err != nil {
		return fmt.Errorf("failed to create approval index: %w", err)
	}

	breakpointIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "execution_id", Value: 1}, {Key: "node_id", Value: 1}},
	}
	if _, err := database.Collection(breakpointsCollection).Indexes().CreateOne(ctx, breakpointIndex); err != nil {
		return fmt.Errorf("failed to create breakpoint index: %w", err)
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return p.approvals
}

func (p *Persistence) BreakpointRepository() persistence.BreakpointRepository {
	return p.breakpoints
}

// HealthCheck pings the primary.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return nil
}

// Close disconnects the client.
func (p *Persistence) Close(ctx context.Context) error {
	if err := p.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	return nil
}
