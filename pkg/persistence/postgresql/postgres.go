// Package postgresql provides the PostgreSQL record store implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence/sqlbase"
)

// Persistence implements the record store over PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	workflows   *WorkflowRepository
	executions  *ExecutionRepository
	approvals   *ApprovalRepository
	breakpoints *BreakpointRepository
}

// NewPersistence connects to PostgreSQL and runs migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:          database,
		logger:      logger,
		workflows:   &WorkflowRepository{db: database},
		executions:  &ExecutionRepository{db: database},
		approvals:   &ApprovalRepository{db: database},
		breakpoints: &BreakpointRepository{db: database},
	}, nil
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

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				owner TEXT NOT NULL,
				nodes JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS workflow_executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				user_id TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				input JSONB,
				variables JSONB,
				step_results JSONB,
				triggered_by TEXT NOT NULL DEFAULT '',
				trigger_data JSONB,
				ai_tokens_used INTEGER NOT NULL DEFAULT 0,
				api_calls_made INTEGER NOT NULL DEFAULT 0,
				error JSONB,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow ON workflow_executions (workflow_id);
			CREATE INDEX IF NOT EXISTS idx_executions_status ON workflow_executions (status);

			CREATE TABLE IF NOT EXISTS approval_requests (
				id TEXT PRIMARY KEY,
				execution_id TEXT NOT NULL,
				node_id TEXT NOT NULL,
				approval_type TEXT NOT NULL,
				status TEXT NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				requested_by TEXT NOT NULL DEFAULT '',
				approval_data JSONB,
				fields JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				timeout_at TIMESTAMP WITH TIME ZONE NOT NULL,
				resolved_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_approvals_pending_timeout
				ON approval_requests (timeout_at) WHERE status = 'pending';

			CREATE TABLE IF NOT EXISTS breakpoints (
				id TEXT PRIMARY KEY,
				execution_id TEXT NOT NULL,
				node_id TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_breakpoints_execution ON breakpoints (execution_id);
		`,
	}
}
