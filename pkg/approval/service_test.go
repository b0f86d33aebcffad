package approval

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanketsMane/Flowversal-sub007/pkg/models"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence/file"
)

func newService(t *testing.T) (*Service, persistence.ApprovalRepository) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	repo := store.ApprovalRepository()

	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo), repo
}

func approvalNode(config map[string]any) *models.WorkflowNode {
	return &models.WorkflowNode{ID: "approve-1", Type: models.NodeTypeHumanApproval, Config: config}
}

func testExecution() *models.WorkflowExecution {
	return &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1"}
}

func TestRequestCreatesPendingApproval(t *testing.T) {
	service, repo := newService(t)

	request, err := service.Request(context.Background(), testExecution(), approvalNode(map[string]any{
		"approvalType": "confirmation",
		"message":      "Release to production?",
		"timeoutHours": 2.0,
	}))
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusPending, request.Status)
	assert.Equal(t, "exec-1", request.ExecutionID)
	assert.Equal(t, "approve-1", request.NodeID)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Hour), request.TimeoutAt, time.Minute)

	stored, err := repo.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, stored.Status)
}

func TestRequestDefaultTimeoutIs24Hours(t *testing.T) {
	service, _ := newService(t)

	request, err := service.Request(context.Background(), testExecution(), approvalNode(map[string]any{}))
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), request.TimeoutAt, time.Minute)
}

func TestRequestRejectsInvalidConfig(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Request(context.Background(), testExecution(), approvalNode(map[string]any{
		"approvalType": "vibes",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "approvalType")
}

func TestDecideApproved(t *testing.T) {
	service, _ := newService(t)

	request, err := service.Request(context.Background(), testExecution(), approvalNode(map[string]any{}))
	require.NoError(t, err)

	resolved, result, err := service.Decide(context.Background(), request.ID, DecisionApproved, map[string]any{"note": "lgtm"})
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusApproved, resolved.Status)
	assert.True(t, result.Success)
	assert.Equal(t, DecisionApproved, result.Output["approvalDecision"])
	assert.Equal(t, "lgtm", result.Output["note"])
	assert.NotNil(t, result.Output["approvedAt"])
}

func TestDecideRejected(t *testing.T) {
	service, _ := newService(t)

	request, err := service.Request(context.Background(), testExecution(), approvalNode(map[string]any{}))
	require.NoError(t, err)

	resolved, result, err := service.Decide(context.Background(), request.ID, DecisionRejected, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusRejected, resolved.Status)
	assert.False(t, result.Success)
	assert.Equal(t, DecisionRejected, result.Output["approvalDecision"])
	assert.NotNil(t, result.Output["rejectedAt"])
}

func TestDecideTwiceLosesSecondTime(t *testing.T) {
	service, _ := newService(t)

	request, err := service.Request(context.Background(), testExecution(), approvalNode(map[string]any{}))
	require.NoError(t, err)

	_, _, err = service.Decide(context.Background(), request.ID, DecisionApproved, nil)
	require.NoError(t, err)

	_, _, err = service.Decide(context.Background(), request.ID, DecisionRejected, nil)
	require.Error(t, err)
	assert.True(t, persistence.IsApprovalResolved(err))
}

func TestDecideInvalidDecision(t *testing.T) {
	service, _ := newService(t)

	_, _, err := service.Decide(context.Background(), "whatever", "maybe", nil)
	require.ErrorIs(t, err, ErrInvalidDecision)
}

func TestExpireOnlyOnce(t *testing.T) {
	service, _ := newService(t)

	request, err := service.Request(context.Background(), testExecution(), approvalNode(map[string]any{}))
	require.NoError(t, err)

	won, err := service.Expire(context.Background(), request.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = service.Expire(context.Background(), request.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, won)
}

func TestValidateConfig(t *testing.T) {
	report := ValidateConfig(map[string]any{
		"approvalType": "quality_check",
		"timeoutHours": 0.5,
		"approvalFields": []any{
			map[string]any{"fieldName": "score", "fieldType": "number"},
		},
	})
	assert.True(t, report.Valid)

	report = ValidateConfig(map[string]any{
		"timeoutHours": -1.0,
		"approvalFields": []any{
			map[string]any{"fieldType": "emoji"},
		},
	})
	assert.False(t, report.Valid)
	assert.Len(t, report.Errors, 3)
}

func TestTimeoutResult(t *testing.T) {
	request := &models.ApprovalRequest{ID: "appr-1", TimeoutAt: time.Now().UTC()}

	result := TimeoutResult(request)

	assert.False(t, result.Success)
	assert.Equal(t, true, result.Output["approvalTimeout"])
}
