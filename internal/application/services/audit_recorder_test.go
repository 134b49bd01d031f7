package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clearlink/backend/internal/adapters/memory"
	"github.com/zatekoja/clearlink/backend/internal/application/services"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
)

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, event *entities.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditRepository) CountByAction(ctx context.Context, entityID string, action entities.AuditAction) (int, error) {
	args := m.Called(ctx, entityID, action)
	return args.Int(0), args.Error(1)
}

func (m *MockAuditRepository) ListRecent(ctx context.Context, limit int) ([]*entities.AuditEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AuditEvent), args.Error(1)
}

func TestAuditRecorder_FailingSinkNeverBlocksTransitions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	auditRepo := new(MockAuditRepository)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(errors.New("audit store unavailable"))

	clock := providers.FixedClock{At: testNow}
	recorder := services.NewAuditRecorder(auditRepo, clock, 50*time.Millisecond, 0, nil)
	dispatch := services.NewDispatchService(env.store.Tasks(), env.store.Resources(), env.matcher, recorder, nil, clock, nil)

	res, err := dispatch.CreateTransportRequest(ctx, staff, urgentWheelchair())
	require.NoError(t, err)

	out, err := dispatch.AutoAssignTopTask(ctx, staff)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeSuccess, out.Result)
	assert.Equal(t, entities.TaskStatusAssigned, env.task(t, res.Task.ID).Status)
	auditRepo.AssertNumberOfCalls(t, "Append", 2)
}

func TestAuditRecorder_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	auditRepo := new(MockAuditRepository)
	auditRepo.On("Append", mock.Anything, mock.Anything).Return(errors.New("down"))

	recorder := services.NewAuditRecorder(auditRepo, nil, 0, 0, nil)
	for i := 0; i < 10; i++ {
		recorder.Record(ctx, staff, entities.AuditTaskAccepted, entities.EntityTypeTransportTask, "task-1", nil)
	}

	// five consecutive failures trip the breaker; later writes fail fast
	auditRepo.AssertNumberOfCalls(t, "Append", 5)
}

func TestAuditRecorder_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	recorder := services.NewAuditRecorder(store.Audit(), providers.FixedClock{At: testNow}, 0, 2, nil)

	recorder.Record(ctx, staff, entities.AuditTaskEscalatedToManual, entities.EntityTypeTransportTask, "task-1", map[string]interface{}{"previousStatus": "REQUESTED"})
	recorder.Record(ctx, maya, entities.AuditTaskAccepted, entities.EntityTypeTransportTask, "task-2", nil)
	recorder.Record(ctx, maya, entities.AuditTaskDeclinedRequeued, entities.EntityTypeTransportTask, "task-2", nil)

	recent, err := recorder.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, entities.AuditTaskDeclinedRequeued, recent[0].Action)
	assert.Equal(t, "u-maya", recent[0].ActorUserID)
	assert.Equal(t, entities.RoleDriver, recent[0].ActorRole)
	assert.Equal(t, testNow, recent[0].CreatedAt)
	assert.NotNil(t, recent[1].Metadata)

	count, err := store.Audit().CountByAction(ctx, "task-2", entities.AuditTaskAccepted)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
