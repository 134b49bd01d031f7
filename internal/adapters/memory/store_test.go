package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func addRequest(t *testing.T, s *Store, id string, score int, createdAt time.Time) {
	t.Helper()
	req := &entities.NewTransportRequest{
		Patient:     &entities.Patient{ID: "p-" + id, PickupZone: entities.ZoneA, MobilityNeed: entities.MobilityNone, CreatedAt: createdAt},
		Appointment: &entities.Appointment{ID: "a-" + id, PatientID: "p-" + id, Destination: entities.DestinationHospital, ScheduledAt: createdAt.Add(24 * time.Hour), PriorityScore: score, Status: entities.AppointmentStatusScheduled},
		Task:        &entities.TransportTask{ID: id, AppointmentID: "a-" + id, Status: entities.TaskStatusRequested, SLAHours: 24, CreatedAt: createdAt},
	}
	require.NoError(t, s.Tasks().CreateRequest(context.Background(), req))
}

func addResource(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.Resources().Create(context.Background(), &entities.Resource{
		ID: id, Type: entities.ResourceTypeVolunteer, DisplayName: id, StartZone: entities.ZoneA, ReliabilityScore: 0.9, IsActive: true, CreatedAt: baseTime,
	}))
}

func assignTo(taskID, resourceID string) entities.TaskTransition {
	return entities.TaskTransition{
		TaskID:            taskID,
		ExpectedStatus:    entities.TaskStatusRequested,
		NewStatus:         entities.TaskStatusAssigned,
		NewResourceID:     entities.StringPtr(resourceID),
		CounterResourceID: resourceID,
		Counter:           entities.CounterTotalAssigned,
		At:                baseTime,
	}
}

func TestApplyTransition_OnlyOneConcurrentWinner(t *testing.T) {
	s := NewStore()
	addRequest(t, s, "task-1", 80, baseTime)
	for i := 0; i < 8; i++ {
		addResource(t, s, fmt.Sprintf("res-%d", i))
	}

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.Tasks().ApplyTransition(context.Background(), assignTo("task-1", fmt.Sprintf("res-%d", i)))
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)

	task, err := s.Tasks().GetByID(context.Background(), "task-1")
	require.NoError(t, err)
	require.NotNil(t, task.AssignedResourceID)

	winner, err := s.Resources().GetByID(context.Background(), *task.AssignedResourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, winner.TotalAssigned)
}

func TestApplyTransition_StaleResourceIsRefused(t *testing.T) {
	s := NewStore()
	addRequest(t, s, "task-1", 80, baseTime)
	addResource(t, s, "res-1")
	addResource(t, s, "res-2")

	ok, err := s.Tasks().ApplyTransition(context.Background(), assignTo("task-1", "res-1"))
	require.NoError(t, err)
	require.True(t, ok)

	decline := entities.TaskTransition{
		TaskID:             "task-1",
		ExpectedStatus:     entities.TaskStatusAssigned,
		ExpectedResourceID: entities.StringPtr("res-2"),
		NewStatus:          entities.TaskStatusRequested,
		IncrementDeclines:  true,
		CounterResourceID:  "res-2",
		Counter:            entities.CounterTotalDeclined,
		At:                 baseTime,
	}
	ok, err = s.Tasks().ApplyTransition(context.Background(), decline)
	require.NoError(t, err)
	assert.False(t, ok)

	task, _ := s.Tasks().GetByID(context.Background(), "task-1")
	assert.Equal(t, 0, task.DeclineCount)
	assert.True(t, task.AssignedTo("res-1"))
}

func TestApplyTransition_DeclineCountChangedSinceReadIsRefused(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	addRequest(t, s, "task-1", 78, baseTime)
	addResource(t, s, "res-1")

	ok, err := s.Tasks().ApplyTransition(ctx, assignTo("task-1", "res-1"))
	require.NoError(t, err)
	require.True(t, ok)

	seen := 0
	decline := entities.TaskTransition{
		TaskID:               "task-1",
		ExpectedStatus:       entities.TaskStatusAssigned,
		ExpectedResourceID:   entities.StringPtr("res-1"),
		ExpectedDeclineCount: &seen,
		NewStatus:            entities.TaskStatusRequested,
		IncrementDeclines:    true,
		CounterResourceID:    "res-1",
		Counter:              entities.CounterTotalDeclined,
		At:                   baseTime,
	}
	ok, err = s.Tasks().ApplyTransition(ctx, decline)
	require.NoError(t, err)
	require.True(t, ok)

	// back to ASSIGNED on the same resource, so only the count tells the rows apart
	returned := 1
	reassign := assignTo("task-1", "res-1")
	reassign.ExpectedDeclineCount = &returned
	ok, err = s.Tasks().ApplyTransition(ctx, reassign)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Tasks().ApplyTransition(ctx, decline)
	require.NoError(t, err)
	assert.False(t, ok)

	task, _ := s.Tasks().GetByID(ctx, "task-1")
	assert.Equal(t, entities.TaskStatusAssigned, task.Status)
	assert.Equal(t, 1, task.DeclineCount)
	res, _ := s.Resources().GetByID(ctx, "res-1")
	assert.Equal(t, 1, res.TotalDeclined)
}

func TestApplyTransition_InactiveResourceIsNotAssigned(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	addRequest(t, s, "task-1", 80, baseTime)
	addResource(t, s, "res-1")
	require.NoError(t, s.Resources().SetActive(ctx, "res-1", false))

	tr := assignTo("task-1", "res-1")
	tr.RequireActiveResource = true
	ok, err := s.Tasks().ApplyTransition(ctx, tr)
	require.NoError(t, err)
	assert.False(t, ok)

	task, _ := s.Tasks().GetByID(ctx, "task-1")
	assert.Equal(t, entities.TaskStatusRequested, task.Status)
	res, _ := s.Resources().GetByID(ctx, "res-1")
	assert.Equal(t, 0, res.TotalAssigned)
}

func TestApplyTransition_UnknownCounterResourceLeavesTaskUntouched(t *testing.T) {
	s := NewStore()
	addRequest(t, s, "task-1", 80, baseTime)

	ok, err := s.Tasks().ApplyTransition(context.Background(), assignTo("task-1", "ghost"))
	assert.False(t, ok)
	assert.True(t, apperrors.IsNotFound(err))

	task, _ := s.Tasks().GetByID(context.Background(), "task-1")
	assert.Equal(t, entities.TaskStatusRequested, task.Status)
	assert.Nil(t, task.AssignedResourceID)
}

func TestList_OrdersByPriorityThenAgeThenID(t *testing.T) {
	s := NewStore()
	addRequest(t, s, "task-c", 70, baseTime)
	addRequest(t, s, "task-b", 90, baseTime.Add(time.Minute))
	addRequest(t, s, "task-a", 90, baseTime.Add(time.Minute))
	addRequest(t, s, "task-d", 90, baseTime)

	tasks, err := s.Tasks().List(context.Background(), repositories.TaskFilter{Statuses: entities.OpenTaskStatuses})
	require.NoError(t, err)

	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	assert.Equal(t, []string{"task-d", "task-a", "task-b", "task-c"}, ids)

	top, err := s.Tasks().List(context.Background(), repositories.TaskFilter{Statuses: entities.OpenTaskStatuses, Limit: 1})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "task-d", top[0].ID)
}

func TestGetByID_ReturnsCopies(t *testing.T) {
	s := NewStore()
	addRequest(t, s, "task-1", 80, baseTime)

	task, err := s.Tasks().GetByID(context.Background(), "task-1")
	require.NoError(t, err)
	task.Status = entities.TaskStatusAccepted

	again, _ := s.Tasks().GetByID(context.Background(), "task-1")
	assert.Equal(t, entities.TaskStatusRequested, again.Status)

	_, err = s.Tasks().GetByID(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}
