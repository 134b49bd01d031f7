package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

func setupMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return postgres.NewClientFromDB(mockDB), mock
}

func strPtr(s string) *string { return &s }

func TestTransportTaskAdapter_ApplyTransition(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	assign := entities.TaskTransition{
		TaskID:            "task-1",
		ExpectedStatus:    entities.TaskStatusRequested,
		NewStatus:         entities.TaskStatusAssigned,
		NewResourceID:     strPtr("res-1"),
		CounterResourceID: "res-1",
		Counter:           entities.CounterTotalAssigned,
		At:                now,
	}

	t.Run("commits task update and counter together", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewTransportTaskAdapter(client)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "transport_tasks" SET .*"status"='ASSIGNED'.*"assigned_resource_id" IS NULL`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "resources" SET "total_assigned"=total_assigned \+ 1 WHERE \("id" = 'res-1'\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		applied, err := adapter.ApplyTransition(context.Background(), assign)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale compare-and-swap rolls back", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewTransportTaskAdapter(client)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "transport_tasks"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		applied, err := adapter.ApplyTransition(context.Background(), assign)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing resource aborts the transition", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewTransportTaskAdapter(client)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "transport_tasks"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "resources"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		applied, err := adapter.ApplyTransition(context.Background(), assign)
		assert.False(t, applied)
		assert.True(t, apperrors.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("decline increments the decline count", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewTransportTaskAdapter(client)

		decline := entities.TaskTransition{
			TaskID:             "task-1",
			ExpectedStatus:     entities.TaskStatusAssigned,
			ExpectedResourceID: strPtr("res-1"),
			NewStatus:          entities.TaskStatusManualRequired,
			IncrementDeclines:  true,
			CounterResourceID:  "res-1",
			Counter:            entities.CounterTotalDeclined,
			At:                 now,
		}

		mock.ExpectBegin()
		mock.ExpectExec(`"decline_count"=decline_count \+ 1`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`"total_declined"=total_declined \+ 1`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		applied, err := adapter.ApplyTransition(context.Background(), decline)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("decline is conditional on the decline count it was decided on", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewTransportTaskAdapter(client)

		seen := 0
		decline := entities.TaskTransition{
			TaskID:               "task-1",
			ExpectedStatus:       entities.TaskStatusAssigned,
			ExpectedResourceID:   strPtr("res-1"),
			ExpectedDeclineCount: &seen,
			NewStatus:            entities.TaskStatusRequested,
			IncrementDeclines:    true,
			CounterResourceID:    "res-1",
			Counter:              entities.CounterTotalDeclined,
			At:                   now,
		}

		// the row was declined and reassigned to res-1 since it was read
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "transport_tasks" SET .* WHERE .*"decline_count" = 0`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		applied, err := adapter.ApplyTransition(context.Background(), decline)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("assignment to a deactivated resource rolls back", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewTransportTaskAdapter(client)

		guarded := assign
		guarded.RequireActiveResource = true

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "transport_tasks"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "resources" SET "total_assigned"=total_assigned \+ 1 WHERE .*"is_active" IS TRUE`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		applied, err := adapter.ApplyTransition(context.Background(), guarded)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransportTaskAdapter_CreateRequest(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	req := &entities.NewTransportRequest{
		Patient: &entities.Patient{ID: "p-1", PickupZone: entities.ZoneA, MobilityNeed: entities.MobilityWheelchair, WheelchairRequired: true, CreatedAt: now},
		Appointment: &entities.Appointment{
			ID: "a-1", PatientID: "p-1", Destination: entities.DestinationHospital, ScheduledAt: now.Add(6 * time.Hour),
			ReasonCode: "DIALYSIS", PriorityScore: 80, PriorityBreakdown: []byte(`{}`), Status: entities.AppointmentStatusScheduled,
			CreatedAt: now, UpdatedAt: now,
		},
		Task: &entities.TransportTask{ID: "t-1", AppointmentID: "a-1", Status: entities.TaskStatusRequested, SLAHours: 12, CreatedAt: now, UpdatedAt: now},
	}

	t.Run("inserts all three rows in one transaction", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewTransportTaskAdapter(client)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "patients"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "appointments"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "transport_tasks"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, adapter.CreateRequest(context.Background(), req))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure rolls back", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewTransportTaskAdapter(client)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "patients"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "appointments"`).WillReturnError(errors.New("constraint violation"))
		mock.ExpectRollback()

		err := adapter.CreateRequest(context.Background(), req)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("incomplete request is rejected", func(t *testing.T) {
		client, _ := setupMockClient(t)
		adapter := NewTransportTaskAdapter(client)

		err := adapter.CreateRequest(context.Background(), &entities.NewTransportRequest{Patient: req.Patient})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestTransportTaskAdapter_GetByID(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewTransportTaskAdapter(client)

		rows := sqlmock.NewRows(taskColumns).
			AddRow("task-1", "a-1", "ASSIGNED", "res-1", 12, 1, now, now)
		mock.ExpectQuery(`SELECT .* FROM "transport_tasks" AS "t" WHERE \("t"."id" = 'task-1'\)`).WillReturnRows(rows)

		task, err := adapter.GetByID(context.Background(), "task-1")
		require.NoError(t, err)
		assert.Equal(t, entities.TaskStatusAssigned, task.Status)
		assert.True(t, task.AssignedTo("res-1"))
		assert.True(t, task.Returned())
	})

	t.Run("not found", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewTransportTaskAdapter(client)

		mock.ExpectQuery(`FROM "transport_tasks"`).WillReturnRows(sqlmock.NewRows(taskColumns))

		_, err := adapter.GetByID(context.Background(), "missing")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestTransportTaskAdapter_List(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	client, mock := setupMockClient(t)
	adapter := NewTransportTaskAdapter(client)

	rows := sqlmock.NewRows(taskColumns).
		AddRow("task-2", "a-2", "MANUAL_REQUIRED", nil, 12, 2, now, now).
		AddRow("task-1", "a-1", "REQUESTED", nil, 24, 0, now, now)
	mock.ExpectQuery(`IN \('REQUESTED', 'MANUAL_REQUIRED'\).*ORDER BY "a"."priority_score" DESC, "t"."created_at" ASC, "t"."id" ASC`).
		WillReturnRows(rows)

	tasks, err := adapter.List(context.Background(), repositories.TaskFilter{Statuses: entities.OpenTaskStatuses})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "task-2", tasks[0].ID)
	assert.Nil(t, tasks[0].AssignedResourceID)
	assert.Equal(t, 24, tasks[1].SLAHours)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZoneDistanceAdapter_Get(t *testing.T) {
	t.Run("known edge", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewZoneDistanceAdapter(client)

		mock.ExpectQuery(`SELECT "km" FROM "zone_distances"`).
			WillReturnRows(sqlmock.NewRows([]string{"km"}).AddRow(12.5))

		km, ok, err := adapter.Get(context.Background(), entities.ZoneA, entities.ZoneB)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 12.5, km)
	})

	t.Run("unknown edge is not an error", func(t *testing.T) {
		client, mock := setupMockClient(t)
		adapter := NewZoneDistanceAdapter(client)

		mock.ExpectQuery(`SELECT "km" FROM "zone_distances"`).
			WillReturnRows(sqlmock.NewRows([]string{"km"}))

		_, ok, err := adapter.Get(context.Background(), entities.ZoneA, entities.ZoneHospital)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestResourceAdapter_SetActive(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewResourceAdapter(client)

	mock.ExpectExec(`UPDATE "resources" SET "is_active"=FALSE WHERE \("id" = 'res-1'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "resources"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adapter.SetActive(context.Background(), "res-1", false))

	err := adapter.SetActive(context.Background(), "res-9", true)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceAdapter_Find(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	client, mock := setupMockClient(t)
	adapter := NewResourceAdapter(client)

	wheelchair := true
	rows := sqlmock.NewRows(resourceColumns).
		AddRow("res-1", "VAN", "Van 1", "u-1", true, "A", 0.9, true, 4, 1, now)
	mock.ExpectQuery(`"is_active" IS TRUE.*"wheelchair_ok" (=|IS) TRUE.*ORDER BY "id" ASC`).WillReturnRows(rows)

	resources, err := adapter.Find(context.Background(), repositories.ResourceFilter{ActiveOnly: true, WheelchairOK: &wheelchair})
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "u-1", *resources[0].DriverUserID)
	assert.Equal(t, entities.ZoneA, resources[0].StartZone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditAdapter_ListRecent(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	client, mock := setupMockClient(t)
	adapter := NewAuditAdapter(client)

	rows := sqlmock.NewRows([]string{"id", "actor_user_id", "actor_role", "action", "entity_type", "entity_id", "metadata", "created_at"}).
		AddRow("ev-2", "u-1", "DRIVER", "TASK_DECLINED_REQUEUED", "TransportTask", "task-1", []byte(`{"resourceId":"res-1"}`), now).
		AddRow("ev-1", "u-0", "STAFF", "TASK_ASSIGNED_MANUAL", "TransportTask", "task-1", []byte(`{}`), now.Add(-time.Minute))
	mock.ExpectQuery(`FROM "audit_events" ORDER BY "created_at" DESC, "id" DESC LIMIT 30`).WillReturnRows(rows)

	events, err := adapter.ListRecent(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, entities.AuditTaskDeclinedRequeued, events[0].Action)
	assert.Equal(t, "res-1", events[0].Metadata["resourceId"])
	assert.Equal(t, entities.RoleStaff, events[1].ActorRole)
}

func TestUserAdapter_GetByID(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	client, mock := setupMockClient(t)
	adapter := NewUserAdapter(client)

	mock.ExpectQuery(`FROM "users" WHERE \("id" = 'u-1'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "name", "created_at"}).AddRow("u-1", "DRIVER", "Maya", now))
	mock.ExpectQuery(`FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "name", "created_at"}))

	user, err := adapter.GetByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, entities.RoleDriver, user.Role)

	_, err = adapter.GetByID(context.Background(), "u-2")
	assert.True(t, apperrors.IsNotFound(err))
}
