package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

// TransportTaskAdapter implements the TransportTaskRepository interface
type TransportTaskAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewTransportTaskAdapter creates a new transport task adapter
func NewTransportTaskAdapter(client *postgres.Client) repositories.TransportTaskRepository {
	return &TransportTaskAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var taskColumns = []string{
	"id", "appointment_id", "status", "assigned_resource_id",
	"sla_hours", "decline_count", "created_at", "updated_at",
}

func qualified(alias string, columns []string) []interface{} {
	result := make([]interface{}, len(columns))
	for i, c := range columns {
		result[i] = goqu.I(alias + "." + c)
	}
	return result
}

// CreateRequest persists a patient, appointment and task in one transaction
func (a *TransportTaskAdapter) CreateRequest(ctx context.Context, req *entities.NewTransportRequest) error {
	if req == nil || req.Patient == nil || req.Appointment == nil || req.Task == nil {
		return apperrors.NewValidationError("patient, appointment and task are required")
	}
	p, appt, task := req.Patient, req.Appointment, req.Task

	inserts := []*goqu.InsertDataset{
		a.db.Insert("patients").Rows(goqu.Record{
			"id":                  p.ID,
			"pickup_zone":         string(p.PickupZone),
			"mobility_need":       string(p.MobilityNeed),
			"wheelchair_required": p.WheelchairRequired,
			"external_ref":        nullableString(p.ExternalRef),
			"created_at":          p.CreatedAt,
		}),
		a.db.Insert("appointments").Rows(goqu.Record{
			"id":                 appt.ID,
			"patient_id":         appt.PatientID,
			"destination":        string(appt.Destination),
			"scheduled_at":       appt.ScheduledAt,
			"urgency_tier":       appt.UrgencyTier,
			"distance_band":      appt.DistanceBand,
			"winter_mode":        appt.WinterMode,
			"missed_history":     appt.MissedHistory,
			"reason_code":        appt.ReasonCode,
			"priority_score":     appt.PriorityScore,
			"priority_breakdown": string(appt.PriorityBreakdown),
			"status":             string(appt.Status),
			"created_at":         appt.CreatedAt,
			"updated_at":         appt.UpdatedAt,
		}),
		a.db.Insert("transport_tasks").Rows(goqu.Record{
			"id":                   task.ID,
			"appointment_id":       task.AppointmentID,
			"status":               string(task.Status),
			"assigned_resource_id": nullableString(task.AssignedResourceID),
			"sla_hours":            task.SLAHours,
			"decline_count":        task.DeclineCount,
			"created_at":           task.CreatedAt,
			"updated_at":           task.UpdatedAt,
		}),
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, ds := range inserts {
		query, args, err := ds.ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build insert query", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperrors.NewInternalError("failed to create transport request", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit transport request", err)
	}
	return nil
}

// GetByID retrieves a task by ID
func (a *TransportTaskAdapter) GetByID(ctx context.Context, id string) (*entities.TransportTask, error) {
	query, args, err := a.db.Select(qualified("t", taskColumns)...).
		From(goqu.T("transport_tasks").As("t")).
		Where(goqu.I("t.id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	task := &entities.TransportTask{}
	err = a.client.DBX().GetContext(ctx, task, query, args...)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("task with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get task", err)
	}
	return task, nil
}

// GetDetail retrieves a task joined with its appointment and patient
func (a *TransportTaskAdapter) GetDetail(ctx context.Context, id string) (*entities.TaskDetail, error) {
	columns := append(qualified("t", taskColumns), qualified("a", appointmentColumns)...)
	columns = append(columns, qualified("p", patientColumns)...)

	query, args, err := a.db.Select(columns...).
		From(goqu.T("transport_tasks").As("t")).
		Join(goqu.T("appointments").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("t.appointment_id")))).
		Join(goqu.T("patients").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("a.patient_id")))).
		Where(goqu.I("t.id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	task := &entities.TransportTask{}
	appt := &entities.Appointment{}
	patient := &entities.Patient{}
	var assigned, externalRef sql.NullString
	var breakdown []byte

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&task.ID,
		&task.AppointmentID,
		&task.Status,
		&assigned,
		&task.SLAHours,
		&task.DeclineCount,
		&task.CreatedAt,
		&task.UpdatedAt,
		&appt.ID,
		&appt.PatientID,
		&appt.Destination,
		&appt.ScheduledAt,
		&appt.UrgencyTier,
		&appt.DistanceBand,
		&appt.WinterMode,
		&appt.MissedHistory,
		&appt.ReasonCode,
		&appt.PriorityScore,
		&breakdown,
		&appt.Status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
		&patient.ID,
		&patient.PickupZone,
		&patient.MobilityNeed,
		&patient.WheelchairRequired,
		&externalRef,
		&patient.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("task with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get task detail", err)
	}

	if assigned.Valid {
		task.AssignedResourceID = &assigned.String
	}
	if externalRef.Valid {
		patient.ExternalRef = &externalRef.String
	}
	appt.PriorityBreakdown = breakdown

	return &entities.TaskDetail{Task: task, Appointment: appt, Patient: patient}, nil
}

// ApplyTransition commits a compare-and-swap transition together with the resource
// counter bump and the appointment update. The task UPDATE is conditional on the expected
// status, resource and decline count; when it matches no row the transaction is rolled back
// and false is returned. An assignment whose resource was deactivated after it was read
// is rolled back the same way.
func (a *TransportTaskAdapter) ApplyTransition(ctx context.Context, tr entities.TaskTransition) (bool, error) {
	set := goqu.Record{
		"status":               string(tr.NewStatus),
		"assigned_resource_id": nullableString(tr.NewResourceID),
		"updated_at":           tr.At,
	}
	if tr.IncrementDeclines {
		set["decline_count"] = goqu.L("decline_count + 1")
	}
	if tr.SLAHours != nil {
		set["sla_hours"] = *tr.SLAHours
	}

	where := goqu.Ex{
		"id":                   tr.TaskID,
		"status":               string(tr.ExpectedStatus),
		"assigned_resource_id": nullableString(tr.ExpectedResourceID),
	}
	if tr.ExpectedDeclineCount != nil {
		where["decline_count"] = *tr.ExpectedDeclineCount
	}

	casQuery, casArgs, err := a.db.Update("transport_tasks").
		Set(set).
		Where(where).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build update query", err)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return false, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, casQuery, casArgs...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to update task", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if tr.Counter != "" {
		column := string(tr.Counter)
		counterWhere := goqu.Ex{"id": tr.CounterResourceID}
		if tr.RequireActiveResource {
			counterWhere["is_active"] = true
		}
		query, args, err := a.db.Update("resources").
			Set(goqu.Record{column: goqu.L(fmt.Sprintf("%s + 1", column))}).
			Where(counterWhere).
			ToSQL()
		if err != nil {
			return false, apperrors.NewInternalError("failed to build counter query", err)
		}
		err = execOne(ctx, tx, query, args, fmt.Sprintf("resource with id %s not found", tr.CounterResourceID))
		if tr.RequireActiveResource && apperrors.IsNotFound(err) {
			// missing or deactivated since it was read
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}

	if u := tr.Appointment; u != nil {
		query, args, err := a.db.Update("appointments").
			Set(goqu.Record{
				"scheduled_at":       u.ScheduledAt,
				"status":             string(u.Status),
				"priority_score":     u.PriorityScore,
				"priority_breakdown": string(u.PriorityBreakdown),
				"updated_at":         tr.At,
			}).
			Where(goqu.Ex{"id": u.AppointmentID}).
			ToSQL()
		if err != nil {
			return false, apperrors.NewInternalError("failed to build appointment update", err)
		}
		if err := execOne(ctx, tx, query, args, fmt.Sprintf("appointment with id %s not found", u.AppointmentID)); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.NewInternalError("failed to commit transition", err)
	}
	return true, nil
}

// List retrieves tasks ordered by appointment priority desc, created_at asc, id asc
func (a *TransportTaskAdapter) List(ctx context.Context, filter repositories.TaskFilter) ([]*entities.TransportTask, error) {
	ds := a.db.Select(qualified("t", taskColumns)...).
		From(goqu.T("transport_tasks").As("t")).
		Join(goqu.T("appointments").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("t.appointment_id")))).
		Order(goqu.I("a.priority_score").Desc(), goqu.I("t.created_at").Asc(), goqu.I("t.id").Asc())

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		ds = ds.Where(goqu.I("t.status").In(statuses))
	}
	if filter.AssignedResourceID != "" {
		ds = ds.Where(goqu.I("t.assigned_resource_id").Eq(filter.AssignedResourceID))
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	tasks := []*entities.TransportTask{}
	if err := a.client.DBX().SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list tasks", err)
	}
	return tasks, nil
}

func execOne(ctx context.Context, tx *sql.Tx, query string, args []interface{}, notFound string) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to execute update", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(notFound)
	}
	return nil
}

func nullableString(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
