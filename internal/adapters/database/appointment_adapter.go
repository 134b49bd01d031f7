package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

var appointmentColumns = []string{
	"id", "patient_id", "destination", "scheduled_at", "urgency_tier",
	"distance_band", "winter_mode", "missed_history", "reason_code",
	"priority_score", "priority_breakdown", "status", "created_at", "updated_at",
}

var patientColumns = []string{
	"id", "pickup_zone", "mobility_need", "wheelchair_required", "external_ref", "created_at",
}

func columns(names []string) []interface{} {
	result := make([]interface{}, len(names))
	for i, n := range names {
		result[i] = n
	}
	return result
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(columns(appointmentColumns)...).
		From("appointments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment := &entities.Appointment{}
	err = a.client.DBX().GetContext(ctx, appointment, query, args...)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}
	return appointment, nil
}

// GetByIDs retrieves multiple appointments by their IDs
func (a *AppointmentAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Appointment, error) {
	if len(ids) == 0 {
		return []*entities.Appointment{}, nil
	}

	query, args, err := a.db.Select(columns(appointmentColumns)...).
		From("appointments").
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointments := []*entities.Appointment{}
	if err := a.client.DBX().SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to get appointments", err)
	}
	return appointments, nil
}

// PatientAdapter implements the PatientRepository interface
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a patient by ID
func (a *PatientAdapter) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	query, args, err := a.db.Select(columns(patientColumns)...).
		From("patients").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patient := &entities.Patient{}
	err = a.client.DBX().GetContext(ctx, patient, query, args...)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}
	return patient, nil
}

// GetByIDs retrieves multiple patients by their IDs
func (a *PatientAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Patient, error) {
	if len(ids) == 0 {
		return []*entities.Patient{}, nil
	}

	query, args, err := a.db.Select(columns(patientColumns)...).
		From("patients").
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patients := []*entities.Patient{}
	if err := a.client.DBX().SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to get patients", err)
	}
	return patients, nil
}
