package repositories

import (
	"context"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations.
// Appointments are created with their task through TransportTaskRepository.CreateRequest
// and rewritten only by a reschedule transition.
type AppointmentRepository interface {
	// GetByID retrieves an appointment by ID
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// GetByIDs retrieves multiple appointments by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Appointment, error)
}

// PatientRepository defines the interface for patient data operations
type PatientRepository interface {
	// GetByID retrieves a patient by ID
	GetByID(ctx context.Context, id string) (*entities.Patient, error)

	// GetByIDs retrieves multiple patients by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Patient, error)
}
