package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	// GetByID returns NotFound for unknown and soft-deleted appointments.
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update writes the editable fields while the appointment is still
	// scheduled or confirmed, else InvalidState.
	Update(ctx context.Context, a *Appointment) error
	// Transition moves the appointment to t.To only if its current status is
	// one of from, else InvalidState.
	Transition(ctx context.Context, id uuid.UUID, from []Status, t Transition) (*Appointment, error)
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	// LockSchedule serializes bookings of one doctor for the current transaction.
	LockSchedule(ctx context.Context, doctorID uuid.UUID) error
	HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error)
	List(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error)
}

// PatientAccess checks that a patient belongs to the practice.
type PatientAccess interface {
	CheckAccess(ctx context.Context, doctorID, patientID uuid.UUID) error
	CheckRead(ctx context.Context, doctorID, patientID uuid.UUID) error
}
