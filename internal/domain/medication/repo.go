package medication

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	// GetByID returns NotFound for soft-deleted prescriptions.
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	// Update writes the editable fields only while the prescription is
	// active, otherwise it returns InvalidState.
	Update(ctx context.Context, p *Prescription) error
	// Close moves an active prescription to status. A prescription that is no
	// longer active yields InvalidState.
	Close(ctx context.Context, id uuid.UUID, status Status, reason *string, at time.Time) (*Prescription, error)
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Prescription, int, error)
}

// PatientAccess is satisfied by the identity service.
type PatientAccess interface {
	CheckAccess(ctx context.Context, doctorID, patientID uuid.UUID) error
	CheckRead(ctx context.Context, doctorID, patientID uuid.UUID) error
}

// References resolves the owners of appointments and medical records a
// prescription can be linked to.
type References interface {
	Appointment(ctx context.Context, id uuid.UUID) (*Ref, error)
	MedicalRecord(ctx context.Context, id uuid.UUID) (*Ref, error)
}
