package clinical

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RecordRepository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	// GetByID returns NotFound for soft-deleted records.
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	Update(ctx context.Context, r *MedicalRecord) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, doctorID uuid.UUID, f RecordFilter, limit, offset int) ([]*MedicalRecord, int, error)
}

type FileRepository interface {
	Create(ctx context.Context, f *MedicalFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalFile, error)
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, doctorID uuid.UUID, f FileFilter, limit, offset int) ([]*MedicalFile, int, error)
}

// PatientAccess is satisfied by the identity service.
type PatientAccess interface {
	CheckAccess(ctx context.Context, doctorID, patientID uuid.UUID) error
	CheckRead(ctx context.Context, doctorID, patientID uuid.UUID) error
}

// AppointmentDirectory resolves who an appointment belongs to.
type AppointmentDirectory interface {
	AppointmentRef(ctx context.Context, id uuid.UUID) (*AppointmentRef, error)
}
