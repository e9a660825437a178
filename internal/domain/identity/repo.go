package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	Restore(ctx context.Context, id uuid.UUID) error
	AddDoctor(ctx context.Context, id, doctorID uuid.UUID) error
	List(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Patient, int, error)
}

// DoctorDirectory answers whether an account is an active doctor.
type DoctorDirectory interface {
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}
