package stats

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Dashboard(ctx context.Context, doctorID uuid.UUID, w Window) (*Dashboard, error)
}
