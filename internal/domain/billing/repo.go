package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pacigest/pacigest/internal/domain/account"
)

// StatusChange carries the fields written with a payment transition.
type StatusChange struct {
	To     Status
	At     time.Time
	Reason *string
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// Transition moves the payment to c.To only if its current status is from.
	// Otherwise it returns InvalidState.
	Transition(ctx context.Context, id uuid.UUID, from Status, c StatusChange) (*Payment, error)
	List(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Payment, int, error)
}

// SubscriptionStore reads and writes the subscription columns of users.
type SubscriptionStore interface {
	// Get locks the doctor's row when called inside a transaction.
	Get(ctx context.Context, doctorID uuid.UUID) (*Subscription, error)
	// Renew activates plan until endsAt for the doctor and their staff.
	Renew(ctx context.Context, doctorID uuid.UUID, plan account.Plan, endsAt time.Time) error
}
