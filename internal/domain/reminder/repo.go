package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store finds reminder candidates and records what was sent.
type Store interface {
	// DueAppointments lists confirmed, live appointments starting in
	// [from, to] whose kind reminder is unsent.
	DueAppointments(ctx context.Context, kind Kind, from, to time.Time) ([]Due, error)
	MarkAppointment(ctx context.Context, id uuid.UUID, kind Kind, at time.Time) error

	// ExpiredTrials lists trialing doctors whose trial ended at or before now
	// and who were not told yet.
	ExpiredTrials(ctx context.Context, now time.Time) ([]TrialAccount, error)
	// MarkTrialExpired records the notice and moves the account to expired.
	MarkTrialExpired(ctx context.Context, id uuid.UUID, at time.Time) error

	// EndingTrials lists trialing doctors whose trial ends in (now, until]
	// and who have not been reminded.
	EndingTrials(ctx context.Context, now, until time.Time) ([]TrialAccount, error)
	MarkTrialReminded(ctx context.Context, id uuid.UUID, at time.Time) error
}
