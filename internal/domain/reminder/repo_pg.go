package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacigest/pacigest/internal/platform/db"
)

// batchSize caps the candidates handled per stage and tick. Leftovers are
// picked up by the next tick.
const batchSize = 500

type storePG struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, s.pool)
}

func markerColumn(kind Kind) string {
	if kind == Kind2h {
		return "reminder_2h_sent_at"
	}
	return "reminder_24h_sent_at"
}

func (s *storePG) DueAppointments(ctx context.Context, kind Kind, from, to time.Time) ([]Due, error) {
	col := markerColumn(kind)
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT a.id, a.start_time, a.type,
			p.first_name || ' ' || p.last_name, p.email,
			u.first_name || ' ' || u.last_name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users u ON u.id = a.doctor_id
		WHERE a.status = 'confirmed' AND a.deleted_at IS NULL AND p.status <> 'deleted'
			AND a.start_time BETWEEN $1 AND $2 AND a.`+col+` IS NULL
		ORDER BY a.start_time
		LIMIT $3`, from, to, batchSize)
	if err != nil {
		return nil, fmt.Errorf("due %s reminders: %w", kind, err)
	}
	defer rows.Close()

	var due []Due
	for rows.Next() {
		var d Due
		if err := rows.Scan(&d.AppointmentID, &d.StartTime, &d.Type, &d.PatientName, &d.PatientEmail, &d.DoctorName); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (s *storePG) MarkAppointment(ctx context.Context, id uuid.UUID, kind Kind, at time.Time) error {
	col := markerColumn(kind)
	_, err := s.conn(ctx).Exec(ctx,
		`UPDATE appointments SET `+col+` = $2, updated_at = NOW() WHERE id = $1 AND `+col+` IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("mark %s reminder: %w", kind, err)
	}
	return nil
}

func (s *storePG) ExpiredTrials(ctx context.Context, now time.Time) ([]TrialAccount, error) {
	return s.trials(ctx, `
		SELECT id, email, first_name || ' ' || last_name, trial_ends_at
		FROM users
		WHERE role = 'doctor' AND subscription_status = 'trialing' AND is_active AND is_verified
			AND trial_ends_at <= $1 AND trial_expired_notified_at IS NULL
		ORDER BY trial_ends_at
		LIMIT $2`, now, batchSize)
}

func (s *storePG) MarkTrialExpired(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.conn(ctx).Exec(ctx, `
		UPDATE users SET trial_expired_notified_at = $2, subscription_status = 'expired', updated_at = NOW()
		WHERE (id = $1 OR doctor_id = $1) AND subscription_status = 'trialing'`, id, at)
	if err != nil {
		return fmt.Errorf("mark trial expired: %w", err)
	}
	return nil
}

func (s *storePG) EndingTrials(ctx context.Context, now, until time.Time) ([]TrialAccount, error) {
	return s.trials(ctx, `
		SELECT id, email, first_name || ' ' || last_name, trial_ends_at
		FROM users
		WHERE role = 'doctor' AND subscription_status = 'trialing' AND is_active AND is_verified
			AND trial_ends_at > $1 AND trial_ends_at <= $2 AND trial_reminder_sent_at IS NULL
		ORDER BY trial_ends_at
		LIMIT $3`, now, until, batchSize)
}

func (s *storePG) MarkTrialReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.conn(ctx).Exec(ctx,
		`UPDATE users SET trial_reminder_sent_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark trial reminded: %w", err)
	}
	return nil
}

func (s *storePG) trials(ctx context.Context, query string, args ...interface{}) ([]TrialAccount, error) {
	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("trial accounts: %w", err)
	}
	defer rows.Close()
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TrialAccount, error) {
		var t TrialAccount
		err := row.Scan(&t.UserID, &t.Email, &t.Name, &t.TrialEndsAt)
		return t, err
	})
}
