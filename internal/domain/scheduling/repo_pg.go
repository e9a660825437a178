package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/db"
)

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_id, doctor_id, start_time, duration_minutes, type, status, reason, notes,
	cancellation_reason, cancelled_by, cancelled_at, confirmed_at, completed_at,
	reminder_24h_sent_at, reminder_2h_sent_at, created_by, deleted_at, created_at, updated_at`

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, start_time, duration_minutes, type, status, reason, notes, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.StartTime, a.DurationMinutes, a.Type, a.Status, a.Reason, a.Notes, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("appointment create: %w", db.MapError(err, "appointment"))
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, db.MapError(err, "appointment")
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET
			start_time=$2, duration_minutes=$3, type=$4, reason=$5, notes=$6,
			reminder_24h_sent_at=$7, reminder_2h_sent_at=$8, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL AND status = ANY($9)
		RETURNING updated_at`,
		a.ID, a.StartTime, a.DurationMinutes, a.Type, a.Reason, a.Notes,
		a.Reminder24hSentAt, a.Reminder2hSentAt, statusStrings(editableStatuses),
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.InvalidState("appointment can no longer be modified")
	}
	if err != nil {
		return fmt.Errorf("appointment update: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) Transition(ctx context.Context, id uuid.UUID, from []Status, t Transition) (*Appointment, error) {
	var set string
	switch t.To {
	case StatusConfirmed:
		set = "confirmed_at = $3"
	case StatusCompleted:
		set = "completed_at = $3"
	case StatusCancelled:
		set = "cancelled_at = $3, cancelled_by = $4, cancellation_reason = $5"
	default:
		return nil, fmt.Errorf("appointment transition: unsupported target %q", t.To)
	}

	args := []interface{}{id, t.To, t.At}
	if t.To == StatusCancelled {
		args = append(args, t.CancelledBy, t.Reason)
	}
	args = append(args, statusStrings(from))
	query := fmt.Sprintf(`
		UPDATE appointments SET status = $2, %s, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND status = ANY($%d)
		RETURNING `+apptCols, set, len(args))

	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.InvalidState(fmt.Sprintf("appointment cannot move to %s", t.To))
	}
	if err != nil {
		return nil, fmt.Errorf("appointment transition: %w", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET deleted_at = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("appointment delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment")
	}
	return nil
}

func (r *appointmentRepoPG) LockSchedule(ctx context.Context, doctorID uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, doctorID.String()); err != nil {
		return fmt.Errorf("lock schedule: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	var overlap bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND deleted_at IS NULL
			  AND status IN ('scheduled', 'confirmed')
			  AND start_time < $3
			  AND start_time + make_interval(mins => duration_minutes) > $2
			  AND ($4::uuid IS NULL OR id <> $4::uuid)
		)`, doctorID, start, end, exclude).Scan(&overlap)
	if err != nil {
		return false, fmt.Errorf("appointment overlap: %w", err)
	}
	return overlap, nil
}

func (r *appointmentRepoPG) List(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := []string{"doctor_id = $1", "deleted_at IS NULL"}
	args := []interface{}{doctorID}
	idx := 2

	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, *f.PatientID)
		idx++
	}
	if f.From != nil {
		where = append(where, fmt.Sprintf("start_time >= $%d", idx))
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where = append(where, fmt.Sprintf("start_time < $%d", idx))
		args = append(args, *f.To)
		idx++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM appointments WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("appointment count: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM appointments WHERE %s ORDER BY start_time LIMIT $%d OFFSET $%d",
		apptCols, clause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("appointment list: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.StartTime, &a.DurationMinutes, &a.Type, &a.Status, &a.Reason, &a.Notes,
		&a.CancellationReason, &a.CancelledBy, &a.CancelledAt, &a.ConfirmedAt, &a.CompletedAt,
		&a.Reminder24hSentAt, &a.Reminder2hSentAt, &a.CreatedBy, &a.DeletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func statusStrings(in []Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
