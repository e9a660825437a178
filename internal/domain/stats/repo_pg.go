package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacigest/pacigest/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

// dashboardSQL computes every counter in one round trip. $1 doctor, $2 now,
// $3/$4 day bounds, $5/$6 month bounds.
const dashboardSQL = `
SELECT
	(SELECT COUNT(*) FROM patients
		WHERE $1 = ANY(doctor_ids) AND status <> 'deleted'),
	(SELECT COUNT(*) FROM patients
		WHERE $1 = ANY(doctor_ids) AND status <> 'deleted' AND created_at >= $5 AND created_at < $6),
	(SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1 AND deleted_at IS NULL AND status <> 'cancelled'
		AND start_time >= $3 AND start_time < $4),
	(SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1 AND deleted_at IS NULL AND status IN ('scheduled', 'confirmed')
		AND start_time > $2),
	(SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1 AND deleted_at IS NULL AND status = 'completed'
		AND start_time >= $5 AND start_time < $6),
	(SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1 AND deleted_at IS NULL AND status = 'cancelled'
		AND start_time >= $5 AND start_time < $6),
	(SELECT COUNT(*) FROM medical_records
		WHERE doctor_id = $1 AND deleted_at IS NULL AND visit_date >= $5 AND visit_date < $6),
	(SELECT COUNT(*) FROM prescriptions
		WHERE doctor_id = $1 AND deleted_at IS NULL AND status = 'active'),
	(SELECT COALESCE(SUM(amount_cents), 0) FROM payments
		WHERE doctor_id = $1 AND status = 'completed' AND paid_at >= $5 AND paid_at < $6)`

func (r *repoPG) Dashboard(ctx context.Context, doctorID uuid.UUID, w Window) (*Dashboard, error) {
	d := Dashboard{DoctorID: doctorID, GeneratedAt: w.Now}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, dashboardSQL,
		doctorID, w.Now, w.DayStart, w.DayEnd, w.MonthStart, w.MonthEnd,
	).Scan(
		&d.PatientsTotal, &d.NewPatientsThisMonth, &d.AppointmentsToday, &d.UpcomingAppointments,
		&d.CompletedThisMonth, &d.CancelledThisMonth, &d.RecordsThisMonth, &d.ActivePrescriptions,
		&d.RevenueThisMonthCents,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &d, nil
}
