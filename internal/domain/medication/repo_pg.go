package medication

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

type prescriptionRepoPG struct {
	pool *pgxpool.Pool
}

func NewPrescriptionRepo(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const prescriptionCols = `id, patient_id, doctor_id, appointment_id, medical_record_id, medications,
	instructions, status, issued_at, valid_until, cancellation_reason, cancelled_at, deleted_at,
	created_at, updated_at`

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (
			id, patient_id, doctor_id, appointment_id, medical_record_id, medications,
			instructions, status, issued_at, valid_until
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.DoctorID, p.AppointmentID, p.MedicalRecordID, p.Medications,
		p.Instructions, p.Status, p.IssuedAt, p.ValidUntil,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("prescription create: %w", db.MapError(err, "prescription"))
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, db.MapError(err, "prescription")
	}
	return p, nil
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE prescriptions SET medications=$2, instructions=$3, valid_until=$4, updated_at=NOW()
		WHERE id = $1 AND status = 'active' AND deleted_at IS NULL
		RETURNING updated_at`,
		p.ID, p.Medications, p.Instructions, p.ValidUntil,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.InvalidState("only active prescriptions can be modified")
	}
	if err != nil {
		return fmt.Errorf("prescription update: %w", err)
	}
	return nil
}

func (r *prescriptionRepoPG) Close(ctx context.Context, id uuid.UUID, status Status, reason *string, at time.Time) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `
		UPDATE prescriptions SET
			status = $2,
			cancellation_reason = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancellation_reason END,
			cancelled_at = CASE WHEN $2 = 'cancelled' THEN $4 ELSE cancelled_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND deleted_at IS NULL
		RETURNING `+prescriptionCols,
		id, string(status), reason, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.InvalidState(fmt.Sprintf("only active prescriptions can be %s", status))
	}
	if err != nil {
		return nil, fmt.Errorf("prescription %s: %w", status, err)
	}
	return p, nil
}

func (r *prescriptionRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE prescriptions SET deleted_at = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("prescription delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "prescription")
	}
	return nil
}

func (r *prescriptionRepoPG) List(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	where := []string{"doctor_id = $1", "deleted_at IS NULL"}
	args := []interface{}{doctorID}
	idx := 2

	if f.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(f.Status))
		idx++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM prescriptions WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("prescription count: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM prescriptions WHERE %s ORDER BY issued_at DESC LIMIT $%d OFFSET $%d",
		prescriptionCols, clause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("prescription list: %w", err)
	}
	defer rows.Close()

	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(
		&p.ID, &p.PatientID, &p.DoctorID, &p.AppointmentID, &p.MedicalRecordID, &p.Medications,
		&p.Instructions, &p.Status, &p.IssuedAt, &p.ValidUntil, &p.CancellationReason, &p.CancelledAt, &p.DeletedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- References backed by the appointments and medical_records tables --

type referencesPG struct {
	pool *pgxpool.Pool
}

func NewReferences(pool *pgxpool.Pool) References {
	return &referencesPG{pool: pool}
}

func (r *referencesPG) Appointment(ctx context.Context, id uuid.UUID) (*Ref, error) {
	return r.lookup(ctx, `SELECT patient_id, doctor_id FROM appointments WHERE id = $1 AND deleted_at IS NULL`, id, "appointment")
}

func (r *referencesPG) MedicalRecord(ctx context.Context, id uuid.UUID) (*Ref, error) {
	return r.lookup(ctx, `SELECT patient_id, doctor_id FROM medical_records WHERE id = $1 AND deleted_at IS NULL`, id, "medical record")
}

func (r *referencesPG) lookup(ctx context.Context, query string, id uuid.UUID, resource string) (*Ref, error) {
	var ref Ref
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(&ref.PatientID, &ref.DoctorID); err != nil {
		return nil, db.MapError(err, resource)
	}
	return &ref, nil
}
