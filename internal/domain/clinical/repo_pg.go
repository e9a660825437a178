package clinical

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacigest/pacigest/internal/platform/db"
)

// -- Medical records --

type recordRepoPG struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `id, patient_id, doctor_id, appointment_id, visit_date, chief_complaint, symptoms,
	diagnosis, treatment, notes, vital_signs, follow_up_date, deleted_at, created_at, updated_at`

func (r *recordRepoPG) Create(ctx context.Context, m *MedicalRecord) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (
			id, patient_id, doctor_id, appointment_id, visit_date, chief_complaint, symptoms,
			diagnosis, treatment, notes, vital_signs, follow_up_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.DoctorID, m.AppointmentID, m.VisitDate, m.ChiefComplaint, nonNil(m.Symptoms),
		m.Diagnosis, m.Treatment, m.Notes, m.VitalSigns, m.FollowUpDate,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("medical record create: %w", db.MapError(err, "medical record"))
	}
	return nil
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	m, err := scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, db.MapError(err, "medical record")
	}
	return m, nil
}

func (r *recordRepoPG) Update(ctx context.Context, m *MedicalRecord) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_records SET
			visit_date=$2, chief_complaint=$3, symptoms=$4, diagnosis=$5, treatment=$6, notes=$7,
			vital_signs=$8, follow_up_date=$9, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`,
		m.ID, m.VisitDate, m.ChiefComplaint, nonNil(m.Symptoms), m.Diagnosis, m.Treatment, m.Notes,
		m.VitalSigns, m.FollowUpDate,
	).Scan(&m.UpdatedAt)
	if err != nil {
		return db.MapError(err, "medical record")
	}
	return nil
}

func (r *recordRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return softDelete(ctx, r.conn(ctx), "medical_records", "medical record", id, at)
}

func (r *recordRepoPG) List(ctx context.Context, doctorID uuid.UUID, f RecordFilter, limit, offset int) ([]*MedicalRecord, int, error) {
	where := []string{"doctor_id = $1", "deleted_at IS NULL"}
	args := []interface{}{doctorID}
	idx := 2

	if f.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, *f.PatientID)
		idx++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM medical_records WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("medical record count: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM medical_records WHERE %s ORDER BY visit_date DESC LIMIT $%d OFFSET $%d",
		recordCols, clause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("medical record list: %w", err)
	}
	defer rows.Close()

	var records []*MedicalRecord
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, m)
	}
	return records, total, rows.Err()
}

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(
		&m.ID, &m.PatientID, &m.DoctorID, &m.AppointmentID, &m.VisitDate, &m.ChiefComplaint, &m.Symptoms,
		&m.Diagnosis, &m.Treatment, &m.Notes, &m.VitalSigns, &m.FollowUpDate, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// -- Medical files --

type fileRepoPG struct {
	pool *pgxpool.Pool
}

func NewFileRepo(pool *pgxpool.Pool) FileRepository {
	return &fileRepoPG{pool: pool}
}

func (r *fileRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const fileCols = `id, patient_id, doctor_id, medical_record_id, file_name, url, mime_type, size_bytes,
	category, deleted_at, created_at`

func (r *fileRepoPG) Create(ctx context.Context, f *MedicalFile) error {
	f.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_files (
			id, patient_id, doctor_id, medical_record_id, file_name, url, mime_type, size_bytes, category
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		f.ID, f.PatientID, f.DoctorID, f.MedicalRecordID, f.FileName, f.URL, f.MimeType, f.SizeBytes, f.Category,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("medical file create: %w", db.MapError(err, "medical file"))
	}
	return nil
}

func (r *fileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalFile, error) {
	f, err := scanFile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+fileCols+` FROM medical_files WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, db.MapError(err, "medical file")
	}
	return f, nil
}

func (r *fileRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return softDelete(ctx, r.conn(ctx), "medical_files", "medical file", id, at)
}

func (r *fileRepoPG) List(ctx context.Context, doctorID uuid.UUID, f FileFilter, limit, offset int) ([]*MedicalFile, int, error) {
	where := []string{"doctor_id = $1", "deleted_at IS NULL"}
	args := []interface{}{doctorID}
	idx := 2

	if f.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, *f.PatientID)
		idx++
	}
	if f.MedicalRecordID != nil {
		where = append(where, fmt.Sprintf("medical_record_id = $%d", idx))
		args = append(args, *f.MedicalRecordID)
		idx++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM medical_files WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("medical file count: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM medical_files WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		fileCols, clause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("medical file list: %w", err)
	}
	defer rows.Close()

	var files []*MedicalFile
	for rows.Next() {
		mf, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, mf)
	}
	return files, total, rows.Err()
}

func scanFile(row pgx.Row) (*MedicalFile, error) {
	var f MedicalFile
	err := row.Scan(
		&f.ID, &f.PatientID, &f.DoctorID, &f.MedicalRecordID, &f.FileName, &f.URL, &f.MimeType, &f.SizeBytes,
		&f.Category, &f.DeletedAt, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// -- Appointment directory backed by the appointments table --

type appointmentDirectoryPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentDirectory(pool *pgxpool.Pool) AppointmentDirectory {
	return &appointmentDirectoryPG{pool: pool}
}

func (d *appointmentDirectoryPG) AppointmentRef(ctx context.Context, id uuid.UUID) (*AppointmentRef, error) {
	var ref AppointmentRef
	err := db.Conn(ctx, d.pool).QueryRow(ctx,
		`SELECT patient_id, doctor_id FROM appointments WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&ref.PatientID, &ref.DoctorID)
	if err != nil {
		return nil, db.MapError(err, "appointment")
	}
	return &ref, nil
}

// table is always one of the package constants above.
func softDelete(ctx context.Context, q db.Querier, table, resource string, id uuid.UUID, at time.Time) error {
	tag, err := q.Exec(ctx, `UPDATE `+table+` SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("%s delete: %w", resource, err)
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, resource)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
