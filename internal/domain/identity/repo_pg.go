package identity

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

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, doctor_ids, first_name, last_name, email, phone, birth_date, gender, address,
	blood_type, allergies, chronic_conditions, emergency_contact_name, emergency_contact_phone, notes,
	status, deleted_at, created_by, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (
			id, doctor_ids, first_name, last_name, email, phone, birth_date, gender, address,
			blood_type, allergies, chronic_conditions, emergency_contact_name, emergency_contact_phone, notes,
			status, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING created_at, updated_at`,
		p.ID, p.DoctorIDs, p.FirstName, p.LastName, p.Email, p.Phone, p.BirthDate, p.Gender, p.Address,
		p.BloodType, nonNil(p.Allergies), nonNil(p.ChronicConditions), p.EmergencyContactName, p.EmergencyContactPhone, p.Notes,
		p.Status, p.CreatedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patient create: %w", db.MapError(err, "patient"))
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "patient")
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			first_name=$2, last_name=$3, email=$4, phone=$5, birth_date=$6, gender=$7, address=$8,
			blood_type=$9, allergies=$10, chronic_conditions=$11, emergency_contact_name=$12,
			emergency_contact_phone=$13, notes=$14, status=$15, updated_at=NOW()
		WHERE id = $1 AND status <> 'deleted'
		RETURNING updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.BirthDate, p.Gender, p.Address,
		p.BloodType, nonNil(p.Allergies), nonNil(p.ChronicConditions), p.EmergencyContactName,
		p.EmergencyContactPhone, p.Notes, p.Status,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return db.MapError(err, "patient")
	}
	return nil
}

func (r *patientRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET status='deleted', deleted_at=$2, updated_at=NOW()
		WHERE id = $1 AND status <> 'deleted'`, id, at)
	if err != nil {
		return fmt.Errorf("patient delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "patient")
	}
	return nil
}

func (r *patientRepoPG) Restore(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET status='active', deleted_at=NULL, updated_at=NOW()
		WHERE id = $1 AND status = 'deleted'`, id)
	if err != nil {
		return fmt.Errorf("patient restore: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "patient")
	}
	return nil
}

func (r *patientRepoPG) AddDoctor(ctx context.Context, id, doctorID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET doctor_ids = array_append(doctor_ids, $2), updated_at=NOW()
		WHERE id = $1 AND NOT ($2 = ANY(doctor_ids))`, id, doctorID)
	if err != nil {
		return fmt.Errorf("patient add doctor: %w", err)
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	where := []string{"$1 = ANY(doctor_ids)"}
	args := []interface{}{doctorID}
	idx := 2

	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	} else if !f.IncludeDeleted {
		where = append(where, "status <> 'deleted'")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR (first_name || ' ' || last_name) ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)",
			idx, idx, idx, idx, idx))
		args = append(args, "%"+escapeLike(q)+"%")
		idx++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM patients WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patient count: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM patients WHERE %s ORDER BY last_name, first_name LIMIT $%d OFFSET $%d",
		patientCols, clause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("patient list: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

// -- Doctor directory backed by the users table --

type doctorDirectoryPG struct {
	pool *pgxpool.Pool
}

func NewDoctorDirectory(pool *pgxpool.Pool) DoctorDirectory {
	return &doctorDirectoryPG{pool: pool}
}

func (d *doctorDirectoryPG) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, d.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND role = 'doctor' AND is_active)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("doctor lookup: %w", err)
	}
	return exists, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.DoctorIDs, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.BirthDate, &p.Gender, &p.Address,
		&p.BloodType, &p.Allergies, &p.ChronicConditions, &p.EmergencyContactName, &p.EmergencyContactPhone, &p.Notes,
		&p.Status, &p.DeletedAt, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
