package identity

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)

const dateLayout = "2006-01-02"

// Patient maps to the patients table. A patient can be shared by several
// doctors; DoctorIDs is never empty.
type Patient struct {
	ID                    uuid.UUID   `db:"id" json:"id"`
	DoctorIDs             []uuid.UUID `db:"doctor_ids" json:"doctor_ids"`
	FirstName             string      `db:"first_name" json:"first_name"`
	LastName              string      `db:"last_name" json:"last_name"`
	Email                 *string     `db:"email" json:"email,omitempty"`
	Phone                 *string     `db:"phone" json:"phone,omitempty"`
	BirthDate             *time.Time  `db:"birth_date" json:"birth_date,omitempty"`
	Gender                *string     `db:"gender" json:"gender,omitempty"`
	Address               *string     `db:"address" json:"address,omitempty"`
	BloodType             *string     `db:"blood_type" json:"blood_type,omitempty"`
	Allergies             []string    `db:"allergies" json:"allergies"`
	ChronicConditions     []string    `db:"chronic_conditions" json:"chronic_conditions"`
	EmergencyContactName  *string     `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string     `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	Notes                 *string     `db:"notes" json:"notes,omitempty"`
	Status                Status      `db:"status" json:"status"`
	DeletedAt             *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedBy             uuid.UUID   `db:"created_by" json:"created_by"`
	CreatedAt             time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time   `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string { return p.FirstName + " " + p.LastName }

// OwnedBy reports whether doctorID is one of the patient's doctors.
func (p *Patient) OwnedBy(doctorID uuid.UUID) bool {
	for _, id := range p.DoctorIDs {
		if id == doctorID {
			return true
		}
	}
	return false
}

func (p *Patient) IsDeleted() bool { return p.Status == StatusDeleted }

// ListFilter narrows a patient list. Deleted patients are excluded unless
// IncludeDeleted is set or Status asks for them.
type ListFilter struct {
	Query          string
	Status         Status
	IncludeDeleted bool
}

type CreatePatientRequest struct {
	FirstName             string   `json:"first_name" validate:"required,notblank,max=100"`
	LastName              string   `json:"last_name" validate:"required,notblank,max=100"`
	Email                 string   `json:"email" validate:"omitempty,email,max=255"`
	Phone                 string   `json:"phone" validate:"omitempty,max=40"`
	BirthDate             string   `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Gender                string   `json:"gender" validate:"omitempty,oneof=male female other"`
	Address               string   `json:"address" validate:"omitempty,max=500"`
	BloodType             string   `json:"blood_type" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies             []string `json:"allergies" validate:"omitempty,max=50,dive,notblank,max=120"`
	ChronicConditions     []string `json:"chronic_conditions" validate:"omitempty,max=50,dive,notblank,max=120"`
	EmergencyContactName  string   `json:"emergency_contact_name" validate:"omitempty,max=200"`
	EmergencyContactPhone string   `json:"emergency_contact_phone" validate:"omitempty,max=40"`
	Notes                 string   `json:"notes" validate:"omitempty,max=5000"`
}

// UpdatePatientRequest is a partial update; nil fields are left unchanged.
type UpdatePatientRequest struct {
	FirstName             *string   `json:"first_name" validate:"omitempty,notblank,max=100"`
	LastName              *string   `json:"last_name" validate:"omitempty,notblank,max=100"`
	Email                 *string   `json:"email" validate:"omitempty,max=255"`
	Phone                 *string   `json:"phone" validate:"omitempty,max=40"`
	BirthDate             *string   `json:"birth_date" validate:"omitempty"`
	Gender                *string   `json:"gender" validate:"omitempty,oneof=male female other"`
	Address               *string   `json:"address" validate:"omitempty,max=500"`
	BloodType             *string   `json:"blood_type" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies             *[]string `json:"allergies" validate:"omitempty,max=50,dive,notblank,max=120"`
	ChronicConditions     *[]string `json:"chronic_conditions" validate:"omitempty,max=50,dive,notblank,max=120"`
	EmergencyContactName  *string   `json:"emergency_contact_name" validate:"omitempty,max=200"`
	EmergencyContactPhone *string   `json:"emergency_contact_phone" validate:"omitempty,max=40"`
	Notes                 *string   `json:"notes" validate:"omitempty,max=5000"`
	Status                *Status   `json:"status" validate:"omitempty,oneof=active inactive"`
}

type ShareRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" validate:"required"`
}
