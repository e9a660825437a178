package clinical

import (
	"time"

	"github.com/google/uuid"
)

// VitalSigns is stored as jsonb on the record. All readings are optional.
type VitalSigns struct {
	BloodPressure    string   `json:"blood_pressure,omitempty" validate:"omitempty,max=20"`
	HeartRate        *int     `json:"heart_rate,omitempty" validate:"omitempty,min=0,max=300"`
	Temperature      *float64 `json:"temperature,omitempty" validate:"omitempty,min=25,max=45"`
	RespiratoryRate  *int     `json:"respiratory_rate,omitempty" validate:"omitempty,min=0,max=100"`
	OxygenSaturation *int     `json:"oxygen_saturation,omitempty" validate:"omitempty,min=0,max=100"`
	Weight           *float64 `json:"weight,omitempty" validate:"omitempty,gt=0,max=700"`
	Height           *float64 `json:"height,omitempty" validate:"omitempty,gt=0,max=300"`
}

// MedicalRecord maps to the medical_records table.
type MedicalRecord struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	VisitDate      time.Time  `db:"visit_date" json:"visit_date"`
	ChiefComplaint string     `db:"chief_complaint" json:"chief_complaint"`
	Symptoms       []string   `db:"symptoms" json:"symptoms"`
	Diagnosis      *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment      *string    `db:"treatment" json:"treatment,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	VitalSigns     VitalSigns `db:"vital_signs" json:"vital_signs"`
	FollowUpDate   *time.Time `db:"follow_up_date" json:"follow_up_date,omitempty"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type RecordFilter struct {
	PatientID *uuid.UUID
}

type CreateRecordRequest struct {
	PatientID      uuid.UUID  `json:"patient_id" validate:"required"`
	AppointmentID  *uuid.UUID `json:"appointment_id"`
	VisitDate      *time.Time `json:"visit_date"`
	ChiefComplaint string     `json:"chief_complaint" validate:"required,notblank,max=2000"`
	Symptoms       []string   `json:"symptoms" validate:"omitempty,max=50,dive,max=200"`
	Diagnosis      string     `json:"diagnosis" validate:"omitempty,max=5000"`
	Treatment      string     `json:"treatment" validate:"omitempty,max=5000"`
	Notes          string     `json:"notes" validate:"omitempty,max=10000"`
	VitalSigns     VitalSigns `json:"vital_signs"`
	FollowUpDate   *time.Time `json:"follow_up_date"`
}

// UpdateRecordRequest is a partial update; nil fields are left unchanged.
// The patient and appointment of a record cannot be changed.
type UpdateRecordRequest struct {
	VisitDate      *time.Time  `json:"visit_date"`
	ChiefComplaint *string     `json:"chief_complaint" validate:"omitempty,notblank,max=2000"`
	Symptoms       *[]string   `json:"symptoms" validate:"omitempty,max=50,dive,max=200"`
	Diagnosis      *string     `json:"diagnosis" validate:"omitempty,max=5000"`
	Treatment      *string     `json:"treatment" validate:"omitempty,max=5000"`
	Notes          *string     `json:"notes" validate:"omitempty,max=10000"`
	VitalSigns     *VitalSigns `json:"vital_signs"`
	FollowUpDate   *time.Time  `json:"follow_up_date"`
}

type FileCategory string

const (
	CategoryLabResult    FileCategory = "lab-result"
	CategoryImaging      FileCategory = "imaging"
	CategoryPrescription FileCategory = "prescription"
	CategoryReport       FileCategory = "report"
	CategoryOther        FileCategory = "other"
)

// MedicalFile is the metadata of an uploaded document. The bytes live in
// external storage addressed by URL.
type MedicalFile struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	PatientID       uuid.UUID    `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	MedicalRecordID *uuid.UUID   `db:"medical_record_id" json:"medical_record_id,omitempty"`
	FileName        string       `db:"file_name" json:"file_name"`
	URL             string       `db:"url" json:"url"`
	MimeType        *string      `db:"mime_type" json:"mime_type,omitempty"`
	SizeBytes       int64        `db:"size_bytes" json:"size_bytes"`
	Category        FileCategory `db:"category" json:"category"`
	DeletedAt       *time.Time   `db:"deleted_at" json:"-"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
}

type FileFilter struct {
	PatientID       *uuid.UUID
	MedicalRecordID *uuid.UUID
}

type CreateFileRequest struct {
	PatientID       uuid.UUID    `json:"patient_id" validate:"required"`
	MedicalRecordID *uuid.UUID   `json:"medical_record_id"`
	FileName        string       `json:"file_name" validate:"required,notblank,max=255"`
	URL             string       `json:"url" validate:"required,url,max=2048"`
	MimeType        string       `json:"mime_type" validate:"omitempty,max=120"`
	SizeBytes       int64        `json:"size_bytes" validate:"min=0"`
	Category        FileCategory `json:"category" validate:"omitempty,oneof=lab-result imaging prescription report other"`
}

// AppointmentRef is the ownership of an appointment a record points at.
type AppointmentRef struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
}
