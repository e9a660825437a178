package medication

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Medication is one line of a prescription, stored in the medications jsonb array.
type Medication struct {
	Name         string `json:"name" validate:"required,notblank,max=200"`
	Dosage       string `json:"dosage" validate:"required,notblank,max=100"`
	Frequency    string `json:"frequency" validate:"required,notblank,max=100"`
	Duration     string `json:"duration,omitempty" validate:"omitempty,max=100"`
	Instructions string `json:"instructions,omitempty" validate:"omitempty,max=1000"`
}

// Prescription maps to the prescriptions table.
type Prescription struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	PatientID          uuid.UUID    `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	AppointmentID      *uuid.UUID   `db:"appointment_id" json:"appointment_id,omitempty"`
	MedicalRecordID    *uuid.UUID   `db:"medical_record_id" json:"medical_record_id,omitempty"`
	Medications        []Medication `db:"medications" json:"medications"`
	Instructions       *string      `db:"instructions" json:"instructions,omitempty"`
	Status             Status       `db:"status" json:"status"`
	IssuedAt           time.Time    `db:"issued_at" json:"issued_at"`
	ValidUntil         *time.Time   `db:"valid_until" json:"valid_until,omitempty"`
	CancellationReason *string      `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time   `db:"cancelled_at" json:"cancelled_at,omitempty"`
	DeletedAt          *time.Time   `db:"deleted_at" json:"-"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

type ListFilter struct {
	PatientID *uuid.UUID
	Status    Status
}

type CreatePrescriptionRequest struct {
	PatientID       uuid.UUID    `json:"patient_id" validate:"required"`
	AppointmentID   *uuid.UUID   `json:"appointment_id"`
	MedicalRecordID *uuid.UUID   `json:"medical_record_id"`
	Medications     []Medication `json:"medications" validate:"required,min=1,max=30,dive"`
	Instructions    string       `json:"instructions" validate:"omitempty,max=5000"`
	ValidUntil      *time.Time   `json:"valid_until"`
}

// UpdatePrescriptionRequest is a partial update; nil fields are left unchanged.
type UpdatePrescriptionRequest struct {
	Medications  *[]Medication `json:"medications" validate:"omitempty,min=1,max=30,dive"`
	Instructions *string       `json:"instructions" validate:"omitempty,max=5000"`
	ValidUntil   *time.Time    `json:"valid_until"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}

// Ref is the patient and doctor a linked appointment or record belongs to.
type Ref struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
}
