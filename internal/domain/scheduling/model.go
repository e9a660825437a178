package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

type Type string

const (
	TypeConsultation Type = "consultation"
	TypeFollowUp     Type = "follow-up"
	TypeCheckup      Type = "checkup"
	TypeEmergency    Type = "emergency"
	TypeProcedure    Type = "procedure"
	TypeTelemedicine Type = "telemedicine"
)

const defaultDurationMinutes = 30

// transitionsFrom lists the states each target can be reached from.
// cancelled and completed are terminal.
var transitionsFrom = map[Status][]Status{
	StatusConfirmed: {StatusScheduled},
	StatusCancelled: {StatusScheduled, StatusConfirmed},
	StatusCompleted: {StatusScheduled, StatusConfirmed},
}

// editableStatuses are the states in which the appointment may be edited.
var editableStatuses = []Status{StatusScheduled, StatusConfirmed}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Appointment maps to the appointments table.
type Appointment struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	StartTime          time.Time  `db:"start_time" json:"start_time"`
	DurationMinutes    int        `db:"duration_minutes" json:"duration_minutes"`
	Type               Type       `db:"type" json:"type"`
	Status             Status     `db:"status" json:"status"`
	Reason             *string    `db:"reason" json:"reason,omitempty"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	ConfirmedAt        *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Reminder24hSentAt  *time.Time `db:"reminder_24h_sent_at" json:"reminder_24h_sent_at,omitempty"`
	Reminder2hSentAt   *time.Time `db:"reminder_2h_sent_at" json:"reminder_2h_sent_at,omitempty"`
	CreatedBy          uuid.UUID  `db:"created_by" json:"created_by"`
	DeletedAt          *time.Time `db:"deleted_at" json:"-"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a *Appointment) IsTerminal() bool {
	return a.Status == StatusCancelled || a.Status == StatusCompleted
}

// Transition carries the audit fields written with a status change.
type Transition struct {
	To          Status
	At          time.Time
	CancelledBy *uuid.UUID
	Reason      *string
}

type ListFilter struct {
	Status    Status
	PatientID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID `json:"patient_id" validate:"required"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=5,max=480"`
	Type            Type      `json:"type" validate:"required,oneof=consultation follow-up checkup emergency procedure telemedicine"`
	Reason          string    `json:"reason" validate:"omitempty,max=1000"`
	Notes           string    `json:"notes" validate:"omitempty,max=5000"`
}

// UpdateAppointmentRequest is a partial update; nil fields are left unchanged.
type UpdateAppointmentRequest struct {
	StartTime       *time.Time `json:"start_time"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,min=5,max=480"`
	Type            *Type      `json:"type" validate:"omitempty,oneof=consultation follow-up checkup emergency procedure telemedicine"`
	Reason          *string    `json:"reason" validate:"omitempty,max=1000"`
	Notes           *string    `json:"notes" validate:"omitempty,max=5000"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}
