package reminder

import (
	"time"

	"github.com/google/uuid"
)

// Kind selects one of the two appointment reminders.
type Kind string

const (
	Kind24h Kind = "24h"
	Kind2h  Kind = "2h"
)

// Lead is how long before the start time the reminder is due.
func (k Kind) Lead() time.Duration {
	if k == Kind2h {
		return 2 * time.Hour
	}
	return 24 * time.Hour
}

// Due is a confirmed appointment whose reminder has not been sent yet.
type Due struct {
	AppointmentID uuid.UUID
	StartTime     time.Time
	Type          string
	PatientName   string
	PatientEmail  *string
	DoctorName    string
}

// TrialAccount is a doctor on the free trial.
type TrialAccount struct {
	UserID      uuid.UUID
	Email       string
	Name        string
	TrialEndsAt time.Time
}

// Failure is one candidate that could not be processed in a tick.
type Failure struct {
	Stage string    `json:"stage"`
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

// TickReport summarizes one run of the reminder job.
type TickReport struct {
	At             time.Time `json:"at"`
	Reminders24h   int       `json:"reminders_24h"`
	Reminders2h    int       `json:"reminders_2h"`
	TrialsExpired  int       `json:"trials_expired"`
	TrialReminders int       `json:"trial_reminders"`
	Skipped        int       `json:"skipped"`
	Failures       []Failure `json:"failures,omitempty"`
}

func (r *TickReport) fail(stage string, id uuid.UUID, err error) {
	r.Failures = append(r.Failures, Failure{Stage: stage, ID: id, Error: err.Error()})
}

// Sent is the number of e-mails delivered during the tick.
func (r *TickReport) Sent() int {
	return r.Reminders24h + r.Reminders2h + r.TrialsExpired + r.TrialReminders
}
