package stats

import (
	"time"

	"github.com/google/uuid"
)

// Dashboard is the practice overview shown on the doctor's home screen.
type Dashboard struct {
	DoctorID              uuid.UUID `json:"doctor_id"`
	PatientsTotal         int       `json:"patients_total"`
	NewPatientsThisMonth  int       `json:"new_patients_this_month"`
	AppointmentsToday     int       `json:"appointments_today"`
	UpcomingAppointments  int       `json:"upcoming_appointments"`
	CompletedThisMonth    int       `json:"completed_this_month"`
	CancelledThisMonth    int       `json:"cancelled_this_month"`
	RecordsThisMonth      int       `json:"records_this_month"`
	ActivePrescriptions   int       `json:"active_prescriptions"`
	RevenueThisMonthCents int64     `json:"revenue_this_month_cents"`
	GeneratedAt           time.Time `json:"generated_at"`
}

// Window holds the time boundaries the counters are computed over.
type Window struct {
	Now        time.Time
	DayStart   time.Time
	DayEnd     time.Time
	MonthStart time.Time
	MonthEnd   time.Time
}

// WindowAt returns the UTC day and calendar month containing now.
func WindowAt(now time.Time) Window {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{
		Now:        now,
		DayStart:   day,
		DayEnd:     day.AddDate(0, 0, 1),
		MonthStart: month,
		MonthEnd:   month.AddDate(0, 1, 0),
	}
}
