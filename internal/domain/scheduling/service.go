package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/internal/platform/db"
	"github.com/pacigest/pacigest/internal/platform/middleware"
	"github.com/pacigest/pacigest/internal/platform/validate"
)

type Service struct {
	appts    AppointmentRepository
	patients PatientAccess
	tx       db.TxRunner
	validate *validate.Validator
	now      func() time.Time
}

func NewService(appts AppointmentRepository, patients PatientAccess, tx db.TxRunner) *Service {
	if tx == nil {
		tx = db.NoTx{}
	}
	return &Service{
		appts:    appts,
		patients: patients,
		tx:       tx,
		validate: validate.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) authorize(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != sess.DoctorID {
		return nil, apperr.Forbidden("appointment belongs to another practice")
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, sess *auth.Session, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" {
		if _, known := validStatuses[f.Status]; !known {
			return nil, 0, apperr.Validation("invalid status filter",
				apperr.FieldError{Field: "status", Message: "must be one of: scheduled confirmed cancelled completed"})
		}
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, 0, apperr.Validation("from must be before to")
	}
	return s.appts.List(ctx, sess.DoctorID, f, limit, offset)
}

// ListForPatient returns the practice's appointments with one patient.
func (s *Service) ListForPatient(ctx context.Context, sess *auth.Session, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	if err := s.patients.CheckRead(ctx, sess.DoctorID, patientID); err != nil {
		return nil, 0, err
	}
	return s.appts.List(ctx, sess.DoctorID, ListFilter{PatientID: &patientID}, limit, offset)
}

func (s *Service) Get(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Appointment, error) {
	return s.authorize(ctx, sess, id)
}

func (s *Service) Create(ctx context.Context, sess *auth.Session, req CreateAppointmentRequest) (*Appointment, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	if err := s.patients.CheckAccess(ctx, sess.DoctorID, req.PatientID); err != nil {
		return nil, err
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = defaultDurationMinutes
	}

	a := &Appointment{
		PatientID:       req.PatientID,
		DoctorID:        sess.DoctorID,
		StartTime:       req.StartTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		Type:            req.Type,
		Status:          StatusScheduled,
		Reason:          optional(req.Reason),
		Notes:           optional(req.Notes),
		CreatedBy:       sess.UserID,
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.ensureFree(ctx, a, nil); err != nil {
			return err
		}
		return s.appts.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ensureFree rejects a booking that overlaps another live appointment of
// the same doctor. It must run inside the booking transaction.
func (s *Service) ensureFree(ctx context.Context, a *Appointment, exclude *uuid.UUID) error {
	if err := s.appts.LockSchedule(ctx, a.DoctorID); err != nil {
		return err
	}
	overlap, err := s.appts.HasOverlap(ctx, a.DoctorID, a.StartTime, a.EndTime(), exclude)
	if err != nil {
		return err
	}
	if overlap {
		return apperr.Conflict("the doctor already has an appointment in this time slot")
	}
	return nil
}

// Update edits or reschedules a live appointment. Moving the start time
// clears the reminder markers so the new slot is reminded again.
func (s *Service) Update(ctx context.Context, sess *auth.Session, id uuid.UUID, req UpdateAppointmentRequest) (*Appointment, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	a, err := s.authorize(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if !statusIn(a.Status, editableStatuses) {
		return nil, apperr.InvalidState(fmt.Sprintf("appointment is %s and can no longer be modified", a.Status))
	}

	slotChanged := false
	if req.StartTime != nil && !req.StartTime.Equal(a.StartTime) {
		a.StartTime = req.StartTime.UTC()
		a.Reminder24hSentAt = nil
		a.Reminder2hSentAt = nil
		slotChanged = true
	}
	if req.DurationMinutes != nil && *req.DurationMinutes != a.DurationMinutes {
		a.DurationMinutes = *req.DurationMinutes
		slotChanged = true
	}
	if req.Type != nil {
		a.Type = *req.Type
	}
	if req.Reason != nil {
		a.Reason = optional(*req.Reason)
	}
	if req.Notes != nil {
		a.Notes = optional(*req.Notes)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if slotChanged {
			if err := s.ensureFree(ctx, a, &a.ID); err != nil {
				return err
			}
		}
		return s.appts.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Confirm(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, sess, id, Transition{To: StatusConfirmed})
}

func (s *Service) Complete(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, sess, id, Transition{To: StatusCompleted})
}

func (s *Service) Cancel(ctx context.Context, sess *auth.Session, id uuid.UUID, req CancelRequest) (*Appointment, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	actor := sess.UserID
	return s.transition(ctx, sess, id, Transition{
		To:          StatusCancelled,
		CancelledBy: &actor,
		Reason:      optional(req.Reason),
	})
}

func (s *Service) transition(ctx context.Context, sess *auth.Session, id uuid.UUID, t Transition) (*Appointment, error) {
	a, err := s.authorize(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	from := transitionsFrom[t.To]
	if !statusIn(a.Status, from) {
		return nil, apperr.InvalidState(fmt.Sprintf("cannot move appointment from %s to %s", a.Status, t.To))
	}
	t.At = s.now()
	return s.appts.Transition(ctx, id, from, t)
}

func (s *Service) Delete(ctx context.Context, sess *auth.Session, id uuid.UUID) error {
	if _, err := s.authorize(ctx, sess, id); err != nil {
		return err
	}
	return s.appts.SoftDelete(ctx, id, s.now())
}

var validStatuses = map[Status]struct{}{
	StatusScheduled: {},
	StatusConfirmed: {},
	StatusCancelled: {},
	StatusCompleted: {},
}

func optional(s string) *string {
	s = middleware.CleanString(s)
	if s == "" {
		return nil
	}
	return &s
}
