package medication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/internal/platform/middleware"
	"github.com/pacigest/pacigest/internal/platform/validate"
)

type Service struct {
	prescriptions PrescriptionRepository
	patients      PatientAccess
	refs          References
	validate      *validate.Validator
	now           func() time.Time
}

func NewService(prescriptions PrescriptionRepository, patients PatientAccess, refs References) *Service {
	return &Service{
		prescriptions: prescriptions,
		patients:      patients,
		refs:          refs,
		validate:      validate.New(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// authorize loads a prescription written by the session's doctor.
func (s *Service) authorize(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DoctorID != sess.DoctorID {
		return nil, apperr.Forbidden("prescription belongs to another doctor")
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, sess *auth.Session, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	switch f.Status {
	case "", StatusActive, StatusCompleted, StatusCancelled:
	default:
		return nil, 0, apperr.Validation("invalid status filter",
			apperr.FieldError{Field: "status", Message: "must be one of: active completed cancelled"})
	}
	if f.PatientID != nil {
		if err := s.patients.CheckRead(ctx, sess.DoctorID, *f.PatientID); err != nil {
			return nil, 0, err
		}
	}
	return s.prescriptions.List(ctx, sess.DoctorID, f, limit, offset)
}

func (s *Service) Get(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Prescription, error) {
	return s.authorize(ctx, sess, id)
}

func (s *Service) Create(ctx context.Context, sess *auth.Session, req CreatePrescriptionRequest) (*Prescription, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	if err := s.patients.CheckAccess(ctx, sess.DoctorID, req.PatientID); err != nil {
		return nil, err
	}
	if req.AppointmentID != nil {
		if err := s.checkRef(ctx, sess, req.PatientID, "appointment_id", *req.AppointmentID, s.refs.Appointment); err != nil {
			return nil, err
		}
	}
	if req.MedicalRecordID != nil {
		if err := s.checkRef(ctx, sess, req.PatientID, "medical_record_id", *req.MedicalRecordID, s.refs.MedicalRecord); err != nil {
			return nil, err
		}
	}

	now := s.now()
	p := &Prescription{
		PatientID:       req.PatientID,
		DoctorID:        sess.DoctorID,
		AppointmentID:   req.AppointmentID,
		MedicalRecordID: req.MedicalRecordID,
		Medications:     cleanMedications(req.Medications),
		Instructions:    optional(req.Instructions),
		Status:          StatusActive,
		IssuedAt:        now,
		ValidUntil:      utc(req.ValidUntil),
	}
	if err := checkValidity(p); err != nil {
		return nil, err
	}
	if err := s.prescriptions.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) checkRef(ctx context.Context, sess *auth.Session, patientID uuid.UUID, field string, id uuid.UUID,
	lookup func(context.Context, uuid.UUID) (*Ref, error)) error {
	ref, err := lookup(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Validation("invalid fields: "+field, apperr.FieldError{Field: field, Message: "not found"})
	}
	if err != nil {
		return err
	}
	if ref.PatientID != patientID || ref.DoctorID != sess.DoctorID {
		return apperr.Validation("invalid fields: "+field,
			apperr.FieldError{Field: field, Message: "must belong to the same patient and doctor"})
	}
	return nil
}

// Update edits an active prescription of the session's doctor.
func (s *Service) Update(ctx context.Context, sess *auth.Session, id uuid.UUID, req UpdatePrescriptionRequest) (*Prescription, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	p, err := s.authorize(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusActive {
		return nil, apperr.InvalidState(fmt.Sprintf("prescription is %s and can no longer be modified", p.Status))
	}
	if req.Medications != nil {
		p.Medications = cleanMedications(*req.Medications)
	}
	if req.Instructions != nil {
		p.Instructions = optional(*req.Instructions)
	}
	if req.ValidUntil != nil {
		p.ValidUntil = utc(req.ValidUntil)
	}
	if err := checkValidity(p); err != nil {
		return nil, err
	}
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Cancel(ctx context.Context, sess *auth.Session, id uuid.UUID, req CancelRequest) (*Prescription, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	return s.close(ctx, sess, id, StatusCancelled, optional(req.Reason))
}

func (s *Service) Complete(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Prescription, error) {
	return s.close(ctx, sess, id, StatusCompleted, nil)
}

func (s *Service) close(ctx context.Context, sess *auth.Session, id uuid.UUID, to Status, reason *string) (*Prescription, error) {
	p, err := s.authorize(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusActive {
		return nil, apperr.InvalidState(fmt.Sprintf("cannot move prescription from %s to %s", p.Status, to))
	}
	return s.prescriptions.Close(ctx, id, to, reason, s.now())
}

func (s *Service) Delete(ctx context.Context, sess *auth.Session, id uuid.UUID) error {
	if _, err := s.authorize(ctx, sess, id); err != nil {
		return err
	}
	return s.prescriptions.SoftDelete(ctx, id, s.now())
}

func checkValidity(p *Prescription) error {
	if p.ValidUntil != nil && !p.ValidUntil.After(p.IssuedAt) {
		return apperr.Validation("invalid fields: valid_until",
			apperr.FieldError{Field: "valid_until", Message: "must be after the issue date"})
	}
	return nil
}

func cleanMedications(in []Medication) []Medication {
	out := make([]Medication, len(in))
	for i, m := range in {
		out[i] = Medication{
			Name:         middleware.CleanString(m.Name),
			Dosage:       middleware.CleanString(m.Dosage),
			Frequency:    middleware.CleanString(m.Frequency),
			Duration:     middleware.CleanString(m.Duration),
			Instructions: middleware.CleanString(m.Instructions),
		}
	}
	return out
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func optional(s string) *string {
	s = middleware.CleanString(s)
	if s == "" {
		return nil
	}
	return &s
}
