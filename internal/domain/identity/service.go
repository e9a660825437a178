package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/internal/platform/middleware"
	"github.com/pacigest/pacigest/internal/platform/validate"
)

type Service struct {
	patients PatientRepository
	doctors  DoctorDirectory
	validate *validate.Validator
	now      func() time.Time
}

func NewService(patients PatientRepository, doctors DoctorDirectory) *Service {
	return &Service{
		patients: patients,
		doctors:  doctors,
		validate: validate.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// authorize loads a patient and checks that doctorID is one of its doctors.
// Deleted patients are returned so callers can decide.
func (s *Service) authorize(ctx context.Context, doctorID, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.OwnedBy(doctorID) {
		return nil, apperr.Forbidden("patient belongs to another practice")
	}
	return p, nil
}

// CheckAccess verifies that a live patient belongs to doctorID. Other
// domains call it before attaching rows to a patient.
func (s *Service) CheckAccess(ctx context.Context, doctorID, patientID uuid.UUID) error {
	p, err := s.authorize(ctx, doctorID, patientID)
	if err != nil {
		return err
	}
	if p.IsDeleted() {
		return apperr.InvalidState("patient is deleted")
	}
	return nil
}

// CheckRead verifies that doctorID may read the patient's history, which
// includes soft-deleted patients.
func (s *Service) CheckRead(ctx context.Context, doctorID, patientID uuid.UUID) error {
	_, err := s.authorize(ctx, doctorID, patientID)
	return err
}

func (s *Service) List(ctx context.Context, sess *auth.Session, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	if f.Status != "" && f.Status != StatusActive && f.Status != StatusInactive && f.Status != StatusDeleted {
		return nil, 0, apperr.Validation("invalid status filter",
			apperr.FieldError{Field: "status", Message: "must be one of: active inactive deleted"})
	}
	return s.patients.List(ctx, sess.DoctorID, f, limit, offset)
}

// Get returns the patient even when soft-deleted.
func (s *Service) Get(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Patient, error) {
	return s.authorize(ctx, sess.DoctorID, id)
}

func (s *Service) Create(ctx context.Context, sess *auth.Session, req CreatePatientRequest) (*Patient, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	birth, err := parseDate(req.BirthDate)
	if err != nil {
		return nil, err
	}
	p := &Patient{
		DoctorIDs:             []uuid.UUID{sess.DoctorID},
		FirstName:             middleware.CleanString(req.FirstName),
		LastName:              middleware.CleanString(req.LastName),
		Email:                 optional(strings.ToLower(req.Email)),
		Phone:                 optional(req.Phone),
		BirthDate:             birth,
		Gender:                optional(req.Gender),
		Address:               optional(req.Address),
		BloodType:             optional(req.BloodType),
		Allergies:             cleanList(req.Allergies),
		ChronicConditions:     cleanList(req.ChronicConditions),
		EmergencyContactName:  optional(req.EmergencyContactName),
		EmergencyContactPhone: optional(req.EmergencyContactPhone),
		Notes:                 optional(req.Notes),
		Status:                StatusActive,
		CreatedBy:             sess.UserID,
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, sess *auth.Session, id uuid.UUID, req UpdatePatientRequest) (*Patient, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	p, err := s.authorize(ctx, sess.DoctorID, id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted() {
		return nil, apperr.InvalidState("patient is deleted")
	}

	if req.FirstName != nil {
		p.FirstName = middleware.CleanString(*req.FirstName)
	}
	if req.LastName != nil {
		p.LastName = middleware.CleanString(*req.LastName)
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != "" {
			if err := s.validate.Var("email", email, "email"); err != nil {
				return nil, err
			}
		}
		p.Email = optional(email)
	}
	if req.Phone != nil {
		p.Phone = optional(*req.Phone)
	}
	if req.BirthDate != nil {
		birth, err := parseDate(*req.BirthDate)
		if err != nil {
			return nil, err
		}
		p.BirthDate = birth
	}
	if req.Gender != nil {
		p.Gender = optional(*req.Gender)
	}
	if req.Address != nil {
		p.Address = optional(*req.Address)
	}
	if req.BloodType != nil {
		p.BloodType = optional(*req.BloodType)
	}
	if req.Allergies != nil {
		p.Allergies = cleanList(*req.Allergies)
	}
	if req.ChronicConditions != nil {
		p.ChronicConditions = cleanList(*req.ChronicConditions)
	}
	if req.EmergencyContactName != nil {
		p.EmergencyContactName = optional(*req.EmergencyContactName)
	}
	if req.EmergencyContactPhone != nil {
		p.EmergencyContactPhone = optional(*req.EmergencyContactPhone)
	}
	if req.Notes != nil {
		p.Notes = optional(*req.Notes)
	}
	if req.Status != nil {
		p.Status = *req.Status
	}

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, sess *auth.Session, id uuid.UUID) error {
	p, err := s.authorize(ctx, sess.DoctorID, id)
	if err != nil {
		return err
	}
	if p.IsDeleted() {
		return apperr.InvalidState("patient is already deleted")
	}
	return s.patients.SoftDelete(ctx, id, s.now())
}

func (s *Service) Restore(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Patient, error) {
	p, err := s.authorize(ctx, sess.DoctorID, id)
	if err != nil {
		return nil, err
	}
	if !p.IsDeleted() {
		return nil, apperr.InvalidState("patient is not deleted")
	}
	if err := s.patients.Restore(ctx, id); err != nil {
		return nil, err
	}
	return s.patients.GetByID(ctx, id)
}

// Share links the patient to another doctor so both practices can see it.
func (s *Service) Share(ctx context.Context, sess *auth.Session, id uuid.UUID, req ShareRequest) (*Patient, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	if !sess.IsDoctor() {
		return nil, apperr.Forbidden("only doctors can share patients")
	}
	p, err := s.authorize(ctx, sess.DoctorID, id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted() {
		return nil, apperr.InvalidState("patient is deleted")
	}
	if p.OwnedBy(req.DoctorID) {
		return p, nil
	}
	ok, err := s.doctors.DoctorExists(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("doctor")
	}
	if err := s.patients.AddDoctor(ctx, id, req.DoctorID); err != nil {
		return nil, err
	}
	p.DoctorIDs = append(p.DoctorIDs, req.DoctorID)
	return p, nil
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, apperr.Validation("invalid fields: birth_date",
			apperr.FieldError{Field: "birth_date", Message: "must be a date in 2006-01-02 format"})
	}
	return &t, nil
}

func optional(s string) *string {
	s = middleware.CleanString(s)
	if s == "" {
		return nil
	}
	return &s
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = middleware.CleanString(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
