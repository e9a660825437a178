package clinical

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/internal/platform/middleware"
	"github.com/pacigest/pacigest/internal/platform/validate"
)

// Service manages medical records and the metadata of their files. Both
// are owned by the doctor who wrote them; staff act for that doctor.
type Service struct {
	records      RecordRepository
	files        FileRepository
	patients     PatientAccess
	appointments AppointmentDirectory
	validate     *validate.Validator
	now          func() time.Time
}

func NewService(records RecordRepository, files FileRepository, patients PatientAccess, appointments AppointmentDirectory) *Service {
	return &Service{
		records:      records,
		files:        files,
		patients:     patients,
		appointments: appointments,
		validate:     validate.New(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) authorizeRecord(ctx context.Context, sess *auth.Session, id uuid.UUID) (*MedicalRecord, error) {
	m, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.DoctorID != sess.DoctorID {
		return nil, apperr.Forbidden("medical record belongs to another doctor")
	}
	return m, nil
}

func (s *Service) ListRecords(ctx context.Context, sess *auth.Session, f RecordFilter, limit, offset int) ([]*MedicalRecord, int, error) {
	if f.PatientID != nil {
		if err := s.patients.CheckRead(ctx, sess.DoctorID, *f.PatientID); err != nil {
			return nil, 0, err
		}
	}
	return s.records.List(ctx, sess.DoctorID, f, limit, offset)
}

func (s *Service) GetRecord(ctx context.Context, sess *auth.Session, id uuid.UUID) (*MedicalRecord, error) {
	return s.authorizeRecord(ctx, sess, id)
}

func (s *Service) CreateRecord(ctx context.Context, sess *auth.Session, req CreateRecordRequest) (*MedicalRecord, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	if err := s.patients.CheckAccess(ctx, sess.DoctorID, req.PatientID); err != nil {
		return nil, err
	}
	if req.AppointmentID != nil {
		if err := s.checkAppointment(ctx, sess, *req.AppointmentID, req.PatientID); err != nil {
			return nil, err
		}
	}

	visit := s.now()
	if req.VisitDate != nil {
		visit = req.VisitDate.UTC()
	}
	m := &MedicalRecord{
		PatientID:      req.PatientID,
		DoctorID:       sess.DoctorID,
		AppointmentID:  req.AppointmentID,
		VisitDate:      visit,
		ChiefComplaint: middleware.CleanString(req.ChiefComplaint),
		Symptoms:       cleanList(req.Symptoms),
		Diagnosis:      optional(req.Diagnosis),
		Treatment:      optional(req.Treatment),
		Notes:          optional(req.Notes),
		VitalSigns:     req.VitalSigns,
		FollowUpDate:   utc(req.FollowUpDate),
	}
	if err := checkFollowUp(m); err != nil {
		return nil, err
	}
	if err := s.records.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// checkAppointment requires the appointment to be between the same patient
// and the session's doctor.
func (s *Service) checkAppointment(ctx context.Context, sess *auth.Session, appointmentID, patientID uuid.UUID) error {
	ref, err := s.appointments.AppointmentRef(ctx, appointmentID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Validation("invalid appointment",
			apperr.FieldError{Field: "appointment_id", Message: "appointment not found"})
	}
	if err != nil {
		return err
	}
	if ref.PatientID != patientID || ref.DoctorID != sess.DoctorID {
		return apperr.Validation("invalid appointment",
			apperr.FieldError{Field: "appointment_id", Message: "must belong to the same patient and doctor"})
	}
	return nil
}

func (s *Service) UpdateRecord(ctx context.Context, sess *auth.Session, id uuid.UUID, req UpdateRecordRequest) (*MedicalRecord, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	m, err := s.authorizeRecord(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	if req.VisitDate != nil {
		m.VisitDate = req.VisitDate.UTC()
	}
	if req.ChiefComplaint != nil {
		cc := middleware.CleanString(*req.ChiefComplaint)
		if cc == "" {
			return nil, apperr.Validation("invalid fields: chief_complaint",
				apperr.FieldError{Field: "chief_complaint", Message: "is required"})
		}
		m.ChiefComplaint = cc
	}
	if req.Symptoms != nil {
		m.Symptoms = cleanList(*req.Symptoms)
	}
	if req.Diagnosis != nil {
		m.Diagnosis = optional(*req.Diagnosis)
	}
	if req.Treatment != nil {
		m.Treatment = optional(*req.Treatment)
	}
	if req.Notes != nil {
		m.Notes = optional(*req.Notes)
	}
	if req.VitalSigns != nil {
		m.VitalSigns = *req.VitalSigns
	}
	if req.FollowUpDate != nil {
		m.FollowUpDate = utc(req.FollowUpDate)
	}
	if err := checkFollowUp(m); err != nil {
		return nil, err
	}

	if err := s.records.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) DeleteRecord(ctx context.Context, sess *auth.Session, id uuid.UUID) error {
	if _, err := s.authorizeRecord(ctx, sess, id); err != nil {
		return err
	}
	return s.records.SoftDelete(ctx, id, s.now())
}

// -- Files --

func (s *Service) authorizeFile(ctx context.Context, sess *auth.Session, id uuid.UUID) (*MedicalFile, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.DoctorID != sess.DoctorID {
		return nil, apperr.Forbidden("medical file belongs to another doctor")
	}
	return f, nil
}

func (s *Service) ListFiles(ctx context.Context, sess *auth.Session, f FileFilter, limit, offset int) ([]*MedicalFile, int, error) {
	if f.PatientID != nil {
		if err := s.patients.CheckRead(ctx, sess.DoctorID, *f.PatientID); err != nil {
			return nil, 0, err
		}
	}
	if f.MedicalRecordID != nil {
		if _, err := s.authorizeRecord(ctx, sess, *f.MedicalRecordID); err != nil {
			return nil, 0, err
		}
	}
	return s.files.List(ctx, sess.DoctorID, f, limit, offset)
}

func (s *Service) GetFile(ctx context.Context, sess *auth.Session, id uuid.UUID) (*MedicalFile, error) {
	return s.authorizeFile(ctx, sess, id)
}

func (s *Service) CreateFile(ctx context.Context, sess *auth.Session, req CreateFileRequest) (*MedicalFile, error) {
	if err := s.validate.Struct(&req); err != nil {
		return nil, err
	}
	if err := s.patients.CheckAccess(ctx, sess.DoctorID, req.PatientID); err != nil {
		return nil, err
	}
	if req.MedicalRecordID != nil {
		m, err := s.authorizeRecord(ctx, sess, *req.MedicalRecordID)
		if err != nil {
			return nil, err
		}
		if m.PatientID != req.PatientID {
			return nil, apperr.Validation("invalid medical record",
				apperr.FieldError{Field: "medical_record_id", Message: "must belong to the same patient"})
		}
	}
	if req.Category == "" {
		req.Category = CategoryOther
	}

	f := &MedicalFile{
		PatientID:       req.PatientID,
		DoctorID:        sess.DoctorID,
		MedicalRecordID: req.MedicalRecordID,
		FileName:        middleware.CleanString(req.FileName),
		URL:             strings.TrimSpace(req.URL),
		MimeType:        optional(req.MimeType),
		SizeBytes:       req.SizeBytes,
		Category:        req.Category,
	}
	if err := s.files.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) DeleteFile(ctx context.Context, sess *auth.Session, id uuid.UUID) error {
	if _, err := s.authorizeFile(ctx, sess, id); err != nil {
		return err
	}
	return s.files.SoftDelete(ctx, id, s.now())
}

func checkFollowUp(m *MedicalRecord) error {
	if m.FollowUpDate != nil && m.FollowUpDate.Before(m.VisitDate) {
		return apperr.Validation("invalid fields: follow_up_date",
			apperr.FieldError{Field: "follow_up_date", Message: "must not be before the visit date"})
	}
	return nil
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

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = middleware.CleanString(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
