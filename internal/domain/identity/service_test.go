package identity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
)

// -- Mock Patient Repository --

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient")
	}
	cp := *p
	cp.DoctorIDs = append([]uuid.UUID(nil), p.DoctorIDs...)
	return &cp, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperr.NotFound("patient")
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	p, ok := m.patients[id]
	if !ok || p.Status == StatusDeleted {
		return apperr.NotFound("patient")
	}
	p.Status = StatusDeleted
	p.DeletedAt = &at
	return nil
}

func (m *mockPatientRepo) Restore(_ context.Context, id uuid.UUID) error {
	p, ok := m.patients[id]
	if !ok || p.Status != StatusDeleted {
		return apperr.NotFound("patient")
	}
	p.Status = StatusActive
	p.DeletedAt = nil
	return nil
}

func (m *mockPatientRepo) AddDoctor(_ context.Context, id, doctorID uuid.UUID) error {
	p, ok := m.patients[id]
	if !ok {
		return apperr.NotFound("patient")
	}
	if !p.OwnedBy(doctorID) {
		p.DoctorIDs = append(p.DoctorIDs, doctorID)
	}
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if !p.OwnedBy(doctorID) {
			continue
		}
		if f.Status != "" {
			if p.Status != f.Status {
				continue
			}
		} else if !f.IncludeDeleted && p.Status == StatusDeleted {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(p.FullName()), strings.ToLower(f.Query)) {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LastName < result[j].LastName })
	total := len(result)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

type mockDoctors map[uuid.UUID]bool

func (m mockDoctors) DoctorExists(_ context.Context, id uuid.UUID) (bool, error) {
	return m[id], nil
}

// -- Helpers --

func newTestService() (*Service, *mockPatientRepo, mockDoctors) {
	repo := newMockPatientRepo()
	doctors := mockDoctors{}
	return NewService(repo, doctors), repo, doctors
}

func doctorSession() *auth.Session {
	id := uuid.New()
	return &auth.Session{UserID: id, Role: auth.RoleDoctor, DoctorID: id}
}

func staffSession(doctorID uuid.UUID) *auth.Session {
	return &auth.Session{UserID: uuid.New(), Role: auth.RoleStaff, DoctorID: doctorID, Permissions: auth.StaffCeiling()}
}

func createPatient(t *testing.T, svc *Service, sess *auth.Session, first, last string) *Patient {
	t.Helper()
	p, err := svc.Create(context.Background(), sess, CreatePatientRequest{FirstName: first, LastName: last})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

// -- Tests --

func TestCreatePatient(t *testing.T) {
	svc, _, _ := newTestService()
	sess := doctorSession()

	p, err := svc.Create(context.Background(), sess, CreatePatientRequest{
		FirstName: " Maria ", LastName: "Garcia", Email: "Maria@Example.com",
		BirthDate: "1985-04-12", BloodType: "O+", Allergies: []string{"penicillin", "  "},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FirstName != "Maria" {
		t.Errorf("expected trimmed name, got %q", p.FirstName)
	}
	if len(p.DoctorIDs) != 1 || p.DoctorIDs[0] != sess.DoctorID {
		t.Errorf("expected owner %s, got %v", sess.DoctorID, p.DoctorIDs)
	}
	if p.Email == nil || *p.Email != "maria@example.com" {
		t.Errorf("expected lower-cased email, got %v", p.Email)
	}
	if p.BirthDate == nil || p.BirthDate.Year() != 1985 {
		t.Errorf("unexpected birth date %v", p.BirthDate)
	}
	if len(p.Allergies) != 1 {
		t.Errorf("expected blank allergy dropped, got %v", p.Allergies)
	}
	if p.Status != StatusActive || p.CreatedBy != sess.UserID {
		t.Errorf("unexpected status/creator: %s %s", p.Status, p.CreatedBy)
	}
}

func TestCreatePatient_StaffOwnsForDoctor(t *testing.T) {
	svc, _, _ := newTestService()
	doctor := doctorSession()
	p := createPatient(t, svc, staffSession(doctor.DoctorID), "Ana", "Ruiz")
	if !p.OwnedBy(doctor.DoctorID) {
		t.Error("staff-created patient must belong to the employing doctor")
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	tests := []struct {
		name string
		req  CreatePatientRequest
	}{
		{"missing last name", CreatePatientRequest{FirstName: "A"}},
		{"blank first name", CreatePatientRequest{FirstName: "   ", LastName: "B"}},
		{"blank allergy", CreatePatientRequest{FirstName: "A", LastName: "B", Allergies: []string{"latex", " "}}},
		{"bad email", CreatePatientRequest{FirstName: "A", LastName: "B", Email: "nope"}},
		{"bad date", CreatePatientRequest{FirstName: "A", LastName: "B", BirthDate: "12/04/1985"}},
		{"bad blood type", CreatePatientRequest{FirstName: "A", LastName: "B", BloodType: "C+"}},
		{"bad gender", CreatePatientRequest{FirstName: "A", LastName: "B", Gender: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), doctorSession(), tt.req)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGetPatient_CrossDoctorForbidden(t *testing.T) {
	svc, _, _ := newTestService()
	owner := doctorSession()
	p := createPatient(t, svc, owner, "Ana", "Ruiz")

	_, err := svc.Get(context.Background(), doctorSession(), p.ID)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	_, err = svc.Get(context.Background(), owner, uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSoftDelete(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	sess := doctorSession()
	keep := createPatient(t, svc, sess, "Ana", "Alvarez")
	gone := createPatient(t, svc, sess, "Beto", "Bravo")

	if err := svc.Delete(ctx, sess, gone.ID); err != nil {
		t.Fatal(err)
	}

	list, total, _ := svc.List(ctx, sess, ListFilter{}, 20, 0)
	if total != 1 || list[0].ID != keep.ID {
		t.Errorf("default list should exclude deleted patients, got %d", total)
	}
	_, total, _ = svc.List(ctx, sess, ListFilter{IncludeDeleted: true}, 20, 0)
	if total != 2 {
		t.Errorf("include_deleted should return both, got %d", total)
	}

	p, err := svc.Get(ctx, sess, gone.ID)
	if err != nil {
		t.Fatalf("deleted patient should be retrievable by id: %v", err)
	}
	if p.Status != StatusDeleted || p.DeletedAt == nil {
		t.Errorf("expected deleted status, got %s", p.Status)
	}

	if err := svc.Delete(ctx, sess, gone.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("second delete should be invalid state, got %v", err)
	}
	if _, err := svc.Update(ctx, sess, gone.ID, UpdatePatientRequest{}); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("update of deleted patient should be invalid state, got %v", err)
	}
	if err := svc.CheckAccess(ctx, sess.DoctorID, gone.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("deleted patient should not accept new rows, got %v", err)
	}

	restored, err := svc.Restore(ctx, sess, gone.ID)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Status != StatusActive {
		t.Errorf("expected active after restore, got %s", restored.Status)
	}
}

func TestUpdatePatient(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	sess := doctorSession()
	p := createPatient(t, svc, sess, "Ana", "Ruiz")

	phone := "+34 600 000 000"
	inactive := StatusInactive
	allergies := []string{"latex"}
	out, err := svc.Update(ctx, sess, p.ID, UpdatePatientRequest{Phone: &phone, Status: &inactive, Allergies: &allergies})
	if err != nil {
		t.Fatal(err)
	}
	if out.Phone == nil || *out.Phone != phone || out.Status != StatusInactive || len(out.Allergies) != 1 {
		t.Errorf("unexpected update %+v", out)
	}
	if out.FirstName != "Ana" {
		t.Error("unset fields must be left unchanged")
	}

	blank := "  "
	if _, err := svc.Update(ctx, sess, p.ID, UpdatePatientRequest{LastName: &blank}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for a blank name, got %v", err)
	}
	bad := "not-an-email"
	if _, err := svc.Update(ctx, sess, p.ID, UpdatePatientRequest{Email: &bad}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	deleted := StatusDeleted
	if _, err := svc.Update(ctx, sess, p.ID, UpdatePatientRequest{Status: &deleted}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("status=deleted must go through delete, got %v", err)
	}
	if _, err := svc.Update(ctx, doctorSession(), p.ID, UpdatePatientRequest{Phone: &phone}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestListPatients_Search(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	sess := doctorSession()
	createPatient(t, svc, sess, "Ana", "Ruiz")
	createPatient(t, svc, sess, "Carlos", "Mendez")
	createPatient(t, svc, doctorSession(), "Ana", "Other")

	list, total, err := svc.List(ctx, sess, ListFilter{Query: "ana"}, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || list[0].LastName != "Ruiz" {
		t.Errorf("search must stay within the practice, got %d", total)
	}

	if _, _, err := svc.List(ctx, sess, ListFilter{Status: "archived"}, 20, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}

func TestSharePatient(t *testing.T) {
	svc, _, doctors := newTestService()
	ctx := context.Background()
	owner := doctorSession()
	other := doctorSession()
	doctors[other.DoctorID] = true
	p := createPatient(t, svc, owner, "Ana", "Ruiz")

	if _, err := svc.Share(ctx, owner, p.ID, ShareRequest{DoctorID: uuid.New()}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown doctor, got %v", err)
	}
	if _, err := svc.Share(ctx, staffSession(owner.DoctorID), p.ID, ShareRequest{DoctorID: other.DoctorID}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("staff must not share patients, got %v", err)
	}

	shared, err := svc.Share(ctx, owner, p.ID, ShareRequest{DoctorID: other.DoctorID})
	if err != nil {
		t.Fatal(err)
	}
	if len(shared.DoctorIDs) != 2 {
		t.Errorf("expected two doctors, got %v", shared.DoctorIDs)
	}
	if _, err := svc.Get(ctx, other, p.ID); err != nil {
		t.Errorf("shared doctor should see the patient: %v", err)
	}
}

func TestCheckAccess(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := doctorSession()
	p := createPatient(t, svc, owner, "Ana", "Ruiz")

	tests := []struct {
		name     string
		doctorID uuid.UUID
		id       uuid.UUID
		want     error
	}{
		{"owner", owner.DoctorID, p.ID, nil},
		{"other doctor", uuid.New(), p.ID, apperr.ErrForbidden},
		{"unknown patient", owner.DoctorID, uuid.New(), apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CheckAccess(ctx, tt.doctorID, tt.id)
			if tt.want == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	svc.Delete(ctx, owner, p.ID)
	if err := svc.CheckRead(ctx, owner.DoctorID, p.ID); err != nil {
		t.Errorf("history of a deleted patient stays readable: %v", err)
	}
}
