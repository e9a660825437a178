package stats

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
)

type mockRepo struct {
	calls  int
	window Window
}

func (m *mockRepo) Dashboard(_ context.Context, doctorID uuid.UUID, w Window) (*Dashboard, error) {
	m.calls++
	m.window = w
	return &Dashboard{DoctorID: doctorID, PatientsTotal: 12, AppointmentsToday: 3, GeneratedAt: w.Now}, nil
}

func TestWindowAt(t *testing.T) {
	w := WindowAt(time.Date(2026, 12, 31, 23, 30, 0, 0, time.FixedZone("CET", 3600)))
	if !w.DayStart.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected day start %v", w.DayStart)
	}
	if !w.DayEnd.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected day end %v", w.DayEnd)
	}
	if !w.MonthStart.Equal(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)) || !w.MonthEnd.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected month %v - %v", w.MonthStart, w.MonthEnd)
	}
}

func TestDashboard_Scope(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)
	doctorID := uuid.New()
	doctor := &auth.Session{UserID: doctorID, Role: auth.RoleDoctor, DoctorID: doctorID}
	staff := &auth.Session{UserID: uuid.New(), Role: auth.RoleStaff, DoctorID: doctorID}

	for _, sess := range []*auth.Session{doctor, staff} {
		d, err := svc.Dashboard(context.Background(), sess, doctorID)
		if err != nil {
			t.Fatalf("role %s: %v", sess.Role, err)
		}
		if d.PatientsTotal != 12 {
			t.Errorf("unexpected dashboard %+v", d)
		}
	}

	if _, err := svc.Dashboard(context.Background(), doctor, uuid.New()); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for another doctor, got %v", err)
	}
	if repo.calls != 2 {
		t.Errorf("repository must not be queried for a foreign practice, calls=%d", repo.calls)
	}
}

func TestHandler_Dashboard(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC) }
	h := NewHandler(svc)
	doctorID := uuid.New()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithSession(req.Context(), &auth.Session{UserID: doctorID, Role: auth.RoleDoctor, DoctorID: doctorID}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("doctorId")
	c.SetParamValues(doctorID.String())

	if err := h.Dashboard(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"appointments_today":3`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if !repo.window.MonthStart.Equal(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected window %+v", repo.window)
	}
}
