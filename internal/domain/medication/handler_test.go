package medication

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
)

func newRequest(e *echo.Echo, method, target, body string, sess *auth.Session) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if sess != nil {
		req = req.WithContext(auth.WithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Create(t *testing.T) {
	env := newTestEnv()
	h := NewHandler(env.svc)
	e := echo.New()

	body := `{"patient_id":"` + env.patient.String() + `","medications":[{"name":"Loratadine","dosage":"10mg","frequency":"daily"}]}`
	c, rec := newRequest(e, http.MethodPost, "/api/prescriptions", body, env.doctor)
	if err := h.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"active"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c, _ = newRequest(e, http.MethodPost, "/api/prescriptions", `{"patient_id":"`+env.patient.String()+`","medications":[]}`, env.doctor)
	if err := h.Create(c); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_CompleteTwice(t *testing.T) {
	env := newTestEnv()
	h := NewHandler(env.svc)
	e := echo.New()
	p := env.prescribe(t)

	for i, want := range []error{nil, apperr.ErrInvalidState} {
		c, _ := newRequest(e, http.MethodPatch, "/", "", env.doctor)
		c.SetParamNames("id")
		c.SetParamValues(p.ID.String())
		err := h.Complete(c)
		if want == nil && err != nil {
			t.Errorf("call %d: unexpected error %v", i, err)
		}
		if want != nil && !errors.Is(err, want) {
			t.Errorf("call %d: expected %v, got %v", i, want, err)
		}
	}
}
