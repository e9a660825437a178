package scheduling

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/pkg/pagination"
	"github.com/pacigest/pacigest/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments", auth.RequireCapability(auth.CanScheduleAppointments))
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PATCH("/:id", h.Update)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id/confirm", h.Confirm)
	g.PATCH("/:id/cancel", h.Cancel)
	g.PATCH("/:id/complete", h.Complete)
	g.DELETE("/:id", h.Delete)

	history := api.Group("/patients", auth.RequireCapability(auth.CanViewPatients))
	history.GET("/:id/appointments", h.ListForPatient)
}

func (h *Handler) List(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	patientID, err := response.QueryID(c, "patient_id")
	if err != nil {
		return err
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return err
	}
	f := ListFilter{Status: Status(c.QueryParam("status")), PatientID: patientID, From: from, To: to}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), sess, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListForPatient(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	patientID, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListForPatient(c.Request().Context(), sess, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	return h.withID(c, func(sess *auth.Session, id uuid.UUID) (*Appointment, error) {
		return h.svc.Get(c.Request().Context(), sess, id)
	}, http.StatusOK)
}

func (h *Handler) Create(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	var req CreateAppointmentRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	a, err := h.svc.Create(c.Request().Context(), sess, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, a)
}

func (h *Handler) Update(c echo.Context) error {
	var req UpdateAppointmentRequest
	return h.withID(c, func(sess *auth.Session, id uuid.UUID) (*Appointment, error) {
		if err := response.Bind(c, &req); err != nil {
			return nil, err
		}
		return h.svc.Update(c.Request().Context(), sess, id, req)
	}, http.StatusOK)
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.withID(c, func(sess *auth.Session, id uuid.UUID) (*Appointment, error) {
		return h.svc.Confirm(c.Request().Context(), sess, id)
	}, http.StatusOK)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.withID(c, func(sess *auth.Session, id uuid.UUID) (*Appointment, error) {
		return h.svc.Complete(c.Request().Context(), sess, id)
	}, http.StatusOK)
}

func (h *Handler) Cancel(c echo.Context) error {
	var req CancelRequest
	return h.withID(c, func(sess *auth.Session, id uuid.UUID) (*Appointment, error) {
		if err := response.Bind(c, &req); err != nil {
			return nil, err
		}
		return h.svc.Cancel(c.Request().Context(), sess, id, req)
	}, http.StatusOK)
}

func (h *Handler) Delete(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), sess, id); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "appointment deleted")
}

// withID resolves the session and :id, runs fn and writes its result.
func (h *Handler) withID(c echo.Context, fn func(*auth.Session, uuid.UUID) (*Appointment, error), status int) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	a, err := fn(sess, id)
	if err != nil {
		return err
	}
	return response.JSON(c, status, a)
}

// queryTime accepts RFC 3339 timestamps or plain dates (midnight UTC).
func queryTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.Validation("invalid "+name,
		apperr.FieldError{Field: name, Message: "must be an RFC 3339 timestamp or a 2006-01-02 date"})
}
