package medication

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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

func (h *Handler) RegisterRoutes(api *echo.Group, subscription echo.MiddlewareFunc) {
	view := auth.RequireCapability(auth.CanViewPrescriptions)
	edit := auth.RequireCapability(auth.CanEditPrescriptions)

	g := api.Group("/prescriptions")
	g.GET("", h.List, view, subscription)
	g.GET("/:id", h.Get, view, subscription)
	g.POST("", h.Create, edit, subscription)
	g.PATCH("/:id", h.Update, edit, subscription)
	g.PUT("/:id", h.Update, edit, subscription)
	g.PATCH("/:id/cancel", h.Cancel, edit, subscription)
	g.PATCH("/:id/complete", h.Complete, edit, subscription)
	g.DELETE("/:id", h.Delete, edit, subscription)
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
	pg := pagination.FromContext(c)
	f := ListFilter{PatientID: patientID, Status: Status(c.QueryParam("status"))}
	items, total, err := h.svc.List(c.Request().Context(), sess, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	sess, id, err := sessionAndID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), sess, id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, p)
}

func (h *Handler) Create(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	var req CreatePrescriptionRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.Create(c.Request().Context(), sess, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, p)
}

func (h *Handler) Update(c echo.Context) error {
	sess, id, err := sessionAndID(c)
	if err != nil {
		return err
	}
	var req UpdatePrescriptionRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), sess, id, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, p)
}

func (h *Handler) Cancel(c echo.Context) error {
	sess, id, err := sessionAndID(c)
	if err != nil {
		return err
	}
	var req CancelRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.Cancel(c.Request().Context(), sess, id, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, p)
}

func (h *Handler) Complete(c echo.Context) error {
	sess, id, err := sessionAndID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Complete(c.Request().Context(), sess, id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	sess, id, err := sessionAndID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), sess, id); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "prescription deleted")
}

func sessionAndID(c echo.Context) (*auth.Session, uuid.UUID, error) {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return nil, uuid.Nil, err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return nil, uuid.Nil, err
	}
	return sess, id, nil
}
