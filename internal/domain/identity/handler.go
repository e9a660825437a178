package identity

import (
	"net/http"

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/patients", auth.RequireCapability(auth.CanViewPatients))
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write := api.Group("/patients", auth.RequireCapability(auth.CanEditPatients))
	write.POST("", h.Create)
	write.PATCH("/:id", h.Update)
	write.PUT("/:id", h.Update)
	write.DELETE("/:id", h.Delete)
	write.POST("/:id/restore", h.Restore)
	write.POST("/:id/doctors", h.Share)
}

func (h *Handler) List(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := ListFilter{
		Query:          c.QueryParam("q"),
		Status:         Status(c.QueryParam("status")),
		IncludeDeleted: c.QueryParam("include_deleted") == "true",
	}
	patients, total, err := h.svc.List(c.Request().Context(), sess, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
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
	var req CreatePatientRequest
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
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req UpdatePatientRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), sess, id, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, p)
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
	return response.Message(c, http.StatusOK, "patient deleted")
}

func (h *Handler) Restore(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Restore(c.Request().Context(), sess, id)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, p)
}

func (h *Handler) Share(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req ShareRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.Share(c.Request().Context(), sess, id, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, p)
}
