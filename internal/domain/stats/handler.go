package stats

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, subscription echo.MiddlewareFunc) {
	api.GET("/stats/dashboard/:doctorId", h.Dashboard, auth.RequireCapability(auth.CanViewStats), subscription)
}

func (h *Handler) Dashboard(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	doctorID, err := response.ParamID(c, "doctorId")
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), sess, doctorID)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, d)
}
