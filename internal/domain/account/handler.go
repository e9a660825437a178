package account

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

// RegisterRoutes mounts the public auth endpoints on api behind limiter and
// the account endpoints on protected, which must already authenticate.
func (h *Handler) RegisterRoutes(api, protected *echo.Group, limiter echo.MiddlewareFunc) {
	public := api.Group("/auth", limiter)
	public.POST("/register", h.Register)
	public.POST("/verify-email", h.VerifyEmail)
	public.POST("/resend-verification", h.ResendVerification)
	public.POST("/login", h.Login)
	public.POST("/forgot-password", h.ForgotPassword)
	public.POST("/reset-password", h.ResetPassword)

	me := protected.Group("/auth")
	me.GET("/me", h.Me)
	me.PATCH("/me", h.UpdateMe)
	me.POST("/change-password", h.ChangePassword)

	staff := protected.Group("/staff", auth.RequireCapability(auth.CanManageStaff))
	staff.GET("", h.ListStaff)
	staff.POST("", h.CreateStaff)
	staff.PATCH("/:id/permissions", h.UpdateStaff)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, response.Envelope{
		Success: true,
		Message: "verification code sent",
		Data:    res,
	})
}

func (h *Handler) VerifyEmail(c echo.Context) error {
	var req VerifyEmailRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.VerifyEmail(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, res)
}

func (h *Handler) ResendVerification(c echo.Context) error {
	var req EmailRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ResendVerification(c.Request().Context(), req); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "if the account exists and is unverified, a new code has been sent")
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, res)
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req EmailRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ForgotPassword(c.Request().Context(), req); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "if the account exists, a reset link has been sent")
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ResetPassword(c.Request().Context(), req); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "password updated")
}

func (h *Handler) Me(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Me(c.Request().Context(), sess)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, u)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	var patch ProfileUpdate
	if err := response.Bind(c, &patch); err != nil {
		return err
	}
	u, err := h.svc.UpdateProfile(c.Request().Context(), sess, patch)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, u)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	var req ChangePasswordRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), sess, req); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "password updated")
}

func (h *Handler) ListStaff(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListStaff(c.Request().Context(), sess, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg))
}

func (h *Handler) CreateStaff(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	var req CreateStaffRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.CreateStaff(c.Request().Context(), sess, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, u)
}

func (h *Handler) UpdateStaff(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := response.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req StaffUpdate
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.UpdateStaff(c.Request().Context(), sess, id, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, u)
}
