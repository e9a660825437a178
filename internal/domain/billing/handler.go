package billing

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
	"github.com/pacigest/pacigest/pkg/pagination"
	"github.com/pacigest/pacigest/pkg/response"
)

// WebhookSecretHeader carries the shared secret on provider webhooks.
const WebhookSecretHeader = "X-Webhook-Secret"

type Handler struct {
	svc           *Service
	webhookSecret string
}

// NewHandler wires the billing routes. An empty webhookSecret disables the
// provider webhook.
func NewHandler(svc *Service, webhookSecret string) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret}
}

// RegisterRoutes mounts the practice-facing routes on protected and the
// provider webhook on api, outside session authentication.
func (h *Handler) RegisterRoutes(api, protected *echo.Group) {
	billing := auth.RequireCapability(auth.CanManageBilling)

	g := protected.Group("/payments", billing)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)

	protected.GET("/subscription", h.Subscription, billing)

	api.POST("/payments/webhook", h.Webhook, requireWebhookSecret(h.webhookSecret))
}

// requireWebhookSecret admits only requests carrying the configured secret.
// A bearer session does not count.
func requireWebhookSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(WebhookSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				return apperr.Forbidden("payment settlement is only accepted from the provider")
			}
			return next(c)
		}
	}
}

func (h *Handler) List(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), sess, ListFilter{Status: Status(c.QueryParam("status"))}, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
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
	var req CreatePaymentRequest
	if err := response.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.Create(c.Request().Context(), sess, req)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, p)
}

func (h *Handler) Webhook(c echo.Context) error {
	var ev ProviderEvent
	if err := response.Bind(c, &ev); err != nil {
		return err
	}
	p, err := h.svc.HandleEvent(c.Request().Context(), ev)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, p)
}

func (h *Handler) Subscription(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	sub, err := h.svc.Subscription(c.Request().Context(), sess)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, sub)
}
