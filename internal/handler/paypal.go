package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"paypal-billing/internal/dto"
	"paypal-billing/internal/paypal"
	"paypal-billing/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type PaypalHandler struct {
	log           *zap.Logger
	paypalService service.PaypalService
}

func NewPaypalHandler(log *zap.Logger, paypalService service.PaypalService) *PaypalHandler {
	return &PaypalHandler{
		log:           log.Named("handler"),
		paypalService: paypalService,
	}
}

func (h *PaypalHandler) PayPalWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, ok := readBody(c)
	if !ok {
		return c.NoContent(http.StatusBadRequest)
	}

	outcome, err := h.paypalService.HandleWebhook(ctx, c.Request().Header, body)
	return h.respond(c, outcome, err)
}

func (h *PaypalHandler) PayPalIPN(c echo.Context) error {
	ctx := c.Request().Context()

	body, ok := readBody(c)
	if !ok {
		return c.NoContent(http.StatusBadRequest)
	}

	outcome, err := h.paypalService.HandleIPN(ctx, body)
	return h.respond(c, outcome, err)
}

func readBody(c echo.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil || strings.TrimSpace(string(body)) == "" {
		return nil, false
	}
	return body, true
}

// respond maps the result onto what PayPal expects: 2xx stops redelivery,
// 4xx flags the notification, 5xx asks PayPal to retry later.
func (h *PaypalHandler) respond(c echo.Context, outcome service.Outcome, err error) error {
	switch {
	case errors.Is(err, service.ErrUnverified):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "unverified notification"})
	case errors.Is(err, paypal.ErrMalformedPayload):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "malformed notification"})
	case err != nil:
		h.log.Error("handle paypal notification", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}

	resp := dto.NotificationResponse{
		Status: string(outcome.Status),
		Reason: string(outcome.Reason),
	}
	if !outcome.Acknowledged() {
		return c.JSON(http.StatusBadRequest, resp)
	}
	return c.JSON(http.StatusOK, resp)
}
