package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/skypanel/cbs/internal/domain"
	"github.com/skypanel/cbs/internal/gateway"
)

type WebhookHandler struct {
	stripe *gateway.StripeAdapter
	paypal *gateway.PayPalAdapter
	logger zerolog.Logger
}

func NewWebhookHandler(stripe *gateway.StripeAdapter, paypal *gateway.PayPalAdapter, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		stripe: stripe,
		paypal: paypal,
		logger: logger,
	}
}

// HandleStripe accepts Stripe event deliveries. Anything but a signature or
// payload problem is answered 200 so Stripe stops retrying; duplicates are
// already harmless by the time they reach here.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	result, err := h.stripe.HandleEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	h.respond(c, result, err)
}

// HandlePayPal accepts IPN deliveries, which arrive form-encoded.
func (h *WebhookHandler) HandlePayPal(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	result, err := h.paypal.HandleIPN(c.Request.Context(), body)
	h.respond(c, result, err)
}

func (h *WebhookHandler) respond(c *gin.Context, result domain.ResolveResult, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"result": result})
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrAmountMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		// Storage faults: make the gateway retry later.
		h.logger.Error().Err(err).Msg("Webhook resolution failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
