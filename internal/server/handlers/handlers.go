package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	balanceservice "github.com/skypanel/cbs/internal/application/balance"
	paymentservice "github.com/skypanel/cbs/internal/application/payments"
	transferservice "github.com/skypanel/cbs/internal/application/transfer"
	"github.com/skypanel/cbs/internal/domain"
	"github.com/skypanel/cbs/internal/gateway"
	"github.com/skypanel/cbs/internal/server/middleware"
	"github.com/skypanel/cbs/internal/server/websocket"
	"github.com/skypanel/cbs/pkg/config"
)

type Handlers struct {
	BalanceSvc  balanceservice.IBalanceService
	TrackerSvc  paymentservice.IPaymentTracker
	TransferSvc transferservice.ITransferCoordinator
	Stripe      *gateway.StripeAdapter
	PayPal      *gateway.PayPalAdapter
	Logger      zerolog.Logger
	Config      *config.Config
	WsHub       *websocket.WsHub
}

func New(
	balanceSvc balanceservice.IBalanceService,
	trackerSvc paymentservice.IPaymentTracker,
	transferSvc transferservice.ITransferCoordinator,
	stripe *gateway.StripeAdapter,
	paypal *gateway.PayPalAdapter,
	logger zerolog.Logger,
	cfg *config.Config,
	wsHub *websocket.WsHub,
) *Handlers {
	return &Handlers{
		BalanceSvc:  balanceSvc,
		TrackerSvc:  trackerSvc,
		TransferSvc: transferSvc,
		Stripe:      stripe,
		PayPal:      paypal,
		Logger:      logger,
		Config:      cfg,
		WsHub:       wsHub,
	}
}

func (h *Handlers) SetupHandlers(router *gin.Engine) {
	mw := middleware.NewMiddleware(h.Config, h.Logger)
	mw.SetupMiddleware(router)

	balanceHandler := NewBalanceHandler(h.BalanceSvc, h.Logger)
	paymentHandler := NewPaymentHandler(h.TrackerSvc, h.Logger)
	transferHandler := NewTransferHandler(h.TransferSvc, h.Logger)
	webhookHandler := NewWebhookHandler(h.Stripe, h.PayPal, h.Logger)
	statusHandler := NewStatusHandler(h.WsHub, h.Logger)
	healthHandler := NewHealthHandler()

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// WebSocket endpoint for live balance and session updates
	router.GET("/status", mw.AuthMiddleware(), statusHandler.HandleWebSocket)

	v1 := router.Group("/v1")
	{
		// Gateway callbacks authenticate themselves (signature / IPN echo)
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/stripe", webhookHandler.HandleStripe)
			webhooks.POST("/paypal", webhookHandler.HandlePayPal)
		}

		payments := v1.Group("/payments", mw.AuthMiddleware())
		{
			payments.POST("/sessions", paymentHandler.CreateSession)
			payments.GET("/:reference", paymentHandler.GetSession)
			payments.POST("/:reference/confirm", paymentHandler.ConfirmSession)
			payments.POST("/:reference/cancel", paymentHandler.CancelSession)
		}

		transfers := v1.Group("/transfers", mw.AuthMiddleware())
		{
			transfers.POST("", transferHandler.Transfer)
		}

		// Administrative and internal fee-charging routes
		users := v1.Group("/users", mw.APIKeyMiddleware())
		{
			users.POST("/:user_id/account", balanceHandler.EnsureAccount)
			users.GET("/:user_id/balance", balanceHandler.GetBalance)
			users.POST("/:user_id/credit", balanceHandler.Credit)
			users.POST("/:user_id/debit", balanceHandler.Debit)
			users.GET("/:user_id/payments", paymentHandler.ListSessions)
		}
	}
}

// respondError translates the error taxonomy into HTTP statuses. Insufficient
// funds keeps its full message so the client can show the exact shortfall.
func respondError(c *gin.Context, logger zerolog.Logger, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrAmountMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyResolved):
		status = http.StatusConflict
	default:
		logger.Error().Err(err).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, domain.ApiResponse{
			Message: "Internal server error",
			Success: false,
			Status:  http.StatusInternalServerError,
		})
		return
	}

	c.JSON(status, domain.ApiResponse{
		Message: err.Error(),
		Success: false,
		Status:  status,
	})
}
