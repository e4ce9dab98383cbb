package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	paymentservice "github.com/skypanel/cbs/internal/application/payments"
	"github.com/skypanel/cbs/internal/domain"
)

type PaymentHandler struct {
	tracker paymentservice.IPaymentTracker
	logger  zerolog.Logger
}

func NewPaymentHandler(tracker paymentservice.IPaymentTracker, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		tracker: tracker,
		logger:  logger,
	}
}

type createSessionRequest struct {
	Gateway  domain.Gateway  `json:"gateway" binding:"required"`
	Amount   int64           `json:"amount" binding:"required"`
	Metadata json.RawMessage `json:"metadata"`
}

// CreateSession starts a top-up for the authenticated user. The returned
// reference is embedded in the redirect URL to the gateway checkout.
func (h *PaymentHandler) CreateSession(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.ApiResponse{
			Message: err.Error(),
			Success: false,
			Status:  http.StatusBadRequest,
		})
		return
	}

	session, err := h.tracker.CreateSession(c.Request.Context(), req.Gateway, userID, req.Amount, req.Metadata)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, domain.ApiResponse{
		Message: "Payment session created",
		Success: true,
		Status:  http.StatusCreated,
		Data:    session,
	})
}

func (h *PaymentHandler) GetSession(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, domain.ApiResponse{
		Message: "Payment session retrieved",
		Success: true,
		Status:  http.StatusOK,
		Data:    session,
	})
}

// ConfirmSession handles the return redirect from the gateway checkout.
func (h *PaymentHandler) ConfirmSession(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}

	err := h.tracker.Confirm(c.Request.Context(), session.Reference)
	if err != nil && !errors.Is(err, domain.ErrAlreadyResolved) {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, domain.ApiResponse{
		Message: "Payment session confirmed",
		Success: true,
		Status:  http.StatusOK,
	})
}

func (h *PaymentHandler) CancelSession(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}

	result, err := h.tracker.Resolve(c.Request.Context(), session.Reference, domain.OutcomeCancelled, 0)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, domain.ApiResponse{
		Message: "Payment session cancelled",
		Success: true,
		Status:  http.StatusOK,
		Data: gin.H{
			"result": result,
		},
	})
}

// ListSessions serves the dashboard's top-up history view.
func (h *PaymentHandler) ListSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	sessions, err := h.tracker.ListSessions(c.Request.Context(), c.Param("user_id"), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, domain.ApiResponse{
		Message: "Payment sessions retrieved",
		Success: true,
		Status:  http.StatusOK,
		Data: gin.H{
			"sessions": sessions,
			"total":    len(sessions),
		},
	})
}

// ownedSession loads the referenced session and checks it belongs to the
// authenticated user. References travel in redirect URLs and gateway
// metadata, so another user's session must read as missing, never as
// forbidden, and must never be actionable.
func (h *PaymentHandler) ownedSession(c *gin.Context) (*domain.PaymentSession, bool) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return nil, false
	}

	session, err := h.tracker.GetSession(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	if session.UserID != userID {
		c.JSON(http.StatusNotFound, domain.ApiResponse{
			Message: domain.ErrSessionNotFound.Error(),
			Success: false,
			Status:  http.StatusNotFound,
		})
		return nil, false
	}
	return session, true
}

// authenticatedUser pulls the user id the auth middleware stored.
func authenticatedUser(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, domain.ApiResponse{
			Message: "User not authenticated",
			Success: false,
			Status:  http.StatusUnauthorized,
		})
		return "", false
	}
	return userID.(string), true
}
