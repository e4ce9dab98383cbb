package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	balanceservice "github.com/skypanel/cbs/internal/application/balance"
	"github.com/skypanel/cbs/internal/domain"
)

type BalanceHandler struct {
	balanceSvc balanceservice.IBalanceService
	logger     zerolog.Logger
}

func NewBalanceHandler(balanceSvc balanceservice.IBalanceService, logger zerolog.Logger) *BalanceHandler {
	return &BalanceHandler{
		balanceSvc: balanceSvc,
		logger:     logger,
	}
}

type mutationRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

func (h *BalanceHandler) EnsureAccount(c *gin.Context) {
	account, err := h.balanceSvc.EnsureAccount(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, domain.ApiResponse{
		Message: "Account ready",
		Success: true,
		Status:  http.StatusOK,
		Data:    account,
	})
}

func (h *BalanceHandler) GetBalance(c *gin.Context) {
	balance, err := h.balanceSvc.GetBalance(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, domain.ApiResponse{
		Message: "Balance retrieved",
		Success: true,
		Status:  http.StatusOK,
		Data: gin.H{
			"user_id": c.Param("user_id"),
			"balance": balance,
		},
	})
}

func (h *BalanceHandler) Credit(c *gin.Context) {
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.ApiResponse{
			Message: err.Error(),
			Success: false,
			Status:  http.StatusBadRequest,
		})
		return
	}
	if req.Reason == "" {
		req.Reason = "admin_credit"
	}

	balance, err := h.balanceSvc.Credit(c.Request.Context(), c.Param("user_id"), req.Amount, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, domain.ApiResponse{
		Message: "Account credited",
		Success: true,
		Status:  http.StatusOK,
		Data: gin.H{
			"user_id": c.Param("user_id"),
			"balance": balance,
		},
	})
}

func (h *BalanceHandler) Debit(c *gin.Context) {
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.ApiResponse{
			Message: err.Error(),
			Success: false,
			Status:  http.StatusBadRequest,
		})
		return
	}
	if req.Reason == "" {
		req.Reason = "service_fee"
	}

	balance, err := h.balanceSvc.Debit(c.Request.Context(), c.Param("user_id"), req.Amount, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, domain.ApiResponse{
		Message: "Account debited",
		Success: true,
		Status:  http.StatusOK,
		Data: gin.H{
			"user_id": c.Param("user_id"),
			"balance": balance,
		},
	})
}
