package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	transferservice "github.com/skypanel/cbs/internal/application/transfer"
	"github.com/skypanel/cbs/internal/domain"
)

type TransferHandler struct {
	transferSvc transferservice.ITransferCoordinator
	logger      zerolog.Logger
}

func NewTransferHandler(transferSvc transferservice.ITransferCoordinator, logger zerolog.Logger) *TransferHandler {
	return &TransferHandler{
		transferSvc: transferSvc,
		logger:      logger,
	}
}

type transferRequest struct {
	ToUser      string `json:"to_user" binding:"required"`
	GrossAmount int64  `json:"gross_amount" binding:"required"`
}

// Transfer gifts coins from the authenticated user. The fee comes from the
// configured gift fee policy, never from the request.
func (h *TransferHandler) Transfer(c *gin.Context) {
	fromUser, ok := authenticatedUser(c)
	if !ok {
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.ApiResponse{
			Message: err.Error(),
			Success: false,
			Status:  http.StatusBadRequest,
		})
		return
	}

	intent := domain.TransferIntent{
		FromUser:    fromUser,
		ToUser:      req.ToUser,
		GrossAmount: req.GrossAmount,
		FeeAmount:   h.transferSvc.GiftFee(req.GrossAmount),
	}

	receipt, err := h.transferSvc.Transfer(c.Request.Context(), intent)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, domain.ApiResponse{
		Message: "Gift sent",
		Success: true,
		Status:  http.StatusOK,
		Data:    receipt,
	})
}
