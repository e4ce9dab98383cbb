package transferservice

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/skypanel/cbs/internal/domain"
	"github.com/skypanel/cbs/internal/repositories/accountrepo"
	"github.com/skypanel/cbs/internal/server/websocket"
	"github.com/skypanel/cbs/pkg/config"
)

type transferCoordinator struct {
	accountRepo accountrepo.IAccountRepository
	config      config.TransferConfig
	logger      zerolog.Logger
	wsHub       *websocket.WsHub
}

func New(
	accountRepo accountrepo.IAccountRepository,
	cfg config.TransferConfig,
	logger zerolog.Logger,
	wsHub *websocket.WsHub,
) ITransferCoordinator {
	return &transferCoordinator{
		accountRepo: accountRepo,
		config:      cfg,
		logger:      logger,
		wsHub:       wsHub,
	}
}

func (s *transferCoordinator) Transfer(ctx context.Context, intent domain.TransferIntent) (*domain.TransferReceipt, error) {
	if err := s.validate(intent); err != nil {
		return nil, err
	}

	senderBalance, recipientBalance, err := s.accountRepo.Transfer(ctx, intent)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("from_user", intent.FromUser).
		Str("to_user", intent.ToUser).
		Int64("gross_amount", intent.GrossAmount).
		Int64("fee_amount", intent.FeeAmount).
		Int64("sender_balance", senderBalance).
		Msg("Gift transfer completed")

	if s.wsHub != nil {
		now := time.Now().UTC()
		s.wsHub.BroadcastBalance(domain.BalanceChange{
			UserID:       intent.FromUser,
			Change:       -intent.TotalDebit(),
			BalanceAfter: senderBalance,
			Reason:       "gift_sent",
			Timestamp:    now,
		})
		s.wsHub.BroadcastBalance(domain.BalanceChange{
			UserID:       intent.ToUser,
			Change:       intent.GrossAmount,
			BalanceAfter: recipientBalance,
			Reason:       "gift_received",
			Timestamp:    now,
		})
	}

	return &domain.TransferReceipt{
		FromUser:         intent.FromUser,
		ToUser:           intent.ToUser,
		GrossAmount:      intent.GrossAmount,
		FeeAmount:        intent.FeeAmount,
		SenderBalance:    senderBalance,
		RecipientBalance: recipientBalance,
	}, nil
}

func (s *transferCoordinator) GiftFee(grossAmount int64) int64 {
	if s.config.FeePercent <= 0 {
		return 0
	}
	return grossAmount * int64(s.config.FeePercent) / 100
}

func (s *transferCoordinator) validate(intent domain.TransferIntent) error {
	if intent.FromUser == "" || intent.ToUser == "" {
		return fmt.Errorf("%w: both from_user and to_user are required", domain.ErrInvalidArgument)
	}
	if intent.FromUser == intent.ToUser {
		return fmt.Errorf("%w: cannot gift coins to yourself", domain.ErrInvalidArgument)
	}
	if intent.GrossAmount <= 0 {
		return fmt.Errorf("%w: gross_amount must be positive, got %d", domain.ErrInvalidArgument, intent.GrossAmount)
	}
	if intent.FeeAmount < 0 {
		return fmt.Errorf("%w: fee_amount must not be negative, got %d", domain.ErrInvalidArgument, intent.FeeAmount)
	}
	if s.config.MinimumAmount > 0 && intent.GrossAmount < s.config.MinimumAmount {
		return fmt.Errorf("%w: gifts below %d coins are not allowed", domain.ErrInvalidArgument, s.config.MinimumAmount)
	}
	return nil
}
