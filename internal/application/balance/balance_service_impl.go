package balanceservice

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/skypanel/cbs/internal/domain"
	"github.com/skypanel/cbs/internal/repositories/accountrepo"
	"github.com/skypanel/cbs/internal/server/websocket"
)

type balanceService struct {
	accountRepo accountrepo.IAccountRepository
	logger      zerolog.Logger
	wsHub       *websocket.WsHub
}

func New(accountRepo accountrepo.IAccountRepository, logger zerolog.Logger, wsHub *websocket.WsHub) IBalanceService {
	return &balanceService{
		accountRepo: accountRepo,
		logger:      logger,
		wsHub:       wsHub,
	}
}

func (s *balanceService) EnsureAccount(ctx context.Context, userID string) (*domain.Account, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidArgument)
	}
	return s.accountRepo.EnsureAccount(ctx, userID)
}

func (s *balanceService) GetBalance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user_id is required", domain.ErrInvalidArgument)
	}
	return s.accountRepo.GetBalance(ctx, userID)
}

func (s *balanceService) Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if err := validateMutation(userID, amount); err != nil {
		return 0, err
	}

	newBalance, err := s.accountRepo.Credit(ctx, userID, amount, reason, "")
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Int64("amount", amount).
		Int64("balance", newBalance).
		Str("reason", reason).
		Msg("Credited account")

	s.broadcast(userID, amount, newBalance, reason)
	return newBalance, nil
}

func (s *balanceService) Debit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if err := validateMutation(userID, amount); err != nil {
		return 0, err
	}

	newBalance, err := s.accountRepo.Debit(ctx, userID, amount, reason, "")
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Int64("amount", amount).
		Int64("balance", newBalance).
		Str("reason", reason).
		Msg("Debited account")

	s.broadcast(userID, -amount, newBalance, reason)
	return newBalance, nil
}

func (s *balanceService) broadcast(userID string, change, balanceAfter int64, reason string) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.BroadcastBalance(domain.BalanceChange{
		UserID:       userID,
		Change:       change,
		BalanceAfter: balanceAfter,
		Reason:       reason,
		Timestamp:    time.Now().UTC(),
	})
}

func validateMutation(userID string, amount int64) error {
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", domain.ErrInvalidArgument)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", domain.ErrInvalidArgument, amount)
	}
	return nil
}
