package balanceservice

import (
	"context"

	"github.com/skypanel/cbs/internal/domain"
)

// IBalanceService is the coin balance store every paid feature goes
// through: admin grants, mass-mail fees, gifts and processed top-ups.
type IBalanceService interface {
	EnsureAccount(ctx context.Context, userID string) (*domain.Account, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64, reason string) (int64, error)
}
