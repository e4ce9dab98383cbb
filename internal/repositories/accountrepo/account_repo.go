package accountrepo

import (
	"context"

	"github.com/skypanel/cbs/internal/domain"
)

type IAccountRepository interface {
	EnsureAccount(ctx context.Context, userID string) (*domain.Account, error)
	GetAccount(ctx context.Context, userID string) (*domain.Account, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error)
	Transfer(ctx context.Context, intent domain.TransferIntent) (senderBalance, recipientBalance int64, err error)
}
