package transferservice

import (
	"context"

	"github.com/skypanel/cbs/internal/domain"
)

// ITransferCoordinator applies gifts between two users: the sender is
// debited gross plus fee, the recipient credited gross, both-or-neither.
type ITransferCoordinator interface {
	Transfer(ctx context.Context, intent domain.TransferIntent) (*domain.TransferReceipt, error)
	// GiftFee computes the configured fee for a gross gift amount.
	GiftFee(grossAmount int64) int64
}
