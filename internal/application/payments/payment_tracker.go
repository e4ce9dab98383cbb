package paymentservice

import (
	"context"
	"encoding/json"

	"github.com/skypanel/cbs/internal/domain"
)

// IPaymentTracker owns the payment session state machine. Resolve is the
// single entry point gateway adapters call; it applies the balance credit
// at most once per reference no matter how often a webhook is redelivered.
type IPaymentTracker interface {
	CreateSession(ctx context.Context, gateway domain.Gateway, userID string, amount int64, metadata json.RawMessage) (*domain.PaymentSession, error)
	GetSession(ctx context.Context, reference string) (*domain.PaymentSession, error)
	ListSessions(ctx context.Context, userID string, limit, offset int) ([]domain.PaymentSession, error)
	// Confirm transitions created -> pending when the gateway redirect
	// comes back. Gateways whose flow has no separate round trip start
	// pending and never call this.
	Confirm(ctx context.Context, reference string) error
	// Resolve settles the session. gatewayAmount > 0 is checked against the
	// session amount and a mismatch is rejected without balance effect.
	Resolve(ctx context.Context, reference string, outcome domain.SessionOutcome, gatewayAmount int64) (domain.ResolveResult, error)
	// StartSessionExpirer cancels abandoned sessions until ctx is done.
	StartSessionExpirer(ctx context.Context) error
}
