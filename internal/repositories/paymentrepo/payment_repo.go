package paymentrepo

import (
	"context"
	"time"

	"github.com/skypanel/cbs/internal/domain"
)

type IPaymentSessionRepository interface {
	CreateSession(ctx context.Context, session *domain.PaymentSession) error
	GetByReference(ctx context.Context, reference string) (*domain.PaymentSession, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.PaymentSession, error)
	// MarkPending transitions created -> pending. It reports false when the
	// session was not in created.
	MarkPending(ctx context.Context, reference string) (bool, error)
	// ResolveSucceeded flips created|pending -> processed and credits the
	// session's account in one transaction. The success event itself counts
	// as gateway confirmation, so a session whose redirect never came back
	// is still settled. A session already in a terminal state yields
	// ResolveAlreadyApplied with no balance effect.
	ResolveSucceeded(ctx context.Context, reference string) (domain.ResolveResult, *domain.PaymentSession, int64, error)
	// ResolveCancelled flips created|pending -> cancelled. No balance effect.
	ResolveCancelled(ctx context.Context, reference, errorMessage string) (domain.ResolveResult, *domain.PaymentSession, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentSession, error)
}
