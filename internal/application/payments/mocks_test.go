package paymentservice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypanel/cbs/internal/domain"
)

// fakeSessionRepo mirrors the store's conditional-transition semantics:
// every state flip checks and writes under one lock, so concurrent resolves
// see exactly what two racing UPDATE statements would.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.PaymentSession
	balances map[string]int64
}

func newFakeSessionRepo(balances map[string]int64) *fakeSessionRepo {
	if balances == nil {
		balances = make(map[string]int64)
	}
	return &fakeSessionRepo{
		sessions: make(map[string]*domain.PaymentSession),
		balances: balances,
	}
}

func (f *fakeSessionRepo) CreateSession(ctx context.Context, session *domain.PaymentSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session.ID = uuid.New().String()
	session.CreatedAt = time.Now()
	stored := *session
	f.sessions[session.Reference] = &stored
	return nil
}

func (f *fakeSessionRepo) GetByReference(ctx context.Context, reference string) (*domain.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[reference]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PaymentSession
	for _, session := range f.sessions {
		if session.UserID == userID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) MarkPending(ctx context.Context, reference string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[reference]
	if !ok || session.State != domain.SessionStateCreated {
		return false, nil
	}
	session.State = domain.SessionStatePending
	return true, nil
}

func (f *fakeSessionRepo) ResolveSucceeded(ctx context.Context, reference string) (domain.ResolveResult, *domain.PaymentSession, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[reference]
	if !ok {
		return "", nil, 0, domain.ErrSessionNotFound
	}
	if session.State.Terminal() {
		return domain.ResolveAlreadyApplied, nil, 0, nil
	}
	balance, ok := f.balances[session.UserID]
	if !ok {
		return "", nil, 0, &domain.StorageError{Op: "resolve credit", Err: domain.ErrAccountNotFound}
	}
	now := time.Now()
	session.State = domain.SessionStateProcessed
	session.ResolvedAt = &now
	f.balances[session.UserID] = balance + session.Amount
	copied := *session
	return domain.ResolveApplied, &copied, f.balances[session.UserID], nil
}

func (f *fakeSessionRepo) ResolveCancelled(ctx context.Context, reference, errorMessage string) (domain.ResolveResult, *domain.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[reference]
	if !ok {
		return "", nil, domain.ErrSessionNotFound
	}
	if session.State.Terminal() {
		return domain.ResolveAlreadyApplied, nil, nil
	}
	now := time.Now()
	session.State = domain.SessionStateCancelled
	session.ErrorMessage = errorMessage
	session.ResolvedAt = &now
	copied := *session
	return domain.ResolveApplied, &copied, nil
}

func (f *fakeSessionRepo) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PaymentSession
	for _, session := range f.sessions {
		if session.State.Terminal() || !session.CreatedAt.Before(olderThan) {
			continue
		}
		out = append(out, *session)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) balance(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func (f *fakeSessionRepo) state(reference string) domain.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[reference]
	if !ok {
		return ""
	}
	return session.State
}

func (f *fakeSessionRepo) backdate(reference string, age time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.sessions[reference]; ok {
		session.CreatedAt = session.CreatedAt.Add(-age)
	}
}
