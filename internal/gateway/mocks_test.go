package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/skypanel/cbs/internal/domain"
)

type resolveCall struct {
	reference     string
	outcome       domain.SessionOutcome
	gatewayAmount int64
}

// fakeTracker records Resolve calls so adapter tests can assert on the
// translation from gateway payloads to tracker resolutions.
type fakeTracker struct {
	mu       sync.Mutex
	calls    []resolveCall
	result   domain.ResolveResult
	resolveE error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{result: domain.ResolveApplied}
}

func (f *fakeTracker) CreateSession(ctx context.Context, gateway domain.Gateway, userID string, amount int64, metadata json.RawMessage) (*domain.PaymentSession, error) {
	return nil, nil
}

func (f *fakeTracker) GetSession(ctx context.Context, reference string) (*domain.PaymentSession, error) {
	return nil, domain.ErrSessionNotFound
}

func (f *fakeTracker) ListSessions(ctx context.Context, userID string, limit, offset int) ([]domain.PaymentSession, error) {
	return nil, nil
}

func (f *fakeTracker) Confirm(ctx context.Context, reference string) error {
	return nil
}

func (f *fakeTracker) Resolve(ctx context.Context, reference string, outcome domain.SessionOutcome, gatewayAmount int64) (domain.ResolveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, resolveCall{reference: reference, outcome: outcome, gatewayAmount: gatewayAmount})
	if f.resolveE != nil {
		return "", f.resolveE
	}
	return f.result, nil
}

func (f *fakeTracker) StartSessionExpirer(ctx context.Context) error {
	return ctx.Err()
}

func (f *fakeTracker) resolveCalls() []resolveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]resolveCall, len(f.calls))
	copy(out, f.calls)
	return out
}
