package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/skypanel/cbs/internal/domain"
)

type fakeBalanceService struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newFakeBalanceService(balances map[string]int64) *fakeBalanceService {
	if balances == nil {
		balances = make(map[string]int64)
	}
	return &fakeBalanceService{balances: balances}
}

func (f *fakeBalanceService) EnsureAccount(ctx context.Context, userID string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.balances[userID]; !ok {
		f.balances[userID] = 0
	}
	return &domain.Account{UserID: userID, Balance: f.balances[userID]}, nil
}

func (f *fakeBalanceService) GetBalance(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, ok := f.balances[userID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	return balance, nil
}

func (f *fakeBalanceService) Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidArgument)
	}
	balance, ok := f.balances[userID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	f.balances[userID] = balance + amount
	return f.balances[userID], nil
}

func (f *fakeBalanceService) Debit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidArgument)
	}
	balance, ok := f.balances[userID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	if balance < amount {
		return 0, &domain.InsufficientFundsError{UserID: userID, Required: amount, Available: balance}
	}
	f.balances[userID] = balance - amount
	return f.balances[userID], nil
}

type fakeTracker struct {
	mu       sync.Mutex
	sessions map[string]*domain.PaymentSession
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{sessions: make(map[string]*domain.PaymentSession)}
}

func (f *fakeTracker) CreateSession(ctx context.Context, gateway domain.Gateway, userID string, amount int64, metadata json.RawMessage) (*domain.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !gateway.Valid() {
		return nil, fmt.Errorf("%w: unknown gateway %q", domain.ErrInvalidArgument, gateway)
	}
	session := &domain.PaymentSession{
		ID:        fmt.Sprintf("sess-%d", len(f.sessions)+1),
		Reference: fmt.Sprintf("TOP-%08d", len(f.sessions)+1),
		Gateway:   gateway,
		UserID:    userID,
		Amount:    amount,
		State:     domain.SessionStateCreated,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	f.sessions[session.Reference] = session
	copied := *session
	return &copied, nil
}

func (f *fakeTracker) GetSession(ctx context.Context, reference string) (*domain.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[reference]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *fakeTracker) ListSessions(ctx context.Context, userID string, limit, offset int) ([]domain.PaymentSession, error) {
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

func (f *fakeTracker) Confirm(ctx context.Context, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[reference]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.State.Terminal() {
		return domain.ErrAlreadyResolved
	}
	session.State = domain.SessionStatePending
	return nil
}

func (f *fakeTracker) Resolve(ctx context.Context, reference string, outcome domain.SessionOutcome, gatewayAmount int64) (domain.ResolveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[reference]
	if !ok {
		return "", domain.ErrSessionNotFound
	}
	if session.State.Terminal() {
		return domain.ResolveAlreadyApplied, nil
	}
	if outcome == domain.OutcomeSucceeded {
		if gatewayAmount > 0 && gatewayAmount != session.Amount {
			return "", domain.ErrAmountMismatch
		}
		session.State = domain.SessionStateProcessed
	} else {
		session.State = domain.SessionStateCancelled
	}
	return domain.ResolveApplied, nil
}

func (f *fakeTracker) StartSessionExpirer(ctx context.Context) error {
	return ctx.Err()
}

type fakeTransferCoordinator struct {
	balances   *fakeBalanceService
	feePercent int64
}

func (f *fakeTransferCoordinator) Transfer(ctx context.Context, intent domain.TransferIntent) (*domain.TransferReceipt, error) {
	if intent.FromUser == intent.ToUser {
		return nil, fmt.Errorf("%w: cannot gift coins to yourself", domain.ErrInvalidArgument)
	}
	senderBalance, err := f.balances.Debit(ctx, intent.FromUser, intent.TotalDebit(), "gift_sent")
	if err != nil {
		return nil, err
	}
	recipientBalance, err := f.balances.Credit(ctx, intent.ToUser, intent.GrossAmount, "gift_received")
	if err != nil {
		return nil, err
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

func (f *fakeTransferCoordinator) GiftFee(grossAmount int64) int64 {
	return grossAmount * f.feePercent / 100
}
