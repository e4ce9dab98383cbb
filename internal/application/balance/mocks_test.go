package balanceservice

import (
	"context"
	"sync"
	"time"

	"github.com/skypanel/cbs/internal/domain"
)

// fakeAccountRepo mirrors the store's conditional-update semantics: every
// mutation checks and writes under one lock, the way a single UPDATE
// statement does against Postgres.
type fakeAccountRepo struct {
	mu       sync.Mutex
	balances map[string]int64

	failCredit error
	failDebit  error
}

func newFakeAccountRepo(balances map[string]int64) *fakeAccountRepo {
	if balances == nil {
		balances = make(map[string]int64)
	}
	return &fakeAccountRepo{balances: balances}
}

func (f *fakeAccountRepo) EnsureAccount(ctx context.Context, userID string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.balances[userID]; !ok {
		f.balances[userID] = 0
	}
	return &domain.Account{UserID: userID, Balance: f.balances[userID], CreatedAt: time.Now(), UpdatedAt: time.Now()}, nil
}

func (f *fakeAccountRepo) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, ok := f.balances[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &domain.Account{UserID: userID, Balance: balance}, nil
}

func (f *fakeAccountRepo) GetBalance(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, ok := f.balances[userID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	return balance, nil
}

func (f *fakeAccountRepo) Credit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCredit != nil {
		return 0, f.failCredit
	}
	balance, ok := f.balances[userID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	f.balances[userID] = balance + amount
	return f.balances[userID], nil
}

func (f *fakeAccountRepo) Debit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDebit != nil {
		return 0, f.failDebit
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

func (f *fakeAccountRepo) Transfer(ctx context.Context, intent domain.TransferIntent) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sender, ok := f.balances[intent.FromUser]
	if !ok {
		return 0, 0, domain.ErrAccountNotFound
	}
	if sender < intent.TotalDebit() {
		return 0, 0, &domain.InsufficientFundsError{UserID: intent.FromUser, Required: intent.TotalDebit(), Available: sender}
	}
	recipient, ok := f.balances[intent.ToUser]
	if !ok {
		return 0, 0, domain.ErrAccountNotFound
	}
	f.balances[intent.FromUser] = sender - intent.TotalDebit()
	f.balances[intent.ToUser] = recipient + intent.GrossAmount
	return f.balances[intent.FromUser], f.balances[intent.ToUser], nil
}

func (f *fakeAccountRepo) balance(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}
