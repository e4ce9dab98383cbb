package balanceservice

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/skypanel/cbs/internal/domain"
)

func newTestService(repo *fakeAccountRepo) IBalanceService {
	return New(repo, zerolog.Nop(), nil)
}

func TestCredit(t *testing.T) {
	t.Run("adds to the balance", func(t *testing.T) {
		repo := newFakeAccountRepo(map[string]int64{"u1": 100})
		svc := newTestService(repo)

		balance, err := svc.Credit(context.Background(), "u1", 50, "admin_credit")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if balance != 150 {
			t.Errorf("expected balance 150, got %d", balance)
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		repo := newFakeAccountRepo(map[string]int64{"u1": 100})
		svc := newTestService(repo)

		for _, amount := range []int64{0, -1, -100} {
			if _, err := svc.Credit(context.Background(), "u1", amount, "x"); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("amount %d: expected ErrInvalidArgument, got %v", amount, err)
			}
		}
		if repo.balance("u1") != 100 {
			t.Errorf("balance changed by rejected credit: %d", repo.balance("u1"))
		}
	})

	t.Run("rejects empty user", func(t *testing.T) {
		svc := newTestService(newFakeAccountRepo(nil))
		if _, err := svc.Credit(context.Background(), "", 10, "x"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("propagates missing account", func(t *testing.T) {
		svc := newTestService(newFakeAccountRepo(nil))
		if _, err := svc.Credit(context.Background(), "ghost", 10, "x"); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Errorf("expected ErrAccountNotFound, got %v", err)
		}
	})

	t.Run("storage failure surfaces to the caller", func(t *testing.T) {
		repo := newFakeAccountRepo(map[string]int64{"u1": 100})
		repo.failCredit = &domain.StorageError{Op: "credit", Err: errors.New("connection reset")}
		svc := newTestService(repo)

		if _, err := svc.Credit(context.Background(), "u1", 10, "x"); !errors.Is(err, domain.ErrStorage) {
			t.Errorf("expected ErrStorage, got %v", err)
		}
	})
}

func TestDebit(t *testing.T) {
	t.Run("subtracts from the balance", func(t *testing.T) {
		repo := newFakeAccountRepo(map[string]int64{"u1": 100})
		svc := newTestService(repo)

		balance, err := svc.Debit(context.Background(), "u1", 30, "mail_fee")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if balance != 70 {
			t.Errorf("expected balance 70, got %d", balance)
		}
	})

	t.Run("exact balance drains to zero", func(t *testing.T) {
		repo := newFakeAccountRepo(map[string]int64{"u1": 100})
		svc := newTestService(repo)

		balance, err := svc.Debit(context.Background(), "u1", 100, "mail_fee")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if balance != 0 {
			t.Errorf("expected balance 0, got %d", balance)
		}
	})

	t.Run("one over the balance fails and changes nothing", func(t *testing.T) {
		repo := newFakeAccountRepo(map[string]int64{"u1": 100})
		svc := newTestService(repo)

		_, err := svc.Debit(context.Background(), "u1", 101, "mail_fee")
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}

		var insufficientErr *domain.InsufficientFundsError
		if !errors.As(err, &insufficientErr) {
			t.Fatalf("expected *InsufficientFundsError, got %T", err)
		}
		if insufficientErr.Required != 101 || insufficientErr.Available != 100 {
			t.Errorf("expected required=101 available=100, got required=%d available=%d",
				insufficientErr.Required, insufficientErr.Available)
		}
		if repo.balance("u1") != 100 {
			t.Errorf("balance changed by failed debit: %d", repo.balance("u1"))
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		repo := newFakeAccountRepo(map[string]int64{"u1": 100})
		svc := newTestService(repo)

		if _, err := svc.Debit(context.Background(), "u1", 0, "x"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("storage failure surfaces to the caller", func(t *testing.T) {
		repo := newFakeAccountRepo(map[string]int64{"u1": 100})
		repo.failDebit = &domain.StorageError{Op: "debit", Err: errors.New("connection reset")}
		svc := newTestService(repo)

		if _, err := svc.Debit(context.Background(), "u1", 10, "x"); !errors.Is(err, domain.ErrStorage) {
			t.Errorf("expected ErrStorage, got %v", err)
		}
	})
}

func TestGetBalance(t *testing.T) {
	repo := newFakeAccountRepo(map[string]int64{"u1": 42})
	svc := newTestService(repo)

	balance, err := svc.GetBalance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 42 {
		t.Errorf("expected 42, got %d", balance)
	}

	if _, err := svc.GetBalance(context.Background(), "ghost"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestEnsureAccount(t *testing.T) {
	repo := newFakeAccountRepo(map[string]int64{"u1": 42})
	svc := newTestService(repo)

	account, err := svc.EnsureAccount(context.Background(), "new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.Balance != 0 {
		t.Errorf("new account should start at 0, got %d", account.Balance)
	}

	// Existing account keeps its balance.
	account, err = svc.EnsureAccount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.Balance != 42 {
		t.Errorf("existing account balance clobbered: %d", account.Balance)
	}
}

// Final balance must equal initial plus successful credits minus successful
// debits, and no interleaving may drive it negative.
func TestConcurrentMutationsPreserveInvariant(t *testing.T) {
	const (
		initial    = 500
		workers    = 8
		iterations = 50
	)

	repo := newFakeAccountRepo(map[string]int64{"u1": initial})
	svc := newTestService(repo)

	var (
		mu               sync.Mutex
		creditedTotal    int64
		debitedTotal     int64
		insufficientHits int
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				if w%2 == 0 {
					amount := int64(i%7 + 1)
					if _, err := svc.Credit(context.Background(), "u1", amount, "test"); err == nil {
						mu.Lock()
						creditedTotal += amount
						mu.Unlock()
					}
				} else {
					amount := int64(i%11 + 1)
					_, err := svc.Debit(context.Background(), "u1", amount, "test")
					switch {
					case err == nil:
						mu.Lock()
						debitedTotal += amount
						mu.Unlock()
					case errors.Is(err, domain.ErrInsufficientFunds):
						mu.Lock()
						insufficientHits++
						mu.Unlock()
					default:
						t.Errorf("unexpected debit error: %v", err)
					}
				}
			}
		}()
	}
	wg.Wait()

	final := repo.balance("u1")
	if expected := int64(initial) + creditedTotal - debitedTotal; final != expected {
		t.Errorf("balance drifted: expected %d, got %d (credited %d, debited %d, refused %d)",
			expected, final, creditedTotal, debitedTotal, insufficientHits)
	}
	if final < 0 {
		t.Errorf("balance went negative: %d", final)
	}
}
