package accountrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skypanel/cbs/internal/domain"
	"github.com/skypanel/cbs/internal/infrastructure/database"
)

type accountRepositoryImpl struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IAccountRepository {
	return &accountRepositoryImpl{
		db:     db.Db,
		logger: logger,
	}
}

func (r *accountRepositoryImpl) EnsureAccount(ctx context.Context, userID string) (*domain.Account, error) {
	const query = `
		INSERT INTO accounts (user_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING user_id, balance, created_at, updated_at`

	account := &domain.Account{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&account.UserID, &account.Balance, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		// Row already existed; the insert was a no-op.
		return r.GetAccount(ctx, userID)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to ensure account")
		return nil, &domain.StorageError{Op: "ensure account", Err: err}
	}
	return account, nil
}

func (r *accountRepositoryImpl) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	const query = `SELECT user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1`

	account := &domain.Account{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&account.UserID, &account.Balance, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to get account")
		return nil, &domain.StorageError{Op: "get account", Err: err}
	}
	return account, nil
}

func (r *accountRepositoryImpl) GetBalance(ctx context.Context, userID string) (int64, error) {
	account, err := r.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Credit adds amount to the account in one conditional statement and records
// a ledger event in the same transaction.
func (r *accountRepositoryImpl) Credit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &domain.StorageError{Op: "credit begin", Err: err}
	}
	defer tx.Rollback()

	newBalance, err := creditTx(ctx, tx, userID, amount)
	if err != nil {
		return 0, err
	}

	if err := insertLedgerEvent(ctx, tx, "balance.changed", domain.BalanceChange{
		UserID:       userID,
		Change:       amount,
		BalanceAfter: newBalance,
		Reason:       reason,
		Reference:    reference,
		Timestamp:    time.Now().UTC(),
	}); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record credit event")
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, &domain.StorageError{Op: "credit commit", Err: err}
	}
	return newBalance, nil
}

// Debit subtracts amount if and only if the balance covers it. The check and
// the subtraction are one statement; an affected-row count of zero is then
// classified as missing account or insufficient funds.
func (r *accountRepositoryImpl) Debit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &domain.StorageError{Op: "debit begin", Err: err}
	}
	defer tx.Rollback()

	newBalance, err := debitTx(ctx, tx, userID, amount)
	if err != nil {
		return 0, err
	}

	if err := insertLedgerEvent(ctx, tx, "balance.changed", domain.BalanceChange{
		UserID:       userID,
		Change:       -amount,
		BalanceAfter: newBalance,
		Reason:       reason,
		Reference:    reference,
		Timestamp:    time.Now().UTC(),
	}); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record debit event")
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, &domain.StorageError{Op: "debit commit", Err: err}
	}
	return newBalance, nil
}

// Transfer moves the gift in one transaction: sender loses gross+fee,
// recipient gains gross. A failure on either leg rolls back both.
func (r *accountRepositoryImpl) Transfer(ctx context.Context, intent domain.TransferIntent) (int64, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, &domain.StorageError{Op: "transfer begin", Err: err}
	}
	defer tx.Rollback()

	senderBalance, err := debitTx(ctx, tx, intent.FromUser, intent.TotalDebit())
	if err != nil {
		return 0, 0, err
	}

	recipientBalance, err := creditTx(ctx, tx, intent.ToUser, intent.GrossAmount)
	if err != nil {
		return 0, 0, err
	}

	if err := insertLedgerEvent(ctx, tx, "transfer.completed", domain.TransferReceipt{
		FromUser:         intent.FromUser,
		ToUser:           intent.ToUser,
		GrossAmount:      intent.GrossAmount,
		FeeAmount:        intent.FeeAmount,
		SenderBalance:    senderBalance,
		RecipientBalance: recipientBalance,
	}); err != nil {
		r.logger.Error().Err(err).
			Str("from_user", intent.FromUser).
			Str("to_user", intent.ToUser).
			Msg("Failed to record transfer event")
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, &domain.StorageError{Op: "transfer commit", Err: err}
	}
	return senderBalance, recipientBalance, nil
}

func creditTx(ctx context.Context, tx *sql.Tx, userID string, amount int64) (int64, error) {
	const query = `
		UPDATE accounts SET balance = balance + $1, updated_at = now()
		WHERE user_id = $2
		RETURNING balance`

	var balance int64
	err := tx.QueryRowContext(ctx, query, amount, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, &domain.StorageError{Op: "credit", Err: err}
	}
	return balance, nil
}

func debitTx(ctx context.Context, tx *sql.Tx, userID string, amount int64) (int64, error) {
	const query = `
		UPDATE accounts SET balance = balance - $1, updated_at = now()
		WHERE user_id = $2 AND balance >= $1
		RETURNING balance`

	var balance int64
	err := tx.QueryRowContext(ctx, query, amount, userID).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if err != sql.ErrNoRows {
		return 0, &domain.StorageError{Op: "debit", Err: err}
	}

	// Zero rows: either the account is gone or the balance cannot cover it.
	var available int64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE user_id = $1`, userID).Scan(&available)
	if err == sql.ErrNoRows {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, &domain.StorageError{Op: "debit", Err: err}
	}
	return 0, &domain.InsufficientFundsError{UserID: userID, Required: amount, Available: available}
}

func insertLedgerEvent(ctx context.Context, tx *sql.Tx, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.StorageError{Op: "ledger event marshal", Err: err}
	}

	const query = `
		INSERT INTO ledger_events (id, event_type, payload, status)
		VALUES ($1, $2, $3, 'pending')`

	if _, err := tx.ExecContext(ctx, query, uuid.New(), eventType, body); err != nil {
		return &domain.StorageError{Op: "ledger event insert", Err: err}
	}
	return nil
}
