package paymentrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sqlc-dev/pqtype"

	"github.com/skypanel/cbs/internal/domain"
	"github.com/skypanel/cbs/internal/infrastructure/database"
)

const sessionColumns = `id, reference, gateway, user_id, amount, state, metadata, error_message, created_at, resolved_at`

type paymentSessionRepositoryImpl struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IPaymentSessionRepository {
	return &paymentSessionRepositoryImpl{
		db:     db.Db,
		logger: logger,
	}
}

func (r *paymentSessionRepositoryImpl) CreateSession(ctx context.Context, session *domain.PaymentSession) error {
	const query = `
		INSERT INTO payment_sessions (id, reference, gateway, user_id, amount, state, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	metadata := pqtype.NullRawMessage{RawMessage: session.Metadata, Valid: session.Metadata != nil}

	err := r.db.QueryRowContext(ctx, query,
		session.ID, session.Reference, string(session.Gateway), session.UserID,
		session.Amount, string(session.State), metadata,
	).Scan(&session.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).
			Str("reference", session.Reference).
			Str("user_id", session.UserID).
			Msg("Failed to create payment session")
		return &domain.StorageError{Op: "create session", Err: err}
	}
	return nil
}

func (r *paymentSessionRepositoryImpl) GetByReference(ctx context.Context, reference string) (*domain.PaymentSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_sessions WHERE reference = $1`, sessionColumns)

	session, err := scanSession(r.db.QueryRowContext(ctx, query, reference))
	if err == sql.ErrNoRows {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		r.logger.Error().Err(err).Str("reference", reference).Msg("Failed to get payment session")
		return nil, &domain.StorageError{Op: "get session", Err: err}
	}
	return session, nil
}

func (r *paymentSessionRepositoryImpl) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.PaymentSession, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM payment_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, sessionColumns)

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list payment sessions")
		return nil, &domain.StorageError{Op: "list sessions", Err: err}
	}
	defer rows.Close()

	return collectSessions(rows)
}

func (r *paymentSessionRepositoryImpl) MarkPending(ctx context.Context, reference string) (bool, error) {
	const query = `
		UPDATE payment_sessions SET state = 'pending'
		WHERE reference = $1 AND state = 'created'`

	result, err := r.db.ExecContext(ctx, query, reference)
	if err != nil {
		r.logger.Error().Err(err).Str("reference", reference).Msg("Failed to mark session pending")
		return false, &domain.StorageError{Op: "mark pending", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, &domain.StorageError{Op: "mark pending", Err: err}
	}
	return affected == 1, nil
}

func (r *paymentSessionRepositoryImpl) ResolveSucceeded(ctx context.Context, reference string) (domain.ResolveResult, *domain.PaymentSession, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, 0, &domain.StorageError{Op: "resolve begin", Err: err}
	}
	defer tx.Rollback()

	// The WHERE clause is the idempotency guard: only the first caller
	// observes an affected row, every retry lands in classifyStuck.
	// A success event may arrive before the user's return redirect, so a
	// session still in created is promoted and settled in one statement.
	query := fmt.Sprintf(`
		UPDATE payment_sessions SET state = 'processed', resolved_at = now()
		WHERE reference = $1 AND state IN ('created', 'pending')
		RETURNING %s`, sessionColumns)

	session, err := scanSession(tx.QueryRowContext(ctx, query, reference))
	if err == sql.ErrNoRows {
		result, err := r.classifyStuck(ctx, tx, reference)
		return result, nil, 0, err
	}
	if err != nil {
		r.logger.Error().Err(err).Str("reference", reference).Msg("Failed to transition session to processed")
		return "", nil, 0, &domain.StorageError{Op: "resolve transition", Err: err}
	}

	// Credit inside the same transaction: the state flip and the balance
	// effect commit together or not at all.
	var newBalance int64
	err = tx.QueryRowContext(ctx, `
		UPDATE accounts SET balance = balance + $1, updated_at = now()
		WHERE user_id = $2
		RETURNING balance`, session.Amount, session.UserID).Scan(&newBalance)
	if err == sql.ErrNoRows {
		// Account deleted while the session was open. Leave the session
		// pending for manual reconciliation.
		r.logger.Error().
			Str("reference", reference).
			Str("user_id", session.UserID).
			Msg("Account missing during session resolution")
		return "", nil, 0, &domain.StorageError{Op: "resolve credit", Err: domain.ErrAccountNotFound}
	}
	if err != nil {
		return "", nil, 0, &domain.StorageError{Op: "resolve credit", Err: err}
	}

	if err := insertLedgerEvent(ctx, tx, "payment.processed", domain.BalanceChange{
		UserID:       session.UserID,
		Change:       session.Amount,
		BalanceAfter: newBalance,
		Reason:       "topup:" + string(session.Gateway),
		Reference:    session.Reference,
		Timestamp:    time.Now().UTC(),
	}); err != nil {
		return "", nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return "", nil, 0, &domain.StorageError{Op: "resolve commit", Err: err}
	}

	session.State = domain.SessionStateProcessed
	return domain.ResolveApplied, session, newBalance, nil
}

func (r *paymentSessionRepositoryImpl) ResolveCancelled(ctx context.Context, reference, errorMessage string) (domain.ResolveResult, *domain.PaymentSession, error) {
	query := fmt.Sprintf(`
		UPDATE payment_sessions SET state = 'cancelled', resolved_at = now(), error_message = $2
		WHERE reference = $1 AND state IN ('created', 'pending')
		RETURNING %s`, sessionColumns)

	message := sql.NullString{String: errorMessage, Valid: errorMessage != ""}
	session, err := scanSession(r.db.QueryRowContext(ctx, query, reference, message))
	if err == sql.ErrNoRows {
		current, err := r.GetByReference(ctx, reference)
		if err != nil {
			return "", nil, err
		}
		if current.State.Terminal() {
			return domain.ResolveAlreadyApplied, current, nil
		}
		return "", nil, &domain.StorageError{Op: "cancel session", Err: fmt.Errorf("unexpected state %s", current.State)}
	}
	if err != nil {
		r.logger.Error().Err(err).Str("reference", reference).Msg("Failed to cancel payment session")
		return "", nil, &domain.StorageError{Op: "cancel session", Err: err}
	}

	session.State = domain.SessionStateCancelled
	return domain.ResolveApplied, session, nil
}

func (r *paymentSessionRepositoryImpl) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentSession, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM payment_sessions
		WHERE state IN ('created', 'pending') AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, sessionColumns)

	rows, err := r.db.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list stale payment sessions")
		return nil, &domain.StorageError{Op: "list stale sessions", Err: err}
	}
	defer rows.Close()

	return collectSessions(rows)
}

// classifyStuck explains a zero-row conditional transition: the session is
// missing or already terminal.
func (r *paymentSessionRepositoryImpl) classifyStuck(ctx context.Context, tx *sql.Tx, reference string) (domain.ResolveResult, error) {
	var state string
	err := tx.QueryRowContext(ctx, `SELECT state FROM payment_sessions WHERE reference = $1`, reference).Scan(&state)
	if err == sql.ErrNoRows {
		return "", domain.ErrSessionNotFound
	}
	if err != nil {
		return "", &domain.StorageError{Op: "resolve classify", Err: err}
	}

	switch domain.SessionState(state) {
	case domain.SessionStateProcessed, domain.SessionStateCancelled:
		return domain.ResolveAlreadyApplied, nil
	default:
		return "", &domain.StorageError{Op: "resolve classify", Err: fmt.Errorf("unexpected state %s", state)}
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.PaymentSession, error) {
	var (
		session      domain.PaymentSession
		gateway      string
		state        string
		metadata     pqtype.NullRawMessage
		errorMessage sql.NullString
		resolvedAt   sql.NullTime
	)

	err := row.Scan(
		&session.ID, &session.Reference, &gateway, &session.UserID, &session.Amount,
		&state, &metadata, &errorMessage, &session.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	session.Gateway = domain.Gateway(gateway)
	session.State = domain.SessionState(state)
	if metadata.Valid {
		session.Metadata = metadata.RawMessage
	}
	session.ErrorMessage = errorMessage.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		session.ResolvedAt = &t
	}
	return &session, nil
}

func collectSessions(rows *sql.Rows) ([]domain.PaymentSession, error) {
	var sessions []domain.PaymentSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "scan session", Err: err}
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "scan sessions", Err: err}
	}
	return sessions, nil
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
