package paymentservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skypanel/cbs/internal/domain"
	"github.com/skypanel/cbs/internal/repositories/paymentrepo"
	"github.com/skypanel/cbs/internal/server/websocket"
	"github.com/skypanel/cbs/pkg/config"
)

const staleBatchSize = 100

type paymentTracker struct {
	sessionRepo paymentrepo.IPaymentSessionRepository
	config      config.PaymentsConfig
	logger      zerolog.Logger
	wsHub       *websocket.WsHub
}

func New(
	sessionRepo paymentrepo.IPaymentSessionRepository,
	cfg config.PaymentsConfig,
	logger zerolog.Logger,
	wsHub *websocket.WsHub,
) IPaymentTracker {
	return &paymentTracker{
		sessionRepo: sessionRepo,
		config:      cfg,
		logger:      logger,
		wsHub:       wsHub,
	}
}

func (s *paymentTracker) CreateSession(ctx context.Context, gateway domain.Gateway, userID string, amount int64, metadata json.RawMessage) (*domain.PaymentSession, error) {
	if !gateway.Valid() {
		return nil, fmt.Errorf("%w: unknown gateway %q", domain.ErrInvalidArgument, gateway)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidArgument)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", domain.ErrInvalidArgument, amount)
	}

	session := &domain.PaymentSession{
		Reference: mintReference(),
		Gateway:   gateway,
		UserID:    userID,
		Amount:    amount,
		State:     initialState(gateway),
		Metadata:  metadata,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("reference", session.Reference).
		Str("gateway", string(gateway)).
		Str("user_id", userID).
		Int64("amount", amount).
		Str("state", string(session.State)).
		Msg("Payment session created")
	return session, nil
}

func (s *paymentTracker) GetSession(ctx context.Context, reference string) (*domain.PaymentSession, error) {
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", domain.ErrInvalidArgument)
	}
	return s.sessionRepo.GetByReference(ctx, reference)
}

func (s *paymentTracker) ListSessions(ctx context.Context, userID string, limit, offset int) ([]domain.PaymentSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.sessionRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *paymentTracker) Confirm(ctx context.Context, reference string) error {
	if reference == "" {
		return fmt.Errorf("%w: reference is required", domain.ErrInvalidArgument)
	}

	transitioned, err := s.sessionRepo.MarkPending(ctx, reference)
	if err != nil {
		return err
	}
	if !transitioned {
		session, err := s.sessionRepo.GetByReference(ctx, reference)
		if err != nil {
			return err
		}
		if session.State.Terminal() {
			return domain.ErrAlreadyResolved
		}
		// Already pending: a doubled redirect, nothing to do.
		return nil
	}

	s.logger.Info().Str("reference", reference).Msg("Payment session confirmed by gateway redirect")
	return nil
}

func (s *paymentTracker) Resolve(ctx context.Context, reference string, outcome domain.SessionOutcome, gatewayAmount int64) (domain.ResolveResult, error) {
	if reference == "" {
		return "", fmt.Errorf("%w: reference is required", domain.ErrInvalidArgument)
	}

	session, err := s.sessionRepo.GetByReference(ctx, reference)
	if err != nil {
		return "", err
	}

	// Amount is immutable after creation, so this pre-check cannot race
	// with the conditional transition below.
	if outcome == domain.OutcomeSucceeded && gatewayAmount > 0 && gatewayAmount != session.Amount {
		s.logger.Error().
			Str("reference", reference).
			Int64("session_amount", session.Amount).
			Int64("gateway_amount", gatewayAmount).
			Msg("Gateway amount does not match session, refusing to credit")
		return "", domain.ErrAmountMismatch
	}

	switch outcome {
	case domain.OutcomeSucceeded:
		return s.resolveSucceeded(ctx, reference)
	case domain.OutcomeCancelled:
		return s.resolveCancelled(ctx, reference, "cancelled by gateway or user")
	default:
		return "", fmt.Errorf("%w: unknown outcome %q", domain.ErrInvalidArgument, outcome)
	}
}

func (s *paymentTracker) resolveSucceeded(ctx context.Context, reference string) (domain.ResolveResult, error) {
	result, session, newBalance, err := s.sessionRepo.ResolveSucceeded(ctx, reference)
	if err != nil {
		return "", err
	}
	if result == domain.ResolveAlreadyApplied {
		s.logger.Info().Str("reference", reference).Msg("Duplicate resolution ignored")
		return result, nil
	}

	s.logger.Info().
		Str("reference", reference).
		Str("user_id", session.UserID).
		Int64("amount", session.Amount).
		Int64("balance", newBalance).
		Msg("Payment session processed, balance credited")

	if s.wsHub != nil {
		s.wsHub.BroadcastSession(*session)
		s.wsHub.BroadcastBalance(domain.BalanceChange{
			UserID:       session.UserID,
			Change:       session.Amount,
			BalanceAfter: newBalance,
			Reason:       "topup:" + string(session.Gateway),
			Reference:    session.Reference,
			Timestamp:    time.Now().UTC(),
		})
	}
	return result, nil
}

func (s *paymentTracker) resolveCancelled(ctx context.Context, reference, message string) (domain.ResolveResult, error) {
	result, session, err := s.sessionRepo.ResolveCancelled(ctx, reference, message)
	if err != nil {
		return "", err
	}
	if result == domain.ResolveAlreadyApplied {
		return result, nil
	}

	s.logger.Info().
		Str("reference", reference).
		Str("user_id", session.UserID).
		Msg("Payment session cancelled")

	if s.wsHub != nil {
		s.wsHub.BroadcastSession(*session)
	}
	return result, nil
}

// StartSessionExpirer cancels checkouts the user walked away from. Expiry is
// an ordinary cancel transition, so a webhook racing the sweep is safe: one
// of the two wins the conditional update and the other sees AlreadyApplied.
func (s *paymentTracker) StartSessionExpirer(ctx context.Context) error {
	interval := time.Duration(s.config.SweepInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	s.logger.Info().Dur("interval", interval).Msg("Starting payment session expirer")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Payment session expirer stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.expireStaleSessions(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Failed to expire stale payment sessions")
			}
		}
	}
}

func (s *paymentTracker) expireStaleSessions(ctx context.Context) error {
	timeout := time.Duration(s.config.SessionTimeoutHours) * time.Hour
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	cutoff := time.Now().Add(-timeout)

	sessions, err := s.sessionRepo.ListStale(ctx, cutoff, staleBatchSize)
	if err != nil {
		return err
	}

	for _, session := range sessions {
		result, err := s.resolveCancelled(ctx, session.Reference, "session expired")
		if err != nil {
			s.logger.Error().Err(err).
				Str("reference", session.Reference).
				Msg("Failed to expire payment session")
			continue
		}
		if result == domain.ResolveApplied {
			s.logger.Info().
				Str("reference", session.Reference).
				Str("user_id", session.UserID).
				Msg("Expired stale payment session")
		}
	}
	return nil
}

// mintReference produces codes like TOP-9F2C41A07B, unique per session.
func mintReference() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "TOP-" + id[:10]
}

// initialState: code-based flows have no separate gateway round trip, so
// their sessions are immediately pending.
func initialState(gateway domain.Gateway) domain.SessionState {
	if gateway == domain.GatewayStripe {
		return domain.SessionStateCreated
	}
	return domain.SessionStatePending
}
