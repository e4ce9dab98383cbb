package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	paymentservice "github.com/skypanel/cbs/internal/application/payments"
	"github.com/skypanel/cbs/internal/domain"
	"github.com/skypanel/cbs/pkg/config"
)

// StripeAdapter authenticates Stripe webhook deliveries and translates
// checkout events into tracker resolutions. The reference travels in the
// checkout session's client_reference_id.
type StripeAdapter struct {
	tracker   paymentservice.IPaymentTracker
	secret    string
	tolerance time.Duration
	logger    zerolog.Logger
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripeCheckoutSession `json:"object"`
	} `json:"data"`
}

type stripeCheckoutSession struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	AmountTotal       int64  `json:"amount_total"`
	PaymentStatus     string `json:"payment_status"`
}

func NewStripeAdapter(tracker paymentservice.IPaymentTracker, cfg config.StripeConfig, logger zerolog.Logger) *StripeAdapter {
	tolerance := cfg.SignatureTolerance
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &StripeAdapter{
		tracker:   tracker,
		secret:    cfg.WebhookSecret,
		tolerance: tolerance,
		logger:    logger,
	}
}

// HandleEvent verifies the Stripe-Signature header, then resolves the
// referenced session. Unrelated event types are acknowledged and ignored.
func (a *StripeAdapter) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) (domain.ResolveResult, error) {
	if err := a.verifySignature(payload, signatureHeader, time.Now()); err != nil {
		a.logger.Error().Err(err).Msg("Stripe webhook signature rejected")
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", fmt.Errorf("%w: malformed stripe event: %v", domain.ErrInvalidArgument, err)
	}

	checkout := event.Data.Object
	switch event.Type {
	case "checkout.session.completed":
		if checkout.PaymentStatus != "paid" {
			// Delayed payment methods fire completed before the money
			// arrives; async_payment_succeeded follows later.
			a.logger.Info().
				Str("event_id", event.ID).
				Str("payment_status", checkout.PaymentStatus).
				Msg("Stripe checkout completed without payment, waiting")
			return domain.ResolveIgnored, nil
		}
		return a.resolve(ctx, event.ID, checkout, domain.OutcomeSucceeded)
	case "checkout.session.async_payment_succeeded":
		return a.resolve(ctx, event.ID, checkout, domain.OutcomeSucceeded)
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		return a.resolve(ctx, event.ID, checkout, domain.OutcomeCancelled)
	default:
		a.logger.Debug().Str("event_type", event.Type).Msg("Ignoring unrelated stripe event")
		return domain.ResolveIgnored, nil
	}
}

func (a *StripeAdapter) resolve(ctx context.Context, eventID string, checkout stripeCheckoutSession, outcome domain.SessionOutcome) (domain.ResolveResult, error) {
	if checkout.ClientReferenceID == "" {
		return "", fmt.Errorf("%w: stripe event %s carries no client_reference_id", domain.ErrInvalidArgument, eventID)
	}

	var gatewayAmount int64
	if outcome == domain.OutcomeSucceeded {
		gatewayAmount = checkout.AmountTotal
	}

	result, err := a.tracker.Resolve(ctx, checkout.ClientReferenceID, outcome, gatewayAmount)
	if err != nil {
		return "", err
	}

	a.logger.Info().
		Str("event_id", eventID).
		Str("reference", checkout.ClientReferenceID).
		Str("outcome", string(outcome)).
		Str("result", string(result)).
		Msg("Stripe webhook resolved")
	return result, nil
}

// verifySignature checks the v1 scheme: HMAC-SHA256 of "<t>.<payload>"
// keyed with the endpoint secret, with a bounded timestamp skew.
func (a *StripeAdapter) verifySignature(payload []byte, header string, now time.Time) error {
	if a.secret == "" {
		return fmt.Errorf("stripe webhook secret not configured")
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("malformed Stripe-Signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed signature timestamp: %v", err)
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.tolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(expected), []byte(signature)) {
			return nil
		}
	}
	return fmt.Errorf("no matching v1 signature")
}
