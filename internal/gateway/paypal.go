package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	paymentservice "github.com/skypanel/cbs/internal/application/payments"
	"github.com/skypanel/cbs/internal/domain"
	"github.com/skypanel/cbs/pkg/config"
)

// PayPalAdapter handles Instant Payment Notifications. Every IPN is echoed
// back to PayPal for validation before it is allowed to touch a session;
// the session reference travels in the notification's custom field.
type PayPalAdapter struct {
	tracker       paymentservice.IPaymentTracker
	businessEmail string
	verifyURL     string
	httpClient    *http.Client
	maxRetries    int
	retryDelay    time.Duration
	logger        zerolog.Logger
}

func NewPayPalAdapter(tracker paymentservice.IPaymentTracker, cfg config.PayPalConfig, logger zerolog.Logger) *PayPalAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryDelay := cfg.RetryBackoffBase
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &PayPalAdapter{
		tracker:       tracker,
		businessEmail: cfg.BusinessEmail,
		verifyURL:     cfg.VerifyURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// HandleIPN validates and settles one notification body.
func (a *PayPalAdapter) HandleIPN(ctx context.Context, body []byte) (domain.ResolveResult, error) {
	if err := a.verifyNotification(ctx, body); err != nil {
		a.logger.Error().Err(err).Msg("PayPal IPN validation failed")
		return "", err
	}

	fields, err := url.ParseQuery(string(body))
	if err != nil {
		return "", fmt.Errorf("%w: malformed IPN body: %v", domain.ErrInvalidArgument, err)
	}

	reference := fields.Get("custom")
	if reference == "" {
		return "", fmt.Errorf("%w: IPN carries no custom reference", domain.ErrInvalidArgument)
	}

	if a.businessEmail != "" && !strings.EqualFold(fields.Get("receiver_email"), a.businessEmail) {
		a.logger.Error().
			Str("reference", reference).
			Str("receiver_email", fields.Get("receiver_email")).
			Msg("IPN addressed to a different receiver, rejecting")
		return "", fmt.Errorf("%w: receiver_email mismatch", domain.ErrInvalidArgument)
	}

	status := fields.Get("payment_status")
	switch status {
	case "Completed":
		gross, err := parseGrossCents(fields.Get("mc_gross"))
		if err != nil {
			return "", fmt.Errorf("%w: bad mc_gross: %v", domain.ErrInvalidArgument, err)
		}
		return a.resolve(ctx, reference, domain.OutcomeSucceeded, gross, fields.Get("txn_id"))
	case "Denied", "Failed", "Expired", "Voided":
		return a.resolve(ctx, reference, domain.OutcomeCancelled, 0, fields.Get("txn_id"))
	default:
		// Pending and review states resolve with a later notification.
		a.logger.Info().
			Str("reference", reference).
			Str("payment_status", status).
			Msg("Ignoring non-final IPN")
		return domain.ResolveIgnored, nil
	}
}

func (a *PayPalAdapter) resolve(ctx context.Context, reference string, outcome domain.SessionOutcome, gatewayAmount int64, txnID string) (domain.ResolveResult, error) {
	result, err := a.tracker.Resolve(ctx, reference, outcome, gatewayAmount)
	if err != nil {
		return "", err
	}

	a.logger.Info().
		Str("reference", reference).
		Str("txn_id", txnID).
		Str("outcome", string(outcome)).
		Str("result", string(result)).
		Msg("PayPal IPN resolved")
	return result, nil
}

// verifyNotification posts the body back to PayPal with retries and
// exponential backoff, accepting only a VERIFIED echo.
func (a *PayPalAdapter) verifyNotification(ctx context.Context, body []byte) error {
	if a.verifyURL == "" {
		return fmt.Errorf("paypal verify URL not configured")
	}
	payload := "cmd=_notify-validate&" + string(body)

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.retryDelay * time.Duration(1<<(attempt-1))):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.verifyURL, strings.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create verify request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("verify request failed: %w", err)
			a.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("PayPal verify request failed, retrying")
			continue
		}

		answer, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read verify response: %w", err)
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("verify server error (status %d)", resp.StatusCode)
			a.logger.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("PayPal verify server error, retrying")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: verify rejected with status %d", domain.ErrInvalidArgument, resp.StatusCode)
		}

		switch strings.TrimSpace(string(answer)) {
		case "VERIFIED":
			return nil
		case "INVALID":
			return fmt.Errorf("%w: IPN not recognized by paypal", domain.ErrInvalidArgument)
		default:
			lastErr = fmt.Errorf("unexpected verify answer %q", string(answer))
			continue
		}
	}
	return fmt.Errorf("IPN verification failed after %d retries: %w", a.maxRetries, lastErr)
}

// parseGrossCents converts an mc_gross decimal string like "10.00" into the
// smallest currency unit.
func parseGrossCents(gross string) (int64, error) {
	if gross == "" {
		return 0, nil
	}

	whole, fraction, _ := strings.Cut(gross, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}

	var cents int64
	if fraction != "" {
		if len(fraction) > 2 {
			fraction = fraction[:2]
		}
		for len(fraction) < 2 {
			fraction += "0"
		}
		cents, err = strconv.ParseInt(fraction, 10, 64)
		if err != nil {
			return 0, err
		}
	}
	if units < 0 {
		return 0, fmt.Errorf("negative amount %q", gross)
	}
	return units*100 + cents, nil
}
