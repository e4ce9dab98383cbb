package domain

import (
	"encoding/json"
	"time"
)

type Gateway string

const (
	GatewayStripe Gateway = "stripe"
	GatewayPayPal Gateway = "paypal"
	GatewayManual Gateway = "manual"
)

func (g Gateway) Valid() bool {
	switch g {
	case GatewayStripe, GatewayPayPal, GatewayManual:
		return true
	}
	return false
}

type SessionState string

const (
	SessionStateCreated   SessionState = "created"
	SessionStatePending   SessionState = "pending"
	SessionStateProcessed SessionState = "processed"
	SessionStateCancelled SessionState = "cancelled"
)

// Terminal reports whether the session can never transition again.
func (s SessionState) Terminal() bool {
	return s == SessionStateProcessed || s == SessionStateCancelled
}

type SessionOutcome string

const (
	OutcomeSucceeded SessionOutcome = "succeeded"
	OutcomeCancelled SessionOutcome = "cancelled"
)

type ResolveResult string

const (
	ResolveApplied        ResolveResult = "applied"
	ResolveAlreadyApplied ResolveResult = "already_applied"
	ResolveIgnored        ResolveResult = "ignored"
)

// PaymentSession tracks one external top-up attempt. Amount is immutable
// after creation; the reference is the idempotency key for resolution.
type PaymentSession struct {
	ID           string          `json:"id" db:"id"`
	Reference    string          `json:"reference" db:"reference" binding:"required"`
	Gateway      Gateway         `json:"gateway" db:"gateway" binding:"required"`
	UserID       string          `json:"user_id" db:"user_id" binding:"required"`
	Amount       int64           `json:"amount" db:"amount" binding:"required"`
	State        SessionState    `json:"state" db:"state"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
}
