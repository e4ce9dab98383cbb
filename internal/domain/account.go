package domain

import (
	"time"
)

// Account holds the coin balance for one dashboard user. Balances are
// integer coin units and never go below zero.
type Account struct {
	UserID    string    `json:"user_id" db:"user_id" binding:"required"`
	Balance   int64     `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BalanceChange describes one applied mutation. It is pushed to websocket
// clients and recorded as a ledger event for downstream consumers.
type BalanceChange struct {
	UserID       string    `json:"user_id"`
	Change       int64     `json:"change"`
	BalanceAfter int64     `json:"balance_after"`
	Reason       string    `json:"reason"`
	Reference    string    `json:"reference,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
