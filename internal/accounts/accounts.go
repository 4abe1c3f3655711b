// Package accounts is the engine's boundary to the account service: debiting
// entry costs and crediting payouts/refunds. Every call carries an
// idempotency key derived from (battle, participant, reason) so retries after
// a crash mid-payout apply at most once.
package accounts

import (
	"context"
	"errors"
	"fmt"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

const (
	ReasonEntry  = "entry"
	ReasonPayout = "payout"
	ReasonRefund = "refund"
)

type Service interface {
	Debit(ctx context.Context, userID string, amount int64, key string) error
	Credit(ctx context.Context, userID string, amount int64, key string) error
	Balance(ctx context.Context, userID string) (int64, error)
}

// Key builds the idempotency key for one movement.
func Key(battleID, participantID, reason string) string {
	return fmt.Sprintf("%s:%s:%s", battleID, participantID, reason)
}
