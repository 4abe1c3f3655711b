package accounts

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/crateclash/battle-backend/internal/store"
)

// Ledger implements Service on the account_entries table. Debits insert a
// negative row after checking the summed balance inside one transaction; the
// unique idempotency-key index turns a retried movement into a no-op.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Debit(ctx context.Context, userID string, amount int64, key string) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var applied int64
		if err := tx.Model(&store.AccountEntry{}).Where("idempotency_key = ?", key).Count(&applied).Error; err != nil {
			return err
		}
		if applied > 0 {
			return nil
		}

		var balance int64
		err := tx.Model(&store.AccountEntry{}).Where("user_id = ?", userID).
			Select("COALESCE(SUM(amount), 0)").Scan(&balance).Error
		if err != nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientFunds
		}

		entry := store.AccountEntry{UserID: userID, Amount: -amount, Reason: reasonFromKey(key), IdempotencyKey: key}
		if err := tx.Create(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			return err
		}
		return nil
	})
}

func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, key string) error {
	entry := store.AccountEntry{UserID: userID, Amount: amount, Reason: reasonFromKey(key), IdempotencyKey: key}
	err := l.db.WithContext(ctx).Create(&entry).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := l.db.WithContext(ctx).Model(&store.AccountEntry{}).Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").Scan(&balance).Error
	return balance, err
}

func reasonFromKey(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}
