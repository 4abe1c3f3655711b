package accounts

import (
	"context"
	"strings"
	"sync"
)

// Memory keeps balances in process. Tests seed it with SetBalance; the
// applied-key map gives it the same at-most-once semantics as the ledger.
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
	applied  map[string]bool

	// FailCredits makes the next n Credit calls fail, for retry-path tests.
	FailCredits int
	CreditErr   error
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]int64),
		applied:  make(map[string]bool),
	}
}

func (m *Memory) SetBalance(userID string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = amount
}

func (m *Memory) Debit(_ context.Context, userID string, amount int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applied[key] {
		return nil
	}
	if m.balances[userID] < amount {
		return ErrInsufficientFunds
	}
	m.balances[userID] -= amount
	m.applied[key] = true
	return nil
}

func (m *Memory) Credit(_ context.Context, userID string, amount int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCredits > 0 {
		m.FailCredits--
		return m.CreditErr
	}
	if m.applied[key] {
		return nil
	}
	m.balances[userID] += amount
	m.applied[key] = true
	return nil
}

func (m *Memory) Balance(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

// CreditedKeys reports applied keys with the given reason suffix, for
// asserting refund fan-out in tests.
func (m *Memory) CreditedKeys(reason string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.applied {
		if strings.HasSuffix(k, ":"+reason) {
			out = append(out, k)
		}
	}
	return out
}
