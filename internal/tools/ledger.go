// Package tools exposes the banking domain tools the judgment model
// may request. Tools never enforce permissions themselves; the engine
// gate-checks every invocation before it reaches a tool.
package tools

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrUnknownAccount reports an account id with no ledger entry.
var ErrUnknownAccount = errors.New("unknown account")

// Account is one customer account.
type Account struct {
	ID      string
	OwnerID string
	Type    string // "checking" or "savings"
	Balance int64  // cents
}

// Transaction is one posted ledger entry.
type Transaction struct {
	ID          string
	AccountID   string
	PostedAt    time.Time
	Amount      int64 // cents, negative for debits
	Description string
}

// Ledger is an in-memory account store. It stands in for the bank's
// core systems behind the tool boundary.
type Ledger struct {
	mu           sync.RWMutex
	accounts     map[string]Account
	transactions map[string][]Transaction
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		accounts:     make(map[string]Account),
		transactions: make(map[string][]Transaction),
	}
}

// AddAccount registers an account.
func (l *Ledger) AddAccount(a Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[a.ID] = a
}

// AddTransaction posts a transaction and adjusts the account balance.
func (l *Ledger) AddTransaction(tx Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[tx.AccountID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, tx.AccountID)
	}
	a.Balance += tx.Amount
	l.accounts[tx.AccountID] = a
	l.transactions[tx.AccountID] = append(l.transactions[tx.AccountID], tx)
	return nil
}

// Account looks up one account.
func (l *Ledger) Account(id string) (Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return a, nil
}

// Transactions returns the most recent limit transactions for an
// account, newest first.
func (l *Ledger) Transactions(id string, limit int) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.accounts[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	txs := append([]Transaction(nil), l.transactions[id]...)
	sort.Slice(txs, func(i, j int) bool { return txs[i].PostedAt.After(txs[j].PostedAt) })
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// SeedDemo populates the ledger with a small demo book. Used by the
// simulate command and tests.
func (l *Ledger) SeedDemo() {
	l.AddAccount(Account{ID: "acct-1001", OwnerID: "alice", Type: "checking", Balance: 120_433})
	l.AddAccount(Account{ID: "acct-1002", OwnerID: "alice", Type: "savings", Balance: 1_500_000})
	l.AddAccount(Account{ID: "acct-2001", OwnerID: "bob", Type: "checking", Balance: 48_210})

	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	_ = l.AddTransaction(Transaction{ID: "tx-1", AccountID: "acct-1001", PostedAt: base, Amount: -4_250, Description: "grocery store"})
	_ = l.AddTransaction(Transaction{ID: "tx-2", AccountID: "acct-1001", PostedAt: base.Add(24 * time.Hour), Amount: 250_000, Description: "payroll deposit"})
	_ = l.AddTransaction(Transaction{ID: "tx-3", AccountID: "acct-1001", PostedAt: base.Add(48 * time.Hour), Amount: -12_000, Description: "utility bill"})
	_ = l.AddTransaction(Transaction{ID: "tx-4", AccountID: "acct-2001", PostedAt: base.Add(12 * time.Hour), Amount: -8_999, Description: "online purchase"})
}
