// Package storage defines the wholesale persistence contract shared by the
// sqlite and postgres backends. State is loaded in full at startup and the
// complete snapshot is written back after each mutation; there is no partial
// or streaming persistence.
package storage

import (
	"context"

	"github.com/prrrssa/sarsabz/internal/exchange"
)

// Snapshot is the entire persisted state of the engine.
type Snapshot struct {
	Currencies    []exchange.Currency
	Accounts      []exchange.ManagedAccount
	Transactions  []exchange.Transaction
	LedgerEntries []exchange.CustomerLedgerEntry
	Expenses      []exchange.PersonalExpense
	Adjustments   []exchange.AccountAdjustment
	GoldItems     []exchange.OrnamentalGoldItem
	Customers     []exchange.Customer
	AuditLog      []exchange.AuditLogEntry
	TierTable     exchange.TierTable
	LastSequence  int64
}

// Persister loads and saves complete snapshots.
type Persister interface {
	// Load returns the stored snapshot. ok is false when the backend holds
	// no data yet (fresh file or empty schema).
	Load(ctx context.Context) (snap Snapshot, ok bool, err error)
	// Save replaces the stored state with snap in one transaction.
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}
