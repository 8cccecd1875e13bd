package memory

// Package memory provides the in-memory system of record behind the engine.
// It keeps code paths easy to follow while allowing a persistence backend to
// be attached for wholesale snapshot write-back.
import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/errs"
	"github.com/prrrssa/sarsabz/internal/exchange"
	"github.com/prrrssa/sarsabz/internal/storage"
)

// Store is the in-memory implementation of the repository+writer used by the
// services. It is guarded by an RWMutex for concurrent reads/writes; the
// engine serializes mutations above this with its own lock.
type Store struct {
	mu sync.RWMutex

	currencies  map[uuid.UUID]exchange.Currency
	accounts    map[uuid.UUID]exchange.ManagedAccount
	txs         map[uuid.UUID]exchange.Transaction
	ledger      map[uuid.UUID]exchange.CustomerLedgerEntry
	expenses    map[uuid.UUID]exchange.PersonalExpense
	adjustments []exchange.AccountAdjustment
	goldItems   map[uuid.UUID]exchange.OrnamentalGoldItem
	customers   map[uuid.UUID]exchange.Customer
	auditLog    []exchange.AuditLogEntry
	tierTable   exchange.TierTable

	lastSeq   int64
	persister storage.Persister
}

// New constructs an empty in-memory store with the default tier table.
func New() *Store {
	return &Store{
		currencies: make(map[uuid.UUID]exchange.Currency),
		accounts:   make(map[uuid.UUID]exchange.ManagedAccount),
		txs:        make(map[uuid.UUID]exchange.Transaction),
		ledger:     make(map[uuid.UUID]exchange.CustomerLedgerEntry),
		expenses:   make(map[uuid.UUID]exchange.PersonalExpense),
		goldItems:  make(map[uuid.UUID]exchange.OrnamentalGoldItem),
		customers:  make(map[uuid.UUID]exchange.Customer),
		tierTable:  exchange.DefaultTierTable(),
	}
}

// AttachPersister wires a snapshot backend. Persist writes through it.
func (s *Store) AttachPersister(p storage.Persister) { s.persister = p }

// Seed helpers for local dev/tests.
func (s *Store) SeedCurrency(c exchange.Currency) { s.mu.Lock(); s.currencies[c.ID] = c; s.mu.Unlock() }
func (s *Store) SeedAccount(a exchange.ManagedAccount) {
	s.mu.Lock()
	s.accounts[a.ID] = a
	s.mu.Unlock()
}
func (s *Store) SeedCustomer(c exchange.Customer) { s.mu.Lock(); s.customers[c.ID] = c; s.mu.Unlock() }
func (s *Store) SeedGoldItem(g exchange.OrnamentalGoldItem) {
	s.mu.Lock()
	s.goldItems[g.ID] = g
	s.mu.Unlock()
}

func (s *Store) CurrencyByID(_ context.Context, id uuid.UUID) (exchange.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.currencies[id]
	if !ok {
		return exchange.Currency{}, errs.ErrNotFound
	}
	return c, nil
}

func (s *Store) CurrencyByCode(_ context.Context, code string) (exchange.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code = exchange.NormalizeCode(code)
	for _, c := range s.currencies {
		if c.Code == code {
			return c, nil
		}
	}
	return exchange.Currency{}, errs.ErrNotFound
}

func (s *Store) ListCurrencies(_ context.Context) ([]exchange.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) PutCurrency(_ context.Context, c exchange.Currency) (exchange.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currencies[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCurrency(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.currencies[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.currencies, id)
	return nil
}

func (s *Store) AccountByID(_ context.Context, id uuid.UUID) (exchange.ManagedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return exchange.ManagedAccount{}, errs.ErrNotFound
	}
	return a, nil
}

// CashAccountForCurrency resolves the implicit counterpart account used by
// customer trades: the single cash-flagged account of the currency.
func (s *Store) CashAccountForCurrency(_ context.Context, currencyID uuid.UUID) (exchange.ManagedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.IsCashAccount && a.CurrencyID == currencyID {
			return a, nil
		}
	}
	return exchange.ManagedAccount{}, errs.ErrNotFound
}

func (s *Store) ListAccounts(_ context.Context) ([]exchange.ManagedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.ManagedAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) AccountsByCurrency(_ context.Context, currencyID uuid.UUID) ([]exchange.ManagedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.ManagedAccount, 0)
	for _, a := range s.accounts {
		if a.CurrencyID == currencyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) PutAccount(_ context.Context, a exchange.ManagedAccount) (exchange.ManagedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) DeleteAccount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

// AddToBalance applies one signed delta to an account and returns the updated
// account. This is the only balance mutation primitive; callers go through
// the effect calculator first.
func (s *Store) AddToBalance(_ context.Context, id uuid.UUID, delta decimal.Decimal) (exchange.ManagedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return exchange.ManagedAccount{}, errs.ErrNotFound
	}
	a.Balance = a.Balance.Add(delta)
	s.accounts[id] = a
	return a, nil
}

func (s *Store) TransactionByID(_ context.Context, id uuid.UUID) (exchange.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txs[id]
	if !ok {
		return exchange.Transaction{}, errs.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]exchange.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

func (s *Store) TransactionsByCustomer(_ context.Context, customerID uuid.UUID) ([]exchange.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.Transaction, 0)
	for _, t := range s.txs {
		if t.CustomerID == customerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

// CurrencyReferenced reports whether any transaction touches the currency.
func (s *Store) CurrencyReferenced(_ context.Context, currencyID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.txs {
		if t.SourceCurrencyID == currencyID || t.TargetCurrencyID == currencyID {
			return true, nil
		}
	}
	return false, nil
}

// CustomerReferenced reports whether any transaction names the customer.
func (s *Store) CustomerReferenced(_ context.Context, customerID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.txs {
		if t.CustomerID == customerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) PutTransaction(_ context.Context, t exchange.Transaction) (exchange.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[t.ID] = t
	return t, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

// NextSequence hands out the next transaction sequence number. Numbers are
// gapless at creation and never reused after delete.
func (s *Store) NextSequence(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeq++
	return s.lastSeq, nil
}

func (s *Store) LedgerEntryByID(_ context.Context, id uuid.UUID) (exchange.CustomerLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.ledger[id]
	if !ok {
		return exchange.CustomerLedgerEntry{}, errs.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListLedgerEntries(_ context.Context) ([]exchange.CustomerLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.CustomerLedgerEntry, 0, len(s.ledger))
	for _, e := range s.ledger {
		out = append(out, e)
	}
	sortLedger(out)
	return out, nil
}

func (s *Store) LedgerByCustomer(_ context.Context, customerID uuid.UUID) ([]exchange.CustomerLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.CustomerLedgerEntry, 0)
	for _, e := range s.ledger {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	sortLedger(out)
	return out, nil
}

func (s *Store) EntriesByTransaction(_ context.Context, transactionID uuid.UUID) ([]exchange.CustomerLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.CustomerLedgerEntry, 0, 2)
	for _, e := range s.ledger {
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	sortLedger(out)
	return out, nil
}

func (s *Store) EntriesBySettlementGroup(_ context.Context, groupID uuid.UUID) ([]exchange.CustomerLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.CustomerLedgerEntry, 0, 2)
	for _, e := range s.ledger {
		if e.SettlementGroupID == groupID {
			out = append(out, e)
		}
	}
	sortLedger(out)
	return out, nil
}

func (s *Store) PutLedgerEntry(_ context.Context, e exchange.CustomerLedgerEntry) (exchange.CustomerLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger[e.ID] = e
	return e, nil
}

func (s *Store) DeleteLedgerEntry(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledger[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.ledger, id)
	return nil
}

// DeleteEntriesByTransaction removes the mirrored rows a transaction owns.
func (s *Store) DeleteEntriesByTransaction(_ context.Context, transactionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.ledger {
		if e.TransactionID == transactionID {
			delete(s.ledger, id)
		}
	}
	return nil
}

func (s *Store) ExpenseByID(_ context.Context, id uuid.UUID) (exchange.PersonalExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok {
		return exchange.PersonalExpense{}, errs.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context) ([]exchange.PersonalExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.PersonalExpense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// AccountReferenced reports whether any expense or adjustment names the
// account. Used by the delete conflict check.
func (s *Store) AccountReferenced(_ context.Context, accountID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.expenses {
		if e.ManagedAccountID == accountID {
			return true, nil
		}
	}
	for _, t := range s.txs {
		if t.SourceAccountID == accountID || t.TargetAccountID == accountID {
			return true, nil
		}
	}
	for _, e := range s.ledger {
		if e.ManagedAccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) PutExpense(_ context.Context, e exchange.PersonalExpense) (exchange.PersonalExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

// AppendAdjustment records a manual correction. Adjustments are create-only.
func (s *Store) AppendAdjustment(_ context.Context, a exchange.AccountAdjustment) (exchange.AccountAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjustments = append(s.adjustments, a)
	return a, nil
}

func (s *Store) ListAdjustments(_ context.Context) ([]exchange.AccountAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.AccountAdjustment, len(s.adjustments))
	copy(out, s.adjustments)
	return out, nil
}

func (s *Store) GoldItemByID(_ context.Context, id uuid.UUID) (exchange.OrnamentalGoldItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goldItems[id]
	if !ok {
		return exchange.OrnamentalGoldItem{}, errs.ErrNotFound
	}
	return g, nil
}

func (s *Store) ListGoldItems(_ context.Context) ([]exchange.OrnamentalGoldItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.OrnamentalGoldItem, 0, len(s.goldItems))
	for _, g := range s.goldItems {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) PutGoldItem(_ context.Context, g exchange.OrnamentalGoldItem) (exchange.OrnamentalGoldItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goldItems[g.ID] = g
	return g, nil
}

func (s *Store) DeleteGoldItem(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goldItems[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.goldItems, id)
	return nil
}

func (s *Store) CustomerByID(_ context.Context, id uuid.UUID) (exchange.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return exchange.Customer{}, errs.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]exchange.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) PutCustomer(_ context.Context, c exchange.Customer) (exchange.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) TierTable(_ context.Context) (exchange.TierTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(exchange.TierTable, len(s.tierTable))
	copy(out, s.tierTable)
	return out, nil
}

func (s *Store) SetTierTable(_ context.Context, t exchange.TierTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tierTable = make(exchange.TierTable, len(t))
	copy(s.tierTable, t)
	return nil
}

// AppendAudit records one audit trail row. The log is append-only.
func (s *Store) AppendAudit(_ context.Context, e exchange.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLog = append(s.auditLog, e)
	return nil
}

func (s *Store) AuditLog(_ context.Context, f exchange.AuditFilter) ([]exchange.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.AuditLogEntry, 0)
	for _, e := range s.auditLog {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Snapshot returns a consistent copy of the whole store.
func (s *Store) Snapshot(_ context.Context) (storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := storage.Snapshot{LastSequence: s.lastSeq}
	for _, c := range s.currencies {
		snap.Currencies = append(snap.Currencies, c)
	}
	for _, a := range s.accounts {
		snap.Accounts = append(snap.Accounts, a)
	}
	for _, t := range s.txs {
		snap.Transactions = append(snap.Transactions, t)
	}
	for _, e := range s.ledger {
		snap.LedgerEntries = append(snap.LedgerEntries, e)
	}
	for _, e := range s.expenses {
		snap.Expenses = append(snap.Expenses, e)
	}
	snap.Adjustments = append(snap.Adjustments, s.adjustments...)
	for _, g := range s.goldItems {
		snap.GoldItems = append(snap.GoldItems, g)
	}
	for _, c := range s.customers {
		snap.Customers = append(snap.Customers, c)
	}
	snap.AuditLog = append(snap.AuditLog, s.auditLog...)
	snap.TierTable = append(exchange.TierTable{}, s.tierTable...)
	return snap, nil
}

// Restore replaces the whole store with the snapshot contents.
func (s *Store) Restore(_ context.Context, snap storage.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currencies = make(map[uuid.UUID]exchange.Currency, len(snap.Currencies))
	for _, c := range snap.Currencies {
		s.currencies[c.ID] = c
	}
	s.accounts = make(map[uuid.UUID]exchange.ManagedAccount, len(snap.Accounts))
	for _, a := range snap.Accounts {
		s.accounts[a.ID] = a
	}
	s.txs = make(map[uuid.UUID]exchange.Transaction, len(snap.Transactions))
	for _, t := range snap.Transactions {
		s.txs[t.ID] = t
	}
	s.ledger = make(map[uuid.UUID]exchange.CustomerLedgerEntry, len(snap.LedgerEntries))
	for _, e := range snap.LedgerEntries {
		s.ledger[e.ID] = e
	}
	s.expenses = make(map[uuid.UUID]exchange.PersonalExpense, len(snap.Expenses))
	for _, e := range snap.Expenses {
		s.expenses[e.ID] = e
	}
	s.adjustments = append([]exchange.AccountAdjustment{}, snap.Adjustments...)
	s.goldItems = make(map[uuid.UUID]exchange.OrnamentalGoldItem, len(snap.GoldItems))
	for _, g := range snap.GoldItems {
		s.goldItems[g.ID] = g
	}
	s.customers = make(map[uuid.UUID]exchange.Customer, len(snap.Customers))
	for _, c := range snap.Customers {
		s.customers[c.ID] = c
	}
	s.auditLog = append([]exchange.AuditLogEntry{}, snap.AuditLog...)
	if len(snap.TierTable) > 0 {
		s.tierTable = append(exchange.TierTable{}, snap.TierTable...)
	}
	s.lastSeq = snap.LastSequence
	return nil
}

// Persist writes the current snapshot through the attached persister, if any.
// Called by the services after each successful mutation.
func (s *Store) Persist(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	return s.persister.Save(ctx, snap)
}

func sortLedger(entries []exchange.CustomerLedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].ID.String() < entries[j].ID.String()
	})
}
