// Package sqlite persists engine snapshots in a local SQLite file. The
// backend is deliberately simple: Load reads every table at startup and Save
// rewrites every table inside one transaction after each mutation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/exchange"
	"github.com/prrrssa/sarsabz/internal/meta"
	"github.com/prrrssa/sarsabz/internal/storage"
)

// Store implements storage.Persister over a SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS currencies (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		symbol TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		currency_id TEXT NOT NULL,
		balance TEXT NOT NULL,
		account_number TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		is_cash_account BOOLEAN NOT NULL DEFAULT FALSE,
		metadata_json TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_currency ON accounts(currency_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		sequence_number INTEGER NOT NULL,
		kind TEXT NOT NULL,
		customer_id TEXT NOT NULL DEFAULT '',
		source_currency_id TEXT NOT NULL,
		source_amount TEXT NOT NULL,
		source_account_id TEXT NOT NULL DEFAULT '',
		target_currency_id TEXT NOT NULL,
		target_amount TEXT NOT NULL,
		target_account_id TEXT NOT NULL DEFAULT '',
		exchange_rate TEXT NOT NULL,
		commission_amount TEXT NOT NULL,
		wage_amount TEXT NOT NULL,
		sold_gold_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		last_modified_by TEXT NOT NULL DEFAULT '',
		last_modified_date TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_sequence ON transactions(sequence_number);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		currency_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		transaction_id TEXT NOT NULL DEFAULT '',
		managed_account_id TEXT NOT NULL DEFAULT '',
		settlement_group_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		last_modified_by TEXT NOT NULL DEFAULT '',
		last_modified_date TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_customer ON ledger_entries(customer_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_transaction ON ledger_entries(transaction_id);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		managed_account_id TEXT NOT NULL,
		currency_id TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		last_modified_by TEXT NOT NULL DEFAULT '',
		last_modified_date TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS adjustments (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		account_id TEXT NOT NULL,
		previous_balance TEXT NOT NULL,
		new_balance TEXT NOT NULL,
		adjustment_amount TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS gold_items (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		weight TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		cost_price TEXT NOT NULL,
		purchase_wage_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		sold_transaction_id TEXT NOT NULL DEFAULT '',
		sold_at TEXT NOT NULL DEFAULT '',
		added_by TEXT NOT NULL DEFAULT '',
		added_at TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone_number TEXT NOT NULL DEFAULT '',
		national_id TEXT NOT NULL DEFAULT '',
		membership_date TEXT NOT NULL,
		referrer_id TEXT NOT NULL DEFAULT '',
		is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
		notes TEXT NOT NULL DEFAULT '',
		metadata_json TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS tiers (
		position INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		min_volume TEXT NOT NULL,
		discount_percent TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load reads the full snapshot. ok is false when the file holds no data yet.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, bool, error) {
	var snap storage.Snapshot

	var populated string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'populated'").Scan(&populated)
	if err == sql.ErrNoRows {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}

	if err := s.loadCurrencies(ctx, &snap); err != nil {
		return snap, false, err
	}
	if err := s.loadAccounts(ctx, &snap); err != nil {
		return snap, false, err
	}
	if err := s.loadTransactions(ctx, &snap); err != nil {
		return snap, false, err
	}
	if err := s.loadLedgerEntries(ctx, &snap); err != nil {
		return snap, false, err
	}
	if err := s.loadExpenses(ctx, &snap); err != nil {
		return snap, false, err
	}
	if err := s.loadAdjustments(ctx, &snap); err != nil {
		return snap, false, err
	}
	if err := s.loadGoldItems(ctx, &snap); err != nil {
		return snap, false, err
	}
	if err := s.loadCustomers(ctx, &snap); err != nil {
		return snap, false, err
	}
	if err := s.loadAuditLog(ctx, &snap); err != nil {
		return snap, false, err
	}
	if err := s.loadTiers(ctx, &snap); err != nil {
		return snap, false, err
	}

	var lastSeq string
	err = s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'last_sequence'").Scan(&lastSeq)
	if err != nil && err != sql.ErrNoRows {
		return snap, false, err
	}
	if lastSeq != "" {
		fmt.Sscanf(lastSeq, "%d", &snap.LastSequence)
	}

	return snap, true, nil
}

// Save rewrites the stored state with snap in one transaction.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	tables := []string{
		"currencies", "accounts", "transactions", "ledger_entries",
		"expenses", "adjustments", "gold_items", "customers", "audit_log", "tiers",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	for _, c := range snap.Currencies {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO currencies (id, code, name, symbol, kind) VALUES (?, ?, ?, ?, ?)",
			c.ID.String(), c.Code, c.Name, c.Symbol, string(c.Kind))
		if err != nil {
			return err
		}
	}
	for _, a := range snap.Accounts {
		md, _ := a.Metadata.MarshalStableJSON()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, name, currency_id, balance, account_number, description, is_cash_account, metadata_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID.String(), a.Name, a.CurrencyID.String(), a.Balance.String(),
			a.AccountNumber, a.Description, a.IsCashAccount, string(md))
		if err != nil {
			return err
		}
	}
	for _, t := range snap.Transactions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO transactions
			 (id, sequence_number, kind, customer_id, source_currency_id, source_amount, source_account_id,
			  target_currency_id, target_amount, target_account_id, exchange_rate, commission_amount,
			  wage_amount, sold_gold_id, notes, date, created_by, last_modified_by, last_modified_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID.String(), t.SequenceNumber, string(t.Kind), fmtUUID(t.CustomerID),
			t.SourceCurrencyID.String(), t.SourceAmount.String(), fmtUUID(t.SourceAccountID),
			t.TargetCurrencyID.String(), t.TargetAmount.String(), fmtUUID(t.TargetAccountID),
			t.ExchangeRate.String(), t.CommissionAmount.String(), t.WageAmount.String(),
			fmtUUID(t.SoldOrnamentalGoldID), t.Notes, fmtTime(t.Date),
			fmtUUID(t.CreatedBy), fmtUUID(t.LastModifiedBy), fmtTime(t.LastModifiedDate))
		if err != nil {
			return err
		}
	}
	for _, e := range snap.LedgerEntries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_entries
			 (id, customer_id, currency_id, amount, description, transaction_id, managed_account_id,
			  settlement_group_id, date, created_by, last_modified_by, last_modified_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID.String(), e.CustomerID.String(), e.CurrencyID.String(), e.Amount.String(),
			e.Description, fmtUUID(e.TransactionID), fmtUUID(e.ManagedAccountID),
			fmtUUID(e.SettlementGroupID), fmtTime(e.Date),
			fmtUUID(e.CreatedBy), fmtUUID(e.LastModifiedBy), fmtTime(e.LastModifiedDate))
		if err != nil {
			return err
		}
	}
	for _, e := range snap.Expenses {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses
			 (id, user_id, amount, managed_account_id, currency_id, category, description, date,
			  last_modified_by, last_modified_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID.String(), fmtUUID(e.UserID), e.Amount.String(), e.ManagedAccountID.String(),
			e.CurrencyID.String(), e.Category, e.Description, fmtTime(e.Date),
			fmtUUID(e.LastModifiedBy), fmtTime(e.LastModifiedDate))
		if err != nil {
			return err
		}
	}
	for _, a := range snap.Adjustments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO adjustments
			 (id, account_id, previous_balance, new_balance, adjustment_amount, reason, user_id, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID.String(), a.AccountID.String(), a.PreviousBalance.String(), a.NewBalance.String(),
			a.AdjustmentAmount.String(), a.Reason, fmtUUID(a.UserID), fmtTime(a.Timestamp))
		if err != nil {
			return err
		}
	}
	for _, g := range snap.GoldItems {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO gold_items
			 (id, code, name, weight, description, cost_price, purchase_wage_amount, status,
			  sold_transaction_id, sold_at, added_by, added_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID.String(), g.Code, g.Name, g.Weight.String(), g.Description,
			g.CostPrice.String(), g.PurchaseWageAmount.String(), string(g.Status),
			fmtUUID(g.SoldTransactionID), fmtTime(g.SoldAt), fmtUUID(g.AddedBy), fmtTime(g.AddedAt))
		if err != nil {
			return err
		}
	}
	for _, c := range snap.Customers {
		md, _ := c.Metadata.MarshalStableJSON()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO customers
			 (id, name, phone_number, national_id, membership_date, referrer_id, is_favorite, notes, metadata_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID.String(), c.Name, c.PhoneNumber, c.NationalID, fmtTime(c.MembershipDate),
			fmtUUID(c.ReferrerID), c.IsFavorite, c.Notes, string(md))
		if err != nil {
			return err
		}
	}
	for _, e := range snap.AuditLog {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO audit_log (id, timestamp, user_id, action, entity, details)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID.String(), fmtTime(e.Timestamp), fmtUUID(e.UserID),
			string(e.Action), string(e.Entity), e.Details)
		if err != nil {
			return err
		}
	}
	for i, t := range snap.TierTable {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO tiers (position, name, min_volume, discount_percent) VALUES (?, ?, ?, ?)",
			i, t.Name, t.MinVolume.String(), t.DiscountPercent.String())
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES ('last_sequence', ?), ('populated', '1') ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		fmt.Sprintf("%d", snap.LastSequence))
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) loadCurrencies(ctx context.Context, snap *storage.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, code, name, symbol, kind FROM currencies")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c exchange.Currency
		var id, kind string
		if err := rows.Scan(&id, &c.Code, &c.Name, &c.Symbol, &kind); err != nil {
			return err
		}
		c.ID = parseUUID(id)
		c.Kind = exchange.CurrencyKind(kind)
		snap.Currencies = append(snap.Currencies, c)
	}
	return rows.Err()
}

func (s *Store) loadAccounts(ctx context.Context, snap *storage.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, currency_id, balance, account_number, description, is_cash_account, metadata_json FROM accounts")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a exchange.ManagedAccount
		var id, currencyID, balance, md string
		if err := rows.Scan(&id, &a.Name, &currencyID, &balance, &a.AccountNumber, &a.Description, &a.IsCashAccount, &md); err != nil {
			return err
		}
		a.ID = parseUUID(id)
		a.CurrencyID = parseUUID(currencyID)
		a.Balance = parseDec(balance)
		a.Metadata = parseMeta(md)
		snap.Accounts = append(snap.Accounts, a)
	}
	return rows.Err()
}

func (s *Store) loadTransactions(ctx context.Context, snap *storage.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sequence_number, kind, customer_id, source_currency_id, source_amount, source_account_id,
		        target_currency_id, target_amount, target_account_id, exchange_rate, commission_amount,
		        wage_amount, sold_gold_id, notes, date, created_by, last_modified_by, last_modified_date
		 FROM transactions ORDER BY sequence_number`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var t exchange.Transaction
		var id, kind, customerID, srcCur, srcAmt, srcAcc, tgtCur, tgtAmt, tgtAcc string
		var rate, commission, wage, goldID, date, createdBy, modBy, modDate string
		if err := rows.Scan(&id, &t.SequenceNumber, &kind, &customerID, &srcCur, &srcAmt, &srcAcc,
			&tgtCur, &tgtAmt, &tgtAcc, &rate, &commission, &wage, &goldID, &t.Notes,
			&date, &createdBy, &modBy, &modDate); err != nil {
			return err
		}
		t.ID = parseUUID(id)
		t.Kind = exchange.TransactionKind(kind)
		t.CustomerID = parseUUID(customerID)
		t.SourceCurrencyID = parseUUID(srcCur)
		t.SourceAmount = parseDec(srcAmt)
		t.SourceAccountID = parseUUID(srcAcc)
		t.TargetCurrencyID = parseUUID(tgtCur)
		t.TargetAmount = parseDec(tgtAmt)
		t.TargetAccountID = parseUUID(tgtAcc)
		t.ExchangeRate = parseDec(rate)
		t.CommissionAmount = parseDec(commission)
		t.WageAmount = parseDec(wage)
		t.SoldOrnamentalGoldID = parseUUID(goldID)
		t.Date = parseTime(date)
		t.CreatedBy = parseUUID(createdBy)
		t.LastModifiedBy = parseUUID(modBy)
		t.LastModifiedDate = parseTime(modDate)
		snap.Transactions = append(snap.Transactions, t)
	}
	return rows.Err()
}

func (s *Store) loadLedgerEntries(ctx context.Context, snap *storage.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, currency_id, amount, description, transaction_id, managed_account_id,
		        settlement_group_id, date, created_by, last_modified_by, last_modified_date
		 FROM ledger_entries`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e exchange.CustomerLedgerEntry
		var id, customerID, currencyID, amount, txID, accID, groupID, date, createdBy, modBy, modDate string
		if err := rows.Scan(&id, &customerID, &currencyID, &amount, &e.Description, &txID, &accID,
			&groupID, &date, &createdBy, &modBy, &modDate); err != nil {
			return err
		}
		e.ID = parseUUID(id)
		e.CustomerID = parseUUID(customerID)
		e.CurrencyID = parseUUID(currencyID)
		e.Amount = parseDec(amount)
		e.TransactionID = parseUUID(txID)
		e.ManagedAccountID = parseUUID(accID)
		e.SettlementGroupID = parseUUID(groupID)
		e.Date = parseTime(date)
		e.CreatedBy = parseUUID(createdBy)
		e.LastModifiedBy = parseUUID(modBy)
		e.LastModifiedDate = parseTime(modDate)
		snap.LedgerEntries = append(snap.LedgerEntries, e)
	}
	return rows.Err()
}

func (s *Store) loadExpenses(ctx context.Context, snap *storage.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, amount, managed_account_id, currency_id, category, description, date,
		        last_modified_by, last_modified_date
		 FROM expenses`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e exchange.PersonalExpense
		var id, userID, amount, accID, currencyID, date, modBy, modDate string
		if err := rows.Scan(&id, &userID, &amount, &accID, &currencyID, &e.Category, &e.Description,
			&date, &modBy, &modDate); err != nil {
			return err
		}
		e.ID = parseUUID(id)
		e.UserID = parseUUID(userID)
		e.Amount = parseDec(amount)
		e.ManagedAccountID = parseUUID(accID)
		e.CurrencyID = parseUUID(currencyID)
		e.Date = parseTime(date)
		e.LastModifiedBy = parseUUID(modBy)
		e.LastModifiedDate = parseTime(modDate)
		snap.Expenses = append(snap.Expenses, e)
	}
	return rows.Err()
}

func (s *Store) loadAdjustments(ctx context.Context, snap *storage.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, previous_balance, new_balance, adjustment_amount, reason, user_id, timestamp
		 FROM adjustments ORDER BY seq`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a exchange.AccountAdjustment
		var id, accID, prev, next, amount, userID, ts string
		if err := rows.Scan(&id, &accID, &prev, &next, &amount, &a.Reason, &userID, &ts); err != nil {
			return err
		}
		a.ID = parseUUID(id)
		a.AccountID = parseUUID(accID)
		a.PreviousBalance = parseDec(prev)
		a.NewBalance = parseDec(next)
		a.AdjustmentAmount = parseDec(amount)
		a.UserID = parseUUID(userID)
		a.Timestamp = parseTime(ts)
		snap.Adjustments = append(snap.Adjustments, a)
	}
	return rows.Err()
}

func (s *Store) loadGoldItems(ctx context.Context, snap *storage.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name, weight, description, cost_price, purchase_wage_amount, status,
		        sold_transaction_id, sold_at, added_by, added_at
		 FROM gold_items`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var g exchange.OrnamentalGoldItem
		var id, weight, cost, wage, status, soldTx, soldAt, addedBy, addedAt string
		if err := rows.Scan(&id, &g.Code, &g.Name, &weight, &g.Description, &cost, &wage, &status,
			&soldTx, &soldAt, &addedBy, &addedAt); err != nil {
			return err
		}
		g.ID = parseUUID(id)
		g.Weight = parseDec(weight)
		g.CostPrice = parseDec(cost)
		g.PurchaseWageAmount = parseDec(wage)
		g.Status = exchange.ItemStatus(status)
		g.SoldTransactionID = parseUUID(soldTx)
		g.SoldAt = parseTime(soldAt)
		g.AddedBy = parseUUID(addedBy)
		g.AddedAt = parseTime(addedAt)
		snap.GoldItems = append(snap.GoldItems, g)
	}
	return rows.Err()
}

func (s *Store) loadCustomers(ctx context.Context, snap *storage.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone_number, national_id, membership_date, referrer_id, is_favorite, notes, metadata_json
		 FROM customers`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c exchange.Customer
		var id, membership, referrer, md string
		if err := rows.Scan(&id, &c.Name, &c.PhoneNumber, &c.NationalID, &membership, &referrer,
			&c.IsFavorite, &c.Notes, &md); err != nil {
			return err
		}
		c.ID = parseUUID(id)
		c.MembershipDate = parseTime(membership)
		c.ReferrerID = parseUUID(referrer)
		c.Metadata = parseMeta(md)
		snap.Customers = append(snap.Customers, c)
	}
	return rows.Err()
}

func (s *Store) loadAuditLog(ctx context.Context, snap *storage.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, timestamp, user_id, action, entity, details FROM audit_log ORDER BY seq")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e exchange.AuditLogEntry
		var id, ts, userID, action, entity string
		if err := rows.Scan(&id, &ts, &userID, &action, &entity, &e.Details); err != nil {
			return err
		}
		e.ID = parseUUID(id)
		e.Timestamp = parseTime(ts)
		e.UserID = parseUUID(userID)
		e.Action = exchange.AuditAction(action)
		e.Entity = exchange.AuditEntity(entity)
		snap.AuditLog = append(snap.AuditLog, e)
	}
	return rows.Err()
}

func (s *Store) loadTiers(ctx context.Context, snap *storage.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, min_volume, discount_percent FROM tiers ORDER BY position")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var t exchange.Tier
		var minVolume, discount string
		if err := rows.Scan(&t.Name, &minVolume, &discount); err != nil {
			return err
		}
		t.MinVolume = parseDec(minVolume)
		t.DiscountPercent = parseDec(discount)
		snap.TierTable = append(snap.TierTable, t)
	}
	return rows.Err()
}

func fmtUUID(u uuid.UUID) string {
	if u == uuid.Nil {
		return ""
	}
	return u.String()
}

func parseUUID(s string) uuid.UUID {
	if s == "" {
		return uuid.Nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return u
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseMeta(s string) meta.Metadata {
	if s == "" {
		return nil
	}
	var m meta.Metadata
	if err := m.UnmarshalJSON([]byte(s)); err != nil {
		return nil
	}
	return m
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
