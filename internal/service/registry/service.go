// Package registry implements the reference-data rules: currencies with their
// auto-created cash accounts, managed accounts, customers and the ornamental
// gold inventory. Identity fields are immutable once referenced; deletes are
// refused while history points at the record.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/errs"
	"github.com/prrrssa/sarsabz/internal/exchange"
	"github.com/prrrssa/sarsabz/internal/slug"
)

type Repo interface {
	CurrencyByID(ctx context.Context, id uuid.UUID) (exchange.Currency, error)
	CurrencyByCode(ctx context.Context, code string) (exchange.Currency, error)
	ListCurrencies(ctx context.Context) ([]exchange.Currency, error)
	CurrencyReferenced(ctx context.Context, currencyID uuid.UUID) (bool, error)
	AccountByID(ctx context.Context, id uuid.UUID) (exchange.ManagedAccount, error)
	ListAccounts(ctx context.Context) ([]exchange.ManagedAccount, error)
	AccountsByCurrency(ctx context.Context, currencyID uuid.UUID) ([]exchange.ManagedAccount, error)
	CashAccountForCurrency(ctx context.Context, currencyID uuid.UUID) (exchange.ManagedAccount, error)
	AccountReferenced(ctx context.Context, accountID uuid.UUID) (bool, error)
	CustomerByID(ctx context.Context, id uuid.UUID) (exchange.Customer, error)
	ListCustomers(ctx context.Context) ([]exchange.Customer, error)
	CustomerReferenced(ctx context.Context, customerID uuid.UUID) (bool, error)
	LedgerByCustomer(ctx context.Context, customerID uuid.UUID) ([]exchange.CustomerLedgerEntry, error)
	GoldItemByID(ctx context.Context, id uuid.UUID) (exchange.OrnamentalGoldItem, error)
	ListGoldItems(ctx context.Context) ([]exchange.OrnamentalGoldItem, error)
	TransactionByID(ctx context.Context, id uuid.UUID) (exchange.Transaction, error)
}

type Writer interface {
	PutCurrency(ctx context.Context, c exchange.Currency) (exchange.Currency, error)
	DeleteCurrency(ctx context.Context, id uuid.UUID) error
	PutAccount(ctx context.Context, a exchange.ManagedAccount) (exchange.ManagedAccount, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	PutCustomer(ctx context.Context, c exchange.Customer) (exchange.Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
	PutGoldItem(ctx context.Context, g exchange.OrnamentalGoldItem) (exchange.OrnamentalGoldItem, error)
	DeleteGoldItem(ctx context.Context, id uuid.UUID) error
	AppendAudit(ctx context.Context, e exchange.AuditLogEntry) error
	Persist(ctx context.Context) error
}

type Service interface {
	CreateCurrency(ctx context.Context, c exchange.Currency, actor uuid.UUID) (exchange.Currency, error)
	UpdateCurrency(ctx context.Context, c exchange.Currency, actor uuid.UUID) (exchange.Currency, error)
	DeleteCurrency(ctx context.Context, id, actor uuid.UUID) error
	GetCurrency(ctx context.Context, id uuid.UUID) (exchange.Currency, error)
	ListCurrencies(ctx context.Context) ([]exchange.Currency, error)

	CreateAccount(ctx context.Context, a exchange.ManagedAccount, actor uuid.UUID) (exchange.ManagedAccount, error)
	UpdateAccount(ctx context.Context, a exchange.ManagedAccount, actor uuid.UUID) (exchange.ManagedAccount, error)
	DeleteAccount(ctx context.Context, id, actor uuid.UUID) error
	GetAccount(ctx context.Context, id uuid.UUID) (exchange.ManagedAccount, error)
	ListAccounts(ctx context.Context) ([]exchange.ManagedAccount, error)

	CreateCustomer(ctx context.Context, c exchange.Customer, actor uuid.UUID) (exchange.Customer, error)
	UpdateCustomer(ctx context.Context, c exchange.Customer, actor uuid.UUID) (exchange.Customer, error)
	DeleteCustomer(ctx context.Context, id, actor uuid.UUID) error
	GetCustomer(ctx context.Context, id uuid.UUID) (exchange.Customer, error)
	ListCustomers(ctx context.Context) ([]exchange.Customer, error)

	CreateGoldItem(ctx context.Context, g exchange.OrnamentalGoldItem, actor uuid.UUID) (exchange.OrnamentalGoldItem, error)
	UpdateGoldItem(ctx context.Context, g exchange.OrnamentalGoldItem, actor uuid.UUID) (exchange.OrnamentalGoldItem, error)
	DeleteGoldItem(ctx context.Context, id, actor uuid.UUID) error
	GetGoldItem(ctx context.Context, id uuid.UUID) (exchange.OrnamentalGoldItem, error)
	ListGoldItems(ctx context.Context) ([]exchange.OrnamentalGoldItem, error)
	ProfitOnSale(ctx context.Context, id uuid.UUID) (decimal.Decimal, bool, error)
}

type service struct {
	// mu is the mutation lock shared with the ledger engine. Reference-data
	// writes hold it so they never interleave with a balance movement.
	mu            *sync.Mutex
	repo          Repo
	writer        Writer
	referenceCode string
}

// New constructs the registry. referenceCode names the currency that anchors
// volume reporting; it cannot be deleted. mu is the process-wide mutation lock.
func New(repo Repo, writer Writer, referenceCode string, mu *sync.Mutex) Service {
	return &service{mu: mu, repo: repo, writer: writer, referenceCode: exchange.NormalizeCode(referenceCode)}
}

// --- Currencies ---

// CreateCurrency registers a currency and its cash account in one step. Every
// currency has exactly one cash account from the moment it exists.
func (s *service) CreateCurrency(ctx context.Context, c exchange.Currency, actor uuid.UUID) (exchange.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Code = exchange.NormalizeCode(c.Code)
	if c.Code == "" || c.Name == "" {
		return exchange.Currency{}, fmt.Errorf("%w: code and name are required", errs.ErrInvalid)
	}
	switch c.Kind {
	case exchange.CurrencyKindFiat, exchange.CurrencyKindCommodity:
	default:
		return exchange.Currency{}, fmt.Errorf("%w: unknown currency kind %q", errs.ErrInvalid, c.Kind)
	}
	if _, err := s.repo.CurrencyByCode(ctx, c.Code); err == nil {
		return exchange.Currency{}, fmt.Errorf("%w: currency code %s already exists", errs.ErrConflict, c.Code)
	}

	c.ID = uuid.New()
	created, err := s.writer.PutCurrency(ctx, c)
	if err != nil {
		return exchange.Currency{}, err
	}
	cash := exchange.ManagedAccount{
		ID:            uuid.New(),
		Name:          c.Name + " Cash",
		CurrencyID:    c.ID,
		Balance:       decimal.Zero,
		IsCashAccount: true,
	}
	if _, err := s.writer.PutAccount(ctx, cash); err != nil {
		return exchange.Currency{}, err
	}

	if err := s.audit(ctx, actor, exchange.AuditActionCreate, exchange.AuditEntityCurrency, "currency "+c.Code); err != nil {
		return created, err
	}
	return created, s.writer.Persist(ctx)
}

func (s *service) UpdateCurrency(ctx context.Context, c exchange.Currency, actor uuid.UUID) (exchange.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.CurrencyByID(ctx, c.ID)
	if err != nil {
		return exchange.Currency{}, err
	}
	c.Code = exchange.NormalizeCode(c.Code)
	referenced, err := s.repo.CurrencyReferenced(ctx, c.ID)
	if err != nil {
		return exchange.Currency{}, err
	}
	// Code and kind freeze once history exists; display fields stay editable.
	if referenced && (c.Code != current.Code || c.Kind != current.Kind) {
		return exchange.Currency{}, fmt.Errorf("%w: code and kind are immutable once the currency is referenced", errs.ErrConflict)
	}
	if c.Code != current.Code {
		if _, err := s.repo.CurrencyByCode(ctx, c.Code); err == nil {
			return exchange.Currency{}, fmt.Errorf("%w: currency code %s already exists", errs.ErrConflict, c.Code)
		}
	}
	updated, err := s.writer.PutCurrency(ctx, c)
	if err != nil {
		return exchange.Currency{}, err
	}
	// The cash account carries the currency name and follows renames.
	if c.Name != current.Name {
		if cash, err := s.repo.CashAccountForCurrency(ctx, c.ID); err == nil {
			cash.Name = c.Name + " Cash"
			if _, err := s.writer.PutAccount(ctx, cash); err != nil {
				return exchange.Currency{}, err
			}
		}
	}
	if err := s.audit(ctx, actor, exchange.AuditActionUpdate, exchange.AuditEntityCurrency, "currency "+c.Code); err != nil {
		return updated, err
	}
	return updated, s.writer.Persist(ctx)
}

// DeleteCurrency removes a currency and its cash account. Refused while any
// transaction references the currency, while any non-cash account holds it,
// or for the reference currency itself.
func (s *service) DeleteCurrency(ctx context.Context, id, actor uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.CurrencyByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Code == s.referenceCode {
		return fmt.Errorf("%w: %s is the reference currency", errs.ErrConflict, c.Code)
	}
	referenced, err := s.repo.CurrencyReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: currency %s is referenced by transactions", errs.ErrConflict, c.Code)
	}
	accounts, err := s.repo.AccountsByCurrency(ctx, id)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if !a.IsCashAccount {
			return fmt.Errorf("%w: account %q still holds currency %s", errs.ErrConflict, a.Name, c.Code)
		}
		if a.Balance.Sign() != 0 {
			return fmt.Errorf("%w: cash account %q has a non-zero balance", errs.ErrConflict, a.Name)
		}
	}
	for _, a := range accounts {
		if err := s.writer.DeleteAccount(ctx, a.ID); err != nil {
			return err
		}
	}
	if err := s.writer.DeleteCurrency(ctx, id); err != nil {
		return err
	}
	if err := s.audit(ctx, actor, exchange.AuditActionDelete, exchange.AuditEntityCurrency, "currency "+c.Code); err != nil {
		return err
	}
	return s.writer.Persist(ctx)
}

func (s *service) GetCurrency(ctx context.Context, id uuid.UUID) (exchange.Currency, error) {
	return s.repo.CurrencyByID(ctx, id)
}

func (s *service) ListCurrencies(ctx context.Context) ([]exchange.Currency, error) {
	return s.repo.ListCurrencies(ctx)
}

// --- Managed accounts ---

func (s *service) CreateAccount(ctx context.Context, a exchange.ManagedAccount, actor uuid.UUID) (exchange.ManagedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Name == "" {
		return exchange.ManagedAccount{}, fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	if _, err := s.repo.CurrencyByID(ctx, a.CurrencyID); err != nil {
		return exchange.ManagedAccount{}, fmt.Errorf("%w: currency %s", errs.ErrNotFound, a.CurrencyID)
	}
	if a.IsCashAccount {
		if _, err := s.repo.CashAccountForCurrency(ctx, a.CurrencyID); err == nil {
			return exchange.ManagedAccount{}, fmt.Errorf("%w: currency already has a cash account", errs.ErrConflict)
		}
	}
	a.ID = uuid.New()
	created, err := s.writer.PutAccount(ctx, a)
	if err != nil {
		return exchange.ManagedAccount{}, err
	}
	if err := s.audit(ctx, actor, exchange.AuditActionCreate, exchange.AuditEntityAccount, "account "+a.Name); err != nil {
		return created, err
	}
	return created, s.writer.Persist(ctx)
}

// UpdateAccount edits descriptive fields. Currency, cash flag and balance are
// immutable here; balances move only through the engine.
func (s *service) UpdateAccount(ctx context.Context, a exchange.ManagedAccount, actor uuid.UUID) (exchange.ManagedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.AccountByID(ctx, a.ID)
	if err != nil {
		return exchange.ManagedAccount{}, err
	}
	if a.CurrencyID != current.CurrencyID || a.IsCashAccount != current.IsCashAccount {
		return exchange.ManagedAccount{}, fmt.Errorf("%w: currency and cash flag are immutable", errs.ErrConflict)
	}
	a.Balance = current.Balance
	updated, err := s.writer.PutAccount(ctx, a)
	if err != nil {
		return exchange.ManagedAccount{}, err
	}
	if err := s.audit(ctx, actor, exchange.AuditActionUpdate, exchange.AuditEntityAccount, "account "+a.Name); err != nil {
		return updated, err
	}
	return updated, s.writer.Persist(ctx)
}

func (s *service) DeleteAccount(ctx context.Context, id, actor uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.repo.AccountByID(ctx, id)
	if err != nil {
		return err
	}
	if a.IsCashAccount {
		return fmt.Errorf("%w: cash accounts are deleted with their currency", errs.ErrConflict)
	}
	referenced, err := s.repo.AccountReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: account %q is referenced by history", errs.ErrConflict, a.Name)
	}
	if a.Balance.Sign() != 0 {
		return fmt.Errorf("%w: account %q has a non-zero balance", errs.ErrConflict, a.Name)
	}
	if err := s.writer.DeleteAccount(ctx, id); err != nil {
		return err
	}
	if err := s.audit(ctx, actor, exchange.AuditActionDelete, exchange.AuditEntityAccount, "account "+a.Name); err != nil {
		return err
	}
	return s.writer.Persist(ctx)
}

func (s *service) GetAccount(ctx context.Context, id uuid.UUID) (exchange.ManagedAccount, error) {
	return s.repo.AccountByID(ctx, id)
}

func (s *service) ListAccounts(ctx context.Context) ([]exchange.ManagedAccount, error) {
	return s.repo.ListAccounts(ctx)
}

// --- Customers ---

func (s *service) CreateCustomer(ctx context.Context, c exchange.Customer, actor uuid.UUID) (exchange.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Name == "" {
		return exchange.Customer{}, fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	if c.ReferrerID != uuid.Nil {
		if _, err := s.repo.CustomerByID(ctx, c.ReferrerID); err != nil {
			return exchange.Customer{}, fmt.Errorf("%w: referrer %s", errs.ErrNotFound, c.ReferrerID)
		}
	}
	c.ID = uuid.New()
	if c.MembershipDate.IsZero() {
		c.MembershipDate = time.Now().UTC()
	}
	created, err := s.writer.PutCustomer(ctx, c)
	if err != nil {
		return exchange.Customer{}, err
	}
	if err := s.audit(ctx, actor, exchange.AuditActionCreate, exchange.AuditEntityCustomer, "customer "+c.Name); err != nil {
		return created, err
	}
	return created, s.writer.Persist(ctx)
}

func (s *service) UpdateCustomer(ctx context.Context, c exchange.Customer, actor uuid.UUID) (exchange.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.CustomerByID(ctx, c.ID)
	if err != nil {
		return exchange.Customer{}, err
	}
	if c.Name == "" {
		return exchange.Customer{}, fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	if c.ReferrerID != uuid.Nil && c.ReferrerID != current.ReferrerID {
		if c.ReferrerID == c.ID {
			return exchange.Customer{}, fmt.Errorf("%w: a customer cannot refer themselves", errs.ErrInvalid)
		}
		if _, err := s.repo.CustomerByID(ctx, c.ReferrerID); err != nil {
			return exchange.Customer{}, fmt.Errorf("%w: referrer %s", errs.ErrNotFound, c.ReferrerID)
		}
	}
	c.MembershipDate = current.MembershipDate
	updated, err := s.writer.PutCustomer(ctx, c)
	if err != nil {
		return exchange.Customer{}, err
	}
	if err := s.audit(ctx, actor, exchange.AuditActionUpdate, exchange.AuditEntityCustomer, "customer "+c.Name); err != nil {
		return updated, err
	}
	return updated, s.writer.Persist(ctx)
}

// DeleteCustomer removes a customer. Refused while transactions or ledger
// entries still name them.
func (s *service) DeleteCustomer(ctx context.Context, id, actor uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.CustomerByID(ctx, id)
	if err != nil {
		return err
	}
	referenced, err := s.repo.CustomerReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: customer %q has transactions", errs.ErrConflict, c.Name)
	}
	entries, err := s.repo.LedgerByCustomer(ctx, id)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: customer %q has ledger entries", errs.ErrConflict, c.Name)
	}
	if err := s.writer.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	if err := s.audit(ctx, actor, exchange.AuditActionDelete, exchange.AuditEntityCustomer, "customer "+c.Name); err != nil {
		return err
	}
	return s.writer.Persist(ctx)
}

func (s *service) GetCustomer(ctx context.Context, id uuid.UUID) (exchange.Customer, error) {
	return s.repo.CustomerByID(ctx, id)
}

func (s *service) ListCustomers(ctx context.Context) ([]exchange.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// --- Ornamental gold inventory ---

func (s *service) CreateGoldItem(ctx context.Context, g exchange.OrnamentalGoldItem, actor uuid.UUID) (exchange.OrnamentalGoldItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.Name == "" {
		return exchange.OrnamentalGoldItem{}, fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	if g.Weight.Sign() <= 0 {
		return exchange.OrnamentalGoldItem{}, fmt.Errorf("%w: weight must be positive", errs.ErrInvalid)
	}
	if g.Code == "" {
		g.Code = slug.Slugify(g.Name)
	}
	g.ID = uuid.New()
	g.Status = exchange.ItemStatusAvailable
	g.SoldTransactionID = uuid.Nil
	g.AddedBy = actor
	g.AddedAt = time.Now().UTC()
	created, err := s.writer.PutGoldItem(ctx, g)
	if err != nil {
		return exchange.OrnamentalGoldItem{}, err
	}
	if err := s.audit(ctx, actor, exchange.AuditActionCreate, exchange.AuditEntityGoldItem, "gold item "+g.Code); err != nil {
		return created, err
	}
	return created, s.writer.Persist(ctx)
}

// UpdateGoldItem edits descriptive and purchase fields. Sale state belongs to
// the engine and cannot be set here.
func (s *service) UpdateGoldItem(ctx context.Context, g exchange.OrnamentalGoldItem, actor uuid.UUID) (exchange.OrnamentalGoldItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.GoldItemByID(ctx, g.ID)
	if err != nil {
		return exchange.OrnamentalGoldItem{}, err
	}
	if g.Weight.Sign() <= 0 {
		return exchange.OrnamentalGoldItem{}, fmt.Errorf("%w: weight must be positive", errs.ErrInvalid)
	}
	g.Status = current.Status
	g.SoldTransactionID = current.SoldTransactionID
	g.SoldAt = current.SoldAt
	g.AddedBy = current.AddedBy
	g.AddedAt = current.AddedAt
	updated, err := s.writer.PutGoldItem(ctx, g)
	if err != nil {
		return exchange.OrnamentalGoldItem{}, err
	}
	if err := s.audit(ctx, actor, exchange.AuditActionUpdate, exchange.AuditEntityGoldItem, "gold item "+g.Code); err != nil {
		return updated, err
	}
	return updated, s.writer.Persist(ctx)
}

func (s *service) DeleteGoldItem(ctx context.Context, id, actor uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.repo.GoldItemByID(ctx, id)
	if err != nil {
		return err
	}
	if g.Status == exchange.ItemStatusSold {
		return fmt.Errorf("%w: gold item %s is sold; delete its sale transaction first", errs.ErrConflict, g.Code)
	}
	if err := s.writer.DeleteGoldItem(ctx, id); err != nil {
		return err
	}
	if err := s.audit(ctx, actor, exchange.AuditActionDelete, exchange.AuditEntityGoldItem, "gold item "+g.Code); err != nil {
		return err
	}
	return s.writer.Persist(ctx)
}

func (s *service) GetGoldItem(ctx context.Context, id uuid.UUID) (exchange.OrnamentalGoldItem, error) {
	return s.repo.GoldItemByID(ctx, id)
}

func (s *service) ListGoldItems(ctx context.Context) ([]exchange.OrnamentalGoldItem, error) {
	return s.repo.ListGoldItems(ctx)
}

// ProfitOnSale reports the realized profit of a sold item: the sale price
// minus the cost price and the purchase wage. sold is false while the item is
// still in inventory.
func (s *service) ProfitOnSale(ctx context.Context, id uuid.UUID) (profit decimal.Decimal, sold bool, err error) {
	g, err := s.repo.GoldItemByID(ctx, id)
	if err != nil {
		return decimal.Zero, false, err
	}
	if g.Status != exchange.ItemStatusSold || g.SoldTransactionID == uuid.Nil {
		return decimal.Zero, false, nil
	}
	sale, err := s.repo.TransactionByID(ctx, g.SoldTransactionID)
	if err != nil {
		return decimal.Zero, false, err
	}
	return sale.SourceAmount.Sub(g.CostPrice).Sub(g.PurchaseWageAmount), true, nil
}

func (s *service) audit(ctx context.Context, actor uuid.UUID, action exchange.AuditAction, entity exchange.AuditEntity, details string) error {
	return s.writer.AppendAudit(ctx, exchange.AuditLogEntry{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		UserID:    actor,
		Action:    action,
		Entity:    entity,
		Details:   details,
	})
}
