package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/effect"
	"github.com/prrrssa/sarsabz/internal/errs"
	"github.com/prrrssa/sarsabz/internal/exchange"
)

// Repo defines read operations needed by the engine.
type Repo interface {
	CurrencyByID(ctx context.Context, id uuid.UUID) (exchange.Currency, error)
	AccountByID(ctx context.Context, id uuid.UUID) (exchange.ManagedAccount, error)
	CashAccountForCurrency(ctx context.Context, currencyID uuid.UUID) (exchange.ManagedAccount, error)
	CustomerByID(ctx context.Context, id uuid.UUID) (exchange.Customer, error)
	TransactionByID(ctx context.Context, id uuid.UUID) (exchange.Transaction, error)
	ListTransactions(ctx context.Context) ([]exchange.Transaction, error)
	TransactionsByCustomer(ctx context.Context, customerID uuid.UUID) ([]exchange.Transaction, error)
	LedgerEntryByID(ctx context.Context, id uuid.UUID) (exchange.CustomerLedgerEntry, error)
	ListLedgerEntries(ctx context.Context) ([]exchange.CustomerLedgerEntry, error)
	LedgerByCustomer(ctx context.Context, customerID uuid.UUID) ([]exchange.CustomerLedgerEntry, error)
	EntriesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]exchange.CustomerLedgerEntry, error)
	EntriesBySettlementGroup(ctx context.Context, groupID uuid.UUID) ([]exchange.CustomerLedgerEntry, error)
	ExpenseByID(ctx context.Context, id uuid.UUID) (exchange.PersonalExpense, error)
	ListExpenses(ctx context.Context) ([]exchange.PersonalExpense, error)
	ListAdjustments(ctx context.Context) ([]exchange.AccountAdjustment, error)
	GoldItemByID(ctx context.Context, id uuid.UUID) (exchange.OrnamentalGoldItem, error)
}

// Writer defines write operations needed by the engine.
type Writer interface {
	NextSequence(ctx context.Context) (int64, error)
	PutTransaction(ctx context.Context, t exchange.Transaction) (exchange.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	PutLedgerEntry(ctx context.Context, e exchange.CustomerLedgerEntry) (exchange.CustomerLedgerEntry, error)
	DeleteLedgerEntry(ctx context.Context, id uuid.UUID) error
	DeleteEntriesByTransaction(ctx context.Context, transactionID uuid.UUID) error
	PutExpense(ctx context.Context, e exchange.PersonalExpense) (exchange.PersonalExpense, error)
	DeleteExpense(ctx context.Context, id uuid.UUID) error
	AppendAdjustment(ctx context.Context, a exchange.AccountAdjustment) (exchange.AccountAdjustment, error)
	AddToBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (exchange.ManagedAccount, error)
	PutGoldItem(ctx context.Context, g exchange.OrnamentalGoldItem) (exchange.OrnamentalGoldItem, error)
	AppendAudit(ctx context.Context, e exchange.AuditLogEntry) error
	Persist(ctx context.Context) error
}

// Service is the transaction engine: it owns every operation that moves
// account balances, and keeps balances, customer ledger rows, gold inventory
// and the audit trail consistent with each other.
type Service interface {
	CreateTransaction(ctx context.Context, tx exchange.Transaction, actor uuid.UUID) (exchange.Transaction, []exchange.Warning, error)
	UpdateTransaction(ctx context.Context, proposed exchange.Transaction, actor uuid.UUID) (exchange.Transaction, []exchange.Warning, error)
	DeleteTransaction(ctx context.Context, id, actor uuid.UUID) error
	GetTransaction(ctx context.Context, id uuid.UUID) (exchange.Transaction, error)
	ListTransactions(ctx context.Context) ([]exchange.Transaction, error)
	TransactionsByCustomer(ctx context.Context, customerID uuid.UUID) ([]exchange.Transaction, error)

	CreateLedgerEntry(ctx context.Context, e exchange.CustomerLedgerEntry, actor uuid.UUID) (exchange.CustomerLedgerEntry, []exchange.Warning, error)
	UpdateLedgerEntry(ctx context.Context, proposed exchange.CustomerLedgerEntry, actor uuid.UUID) (exchange.CustomerLedgerEntry, []exchange.Warning, error)
	DeleteLedgerEntry(ctx context.Context, id, actor uuid.UUID) error
	GetLedgerEntry(ctx context.Context, id uuid.UUID) (exchange.CustomerLedgerEntry, error)
	ListLedgerEntries(ctx context.Context) ([]exchange.CustomerLedgerEntry, error)
	LedgerByCustomer(ctx context.Context, customerID uuid.UUID) ([]exchange.CustomerLedgerEntry, error)
	SettleBetweenCustomers(ctx context.Context, fromCustomerID, toCustomerID, currencyID uuid.UUID, amount decimal.Decimal, description string, actor uuid.UUID) ([]exchange.CustomerLedgerEntry, error)

	CreateExpense(ctx context.Context, e exchange.PersonalExpense, actor uuid.UUID) (exchange.PersonalExpense, []exchange.Warning, error)
	UpdateExpense(ctx context.Context, proposed exchange.PersonalExpense, actor uuid.UUID) (exchange.PersonalExpense, []exchange.Warning, error)
	DeleteExpense(ctx context.Context, id, actor uuid.UUID) error
	GetExpense(ctx context.Context, id uuid.UUID) (exchange.PersonalExpense, error)
	ListExpenses(ctx context.Context) ([]exchange.PersonalExpense, error)

	AdjustBalance(ctx context.Context, accountID uuid.UUID, newBalance decimal.Decimal, reason string, actor uuid.UUID) (exchange.AccountAdjustment, error)
	ListAdjustments(ctx context.Context) ([]exchange.AccountAdjustment, error)
}

type service struct {
	// mu serializes all mutations. Reads go straight to the store. The lock
	// is shared with the registry and tier services so that reference-data
	// writes cannot interleave with a balance movement in flight.
	mu     *sync.Mutex
	repo   Repo
	writer Writer
	calc   *effect.Calculator
}

// New constructs the engine over a repository and writer. The repo must also
// serve as the account resolver for effect calculation. mu is the process-wide
// mutation lock; every service that writes through the same store must hold it.
func New(repo Repo, writer Writer, mu *sync.Mutex) Service {
	return &service{mu: mu, repo: repo, writer: writer, calc: effect.New(resolverAdapter{repo})}
}

// resolverAdapter narrows Repo to the effect.Resolver interface.
type resolverAdapter struct{ Repo }

// --- Transactions ---

func (s *service) CreateTransaction(ctx context.Context, tx exchange.Transaction, actor uuid.UUID) (exchange.Transaction, []exchange.Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateTransaction(ctx, tx); err != nil {
		return exchange.Transaction{}, nil, err
	}
	effs, err := s.calc.ForTransaction(ctx, tx)
	if err != nil {
		return exchange.Transaction{}, nil, err
	}

	if tx.IsGoldSale() {
		item, err := s.repo.GoldItemByID(ctx, tx.SoldOrnamentalGoldID)
		if err != nil {
			return exchange.Transaction{}, nil, fmt.Errorf("%w: gold item %s", errs.ErrNotFound, tx.SoldOrnamentalGoldID)
		}
		if item.Status == exchange.ItemStatusSold {
			return exchange.Transaction{}, nil, fmt.Errorf("%w: gold item %s already sold", errs.ErrConflict, item.Code)
		}
	}

	seq, err := s.writer.NextSequence(ctx)
	if err != nil {
		return exchange.Transaction{}, nil, err
	}
	tx.SequenceNumber = seq
	tx.CreatedBy = actor
	tx.LastModifiedBy = actor
	tx.LastModifiedDate = time.Now().UTC()

	// Any failure from here on unwinds the applied prefix so balances end
	// where they started.
	warnings, applied, err := s.applyEffects(ctx, effs)
	if err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return exchange.Transaction{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.Transaction{}, nil, err
	}

	if tx.IsGoldSale() {
		if err := s.markGoldSold(ctx, tx.SoldOrnamentalGoldID, tx.ID, tx.Date); err != nil {
			if rerr := s.rollbackCreate(ctx, tx, applied); rerr != nil {
				return exchange.Transaction{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
			}
			return exchange.Transaction{}, nil, err
		}
	}
	if err := s.writeMirroredEntries(ctx, tx, actor); err != nil {
		if rerr := s.rollbackCreate(ctx, tx, applied); rerr != nil {
			return exchange.Transaction{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.Transaction{}, nil, err
	}
	if _, err := s.writer.PutTransaction(ctx, tx); err != nil {
		if rerr := s.rollbackCreate(ctx, tx, applied); rerr != nil {
			return exchange.Transaction{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.Transaction{}, nil, err
	}

	if err := s.audit(ctx, actor, exchange.AuditActionCreate, exchange.AuditEntityTransaction,
		fmt.Sprintf("transaction #%d (%s)", tx.SequenceNumber, tx.Kind)); err != nil {
		return tx, warnings, err
	}
	return tx, warnings, s.writer.Persist(ctx)
}

// rollbackCreate undoes the side effects of a half-finished create: mirrored
// rows, the gold sale link and the applied balance deltas.
func (s *service) rollbackCreate(ctx context.Context, tx exchange.Transaction, applied []effect.Effect) error {
	if err := s.writer.DeleteEntriesByTransaction(ctx, tx.ID); err != nil {
		return err
	}
	if tx.IsGoldSale() {
		if item, err := s.repo.GoldItemByID(ctx, tx.SoldOrnamentalGoldID); err == nil && item.SoldTransactionID == tx.ID {
			if err := s.markGoldAvailable(ctx, tx.SoldOrnamentalGoldID); err != nil {
				return err
			}
		}
	}
	return s.revertApplied(ctx, applied)
}

// UpdateTransaction edits a transaction by reverting the original balance
// effects, then applying the proposed ones. If applying the new effects fails
// partway, the partial application is rolled back and the original effects
// are reinstated so account balances end where they started.
func (s *service) UpdateTransaction(ctx context.Context, proposed exchange.Transaction, actor uuid.UUID) (exchange.Transaction, []exchange.Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orig, err := s.repo.TransactionByID(ctx, proposed.ID)
	if err != nil {
		return exchange.Transaction{}, nil, err
	}

	// Identity fields survive edits.
	proposed.SequenceNumber = orig.SequenceNumber
	proposed.CreatedBy = orig.CreatedBy
	proposed.LastModifiedBy = actor
	proposed.LastModifiedDate = time.Now().UTC()

	if err := s.validateTransaction(ctx, proposed); err != nil {
		return exchange.Transaction{}, nil, err
	}

	// Resolve both effect sets before touching any balance so a resolution
	// failure aborts with nothing applied.
	origEffs, err := s.calc.ForTransaction(ctx, orig)
	if err != nil {
		return exchange.Transaction{}, nil, err
	}
	newEffs, err := s.calc.ForTransaction(ctx, proposed)
	if err != nil {
		return exchange.Transaction{}, nil, err
	}

	if proposed.IsGoldSale() && proposed.SoldOrnamentalGoldID != orig.SoldOrnamentalGoldID {
		item, err := s.repo.GoldItemByID(ctx, proposed.SoldOrnamentalGoldID)
		if err != nil {
			return exchange.Transaction{}, nil, fmt.Errorf("%w: gold item %s", errs.ErrNotFound, proposed.SoldOrnamentalGoldID)
		}
		if item.Status == exchange.ItemStatusSold {
			return exchange.Transaction{}, nil, fmt.Errorf("%w: gold item %s already sold", errs.ErrConflict, item.Code)
		}
	}

	if _, applied, err := s.applyEffects(ctx, effect.Invert(origEffs)); err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return exchange.Transaction{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.Transaction{}, nil, err
	}
	warnings, applied, err := s.applyEffects(ctx, newEffs)
	if err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return exchange.Transaction{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		if _, _, rerr := s.applyEffects(ctx, origEffs); rerr != nil {
			return exchange.Transaction{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.Transaction{}, nil, err
	}

	if orig.SoldOrnamentalGoldID != proposed.SoldOrnamentalGoldID {
		if orig.IsGoldSale() {
			if err := s.markGoldAvailable(ctx, orig.SoldOrnamentalGoldID); err != nil {
				return exchange.Transaction{}, nil, err
			}
		}
		if proposed.IsGoldSale() {
			if err := s.markGoldSold(ctx, proposed.SoldOrnamentalGoldID, proposed.ID, proposed.Date); err != nil {
				return exchange.Transaction{}, nil, err
			}
		}
	}

	if err := s.writer.DeleteEntriesByTransaction(ctx, orig.ID); err != nil {
		return exchange.Transaction{}, nil, err
	}
	if err := s.writeMirroredEntries(ctx, proposed, actor); err != nil {
		return exchange.Transaction{}, nil, err
	}
	if _, err := s.writer.PutTransaction(ctx, proposed); err != nil {
		return exchange.Transaction{}, nil, err
	}

	if err := s.audit(ctx, actor, exchange.AuditActionUpdate, exchange.AuditEntityTransaction,
		fmt.Sprintf("transaction #%d (%s)", proposed.SequenceNumber, proposed.Kind)); err != nil {
		return proposed, warnings, err
	}
	return proposed, warnings, s.writer.Persist(ctx)
}

func (s *service) DeleteTransaction(ctx context.Context, id, actor uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.repo.TransactionByID(ctx, id)
	if err != nil {
		return err
	}
	effs, err := s.calc.ForTransaction(ctx, tx)
	if err != nil {
		return err
	}
	if _, applied, err := s.applyEffects(ctx, effect.Invert(effs)); err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return err
	}
	if tx.IsGoldSale() {
		if err := s.markGoldAvailable(ctx, tx.SoldOrnamentalGoldID); err != nil {
			return err
		}
	}
	if err := s.writer.DeleteEntriesByTransaction(ctx, tx.ID); err != nil {
		return err
	}
	if err := s.writer.DeleteTransaction(ctx, tx.ID); err != nil {
		return err
	}

	if err := s.audit(ctx, actor, exchange.AuditActionDelete, exchange.AuditEntityTransaction,
		fmt.Sprintf("transaction #%d (%s)", tx.SequenceNumber, tx.Kind)); err != nil {
		return err
	}
	return s.writer.Persist(ctx)
}

func (s *service) GetTransaction(ctx context.Context, id uuid.UUID) (exchange.Transaction, error) {
	return s.repo.TransactionByID(ctx, id)
}

func (s *service) ListTransactions(ctx context.Context) ([]exchange.Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

func (s *service) TransactionsByCustomer(ctx context.Context, customerID uuid.UUID) ([]exchange.Transaction, error) {
	if customerID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.TransactionsByCustomer(ctx, customerID)
}

func (s *service) validateTransaction(ctx context.Context, tx exchange.Transaction) error {
	if _, err := s.repo.CurrencyByID(ctx, tx.SourceCurrencyID); err != nil {
		return fmt.Errorf("%w: source currency %s", errs.ErrNotFound, tx.SourceCurrencyID)
	}
	if _, err := s.repo.CurrencyByID(ctx, tx.TargetCurrencyID); err != nil {
		return fmt.Errorf("%w: target currency %s", errs.ErrNotFound, tx.TargetCurrencyID)
	}
	if tx.Kind == exchange.KindCustomerTrade {
		if _, err := s.repo.CustomerByID(ctx, tx.CustomerID); err != nil {
			return fmt.Errorf("%w: customer %s", errs.ErrNotFound, tx.CustomerID)
		}
	}
	return nil
}

// writeMirroredEntries records a customer trade on the customer's ledger: a
// negative row for what they handed in and a positive row for what they
// received. Gold sales get only the hand-in row; the counterpart is the
// inventory item, not a currency balance. These rows never touch account
// balances; the transaction itself already moved the cash.
func (s *service) writeMirroredEntries(ctx context.Context, tx exchange.Transaction, actor uuid.UUID) error {
	if tx.Kind != exchange.KindCustomerTrade {
		return nil
	}
	now := time.Now().UTC()
	rows := []exchange.CustomerLedgerEntry{{
		ID:            uuid.New(),
		CustomerID:    tx.CustomerID,
		CurrencyID:    tx.SourceCurrencyID,
		Amount:        tx.SourceAmount.Neg(),
		Description:   fmt.Sprintf("trade #%d", tx.SequenceNumber),
		TransactionID: tx.ID,
		Date:          tx.Date,
		CreatedBy:     actor,
	}}
	if !tx.IsGoldSale() {
		rows = append(rows, exchange.CustomerLedgerEntry{
			ID:            uuid.New(),
			CustomerID:    tx.CustomerID,
			CurrencyID:    tx.TargetCurrencyID,
			Amount:        tx.TargetAmount,
			Description:   fmt.Sprintf("trade #%d", tx.SequenceNumber),
			TransactionID: tx.ID,
			Date:          tx.Date,
			CreatedBy:     actor,
		})
	}
	for _, row := range rows {
		row.LastModifiedBy = actor
		row.LastModifiedDate = now
		if _, err := s.writer.PutLedgerEntry(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) markGoldSold(ctx context.Context, itemID, txID uuid.UUID, at time.Time) error {
	item, err := s.repo.GoldItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	item.Status = exchange.ItemStatusSold
	item.SoldTransactionID = txID
	item.SoldAt = at
	_, err = s.writer.PutGoldItem(ctx, item)
	return err
}

func (s *service) markGoldAvailable(ctx context.Context, itemID uuid.UUID) error {
	item, err := s.repo.GoldItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	item.Status = exchange.ItemStatusAvailable
	item.SoldTransactionID = uuid.Nil
	item.SoldAt = time.Time{}
	_, err = s.writer.PutGoldItem(ctx, item)
	return err
}

// --- Customer ledger entries ---

func (s *service) CreateLedgerEntry(ctx context.Context, e exchange.CustomerLedgerEntry, actor uuid.UUID) (exchange.CustomerLedgerEntry, []exchange.Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.SystemManaged() {
		return exchange.CustomerLedgerEntry{}, nil, errs.ErrSystemManagedEntry
	}
	if err := s.validateLedgerEntry(ctx, e); err != nil {
		return exchange.CustomerLedgerEntry{}, nil, err
	}
	effs, err := s.calc.ForLedgerEntry(ctx, e)
	if err != nil {
		return exchange.CustomerLedgerEntry{}, nil, err
	}

	e.ID = uuid.New()
	e.CreatedBy = actor
	e.LastModifiedBy = actor
	e.LastModifiedDate = time.Now().UTC()

	warnings, applied, err := s.applyEffects(ctx, effs)
	if err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return exchange.CustomerLedgerEntry{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.CustomerLedgerEntry{}, nil, err
	}
	if _, err := s.writer.PutLedgerEntry(ctx, e); err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return exchange.CustomerLedgerEntry{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.CustomerLedgerEntry{}, nil, err
	}

	if err := s.audit(ctx, actor, exchange.AuditActionCreate, exchange.AuditEntityCustomerLedger,
		fmt.Sprintf("ledger entry for customer %s: %s", e.CustomerID, e.Amount)); err != nil {
		return e, warnings, err
	}
	return e, warnings, s.writer.Persist(ctx)
}

func (s *service) UpdateLedgerEntry(ctx context.Context, proposed exchange.CustomerLedgerEntry, actor uuid.UUID) (exchange.CustomerLedgerEntry, []exchange.Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orig, err := s.repo.LedgerEntryByID(ctx, proposed.ID)
	if err != nil {
		return exchange.CustomerLedgerEntry{}, nil, err
	}
	if orig.SystemManaged() {
		return exchange.CustomerLedgerEntry{}, nil, errs.ErrSystemManagedEntry
	}
	proposed.TransactionID = uuid.Nil
	proposed.SettlementGroupID = orig.SettlementGroupID
	proposed.CreatedBy = orig.CreatedBy
	proposed.LastModifiedBy = actor
	proposed.LastModifiedDate = time.Now().UTC()

	if err := s.validateLedgerEntry(ctx, proposed); err != nil {
		return exchange.CustomerLedgerEntry{}, nil, err
	}
	origEffs, err := s.calc.ForLedgerEntry(ctx, orig)
	if err != nil {
		return exchange.CustomerLedgerEntry{}, nil, err
	}
	newEffs, err := s.calc.ForLedgerEntry(ctx, proposed)
	if err != nil {
		return exchange.CustomerLedgerEntry{}, nil, err
	}

	if _, applied, err := s.applyEffects(ctx, effect.Invert(origEffs)); err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return exchange.CustomerLedgerEntry{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.CustomerLedgerEntry{}, nil, err
	}
	warnings, applied, err := s.applyEffects(ctx, newEffs)
	if err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return exchange.CustomerLedgerEntry{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		if _, _, rerr := s.applyEffects(ctx, origEffs); rerr != nil {
			return exchange.CustomerLedgerEntry{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.CustomerLedgerEntry{}, nil, err
	}
	if _, err := s.writer.PutLedgerEntry(ctx, proposed); err != nil {
		return exchange.CustomerLedgerEntry{}, nil, err
	}

	if err := s.audit(ctx, actor, exchange.AuditActionUpdate, exchange.AuditEntityCustomerLedger,
		fmt.Sprintf("ledger entry %s", proposed.ID)); err != nil {
		return proposed, warnings, err
	}
	return proposed, warnings, s.writer.Persist(ctx)
}

// DeleteLedgerEntry removes a manual entry and reverts its balance effect.
// Entries that belong to a settlement group take the whole group with them.
func (s *service) DeleteLedgerEntry(ctx context.Context, id, actor uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.repo.LedgerEntryByID(ctx, id)
	if err != nil {
		return err
	}
	if e.SystemManaged() {
		return errs.ErrSystemManagedEntry
	}

	group := []exchange.CustomerLedgerEntry{e}
	if e.SettlementGroupID != uuid.Nil {
		group, err = s.repo.EntriesBySettlementGroup(ctx, e.SettlementGroupID)
		if err != nil {
			return err
		}
	}
	for _, entry := range group {
		effs, err := s.calc.ForLedgerEntry(ctx, entry)
		if err != nil {
			return err
		}
		if _, applied, err := s.applyEffects(ctx, effect.Invert(effs)); err != nil {
			if rerr := s.revertApplied(ctx, applied); rerr != nil {
				return fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
			}
			return err
		}
		if err := s.writer.DeleteLedgerEntry(ctx, entry.ID); err != nil {
			return err
		}
	}

	if err := s.audit(ctx, actor, exchange.AuditActionDelete, exchange.AuditEntityCustomerLedger,
		fmt.Sprintf("ledger entry %s", id)); err != nil {
		return err
	}
	return s.writer.Persist(ctx)
}

func (s *service) GetLedgerEntry(ctx context.Context, id uuid.UUID) (exchange.CustomerLedgerEntry, error) {
	return s.repo.LedgerEntryByID(ctx, id)
}

func (s *service) ListLedgerEntries(ctx context.Context) ([]exchange.CustomerLedgerEntry, error) {
	return s.repo.ListLedgerEntries(ctx)
}

func (s *service) LedgerByCustomer(ctx context.Context, customerID uuid.UUID) ([]exchange.CustomerLedgerEntry, error) {
	if customerID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.LedgerByCustomer(ctx, customerID)
}

// SettleBetweenCustomers moves a debt from one customer to another: the payer
// is credited and the payee debited by the same amount in the same currency,
// linked by a shared group id. House balances net to zero.
func (s *service) SettleBetweenCustomers(ctx context.Context, fromCustomerID, toCustomerID, currencyID uuid.UUID, amount decimal.Decimal, description string, actor uuid.UUID) ([]exchange.CustomerLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fromCustomerID == uuid.Nil || toCustomerID == uuid.Nil || fromCustomerID == toCustomerID {
		return nil, fmt.Errorf("%w: settlement needs two distinct customers", errs.ErrInvalid)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: settlement amount must be positive", errs.ErrInvalid)
	}
	if _, err := s.repo.CustomerByID(ctx, fromCustomerID); err != nil {
		return nil, fmt.Errorf("%w: customer %s", errs.ErrNotFound, fromCustomerID)
	}
	if _, err := s.repo.CustomerByID(ctx, toCustomerID); err != nil {
		return nil, fmt.Errorf("%w: customer %s", errs.ErrNotFound, toCustomerID)
	}
	if _, err := s.repo.CurrencyByID(ctx, currencyID); err != nil {
		return nil, fmt.Errorf("%w: currency %s", errs.ErrNotFound, currencyID)
	}

	now := time.Now().UTC()
	groupID := uuid.New()
	rows := []exchange.CustomerLedgerEntry{
		{
			ID:                uuid.New(),
			CustomerID:        fromCustomerID,
			CurrencyID:        currencyID,
			Amount:            amount,
			Description:       description,
			SettlementGroupID: groupID,
			Date:              now,
			CreatedBy:         actor,
			LastModifiedBy:    actor,
			LastModifiedDate:  now,
		},
		{
			ID:                uuid.New(),
			CustomerID:        toCustomerID,
			CurrencyID:        currencyID,
			Amount:            amount.Neg(),
			Description:       description,
			SettlementGroupID: groupID,
			Date:              now,
			CreatedBy:         actor,
			LastModifiedBy:    actor,
			LastModifiedDate:  now,
		},
	}
	for _, row := range rows {
		if _, err := s.writer.PutLedgerEntry(ctx, row); err != nil {
			return nil, err
		}
	}

	if err := s.audit(ctx, actor, exchange.AuditActionCreate, exchange.AuditEntityCustomerLedger,
		fmt.Sprintf("settlement of %s between customers %s and %s", amount, fromCustomerID, toCustomerID)); err != nil {
		return rows, err
	}
	return rows, s.writer.Persist(ctx)
}

func (s *service) validateLedgerEntry(ctx context.Context, e exchange.CustomerLedgerEntry) error {
	if e.CustomerID == uuid.Nil {
		return fmt.Errorf("%w: ledger entry requires a customer", errs.ErrInvalid)
	}
	if e.Amount.Sign() == 0 {
		return fmt.Errorf("%w: ledger entry amount must be non-zero", errs.ErrInvalid)
	}
	if _, err := s.repo.CustomerByID(ctx, e.CustomerID); err != nil {
		return fmt.Errorf("%w: customer %s", errs.ErrNotFound, e.CustomerID)
	}
	if _, err := s.repo.CurrencyByID(ctx, e.CurrencyID); err != nil {
		return fmt.Errorf("%w: currency %s", errs.ErrNotFound, e.CurrencyID)
	}
	return nil
}

// --- Personal expenses ---

func (s *service) CreateExpense(ctx context.Context, e exchange.PersonalExpense, actor uuid.UUID) (exchange.PersonalExpense, []exchange.Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.repo.AccountByID(ctx, e.ManagedAccountID)
	if err != nil {
		return exchange.PersonalExpense{}, nil, fmt.Errorf("%w: account %s", errs.ErrMissingAccount, e.ManagedAccountID)
	}
	if e.Amount.Sign() <= 0 {
		return exchange.PersonalExpense{}, nil, fmt.Errorf("%w: expense amount must be positive", errs.ErrInvalid)
	}
	e.ID = uuid.New()
	e.CurrencyID = acc.CurrencyID
	e.LastModifiedBy = actor
	e.LastModifiedDate = time.Now().UTC()

	effs, err := s.calc.ForExpense(ctx, e)
	if err != nil {
		return exchange.PersonalExpense{}, nil, err
	}
	warnings, applied, err := s.applyEffects(ctx, effs)
	if err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return exchange.PersonalExpense{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.PersonalExpense{}, nil, err
	}
	if _, err := s.writer.PutExpense(ctx, e); err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return exchange.PersonalExpense{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.PersonalExpense{}, nil, err
	}

	if err := s.audit(ctx, actor, exchange.AuditActionCreate, exchange.AuditEntityExpense,
		fmt.Sprintf("expense %s on account %q", e.Amount, acc.Name)); err != nil {
		return e, warnings, err
	}
	return e, warnings, s.writer.Persist(ctx)
}

func (s *service) UpdateExpense(ctx context.Context, proposed exchange.PersonalExpense, actor uuid.UUID) (exchange.PersonalExpense, []exchange.Warning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orig, err := s.repo.ExpenseByID(ctx, proposed.ID)
	if err != nil {
		return exchange.PersonalExpense{}, nil, err
	}
	acc, err := s.repo.AccountByID(ctx, proposed.ManagedAccountID)
	if err != nil {
		return exchange.PersonalExpense{}, nil, fmt.Errorf("%w: account %s", errs.ErrMissingAccount, proposed.ManagedAccountID)
	}
	if proposed.Amount.Sign() <= 0 {
		return exchange.PersonalExpense{}, nil, fmt.Errorf("%w: expense amount must be positive", errs.ErrInvalid)
	}
	proposed.CurrencyID = acc.CurrencyID
	proposed.UserID = orig.UserID
	proposed.LastModifiedBy = actor
	proposed.LastModifiedDate = time.Now().UTC()

	origEffs, err := s.calc.ForExpense(ctx, orig)
	if err != nil {
		return exchange.PersonalExpense{}, nil, err
	}
	newEffs, err := s.calc.ForExpense(ctx, proposed)
	if err != nil {
		return exchange.PersonalExpense{}, nil, err
	}

	if _, applied, err := s.applyEffects(ctx, effect.Invert(origEffs)); err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return exchange.PersonalExpense{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.PersonalExpense{}, nil, err
	}
	warnings, applied, err := s.applyEffects(ctx, newEffs)
	if err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return exchange.PersonalExpense{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		if _, _, rerr := s.applyEffects(ctx, origEffs); rerr != nil {
			return exchange.PersonalExpense{}, nil, fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return exchange.PersonalExpense{}, nil, err
	}
	if _, err := s.writer.PutExpense(ctx, proposed); err != nil {
		return exchange.PersonalExpense{}, nil, err
	}

	if err := s.audit(ctx, actor, exchange.AuditActionUpdate, exchange.AuditEntityExpense,
		fmt.Sprintf("expense %s", proposed.ID)); err != nil {
		return proposed, warnings, err
	}
	return proposed, warnings, s.writer.Persist(ctx)
}

func (s *service) DeleteExpense(ctx context.Context, id, actor uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.repo.ExpenseByID(ctx, id)
	if err != nil {
		return err
	}
	effs, err := s.calc.ForExpense(ctx, e)
	if err != nil {
		return err
	}
	if _, applied, err := s.applyEffects(ctx, effect.Invert(effs)); err != nil {
		if rerr := s.revertApplied(ctx, applied); rerr != nil {
			return fmt.Errorf("%w: %v", errs.ErrCompensation, rerr)
		}
		return err
	}
	if err := s.writer.DeleteExpense(ctx, id); err != nil {
		return err
	}

	if err := s.audit(ctx, actor, exchange.AuditActionDelete, exchange.AuditEntityExpense,
		fmt.Sprintf("expense %s", id)); err != nil {
		return err
	}
	return s.writer.Persist(ctx)
}

func (s *service) GetExpense(ctx context.Context, id uuid.UUID) (exchange.PersonalExpense, error) {
	return s.repo.ExpenseByID(ctx, id)
}

func (s *service) ListExpenses(ctx context.Context) ([]exchange.PersonalExpense, error) {
	return s.repo.ListExpenses(ctx)
}

// --- Adjustments ---

// AdjustBalance sets an account balance outright and records the correction.
// The caller states the desired end balance; the delta is derived here.
func (s *service) AdjustBalance(ctx context.Context, accountID uuid.UUID, newBalance decimal.Decimal, reason string, actor uuid.UUID) (exchange.AccountAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.repo.AccountByID(ctx, accountID)
	if err != nil {
		return exchange.AccountAdjustment{}, fmt.Errorf("%w: account %s", errs.ErrMissingAccount, accountID)
	}
	adj := exchange.AccountAdjustment{
		ID:               uuid.New(),
		AccountID:        accountID,
		PreviousBalance:  acc.Balance,
		NewBalance:       newBalance,
		AdjustmentAmount: newBalance.Sub(acc.Balance),
		Reason:           reason,
		UserID:           actor,
		Timestamp:        time.Now().UTC(),
	}
	for _, eff := range effect.ForAdjustment(adj) {
		if _, err := s.writer.AddToBalance(ctx, eff.AccountID, eff.Delta); err != nil {
			return exchange.AccountAdjustment{}, err
		}
	}
	if _, err := s.writer.AppendAdjustment(ctx, adj); err != nil {
		return exchange.AccountAdjustment{}, err
	}

	if err := s.audit(ctx, actor, exchange.AuditActionCreate, exchange.AuditEntityAdjustment,
		fmt.Sprintf("account %q set from %s to %s", acc.Name, adj.PreviousBalance, adj.NewBalance)); err != nil {
		return adj, err
	}
	return adj, s.writer.Persist(ctx)
}

func (s *service) ListAdjustments(ctx context.Context) ([]exchange.AccountAdjustment, error) {
	return s.repo.ListAdjustments(ctx)
}

// --- Shared helpers ---

// applyEffects applies deltas one account at a time, returning warnings for
// balances that go negative and the prefix actually applied so callers can
// roll back on failure.
func (s *service) applyEffects(ctx context.Context, effs []effect.Effect) ([]exchange.Warning, []effect.Effect, error) {
	var warnings []exchange.Warning
	applied := make([]effect.Effect, 0, len(effs))
	for _, eff := range effs {
		acc, err := s.writer.AddToBalance(ctx, eff.AccountID, eff.Delta)
		if err != nil {
			return nil, applied, err
		}
		applied = append(applied, eff)
		if eff.Delta.Sign() < 0 && acc.Balance.Sign() < 0 {
			warnings = append(warnings, exchange.InsufficientFunds(acc, acc.Balance))
		}
	}
	return warnings, applied, nil
}

func (s *service) revertApplied(ctx context.Context, applied []effect.Effect) error {
	for _, eff := range effect.Invert(applied) {
		if _, err := s.writer.AddToBalance(ctx, eff.AccountID, eff.Delta); err != nil {
			return err
		}
	}
	return nil
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
