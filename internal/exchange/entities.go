package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/errs"
	"github.com/prrrssa/sarsabz/internal/meta"
)

// CurrencyKind distinguishes real currencies from traded commodities.
type CurrencyKind string

const (
	// CurrencyKindFiat is ordinary money (IRT, USD, EUR).
	CurrencyKindFiat CurrencyKind = "fiat"
	// CurrencyKindCommodity is goods traded by unit or weight (gold grams, coins).
	CurrencyKindCommodity CurrencyKind = "commodity"
)

// Currency is a unit of value the exchange deals in. Code is unique and
// uppercase. Code and Kind are immutable once a transaction references the
// currency; display fields stay editable.
type Currency struct {
	ID     uuid.UUID
	Code   string
	Name   string
	Symbol string
	Kind   CurrencyKind
}

// ManagedAccount holds a balance in exactly one currency. Balance is a cached
// derivation: it must equal the sum of every effect applied since creation.
// The cash account of a currency is the implicit counterpart for customer
// trades; there is one per currency.
type ManagedAccount struct {
	ID            uuid.UUID
	Name          string
	CurrencyID    uuid.UUID
	Balance       decimal.Decimal
	AccountNumber string
	Description   string
	IsCashAccount bool
	Metadata      meta.Metadata
}

// TransactionKind tags the two transaction shapes. The shape is fixed at
// construction; it is never inferred from which optional fields are set.
type TransactionKind string

const (
	// KindCustomerTrade exchanges value with a customer through the cash
	// accounts of the two currencies involved.
	KindCustomerTrade TransactionKind = "customer_trade"
	// KindInternalTransfer moves value between two explicit managed accounts.
	KindInternalTransfer TransactionKind = "internal_transfer"
)

// Transaction is one exchange event. SequenceNumber is assigned by the engine
// at creation, strictly increasing and never reused. For a customer trade the
// account ids are nil (the cash accounts are resolved per currency); for an
// internal transfer both are set and CustomerID is nil.
type Transaction struct {
	ID             uuid.UUID
	SequenceNumber int64
	Kind           TransactionKind

	CustomerID uuid.UUID

	SourceCurrencyID uuid.UUID
	SourceAmount     decimal.Decimal
	SourceAccountID  uuid.UUID

	TargetCurrencyID uuid.UUID
	TargetAmount     decimal.Decimal
	TargetAccountID  uuid.UUID

	// ExchangeRate is source to target: 1 source unit = rate target units.
	ExchangeRate decimal.Decimal

	CommissionAmount decimal.Decimal
	WageAmount       decimal.Decimal

	// SoldOrnamentalGoldID links a gold-piece sale to its inventory item.
	SoldOrnamentalGoldID uuid.UUID

	Notes string
	Date  time.Time

	CreatedBy        uuid.UUID
	LastModifiedBy   uuid.UUID
	LastModifiedDate time.Time
}

// IsGoldSale reports whether the transaction sells an ornamental gold item.
func (t Transaction) IsGoldSale() bool { return t.SoldOrnamentalGoldID != uuid.Nil }

// NewCustomerTrade builds a customer-trade transaction and validates its
// shape: a customer must be present and explicit account ids must not be.
func NewCustomerTrade(customerID, sourceCurrencyID uuid.UUID, sourceAmount decimal.Decimal, targetCurrencyID uuid.UUID, targetAmount, rate decimal.Decimal, date time.Time) (Transaction, error) {
	if customerID == uuid.Nil {
		return Transaction{}, fmt.Errorf("%w: customer trade requires a customer", errs.ErrInvalid)
	}
	if sourceCurrencyID == uuid.Nil || targetCurrencyID == uuid.Nil {
		return Transaction{}, fmt.Errorf("%w: both currencies are required", errs.ErrInvalid)
	}
	if sourceAmount.Sign() <= 0 || targetAmount.Sign() < 0 {
		return Transaction{}, fmt.Errorf("%w: amounts must be positive", errs.ErrInvalid)
	}
	return Transaction{
		ID:               uuid.New(),
		Kind:             KindCustomerTrade,
		CustomerID:       customerID,
		SourceCurrencyID: sourceCurrencyID,
		SourceAmount:     sourceAmount,
		TargetCurrencyID: targetCurrencyID,
		TargetAmount:     targetAmount,
		ExchangeRate:     rate,
		Date:             date,
	}, nil
}

// NewInternalTransfer builds an internal-transfer transaction: two explicit
// accounts, no customer. The two amounts are taken as stated; no conversion
// is re-derived between them.
func NewInternalTransfer(sourceAccountID, sourceCurrencyID uuid.UUID, sourceAmount decimal.Decimal, targetAccountID, targetCurrencyID uuid.UUID, targetAmount decimal.Decimal, date time.Time) (Transaction, error) {
	if sourceAccountID == uuid.Nil || targetAccountID == uuid.Nil {
		return Transaction{}, fmt.Errorf("%w: internal transfer requires both accounts", errs.ErrInvalid)
	}
	if sourceCurrencyID == uuid.Nil || targetCurrencyID == uuid.Nil {
		return Transaction{}, fmt.Errorf("%w: both currencies are required", errs.ErrInvalid)
	}
	if sourceAmount.Sign() <= 0 || targetAmount.Sign() <= 0 {
		return Transaction{}, fmt.Errorf("%w: amounts must be positive", errs.ErrInvalid)
	}
	return Transaction{
		ID:               uuid.New(),
		Kind:             KindInternalTransfer,
		SourceAccountID:  sourceAccountID,
		SourceCurrencyID: sourceCurrencyID,
		SourceAmount:     sourceAmount,
		TargetAccountID:  targetAccountID,
		TargetCurrencyID: targetCurrencyID,
		TargetAmount:     targetAmount,
		ExchangeRate:     decimal.NewFromInt(1),
		Date:             date,
	}, nil
}

// CustomerLedgerEntry is one signed movement on a customer's running balance
// in a currency. Negative means the customer owes the house. Entries with
// TransactionID set are generated by the owning transaction and can only be
// changed through it; manual entries are independently editable.
type CustomerLedgerEntry struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	CurrencyID  uuid.UUID
	Amount      decimal.Decimal
	Description string

	TransactionID    uuid.UUID
	ManagedAccountID uuid.UUID
	// SettlementGroupID links the two halves of a customer-to-customer
	// settlement; deleting one half deletes the group.
	SettlementGroupID uuid.UUID

	Date             time.Time
	CreatedBy        uuid.UUID
	LastModifiedBy   uuid.UUID
	LastModifiedDate time.Time
}

// SystemManaged reports whether the entry is owned by a transaction.
func (e CustomerLedgerEntry) SystemManaged() bool { return e.TransactionID != uuid.Nil }

// PersonalExpense debits a single managed account. CurrencyID is derived from
// the account at creation.
type PersonalExpense struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Amount           decimal.Decimal
	ManagedAccountID uuid.UUID
	CurrencyID       uuid.UUID
	Category         string
	Description      string
	Date             time.Time
	LastModifiedBy   uuid.UUID
	LastModifiedDate time.Time
}

// AccountAdjustment is a manual balance correction. Create-only.
type AccountAdjustment struct {
	ID               uuid.UUID
	AccountID        uuid.UUID
	PreviousBalance  decimal.Decimal
	NewBalance       decimal.Decimal
	AdjustmentAmount decimal.Decimal
	Reason           string
	UserID           uuid.UUID
	Timestamp        time.Time
}

// ItemStatus is the ornamental gold inventory state.
type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusSold      ItemStatus = "sold"
)

// OrnamentalGoldItem is one piece of inventory. Status is "sold" exactly when
// SoldTransactionID points at a live sale transaction for this item.
type OrnamentalGoldItem struct {
	ID          uuid.UUID
	Code        string
	Name        string
	Weight      decimal.Decimal
	Description string

	CostPrice         decimal.Decimal
	PurchaseWageAmount decimal.Decimal

	Status            ItemStatus
	SoldTransactionID uuid.UUID
	SoldAt            time.Time

	AddedBy uuid.UUID
	AddedAt time.Time
}

// Customer is a trading counterparty. Tier is never stored; it is derived
// lazily from the transaction history.
type Customer struct {
	ID             uuid.UUID
	Name           string
	PhoneNumber    string
	NationalID     string
	MembershipDate time.Time
	ReferrerID     uuid.UUID
	IsFavorite     bool
	Notes          string
	Metadata       meta.Metadata
}

// Tier is one loyalty bracket. DiscountPercent applies multiplicatively to
// commission and wage fees.
type Tier struct {
	Name            string
	MinVolume       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// TierTable is the operator-configurable threshold table, kept sorted
// ascending by MinVolume. The first tier must start at zero.
type TierTable []Tier

// Validate checks ordering and the zero base tier.
func (t TierTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: tier table must not be empty", errs.ErrInvalid)
	}
	if t[0].MinVolume.Sign() != 0 {
		return fmt.Errorf("%w: first tier must start at zero volume", errs.ErrInvalid)
	}
	for i := 1; i < len(t); i++ {
		if !t[i].MinVolume.GreaterThan(t[i-1].MinVolume) {
			return fmt.Errorf("%w: tier thresholds must be strictly increasing", errs.ErrInvalid)
		}
	}
	return nil
}

// For returns the highest tier whose threshold does not exceed volume.
func (t TierTable) For(volume decimal.Decimal) Tier {
	best := t[0]
	for _, tier := range t[1:] {
		if volume.GreaterThanOrEqual(tier.MinVolume) {
			best = tier
		}
	}
	return best
}

// DefaultTierTable mirrors the stock bronze/silver/gold/vip brackets.
func DefaultTierTable() TierTable {
	return TierTable{
		{Name: "bronze", MinVolume: decimal.Zero, DiscountPercent: decimal.Zero},
		{Name: "silver", MinVolume: decimal.NewFromInt(500_000_000), DiscountPercent: decimal.NewFromInt(5)},
		{Name: "gold", MinVolume: decimal.NewFromInt(2_000_000_000), DiscountPercent: decimal.NewFromInt(10)},
		{Name: "vip", MinVolume: decimal.NewFromInt(10_000_000_000), DiscountPercent: decimal.NewFromInt(20)},
	}
}

// AuditAction enumerates what happened.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

// AuditEntity names what the action touched.
type AuditEntity string

const (
	AuditEntityTransaction    AuditEntity = "Transaction"
	AuditEntityCustomerLedger AuditEntity = "CustomerLedger"
	AuditEntityExpense        AuditEntity = "PersonalExpense"
	AuditEntityAdjustment     AuditEntity = "AccountAdjustment"
	AuditEntityAccount        AuditEntity = "ManagedAccount"
	AuditEntityCurrency       AuditEntity = "Currency"
	AuditEntityCustomer       AuditEntity = "Customer"
	AuditEntityGoldItem       AuditEntity = "OrnamentalGold"
	AuditEntityTierConfig     AuditEntity = "CustomerTierConfig"
)

// AuditLogEntry is one append-only audit record. Never mutated or deleted.
type AuditLogEntry struct {
	ID        uuid.UUID
	Timestamp time.Time
	UserID    uuid.UUID
	Action    AuditAction
	Entity    AuditEntity
	Details   string
}

// Warning is a non-fatal condition surfaced alongside a successful result.
type Warning struct {
	Code      string
	Message   string
	AccountID uuid.UUID
}

// InsufficientFunds builds the warning raised when an applied effect drives a
// balance negative. The operation still proceeds.
func InsufficientFunds(account ManagedAccount, resulting decimal.Decimal) Warning {
	return Warning{
		Code:      "insufficient_funds",
		Message:   fmt.Sprintf("account %q balance is %s after this operation", account.Name, resulting.String()),
		AccountID: account.ID,
	}
}

// NormalizeCode uppercases and trims a currency code.
func NormalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }
