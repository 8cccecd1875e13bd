package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/exchange"
	"github.com/prrrssa/sarsabz/internal/meta"
)

// Amount fields ride as decimal strings on the wire; decimal.Decimal accepts
// both quoted and bare numbers on input.

type transactionRequest struct {
	Kind             string          `json:"kind"`
	CustomerID       uuid.UUID       `json:"customerId,omitempty"`
	SourceCurrencyID uuid.UUID       `json:"sourceCurrencyId"`
	SourceAmount     decimal.Decimal `json:"sourceAmount"`
	SourceAccountID  uuid.UUID       `json:"sourceAccountId,omitempty"`
	TargetCurrencyID uuid.UUID       `json:"targetCurrencyId"`
	TargetAmount     decimal.Decimal `json:"targetAmount"`
	TargetAccountID  uuid.UUID       `json:"targetAccountId,omitempty"`
	ExchangeRate     decimal.Decimal `json:"exchangeRate"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	WageAmount       decimal.Decimal `json:"wageAmount"`
	SoldGoldItemID   uuid.UUID       `json:"soldGoldItemId,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Date             time.Time       `json:"date"`
}

type transactionResponse struct {
	ID               uuid.UUID       `json:"id"`
	SequenceNumber   int64           `json:"sequenceNumber"`
	Kind             string          `json:"kind"`
	CustomerID       *uuid.UUID      `json:"customerId,omitempty"`
	SourceCurrencyID uuid.UUID       `json:"sourceCurrencyId"`
	SourceAmount     decimal.Decimal `json:"sourceAmount"`
	SourceAccountID  *uuid.UUID      `json:"sourceAccountId,omitempty"`
	TargetCurrencyID uuid.UUID       `json:"targetCurrencyId"`
	TargetAmount     decimal.Decimal `json:"targetAmount"`
	TargetAccountID  *uuid.UUID      `json:"targetAccountId,omitempty"`
	ExchangeRate     decimal.Decimal `json:"exchangeRate"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	WageAmount       decimal.Decimal `json:"wageAmount"`
	SoldGoldItemID   *uuid.UUID      `json:"soldGoldItemId,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Date             time.Time       `json:"date"`
	CreatedBy        *uuid.UUID      `json:"createdBy,omitempty"`
	LastModifiedBy   *uuid.UUID      `json:"lastModifiedBy,omitempty"`
	LastModifiedDate time.Time       `json:"lastModifiedDate"`
}

type warningDTO struct {
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	AccountID *uuid.UUID `json:"accountId,omitempty"`
}

// mutationResponse wraps a result with any non-fatal warnings raised while
// applying it.
type mutationResponse struct {
	Data     any          `json:"data"`
	Warnings []warningDTO `json:"warnings,omitempty"`
}

type ledgerEntryRequest struct {
	CustomerID       uuid.UUID       `json:"customerId"`
	CurrencyID       uuid.UUID       `json:"currencyId"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description,omitempty"`
	ManagedAccountID uuid.UUID       `json:"managedAccountId,omitempty"`
	Date             time.Time       `json:"date"`
}

type ledgerEntryResponse struct {
	ID                uuid.UUID       `json:"id"`
	CustomerID        uuid.UUID       `json:"customerId"`
	CurrencyID        uuid.UUID       `json:"currencyId"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description,omitempty"`
	TransactionID     *uuid.UUID      `json:"transactionId,omitempty"`
	ManagedAccountID  *uuid.UUID      `json:"managedAccountId,omitempty"`
	SettlementGroupID *uuid.UUID      `json:"settlementGroupId,omitempty"`
	SystemManaged     bool            `json:"systemManaged"`
	Date              time.Time       `json:"date"`
}

type settlementRequest struct {
	FromCustomerID uuid.UUID       `json:"fromCustomerId"`
	ToCustomerID   uuid.UUID       `json:"toCustomerId"`
	CurrencyID     uuid.UUID       `json:"currencyId"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
}

type expenseRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	ManagedAccountID uuid.UUID       `json:"managedAccountId"`
	Category         string          `json:"category,omitempty"`
	Description      string          `json:"description,omitempty"`
	Date             time.Time       `json:"date"`
}

type expenseResponse struct {
	ID               uuid.UUID       `json:"id"`
	Amount           decimal.Decimal `json:"amount"`
	ManagedAccountID uuid.UUID       `json:"managedAccountId"`
	CurrencyID       uuid.UUID       `json:"currencyId"`
	Category         string          `json:"category,omitempty"`
	Description      string          `json:"description,omitempty"`
	Date             time.Time       `json:"date"`
}

type adjustmentRequest struct {
	AccountID  uuid.UUID       `json:"accountId"`
	NewBalance decimal.Decimal `json:"newBalance"`
	Reason     string          `json:"reason"`
}

type adjustmentResponse struct {
	ID               uuid.UUID       `json:"id"`
	AccountID        uuid.UUID       `json:"accountId"`
	PreviousBalance  decimal.Decimal `json:"previousBalance"`
	NewBalance       decimal.Decimal `json:"newBalance"`
	AdjustmentAmount decimal.Decimal `json:"adjustmentAmount"`
	Reason           string          `json:"reason"`
	Timestamp        time.Time       `json:"timestamp"`
}

type currencyRequest struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol,omitempty"`
	Kind   string `json:"kind"`
}

type currencyResponse struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Name   string    `json:"name"`
	Symbol string    `json:"symbol,omitempty"`
	Kind   string    `json:"kind"`
}

type accountRequest struct {
	Name          string        `json:"name"`
	CurrencyID    uuid.UUID     `json:"currencyId"`
	AccountNumber string        `json:"accountNumber,omitempty"`
	Description   string        `json:"description,omitempty"`
	IsCashAccount bool          `json:"isCashAccount,omitempty"`
	Metadata      meta.Metadata `json:"metadata,omitempty"`
}

type accountResponse struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	CurrencyID    uuid.UUID       `json:"currencyId"`
	Balance       decimal.Decimal `json:"balance"`
	AccountNumber string          `json:"accountNumber,omitempty"`
	Description   string          `json:"description,omitempty"`
	IsCashAccount bool            `json:"isCashAccount"`
	Metadata      meta.Metadata   `json:"metadata,omitempty"`
}

type customerRequest struct {
	Name        string        `json:"name"`
	PhoneNumber string        `json:"phoneNumber,omitempty"`
	NationalID  string        `json:"nationalId,omitempty"`
	ReferrerID  uuid.UUID     `json:"referrerId,omitempty"`
	IsFavorite  bool          `json:"isFavorite,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Metadata    meta.Metadata `json:"metadata,omitempty"`
}

type customerResponse struct {
	ID             uuid.UUID     `json:"id"`
	Name           string        `json:"name"`
	PhoneNumber    string        `json:"phoneNumber,omitempty"`
	NationalID     string        `json:"nationalId,omitempty"`
	MembershipDate time.Time     `json:"membershipDate"`
	ReferrerID     *uuid.UUID    `json:"referrerId,omitempty"`
	IsFavorite     bool          `json:"isFavorite"`
	Notes          string        `json:"notes,omitempty"`
	Metadata       meta.Metadata `json:"metadata,omitempty"`
}

type goldItemRequest struct {
	Code               string          `json:"code,omitempty"`
	Name               string          `json:"name"`
	Weight             decimal.Decimal `json:"weight"`
	Description        string          `json:"description,omitempty"`
	CostPrice          decimal.Decimal `json:"costPrice"`
	PurchaseWageAmount decimal.Decimal `json:"purchaseWageAmount"`
}

type goldItemResponse struct {
	ID                 uuid.UUID       `json:"id"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	Weight             decimal.Decimal `json:"weight"`
	Description        string          `json:"description,omitempty"`
	CostPrice          decimal.Decimal `json:"costPrice"`
	PurchaseWageAmount decimal.Decimal `json:"purchaseWageAmount"`
	Status             string          `json:"status"`
	SoldTransactionID  *uuid.UUID      `json:"soldTransactionId,omitempty"`
	SoldAt             *time.Time      `json:"soldAt,omitempty"`
	// ProfitOnSale is populated on single-item reads once the item is sold.
	ProfitOnSale *decimal.Decimal `json:"profitOnSale,omitempty"`
}

type goldSaleRequest struct {
	CustomerID       uuid.UUID       `json:"customerId"`
	CurrencyID       uuid.UUID       `json:"currencyId"`
	Amount           decimal.Decimal `json:"amount"`
	WageAmount       decimal.Decimal `json:"wageAmount"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	Notes            string          `json:"notes,omitempty"`
	Date             time.Time       `json:"date"`
}

type tierDTO struct {
	Name            string          `json:"name"`
	MinVolume       decimal.Decimal `json:"minVolume"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

type tierStatusResponse struct {
	Tier   tierDTO         `json:"tier"`
	Volume decimal.Decimal `json:"volume"`
}

type feeQuoteResponse struct {
	Tier       tierDTO         `json:"tier"`
	Volume     decimal.Decimal `json:"volume"`
	Commission decimal.Decimal `json:"commission"`
	Wage       decimal.Decimal `json:"wage"`
}

type auditEntryResponse struct {
	ID        uuid.UUID  `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	Action    string     `json:"action"`
	Entity    string     `json:"entity"`
	Details   string     `json:"details,omitempty"`
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toTransactionResponse(t exchange.Transaction) transactionResponse {
	return transactionResponse{
		ID:               t.ID,
		SequenceNumber:   t.SequenceNumber,
		Kind:             string(t.Kind),
		CustomerID:       optionalID(t.CustomerID),
		SourceCurrencyID: t.SourceCurrencyID,
		SourceAmount:     t.SourceAmount,
		SourceAccountID:  optionalID(t.SourceAccountID),
		TargetCurrencyID: t.TargetCurrencyID,
		TargetAmount:     t.TargetAmount,
		TargetAccountID:  optionalID(t.TargetAccountID),
		ExchangeRate:     t.ExchangeRate,
		CommissionAmount: t.CommissionAmount,
		WageAmount:       t.WageAmount,
		SoldGoldItemID:   optionalID(t.SoldOrnamentalGoldID),
		Notes:            t.Notes,
		Date:             t.Date,
		CreatedBy:        optionalID(t.CreatedBy),
		LastModifiedBy:   optionalID(t.LastModifiedBy),
		LastModifiedDate: t.LastModifiedDate,
	}
}

func toLedgerEntryResponse(e exchange.CustomerLedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:                e.ID,
		CustomerID:        e.CustomerID,
		CurrencyID:        e.CurrencyID,
		Amount:            e.Amount,
		Description:       e.Description,
		TransactionID:     optionalID(e.TransactionID),
		ManagedAccountID:  optionalID(e.ManagedAccountID),
		SettlementGroupID: optionalID(e.SettlementGroupID),
		SystemManaged:     e.SystemManaged(),
		Date:              e.Date,
	}
}

func toExpenseResponse(e exchange.PersonalExpense) expenseResponse {
	return expenseResponse{
		ID:               e.ID,
		Amount:           e.Amount,
		ManagedAccountID: e.ManagedAccountID,
		CurrencyID:       e.CurrencyID,
		Category:         e.Category,
		Description:      e.Description,
		Date:             e.Date,
	}
}

func toAdjustmentResponse(a exchange.AccountAdjustment) adjustmentResponse {
	return adjustmentResponse{
		ID:               a.ID,
		AccountID:        a.AccountID,
		PreviousBalance:  a.PreviousBalance,
		NewBalance:       a.NewBalance,
		AdjustmentAmount: a.AdjustmentAmount,
		Reason:           a.Reason,
		Timestamp:        a.Timestamp,
	}
}

func toCurrencyResponse(c exchange.Currency) currencyResponse {
	return currencyResponse{ID: c.ID, Code: c.Code, Name: c.Name, Symbol: c.Symbol, Kind: string(c.Kind)}
}

func toAccountResponse(a exchange.ManagedAccount) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Name:          a.Name,
		CurrencyID:    a.CurrencyID,
		Balance:       a.Balance,
		AccountNumber: a.AccountNumber,
		Description:   a.Description,
		IsCashAccount: a.IsCashAccount,
		Metadata:      a.Metadata,
	}
}

func toCustomerResponse(c exchange.Customer) customerResponse {
	return customerResponse{
		ID:             c.ID,
		Name:           c.Name,
		PhoneNumber:    c.PhoneNumber,
		NationalID:     c.NationalID,
		MembershipDate: c.MembershipDate,
		ReferrerID:     optionalID(c.ReferrerID),
		IsFavorite:     c.IsFavorite,
		Notes:          c.Notes,
		Metadata:       c.Metadata,
	}
}

func toGoldItemResponse(g exchange.OrnamentalGoldItem) goldItemResponse {
	return goldItemResponse{
		ID:                 g.ID,
		Code:               g.Code,
		Name:               g.Name,
		Weight:             g.Weight,
		Description:        g.Description,
		CostPrice:          g.CostPrice,
		PurchaseWageAmount: g.PurchaseWageAmount,
		Status:             string(g.Status),
		SoldTransactionID:  optionalID(g.SoldTransactionID),
		SoldAt:             optionalTime(g.SoldAt),
	}
}

func toTierDTO(t exchange.Tier) tierDTO {
	return tierDTO{Name: t.Name, MinVolume: t.MinVolume, DiscountPercent: t.DiscountPercent}
}

func toWarningDTOs(warnings []exchange.Warning) []warningDTO {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]warningDTO, len(warnings))
	for i, w := range warnings {
		out[i] = warningDTO{Code: w.Code, Message: w.Message, AccountID: optionalID(w.AccountID)}
	}
	return out
}

func toAuditEntryResponse(e exchange.AuditLogEntry) auditEntryResponse {
	return auditEntryResponse{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		UserID:    optionalID(e.UserID),
		Action:    string(e.Action),
		Entity:    string(e.Entity),
		Details:   e.Details,
	}
}
