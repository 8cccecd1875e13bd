package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/errs"
	"github.com/prrrssa/sarsabz/internal/exchange"
	"github.com/prrrssa/sarsabz/internal/storage/memory"
)

func setup(t *testing.T) (*memory.Store, Service) {
	t.Helper()
	store := memory.New()
	return store, New(store, store, "IRT", &sync.Mutex{})
}

func TestCreateCurrency_AutoCreatesCashAccount(t *testing.T) {
	store, svc := setup(t)
	ctx := context.Background()

	c, err := svc.CreateCurrency(ctx, exchange.Currency{Code: "usd", Name: "US Dollar", Kind: exchange.CurrencyKindFiat}, uuid.New())
	if err != nil {
		t.Fatalf("CreateCurrency: %v", err)
	}
	if c.Code != "USD" {
		t.Fatalf("code not normalized: %q", c.Code)
	}
	cash, err := store.CashAccountForCurrency(ctx, c.ID)
	if err != nil {
		t.Fatalf("no cash account created: %v", err)
	}
	if !cash.Balance.IsZero() || !cash.IsCashAccount {
		t.Fatalf("unexpected cash account: %+v", cash)
	}

	// Duplicate codes conflict, case-insensitively.
	if _, err := svc.CreateCurrency(ctx, exchange.Currency{Code: "USD", Name: "Dollar Again", Kind: exchange.CurrencyKindFiat}, uuid.New()); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if _, err := svc.CreateCurrency(ctx, exchange.Currency{Code: "XAU", Name: "Bad Kind", Kind: "weird"}, uuid.New()); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown kind, got %v", err)
	}
}

func TestCurrency_ImmutableOnceReferenced(t *testing.T) {
	store, svc := setup(t)
	ctx := context.Background()
	actor := uuid.New()

	c, err := svc.CreateCurrency(ctx, exchange.Currency{Code: "USD", Name: "US Dollar", Kind: exchange.CurrencyKindFiat}, actor)
	if err != nil {
		t.Fatalf("CreateCurrency: %v", err)
	}
	store.PutTransaction(ctx, exchange.Transaction{
		ID:               uuid.New(),
		Kind:             exchange.KindCustomerTrade,
		SourceCurrencyID: c.ID,
		TargetCurrencyID: c.ID,
	})

	c.Code = "USX"
	if _, err := svc.UpdateCurrency(ctx, c, actor); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict for code change, got %v", err)
	}

	// Display fields stay editable.
	c.Code = "USD"
	c.Name = "United States Dollar"
	c.Symbol = "$"
	updated, err := svc.UpdateCurrency(ctx, c, actor)
	if err != nil {
		t.Fatalf("display-field update: %v", err)
	}
	if updated.Name != "United States Dollar" {
		t.Fatalf("name not updated: %q", updated.Name)
	}

	if err := svc.DeleteCurrency(ctx, c.ID, actor); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict deleting referenced currency, got %v", err)
	}
}

func TestUpdateCurrency_RenamesCashAccount(t *testing.T) {
	store, svc := setup(t)
	ctx := context.Background()
	actor := uuid.New()

	c, err := svc.CreateCurrency(ctx, exchange.Currency{Code: "USD", Name: "US Dollar", Kind: exchange.CurrencyKindFiat}, actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c.Name = "United States Dollar"
	if _, err := svc.UpdateCurrency(ctx, c, actor); err != nil {
		t.Fatalf("update: %v", err)
	}
	cash, err := store.CashAccountForCurrency(ctx, c.ID)
	if err != nil {
		t.Fatalf("cash account: %v", err)
	}
	if cash.Name != "United States Dollar Cash" {
		t.Fatalf("cash account name = %q, want %q", cash.Name, "United States Dollar Cash")
	}
}

func TestDeleteCurrency_Guards(t *testing.T) {
	store, svc := setup(t)
	ctx := context.Background()
	actor := uuid.New()

	ref, err := svc.CreateCurrency(ctx, exchange.Currency{Code: "IRT", Name: "Toman", Kind: exchange.CurrencyKindFiat}, actor)
	if err != nil {
		t.Fatalf("create reference currency: %v", err)
	}
	if err := svc.DeleteCurrency(ctx, ref.ID, actor); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict deleting reference currency, got %v", err)
	}

	eur, err := svc.CreateCurrency(ctx, exchange.Currency{Code: "EUR", Name: "Euro", Kind: exchange.CurrencyKindFiat}, actor)
	if err != nil {
		t.Fatalf("create EUR: %v", err)
	}

	// A non-cash account holding the currency blocks deletion.
	side, err := svc.CreateAccount(ctx, exchange.ManagedAccount{Name: "Euro Safe", CurrencyID: eur.ID}, actor)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := svc.DeleteCurrency(ctx, eur.ID, actor); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict while account holds currency, got %v", err)
	}
	if err := svc.DeleteAccount(ctx, side.ID, actor); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	// A non-zero cash balance blocks deletion.
	cash, _ := store.CashAccountForCurrency(ctx, eur.ID)
	store.AddToBalance(ctx, cash.ID, decimal.NewFromInt(10))
	if err := svc.DeleteCurrency(ctx, eur.ID, actor); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict for non-zero cash balance, got %v", err)
	}
	store.AddToBalance(ctx, cash.ID, decimal.NewFromInt(-10))

	if err := svc.DeleteCurrency(ctx, eur.ID, actor); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.CashAccountForCurrency(ctx, eur.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("cash account survived currency delete: %v", err)
	}
}

func TestAccounts_CashUniqueAndImmutable(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()
	actor := uuid.New()

	c, err := svc.CreateCurrency(ctx, exchange.Currency{Code: "USD", Name: "US Dollar", Kind: exchange.CurrencyKindFiat}, actor)
	if err != nil {
		t.Fatalf("create currency: %v", err)
	}

	// The auto-created cash account already exists.
	if _, err := svc.CreateAccount(ctx, exchange.ManagedAccount{Name: "Second Cash", CurrencyID: c.ID, IsCashAccount: true}, actor); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict for second cash account, got %v", err)
	}

	acc, err := svc.CreateAccount(ctx, exchange.ManagedAccount{Name: "Dollar Safe", CurrencyID: c.ID}, actor)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	flip := acc
	flip.IsCashAccount = true
	if _, err := svc.UpdateAccount(ctx, flip, actor); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict flipping cash flag, got %v", err)
	}

	// Balance edits through update are silently discarded.
	renamed := acc
	renamed.Name = "Main Dollar Safe"
	renamed.Balance = decimal.NewFromInt(999)
	updated, err := svc.UpdateAccount(ctx, renamed, actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Balance.IsZero() {
		t.Fatalf("balance changed through update: %s", updated.Balance)
	}
}

func TestCustomers_ReferralRules(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()
	actor := uuid.New()

	if _, err := svc.CreateCustomer(ctx, exchange.Customer{ReferrerID: uuid.New(), Name: "Orphan"}, actor); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown referrer, got %v", err)
	}

	a, err := svc.CreateCustomer(ctx, exchange.Customer{Name: "Arman"}, actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.MembershipDate.IsZero() {
		t.Fatal("membership date not defaulted")
	}

	b, err := svc.CreateCustomer(ctx, exchange.Customer{Name: "Bita", ReferrerID: a.ID}, actor)
	if err != nil {
		t.Fatalf("create with referrer: %v", err)
	}

	b.ReferrerID = b.ID
	if _, err := svc.UpdateCustomer(ctx, b, actor); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for self referral, got %v", err)
	}
}

func TestDeleteCustomer_RefusedWithHistory(t *testing.T) {
	store, svc := setup(t)
	ctx := context.Background()
	actor := uuid.New()

	c, err := svc.CreateCustomer(ctx, exchange.Customer{Name: "Dariush"}, actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	store.PutLedgerEntry(ctx, exchange.CustomerLedgerEntry{
		ID:         uuid.New(),
		CustomerID: c.ID,
		Amount:     decimal.NewFromInt(-100),
		Date:       time.Now().UTC(),
	})
	if err := svc.DeleteCustomer(ctx, c.ID, actor); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGoldItems_SlugAndSaleState(t *testing.T) {
	store, svc := setup(t)
	ctx := context.Background()
	actor := uuid.New()

	g, err := svc.CreateGoldItem(ctx, exchange.OrnamentalGoldItem{Name: "Persian Bracelet 18K", Weight: decimal.NewFromFloat(12.5)}, actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Code != "persian_bracelet_18k" {
		t.Fatalf("code not slugified: %q", g.Code)
	}
	if g.Status != exchange.ItemStatusAvailable {
		t.Fatalf("new item not available: %s", g.Status)
	}

	// Sale state cannot be smuggled in through update.
	hacked := g
	hacked.Status = exchange.ItemStatusSold
	hacked.SoldTransactionID = uuid.New()
	updated, err := svc.UpdateGoldItem(ctx, hacked, actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != exchange.ItemStatusAvailable || updated.SoldTransactionID != uuid.Nil {
		t.Fatalf("sale state leaked through update: %+v", updated)
	}

	// Sold items refuse deletion until the sale is gone.
	g.Status = exchange.ItemStatusSold
	g.SoldTransactionID = uuid.New()
	store.PutGoldItem(ctx, g)
	if err := svc.DeleteGoldItem(ctx, g.ID, actor); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict deleting sold item, got %v", err)
	}
}

func TestProfitOnSale_DerivedFromSaleTransaction(t *testing.T) {
	store, svc := setup(t)
	ctx := context.Background()
	actor := uuid.New()

	g, err := svc.CreateGoldItem(ctx, exchange.OrnamentalGoldItem{
		Name:               "Coin Pendant",
		Weight:             decimal.NewFromFloat(4.2),
		CostPrice:          decimal.NewFromInt(50_000_000),
		PurchaseWageAmount: decimal.NewFromInt(2_000_000),
	}, actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, sold, err := svc.ProfitOnSale(ctx, g.ID); err != nil || sold {
		t.Fatalf("unsold item: sold=%v err=%v", sold, err)
	}

	sale := exchange.Transaction{
		ID:                   uuid.New(),
		Kind:                 exchange.KindCustomerTrade,
		SourceAmount:         decimal.NewFromInt(60_000_000),
		SoldOrnamentalGoldID: g.ID,
	}
	store.PutTransaction(ctx, sale)
	g.Status = exchange.ItemStatusSold
	g.SoldTransactionID = sale.ID
	store.PutGoldItem(ctx, g)

	profit, sold, err := svc.ProfitOnSale(ctx, g.ID)
	if err != nil || !sold {
		t.Fatalf("ProfitOnSale: sold=%v err=%v", sold, err)
	}
	// 60M sale price less 50M cost and 2M purchase wage.
	if !profit.Equal(decimal.NewFromInt(8_000_000)) {
		t.Fatalf("profit = %s, want 8000000", profit)
	}
}
