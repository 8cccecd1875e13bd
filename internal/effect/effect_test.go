package effect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/errs"
	"github.com/prrrssa/sarsabz/internal/exchange"
	"github.com/prrrssa/sarsabz/internal/storage/memory"
)

func seedResolver(t *testing.T) (*memory.Store, exchange.Currency, exchange.Currency, exchange.ManagedAccount, exchange.ManagedAccount) {
	t.Helper()
	store := memory.New()
	irt := exchange.Currency{ID: uuid.New(), Code: "IRT", Name: "Toman", Kind: exchange.CurrencyKindFiat}
	usd := exchange.Currency{ID: uuid.New(), Code: "USD", Name: "US Dollar", Kind: exchange.CurrencyKindFiat}
	store.SeedCurrency(irt)
	store.SeedCurrency(usd)
	irtCash := exchange.ManagedAccount{ID: uuid.New(), Name: "Toman Cash", CurrencyID: irt.ID, IsCashAccount: true}
	usdCash := exchange.ManagedAccount{ID: uuid.New(), Name: "Dollar Cash", CurrencyID: usd.ID, IsCashAccount: true}
	store.SeedAccount(irtCash)
	store.SeedAccount(usdCash)
	return store, irt, usd, irtCash, usdCash
}

func TestForTransaction_CustomerTrade(t *testing.T) {
	store, irt, usd, irtCash, usdCash := seedResolver(t)
	calc := New(store)

	tx, err := exchange.NewCustomerTrade(uuid.New(), usd.ID, decimal.NewFromInt(100),
		irt.ID, decimal.NewFromInt(10_000_000), decimal.NewFromInt(100_000), time.Now().UTC())
	if err != nil {
		t.Fatalf("build trade: %v", err)
	}

	effs, err := calc.ForTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("ForTransaction: %v", err)
	}
	if len(effs) != 2 {
		t.Fatalf("expected 2 effects, got %d", len(effs))
	}
	if effs[0].AccountID != usdCash.ID || !effs[0].Delta.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected source effect: %+v", effs[0])
	}
	if effs[1].AccountID != irtCash.ID || !effs[1].Delta.Equal(decimal.NewFromInt(-10_000_000)) {
		t.Fatalf("unexpected target effect: %+v", effs[1])
	}
}

func TestForTransaction_GoldSaleTouchesOnlySourceCash(t *testing.T) {
	store, irt, _, irtCash, _ := seedResolver(t)
	calc := New(store)

	tx := exchange.Transaction{
		ID:                   uuid.New(),
		Kind:                 exchange.KindCustomerTrade,
		CustomerID:           uuid.New(),
		SourceCurrencyID:     irt.ID,
		SourceAmount:         decimal.NewFromInt(50_000_000),
		TargetCurrencyID:     irt.ID,
		SoldOrnamentalGoldID: uuid.New(),
	}
	effs, err := calc.ForTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("ForTransaction: %v", err)
	}
	if len(effs) != 1 {
		t.Fatalf("expected 1 effect for gold sale, got %d", len(effs))
	}
	if effs[0].AccountID != irtCash.ID || !effs[0].Delta.Equal(decimal.NewFromInt(50_000_000)) {
		t.Fatalf("unexpected effect: %+v", effs[0])
	}
}

func TestForTransaction_InternalTransfer(t *testing.T) {
	store, _, _, irtCash, usdCash := seedResolver(t)
	calc := New(store)

	tx, err := exchange.NewInternalTransfer(irtCash.ID, irtCash.CurrencyID, decimal.NewFromInt(500),
		usdCash.ID, usdCash.CurrencyID, decimal.NewFromInt(500), time.Now().UTC())
	if err != nil {
		t.Fatalf("build transfer: %v", err)
	}
	effs, err := calc.ForTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("ForTransaction: %v", err)
	}
	if !effs[0].Delta.Equal(decimal.NewFromInt(-500)) || !effs[1].Delta.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected deltas: %+v", effs)
	}
}

func TestForTransaction_MissingCashAccount(t *testing.T) {
	store := memory.New()
	gold := exchange.Currency{ID: uuid.New(), Code: "GOLD18K", Name: "Gold 18k", Kind: exchange.CurrencyKindCommodity}
	store.SeedCurrency(gold)
	calc := New(store)

	tx := exchange.Transaction{
		Kind:             exchange.KindCustomerTrade,
		CustomerID:       uuid.New(),
		SourceCurrencyID: gold.ID,
		SourceAmount:     decimal.NewFromInt(10),
		TargetCurrencyID: gold.ID,
		TargetAmount:     decimal.NewFromInt(10),
	}
	if _, err := calc.ForTransaction(context.Background(), tx); !errors.Is(err, errs.ErrMissingAccount) {
		t.Fatalf("expected ErrMissingAccount, got %v", err)
	}
}

func TestForLedgerEntry_FallsBackToCash(t *testing.T) {
	store, irt, _, irtCash, usdCash := seedResolver(t)
	calc := New(store)

	e := exchange.CustomerLedgerEntry{CustomerID: uuid.New(), CurrencyID: irt.ID, Amount: decimal.NewFromInt(-2_000_000)}
	effs, err := calc.ForLedgerEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("ForLedgerEntry: %v", err)
	}
	if effs[0].AccountID != irtCash.ID {
		t.Fatalf("expected cash account fallback, got %s", effs[0].AccountID)
	}

	e.ManagedAccountID = usdCash.ID
	effs, err = calc.ForLedgerEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("ForLedgerEntry: %v", err)
	}
	if effs[0].AccountID != usdCash.ID {
		t.Fatalf("expected named account, got %s", effs[0].AccountID)
	}
}

func TestForExpense_Debits(t *testing.T) {
	store, _, _, irtCash, _ := seedResolver(t)
	calc := New(store)

	e := exchange.PersonalExpense{ManagedAccountID: irtCash.ID, Amount: decimal.NewFromInt(300)}
	effs, err := calc.ForExpense(context.Background(), e)
	if err != nil {
		t.Fatalf("ForExpense: %v", err)
	}
	if !effs[0].Delta.Equal(decimal.NewFromInt(-300)) {
		t.Fatalf("expected debit of 300, got %s", effs[0].Delta)
	}
}

func TestInvert_RoundTrips(t *testing.T) {
	effs := []Effect{
		{AccountID: uuid.New(), Delta: decimal.NewFromInt(10)},
		{AccountID: uuid.New(), Delta: decimal.NewFromInt(-7)},
	}
	back := Invert(Invert(effs))
	for i := range effs {
		if !back[i].Delta.Equal(effs[i].Delta) {
			t.Fatalf("double inversion changed delta %d: %s", i, back[i].Delta)
		}
	}
}
