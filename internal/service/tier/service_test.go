package tier

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

func setup(t *testing.T) (*memory.Store, Service, exchange.Currency, exchange.Currency, uuid.UUID) {
	t.Helper()
	store := memory.New()
	irt := exchange.Currency{ID: uuid.New(), Code: "IRT", Name: "Toman", Kind: exchange.CurrencyKindFiat}
	usd := exchange.Currency{ID: uuid.New(), Code: "USD", Name: "US Dollar", Kind: exchange.CurrencyKindFiat}
	store.SeedCurrency(irt)
	store.SeedCurrency(usd)
	customer := exchange.Customer{ID: uuid.New(), Name: "Dariush", MembershipDate: time.Now().UTC()}
	store.SeedCustomer(customer)
	return store, New(store, store, "IRT", &sync.Mutex{}), irt, usd, customer.ID
}

func seedTrade(store *memory.Store, customerID uuid.UUID, source, target exchange.Currency, sourceAmount, targetAmount, rate int64) {
	store.PutTransaction(context.Background(), exchange.Transaction{
		ID:               uuid.New(),
		Kind:             exchange.KindCustomerTrade,
		CustomerID:       customerID,
		SourceCurrencyID: source.ID,
		SourceAmount:     decimal.NewFromInt(sourceAmount),
		TargetCurrencyID: target.ID,
		TargetAmount:     decimal.NewFromInt(targetAmount),
		ExchangeRate:     decimal.NewFromInt(rate),
		Date:             time.Now().UTC(),
	})
}

func TestVolumeFor_ReferenceSideCounts(t *testing.T) {
	store, svc, irt, usd, customerID := setup(t)
	ctx := context.Background()

	// Target side in reference currency: counts the target amount.
	seedTrade(store, customerID, usd, irt, 100, 10_000_000, 100_000)
	// Source side in reference currency: counts the source amount.
	seedTrade(store, customerID, irt, usd, 5_000_000, 50, 0)

	volume, err := svc.VolumeFor(ctx, customerID)
	if err != nil {
		t.Fatalf("VolumeFor: %v", err)
	}
	if !volume.Equal(decimal.NewFromInt(15_000_000)) {
		t.Fatalf("volume = %s, want 15000000", volume)
	}
}

func TestVolumeFor_ConvertsThroughTradeRate(t *testing.T) {
	store, svc, _, usd, customerID := setup(t)
	ctx := context.Background()

	eur := exchange.Currency{ID: uuid.New(), Code: "EUR", Name: "Euro", Kind: exchange.CurrencyKindFiat}
	store.SeedCurrency(eur)

	// Neither side is the reference currency: source x rate.
	seedTrade(store, customerID, usd, eur, 200, 180, 60_000)

	volume, err := svc.VolumeFor(ctx, customerID)
	if err != nil {
		t.Fatalf("VolumeFor: %v", err)
	}
	if !volume.Equal(decimal.NewFromInt(12_000_000)) {
		t.Fatalf("volume = %s, want 12000000", volume)
	}
}

func TestTierFor_FollowsThresholds(t *testing.T) {
	store, svc, irt, usd, customerID := setup(t)
	ctx := context.Background()

	tr, volume, err := svc.TierFor(ctx, customerID)
	if err != nil {
		t.Fatalf("TierFor: %v", err)
	}
	if tr.Name != "bronze" || !volume.IsZero() {
		t.Fatalf("fresh customer: tier=%s volume=%s", tr.Name, volume)
	}

	// 600M toman of trades pushes into silver.
	seedTrade(store, customerID, usd, irt, 6_000, 600_000_000, 100_000)
	tr, _, err = svc.TierFor(ctx, customerID)
	if err != nil {
		t.Fatalf("TierFor: %v", err)
	}
	if tr.Name != "silver" {
		t.Fatalf("tier = %s, want silver", tr.Name)
	}
}

func TestQuoteFee_AppliesDiscount(t *testing.T) {
	store, svc, irt, usd, customerID := setup(t)
	ctx := context.Background()

	seedTrade(store, customerID, usd, irt, 6_000, 600_000_000, 100_000)

	quote, err := svc.QuoteFee(ctx, customerID, decimal.NewFromInt(1_000_000), decimal.NewFromInt(200_000))
	if err != nil {
		t.Fatalf("QuoteFee: %v", err)
	}
	if quote.Tier.Name != "silver" {
		t.Fatalf("tier = %s, want silver", quote.Tier.Name)
	}
	if !quote.Commission.Equal(decimal.NewFromInt(950_000)) {
		t.Fatalf("commission = %s, want 950000", quote.Commission)
	}
	if !quote.Wage.Equal(decimal.NewFromInt(190_000)) {
		t.Fatalf("wage = %s, want 190000", quote.Wage)
	}
}

func TestUpdateTable_Validates(t *testing.T) {
	_, svc, _, _, _ := setup(t)
	ctx := context.Background()
	actor := uuid.New()

	bad := exchange.TierTable{
		{Name: "base", MinVolume: decimal.NewFromInt(10), DiscountPercent: decimal.Zero},
	}
	if _, err := svc.UpdateTable(ctx, bad, actor); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for non-zero base, got %v", err)
	}

	good := exchange.TierTable{
		{Name: "base", MinVolume: decimal.Zero, DiscountPercent: decimal.Zero},
		{Name: "plus", MinVolume: decimal.NewFromInt(1_000_000), DiscountPercent: decimal.NewFromInt(15)},
	}
	updated, err := svc.UpdateTable(ctx, good, actor)
	if err != nil {
		t.Fatalf("UpdateTable: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("table size = %d", len(updated))
	}

	table, err := svc.Table(ctx)
	if err != nil || len(table) != 2 || table[1].Name != "plus" {
		t.Fatalf("table not stored: %v %+v", err, table)
	}
}
