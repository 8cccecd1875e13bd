// Package effect computes the signed balance deltas an event implies, and the
// inverse deltas needed to undo it. Calculators are pure given resolved
// accounts: the same event always yields the same effects, which is what makes
// the engine's revert-then-reapply compensation sound.
package effect

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/errs"
	"github.com/prrrssa/sarsabz/internal/exchange"
)

// Effect is one signed delta against one account.
type Effect struct {
	AccountID uuid.UUID
	Delta     decimal.Decimal
}

// Resolver provides the account lookups needed to turn an event into effects.
type Resolver interface {
	AccountByID(ctx context.Context, id uuid.UUID) (exchange.ManagedAccount, error)
	CashAccountForCurrency(ctx context.Context, currencyID uuid.UUID) (exchange.ManagedAccount, error)
}

// Calculator maps domain events to account effects.
type Calculator struct {
	resolver Resolver
}

// New constructs a Calculator over the given resolver.
func New(r Resolver) *Calculator { return &Calculator{resolver: r} }

// ForTransaction computes the effects of applying tx.
//
// Customer trade: the source-currency cash account is credited by the source
// amount (the customer hands value in) and the target-currency cash account is
// debited by the target amount (value goes out). When the trade sells an
// ornamental gold item only the source side is touched; the target side is
// inventory, not cash.
//
// Internal transfer: the source account is debited and the target account
// credited by the stated amounts. The amounts may be in different currencies;
// they are taken as given.
func (c *Calculator) ForTransaction(ctx context.Context, tx exchange.Transaction) ([]Effect, error) {
	switch tx.Kind {
	case exchange.KindCustomerTrade:
		source, err := c.cash(ctx, tx.SourceCurrencyID)
		if err != nil {
			return nil, err
		}
		if tx.IsGoldSale() {
			return []Effect{{AccountID: source.ID, Delta: tx.SourceAmount}}, nil
		}
		target, err := c.cash(ctx, tx.TargetCurrencyID)
		if err != nil {
			return nil, err
		}
		return []Effect{
			{AccountID: source.ID, Delta: tx.SourceAmount},
			{AccountID: target.ID, Delta: tx.TargetAmount.Neg()},
		}, nil
	case exchange.KindInternalTransfer:
		source, err := c.account(ctx, tx.SourceAccountID)
		if err != nil {
			return nil, err
		}
		target, err := c.account(ctx, tx.TargetAccountID)
		if err != nil {
			return nil, err
		}
		return []Effect{
			{AccountID: source.ID, Delta: tx.SourceAmount.Neg()},
			{AccountID: target.ID, Delta: tx.TargetAmount},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown transaction kind %q", errs.ErrInvalid, tx.Kind)
	}
}

// ForLedgerEntry computes the single effect of a customer ledger entry. The
// entry moves its signed amount on the named managed account, or on the cash
// account of its currency when no account is named.
func (c *Calculator) ForLedgerEntry(ctx context.Context, e exchange.CustomerLedgerEntry) ([]Effect, error) {
	var (
		acc exchange.ManagedAccount
		err error
	)
	if e.ManagedAccountID != uuid.Nil {
		acc, err = c.account(ctx, e.ManagedAccountID)
	} else {
		acc, err = c.cash(ctx, e.CurrencyID)
	}
	if err != nil {
		return nil, err
	}
	return []Effect{{AccountID: acc.ID, Delta: e.Amount}}, nil
}

// ForExpense computes the single debit of a personal expense.
func (c *Calculator) ForExpense(ctx context.Context, e exchange.PersonalExpense) ([]Effect, error) {
	acc, err := c.account(ctx, e.ManagedAccountID)
	if err != nil {
		return nil, err
	}
	return []Effect{{AccountID: acc.ID, Delta: e.Amount.Neg()}}, nil
}

// ForAdjustment computes the delta of a manual balance correction.
func ForAdjustment(a exchange.AccountAdjustment) []Effect {
	return []Effect{{AccountID: a.AccountID, Delta: a.AdjustmentAmount}}
}

// Invert negates every delta, producing the effects that undo effs.
func Invert(effs []Effect) []Effect {
	out := make([]Effect, len(effs))
	for i, e := range effs {
		out[i] = Effect{AccountID: e.AccountID, Delta: e.Delta.Neg()}
	}
	return out
}

func (c *Calculator) account(ctx context.Context, id uuid.UUID) (exchange.ManagedAccount, error) {
	acc, err := c.resolver.AccountByID(ctx, id)
	if err != nil {
		return exchange.ManagedAccount{}, fmt.Errorf("%w: account %s", errs.ErrMissingAccount, id)
	}
	return acc, nil
}

func (c *Calculator) cash(ctx context.Context, currencyID uuid.UUID) (exchange.ManagedAccount, error) {
	acc, err := c.resolver.CashAccountForCurrency(ctx, currencyID)
	if err != nil {
		return exchange.ManagedAccount{}, fmt.Errorf("%w: no cash account for currency %s", errs.ErrMissingAccount, currencyID)
	}
	return acc, nil
}
