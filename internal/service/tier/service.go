// Package tier derives customer loyalty tiers from trade history. Tiers are
// never stored: every read recomputes the trading volume so edits and deletes
// of past transactions move customers between brackets immediately.
package tier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/errs"
	"github.com/prrrssa/sarsabz/internal/exchange"
)

type Repo interface {
	CurrencyByCode(ctx context.Context, code string) (exchange.Currency, error)
	TransactionsByCustomer(ctx context.Context, customerID uuid.UUID) ([]exchange.Transaction, error)
	TierTable(ctx context.Context) (exchange.TierTable, error)
}

type Writer interface {
	SetTierTable(ctx context.Context, t exchange.TierTable) error
	AppendAudit(ctx context.Context, e exchange.AuditLogEntry) error
	Persist(ctx context.Context) error
}

// Quote is a fee quote with the customer's tier discount applied.
type Quote struct {
	Tier       exchange.Tier
	Volume     decimal.Decimal
	Commission decimal.Decimal
	Wage       decimal.Decimal
}

type Service interface {
	VolumeFor(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)
	TierFor(ctx context.Context, customerID uuid.UUID) (exchange.Tier, decimal.Decimal, error)
	QuoteFee(ctx context.Context, customerID uuid.UUID, commission, wage decimal.Decimal) (Quote, error)
	Table(ctx context.Context) (exchange.TierTable, error)
	UpdateTable(ctx context.Context, t exchange.TierTable, actor uuid.UUID) (exchange.TierTable, error)
}

type service struct {
	// mu is the mutation lock shared with the ledger engine and registry.
	mu            *sync.Mutex
	repo          Repo
	writer        Writer
	referenceCode string
}

// New constructs the tier service. Volumes are expressed in the currency
// named by referenceCode. mu is the process-wide mutation lock.
func New(repo Repo, writer Writer, referenceCode string, mu *sync.Mutex) Service {
	return &service{mu: mu, repo: repo, writer: writer, referenceCode: exchange.NormalizeCode(referenceCode)}
}

// VolumeFor sums the customer's trades in the reference currency. A trade
// whose source or target side already is the reference currency contributes
// that side's amount; otherwise the source amount is converted through the
// trade's own exchange rate.
func (s *service) VolumeFor(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	if customerID == uuid.Nil {
		return decimal.Zero, errs.ErrInvalid
	}
	ref, err := s.repo.CurrencyByCode(ctx, s.referenceCode)
	if err != nil {
		return decimal.Zero, err
	}
	txs, err := s.repo.TransactionsByCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	volume := decimal.Zero
	for _, tx := range txs {
		if tx.Kind != exchange.KindCustomerTrade {
			continue
		}
		switch ref.ID {
		case tx.SourceCurrencyID:
			volume = volume.Add(tx.SourceAmount)
		case tx.TargetCurrencyID:
			volume = volume.Add(tx.TargetAmount)
		default:
			volume = volume.Add(tx.SourceAmount.Mul(tx.ExchangeRate))
		}
	}
	return volume, nil
}

func (s *service) TierFor(ctx context.Context, customerID uuid.UUID) (exchange.Tier, decimal.Decimal, error) {
	volume, err := s.VolumeFor(ctx, customerID)
	if err != nil {
		return exchange.Tier{}, decimal.Zero, err
	}
	table, err := s.repo.TierTable(ctx)
	if err != nil {
		return exchange.Tier{}, decimal.Zero, err
	}
	return table.For(volume), volume, nil
}

// QuoteFee applies the customer's tier discount to commission and wage.
func (s *service) QuoteFee(ctx context.Context, customerID uuid.UUID, commission, wage decimal.Decimal) (Quote, error) {
	t, volume, err := s.TierFor(ctx, customerID)
	if err != nil {
		return Quote{}, err
	}
	factor := decimal.NewFromInt(100).Sub(t.DiscountPercent).Div(decimal.NewFromInt(100))
	return Quote{
		Tier:       t,
		Volume:     volume,
		Commission: commission.Mul(factor),
		Wage:       wage.Mul(factor),
	}, nil
}

func (s *service) Table(ctx context.Context) (exchange.TierTable, error) {
	return s.repo.TierTable(ctx)
}

func (s *service) UpdateTable(ctx context.Context, t exchange.TierTable, actor uuid.UUID) (exchange.TierTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.writer.SetTierTable(ctx, t); err != nil {
		return nil, err
	}
	if err := s.writer.AppendAudit(ctx, exchange.AuditLogEntry{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		UserID:    actor,
		Action:    exchange.AuditActionUpdate,
		Entity:    exchange.AuditEntityTierConfig,
		Details:   "tier thresholds updated",
	}); err != nil {
		return t, err
	}
	return t, s.writer.Persist(ctx)
}
