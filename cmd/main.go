package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/exchange"
	"github.com/prrrssa/sarsabz/internal/httpapi"
	"github.com/prrrssa/sarsabz/internal/service/ledger"
	"github.com/prrrssa/sarsabz/internal/service/registry"
	"github.com/prrrssa/sarsabz/internal/service/tier"
	"github.com/prrrssa/sarsabz/internal/storage"
	"github.com/prrrssa/sarsabz/internal/storage/memory"
	pgstore "github.com/prrrssa/sarsabz/internal/storage/postgres"
	"github.com/prrrssa/sarsabz/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLoggerFromEnv()
	slog.SetDefault(logger)

	refCode := strings.TrimSpace(os.Getenv("REFERENCE_CURRENCY"))
	if refCode == "" {
		refCode = "IRT"
	}

	store := memory.New()
	var (
		closeFn func()
		ready   httpapi.ReadyFunc
	)

	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = func() { _ = pg.Close() }
		ready = pg.Ready
		if err := loadSnapshot(ctx, store, pg); err != nil {
			logger.Error("failed to load state from postgres", "err", err)
			os.Exit(1)
		}
		store.AttachPersister(pg)
		logger.Info("storage backend: postgres")
	} else if path := strings.TrimSpace(os.Getenv("SQLITE_PATH")); path != "" {
		sq, err := sqlite.New(path)
		if err != nil {
			logger.Error("failed to open sqlite database", "err", err, "path", path)
			os.Exit(1)
		}
		closeFn = func() { _ = sq.Close() }
		if err := loadSnapshot(ctx, store, sq); err != nil {
			logger.Error("failed to load state from sqlite", "err", err)
			os.Exit(1)
		}
		store.AttachPersister(sq)
		logger.Info("storage backend: sqlite", "path", path)
	} else {
		logger.Info("storage backend: memory")
	}

	if dev := strings.ToLower(strings.TrimSpace(os.Getenv("DEV_SEED"))); dev == "1" || dev == "true" || dev == "yes" {
		seedDev(store, refCode, logger)
	}

	// One mutation lock for every service writing through the store.
	var mu sync.Mutex
	engine := ledger.New(store, store, &mu)
	reg := registry.New(store, store, refCode, &mu)
	tiers := tier.New(store, store, refCode, &mu)
	api := httpapi.New(engine, reg, tiers, store, ready, logger)

	addr := strings.TrimSpace(os.Getenv("ADDR"))
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("exchange service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// loadSnapshot restores persisted state into the in-memory store. A backend
// that has never been written to leaves the store empty.
func loadSnapshot(ctx context.Context, store *memory.Store, p storage.Persister) error {
	snap, ok, err := p.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return store.Restore(ctx, snap)
}

// seedDev populates the reference currency, a dollar currency and a sample
// customer for local development. Cash accounts are seeded directly because
// the registry service is not constructed yet.
func seedDev(store *memory.Store, refCode string, l *slog.Logger) {
	irt := exchange.Currency{ID: uuid.New(), Code: exchange.NormalizeCode(refCode), Name: "Toman", Symbol: "T", Kind: exchange.CurrencyKindFiat}
	usd := exchange.Currency{ID: uuid.New(), Code: "USD", Name: "US Dollar", Symbol: "$", Kind: exchange.CurrencyKindFiat}
	store.SeedCurrency(irt)
	store.SeedCurrency(usd)

	irtCash := exchange.ManagedAccount{ID: uuid.New(), Name: irt.Name + " Cash", CurrencyID: irt.ID, Balance: decimal.NewFromInt(1_000_000_000), IsCashAccount: true}
	usdCash := exchange.ManagedAccount{ID: uuid.New(), Name: usd.Name + " Cash", CurrencyID: usd.ID, Balance: decimal.NewFromInt(10_000), IsCashAccount: true}
	store.SeedAccount(irtCash)
	store.SeedAccount(usdCash)

	customer := exchange.Customer{ID: uuid.New(), Name: "Sample Customer", MembershipDate: time.Now().UTC()}
	store.SeedCustomer(customer)

	l.Info("DEV seed",
		"reference_currency_id", irt.ID.String(),
		"usd_currency_id", usd.ID.String(),
		"customer_id", customer.ID.String(),
	)
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("%s_currency_id: %s\n", strings.ToLower(irt.Code), irt.ID.String())
	fmt.Printf("usd_currency_id: %s\n", usd.ID.String())
	fmt.Printf("customer_id: %s\n", customer.ID.String())
	fmt.Println("==================================================")
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
