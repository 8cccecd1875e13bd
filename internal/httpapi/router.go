package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/prrrssa/sarsabz/internal/exchange"
	"github.com/prrrssa/sarsabz/internal/service/ledger"
	"github.com/prrrssa/sarsabz/internal/service/registry"
	"github.com/prrrssa/sarsabz/internal/service/tier"
)

// AuditReader serves the read-only audit trail.
type AuditReader interface {
	AuditLog(ctx context.Context, f exchange.AuditFilter) ([]exchange.AuditLogEntry, error)
}

// ReadyFunc probes the persistence backend for readiness. Nil means always
// ready.
type ReadyFunc func(ctx context.Context) error

// Server exposes the exchange engine over HTTP.
type Server struct {
	engine   ledger.Service
	registry registry.Service
	tiers    tier.Service
	audit    AuditReader
	ready    ReadyFunc
	logger   *slog.Logger
}

// New builds the API server.
func New(engine ledger.Service, reg registry.Service, tiers tier.Service, audit AuditReader, ready ReadyFunc, logger *slog.Logger) *Server {
	return &Server{engine: engine, registry: reg, tiers: tiers, audit: audit, ready: ready, logger: logger}
}

// Handler wires middleware and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(recoverer(s.logger))
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", actorHeader},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", s.handleCreateTransaction)
			r.Get("/", s.handleListTransactions)
			r.Get("/{id}", s.handleGetTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.Route("/ledger-entries", func(r chi.Router) {
			r.Post("/", s.handleCreateLedgerEntry)
			r.Get("/", s.handleListLedgerEntries)
			r.Get("/{id}", s.handleGetLedgerEntry)
			r.Put("/{id}", s.handleUpdateLedgerEntry)
			r.Delete("/{id}", s.handleDeleteLedgerEntry)
		})
		r.Post("/settlements", s.handleCreateSettlement)

		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", s.handleCreateExpense)
			r.Get("/", s.handleListExpenses)
			r.Get("/{id}", s.handleGetExpense)
			r.Put("/{id}", s.handleUpdateExpense)
			r.Delete("/{id}", s.handleDeleteExpense)
		})
		r.Get("/expense-categories", s.handleExpenseCategories)

		r.Route("/adjustments", func(r chi.Router) {
			r.Post("/", s.handleCreateAdjustment)
			r.Get("/", s.handleListAdjustments)
		})

		r.Route("/currencies", func(r chi.Router) {
			r.Post("/", s.handleCreateCurrency)
			r.Get("/", s.handleListCurrencies)
			r.Get("/{id}", s.handleGetCurrency)
			r.Put("/{id}", s.handleUpdateCurrency)
			r.Delete("/{id}", s.handleDeleteCurrency)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", s.handleCreateAccount)
			r.Get("/", s.handleListAccounts)
			r.Get("/{id}", s.handleGetAccount)
			r.Put("/{id}", s.handleUpdateAccount)
			r.Delete("/{id}", s.handleDeleteAccount)
			r.Get("/{id}/balance", s.handleAccountBalance)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", s.handleCreateCustomer)
			r.Get("/", s.handleListCustomers)
			r.Get("/{id}", s.handleGetCustomer)
			r.Put("/{id}", s.handleUpdateCustomer)
			r.Delete("/{id}", s.handleDeleteCustomer)
			r.Get("/{id}/ledger", s.handleCustomerLedger)
			r.Get("/{id}/transactions", s.handleCustomerTransactions)
			r.Get("/{id}/tier", s.handleCustomerTier)
			r.Get("/{id}/fee-quote", s.handleFeeQuote)
		})

		r.Route("/tiers", func(r chi.Router) {
			r.Get("/", s.handleGetTierTable)
			r.Put("/", s.handleUpdateTierTable)
		})

		r.Route("/gold", func(r chi.Router) {
			r.Post("/", s.handleCreateGoldItem)
			r.Get("/", s.handleListGoldItems)
			r.Get("/{id}", s.handleGetGoldItem)
			r.Put("/{id}", s.handleUpdateGoldItem)
			r.Delete("/{id}", s.handleDeleteGoldItem)
			r.Post("/{id}/sell", s.handleSellGoldItem)
		})

		r.Get("/audit-log", s.handleAuditLog)
	})

	return r
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
