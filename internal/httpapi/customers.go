package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/exchange"
)

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	c := exchange.Customer{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		NationalID:  req.NationalID,
		ReferrerID:  req.ReferrerID,
		IsFavorite:  req.IsFavorite,
		Notes:       req.Notes,
		Metadata:    req.Metadata,
	}
	created, err := s.registry.CreateCustomer(r.Context(), c, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("customer", "create")
	toJSON(w, http.StatusCreated, toCustomerResponse(created))
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.registry.ListCustomers(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]customerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, toCustomerResponse(c))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid customer id")
		return
	}
	c, err := s.registry.GetCustomer(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toCustomerResponse(c))
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid customer id")
		return
	}
	var req customerRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	c := exchange.Customer{
		ID:          id,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		NationalID:  req.NationalID,
		ReferrerID:  req.ReferrerID,
		IsFavorite:  req.IsFavorite,
		Notes:       req.Notes,
		Metadata:    req.Metadata,
	}
	updated, err := s.registry.UpdateCustomer(r.Context(), c, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("customer", "update")
	toJSON(w, http.StatusOK, toCustomerResponse(updated))
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid customer id")
		return
	}
	if err := s.registry.DeleteCustomer(r.Context(), id, actorID(r)); err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("customer", "delete")
	w.WriteHeader(http.StatusNoContent)
}

// handleCustomerLedger returns the customer's ledger rows plus the running
// balance per currency.
func (s *Server) handleCustomerLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid customer id")
		return
	}
	if _, err := s.registry.GetCustomer(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	entries, err := s.engine.LedgerByCustomer(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	balances := map[string]decimal.Decimal{}
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		key := e.CurrencyID.String()
		balances[key] = balances[key].Add(e.Amount)
		out = append(out, toLedgerEntryResponse(e))
	}
	toJSON(w, http.StatusOK, struct {
		Entries  []ledgerEntryResponse      `json:"entries"`
		Balances map[string]decimal.Decimal `json:"balances"`
	}{out, balances})
}

func (s *Server) handleCustomerTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid customer id")
		return
	}
	if _, err := s.registry.GetCustomer(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	txs, err := s.engine.TransactionsByCustomer(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) handleCustomerTier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid customer id")
		return
	}
	if _, err := s.registry.GetCustomer(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	t, volume, err := s.tiers.TierFor(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, tierStatusResponse{Tier: toTierDTO(t), Volume: volume})
}

// handleFeeQuote discounts proposed commission and wage figures by the
// customer's current tier. Query params: commission, wage.
func (s *Server) handleFeeQuote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid customer id")
		return
	}
	if _, err := s.registry.GetCustomer(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	commission, err := queryDecimal(r, "commission")
	if err != nil {
		badRequest(w, "invalid commission")
		return
	}
	wage, err := queryDecimal(r, "wage")
	if err != nil {
		badRequest(w, "invalid wage")
		return
	}
	quote, err := s.tiers.QuoteFee(r.Context(), id, commission, wage)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, feeQuoteResponse{
		Tier:       toTierDTO(quote.Tier),
		Volume:     quote.Volume,
		Commission: quote.Commission,
		Wage:       quote.Wage,
	})
}

func queryDecimal(r *http.Request, name string) (decimal.Decimal, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}
