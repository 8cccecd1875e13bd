package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/exchange"
)

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	a := exchange.ManagedAccount{
		Name:          req.Name,
		CurrencyID:    req.CurrencyID,
		AccountNumber: req.AccountNumber,
		Description:   req.Description,
		IsCashAccount: req.IsCashAccount,
		Metadata:      req.Metadata,
	}
	created, err := s.registry.CreateAccount(r.Context(), a, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("account", "create")
	toJSON(w, http.StatusCreated, toAccountResponse(created))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.registry.ListAccounts(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	a, err := s.registry.GetAccount(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(a))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	var req accountRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	a := exchange.ManagedAccount{
		ID:            id,
		Name:          req.Name,
		CurrencyID:    req.CurrencyID,
		AccountNumber: req.AccountNumber,
		Description:   req.Description,
		IsCashAccount: req.IsCashAccount,
		Metadata:      req.Metadata,
	}
	updated, err := s.registry.UpdateAccount(r.Context(), a, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("account", "update")
	toJSON(w, http.StatusOK, toAccountResponse(updated))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	if err := s.registry.DeleteAccount(r.Context(), id, actorID(r)); err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("account", "delete")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	a, err := s.registry.GetAccount(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, struct {
		AccountID  string          `json:"accountId"`
		CurrencyID string          `json:"currencyId"`
		Balance    decimal.Decimal `json:"balance"`
	}{a.ID.String(), a.CurrencyID.String(), a.Balance})
}
