package httpapi

import (
	"net/http"

	"github.com/prrrssa/sarsabz/internal/exchange"
)

func (s *Server) handleCreateCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	c := exchange.Currency{
		Code:   req.Code,
		Name:   req.Name,
		Symbol: req.Symbol,
		Kind:   exchange.CurrencyKind(req.Kind),
	}
	created, err := s.registry.CreateCurrency(r.Context(), c, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("currency", "create")
	toJSON(w, http.StatusCreated, toCurrencyResponse(created))
}

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.registry.ListCurrencies(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]currencyResponse, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, toCurrencyResponse(c))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCurrency(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid currency id")
		return
	}
	c, err := s.registry.GetCurrency(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toCurrencyResponse(c))
}

func (s *Server) handleUpdateCurrency(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid currency id")
		return
	}
	var req currencyRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	c := exchange.Currency{
		ID:     id,
		Code:   req.Code,
		Name:   req.Name,
		Symbol: req.Symbol,
		Kind:   exchange.CurrencyKind(req.Kind),
	}
	updated, err := s.registry.UpdateCurrency(r.Context(), c, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("currency", "update")
	toJSON(w, http.StatusOK, toCurrencyResponse(updated))
}

func (s *Server) handleDeleteCurrency(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid currency id")
		return
	}
	if err := s.registry.DeleteCurrency(r.Context(), id, actorID(r)); err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("currency", "delete")
	w.WriteHeader(http.StatusNoContent)
}
