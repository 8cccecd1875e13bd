package httpapi

import (
	"net/http"

	"github.com/prrrssa/sarsabz/internal/exchange"
)

func (s *Server) handleCreateGoldItem(w http.ResponseWriter, r *http.Request) {
	var req goldItemRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	g := exchange.OrnamentalGoldItem{
		Code:               req.Code,
		Name:               req.Name,
		Weight:             req.Weight,
		Description:        req.Description,
		CostPrice:          req.CostPrice,
		PurchaseWageAmount: req.PurchaseWageAmount,
	}
	created, err := s.registry.CreateGoldItem(r.Context(), g, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("gold_item", "create")
	toJSON(w, http.StatusCreated, toGoldItemResponse(created))
}

func (s *Server) handleListGoldItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.registry.ListGoldItems(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]goldItemResponse, 0, len(items))
	for _, g := range items {
		out = append(out, toGoldItemResponse(g))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetGoldItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid gold item id")
		return
	}
	g, err := s.registry.GetGoldItem(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	resp := toGoldItemResponse(g)
	profit, sold, err := s.registry.ProfitOnSale(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if sold {
		resp.ProfitOnSale = &profit
	}
	toJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateGoldItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid gold item id")
		return
	}
	var req goldItemRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	g := exchange.OrnamentalGoldItem{
		ID:                 id,
		Code:               req.Code,
		Name:               req.Name,
		Weight:             req.Weight,
		Description:        req.Description,
		CostPrice:          req.CostPrice,
		PurchaseWageAmount: req.PurchaseWageAmount,
	}
	updated, err := s.registry.UpdateGoldItem(r.Context(), g, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("gold_item", "update")
	toJSON(w, http.StatusOK, toGoldItemResponse(updated))
}

func (s *Server) handleDeleteGoldItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid gold item id")
		return
	}
	if err := s.registry.DeleteGoldItem(r.Context(), id, actorID(r)); err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("gold_item", "delete")
	w.WriteHeader(http.StatusNoContent)
}
