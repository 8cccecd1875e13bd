package httpapi

import (
	"net/http"

	"github.com/prrrssa/sarsabz/internal/exchange"
)

func (s *Server) handleGetTierTable(w http.ResponseWriter, r *http.Request) {
	table, err := s.tiers.Table(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]tierDTO, 0, len(table))
	for _, t := range table {
		out = append(out, toTierDTO(t))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateTierTable(w http.ResponseWriter, r *http.Request) {
	var req []tierDTO
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	table := make(exchange.TierTable, 0, len(req))
	for _, t := range req {
		table = append(table, exchange.Tier{Name: t.Name, MinVolume: t.MinVolume, DiscountPercent: t.DiscountPercent})
	}
	updated, err := s.tiers.UpdateTable(r.Context(), table, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("tier_config", "update")
	out := make([]tierDTO, 0, len(updated))
	for _, t := range updated {
		out = append(out, toTierDTO(t))
	}
	toJSON(w, http.StatusOK, out)
}
