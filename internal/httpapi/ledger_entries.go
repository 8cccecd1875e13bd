package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/prrrssa/sarsabz/internal/exchange"
)

func (s *Server) handleCreateLedgerEntry(w http.ResponseWriter, r *http.Request) {
	var req ledgerEntryRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	entry := exchange.CustomerLedgerEntry{
		ID:               uuid.New(),
		CustomerID:       req.CustomerID,
		CurrencyID:       req.CurrencyID,
		Amount:           req.Amount,
		Description:      req.Description,
		ManagedAccountID: req.ManagedAccountID,
		Date:             req.Date,
	}
	created, warnings, err := s.engine.CreateLedgerEntry(r.Context(), entry, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("ledger_entry", "create")
	toJSON(w, http.StatusCreated, mutationResponse{Data: toLedgerEntryResponse(created), Warnings: toWarningDTOs(warnings)})
}

func (s *Server) handleListLedgerEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.ListLedgerEntries(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toLedgerEntryResponse(e))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLedgerEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid ledger entry id")
		return
	}
	entry, err := s.engine.GetLedgerEntry(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toLedgerEntryResponse(entry))
}

func (s *Server) handleUpdateLedgerEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid ledger entry id")
		return
	}
	var req ledgerEntryRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	entry := exchange.CustomerLedgerEntry{
		ID:               id,
		CustomerID:       req.CustomerID,
		CurrencyID:       req.CurrencyID,
		Amount:           req.Amount,
		Description:      req.Description,
		ManagedAccountID: req.ManagedAccountID,
		Date:             req.Date,
	}
	updated, warnings, err := s.engine.UpdateLedgerEntry(r.Context(), entry, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("ledger_entry", "update")
	toJSON(w, http.StatusOK, mutationResponse{Data: toLedgerEntryResponse(updated), Warnings: toWarningDTOs(warnings)})
}

func (s *Server) handleDeleteLedgerEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid ledger entry id")
		return
	}
	if err := s.engine.DeleteLedgerEntry(r.Context(), id, actorID(r)); err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("ledger_entry", "delete")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req settlementRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	entries, err := s.engine.SettleBetweenCustomers(r.Context(), req.FromCustomerID, req.ToCustomerID,
		req.CurrencyID, req.Amount, req.Description, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("ledger_entry", "create")
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toLedgerEntryResponse(e))
	}
	toJSON(w, http.StatusCreated, out)
}
