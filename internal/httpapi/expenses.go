package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/prrrssa/sarsabz/internal/dictionary"
	"github.com/prrrssa/sarsabz/internal/exchange"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	exp := exchange.PersonalExpense{
		ID:               uuid.New(),
		Amount:           req.Amount,
		ManagedAccountID: req.ManagedAccountID,
		Category:         req.Category,
		Description:      req.Description,
		Date:             req.Date,
	}
	created, warnings, err := s.engine.CreateExpense(r.Context(), exp, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("expense", "create")
	toJSON(w, http.StatusCreated, mutationResponse{Data: toExpenseResponse(created), Warnings: toWarningDTOs(warnings)})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.engine.ListExpenses(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid expense id")
		return
	}
	exp, err := s.engine.GetExpense(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toExpenseResponse(exp))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid expense id")
		return
	}
	var req expenseRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	exp := exchange.PersonalExpense{
		ID:               id,
		Amount:           req.Amount,
		ManagedAccountID: req.ManagedAccountID,
		Category:         req.Category,
		Description:      req.Description,
		Date:             req.Date,
	}
	updated, warnings, err := s.engine.UpdateExpense(r.Context(), exp, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("expense", "update")
	toJSON(w, http.StatusOK, mutationResponse{Data: toExpenseResponse(updated), Warnings: toWarningDTOs(warnings)})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid expense id")
		return
	}
	if err := s.engine.DeleteExpense(r.Context(), id, actorID(r)); err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("expense", "delete")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExpenseCategories(w http.ResponseWriter, _ *http.Request) {
	toJSON(w, http.StatusOK, dictionary.Categories())
}

func (s *Server) handleCreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	adj, err := s.engine.AdjustBalance(r.Context(), req.AccountID, req.NewBalance, req.Reason, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("adjustment", "create")
	toJSON(w, http.StatusCreated, toAdjustmentResponse(adj))
}

func (s *Server) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	adjs, err := s.engine.ListAdjustments(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]adjustmentResponse, 0, len(adjs))
	for _, a := range adjs {
		out = append(out, toAdjustmentResponse(a))
	}
	toJSON(w, http.StatusOK, out)
}
