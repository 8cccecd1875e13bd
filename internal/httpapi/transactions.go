package httpapi

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/errs"
	"github.com/prrrssa/sarsabz/internal/exchange"
)

// transactionFromRequest builds a domain transaction through the shape
// constructors so kind-specific validation runs before the engine sees it.
func transactionFromRequest(req transactionRequest) (exchange.Transaction, error) {
	var (
		tx  exchange.Transaction
		err error
	)
	switch exchange.TransactionKind(req.Kind) {
	case exchange.KindCustomerTrade:
		tx, err = exchange.NewCustomerTrade(req.CustomerID, req.SourceCurrencyID, req.SourceAmount,
			req.TargetCurrencyID, req.TargetAmount, req.ExchangeRate, req.Date)
	case exchange.KindInternalTransfer:
		tx, err = exchange.NewInternalTransfer(req.SourceAccountID, req.SourceCurrencyID, req.SourceAmount,
			req.TargetAccountID, req.TargetCurrencyID, req.TargetAmount, req.Date)
	default:
		return exchange.Transaction{}, fmt.Errorf("%w: unknown transaction kind %q", errs.ErrInvalid, req.Kind)
	}
	if err != nil {
		return exchange.Transaction{}, err
	}
	tx.CommissionAmount = req.CommissionAmount
	tx.WageAmount = req.WageAmount
	tx.SoldOrnamentalGoldID = req.SoldGoldItemID
	tx.Notes = req.Notes
	return tx, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	tx, err := transactionFromRequest(req)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	created, warnings, err := s.engine.CreateTransaction(r.Context(), tx, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("transaction", "create")
	toJSON(w, http.StatusCreated, mutationResponse{Data: toTransactionResponse(created), Warnings: toWarningDTOs(warnings)})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.engine.ListTransactions(r.Context())
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

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}
	tx, err := s.engine.GetTransaction(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}
	var req transactionRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	tx, err := transactionFromRequest(req)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	tx.ID = id
	updated, warnings, err := s.engine.UpdateTransaction(r.Context(), tx, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("transaction", "update")
	toJSON(w, http.StatusOK, mutationResponse{Data: toTransactionResponse(updated), Warnings: toWarningDTOs(warnings)})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}
	if err := s.engine.DeleteTransaction(r.Context(), id, actorID(r)); err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("transaction", "delete")
	w.WriteHeader(http.StatusNoContent)
}

// handleSellGoldItem records a gold-piece sale as a customer trade whose
// source side hands the item over; there is no target side.
func (s *Server) handleSellGoldItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid gold item id")
		return
	}
	var req goldSaleRequest
	if err := fromJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.CustomerID == uuid.Nil {
		writeDomainErr(w, fmt.Errorf("%w: gold sale requires a customer", errs.ErrInvalid))
		return
	}
	if req.Amount.Sign() <= 0 {
		writeDomainErr(w, fmt.Errorf("%w: sale amount must be positive", errs.ErrInvalid))
		return
	}
	tx := exchange.Transaction{
		ID:                   uuid.New(),
		Kind:                 exchange.KindCustomerTrade,
		CustomerID:           req.CustomerID,
		SourceCurrencyID:     req.CurrencyID,
		SourceAmount:         req.Amount,
		TargetCurrencyID:     req.CurrencyID,
		ExchangeRate:         decimal.NewFromInt(1),
		CommissionAmount:     req.CommissionAmount,
		WageAmount:           req.WageAmount,
		SoldOrnamentalGoldID: itemID,
		Notes:                req.Notes,
		Date:                 req.Date,
	}
	created, warnings, err := s.engine.CreateTransaction(r.Context(), tx, actorID(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	countMutation("transaction", "create")
	toJSON(w, http.StatusCreated, mutationResponse{Data: toTransactionResponse(created), Warnings: toWarningDTOs(warnings)})
}
