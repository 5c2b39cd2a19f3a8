package handlers

import (
	"net/http"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/service"
)

type CreditsHandler struct {
	ledger *service.LedgerService
}

func NewCreditsHandler(ledger *service.LedgerService) *CreditsHandler {
	return &CreditsHandler{ledger: ledger}
}

type BalanceResponse struct {
	Credits domain.Credits `json:"credits"`
}

func (h *CreditsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{Credits: balance})
}

func (h *CreditsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	txType := domain.TransactionType(r.URL.Query().Get("type"))
	entries, err := h.ledger.Transactions(r.Context(), userID, txType)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*domain.LedgerEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *CreditsHandler) Bank(w http.ResponseWriter, r *http.Request) {
	bank, err := h.ledger.Bank(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bank)
}
