package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"banking-service/internal/gatekeeper"
	"banking-service/internal/service"
	"banking-service/internal/util"
)

// TransactionHandler handles HTTP requests for account transactions.
type TransactionHandler struct {
	transactionService *service.TransactionService
	gate               *gatekeeper.Pipeline
	logger             *zap.Logger
}

func NewTransactionHandler(transactionService *service.TransactionService, gate *gatekeeper.Pipeline, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, gate: gate, logger: logger}
}

// RegisterRoutes registers transaction routes under their account.
func (h *TransactionHandler) RegisterRoutes(router chi.Router) {
	router.Route("/accounts/{accountNumber}/transactions", func(r chi.Router) {
		r.Post("/", h.CreateTransaction)
		r.Get("/", h.ListTransactions)
		r.Get("/{transactionID}", h.GetTransaction)
		r.Put("/{transactionID}", h.UpdateTransaction)
		r.Delete("/{transactionID}", h.DeleteTransaction)
	})
}

func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")
	if !h.gate.CheckOwnership(w, r, gatekeeper.AccountResource(accountNumber)) {
		return
	}

	var req service.TransactionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	tx, err := h.transactionService.CreateTransaction(r.Context(), accountNumber, &req)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to create transaction")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(tx, "Transaction created successfully"))
	h.logger.Info("Transaction created via HTTP",
		util.String("transaction_id", tx.TransactionID.String()),
		util.String("account_number", accountNumber))
}

func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")
	if !h.gate.CheckOwnership(w, r, gatekeeper.AccountResource(accountNumber)) {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	transactions, err := h.transactionService.ListTransactions(r.Context(), accountNumber, limit)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to list transactions")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(transactions, "Transactions retrieved successfully"))
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	accountNumber, transactionID, ok := h.parseRef(w, r)
	if !ok {
		return
	}
	if !h.gate.CheckOwnership(w, r, gatekeeper.TransactionResource(accountNumber, transactionID)) {
		return
	}

	tx, err := h.transactionService.GetTransaction(r.Context(), accountNumber, transactionID)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to get transaction")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(tx, "Transaction retrieved successfully"))
}

func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	accountNumber, transactionID, ok := h.parseRef(w, r)
	if !ok {
		return
	}
	if !h.gate.CheckOwnership(w, r, gatekeeper.TransactionResource(accountNumber, transactionID)) {
		return
	}

	var req service.TransactionUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	tx, err := h.transactionService.UpdateTransaction(r.Context(), accountNumber, transactionID, &req)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to update transaction")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(tx, "Transaction updated successfully"))
}

func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	accountNumber, transactionID, ok := h.parseRef(w, r)
	if !ok {
		return
	}
	if !h.gate.CheckOwnership(w, r, gatekeeper.TransactionResource(accountNumber, transactionID)) {
		return
	}

	if err := h.transactionService.DeleteTransaction(r.Context(), accountNumber, transactionID); err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to delete transaction")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Transaction deleted successfully"))
}

func (h *TransactionHandler) parseRef(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	accountNumber := chi.URLParam(r, "accountNumber")
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid transaction ID format")
		return "", uuid.Nil, false
	}
	return accountNumber, transactionID, true
}
