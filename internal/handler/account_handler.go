package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"banking-service/internal/gatekeeper"
	"banking-service/internal/repository"
	"banking-service/internal/service"
	"banking-service/internal/util"
)

// AccountHandler handles HTTP requests for bank accounts.
type AccountHandler struct {
	accountService *service.AccountService
	gate           *gatekeeper.Pipeline
	logger         *zap.Logger
}

func NewAccountHandler(accountService *service.AccountService, gate *gatekeeper.Pipeline, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accountService: accountService, gate: gate, logger: logger}
}

// RegisterRoutes registers all account routes.
func (h *AccountHandler) RegisterRoutes(router chi.Router) {
	router.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.CreateAccount)
		r.Get("/", h.ListAccounts)
		r.Get("/{accountNumber}", h.GetAccount)
		r.Put("/{accountNumber}", h.UpdateAccount)
		r.Delete("/{accountNumber}", h.DeleteAccount)
	})
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req service.AccountCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	account, err := h.accountService.CreateAccount(r.Context(), owner, &req)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to create account")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(account, "Account created successfully"))
	h.logger.Info("Account created via HTTP",
		util.String("account_number", account.AccountNumber),
		util.String("owner_id", account.OwnerID.String()))
}

// ListAccounts returns only the caller's accounts.
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	accounts, err := h.accountService.ListAccountsByOwner(r.Context(), owner)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to list accounts")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(accounts, "Accounts retrieved successfully"))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")
	if !h.gate.CheckOwnership(w, r, gatekeeper.AccountResource(accountNumber)) {
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), accountNumber)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to get account")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(account, "Account retrieved successfully"))
}

func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")
	if !h.gate.CheckOwnership(w, r, gatekeeper.AccountResource(accountNumber)) {
		return
	}

	var req service.AccountUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	account, err := h.accountService.UpdateAccount(r.Context(), accountNumber, &req)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to update account")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(account, "Account updated successfully"))
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")
	if !h.gate.CheckOwnership(w, r, gatekeeper.AccountResource(accountNumber)) {
		return
	}

	if err := h.accountService.DeleteAccount(r.Context(), accountNumber); err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to delete account")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Account deleted successfully"))
}

// caller resolves the authenticated identity to its user ID. Requests
// without a usable identity are rejected before touching storage.
func (h *AccountHandler) caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity := gatekeeper.IdentityFromContext(r.Context())
	if identity == "" {
		gatekeeper.WriteDenied(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}

	user, err := h.accountService.ResolveOwner(r.Context(), identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			gatekeeper.WriteDenied(w, http.StatusForbidden, "No user record for this identity")
			return uuid.Nil, false
		}
		respondWithError(w, http.StatusInternalServerError, err, "Failed to resolve caller")
		return uuid.Nil, false
	}
	return user.UserID, true
}
