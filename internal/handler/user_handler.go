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

// UserHandler handles HTTP requests for user records.
type UserHandler struct {
	userService *service.UserService
	gate        *gatekeeper.Pipeline
	logger      *zap.Logger
}

func NewUserHandler(userService *service.UserService, gate *gatekeeper.Pipeline, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, gate: gate, logger: logger}
}

// RegisterRoutes registers all user routes.
func (h *UserHandler) RegisterRoutes(router chi.Router) {
	router.Route("/users", func(r chi.Router) {
		r.Post("/", h.CreateUser)
		r.Get("/", h.ListUsers)
		r.Get("/{userID}", h.GetUser)
		r.Put("/{userID}", h.UpdateUser)
		r.Delete("/{userID}", h.DeleteUser)
	})
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.UserCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	// The user record belongs to the verified identity; the body cannot
	// register a record for someone else.
	identity := gatekeeper.IdentityFromContext(r.Context())
	if req.Email == "" {
		req.Email = identity
	}
	if identity == "" || req.Email != identity {
		gatekeeper.WriteDenied(w, http.StatusForbidden, "You can only register your own identity")
		return
	}

	user, err := h.userService.CreateUser(r.Context(), &req)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to create user")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(user, "User created successfully"))
	h.logger.Info("User created via HTTP", util.String("user_id", user.UserID.String()))
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, err := h.userService.ListUsers(r.Context(), limit)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to list users")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(users, "Users retrieved successfully"))
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}
	if !h.gate.CheckOwnership(w, r, gatekeeper.UserResource(userID)) {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to get user")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(user, "User retrieved successfully"))
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}
	if !h.gate.CheckOwnership(w, r, gatekeeper.UserResource(userID)) {
		return
	}

	var req service.UserUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), userID, &req)
	if err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to update user")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(user, "User updated successfully"))
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}
	if !h.gate.CheckOwnership(w, r, gatekeeper.UserResource(userID)) {
		return
	}

	if err := h.userService.DeleteUser(r.Context(), userID); err != nil {
		respondWithError(w, statusFromError(err), err, "Failed to delete user")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "User deleted successfully"))
}

func (h *UserHandler) parseUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}
