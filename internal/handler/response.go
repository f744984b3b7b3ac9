package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"banking-service/internal/repository"
	"banking-service/internal/service"
	"banking-service/internal/util"
)

// Response is the standard API envelope for business endpoints.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{Success: true, Data: data, Message: message}
}

func errorResponse(err error, message string) Response {
	return Response{Success: false, Error: err.Error(), Message: message}
}

func respondWithJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		util.Error("Failed to encode response", util.ErrorField(err))
	}
}

func respondWithError(w http.ResponseWriter, status int, err error, message string) {
	respondWithJSON(w, status, errorResponse(err, message))
}

// statusFromError maps service errors to HTTP statuses. Internal errors
// are never exposed verbatim; the handler supplies the public message.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrAccountClosed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
