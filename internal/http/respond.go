package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/greenbox-dev/greenbox/internal/gateway"
	"github.com/greenbox-dev/greenbox/internal/repository"
	"github.com/greenbox-dev/greenbox/internal/service"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	respondJSON(w, status, ErrorResponse{Error: code, Code: code, Details: details})
}

// respondServiceError maps expected service conditions onto HTTP statuses.
// Anything unrecognized is a generic 500 that never leaks storage detail.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrInvalidDeliveryDays),
		errors.Is(err, service.ErrStartDateMismatch),
		errors.Is(err, service.ErrInvalidPackagePrice),
		errors.Is(err, repository.ErrInvalidSlot):
		respondError(w, http.StatusBadRequest, "validation_failed", err.Error())

	case errors.Is(err, repository.ErrDiscountAlreadyUsed),
		errors.Is(err, repository.ErrDuplicateWeek),
		errors.Is(err, repository.ErrAlreadyDelivered),
		errors.Is(err, service.IllegalTransitionError),
		errors.Is(err, service.ErrOrderTerminal),
		errors.Is(err, service.ErrOrderNotPayable),
		errors.Is(err, service.ErrSubscriptionClosed):
		respondError(w, http.StatusConflict, "conflict", err.Error())

	case errors.Is(err, service.ErrDiscountInactive),
		errors.Is(err, service.ErrDiscountExpired):
		respondError(w, http.StatusUnprocessableEntity, "discount_rejected", err.Error())

	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrDiscountNotFound),
		errors.Is(err, repository.ErrBoxTypeNotFound),
		errors.Is(err, repository.ErrSubscriptionNotFound),
		errors.Is(err, repository.ErrScheduleNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, gateway.ErrGatewayRequest):
		respondError(w, http.StatusBadGateway, "gateway_unavailable", "payment gateway request failed")

	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
