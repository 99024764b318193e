package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/procktails/storefront/internal/cart"
	"github.com/procktails/storefront/internal/catalog"
	"github.com/procktails/storefront/internal/checkout"
	"github.com/procktails/storefront/internal/ledger"
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

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps service-layer errors onto HTTP statuses.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrEmptyProductID),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrNotAnonymous),
		errors.Is(err, cart.ErrNotAccount),
		errors.Is(err, checkout.ErrNoLines),
		errors.Is(err, checkout.ErrInvalidLine):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, ledger.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, catalog.ErrNoCatalogData):
		respondError(w, http.StatusServiceUnavailable, "catalog_unavailable", err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
