package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/clearlink/backend/internal/application/services"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
)

// TransportRequestService is what TransportRequestHandler needs from the dispatch service
type TransportRequestService interface {
	CreateTransportRequest(ctx context.Context, actor entities.Principal, in services.CreateTransportRequestInput) (*services.CreateResult, error)
}

// TransportRequestHandler handles intake of new transport requests
type TransportRequestHandler struct {
	service TransportRequestService
}

// NewTransportRequestHandler creates a new transport request handler
func NewTransportRequestHandler(service TransportRequestService) *TransportRequestHandler {
	return &TransportRequestHandler{service: service}
}

// CreateTransportRequest handles POST /api/staff/transport-requests
func (h *TransportRequestHandler) CreateTransportRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	var in services.CreateTransportRequestInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.service.CreateTransportRequest(r.Context(), actor, in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}
