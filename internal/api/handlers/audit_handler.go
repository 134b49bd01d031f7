package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
)

// AuditService reads the audit trail
type AuditService interface {
	Recent(ctx context.Context, limit int) ([]*entities.AuditEvent, error)
}

// AuditHandler serves the audit trail to staff
type AuditHandler struct {
	service AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(service AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// Recent handles GET /api/staff/audit?limit=N
func (h *AuditHandler) Recent(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	if !actor.IsStaff() {
		respondWithError(w, http.StatusForbidden, "staff only")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	events, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
