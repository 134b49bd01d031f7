package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/clearlink/backend/internal/application/services"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

// DispatchService is the command surface of the dispatch service
type DispatchService interface {
	AutoAssignTopTask(ctx context.Context, actor entities.Principal) (services.Outcome, error)
	ManualAssign(ctx context.Context, actor entities.Principal, taskID, resourceID string) (services.Outcome, error)
	AcceptTask(ctx context.Context, actor entities.Principal, taskID string) (services.Outcome, error)
	DeclineTask(ctx context.Context, actor entities.Principal, taskID string) (services.Outcome, error)
	EscalateTask(ctx context.Context, actor entities.Principal, taskID string) (services.Outcome, error)
	RescheduleTask(ctx context.Context, actor entities.Principal, taskID string) (services.Outcome, error)
	SetResourceActive(ctx context.Context, actor entities.Principal, resourceID string, active bool) (*entities.Resource, error)
}

// DispatchHandler handles staff and driver task commands
type DispatchHandler struct {
	service DispatchService
}

// NewDispatchHandler creates a new dispatch handler
func NewDispatchHandler(service DispatchService) *DispatchHandler {
	return &DispatchHandler{service: service}
}

// AutoAssign handles POST /api/staff/assign/auto
func (h *DispatchHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.AutoAssignTopTask(r.Context(), actor)
	respondWithOutcome(w, r, outcome, err)
}

type manualAssignRequest struct {
	ResourceID string `json:"resource_id"`
}

// ManualAssign handles POST /api/staff/tasks/{id}/assign
func (h *DispatchHandler) ManualAssign(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	var body manualAssignRequest
	if err := decodeJSON(r, &body); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	outcome, err := h.service.ManualAssign(r.Context(), actor, r.PathValue("id"), body.ResourceID)
	respondWithOutcome(w, r, outcome, err)
}

// Accept handles POST /api/driver/tasks/{id}/accept
func (h *DispatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.taskCommand(w, r, h.service.AcceptTask)
}

// Decline handles POST /api/driver/tasks/{id}/decline
func (h *DispatchHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.taskCommand(w, r, h.service.DeclineTask)
}

// Escalate handles POST /api/staff/tasks/{id}/escalate
func (h *DispatchHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	h.taskCommand(w, r, h.service.EscalateTask)
}

// Reschedule handles POST /api/staff/tasks/{id}/reschedule
func (h *DispatchHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	h.taskCommand(w, r, h.service.RescheduleTask)
}

type resourceAvailabilityRequest struct {
	IsActive *bool `json:"is_active"`
}

// SetResourceAvailability handles PATCH /api/staff/resources/{id}
func (h *DispatchHandler) SetResourceAvailability(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	var body resourceAvailabilityRequest
	if err := decodeJSON(r, &body); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if body.IsActive == nil {
		respondWithAppError(w, r, apperrors.NewValidationError("is_active is required"))
		return
	}

	resource, err := h.service.SetResourceActive(r.Context(), actor, r.PathValue("id"), *body.IsActive)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resource)
}

func (h *DispatchHandler) taskCommand(w http.ResponseWriter, r *http.Request, command func(context.Context, entities.Principal, string) (services.Outcome, error)) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	taskID := r.PathValue("id")
	if taskID == "" {
		respondWithError(w, http.StatusBadRequest, "task ID is required")
		return
	}
	outcome, err := command(r.Context(), actor, taskID)
	respondWithOutcome(w, r, outcome, err)
}
