package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/clearlink/backend/internal/application/services"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
)

// DashboardService is the read side used by the dashboards
type DashboardService interface {
	StaffQueue(ctx context.Context) (*services.StaffQueue, error)
	DriverTasks(ctx context.Context, actor entities.Principal) ([]services.DriverEntry, error)
	ManualCandidates(ctx context.Context, taskID string) (*services.ManualCandidates, error)
}

// DistanceTableService exposes the zone distance table
type DistanceTableService interface {
	DistanceTable(ctx context.Context) (*services.DistanceTable, error)
}

// DashboardHandler serves the staff and driver views
type DashboardHandler struct {
	dashboard DashboardService
	distances DistanceTableService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboard DashboardService, distances DistanceTableService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, distances: distances}
}

// StaffQueue handles GET /api/staff/queue
func (h *DashboardHandler) StaffQueue(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	if !actor.IsStaff() {
		respondWithError(w, http.StatusForbidden, "staff only")
		return
	}

	queue, err := h.dashboard.StaffQueue(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, queue)
}

// Candidates handles GET /api/staff/tasks/{id}/candidates
func (h *DashboardHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}
	if !actor.IsStaff() {
		respondWithError(w, http.StatusForbidden, "staff only")
		return
	}

	candidates, err := h.dashboard.ManualCandidates(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, candidates)
}

// DriverTasks handles GET /api/driver/tasks
func (h *DashboardHandler) DriverTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	tasks, err := h.dashboard.DriverTasks(r.Context(), actor)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// Zones handles GET /api/zones
func (h *DashboardHandler) Zones(w http.ResponseWriter, r *http.Request) {
	table, err := h.distances.DistanceTable(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, table)
}
