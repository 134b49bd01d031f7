// Package memory is an in-process implementation of the dispatch repositories.
// Transitions are serialized by a single mutex, which gives the same compare-and-swap
// guarantees as the Postgres adapters.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

// Store holds every dispatch table in memory
type Store struct {
	mu           sync.RWMutex
	patients     map[string]*entities.Patient
	appointments map[string]*entities.Appointment
	tasks        map[string]*entities.TransportTask
	resources    map[string]*entities.Resource
	users        map[string]*entities.User
	distances    map[[2]entities.Zone]float64
	audit        []*entities.AuditEvent
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		patients:     make(map[string]*entities.Patient),
		appointments: make(map[string]*entities.Appointment),
		tasks:        make(map[string]*entities.TransportTask),
		resources:    make(map[string]*entities.Resource),
		users:        make(map[string]*entities.User),
		distances:    make(map[[2]entities.Zone]float64),
	}
}

// Tasks returns the store as a TransportTaskRepository
func (s *Store) Tasks() repositories.TransportTaskRepository { return (*taskRepo)(s) }

// Appointments returns the store as an AppointmentRepository
func (s *Store) Appointments() repositories.AppointmentRepository { return (*appointmentRepo)(s) }

// Patients returns the store as a PatientRepository
func (s *Store) Patients() repositories.PatientRepository { return (*patientRepo)(s) }

// Resources returns the store as a ResourceRepository
func (s *Store) Resources() repositories.ResourceRepository { return (*resourceRepo)(s) }

// Users returns the store as a UserRepository
func (s *Store) Users() repositories.UserRepository { return (*userRepo)(s) }

// ZoneDistances returns the store as a ZoneDistanceRepository
func (s *Store) ZoneDistances() repositories.ZoneDistanceRepository { return (*zoneRepo)(s) }

// Audit returns the store as an AuditRepository
func (s *Store) Audit() repositories.AuditRepository { return (*auditRepo)(s) }

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

type taskRepo Store

func (r *taskRepo) CreateRequest(ctx context.Context, req *entities.NewTransportRequest) error {
	if req == nil || req.Patient == nil || req.Appointment == nil || req.Task == nil {
		return apperrors.NewValidationError("patient, appointment and task are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[req.Task.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("task %s already exists", req.Task.ID))
	}
	p, a, t := *req.Patient, *req.Appointment, *req.Task
	r.patients[p.ID] = &p
	r.appointments[a.ID] = &a
	r.tasks[t.ID] = &t
	return nil
}

func (r *taskRepo) GetByID(ctx context.Context, id string) (*entities.TransportTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("task %s not found", id))
	}
	return copyTask(t), nil
}

func (r *taskRepo) GetDetail(ctx context.Context, id string) (*entities.TaskDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("task %s not found", id))
	}
	a, ok := r.appointments[t.AppointmentID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment %s not found", t.AppointmentID))
	}
	p, ok := r.patients[a.PatientID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient %s not found", a.PatientID))
	}
	appt, patient := *a, *p
	return &entities.TaskDetail{Task: copyTask(t), Appointment: &appt, Patient: &patient}, nil
}

func (r *taskRepo) ApplyTransition(ctx context.Context, tr entities.TaskTransition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[tr.TaskID]
	if !ok {
		return false, nil
	}
	if t.Status != tr.ExpectedStatus || !entities.SameResource(t.AssignedResourceID, tr.ExpectedResourceID) {
		return false, nil
	}
	if tr.ExpectedDeclineCount != nil && t.DeclineCount != *tr.ExpectedDeclineCount {
		return false, nil
	}

	var res *entities.Resource
	if tr.Counter != "" {
		res, ok = r.resources[tr.CounterResourceID]
		if !ok {
			return false, apperrors.NewNotFoundError(fmt.Sprintf("resource %s not found", tr.CounterResourceID))
		}
		if tr.RequireActiveResource && !res.IsActive {
			return false, nil
		}
	}
	var appt *entities.Appointment
	if tr.Appointment != nil {
		appt, ok = r.appointments[tr.Appointment.AppointmentID]
		if !ok {
			return false, apperrors.NewNotFoundError(fmt.Sprintf("appointment %s not found", tr.Appointment.AppointmentID))
		}
	}

	t.Status = tr.NewStatus
	t.AssignedResourceID = nil
	if tr.NewResourceID != nil {
		t.AssignedResourceID = entities.StringPtr(*tr.NewResourceID)
	}
	if tr.IncrementDeclines {
		t.DeclineCount++
	}
	if tr.SLAHours != nil {
		t.SLAHours = *tr.SLAHours
	}
	t.UpdatedAt = tr.At

	switch tr.Counter {
	case entities.CounterTotalAssigned:
		res.TotalAssigned++
	case entities.CounterTotalDeclined:
		res.TotalDeclined++
	}

	if appt != nil {
		appt.ScheduledAt = tr.Appointment.ScheduledAt
		appt.Status = tr.Appointment.Status
		appt.PriorityScore = tr.Appointment.PriorityScore
		appt.PriorityBreakdown = tr.Appointment.PriorityBreakdown
		appt.UpdatedAt = tr.At
	}
	return true, nil
}

func (r *taskRepo) List(ctx context.Context, filter repositories.TaskFilter) ([]*entities.TransportTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make(map[entities.TaskStatus]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = true
	}

	var result []*entities.TransportTask
	for _, t := range r.tasks {
		if len(statuses) > 0 && !statuses[t.Status] {
			continue
		}
		if filter.AssignedResourceID != "" && !t.AssignedTo(filter.AssignedResourceID) {
			continue
		}
		result = append(result, copyTask(t))
	}

	score := func(t *entities.TransportTask) int {
		if a, ok := r.appointments[t.AppointmentID]; ok {
			return a.PriorityScore
		}
		return 0
	}
	sort.Slice(result, func(i, j int) bool {
		si, sj := score(result[i]), score(result[j])
		if si != sj {
			return si > sj
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func copyTask(t *entities.TransportTask) *entities.TransportTask {
	c := *t
	if t.AssignedResourceID != nil {
		c.AssignedResourceID = entities.StringPtr(*t.AssignedResourceID)
	}
	return &c
}

// ---------------------------------------------------------------------------
// Appointments and patients
// ---------------------------------------------------------------------------

type appointmentRepo Store

func (r *appointmentRepo) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment %s not found", id))
	}
	c := *a
	return &c, nil
}

func (r *appointmentRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.Appointment, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.appointments[id]; ok {
			c := *a
			result = append(result, &c)
		}
	}
	return result, nil
}

type patientRepo Store

func (r *patientRepo) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient %s not found", id))
	}
	c := *p
	return &c, nil
}

func (r *patientRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.Patient, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.patients[id]; ok {
			c := *p
			result = append(result, &c)
		}
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Resources and users
// ---------------------------------------------------------------------------

type resourceRepo Store

func (r *resourceRepo) Create(ctx context.Context, resource *entities.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[resource.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("resource %s already exists", resource.ID))
	}
	c := *resource
	r.resources[c.ID] = &c
	return nil
}

func (r *resourceRepo) GetByID(ctx context.Context, id string) (*entities.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("resource %s not found", id))
	}
	c := *res
	return &c, nil
}

func (r *resourceRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.Resource, 0, len(ids))
	for _, id := range ids {
		if res, ok := r.resources[id]; ok {
			c := *res
			result = append(result, &c)
		}
	}
	return result, nil
}

func (r *resourceRepo) GetByDriverUserID(ctx context.Context, userID string) (*entities.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, res := range r.resources {
		if res.DriverUserID != nil && *res.DriverUserID == userID {
			c := *res
			return &c, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("no resource linked to user %s", userID))
}

func (r *resourceRepo) Find(ctx context.Context, filter repositories.ResourceFilter) ([]*entities.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*entities.Resource
	for _, res := range r.resources {
		if filter.ActiveOnly && !res.IsActive {
			continue
		}
		if filter.WheelchairOK != nil && res.WheelchairOK != *filter.WheelchairOK {
			continue
		}
		c := *res
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *resourceRepo) SetActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.resources[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("resource %s not found", id))
	}
	res.IsActive = active
	return nil
}

type userRepo Store

func (r *userRepo) Create(ctx context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("user %s already exists", user.ID))
	}
	c := *user
	r.users[c.ID] = &c
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user %s not found", id))
	}
	c := *u
	return &c, nil
}

// ---------------------------------------------------------------------------
// Zone distances
// ---------------------------------------------------------------------------

type zoneRepo Store

func (r *zoneRepo) Get(ctx context.Context, from, to entities.Zone) (float64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	km, ok := r.distances[[2]entities.Zone{from, to}]
	return km, ok, nil
}

func (r *zoneRepo) List(ctx context.Context) ([]*entities.ZoneDistance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.ZoneDistance, 0, len(r.distances))
	for k, km := range r.distances {
		result = append(result, &entities.ZoneDistance{FromZone: k[0], ToZone: k[1], Km: km})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FromZone != result[j].FromZone {
			return result[i].FromZone < result[j].FromZone
		}
		return result[i].ToZone < result[j].ToZone
	})
	return result, nil
}

func (r *zoneRepo) Upsert(ctx context.Context, d *entities.ZoneDistance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.distances[[2]entities.Zone{d.FromZone, d.ToZone}] = d.Km
	return nil
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

type auditRepo Store

func (r *auditRepo) Append(ctx context.Context, event *entities.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *event
	r.audit = append(r.audit, &c)
	return nil
}

func (r *auditRepo) CountByAction(ctx context.Context, entityID string, action entities.AuditAction) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.audit {
		if e.EntityID == entityID && e.Action == action {
			n++
		}
	}
	return n, nil
}

func (r *auditRepo) ListRecent(ctx context.Context, limit int) ([]*entities.AuditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.AuditEvent, 0, max(limit, 0))
	for i := len(r.audit) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		c := *r.audit[i]
		result = append(result, &c)
	}
	return result, nil
}
