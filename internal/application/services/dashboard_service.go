package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/clearlink/backend/internal/application/loaders"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/policy"
	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/domain/sla"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

// QueueEntry is one open task on the staff queue
type QueueEntry struct {
	Task        *entities.TransportTask `json:"task"`
	Appointment *entities.Appointment   `json:"appointment"`
	Patient     *entities.Patient       `json:"patient"`
	Flag        policy.Flag             `json:"flag"`
	FlagReason  string                  `json:"flag_reason"`
	Countdown   string                  `json:"countdown"`
	SLA         sla.Risk                `json:"sla"`
	Returned    bool                    `json:"returned"`
	CanAssign   bool                    `json:"can_assign"`
}

// InFlightEntry is an ASSIGNED or ACCEPTED task with the resource holding it
type InFlightEntry struct {
	Task        *entities.TransportTask `json:"task"`
	Appointment *entities.Appointment   `json:"appointment"`
	Resource    *entities.Resource      `json:"resource"`
}

// QueueKPIs summarises the open queue
type QueueKPIs struct {
	Queue    int `json:"queue"`
	AtRisk   int `json:"at_risk"`
	Overdue  int `json:"overdue"`
	Returned int `json:"returned"`
	Manual   int `json:"manual"`
}

// StaffQueue is the staff dashboard
type StaffQueue struct {
	Items             []QueueEntry          `json:"items"`
	InFlight          []InFlightEntry       `json:"in_flight"`
	KPIs              QueueKPIs             `json:"kpis"`
	Lock              policy.ResolutionLock `json:"lock"`
	AutoAssignAllowed bool                  `json:"auto_assign_allowed"`
}

// DriverEntry is one task on a driver's list
type DriverEntry struct {
	Task        *entities.TransportTask `json:"task"`
	Appointment *entities.Appointment   `json:"appointment"`
	Patient     *entities.Patient       `json:"patient"`
	Flag        policy.Flag             `json:"flag"`
	FlagReason  string                  `json:"flag_reason"`
	Countdown   string                  `json:"countdown"`
	CanRespond  bool                    `json:"can_respond"`
}

// ManualCandidates is the manual assignment view for one task
type ManualCandidates struct {
	Detail     *entities.TaskDetail `json:"detail"`
	Candidates []RankedResource     `json:"candidates"`
	Returned   bool                 `json:"returned"`
	Manual     bool                 `json:"manual"`
	CanAssign  bool                 `json:"can_assign"`
}

// DashboardService builds the staff and driver read views
type DashboardService struct {
	tasks        repositories.TransportTaskRepository
	appointments repositories.AppointmentRepository
	patients     repositories.PatientRepository
	resources    repositories.ResourceRepository
	matcher      *ResourceMatcher
	clock        providers.Clock
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(
	tasks repositories.TransportTaskRepository,
	appointments repositories.AppointmentRepository,
	patients repositories.PatientRepository,
	resources repositories.ResourceRepository,
	matcher *ResourceMatcher,
	clock providers.Clock,
) *DashboardService {
	if clock == nil {
		clock = providers.SystemClock{}
	}
	return &DashboardService{
		tasks:        tasks,
		appointments: appointments,
		patients:     patients,
		resources:    resources,
		matcher:      matcher,
		clock:        clock,
	}
}

// StaffQueue returns open tasks by priority with their flags, the KPIs and the lock state
func (s *DashboardService) StaffQueue(ctx context.Context) (*StaffQueue, error) {
	open, err := s.tasks.List(ctx, repositories.TaskFilter{Statuses: entities.OpenTaskStatuses})
	if err != nil {
		return nil, err
	}
	active, err := s.tasks.List(ctx, repositories.TaskFilter{Statuses: []entities.TaskStatus{entities.TaskStatusAssigned, entities.TaskStatusAccepted}})
	if err != nil {
		return nil, err
	}

	l := s.loadersFor(ctx)
	now := s.clock.Now()

	appts, patients, err := s.loadDetails(ctx, l, open)
	if err != nil {
		return nil, err
	}

	items := make([]policy.QueueItem, len(open))
	for i, t := range open {
		items[i] = policy.QueueItem{TaskID: t.ID, Status: t.Status, PriorityScore: appts[i].PriorityScore, Returned: t.Returned()}
	}
	lock := policy.EvaluateLock(items)

	queue := &StaffQueue{
		Items:             make([]QueueEntry, len(open)),
		InFlight:          []InFlightEntry{},
		Lock:              lock,
		AutoAssignAllowed: lock.AutoAssignAllowed(),
	}

	for i, t := range open {
		appt := appts[i]
		flag := policy.StaffFlag(t, appt, now)
		until := appt.ScheduledAt.Sub(now)

		queue.Items[i] = QueueEntry{
			Task:        t,
			Appointment: appt,
			Patient:     patients[i],
			Flag:        flag,
			FlagReason:  flag.Reason(),
			Countdown:   policy.Countdown(until),
			SLA:         sla.Evaluate(t.CreatedAt, t.SLAHours, now),
			Returned:    t.Returned(),
			CanAssign:   lock.CanManualAssign(items[i]),
		}

		queue.KPIs.Queue++
		hours := until.Hours()
		if hours < 0 {
			queue.KPIs.Overdue++
		} else if hours <= policy.AppointmentAtRiskHours {
			queue.KPIs.AtRisk++
		}
		if t.Returned() {
			queue.KPIs.Returned++
		}
		if t.Status == entities.TaskStatusManualRequired {
			queue.KPIs.Manual++
		}
	}

	if len(active) > 0 {
		activeAppts, _, err := s.loadDetails(ctx, l, active)
		if err != nil {
			return nil, err
		}
		resourceIDs := make([]string, len(active))
		for i, t := range active {
			resourceIDs[i] = *t.AssignedResourceID
		}
		resources, errs := l.ResourceLoader.LoadMany(ctx, resourceIDs)()
		if err := firstError(errs); err != nil {
			return nil, err
		}
		for i, t := range active {
			queue.InFlight = append(queue.InFlight, InFlightEntry{Task: t, Appointment: activeAppts[i], Resource: resources[i]})
		}
	}

	return queue, nil
}

// DriverTasks returns the tasks assigned to or accepted by the caller's resource
func (s *DashboardService) DriverTasks(ctx context.Context, actor entities.Principal) ([]DriverEntry, error) {
	if !actor.IsDriver() {
		return nil, apperrors.NewUnauthorizedError("no resource is linked to this user")
	}

	tasks, err := s.tasks.List(ctx, repositories.TaskFilter{
		Statuses:           []entities.TaskStatus{entities.TaskStatusAssigned, entities.TaskStatusAccepted},
		AssignedResourceID: actor.ResourceID,
	})
	if err != nil {
		return nil, err
	}

	appts, patients, err := s.loadDetails(ctx, s.loadersFor(ctx), tasks)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entries := make([]DriverEntry, len(tasks))
	for i, t := range tasks {
		flag := policy.DriverFlag(t, appts[i], patients[i].WheelchairRequired)
		entries[i] = DriverEntry{
			Task:        t,
			Appointment: appts[i],
			Patient:     patients[i],
			Flag:        flag,
			FlagReason:  flag.Reason(),
			Countdown:   policy.Countdown(appts[i].ScheduledAt.Sub(now)),
			CanRespond:  t.Status == entities.TaskStatusAssigned,
		}
	}
	return entries, nil
}

// ManualCandidates ranks the resources staff may pick for a task
func (s *DashboardService) ManualCandidates(ctx context.Context, taskID string) (*ManualCandidates, error) {
	if taskID == "" {
		return nil, apperrors.NewValidationError("task_id is required")
	}

	detail, err := s.tasks.GetDetail(ctx, taskID)
	if err != nil {
		return nil, err
	}

	ranked, err := s.matcher.Rank(ctx, detail.Patient.PickupZone, detail.Patient.WheelchairRequired)
	if err != nil {
		return nil, err
	}

	lock, err := ResolutionLockFor(ctx, s.tasks)
	if err != nil {
		return nil, err
	}

	return &ManualCandidates{
		Detail:     detail,
		Candidates: ranked,
		Returned:   detail.Task.Returned(),
		Manual:     detail.Task.Status == entities.TaskStatusManualRequired,
		CanAssign:  lock.CanManualAssign(policy.QueueItemFromDetail(detail)),
	}, nil
}

// loadersFor returns the request's loaders, or a fresh set when none are attached
func (s *DashboardService) loadersFor(ctx context.Context) *loaders.Loaders {
	if l := loaders.For(ctx); l != nil {
		return l
	}
	return loaders.NewLoaders(s.appointments, s.patients, s.resources)
}

// loadDetails batch-loads the appointment and patient of each task, index-aligned with tasks
func (s *DashboardService) loadDetails(ctx context.Context, l *loaders.Loaders, tasks []*entities.TransportTask) ([]*entities.Appointment, []*entities.Patient, error) {
	if len(tasks) == 0 {
		return nil, nil, nil
	}

	apptIDs := make([]string, len(tasks))
	for i, t := range tasks {
		apptIDs[i] = t.AppointmentID
	}
	appts, errs := l.AppointmentLoader.LoadMany(ctx, apptIDs)()
	if err := firstError(errs); err != nil {
		return nil, nil, err
	}

	patientIDs := make([]string, len(appts))
	for i, a := range appts {
		patientIDs[i] = a.PatientID
	}
	patients, errs := l.PatientLoader.LoadMany(ctx, patientIDs)()
	if err := firstError(errs); err != nil {
		return nil, nil, err
	}

	return appts, patients, nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			if _, ok := err.(*apperrors.AppError); ok {
				return err
			}
			return apperrors.NewInternalError(fmt.Sprintf("failed to load dashboard data: %v", err), err)
		}
	}
	return nil
}
