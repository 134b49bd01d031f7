package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/lifecycle"
	"github.com/zatekoja/clearlink/backend/internal/domain/policy"
	"github.com/zatekoja/clearlink/backend/internal/domain/priority"
	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/domain/sla"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

// OutcomeResult classifies how a dispatch command ended
type OutcomeResult string

const (
	OutcomeSuccess  OutcomeResult = "success"
	OutcomeNoop     OutcomeResult = "noop"
	OutcomeRejected OutcomeResult = "rejected"
)

// Outcome reasons
const (
	ReasonForbidden      = "forbidden"
	ReasonResolutionLock = "resolution_lock"
	ReasonNotFound       = "not_found"
	ReasonConflict       = "conflict"
	ReasonStale          = "stale"
	ReasonCapability     = "capability_violation"
	ReasonQueueEmpty     = "queue_empty"
)

// Outcome is the result of a dispatch command
type Outcome struct {
	Result     OutcomeResult       `json:"result"`
	TaskID     string              `json:"task_id,omitempty"`
	Status     entities.TaskStatus `json:"status,omitempty"`
	ResourceID string              `json:"resource_id,omitempty"`
	Reason     string              `json:"reason,omitempty"`
}

// Succeeded reports whether the command committed a transition
func (o Outcome) Succeeded() bool {
	return o.Result == OutcomeSuccess
}

// RescheduleShift is how far a reschedule pushes the appointment
const RescheduleShift = 24 * time.Hour

const maxMissedHistory = 25

// CreateTransportRequestInput is the staff input for a new transport request
type CreateTransportRequestInput struct {
	PickupZone    entities.Zone         `json:"pickup_zone"`
	MobilityNeed  entities.MobilityNeed `json:"mobility_need"`
	ExternalRef   string                `json:"external_ref,omitempty"`
	Destination   entities.Destination  `json:"destination"`
	ScheduledAt   time.Time             `json:"scheduled_at"`
	UrgencyTier   int                   `json:"urgency_tier"`
	DistanceBand  int                   `json:"distance_band"`
	WinterMode    bool                  `json:"winter_mode"`
	MissedHistory int                   `json:"missed_history"`
	ReasonCode    string                `json:"reason_code"`
}

// Validate checks the input before anything is persisted
func (in *CreateTransportRequestInput) Validate() error {
	var problems []string
	if !in.PickupZone.IsPickup() {
		problems = append(problems, fmt.Sprintf("pickup_zone %q is not a pickup zone", in.PickupZone))
	}
	if !in.MobilityNeed.Valid() {
		problems = append(problems, fmt.Sprintf("mobility_need %q is invalid", in.MobilityNeed))
	}
	if !in.Destination.Valid() {
		problems = append(problems, fmt.Sprintf("destination %q is invalid", in.Destination))
	}
	if in.ScheduledAt.IsZero() {
		problems = append(problems, "scheduled_at is required")
	}
	if in.UrgencyTier < 0 || in.UrgencyTier > 2 {
		problems = append(problems, "urgency_tier must be between 0 and 2")
	}
	if in.DistanceBand < 0 || in.DistanceBand > 2 {
		problems = append(problems, "distance_band must be between 0 and 2")
	}
	if in.MissedHistory < 0 || in.MissedHistory > maxMissedHistory {
		problems = append(problems, fmt.Sprintf("missed_history must be between 0 and %d", maxMissedHistory))
	}
	if n := len(strings.TrimSpace(in.ReasonCode)); n < 2 || n > 64 {
		problems = append(problems, "reason_code must be 2 to 64 characters")
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError(strings.Join(problems, "; "))
	}
	return nil
}

// CreateResult is what CreateTransportRequest persisted
type CreateResult struct {
	Patient     *entities.Patient       `json:"patient"`
	Appointment *entities.Appointment   `json:"appointment"`
	Task        *entities.TransportTask `json:"task"`
	Breakdown   priority.Breakdown      `json:"breakdown"`
}

// DispatchService drives transport tasks through their lifecycle
type DispatchService struct {
	tasks     repositories.TransportTaskRepository
	resources repositories.ResourceRepository
	matcher   *ResourceMatcher
	audit     *AuditRecorder
	events    providers.EventBus
	risk      *sla.Evaluator
	metrics   *observability.Metrics
}

// NewDispatchService creates a new dispatch service. events and metrics may be nil.
func NewDispatchService(
	tasks repositories.TransportTaskRepository,
	resources repositories.ResourceRepository,
	matcher *ResourceMatcher,
	audit *AuditRecorder,
	events providers.EventBus,
	clock providers.Clock,
	metrics *observability.Metrics,
) *DispatchService {
	return &DispatchService{
		tasks:     tasks,
		resources: resources,
		matcher:   matcher,
		audit:     audit,
		events:    events,
		risk:      sla.NewEvaluator(clock),
		metrics:   metrics,
	}
}

// CreateTransportRequest scores a new appointment and opens a REQUESTED task for it
func (s *DispatchService) CreateTransportRequest(ctx context.Context, actor entities.Principal, in CreateTransportRequestInput) (*CreateResult, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewUnauthorizedError("only staff may create transport requests")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.risk.Now()
	patient := entities.NewPatient(uuid.New().String(), in.PickupZone, in.MobilityNeed, optionalString(in.ExternalRef), now)

	breakdown := priority.Compute(priority.Input{
		UrgencyTier:           in.UrgencyTier,
		HoursUntilAppointment: max(0, in.ScheduledAt.Sub(now).Hours()),
		DistanceBand:          in.DistanceBand,
		WinterMode:            in.WinterMode,
		MobilityNeed:          in.MobilityNeed,
		MissedHistory:         in.MissedHistory,
	})
	raw, err := breakdown.JSON()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode priority breakdown", err)
	}

	appt := &entities.Appointment{
		ID:                uuid.New().String(),
		PatientID:         patient.ID,
		Destination:       in.Destination,
		ScheduledAt:       in.ScheduledAt.UTC(),
		UrgencyTier:       in.UrgencyTier,
		DistanceBand:      in.DistanceBand,
		WinterMode:        in.WinterMode,
		MissedHistory:     in.MissedHistory,
		ReasonCode:        strings.TrimSpace(in.ReasonCode),
		PriorityScore:     breakdown.Total,
		PriorityBreakdown: raw,
		Status:            entities.AppointmentStatusScheduled,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	task := &entities.TransportTask{
		ID:            uuid.New().String(),
		AppointmentID: appt.ID,
		Status:        entities.TaskStatusRequested,
		SLAHours:      priority.SLAHours(breakdown.Total),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.tasks.CreateRequest(ctx, &entities.NewTransportRequest{Patient: patient, Appointment: appt, Task: task}); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, entities.AuditAppointmentCreated, entities.EntityTypeAppointment, appt.ID, map[string]interface{}{
		"taskId":        task.ID,
		"priorityScore": breakdown.Total,
		"slaHours":      task.SLAHours,
		"reasonCode":    appt.ReasonCode,
		"breakdown":     breakdown.Points,
	})
	s.publish(ctx, entities.NewTaskEvent(task.ID, entities.AuditAppointmentCreated, "", task.Status, "", now), "")

	observability.ComponentLogger(ctx, "dispatch").Info().
		Str("task_id", task.ID).
		Int("priority_score", breakdown.Total).
		Int("sla_hours", task.SLAHours).
		Msg("transport request created")

	return &CreateResult{Patient: patient, Appointment: appt, Task: task, Breakdown: breakdown}, nil
}

// AutoAssignTopTask assigns the highest-priority REQUESTED task to the best ranked resource,
// or moves it to MANUAL_REQUIRED when no resource can serve it
func (s *DispatchService) AutoAssignTopTask(ctx context.Context, actor entities.Principal) (Outcome, error) {
	event := lifecycle.EventAutoAssign
	if !actor.IsStaff() {
		return s.reject(ctx, event, "", ReasonForbidden), nil
	}

	lock, err := ResolutionLockFor(ctx, s.tasks)
	if err != nil {
		return Outcome{}, err
	}
	if !lock.AutoAssignAllowed() {
		return s.reject(ctx, event, "", ReasonResolutionLock), nil
	}

	top, err := s.tasks.List(ctx, repositories.TaskFilter{Statuses: []entities.TaskStatus{entities.TaskStatusRequested}, Limit: 1})
	if err != nil {
		return Outcome{}, err
	}
	if len(top) == 0 {
		s.count(ctx, event, OutcomeNoop)
		return Outcome{Result: OutcomeNoop, Reason: ReasonQueueEmpty}, nil
	}

	detail, err := s.tasks.GetDetail(ctx, top[0].ID)
	if err != nil {
		return s.refuse(ctx, event, top[0].ID, err)
	}
	pickup := detail.Patient.PickupZone
	wheelchair := detail.Patient.WheelchairRequired

	best, err := s.matcher.Best(ctx, pickup, wheelchair)
	if err != nil {
		return Outcome{}, err
	}

	cmd := lifecycle.Command{Event: lifecycle.EventNoCandidate, WheelchairRequired: wheelchair, At: s.risk.Now()}
	metadata := map[string]interface{}{"pickupZone": pickup, "needWheelchair": wheelchair}
	if best != nil {
		cmd.Event = lifecycle.EventAutoAssign
		cmd.Resource = best.Resource
		metadata = map[string]interface{}{
			"pickupZone":       pickup,
			"chosenResourceId": best.Resource.ID,
			"distanceKm":       best.DistanceKm,
			"reliabilityScore": best.Reliability,
		}
	}

	step, err := lifecycle.Plan(detail.Task, cmd)
	if err != nil {
		return s.refuse(ctx, cmd.Event, detail.Task.ID, err)
	}
	return s.commit(ctx, actor, step, func(entities.AuditAction) map[string]interface{} { return metadata })
}

// ManualAssign assigns a task to a staff-selected resource, re-validating capability
func (s *DispatchService) ManualAssign(ctx context.Context, actor entities.Principal, taskID, resourceID string) (Outcome, error) {
	event := lifecycle.EventManualAssign
	if !actor.IsStaff() {
		return s.reject(ctx, event, taskID, ReasonForbidden), nil
	}
	if err := requireIDs(map[string]string{"task_id": taskID, "resource_id": resourceID}); err != nil {
		return Outcome{}, err
	}

	detail, err := s.tasks.GetDetail(ctx, taskID)
	if err != nil {
		return s.refuse(ctx, event, taskID, err)
	}

	lock, err := ResolutionLockFor(ctx, s.tasks)
	if err != nil {
		return Outcome{}, err
	}
	if !lock.CanManualAssign(policy.QueueItemFromDetail(detail)) {
		return s.reject(ctx, event, taskID, ReasonResolutionLock), nil
	}

	resource, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return s.refuse(ctx, event, taskID, err)
	}

	step, err := lifecycle.Plan(detail.Task, lifecycle.Command{
		Event:              event,
		Resource:           resource,
		WheelchairRequired: detail.Patient.WheelchairRequired,
		At:                 s.risk.Now(),
	})
	if err != nil {
		return s.refuse(ctx, event, taskID, err)
	}
	return s.commit(ctx, actor, step, func(entities.AuditAction) map[string]interface{} {
		return map[string]interface{}{"resourceId": resource.ID, "pickupZone": detail.Patient.PickupZone}
	})
}

// AcceptTask records the acting driver's acceptance of a task assigned to them
func (s *DispatchService) AcceptTask(ctx context.Context, actor entities.Principal, taskID string) (Outcome, error) {
	event := lifecycle.EventAccept
	if !actor.IsDriver() {
		return s.reject(ctx, event, taskID, ReasonForbidden), nil
	}
	if err := requireIDs(map[string]string{"task_id": taskID}); err != nil {
		return Outcome{}, err
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return s.refuse(ctx, event, taskID, err)
	}

	step, err := lifecycle.Plan(task, lifecycle.Command{Event: event, ActingResourceID: actor.ResourceID, At: s.risk.Now()})
	if err != nil {
		return s.refuse(ctx, event, taskID, err)
	}
	return s.commit(ctx, actor, step, func(entities.AuditAction) map[string]interface{} {
		return map[string]interface{}{"resourceId": actor.ResourceID}
	})
}

// DeclineTask returns a task to the queue, escalating it to manual resolution when the
// decline policy says so
func (s *DispatchService) DeclineTask(ctx context.Context, actor entities.Principal, taskID string) (Outcome, error) {
	event := lifecycle.EventDecline
	if !actor.IsDriver() {
		return s.reject(ctx, event, taskID, ReasonForbidden), nil
	}
	if err := requireIDs(map[string]string{"task_id": taskID}); err != nil {
		return Outcome{}, err
	}

	detail, err := s.tasks.GetDetail(ctx, taskID)
	if err != nil {
		return s.refuse(ctx, event, taskID, err)
	}
	task := detail.Task

	risk := s.risk.Evaluate(task.CreatedAt, task.SLAHours)
	verdict := policy.EvaluateDecline(policy.DeclineInput{
		Risk:          risk,
		PriorityScore: detail.Appointment.PriorityScore,
		PriorDeclines: task.DeclineCount,
	})

	step, err := lifecycle.Plan(task, lifecycle.Command{
		Event:            event,
		ActingResourceID: actor.ResourceID,
		Escalate:         verdict.Escalate,
		At:               s.risk.Now(),
	})
	if err != nil {
		return s.refuse(ctx, event, taskID, err)
	}

	declineCount := task.DeclineCount + 1
	outcome, err := s.commit(ctx, actor, step, func(action entities.AuditAction) map[string]interface{} {
		if action == entities.AuditAutoEscalatedAfterDecline {
			return map[string]interface{}{
				"declineCount":  declineCount,
				"priorityScore": detail.Appointment.PriorityScore,
				"slaHours":      risk.SLAHours,
				"slaIsOverdue":  risk.Overdue,
				"slaIsAtRisk":   risk.AtRisk,
				"rule":          verdict.Rule,
			}
		}
		return map[string]interface{}{
			"resourceId":    actor.ResourceID,
			"declineCount":  declineCount,
			"priorityScore": detail.Appointment.PriorityScore,
			"slaHours":      risk.SLAHours,
			"slaIsOverdue":  risk.Overdue,
			"slaIsAtRisk":   risk.AtRisk,
			"escalated":     verdict.Escalate,
			"newStatus":     step.To,
		}
	})
	if err == nil && outcome.Succeeded() && verdict.Escalate {
		observability.RecordEscalation(ctx, s.metrics, string(verdict.Rule))
	}
	return outcome, err
}

// EscalateTask moves a REQUESTED or ASSIGNED task to MANUAL_REQUIRED
func (s *DispatchService) EscalateTask(ctx context.Context, actor entities.Principal, taskID string) (Outcome, error) {
	event := lifecycle.EventEscalate
	if !actor.IsStaff() {
		return s.reject(ctx, event, taskID, ReasonForbidden), nil
	}
	if err := requireIDs(map[string]string{"task_id": taskID}); err != nil {
		return Outcome{}, err
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return s.refuse(ctx, event, taskID, err)
	}

	step, err := lifecycle.Plan(task, lifecycle.Command{Event: event, At: s.risk.Now()})
	if err != nil {
		return s.refuse(ctx, event, taskID, err)
	}
	if task.AssignedResourceID != nil {
		step.ResourceID = *task.AssignedResourceID
	}

	outcome, err := s.commit(ctx, actor, step, func(entities.AuditAction) map[string]interface{} {
		return map[string]interface{}{"previousStatus": step.From}
	})
	if err == nil && outcome.Succeeded() {
		observability.RecordEscalation(ctx, s.metrics, "staff")
	}
	return outcome, err
}

// RescheduleTask pushes the appointment back a day, rescores it and resets the task to REQUESTED
func (s *DispatchService) RescheduleTask(ctx context.Context, actor entities.Principal, taskID string) (Outcome, error) {
	event := lifecycle.EventReschedule
	if !actor.IsStaff() {
		return s.reject(ctx, event, taskID, ReasonForbidden), nil
	}
	if err := requireIDs(map[string]string{"task_id": taskID}); err != nil {
		return Outcome{}, err
	}

	detail, err := s.tasks.GetDetail(ctx, taskID)
	if err != nil {
		return s.refuse(ctx, event, taskID, err)
	}
	appt := detail.Appointment
	now := s.risk.Now()

	scheduledAt := appt.ScheduledAt.Add(RescheduleShift)
	breakdown := priority.Compute(priority.Input{
		UrgencyTier:           appt.UrgencyTier,
		HoursUntilAppointment: max(0, scheduledAt.Sub(now).Hours()),
		DistanceBand:          appt.DistanceBand,
		WinterMode:            appt.WinterMode,
		MobilityNeed:          detail.Patient.MobilityNeed,
		MissedHistory:         appt.MissedHistory,
	})
	raw, err := breakdown.JSON()
	if err != nil {
		return Outcome{}, apperrors.NewInternalError("failed to encode priority breakdown", err)
	}
	slaHours := priority.SLAHours(breakdown.Total)

	step, err := lifecycle.Plan(detail.Task, lifecycle.Command{
		Event:    event,
		SLAHours: slaHours,
		Appointment: &entities.AppointmentUpdate{
			AppointmentID:     appt.ID,
			ScheduledAt:       scheduledAt,
			Status:            entities.AppointmentStatusRescheduled,
			PriorityScore:     breakdown.Total,
			PriorityBreakdown: raw,
		},
		At: now,
	})
	if err != nil {
		return s.refuse(ctx, event, taskID, err)
	}
	if detail.Task.AssignedResourceID != nil {
		step.ResourceID = *detail.Task.AssignedResourceID
	}

	return s.commit(ctx, actor, step, func(entities.AuditAction) map[string]interface{} {
		return map[string]interface{}{
			"appointmentId":  appt.ID,
			"newScheduledAt": scheduledAt,
			"priorityScore":  breakdown.Total,
			"slaHours":       slaHours,
		}
	})
}

// commit applies a planned step. A lost compare-and-swap is reported as a stale no-op.
func (s *DispatchService) commit(ctx context.Context, actor entities.Principal, step *lifecycle.Step, metadata func(entities.AuditAction) map[string]interface{}) (Outcome, error) {
	logger := observability.ComponentLogger(ctx, "dispatch")
	taskID := step.Transition.TaskID

	applied, err := s.tasks.ApplyTransition(ctx, step.Transition)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return s.refuse(ctx, step.Event, taskID, err)
		}
		s.count(ctx, step.Event, "error")
		logger.Error().Err(err).Str("task_id", taskID).Str("event", string(step.Event)).Msg("failed to apply transition")
		return Outcome{}, err
	}
	if !applied {
		s.count(ctx, step.Event, OutcomeNoop)
		logger.Info().Str("task_id", taskID).Str("event", string(step.Event)).Msg("transition lost to a concurrent update")
		return Outcome{Result: OutcomeNoop, TaskID: taskID, Reason: ReasonStale}, nil
	}

	for _, action := range step.Actions {
		s.audit.Record(ctx, actor, action, entities.EntityTypeTransportTask, taskID, metadata(action))
	}
	last := step.Actions[len(step.Actions)-1]
	s.publish(ctx, entities.NewTaskEvent(taskID, last, step.From, step.To, step.ResourceID, step.Transition.At), step.ResourceID)

	s.count(ctx, step.Event, OutcomeSuccess)
	logger.Info().
		Str("task_id", taskID).
		Str("event", string(step.Event)).
		Str("from", string(step.From)).
		Str("to", string(step.To)).
		Str("resource_id", step.ResourceID).
		Msg("task transition committed")

	outcome := Outcome{Result: OutcomeSuccess, TaskID: taskID, Status: step.To}
	if step.Transition.NewResourceID != nil {
		outcome.ResourceID = *step.Transition.NewResourceID
	}
	return outcome, nil
}

// refuse converts a guard failure into an outcome. Validation and infrastructure errors are
// returned as errors.
func (s *DispatchService) refuse(ctx context.Context, event lifecycle.Event, taskID string, err error) (Outcome, error) {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeNotFound:
		s.count(ctx, event, OutcomeNoop)
		return Outcome{Result: OutcomeNoop, TaskID: taskID, Reason: ReasonNotFound}, nil
	case apperrors.ErrorTypeConflict:
		s.count(ctx, event, OutcomeNoop)
		observability.ComponentLogger(ctx, "dispatch").Debug().Err(err).Str("task_id", taskID).Msg("command not applicable")
		return Outcome{Result: OutcomeNoop, TaskID: taskID, Reason: ReasonConflict}, nil
	case apperrors.ErrorTypeCapability:
		observability.ComponentLogger(ctx, "dispatch").Warn().Err(err).Str("task_id", taskID).Msg("capability constraint rejected assignment")
		return s.reject(ctx, event, taskID, ReasonCapability), nil
	default:
		return Outcome{}, err
	}
}

func (s *DispatchService) reject(ctx context.Context, event lifecycle.Event, taskID, reason string) Outcome {
	s.count(ctx, event, OutcomeRejected)
	return Outcome{Result: OutcomeRejected, TaskID: taskID, Reason: reason}
}

func (s *DispatchService) count(ctx context.Context, event lifecycle.Event, result OutcomeResult) {
	observability.RecordTransition(ctx, s.metrics, string(event), string(result))
}

// publish fans a task event out to the queue channel and, when set, the resource's channel
func (s *DispatchService) publish(ctx context.Context, event *entities.TaskEvent, resourceID string) {
	if s.events == nil {
		return
	}
	channels := []string{providers.EventChannelQueueUpdates}
	if resourceID != "" {
		channels = append(channels, providers.GetResourceChannel(resourceID))
	}
	for _, ch := range channels {
		if err := s.events.Publish(ctx, ch, event); err != nil {
			observability.ComponentLogger(ctx, "dispatch").Warn().Err(err).
				Str("channel", ch).
				Str("task_id", event.TaskID).
				Msg("failed to publish task event")
		}
	}
}

func requireIDs(ids map[string]string) error {
	for name, id := range ids {
		if strings.TrimSpace(id) == "" {
			return apperrors.NewValidationError(name + " is required")
		}
	}
	return nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// SetResourceActive takes a resource in or out of the auto-assign pool.
// Tasks already held by the resource are left alone.
func (s *DispatchService) SetResourceActive(ctx context.Context, actor entities.Principal, resourceID string, active bool) (*entities.Resource, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewUnauthorizedError("only staff may change resource availability")
	}
	if err := requireIDs(map[string]string{"resource_id": resourceID}); err != nil {
		return nil, err
	}

	if err := s.resources.SetActive(ctx, resourceID, active); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, entities.AuditResourceAvailability, entities.EntityTypeResource, resourceID, map[string]interface{}{
		"isActive": active,
	})
	observability.ComponentLogger(ctx, "dispatch").Info().
		Str("resource_id", resourceID).
		Bool("is_active", active).
		Msg("resource availability changed")

	return s.resources.GetByID(ctx, resourceID)
}
