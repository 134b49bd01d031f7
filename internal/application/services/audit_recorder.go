package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/observability"
)

const (
	defaultAuditTimeout  = 500 * time.Millisecond
	defaultAuditPageSize = 30
	maxAuditPageSize     = 500
)

// AuditRecorder appends audit events on a best-effort basis. A failing sink is logged and
// counted but never reported to the caller.
type AuditRecorder struct {
	repo     repositories.AuditRepository
	clock    providers.Clock
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
	pageSize int
	metrics  *observability.Metrics
}

// NewAuditRecorder creates a new audit recorder
func NewAuditRecorder(repo repositories.AuditRepository, clock providers.Clock, timeout time.Duration, pageSize int, metrics *observability.Metrics) *AuditRecorder {
	if clock == nil {
		clock = providers.SystemClock{}
	}
	if timeout <= 0 {
		timeout = defaultAuditTimeout
	}
	if pageSize <= 0 {
		pageSize = defaultAuditPageSize
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "audit-sink",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.GetLogger().Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("audit sink breaker changed state")
		},
	})

	return &AuditRecorder{
		repo:     repo,
		clock:    clock,
		breaker:  breaker,
		timeout:  timeout,
		pageSize: pageSize,
		metrics:  metrics,
	}
}

// Record appends one audit event. The write outlives request cancellation but is bounded by
// the recorder timeout.
func (r *AuditRecorder) Record(ctx context.Context, actor entities.Principal, action entities.AuditAction, entityType, entityID string, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	event := &entities.AuditEvent{
		ID:          uuid.New().String(),
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Metadata:    metadata,
		CreatedAt:   r.clock.Now(),
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.repo.Append(writeCtx, event)
	})
	if err == nil {
		return
	}

	logger := observability.ComponentLogger(ctx, "audit")
	evt := logger.Warn().Err(err).
		Str("action", string(action)).
		Str("entity_type", entityType).
		Str("entity_id", entityID)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		evt = evt.Bool("breaker_open", true)
	}
	evt.Msg("audit event dropped")
	observability.RecordAuditDrop(ctx, r.metrics, string(action))
}

// Recent returns the latest audit events, newest first. A non-positive limit uses the page size.
func (r *AuditRecorder) Recent(ctx context.Context, limit int) ([]*entities.AuditEvent, error) {
	if limit <= 0 {
		limit = r.pageSize
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	return r.repo.ListRecent(ctx, limit)
}
