package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

// AuditAdapter implements the AuditRepository interface
type AuditAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAuditAdapter creates a new audit adapter
func NewAuditAdapter(client *postgres.Client) repositories.AuditRepository {
	return &AuditAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

type auditRow struct {
	ID          string    `db:"id"`
	ActorUserID string    `db:"actor_user_id"`
	ActorRole   string    `db:"actor_role"`
	Action      string    `db:"action"`
	EntityType  string    `db:"entity_type"`
	EntityID    string    `db:"entity_id"`
	Metadata    []byte    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
}

// Append records an audit event
func (a *AuditAdapter) Append(ctx context.Context, event *entities.AuditEvent) error {
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return apperrors.NewValidationError("audit metadata is not serialisable")
	}

	query, args, err := a.db.Insert("audit_events").Rows(goqu.Record{
		"id":            event.ID,
		"actor_user_id": event.ActorUserID,
		"actor_role":    string(event.ActorRole),
		"action":        string(event.Action),
		"entity_type":   event.EntityType,
		"entity_id":     event.EntityID,
		"metadata":      string(raw),
		"created_at":    event.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to append audit event", err)
	}
	return nil
}

// CountByAction counts events with the given action for an entity
func (a *AuditAdapter) CountByAction(ctx context.Context, entityID string, action entities.AuditAction) (int, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).
		From("audit_events").
		Where(goqu.Ex{"entity_id": entityID, "action": string(action)}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := a.client.DBX().GetContext(ctx, &count, query, args...); err != nil {
		return 0, apperrors.NewInternalError("failed to count audit events", err)
	}
	return count, nil
}

// ListRecent returns the newest events first
func (a *AuditAdapter) ListRecent(ctx context.Context, limit int) ([]*entities.AuditEvent, error) {
	ds := a.db.Select("id", "actor_user_id", "actor_role", "action", "entity_type", "entity_id", "metadata", "created_at").
		From("audit_events").
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var rows []auditRow
	if err := a.client.DBX().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list audit events", err)
	}

	events := make([]*entities.AuditEvent, 0, len(rows))
	for _, row := range rows {
		event := &entities.AuditEvent{
			ID:          row.ID,
			ActorUserID: row.ActorUserID,
			ActorRole:   entities.Role(row.ActorRole),
			Action:      entities.AuditAction(row.Action),
			EntityType:  row.EntityType,
			EntityID:    row.EntityID,
			CreatedAt:   row.CreatedAt,
		}
		if len(row.Metadata) > 0 {
			_ = json.Unmarshal(row.Metadata, &event.Metadata)
		}
		events = append(events, event)
	}
	return events, nil
}
