package repositories

import (
	"context"

	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
)

// AuditRepository defines the interface for the append-only audit trail
type AuditRepository interface {
	// Append records an audit event
	Append(ctx context.Context, event *entities.AuditEvent) error

	// CountByAction counts events with the given action for an entity
	CountByAction(ctx context.Context, entityID string, action entities.AuditAction) (int, error)

	// ListRecent returns the newest events first
	ListRecent(ctx context.Context, limit int) ([]*entities.AuditEvent, error)
}
