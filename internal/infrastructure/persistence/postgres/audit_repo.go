package postgres

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/audit"
)

// AuditRepository writes audit-log rows. It implements audit.Sink, so a
// failed insert is logged and swallowed; audit must never fail the operation
// it describes.
type AuditRepository struct {
	db     Querier
	logger *slog.Logger
}

// NewAuditRepository creates an audit sink.
func NewAuditRepository(db Querier, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Record implements audit.Sink.
func (r *AuditRepository) Record(ctx context.Context, e audit.Entry) {
	var detail []byte
	if e.Detail != nil {
		var err error
		detail, err = json.Marshal(e.Detail)
		if err != nil {
			r.logger.Warn("audit detail marshal failed", "action", e.Action, "error", err)
			detail = nil
		}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_log (actor_id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ActorID, e.Action, e.EntityType, e.EntityID, detail, e.CreatedAt)
	if err != nil {
		r.logger.Warn("audit write failed", "action", e.Action, "entity", e.EntityType, "error", err)
	}
}
