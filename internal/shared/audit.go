package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audited entities.
const (
	AuditEntityAdjustment   = "adjustment_request"
	AuditEntityClosedPeriod = "closed_period"
)

// AuditLog is one immutable row in the request lifecycle trail: who did
// what to which entity, with free-form metadata (period, nominal, decision
// reason) serialized as JSONB.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger appends to audit_logs. Rows are never updated or deleted;
// the trail is the record of when each correction was actually entered,
// independent of the month it targets.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger constructs an AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record appends one entry. Metadata is optional; actor, action and entity
// identification are not.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.ActorID == 0 {
		return errors.New("audit log requires an actor")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action, entity and entity id")
	}
	if log.At.IsZero() {
		log.At = time.Now()
	}
	var metaJSON []byte
	if log.Meta != nil {
		var err error
		if metaJSON, err = json.Marshal(log.Meta); err != nil {
			return err
		}
	}
	_, err := l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}
