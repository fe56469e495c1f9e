package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	TenantID string
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Column names match the audit_logs DDL in scripts/seed.
const auditInsertSQL = `INSERT INTO audit_logs (tenant_id, actor_id, action, entity, entity_id, meta, created_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::timestamptz, NOW()))`

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool, logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{pool: pool, logger: logger}
}

// Record persists the log entry. Failures are logged here as well as
// returned: most call sites treat the audit trail as best-effort, and a
// silently dead trail must still be visible in the logs.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	args, err := auditInsertArgs(log)
	if err != nil {
		return err
	}
	if _, err := l.pool.Exec(ctx, auditInsertSQL, args...); err != nil {
		l.logger.Warn("audit record failed",
			slog.String("action", log.Action),
			slog.String("entity", log.Entity),
			slog.Any("error", err))
		return err
	}
	return nil
}

// auditInsertArgs validates the entry and maps it to the insert's
// placeholders. A zero At becomes NULL so the database clock applies.
func auditInsertArgs(log AuditLog) ([]any, error) {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return nil, errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return nil, err
	}
	var at any
	if !log.At.IsZero() {
		at = log.At
	}
	return []any{log.TenantID, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at}, nil
}
