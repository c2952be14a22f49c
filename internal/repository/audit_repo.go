package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// AuditRepository is the append-only tool invocation log
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AppendInvocation records one executed tool call
func (r *AuditRepository) AppendInvocation(ctx context.Context, inv *domain.ToolInvocation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tool_invocations (id, tenant_id, user_id, tool_name, arguments, ok, failure_kind, message, result, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.TenantID, inv.UserID, inv.ToolName, string(inv.Arguments), inv.OK,
		inv.FailureKind, inv.Message, string(inv.Result), inv.DurationMS, inv.CreatedAt)

	return err
}

// ListInvocations returns a tenant's most recent tool invocations
func (r *AuditRepository) ListInvocations(ctx context.Context, tenantID string, limit int) ([]*domain.ToolInvocation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, tool_name, arguments, ok, failure_kind, message, result, duration_ms, created_at
		FROM tool_invocations WHERE tenant_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invocations []*domain.ToolInvocation
	for rows.Next() {
		inv := &domain.ToolInvocation{}
		var userID, args, kind, message, result sql.NullString

		if err := rows.Scan(&inv.ID, &inv.TenantID, &userID, &inv.ToolName, &args, &inv.OK,
			&kind, &message, &result, &inv.DurationMS, &inv.CreatedAt); err != nil {
			return nil, err
		}

		inv.UserID = userID.String
		inv.FailureKind = kind.String
		inv.Message = message.String
		if args.String != "" {
			inv.Arguments = []byte(args.String)
		}
		if result.String != "" {
			inv.Result = []byte(result.String)
		}
		invocations = append(invocations, inv)
	}

	return invocations, rows.Err()
}

// Count returns the number of recorded tool invocations
func (r *AuditRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_invocations`).Scan(&count)
	return count, err
}
