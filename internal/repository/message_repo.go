package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// MessageRepository is the append-only conversation log
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append stores a message
func (r *MessageRepository) Append(ctx context.Context, message *domain.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	var sourcesJSON []byte
	if len(message.Sources) > 0 {
		sourcesJSON, _ = json.Marshal(message.Sources)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, tenant_id, user_id, role, content, tool_call_id, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, message.ID, message.TenantID, message.UserID, string(message.Role), message.Content,
		message.ToolCallID, string(sourcesJSON), message.CreatedAt)

	return err
}

// Recent returns the latest limit messages of a user in chronological order
func (r *MessageRepository) Recent(ctx context.Context, tenantID, userID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, role, content, tool_call_id, sources, created_at FROM (
			SELECT rowid AS seq, * FROM messages
			WHERE tenant_id = ? AND user_id = ?
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC
	`, tenantID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message := &domain.Message{}
		var role string
		var userID, toolCallID, sourcesJSON sql.NullString

		if err := rows.Scan(&message.ID, &message.TenantID, &userID, &role,
			&message.Content, &toolCallID, &sourcesJSON, &message.CreatedAt); err != nil {
			return nil, err
		}

		message.Role = domain.Role(role)
		message.UserID = userID.String
		message.ToolCallID = toolCallID.String
		if sourcesJSON.Valid && sourcesJSON.String != "" {
			json.Unmarshal([]byte(sourcesJSON.String), &message.Sources)
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

// CountChats returns the total number of user messages (chats)
func (r *MessageRepository) CountChats(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE role = 'user'`).Scan(&count)
	return count, err
}
