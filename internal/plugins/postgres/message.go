package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/core/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, app_id, contact_id, from_number, to_number, message_type,
	payload, direction, status, sent_at, received_at, read_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID,
		&m.AppID,
		&m.ContactID,
		&m.FromNumber,
		&m.ToNumber,
		&m.Type,
		&m.Payload,
		&m.Direction,
		&m.Status,
		&m.SentAt,
		&m.ReceivedAt,
		&m.ReadAt,
		&m.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	exec := executor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO messages (
			id, app_id, contact_id, from_number, to_number, message_type,
			payload, direction, status, sent_at, received_at, read_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		msg.ID,
		msg.AppID,
		msg.ContactID,
		msg.FromNumber,
		msg.ToNumber,
		msg.Type,
		msg.Payload,
		msg.Direction,
		msg.Status,
		msg.SentAt,
		msg.ReceivedAt,
		msg.ReadAt,
		msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) Count(ctx context.Context, appID, contactID uuid.UUID) (int, error) {
	exec := executor(ctx, r.db)
	var n int
	err := exec.QueryRowContext(ctx, `
		SELECT count(*) FROM messages
		WHERE app_id = $1 AND contact_id = $2
	`, appID, contactID).Scan(&n)
	return n, err
}

func (r *MessageRepo) Page(ctx context.Context, appID, contactID uuid.UUID, offset, limit int) ([]domain.Message, error) {
	exec := executor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE app_id = $1 AND contact_id = $2
		ORDER BY created_at ASC, id ASC
		OFFSET $3 LIMIT $4
	`, appID, contactID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func (r *MessageRepo) RecentConversations(ctx context.Context, appID uuid.UUID) ([]domain.ConversationSummary, error) {
	exec := executor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT c.wa_id,
		       COALESCE(NULLIF(c.name, ''), NULLIF(c.profile_name, ''), c.wa_id),
		       m.message_type,
		       m.created_at
		FROM messages m
		JOIN (
			SELECT contact_id, max(created_at) AS last_at
			FROM messages
			WHERE app_id = $1
			GROUP BY contact_id
		) last ON m.contact_id = last.contact_id AND m.created_at = last.last_at
		JOIN contacts c ON c.id = m.contact_id
		WHERE m.app_id = $1
		ORDER BY m.created_at DESC
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var summaries []domain.ConversationSummary
	for rows.Next() {
		var s domain.ConversationSummary
		if err := rows.Scan(&s.WaID, &s.ContactName, &s.LastMessageType, &s.LastMessageAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// UpdateStatus applies a delivery status change under the monotonic rules
// and stamps the matching timestamp column.
func (r *MessageRepo) UpdateStatus(ctx context.Context, msgID uuid.UUID, status domain.Status, at time.Time) (*domain.Message, error) {
	exec := executor(ctx, r.db)
	var current domain.Status
	err := exec.QueryRowContext(ctx, `SELECT status FROM messages WHERE id = $1`, msgID).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	if !current.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrBadTransition, current, status)
	}
	var query string
	var args []any
	switch status {
	case domain.StatusDelivered:
		query = `UPDATE messages SET status = $2, received_at = $3 WHERE id = $1 AND status = $4 RETURNING ` + messageColumns
		args = []any{msgID, status, at, current}
	case domain.StatusRead:
		query = `UPDATE messages SET status = $2, read_at = $3 WHERE id = $1 AND status = $4 RETURNING ` + messageColumns
		args = []any{msgID, status, at, current}
	default:
		query = `UPDATE messages SET status = $2 WHERE id = $1 AND status = $3 RETURNING ` + messageColumns
		args = []any{msgID, status, current}
	}
	msg, err := scanMessage(exec.QueryRowContext(ctx, query, args...))
	if err == domain.ErrMessageNotFound {
		// Lost a race with a concurrent transition.
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrBadTransition, current, status)
	}
	return msg, err
}
