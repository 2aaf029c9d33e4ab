package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"chatrelay/internal/core/domain"
)

type TagRepo struct {
	db *sql.DB
}

func NewTagRepo(db *sql.DB) *TagRepo {
	return &TagRepo{db: db}
}

func (r *TagRepo) ListByApp(ctx context.Context, appID uuid.UUID) ([]domain.Tag, error) {
	exec := executor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, app_id, name, status, created_at, updated_at
		FROM tags
		WHERE app_id = $1
		ORDER BY name ASC
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.AppID, &t.Name, &t.Enabled, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *TagRepo) Create(ctx context.Context, tag *domain.Tag) error {
	exec := executor(ctx, r.db)
	return exec.QueryRowContext(ctx, `
		INSERT INTO tags (id, app_id, name, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, tag.ID, tag.AppID, tag.Name, tag.Enabled).Scan(&tag.CreatedAt, &tag.UpdatedAt)
}

func (r *TagRepo) SetEnabled(ctx context.Context, tagID uuid.UUID, enabled bool) error {
	return r.execTagUpdate(ctx, `
		UPDATE tags SET status = $2, updated_at = now() WHERE id = $1
	`, tagID, enabled)
}

func (r *TagRepo) Delete(ctx context.Context, tagID uuid.UUID) error {
	exec := executor(ctx, r.db)
	if _, err := exec.ExecContext(ctx, `DELETE FROM contact_tags WHERE tag_id = $1`, tagID); err != nil {
		return err
	}
	return r.execTagUpdate(ctx, `DELETE FROM tags WHERE id = $1`, tagID)
}

func (r *TagRepo) AssignToContact(ctx context.Context, tagID, contactID uuid.UUID) error {
	exec := executor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO contact_tags (contact_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, contactID, tagID)
	return err
}

func (r *TagRepo) RemoveFromContact(ctx context.Context, tagID, contactID uuid.UUID) error {
	exec := executor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		DELETE FROM contact_tags WHERE contact_id = $1 AND tag_id = $2
	`, contactID, tagID)
	return err
}

func (r *TagRepo) execTagUpdate(ctx context.Context, query string, args ...any) error {
	exec := executor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTagNotFound
	}
	return nil
}
