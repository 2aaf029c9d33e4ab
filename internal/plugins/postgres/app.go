package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"chatrelay/internal/core/domain"
)

type AppRepo struct {
	db *sql.DB
}

func NewAppRepo(db *sql.DB) *AppRepo {
	return &AppRepo{db: db}
}

const appColumns = `id, business_name, whatsapp_number, is_active, is_whatsapp_verified, created_at, updated_at`

func scanApp(row *sql.Row) (*domain.App, error) {
	var a domain.App
	err := row.Scan(
		&a.ID,
		&a.BusinessName,
		&a.WhatsappNumber,
		&a.Active,
		&a.Verified,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAppNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AppRepo) GetApp(ctx context.Context, id uuid.UUID) (*domain.App, error) {
	exec := executor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
		SELECT `+appColumns+`
		FROM apps
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanApp(row)
}

func (r *AppRepo) GetAppByNumber(ctx context.Context, whatsappNumber string) (*domain.App, error) {
	exec := executor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
		SELECT `+appColumns+`
		FROM apps
		WHERE whatsapp_number = $1 AND deleted_at IS NULL
	`, whatsappNumber)
	return scanApp(row)
}
