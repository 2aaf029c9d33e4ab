package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"chatrelay/internal/core/domain"
)

type ContactRepo struct {
	db *sql.DB
}

func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

const contactColumns = `id, app_id, wa_id, country_code, mobile_number, name, profile_name,
	COALESCE(source, ''), is_active, last_active_at, created_at, updated_at`

func scanContact(row *sql.Row) (*domain.Contact, error) {
	var c domain.Contact
	err := row.Scan(
		&c.ID,
		&c.AppID,
		&c.WaID,
		&c.CountryCode,
		&c.MobileNumber,
		&c.Name,
		&c.ProfileName,
		&c.Source,
		&c.Active,
		&c.LastActiveAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrContactNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepo) GetByWaID(ctx context.Context, appID uuid.UUID, waID string) (*domain.Contact, error) {
	exec := executor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE app_id = $1 AND wa_id = $2
	`, appID, waID)
	return scanContact(row)
}

// GetOrCreate upserts a contact keyed by app_id + wa_id. On conflict only
// last_active_at is refreshed; stored name and profile are kept.
func (r *ContactRepo) GetOrCreate(ctx context.Context, appID uuid.UUID, waID string, attrs domain.ContactAttrs) (*domain.Contact, error) {
	exec := executor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
		INSERT INTO contacts (
			id, app_id, wa_id, country_code, mobile_number, name, profile_name,
			source, is_active, last_active_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)
		ON CONFLICT (app_id, wa_id) DO UPDATE
			SET last_active_at = EXCLUDED.last_active_at,
			    updated_at = now()
		RETURNING `+contactColumns+`
	`,
		uuid.New(),
		appID,
		waID,
		attrs.CountryCode,
		attrs.MobileNumber,
		attrs.Name,
		attrs.ProfileName,
		attrs.Source,
		attrs.LastActiveAt,
	)
	return scanContact(row)
}
