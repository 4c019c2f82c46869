package profiles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanapbuhay/backend/internal/models"
)

const profileColumns = `id, account_id, profile_type, given_name, family_name, contact, birth_date, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) InsertProfile(ctx context.Context, p *models.Profile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (id, account_id, profile_type, given_name, family_name, contact, birth_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.AccountID, p.ProfileType, p.GivenName, p.FamilyName, p.Contact, p.BirthDate)
	return err
}

func (r *Repository) ProfileByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *Repository) ProfileByAccountType(ctx context.Context, accountID uuid.UUID, profileType string) (*models.Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+profileColumns+` FROM profiles WHERE account_id = $1 AND profile_type = $2
	`, accountID, profileType)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *Repository) ProfilesByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Profile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+` FROM profiles WHERE account_id = $1 ORDER BY created_at ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *Repository) UpsertWorkerDetails(ctx context.Context, d *models.WorkerProfile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO worker_profiles (profile_id, bio, hourly_rate_centavos, daily_rate_centavos, specialization_ids)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (profile_id) DO UPDATE
		SET bio = EXCLUDED.bio, hourly_rate_centavos = EXCLUDED.hourly_rate_centavos,
			daily_rate_centavos = EXCLUDED.daily_rate_centavos, specialization_ids = EXCLUDED.specialization_ids
	`, d.ProfileID, d.Bio, d.HourlyRateCentavos, d.DailyRateCentavos, d.SpecializationIDs)
	return err
}

func (r *Repository) UpsertAgency(ctx context.Context, a *models.Agency) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO agencies (profile_id, business_name, business_info)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id) DO UPDATE
		SET business_name = EXCLUDED.business_name, business_info = EXCLUDED.business_info
	`, a.ProfileID, a.BusinessName, a.BusinessInfo)
	return err
}

func (r *Repository) Specializations(ctx context.Context) ([]*models.Specialization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, min_rate_centavos, skill_level, description, created_at
		FROM specializations ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Specialization
	for rows.Next() {
		var sp models.Specialization
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.MinRateCentavos, &sp.SkillLevel, &sp.Description, &sp.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &sp)
	}
	return list, rows.Err()
}

func (r *Repository) SpecializationByID(ctx context.Context, id uuid.UUID) (*models.Specialization, error) {
	var sp models.Specialization
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, min_rate_centavos, skill_level, description, created_at
		FROM specializations WHERE id = $1
	`, id).Scan(&sp.ID, &sp.Name, &sp.MinRateCentavos, &sp.SkillLevel, &sp.Description, &sp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (r *Repository) InsertSpecialization(ctx context.Context, sp *models.Specialization) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO specializations (id, name, min_rate_centavos, skill_level, description)
		VALUES ($1, $2, $3, $4, $5)
	`, sp.ID, sp.Name, sp.MinRateCentavos, sp.SkillLevel, sp.Description)
	return err
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.AccountID, &p.ProfileType, &p.GivenName, &p.FamilyName, &p.Contact,
		&p.BirthDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
