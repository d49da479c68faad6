// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ceylongems/backoffice/internal/models"
)

// ProfileRepository defines the interface for user profile operations.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	List(ctx context.Context, limit int) ([]*models.UserProfile, error)
	Update(ctx context.Context, profile *models.UserProfile) error
	SetRole(ctx context.Context, userID string, role models.Role) error
	SetActive(ctx context.Context, userID string, active bool) error
	UpdateLastLogin(ctx context.Context, userID string) error
	CountActiveAdmins(ctx context.Context) (int64, error)
}

type profileRepo struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepo{pool: pool}
}

const profileColumns = `user_id, email, first_name, last_name, phone, role, is_active, two_factor_enabled, last_login_at, created_at, updated_at`

// scanProfile scans one row and normalizes the role to its canonical
// casing, so every caller compares canonical values.
func scanProfile(row pgx.Row) (*models.UserProfile, error) {
	var p models.UserProfile
	var role string
	err := row.Scan(
		&p.UserID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.Phone,
		&role,
		&p.IsActive,
		&p.TwoFactorEnabled,
		&p.LastLoginAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Role = models.NormalizeRole(role)
	return &p, nil
}

// GetByUserID retrieves a profile by identity provider user id.
// Returns nil without error when no profile exists.
func (r *profileRepo) GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByEmail retrieves a profile by email.
func (r *profileRepo) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE email = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List retrieves profiles ordered by creation time.
func (r *profileRepo) List(ctx context.Context, limit int) ([]*models.UserProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query := `SELECT ` + profileColumns + ` FROM user_profiles ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*models.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Update persists the mutable profile fields.
func (r *profileRepo) Update(ctx context.Context, profile *models.UserProfile) error {
	query := `
		UPDATE user_profiles
		SET email = $2, first_name = $3, last_name = $4, phone = $5,
		    two_factor_enabled = $6, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		profile.UserID,
		profile.Email,
		profile.FirstName,
		profile.LastName,
		profile.Phone,
		profile.TwoFactorEnabled,
	).Scan(&profile.UpdatedAt)
}

// SetRole updates a profile's role. The value is stored in canonical
// casing regardless of what the caller passed.
func (r *profileRepo) SetRole(ctx context.Context, userID string, role models.Role) error {
	query := `UPDATE user_profiles SET role = $2, updated_at = NOW() WHERE user_id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, models.NormalizeRole(string(role)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetActive toggles a profile's active flag.
func (r *profileRepo) SetActive(ctx context.Context, userID string, active bool) error {
	query := `UPDATE user_profiles SET is_active = $2, updated_at = NOW() WHERE user_id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateLastLogin stamps the last login time to now.
func (r *profileRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	query := `UPDATE user_profiles SET last_login_at = $2, updated_at = NOW() WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, query, userID, time.Now())
	return err
}

// CountActiveAdmins counts active privileged profiles.
func (r *profileRepo) CountActiveAdmins(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM user_profiles WHERE is_active AND role IN ($1, $2, $3)`
	var count int64
	err := r.pool.QueryRow(ctx, query,
		models.RoleSuperAdmin, models.RoleAdmin, models.RoleModerator,
	).Scan(&count)
	return count, err
}

// Compile-time check to ensure profileRepo implements ProfileRepository.
var _ ProfileRepository = (*profileRepo)(nil)
