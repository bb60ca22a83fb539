package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ideaflow/internal/model"
)

type ProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProfileRepository(db *pgxpool.Pool, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{db: db, logger: logger}
}

const profileColumns = `id, email, full_name, role, COALESCE(department, ''), specializations,
        is_active, email_confirmed, password_hash, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p     model.Profile
		role  string
		specs []string
	)
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&role,
		&p.Department,
		&specs,
		&p.IsActive,
		&p.EmailConfirmed,
		&p.PasswordHash,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Role = model.Role(role)
	p.Specializations = make([]model.RubricCategory, len(specs))
	for i, s := range specs {
		p.Specializations[i] = model.RubricCategory(s)
	}
	return &p, nil
}

func categoryStrings(in []model.RubricCategory) []string {
	out := make([]string, len(in))
	for i, c := range in {
		out[i] = string(c)
	}
	return out
}

func (r *ProfileRepository) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (r *ProfileRepository) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, email))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (r *ProfileRepository) ListProfiles(ctx context.Context, f model.ProfileFilter) ([]model.Profile, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Role != "" {
		where = append(where, "role = "+arg(string(f.Role)))
	}
	if f.ActiveOnly {
		where = append(where, "is_active")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + s + "%")
		where = append(where, "(full_name ILIKE "+p+" OR email ILIKE "+p+")")
	}
	query := `SELECT ` + profileColumns + ` FROM profiles`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY full_name ASC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query profiles", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := []model.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *ProfileRepository) CreateProfile(ctx context.Context, p *model.Profile) error {
	r.logger.Debug("Inserting profile", zap.String("email", p.Email), zap.String("role", string(p.Role)))
	_, err := r.db.Exec(ctx, `
        INSERT INTO profiles (id, email, full_name, role, department, specializations,
            is_active, email_confirmed, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11)
    `, p.ID, p.Email, p.FullName, string(p.Role), p.Department, categoryStrings(p.Specializations),
		p.IsActive, p.EmailConfirmed, p.PasswordHash, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert profile", zap.Error(err), zap.String("email", p.Email))
		return mapErr(err)
	}
	r.logger.Info("Profile inserted successfully", zap.String("user_id", p.ID.String()))
	return nil
}

// exec runs a single-row update and reports ErrNotFound when nothing matched.
func (r *ProfileRepository) exec(ctx context.Context, op string, id uuid.UUID, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		r.logger.Error("Profile update failed", zap.String("op", op), zap.String("user_id", id.String()), zap.Error(err))
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	r.logger.Info("Profile updated", zap.String("op", op), zap.String("user_id", id.String()))
	return nil
}

func (r *ProfileRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	return r.exec(ctx, "update_role", id,
		`UPDATE profiles SET role = $2, updated_at = NOW() WHERE id = $1`, string(role))
}

func (r *ProfileRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.exec(ctx, "set_active", id,
		`UPDATE profiles SET is_active = $2, updated_at = NOW() WHERE id = $1`, active)
}

func (r *ProfileRepository) SetSpecializations(ctx context.Context, id uuid.UUID, specs []model.RubricCategory) error {
	return r.exec(ctx, "set_specializations", id,
		`UPDATE profiles SET specializations = $2, updated_at = NOW() WHERE id = $1`, categoryStrings(specs))
}

func (r *ProfileRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, "set_password", id,
		`UPDATE profiles SET password_hash = $2, updated_at = NOW() WHERE id = $1`, hash)
}

func (r *ProfileRepository) ConfirmEmail(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "confirm_email", id,
		`UPDATE profiles SET email_confirmed = TRUE, updated_at = NOW() WHERE id = $1`)
}

// DeleteProfile fails with ErrConflict while ideas, evaluations or log rows still
// reference the user.
func (r *ProfileRepository) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "delete", id, `DELETE FROM profiles WHERE id = $1`)
}
