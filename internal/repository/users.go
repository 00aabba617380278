package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/recetas-api/internal/domain"
)

// UsersRepository provides persistence helpers for accounts.
type UsersRepository struct {
	pool *pgxpool.Pool
}

const userColumns = `id, name, email, password_hash, role, photo_url, status, state, created_at, updated_at`

// UserCreateParams bundles the fields required to register a user.
type UserCreateParams struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

// UserProfileUpdate lists the profile fields a user may change. Nil fields
// are left untouched.
type UserProfileUpdate struct {
	Name     *string
	Status   *string
	PhotoURL *string
}

// Create inserts a user. A duplicate email yields ErrConflict.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	role := params.Role
	if role == "" {
		role = domain.RoleUser
	}
	query := fmt.Sprintf(`
        INSERT INTO users (name, email, password_hash, role)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, userColumns)
	user, err := scanUser(r.pool.QueryRow(ctx, query, params.Name, params.Email, params.PasswordHash, role))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return user, nil
}

// GetByID fetches a user by identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return user, nil
}

// GetByEmail fetches a user by email, ignoring case.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE lower(email) = lower($1)`, userColumns)
	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return user, nil
}

// UpdateProfile applies the allow-listed profile fields.
func (r *UsersRepository) UpdateProfile(ctx context.Context, id string, upd UserProfileUpdate) (domain.User, error) {
	query := fmt.Sprintf(`
        UPDATE users
        SET name = COALESCE($2, name),
            status = COALESCE($3, status),
            photo_url = COALESCE($4, photo_url),
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, userColumns)
	user, err := scanUser(r.pool.QueryRow(ctx, query, id, upd.Name, upd.Status, upd.PhotoURL))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return user, nil
}

// SetState activates or deactivates an account.
func (r *UsersRepository) SetState(ctx context.Context, id string, state domain.AccountState) (domain.User, error) {
	query := fmt.Sprintf(`
        UPDATE users SET state = $2, updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, userColumns)
	user, err := scanUser(r.pool.QueryRow(ctx, query, id, string(state)))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return user, nil
}

// Search returns users whose name contains term, ignoring case.
func (r *UsersRepository) Search(ctx context.Context, term string, limit int) ([]domain.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf(`
        SELECT %s FROM users
        WHERE name ILIKE $1
        ORDER BY name, id
        LIMIT %d
    `, userColumns, limit)
	return queryUsers(ctx, r.pool, query, "%"+escapeLike(term)+"%")
}

// Stats counts accounts per state.
func (r *UsersRepository) Stats(ctx context.Context) (domain.UserStats, error) {
	const query = `
        SELECT COUNT(*)::int8,
               COUNT(*) FILTER (WHERE state = 'active')::int8,
               COUNT(*) FILTER (WHERE state = 'deactivated')::int8
        FROM users
    `
	var stats domain.UserStats
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.Total, &stats.Active, &stats.Deactivated); err != nil {
		return domain.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return stats, nil
}

func queryUsers(ctx context.Context, db rowsQuerier, query string, args ...any) ([]domain.User, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user  domain.User
		state string
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.PhotoURL,
		&user.Status,
		&state,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	user.State = domain.AccountState(state)
	return user, nil
}
