package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/recetas-api/internal/domain"
)

// FollowsRepository stores follower relationships.
type FollowsRepository struct {
	pool *pgxpool.Pool
}

// Follow records that followerID follows followeeID. It reports whether a
// new relationship was created; following twice is not an error.
func (r *FollowsRepository) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, ErrSelfReference
	}
	tag, err := r.pool.Exec(ctx, `
        INSERT INTO follows (follower_id, followee_id) VALUES ($1,$2)
        ON CONFLICT DO NOTHING
    `, followerID, followeeID)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Unfollow removes the relationship and reports whether one existed.
func (r *FollowsRepository) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Followers lists the users following userID.
func (r *FollowsRepository) Followers(ctx context.Context, userID string) ([]domain.User, error) {
	return r.list(ctx, "f.follower_id", "f.followee_id", userID)
}

// Following lists the users userID follows.
func (r *FollowsRepository) Following(ctx context.Context, userID string) ([]domain.User, error) {
	return r.list(ctx, "f.followee_id", "f.follower_id", userID)
}

func (r *FollowsRepository) list(ctx context.Context, joinOn, filterOn, userID string) ([]domain.User, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM follows f
        JOIN users u ON u.id = %s
        WHERE %s = $1
        ORDER BY f.created_at DESC, u.id
    `, prefixed("u", userColumns), joinOn, filterOn)

	return queryUsers(ctx, r.pool, query, userID)
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, col := range parts {
		parts[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(parts, ", ")
}
