package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/recetas-api/internal/domain"
	"github.com/Clark-Hu/recetas-api/internal/store"
)

// FavoritesRepository stores likes. A like doubles as a favorite.
type FavoritesRepository struct {
	pool *pgxpool.Pool
}

// ToggleResult reports the state after a like toggle.
type ToggleResult struct {
	Liked bool
	Likes int64
}

// Toggle likes the recipe, or removes the like when one exists, keeping the
// recipe's likes counter in step. Authors cannot like their own recipe.
func (r *FavoritesRepository) Toggle(ctx context.Context, userID, recipeID string) (ToggleResult, error) {
	var result ToggleResult
	err := store.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var authorID string
		err := tx.QueryRow(ctx, `SELECT author_id FROM recipes WHERE id = $1 FOR UPDATE`, recipeID).Scan(&authorID)
		if err != nil {
			return translate(err)
		}
		if authorID == userID {
			return ErrSelfReference
		}

		tag, err := tx.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND recipe_id = $2`, userID, recipeID)
		if err != nil {
			return fmt.Errorf("remove like: %w", err)
		}

		delta := -1
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO favorites (user_id, recipe_id) VALUES ($1,$2)`, userID, recipeID); err != nil {
				return translate(err)
			}
			delta = 1
			result.Liked = true
		}

		return tx.QueryRow(ctx,
			`UPDATE recipes SET likes = GREATEST(likes + $2, 0) WHERE id = $1 RETURNING likes`,
			recipeID, delta,
		).Scan(&result.Likes)
	})
	if err != nil {
		return ToggleResult{}, err
	}
	return result, nil
}

// ListRecipes returns the approved recipes a user liked, most recent like
// first. Likes on recipes that were later rejected stay stored but hidden.
func (r *FavoritesRepository) ListRecipes(ctx context.Context, userID string) ([]domain.Recipe, error) {
	query := `SELECT ` + recipeColumns + recipeFrom + `
        JOIN favorites f ON f.recipe_id = r.id
        WHERE f.user_id = $1 AND (r.status = 'approved' OR r.author_id = $1)
        ORDER BY f.created_at DESC, r.id DESC`
	return queryRecipes(ctx, r.pool, query, userID)
}
