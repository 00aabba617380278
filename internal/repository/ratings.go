package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/recetas-api/internal/domain"
	"github.com/Clark-Hu/recetas-api/internal/rating"
	"github.com/Clark-Hu/recetas-api/internal/store"
)

// RatingsRepository provides helpers for recipe ratings.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

// RatingSubmitParams captures the payload required to upsert a rating.
type RatingSubmitParams struct {
	RecipeID string
	RaterID  string
	Score    int
}

// RatingSubmitResult is the stored vote plus the refreshed aggregate.
type RatingSubmitResult struct {
	Rating    domain.Rating
	Aggregate domain.RatingAggregate
	Inserted  bool
}

// Submit validates and upserts a vote, then recomputes the recipe aggregate
// from every stored vote and writes it onto the recipe row. The recipe row
// is locked for the duration so concurrent votes recompute in order.
func (r *RatingsRepository) Submit(ctx context.Context, params RatingSubmitParams) (RatingSubmitResult, error) {
	if err := rating.ValidateScore(params.Score); err != nil {
		return RatingSubmitResult{}, err
	}

	var result RatingSubmitResult
	err := store.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var authorID string
		err := tx.QueryRow(ctx, `SELECT author_id FROM recipes WHERE id = $1 FOR UPDATE`, params.RecipeID).Scan(&authorID)
		if err != nil {
			return translate(err)
		}
		if err := rating.CheckRater(authorID, params.RaterID); err != nil {
			return err
		}

		const upsert = `
            INSERT INTO ratings (recipe_id, rater_id, score)
            VALUES ($1,$2,$3)
            ON CONFLICT (recipe_id, rater_id)
            DO UPDATE SET score = EXCLUDED.score, updated_at = now()
            RETURNING recipe_id, rater_id, score, created_at, updated_at, (xmax = 0) AS inserted
        `
		err = tx.QueryRow(ctx, upsert, params.RecipeID, params.RaterID, params.Score).Scan(
			&result.Rating.RecipeID,
			&result.Rating.RaterID,
			&result.Rating.Score,
			&result.Rating.CreatedAt,
			&result.Rating.UpdatedAt,
			&result.Inserted,
		)
		if err != nil {
			return translate(err)
		}

		all, err := listForRecipe(ctx, tx, params.RecipeID)
		if err != nil {
			return err
		}
		result.Aggregate = rating.Recompute(params.RecipeID, all)

		_, err = tx.Exec(ctx,
			`UPDATE recipes SET rating_average = $2, rating_count = $3 WHERE id = $1`,
			params.RecipeID, result.Aggregate.Average, result.Aggregate.Count)
		if err != nil {
			return fmt.Errorf("store rating aggregate: %w", err)
		}
		return nil
	})
	if err != nil {
		return RatingSubmitResult{}, err
	}
	return result, nil
}

// Aggregate returns the stored rating average and count for a recipe.
func (r *RatingsRepository) Aggregate(ctx context.Context, recipeID string) (domain.RatingAggregate, error) {
	agg := domain.RatingAggregate{RecipeID: recipeID}
	err := r.pool.QueryRow(ctx,
		`SELECT rating_average, rating_count FROM recipes WHERE id = $1`, recipeID,
	).Scan(&agg.Average, &agg.Count)
	if err != nil {
		return domain.RatingAggregate{}, translate(err)
	}
	return agg, nil
}

// Get retrieves a rating for a specific rater/recipe combination.
func (r *RatingsRepository) Get(ctx context.Context, recipeID, raterID string) (domain.Rating, error) {
	const query = `
        SELECT recipe_id, rater_id, score, created_at, updated_at
        FROM ratings
        WHERE recipe_id = $1 AND rater_id = $2
    `
	var rt domain.Rating
	err := r.pool.QueryRow(ctx, query, recipeID, raterID).Scan(
		&rt.RecipeID,
		&rt.RaterID,
		&rt.Score,
		&rt.CreatedAt,
		&rt.UpdatedAt,
	)
	if err != nil {
		return domain.Rating{}, translate(err)
	}
	return rt, nil
}

// ListForRecipe returns every vote cast for a recipe.
func (r *RatingsRepository) ListForRecipe(ctx context.Context, recipeID string) ([]domain.Rating, error) {
	return listForRecipe(ctx, r.pool, recipeID)
}

func listForRecipe(ctx context.Context, db rowsQuerier, recipeID string) ([]domain.Rating, error) {
	const query = `
        SELECT recipe_id, rater_id, score, created_at, updated_at
        FROM ratings
        WHERE recipe_id = $1
        ORDER BY created_at, rater_id
    `
	rows, err := db.Query(ctx, query, recipeID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Rating, 0)
	for rows.Next() {
		var rt domain.Rating
		if err := rows.Scan(&rt.RecipeID, &rt.RaterID, &rt.Score, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
