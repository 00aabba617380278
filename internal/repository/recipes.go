package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/recetas-api/internal/domain"
	"github.com/Clark-Hu/recetas-api/internal/ingredient"
)

// RecipesRepository provides persistence helpers for recipe entities.
type RecipesRepository struct {
	pool *pgxpool.Pool
}

// recipeColumns expects the recipe aliased as r and its author as u.
const recipeColumns = `
    r.id,
    r.name,
    r.description,
    r.prep_time_minutes,
    r.servings,
    r.difficulty,
    r.ingredients,
    r.steps,
    r.categories,
    r.image_url,
    r.author_id,
    u.name,
    u.photo_url,
    r.rating_average,
    r.rating_count,
    r.likes,
    r.status,
    r.created_at,
    r.updated_at
`

const recipeFrom = ` FROM recipes r JOIN users u ON u.id = r.author_id`

// RecipeCreateParams bundles the fields required to create a recipe.
type RecipeCreateParams struct {
	Name            string
	Description     string
	PrepTimeMinutes int
	Servings        int
	Difficulty      string
	Ingredients     []domain.Ingredient
	Steps           []string
	Categories      []string
	AuthorID        string
}

// RecipeUpdateParams lists the mutable recipe fields. Nil fields are kept.
type RecipeUpdateParams struct {
	Name            *string
	Description     *string
	PrepTimeMinutes *int
	Servings        *int
	Difficulty      *string
	Ingredients     *[]domain.Ingredient
	Steps           *[]string
	Categories      *[]string
}

// RecipeListFilters encapsulates search and pagination options.
type RecipeListFilters struct {
	AuthorID   *string
	Name       *string
	Category   *string
	Ingredient *string
	Status     *domain.RecipeStatus
	Limit      int
	Cursor     *RecipeCursor
}

// RecipeCursor allows stable pagination by created_at/id.
type RecipeCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// RecipeListResult returns the paginated payload.
type RecipeListResult struct {
	Items      []domain.Recipe
	NextCursor *string
}

// Create inserts a new recipe in the pending state.
func (r *RecipesRepository) Create(ctx context.Context, params RecipeCreateParams) (domain.Recipe, error) {
	ingredientsJSON, err := marshalIngredients(params.Ingredients)
	if err != nil {
		return domain.Recipe{}, err
	}

	query := fmt.Sprintf(`
        WITH r AS (
            INSERT INTO recipes (name, description, prep_time_minutes, servings, difficulty, ingredients, steps, categories, author_id)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
            RETURNING *
        )
        SELECT %s FROM r JOIN users u ON u.id = r.author_id
    `, recipeColumns)

	row := r.pool.QueryRow(ctx, query,
		params.Name, params.Description, params.PrepTimeMinutes, params.Servings, params.Difficulty,
		ingredientsJSON, nonNil(params.Steps), nonNil(params.Categories), params.AuthorID)
	recipe, err := scanRecipe(row)
	if err != nil {
		return domain.Recipe{}, translate(err)
	}
	return recipe, nil
}

// GetByID fetches a recipe with its author's name and photo.
func (r *RecipesRepository) GetByID(ctx context.Context, id string) (domain.Recipe, error) {
	query := `SELECT ` + recipeColumns + recipeFrom + ` WHERE r.id = $1`
	recipe, err := scanRecipe(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Recipe{}, translate(err)
	}
	return recipe, nil
}

// Update applies the allow-listed fields in params.
func (r *RecipesRepository) Update(ctx context.Context, id string, params RecipeUpdateParams) (domain.Recipe, error) {
	var ingredientsJSON []byte
	if params.Ingredients != nil {
		var err error
		if ingredientsJSON, err = marshalIngredients(*params.Ingredients); err != nil {
			return domain.Recipe{}, err
		}
	}
	var steps, categories []string
	if params.Steps != nil {
		steps = nonNil(*params.Steps)
	}
	if params.Categories != nil {
		categories = nonNil(*params.Categories)
	}

	query := fmt.Sprintf(`
        WITH r AS (
            UPDATE recipes
            SET name = COALESCE($2, name),
                description = COALESCE($3, description),
                prep_time_minutes = COALESCE($4, prep_time_minutes),
                servings = COALESCE($5, servings),
                difficulty = COALESCE($6, difficulty),
                ingredients = COALESCE($7::jsonb, ingredients),
                steps = COALESCE($8::text[], steps),
                categories = COALESCE($9::text[], categories),
                updated_at = now()
            WHERE id = $1
            RETURNING *
        )
        SELECT %s FROM r JOIN users u ON u.id = r.author_id
    `, recipeColumns)

	row := r.pool.QueryRow(ctx, query, id,
		params.Name, params.Description, params.PrepTimeMinutes, params.Servings, params.Difficulty,
		ingredientsJSON, steps, categories)
	recipe, err := scanRecipe(row)
	if err != nil {
		return domain.Recipe{}, translate(err)
	}
	return recipe, nil
}

// SetImage stores the public URL of the recipe picture.
func (r *RecipesRepository) SetImage(ctx context.Context, id, imageURL string) (domain.Recipe, error) {
	return r.updateOne(ctx, `image_url = $2`, id, imageURL)
}

// SetStatus moves a recipe to a moderation state.
func (r *RecipesRepository) SetStatus(ctx context.Context, id string, status domain.RecipeStatus) (domain.Recipe, error) {
	return r.updateOne(ctx, `status = $2`, id, string(status))
}

func (r *RecipesRepository) updateOne(ctx context.Context, set, id string, value any) (domain.Recipe, error) {
	query := fmt.Sprintf(`
        WITH r AS (
            UPDATE recipes SET %s, updated_at = now()
            WHERE id = $1
            RETURNING *
        )
        SELECT %s FROM r JOIN users u ON u.id = r.author_id
    `, set, recipeColumns)
	recipe, err := scanRecipe(r.pool.QueryRow(ctx, query, id, value))
	if err != nil {
		return domain.Recipe{}, translate(err)
	}
	return recipe, nil
}

// Delete removes a recipe; its likes and ratings go with it.
func (r *RecipesRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns recipes that match the provided filters, newest first.
func (r *RecipesRepository) List(ctx context.Context, filters RecipeListFilters) (RecipeListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.AuthorID != nil {
		where = append(where, fmt.Sprintf("r.author_id = %s", arg(*filters.AuthorID)))
	}
	if filters.Status != nil {
		where = append(where, fmt.Sprintf("r.status = %s", arg(string(*filters.Status))))
	}
	if filters.Name != nil && strings.TrimSpace(*filters.Name) != "" {
		where = append(where, fmt.Sprintf("r.name ILIKE %s", arg("%"+escapeLike(strings.TrimSpace(*filters.Name))+"%")))
	}
	if filters.Category != nil && strings.TrimSpace(*filters.Category) != "" {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(r.categories) c WHERE lower(c) = lower(%s))",
			arg(strings.TrimSpace(*filters.Category))))
	}
	if filters.Ingredient != nil && ingredient.Normalize(*filters.Ingredient) != "" {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements(r.ingredients) i WHERE i->>'name' ILIKE %s)",
			arg("%"+escapeLike(ingredient.Normalize(*filters.Ingredient))+"%")))
	}
	if filters.Cursor != nil {
		cursorCreated := arg(filters.Cursor.CreatedAt)
		cursorID := arg(filters.Cursor.ID)
		where = append(where, fmt.Sprintf("(r.created_at, r.id) < (%s, %s::uuid)", cursorCreated, cursorID))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(recipeColumns)
	queryBuilder.WriteString(recipeFrom)

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY r.created_at DESC, r.id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	items, err := r.queryRecipes(ctx, queryBuilder.String(), args...)
	if err != nil {
		return RecipeListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := encodeCursor(RecipeCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return RecipeListResult{}, err
		}
		nextCursor = &token
	}

	return RecipeListResult{Items: items, NextCursor: nextCursor}, nil
}

// Stats counts recipes per moderation state.
func (r *RecipesRepository) Stats(ctx context.Context) (domain.RecipeStats, error) {
	const query = `
        SELECT COUNT(*)::int8,
               COUNT(*) FILTER (WHERE status = 'pending')::int8,
               COUNT(*) FILTER (WHERE status = 'approved')::int8,
               COUNT(*) FILTER (WHERE status = 'rejected')::int8
        FROM recipes
    `
	var stats domain.RecipeStats
	err := r.pool.QueryRow(ctx, query).Scan(&stats.Total, &stats.Pending, &stats.Approved, &stats.Rejected)
	if err != nil {
		return domain.RecipeStats{}, fmt.Errorf("recipe stats: %w", err)
	}
	return stats, nil
}

func (r *RecipesRepository) queryRecipes(ctx context.Context, query string, args ...any) ([]domain.Recipe, error) {
	return queryRecipes(ctx, r.pool, query, args...)
}

type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryRecipes(ctx context.Context, db rowsQuerier, query string, args ...any) ([]domain.Recipe, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Recipe, 0)
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanRecipe(row pgx.Row) (domain.Recipe, error) {
	var (
		recipe          domain.Recipe
		ingredientsJSON []byte
		status          string
	)

	err := row.Scan(
		&recipe.ID,
		&recipe.Name,
		&recipe.Description,
		&recipe.PrepTimeMinutes,
		&recipe.Servings,
		&recipe.Difficulty,
		&ingredientsJSON,
		&recipe.Steps,
		&recipe.Categories,
		&recipe.ImageURL,
		&recipe.AuthorID,
		&recipe.AuthorName,
		&recipe.AuthorPhotoURL,
		&recipe.RatingAverage,
		&recipe.RatingCount,
		&recipe.Likes,
		&status,
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
	)
	if err != nil {
		return domain.Recipe{}, err
	}
	recipe.Status = domain.RecipeStatus(status)

	recipe.Ingredients = make([]domain.Ingredient, 0)
	if len(ingredientsJSON) > 0 {
		if err := json.Unmarshal(ingredientsJSON, &recipe.Ingredients); err != nil {
			return domain.Recipe{}, fmt.Errorf("decode ingredients: %w", err)
		}
	}
	return recipe, nil
}

func marshalIngredients(items []domain.Ingredient) ([]byte, error) {
	if items == nil {
		items = []domain.Ingredient{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode ingredients: %w", err)
	}
	return payload, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}

func encodeCursor(c RecipeCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a RecipeCursor.
func DecodeCursor(token string) (*RecipeCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor RecipeCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if cursor.ID == "" || cursor.CreatedAt.IsZero() {
		return nil, fmt.Errorf("invalid cursor payload")
	}
	id, err := uuid.Parse(cursor.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	cursor.ID = id.String()
	return &cursor, nil
}
