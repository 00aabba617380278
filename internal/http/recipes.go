package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/recetas-api/internal/domain"
	"github.com/Clark-Hu/recetas-api/internal/ingredient"
	"github.com/Clark-Hu/recetas-api/internal/media"
	"github.com/Clark-Hu/recetas-api/internal/metrics"
	"github.com/Clark-Hu/recetas-api/internal/repository"
)

// Ingredients and steps arrive as multi-line text, one item per line.
type recipeCreateRequest struct {
	Name            string   `json:"name" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=5000"`
	PrepTimeMinutes int      `json:"prepTimeMinutes" validate:"required,min=1,max=10080"`
	Servings        int      `json:"servings" validate:"required,min=1,max=1000"`
	Difficulty      string   `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Ingredients     string   `json:"ingredients" validate:"required"`
	Steps           string   `json:"steps" validate:"required"`
	Categories      []string `json:"categories" validate:"max=20,dive,max=50"`
}

type recipeUpdateRequest struct {
	Name            *string   `json:"name" validate:"omitempty,min=1,max=200"`
	Description     *string   `json:"description" validate:"omitempty,max=5000"`
	PrepTimeMinutes *int      `json:"prepTimeMinutes" validate:"omitempty,min=1,max=10080"`
	Servings        *int      `json:"servings" validate:"omitempty,min=1,max=1000"`
	Difficulty      *string   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Ingredients     *string   `json:"ingredients"`
	Steps           *string   `json:"steps"`
	Categories      *[]string `json:"categories" validate:"omitempty,max=20,dive,max=50"`
}

type authorResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
}

type recipeResponse struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	PrepTimeMinutes int                 `json:"prepTimeMinutes"`
	Servings        int                 `json:"servings"`
	Difficulty      string              `json:"difficulty"`
	Ingredients     []domain.Ingredient `json:"ingredients"`
	Steps           []string            `json:"steps"`
	Categories      []string            `json:"categories"`
	ImageURL        *string             `json:"imageUrl"`
	Author          authorResponse      `json:"author"`
	RatingAverage   float64             `json:"ratingAverage"`
	RatingCount     int64               `json:"ratingCount"`
	Likes           int64               `json:"likes"`
	Status          string              `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type recipeListResponse struct {
	Items      []recipeResponse `json:"items"`
	NextCursor *string          `json:"nextCursor,omitempty"`
}

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	filters, err := buildRecipeFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	approved := domain.RecipeApproved
	filters.Status = &approved
	s.listRecipes(w, r, filters)
}

func (s *Server) handleListMyRecipes(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	filters, err := buildRecipeFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	filters.AuthorID = &user.ID
	filters.Status = nil
	s.listRecipes(w, r, filters)
}

func (s *Server) listRecipes(w http.ResponseWriter, r *http.Request, filters repository.RecipeListFilters) {
	result, err := s.repo.Recipes.List(r.Context(), filters)
	if err != nil {
		s.respondStoreError(w, r, err, "list recipes")
		return
	}
	resp := recipeListResponse{Items: toRecipeList(result.Items)}
	if result.NextCursor != nil {
		resp.NextCursor = result.NextCursor
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func buildRecipeFilters(query url.Values) (repository.RecipeListFilters, error) {
	var filters repository.RecipeListFilters

	if val := strings.TrimSpace(query.Get("author")); val != "" {
		id, err := uuid.Parse(val)
		if err != nil {
			return filters, fmt.Errorf("invalid author value")
		}
		author := id.String()
		filters.AuthorID = &author
	}
	if val := strings.TrimSpace(query.Get("name")); val != "" {
		filters.Name = &val
	}
	if val := strings.TrimSpace(query.Get("category")); val != "" {
		filters.Category = &val
	}
	if val := strings.TrimSpace(query.Get("ingredient")); val != "" {
		filters.Ingredient = &val
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit < 1 || limit > 100 {
			return filters, fmt.Errorf("limit must be between 1 and 100")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req recipeCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Difficulty = strings.ToLower(strings.TrimSpace(req.Difficulty))
	if !s.validateRequest(w, req) {
		return
	}

	ingredients := ingredient.ParseLines(req.Ingredients)
	steps := ingredient.SplitLines(req.Steps)
	if len(ingredients) == 0 || len(steps) == 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ingredients and steps need at least one non-blank line")
		return
	}

	recipe, err := s.repo.Recipes.Create(r.Context(), repository.RecipeCreateParams{
		Name:            req.Name,
		Description:     req.Description,
		PrepTimeMinutes: req.PrepTimeMinutes,
		Servings:        req.Servings,
		Difficulty:      req.Difficulty,
		Ingredients:     ingredients,
		Steps:           steps,
		Categories:      cleanCategories(req.Categories),
		AuthorID:        user.ID,
	})
	if err != nil {
		s.respondStoreError(w, r, err, "create recipe")
		return
	}
	metrics.RecordRecipeCreated()

	w.Header().Set("Location", "/recipes/"+recipe.ID)
	s.respondJSON(w, http.StatusCreated, toRecipeResponse(recipe))
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	recipe, ok := s.loadVisibleRecipe(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, toRecipeResponse(recipe))
}

func (s *Server) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	recipe, ok := s.loadOwnedRecipe(w, r, true)
	if !ok {
		return
	}

	var req recipeUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.Name = normalizeStringPtr(req.Name)
	req.Description = normalizeStringPtr(req.Description)
	if req.Difficulty != nil {
		d := strings.ToLower(strings.TrimSpace(*req.Difficulty))
		req.Difficulty = &d
	}
	if !s.validateRequest(w, req) {
		return
	}

	params := repository.RecipeUpdateParams{
		Name:            req.Name,
		Description:     req.Description,
		PrepTimeMinutes: req.PrepTimeMinutes,
		Servings:        req.Servings,
		Difficulty:      req.Difficulty,
	}
	if req.Ingredients != nil {
		parsed := ingredient.ParseLines(*req.Ingredients)
		if len(parsed) == 0 {
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ingredients need at least one non-blank line")
			return
		}
		params.Ingredients = &parsed
	}
	if req.Steps != nil {
		steps := ingredient.SplitLines(*req.Steps)
		if len(steps) == 0 {
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "steps need at least one non-blank line")
			return
		}
		params.Steps = &steps
	}
	if req.Categories != nil {
		categories := cleanCategories(*req.Categories)
		params.Categories = &categories
	}

	updated, err := s.repo.Recipes.Update(r.Context(), recipe.ID, params)
	if err != nil {
		s.respondStoreError(w, r, err, "update recipe")
		return
	}
	s.respondJSON(w, http.StatusOK, toRecipeResponse(updated))
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	recipe, ok := s.loadOwnedRecipe(w, r, false)
	if !ok {
		return
	}
	if err := s.repo.Recipes.Delete(r.Context(), recipe.ID); err != nil {
		s.respondStoreError(w, r, err, "delete recipe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadRecipeImage(w http.ResponseWriter, r *http.Request) {
	recipe, ok := s.loadOwnedRecipe(w, r, false)
	if !ok {
		return
	}
	url, ok := s.receiveImage(w, r, "image", media.FolderRecipes)
	if !ok {
		return
	}
	updated, err := s.repo.Recipes.SetImage(r.Context(), recipe.ID, url)
	if err != nil {
		s.respondStoreError(w, r, err, "update recipe image")
		return
	}
	s.respondJSON(w, http.StatusOK, toRecipeResponse(updated))
}

// loadVisibleRecipe fetches the {id} recipe. Recipes that are not approved
// are reported as missing unless the caller is the author or an admin.
func (s *Server) loadVisibleRecipe(w http.ResponseWriter, r *http.Request) (domain.Recipe, bool) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return domain.Recipe{}, false
	}
	recipe, err := s.repo.Recipes.GetByID(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, r, err, "fetch recipe")
		return domain.Recipe{}, false
	}
	if recipe.Status != domain.RecipeApproved {
		user, authed := currentUser(r)
		if !authed || (user.ID != recipe.AuthorID && !user.IsAdmin()) {
			s.respondNotFound(w)
			return domain.Recipe{}, false
		}
	}
	return recipe, true
}

// loadOwnedRecipe fetches the {id} recipe and checks the caller authored it.
// Admins pass too when allowAdmin is set.
func (s *Server) loadOwnedRecipe(w http.ResponseWriter, r *http.Request, allowAdmin bool) (domain.Recipe, bool) {
	recipe, ok := s.loadVisibleRecipe(w, r)
	if !ok {
		return domain.Recipe{}, false
	}
	user, _ := currentUser(r)
	if user.ID != recipe.AuthorID && !(allowAdmin && user.IsAdmin()) {
		s.respondError(w, http.StatusForbidden, "FORBIDDEN", "Only the author may modify this recipe")
		return domain.Recipe{}, false
	}
	return recipe, true
}

func cleanCategories(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func toRecipeResponse(recipe domain.Recipe) recipeResponse {
	ingredients := recipe.Ingredients
	if ingredients == nil {
		ingredients = []domain.Ingredient{}
	}
	steps := recipe.Steps
	if steps == nil {
		steps = []string{}
	}
	categories := recipe.Categories
	if categories == nil {
		categories = []string{}
	}
	return recipeResponse{
		ID:              recipe.ID,
		Name:            recipe.Name,
		Description:     recipe.Description,
		PrepTimeMinutes: recipe.PrepTimeMinutes,
		Servings:        recipe.Servings,
		Difficulty:      recipe.Difficulty,
		Ingredients:     ingredients,
		Steps:           steps,
		Categories:      categories,
		ImageURL:        recipe.ImageURL,
		Author: authorResponse{
			ID:       recipe.AuthorID,
			Name:     recipe.AuthorName,
			PhotoURL: recipe.AuthorPhotoURL,
		},
		RatingAverage: recipe.RatingAverage,
		RatingCount:   recipe.RatingCount,
		Likes:         recipe.Likes,
		Status:        string(recipe.Status),
		CreatedAt:     recipe.CreatedAt,
		UpdatedAt:     recipe.UpdatedAt,
	}
}

func toRecipeList(recipes []domain.Recipe) []recipeResponse {
	items := make([]recipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		items = append(items, toRecipeResponse(recipe))
	}
	return items
}
