package httpserver

import (
	"net/http"

	"github.com/Clark-Hu/recetas-api/internal/domain"
)

type recipeStatsResponse struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

type userStatsResponse struct {
	Total       int64 `json:"total"`
	Active      int64 `json:"active"`
	Deactivated int64 `json:"deactivated"`
}

type userStateRequest struct {
	State string `json:"state" validate:"required,oneof=active deactivated"`
}

func (s *Server) handleListPendingRecipes(w http.ResponseWriter, r *http.Request) {
	filters, err := buildRecipeFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	pending := domain.RecipePending
	filters.Status = &pending
	s.listRecipes(w, r, filters)
}

func (s *Server) handleApproveRecipe(w http.ResponseWriter, r *http.Request) {
	s.moderateRecipe(w, r, domain.RecipeApproved)
}

func (s *Server) handleRejectRecipe(w http.ResponseWriter, r *http.Request) {
	s.moderateRecipe(w, r, domain.RecipeRejected)
}

func (s *Server) moderateRecipe(w http.ResponseWriter, r *http.Request, status domain.RecipeStatus) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	recipe, err := s.repo.Recipes.SetStatus(r.Context(), id, status)
	if err != nil {
		s.respondStoreError(w, r, err, "moderate recipe")
		return
	}
	admin, _ := currentUser(r)
	s.requestLogger(r).Info().
		Str("recipe_id", recipe.ID).
		Str("status", string(status)).
		Str("admin_id", admin.ID).
		Msg("recipe moderated")
	s.respondJSON(w, http.StatusOK, toRecipeResponse(recipe))
}

func (s *Server) handleRecipeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.Recipes.Stats(r.Context())
	if err != nil {
		s.respondStoreError(w, r, err, "fetch recipe stats")
		return
	}
	s.respondJSON(w, http.StatusOK, recipeStatsResponse{
		Total:    stats.Total,
		Pending:  stats.Pending,
		Approved: stats.Approved,
		Rejected: stats.Rejected,
	})
}

func (s *Server) handleSetUserState(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	var req userStateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if !s.validateRequest(w, req) {
		return
	}
	admin, _ := currentUser(r)
	if id == admin.ID && domain.AccountState(req.State) == domain.AccountDeactivated {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "You cannot deactivate your own account")
		return
	}

	user, err := s.repo.Users.SetState(r.Context(), id, domain.AccountState(req.State))
	if err != nil {
		s.respondStoreError(w, r, err, "update user state")
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user, true))
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.Users.Stats(r.Context())
	if err != nil {
		s.respondStoreError(w, r, err, "fetch user stats")
		return
	}
	s.respondJSON(w, http.StatusOK, userStatsResponse{
		Total:       stats.Total,
		Active:      stats.Active,
		Deactivated: stats.Deactivated,
	})
}
