package httpserver

import (
	"net/http"

	"github.com/Clark-Hu/recetas-api/internal/metrics"
)

type likeResponse struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}

type followResponse struct {
	Following bool `json:"following"`
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	recipe, ok := s.loadVisibleRecipe(w, r)
	if !ok {
		return
	}
	user, _ := currentUser(r)

	result, err := s.repo.Favorites.Toggle(r.Context(), user.ID, recipe.ID)
	if err != nil {
		s.respondStoreError(w, r, err, "toggle like")
		return
	}
	metrics.RecordLike(result.Liked)
	s.respondJSON(w, http.StatusOK, likeResponse{Liked: result.Liked, Likes: result.Likes})
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	recipes, err := s.repo.Favorites.ListRecipes(r.Context(), user.ID)
	if err != nil {
		s.respondStoreError(w, r, err, "list favorites")
		return
	}
	s.respondJSON(w, http.StatusOK, recipeListResponse{Items: toRecipeList(recipes)})
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	targetID, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	user, _ := currentUser(r)

	if _, err := s.repo.Follows.Follow(r.Context(), user.ID, targetID); err != nil {
		s.respondStoreError(w, r, err, "follow user")
		return
	}
	s.respondJSON(w, http.StatusOK, followResponse{Following: true})
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	targetID, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	user, _ := currentUser(r)

	if _, err := s.repo.Follows.Unfollow(r.Context(), user.ID, targetID); err != nil {
		s.respondStoreError(w, r, err, "unfollow user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFollowers(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.repo.Users.GetByID(r.Context(), userID); err != nil {
		s.respondStoreError(w, r, err, "list followers")
		return
	}
	users, err := s.repo.Follows.Followers(r.Context(), userID)
	if err != nil {
		s.respondStoreError(w, r, err, "list followers")
		return
	}
	s.respondJSON(w, http.StatusOK, toUserList(users))
}

func (s *Server) handleListFollowing(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.repo.Users.GetByID(r.Context(), userID); err != nil {
		s.respondStoreError(w, r, err, "list following")
		return
	}
	users, err := s.repo.Follows.Following(r.Context(), userID)
	if err != nil {
		s.respondStoreError(w, r, err, "list following")
		return
	}
	s.respondJSON(w, http.StatusOK, toUserList(users))
}
