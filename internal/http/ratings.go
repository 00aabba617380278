package httpserver

import (
	"errors"
	"net/http"

	"github.com/Clark-Hu/recetas-api/internal/metrics"
	"github.com/Clark-Hu/recetas-api/internal/rating"
	"github.com/Clark-Hu/recetas-api/internal/repository"
)

type ratingRequest struct {
	Score int `json:"score"`
}

type ratingSubmitResponse struct {
	Average   float64 `json:"average"`
	Count     int64   `json:"count"`
	YourScore int     `json:"yourScore"`
}

type myRatingResponse struct {
	Score int `json:"score"`
}

type ratingAggregateResponse struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	recipe, ok := s.loadVisibleRecipe(w, r)
	if !ok {
		return
	}
	user, _ := currentUser(r)

	var req ratingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := rating.ValidateScore(req.Score); err != nil {
		s.respondStoreError(w, r, err, "submit rating")
		return
	}

	result, err := s.repo.Ratings.Submit(r.Context(), repository.RatingSubmitParams{
		RecipeID: recipe.ID,
		RaterID:  user.ID,
		Score:    req.Score,
	})
	if err != nil {
		s.respondStoreError(w, r, err, "submit rating")
		return
	}
	metrics.RecordRating(result.Inserted)

	status := http.StatusOK
	if result.Inserted {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, ratingSubmitResponse{
		Average:   rating.RoundToOneDecimal(result.Aggregate.Average),
		Count:     result.Aggregate.Count,
		YourScore: result.Rating.Score,
	})
}

func (s *Server) handleGetMyRating(w http.ResponseWriter, r *http.Request) {
	recipe, ok := s.loadVisibleRecipe(w, r)
	if !ok {
		return
	}
	user, _ := currentUser(r)

	existing, err := s.repo.Ratings.Get(r.Context(), recipe.ID, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondJSON(w, http.StatusOK, myRatingResponse{Score: 0})
			return
		}
		s.respondStoreError(w, r, err, "fetch rating")
		return
	}
	s.respondJSON(w, http.StatusOK, myRatingResponse{Score: existing.Score})
}

func (s *Server) handleGetRating(w http.ResponseWriter, r *http.Request) {
	recipe, ok := s.loadVisibleRecipe(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, ratingAggregateResponse{
		Average: rating.RoundToOneDecimal(recipe.RatingAverage),
		Count:   recipe.RatingCount,
	})
}
