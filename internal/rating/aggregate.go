// Package rating validates recipe votes and derives the per-recipe
// aggregate from the full set of votes.
package rating

import (
	"errors"
	"math"

	"github.com/Clark-Hu/recetas-api/internal/domain"
)

// Score bounds, inclusive.
const (
	MinScore = 1
	MaxScore = 5
)

var (
	// ErrScoreOutOfRange is returned for scores outside [MinScore, MaxScore].
	ErrScoreOutOfRange = errors.New("rating: score must be between 1 and 5")
	// ErrSelfRating is returned when an author rates their own recipe.
	ErrSelfRating = errors.New("rating: authors cannot rate their own recipe")
)

// ValidateScore checks the score range.
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return ErrScoreOutOfRange
	}
	return nil
}

// CheckRater rejects votes cast by the recipe's author.
func CheckRater(authorID, raterID string) error {
	if authorID == raterID {
		return ErrSelfRating
	}
	return nil
}

// Recompute derives the aggregate for recipeID from every current rating.
// It always starts from the full set so repeated calls cannot drift.
func Recompute(recipeID string, ratings []domain.Rating) domain.RatingAggregate {
	agg := domain.RatingAggregate{RecipeID: recipeID, Count: int64(len(ratings))}
	if len(ratings) == 0 {
		return agg
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Score
	}
	agg.Average = RoundToOneDecimal(float64(sum) / float64(len(ratings)))
	return agg
}

// RoundToOneDecimal rounds half away from zero to one decimal place.
func RoundToOneDecimal(value float64) float64 {
	return math.Round(value*10) / 10.0
}
