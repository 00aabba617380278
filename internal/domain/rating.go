package domain

import "time"

// Rating represents a single user's score for a recipe.
type Rating struct {
	RecipeID  string
	RaterID   string
	Score     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RatingAggregate provides average and count for a recipe's ratings.
type RatingAggregate struct {
	RecipeID string
	Average  float64
	Count    int64
}
