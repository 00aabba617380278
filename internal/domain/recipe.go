package domain

import "time"

// RecipeStatus is the moderation state of a recipe.
type RecipeStatus string

const (
	RecipePending  RecipeStatus = "pending"
	RecipeApproved RecipeStatus = "approved"
	RecipeRejected RecipeStatus = "rejected"
)

// Difficulty levels accepted for a recipe.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Ingredient is one structured ingredient line. It is stored as JSON inside
// the recipe row, hence the tags.
type Ingredient struct {
	Name         string   `json:"name"`
	Quantity     *float64 `json:"quantity"`
	Unit         *string  `json:"unit"`
	OriginalText string   `json:"originalText"`
}

// Recipe represents the canonical recipe entity in the database/service.
type Recipe struct {
	ID              string
	Name            string
	Description     string
	PrepTimeMinutes int
	Servings        int
	Difficulty      string
	Ingredients     []Ingredient
	Steps           []string
	Categories      []string
	ImageURL        *string
	AuthorID        string
	AuthorName      string
	AuthorPhotoURL  string
	RatingAverage   float64
	RatingCount     int64
	Likes           int64
	Status          RecipeStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RecipeStats counts recipes per moderation state.
type RecipeStats struct {
	Total    int64
	Pending  int64
	Approved int64
	Rejected int64
}
