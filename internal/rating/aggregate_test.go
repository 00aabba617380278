package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Clark-Hu/recetas-api/internal/domain"
)

func scores(values ...int) []domain.Rating {
	out := make([]domain.Rating, 0, len(values))
	for i, v := range values {
		out = append(out, domain.Rating{RecipeID: "r1", RaterID: string(rune('a' + i)), Score: v})
	}
	return out
}

func TestRecompute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ratings   []domain.Rating
		wantAvg   float64
		wantCount int64
	}{
		{"no ratings", nil, 0, 0},
		{"empty slice", []domain.Rating{}, 0, 0},
		{"single", scores(3), 3, 1},
		{"half", scores(4, 5), 4.5, 2},
		{"rounds up", scores(5, 5, 4), 4.7, 3},
		{"rounds down", scores(1, 1, 2), 1.3, 3},
		{"all fives", scores(5, 5, 5, 5), 5, 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Recompute("r1", tc.ratings)
			assert.Equal(t, "r1", got.RecipeID)
			assert.Equal(t, tc.wantCount, got.Count)
			assert.InDelta(t, tc.wantAvg, got.Average, 1e-9)
		})
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	t.Parallel()

	set := scores(1, 4, 4, 5, 2)
	first := Recompute("r1", set)
	second := Recompute("r1", set)
	assert.Equal(t, first, second)
}

func TestRecomputeAfterResubmission(t *testing.T) {
	t.Parallel()

	set := scores(2, 4)
	// rater "a" changes their vote; the caller replaces it in place.
	set[0].Score = 5
	got := Recompute("r1", set)
	assert.Equal(t, int64(2), got.Count)
	assert.InDelta(t, 4.5, got.Average, 1e-9)
}

func TestValidateScore(t *testing.T) {
	t.Parallel()

	for _, s := range []int{1, 2, 3, 4, 5} {
		assert.NoError(t, ValidateScore(s), "score %d", s)
	}
	for _, s := range []int{-1, 0, 6, 10} {
		assert.ErrorIs(t, ValidateScore(s), ErrScoreOutOfRange, "score %d", s)
	}
}

func TestCheckRater(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, CheckRater("u1", "u1"), ErrSelfRating)
	assert.NoError(t, CheckRater("u1", "u2"))
}

func TestRoundToOneDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value float64
		want  float64
	}{
		{0, 0},
		{3.75, 3.8},
		{2.74, 2.7},
		{4.5, 4.5},
		{4.666666, 4.7},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, RoundToOneDecimal(tt.value), 1e-9, "value %v", tt.value)
	}
}
