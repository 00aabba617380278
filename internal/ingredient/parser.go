// Package ingredient turns free-text ingredient lines into structured
// records of quantity, unit and name.
package ingredient

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Clark-Hu/recetas-api/internal/domain"
)

// units is the recognized-unit vocabulary, stored without diacritics and
// lower-cased.
var units = map[string]struct{}{
	"taza": {}, "tazas": {},
	"cucharada": {}, "cucharadas": {},
	"cucharadita": {}, "cucharaditas": {},
	"gramo": {}, "gramos": {}, "g": {},
	"kg": {}, "kilo": {}, "kilos": {}, "kilogramo": {}, "kilogramos": {},
	"ml": {}, "mililitro": {}, "mililitros": {},
	"l": {}, "litro": {}, "litros": {},
	"pieza": {}, "piezas": {},
	"cup": {}, "cups": {},
	"tablespoon": {}, "tablespoons": {}, "tbsp": {},
	"teaspoon": {}, "teaspoons": {}, "tsp": {},
	"gram": {}, "grams": {},
	"kilogram": {}, "kilograms": {},
	"milliliter": {}, "milliliters": {},
	"liter": {}, "liters": {},
	"piece": {}, "pieces": {},
}

// IsUnit reports whether token belongs to the unit vocabulary, ignoring case
// and diacritics.
func IsUnit(token string) bool {
	_, ok := units[strings.ToLower(stripDiacritics(token))]
	return ok
}

// Normalize returns s trimmed and without diacritics, the form ingredient
// names are stored and searched in.
func Normalize(s string) string {
	return stripDiacritics(strings.TrimSpace(s))
}

// Parse splits a single ingredient line into quantity, unit and name.
// It never fails: anything it cannot recognize ends up in the name, which is
// built from the diacritic-free tokens. OriginalText keeps the line as typed.
func Parse(line string) domain.Ingredient {
	original := strings.TrimSpace(line)
	parsed := domain.Ingredient{OriginalText: original}

	tokens := strings.Fields(stripDiacritics(original))
	if len(tokens) == 0 {
		// only combining marks were left
		parsed.Name = original
		return parsed
	}

	if qty, ok := parseQuantity(tokens[0]); ok {
		parsed.Quantity = &qty
		tokens = tokens[1:]
	}

	if len(tokens) > 0 {
		folded := strings.ToLower(tokens[0])
		if _, ok := units[folded]; ok {
			parsed.Unit = &folded
			tokens = tokens[1:]
		}
	}

	parsed.Name = strings.Join(tokens, " ")
	return parsed
}

// ParseLines parses a multi-line form value, one ingredient per line.
// Blank lines are discarded.
func ParseLines(text string) []domain.Ingredient {
	lines := SplitLines(text)
	out := make([]domain.Ingredient, 0, len(lines))
	for _, line := range lines {
		out = append(out, Parse(line))
	}
	return out
}

// SplitLines splits text on line breaks, trims every line and drops the
// empty ones.
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// parseQuantity accepts plain decimal numbers only; "1/2" is not a number.
func parseQuantity(token string) (float64, bool) {
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
