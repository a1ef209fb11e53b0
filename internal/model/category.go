package model

import "strings"

// Category groups activities and events by area (study, work, exercise, etc.).
// Values are the wire codes used by the backend.
type Category string

const (
	CategoryStudy    Category = "estudio"
	CategoryWork     Category = "trabajo"
	CategoryExercise Category = "ejercicio"
	CategoryLeisure  Category = "ocio"
	CategoryPersonal Category = "personal"
	CategoryFamily   Category = "familia"
)

// DefaultColor is used for events without a known category.
const DefaultColor = "#6b7280"

// Categories lists the known categories in display order.
var Categories = []Category{
	CategoryStudy,
	CategoryWork,
	CategoryExercise,
	CategoryLeisure,
	CategoryPersonal,
	CategoryFamily,
}

var categoryColors = map[Category]string{
	CategoryStudy:    "#3b82f6",
	CategoryWork:     "#8b5cf6",
	CategoryExercise: "#ef4444",
	CategoryLeisure:  "#22c55e",
	CategoryPersonal: "#f97316",
	CategoryFamily:   "#ec4899",
}

var categoryAliases = map[string]Category{
	"study":    CategoryStudy,
	"work":     CategoryWork,
	"exercise": CategoryExercise,
	"leisure":  CategoryLeisure,
	"family":   CategoryFamily,
	"descanso": CategoryLeisure,
	"social":   CategoryFamily,
}

var categoryLabels = map[Category]string{
	CategoryStudy:    "📚 Study",
	CategoryWork:     "💼 Work",
	CategoryExercise: "🏃 Exercise",
	CategoryLeisure:  "🎮 Leisure",
	CategoryPersonal: "📝 Personal",
	CategoryFamily:   "👨‍👩‍👧 Family",
}

// ParseCategory resolves a wire code or an English alias. Matching ignores
// case and surrounding spaces.
func ParseCategory(raw string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	if _, ok := categoryColors[Category(key)]; ok {
		return Category(key), true
	}
	if c, ok := categoryAliases[key]; ok {
		return c, true
	}
	return "", false
}

// ColorFor maps any category string to its hex color. Unknown or empty
// values map to DefaultColor.
func ColorFor(category string) string {
	c, ok := ParseCategory(category)
	if !ok {
		return DefaultColor
	}
	return categoryColors[c]
}

// Label returns a human-readable name with an icon.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	if c == "" {
		return "📌 Uncategorized"
	}
	return "📌 " + string(c)
}

func (c Category) Valid() bool {
	_, ok := categoryColors[c]
	return ok
}
