package services

import (
	"context"
	"strings"

	"kosh/internal/storage"
)

// builtinKeywords maps substrings of transaction text to default categories.
// Order matters: earlier groups win when keywords from two groups both
// appear in the text.
var builtinKeywords = []struct {
	category string
	keywords []string
}{
	{"Food", []string{"food", "restaurant", "cafe", "zomato", "swiggy", "dinner", "lunch"}},
	{"Transport", []string{"uber", "ola", "taxi", "metro", "bus", "fuel", "petrol", "diesel"}},
	{"Utilities", []string{"electricity", "water", "internet", "wifi", "gas", "bill", "recharge"}},
	{"Entertainment", []string{"movie", "netflix", "spotify", "game", "concert"}},
	{"Healthcare", []string{"doctor", "medicine", "pharmacy", "hospital", "clinic"}},
	{"Education", []string{"course", "tuition", "book", "exam", "school", "college"}},
}

// Categorizer resolves a category for free-form transaction text. User rules
// take precedence over the builtin keyword table, which takes precedence
// over spending history.
type Categorizer struct {
	storage *storage.SQLiteRepository
}

func NewCategorizer(storage *storage.SQLiteRepository) *Categorizer {
	return &Categorizer{storage: storage}
}

// Resolve returns the category for text, or "" when every tier comes up
// empty. The caller decides what an empty result means (usually leaving the
// entry uncategorized for manual review).
func (c *Categorizer) Resolve(ctx context.Context, userID int64, text string) (string, error) {
	rule, err := c.storage.FindImportRule(ctx, userID, text)
	if err != nil {
		return "", err
	}
	if rule != nil {
		return rule.Category, nil
	}

	if cat := builtinCategory(text); cat != "" {
		return cat, nil
	}

	return c.storage.SuggestCategory(ctx, userID, text)
}

// builtinCategory scans the keyword table in declaration order and returns
// the first group containing a keyword found in text.
func builtinCategory(text string) string {
	lower := strings.ToLower(text)
	for _, group := range builtinKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.category
			}
		}
	}
	return ""
}
