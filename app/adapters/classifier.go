package adapters

import (
	"strings"

	"github.com/lysyi3m/signal-comb/app/signals"
	"golang.org/x/text/cases"
)

// Classifier maps feed text to a signal category by keyword rules.
type Classifier struct {
	rules    map[signals.Category][]string
	fallback signals.Category
}

func NewClassifier(rules map[string][]string, fallback string) *Classifier {
	c := &Classifier{
		rules:    make(map[signals.Category][]string, len(rules)),
		fallback: signals.Category(fallback),
	}
	for category, keywords := range rules {
		c.rules[signals.Category(category)] = keywords
	}
	return c
}

// Classify returns the first category, in signals.Categories order, with a
// keyword present in the item's title, description or tags.
func (c *Classifier) Classify(item Item) signals.Category {
	fold := cases.Fold()
	text := fold.String(strings.Join(append([]string{item.Title, item.Description}, item.Categories...), " "))

	for _, category := range signals.Categories {
		for _, keyword := range c.rules[category] {
			if keyword != "" && strings.Contains(text, fold.String(keyword)) {
				return category
			}
		}
	}

	return c.fallback
}
