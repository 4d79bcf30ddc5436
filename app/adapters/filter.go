package adapters

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Filterer drops feed items by include/exclude keyword rules.
type Filterer struct {
	filters []ConfigFilter
}

func NewFilterer(filters []ConfigFilter) *Filterer {
	return &Filterer{filters: filters}
}

// Run reports whether item is filtered out and why.
func (f *Filterer) Run(item Item) (bool, string) {
	fold := cases.Fold()

	for _, filter := range f.filters {
		value := fold.String(fieldValue(item, filter.Field))

		for _, exclude := range filter.Excludes {
			if strings.Contains(value, fold.String(exclude)) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if strings.Contains(value, fold.String(include)) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func fieldValue(item Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "description":
		return item.Description
	case "content":
		return item.Content
	case "link":
		return item.Link
	case "categories":
		return strings.Join(item.Categories, " ")
	default:
		return ""
	}
}
