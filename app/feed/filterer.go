package feed

import (
	"fmt"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run reports whether item is filtered out and why. Filters are applied in
// order and the first match wins.
func (f *Filterer) Run(item Item, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(item Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "description":
		return item.Description
	case "link":
		return item.Link
	case "guid":
		return item.GUID
	default:
		return ""
	}
}

func isFilterField(field string) bool {
	switch field {
	case "title", "description", "link", "guid":
		return true
	default:
		return false
	}
}
