package forum

import (
	"fmt"
	"strconv"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

func (f *Filterer) Run(topics []Topic, sourceConfig *Config) []Topic {
	if len(sourceConfig.Filters) == 0 {
		return topics
	}

	filtered := make([]Topic, 0, len(topics))
	for _, topic := range topics {
		topic.IsFiltered, topic.FilterReason = f.applyFilters(topic, sourceConfig.Filters)
		filtered = append(filtered, topic)
	}

	return filtered
}

func (f *Filterer) applyFilters(topic Topic, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(topic, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
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
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(topic Topic, field string) string {
	switch field {
	case "title":
		return topic.Title
	case "body":
		return topic.Body
	case "author":
		if topic.AuthorID == nil {
			return ""
		}
		return strconv.Itoa(*topic.AuthorID)
	default:
		return ""
	}
}
