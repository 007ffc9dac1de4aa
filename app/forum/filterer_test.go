package forum

import (
	"strings"
	"testing"
)

func TestFilterer_NoFilters(t *testing.T) {
	filterer := NewFilterer()
	topics := []Topic{{Title: "Korean Cup"}, {Title: "Spring Cup"}}

	result := filterer.Run(topics, &Config{})

	if len(result) != 2 {
		t.Fatalf("Expected 2 topics, got %d", len(result))
	}
	for _, topic := range result {
		if topic.IsFiltered {
			t.Errorf("Expected topic %q not to be filtered", topic.Title)
		}
	}
}

func TestFilterer_ExcludeAndInclude(t *testing.T) {
	filterer := NewFilterer()
	author := 7562902
	topics := []Topic{
		{Title: "[STD] Korean Cup 2025", Body: "Registrations open", AuthorID: &author},
		{Title: "[CANCELLED] Winter Cup", Body: "Registrations open", AuthorID: &author},
		{Title: "Looking for team", Body: "Anyone want to play?"},
	}

	sourceConfig := &Config{
		Filters: []ConfigFilter{
			{Field: "title", Excludes: []string{"[cancelled]"}},
			{Field: "body", Includes: []string{"registration"}},
		},
	}

	result := filterer.Run(topics, sourceConfig)

	if result[0].IsFiltered {
		t.Errorf("Expected first topic to pass, got reason %q", result[0].FilterReason)
	}
	if !result[1].IsFiltered || !strings.Contains(result[1].FilterReason, "contains '[cancelled]'") {
		t.Errorf("Expected cancelled topic to be excluded, got %v %q", result[1].IsFiltered, result[1].FilterReason)
	}
	if !result[2].IsFiltered || !strings.Contains(result[2].FilterReason, "does not contain any of") {
		t.Errorf("Expected topic without registration to be excluded, got %v %q", result[2].IsFiltered, result[2].FilterReason)
	}
}

func TestFilterer_AuthorField(t *testing.T) {
	filterer := NewFilterer()
	banned := 1234
	topics := []Topic{
		{Title: "Cup A", AuthorID: &banned},
		{Title: "Cup B"},
	}

	sourceConfig := &Config{
		Filters: []ConfigFilter{{Field: "author", Excludes: []string{"1234"}}},
	}

	result := filterer.Run(topics, sourceConfig)

	if !result[0].IsFiltered {
		t.Error("Expected topic by excluded author to be filtered")
	}
	if result[1].IsFiltered {
		t.Error("Expected topic without author to pass")
	}
}
