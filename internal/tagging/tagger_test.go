package tagging

import (
	"sort"
	"testing"
)

func TestNew(t *testing.T) {
	tagger := New()
	if tagger == nil {
		t.Fatal("New() returned nil")
	}
	if tagger.rules == nil {
		t.Fatal("New() returned tagger with nil rules")
	}
	if len(tagger.rules) == 0 {
		t.Fatal("New() returned tagger with empty rules")
	}
}

func TestInferTopics_SingleMatch(t *testing.T) {
	tagger := New()

	tests := []struct {
		name          string
		title         string
		content       string
		expectedTopic string
	}{
		{
			name:          "AI in title",
			title:         "OpenAI Ships New Model",
			content:       "",
			expectedTopic: "AI",
		},
		{
			name:          "business in content",
			title:         "Quarterly results are in",
			content:       "The company reported record earnings this quarter",
			expectedTopic: "Business",
		},
		{
			name:          "climate keyword",
			title:         "Wildfire season starts early this year",
			content:       "",
			expectedTopic: "Climate",
		},
		{
			name:          "security keyword",
			title:         "Major ransomware attack hits hospitals",
			content:       "",
			expectedTopic: "Security",
		},
		{
			name:          "tutorial keyword",
			title:         "How to self-host your own feed reader",
			content:       "",
			expectedTopic: "Tutorial",
		},
		{
			name:          "review keyword",
			title:         "Hands-on with the latest e-reader",
			content:       "",
			expectedTopic: "Review",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topics := tagger.InferTopics(tt.title, tt.content)
			found := false
			for _, topic := range topics {
				if topic == tt.expectedTopic {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("InferTopics() did not return expected topic %q, got: %v", tt.expectedTopic, topics)
			}
		})
	}
}

func TestInferTopics_MultipleMatches(t *testing.T) {
	tagger := New()

	topics := tagger.InferTopics(
		"Review: the best machine learning stock screeners",
		"A hands-on comparison of software that watches the market for you",
	)

	expected := []string{"AI", "Review", "Business", "Technology"}
	for _, want := range expected {
		found := false
		for _, topic := range topics {
			if topic == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected topic %q not found in %v", want, topics)
		}
	}
}

func TestInferTopics_NoMatch(t *testing.T) {
	tagger := New()

	topics := tagger.InferTopics("Untitled", "nothing notable here")
	if len(topics) != 0 {
		t.Errorf("InferTopics() = %v, want no topics", topics)
	}
}

func TestInferTopics_CaseInsensitive(t *testing.T) {
	tagger := New()

	lower := tagger.InferTopics("new vaccine approved", "")
	upper := tagger.InferTopics("NEW VACCINE APPROVED", "")

	sort.Strings(lower)
	sort.Strings(upper)
	if len(lower) == 0 || len(lower) != len(upper) {
		t.Fatalf("case sensitivity mismatch: %v vs %v", lower, upper)
	}
	for i := range lower {
		if lower[i] != upper[i] {
			t.Errorf("topics differ by case: %v vs %v", lower, upper)
		}
	}
}
