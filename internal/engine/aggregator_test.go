package engine

import (
	"testing"
)

type mapDirectory map[string]string

func (d mapDirectory) Name(categoryID string) (string, bool) {
	name, ok := d[categoryID]
	return name, ok
}

func TestAggregateEmpty(t *testing.T) {
	result := Aggregate(nil, mapDirectory{})

	if result.Category != CategoryUncategorized {
		t.Errorf("Category = %q, want %q", result.Category, CategoryUncategorized)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %f, want 0", result.Confidence)
	}
	if result.Matches == nil || len(result.Matches) != 0 {
		t.Errorf("Matches = %v, want empty non-nil slice", result.Matches)
	}
}

func TestAggregateMajorityWins(t *testing.T) {
	candidates := []MatchCandidate{
		{CategoryID: "cat-a", Confidence: 0.5},
		{CategoryID: "cat-a", Confidence: 0.6},
		{CategoryID: "cat-b", Confidence: 0.7},
	}
	dir := mapDirectory{"cat-a": "Finance", "cat-b": "Legal"}

	result := Aggregate(candidates, dir)
	if result.Category != "Finance" {
		t.Errorf("Category = %q, want Finance", result.Category)
	}
	if len(result.Matches) != 3 {
		t.Errorf("Matches = %d, want all 3 candidates", len(result.Matches))
	}
}

func TestAggregateConfidenceIsGlobalMax(t *testing.T) {
	// cat-a wins on votes, but the reported confidence is the maximum over
	// the whole candidate list, which belongs to cat-b.
	candidates := []MatchCandidate{
		{CategoryID: "cat-a", Confidence: 0.9},
		{CategoryID: "cat-a", Confidence: 0.4},
		{CategoryID: "cat-b", Confidence: 0.95},
	}
	dir := mapDirectory{"cat-a": "Finance", "cat-b": "Legal"}

	result := Aggregate(candidates, dir)
	if result.Category != "Finance" {
		t.Errorf("Category = %q, want Finance", result.Category)
	}
	if result.Confidence != 0.95 {
		t.Errorf("Confidence = %f, want the global max 0.95", result.Confidence)
	}
}

func TestAggregateTieBreakFirstEncountered(t *testing.T) {
	candidates := []MatchCandidate{
		{CategoryID: "cat-b", Confidence: 0.5},
		{CategoryID: "cat-a", Confidence: 0.5},
	}
	dir := mapDirectory{"cat-a": "Finance", "cat-b": "Legal"}

	result := Aggregate(candidates, dir)
	if result.Category != "Legal" {
		t.Errorf("Tie broke to %q, want first-encountered Legal", result.Category)
	}
}

func TestAggregateUnknownCategoryID(t *testing.T) {
	candidates := []MatchCandidate{{CategoryID: "cat-deleted", Confidence: 0.8}}

	result := Aggregate(candidates, mapDirectory{})
	if result.Category != CategoryUncategorized {
		t.Errorf("Category = %q, want %q for unresolvable ID", result.Category, CategoryUncategorized)
	}
	// Evidence is still reported even when the ID no longer resolves.
	if result.Confidence != 0.8 {
		t.Errorf("Confidence = %f, want 0.8", result.Confidence)
	}
}

func TestAggregateNilDirectory(t *testing.T) {
	candidates := []MatchCandidate{{CategoryID: "cat-a", Confidence: 0.6}}

	result := Aggregate(candidates, nil)
	if result.Category != "cat-a" {
		t.Errorf("Category = %q, want the raw ID without a directory", result.Category)
	}
}
