package selector_test

import (
	"testing"

	"github.com/joshslade/upwork-analysis-project/internal/model"
	"github.com/joshslade/upwork-analysis-project/internal/selector"
)

func TestContainsExcludedTerm_CaseInsensitive(t *testing.T) {
	terms := []string{"WordPress", "crypto"}

	if !selector.ContainsExcludedTerm("Fix my WORDPRESS site", "", terms) {
		t.Error("uppercase match in title should be excluded")
	}
	if !selector.ContainsExcludedTerm("Data pipeline", "we are a Crypto startup", terms) {
		t.Error("match in description should be excluded")
	}
	if selector.ContainsExcludedTerm("Go backend work", "build an API", terms) {
		t.Error("job without terms should not be excluded")
	}
}

func TestContainsExcludedTerm_EmptyTermsNeverMatch(t *testing.T) {
	if selector.ContainsExcludedTerm("anything", "at all", nil) {
		t.Error("nil term list should never exclude")
	}
	if selector.ContainsExcludedTerm("anything", "at all", []string{""}) {
		t.Error("empty term should be ignored, not match everything")
	}
}

func TestFilterExcluded(t *testing.T) {
	jobs := []model.Job{
		{JobID: "keep", Title: "Go backend"},
		{JobID: "drop", Title: "WordPress plugin"},
	}

	got := selector.FilterExcluded(jobs, []string{"wordpress"})
	if len(got) != 1 || got[0].JobID != "keep" {
		t.Errorf("FilterExcluded = %v, want only job %q", got, "keep")
	}

	// No terms: input passes through untouched.
	if got := selector.FilterExcluded(jobs, nil); len(got) != 2 {
		t.Errorf("FilterExcluded with no terms dropped jobs: %v", got)
	}
}
