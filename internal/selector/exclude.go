package selector

import (
	"strings"

	"github.com/joshslade/upwork-analysis-project/internal/model"
)

// ContainsExcludedTerm returns true if any exclusion term appears
// (case-insensitive) anywhere in the combined title + description text.
//
// Checked before scoring; a match removes the job from the candidate set.
func ContainsExcludedTerm(title, description string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	combined := strings.ToLower(title + " " + description)
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// FilterExcluded drops candidates matching any exclusion term. The input
// slice is not modified.
func FilterExcluded(jobs []model.Job, terms []string) []model.Job {
	if len(terms) == 0 {
		return jobs
	}
	kept := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if ContainsExcludedTerm(j.Title, j.Description, terms) {
			continue
		}
		kept = append(kept, j)
	}
	return kept
}
