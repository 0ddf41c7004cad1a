package selector_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/joshslade/upwork-analysis-project/internal/config"
	"github.com/joshslade/upwork-analysis-project/internal/model"
	"github.com/joshslade/upwork-analysis-project/internal/selector"
)

func jobWithID(id string, published time.Time) model.Job {
	p := published
	return model.Job{JobID: id, PublishedOn: &p}
}

func ids(jobs []model.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.JobID)
	}
	return out
}

// ── Select ─────────────────────────────────────────────────────────────────

// Equal scores and equal published timestamps fall back to ascending job id,
// regardless of the input's order.
func TestSelect_TieBrokenByJobID(t *testing.T) {
	published := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	score := func(j model.Job) float64 {
		if j.JobID == "c" {
			return 5
		}
		return 10
	}

	input := []model.Job{
		jobWithID("c", published),
		jobWithID("b", published),
		jobWithID("a", published),
	}

	got := ids(selector.Select(input, 2, score))
	want := []string{"a", "b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select returned wrong jobs (-want +got):\n%s", diff)
	}
}

// Same input set in any iteration order must yield the same output sequence.
func TestSelect_OrderIndependent(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	jobs := []model.Job{
		jobWithID("j1", base.Add(3*time.Hour)),
		jobWithID("j2", base.Add(3*time.Hour)), // ties with j1 on score and time
		jobWithID("j3", base.Add(1*time.Hour)),
		jobWithID("j4", base.Add(2*time.Hour)),
	}
	score := func(model.Job) float64 { return 1 }

	want := ids(selector.Select(jobs, 4, score))

	permutations := [][]int{
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}
	for _, perm := range permutations {
		shuffled := make([]model.Job, 0, len(jobs))
		for _, i := range perm {
			shuffled = append(shuffled, jobs[i])
		}
		got := ids(selector.Select(shuffled, 4, score))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Select order-dependent for permutation %v (-want +got):\n%s", perm, diff)
		}
	}
}

func TestSelect_EqualScoresOrderedByPublishedDesc(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	input := []model.Job{
		jobWithID("old", base),
		jobWithID("new", base.Add(48*time.Hour)),
		jobWithID("mid", base.Add(24*time.Hour)),
	}
	score := func(model.Job) float64 { return 1 }

	got := ids(selector.Select(input, 3, score))
	want := []string{"new", "mid", "old"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select published-desc ordering wrong (-want +got):\n%s", diff)
	}
}

func TestSelect_TrimsToN(t *testing.T) {
	published := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	input := []model.Job{
		jobWithID("a", published),
		jobWithID("b", published),
		jobWithID("c", published),
	}
	score := func(model.Job) float64 { return 1 }

	if got := selector.Select(input, 2, score); len(got) != 2 {
		t.Errorf("Select(n=2) returned %d jobs, want 2", len(got))
	}
	if got := selector.Select(input, 10, score); len(got) != 3 {
		t.Errorf("Select(n=10) returned %d jobs, want 3", len(got))
	}
	if got := selector.Select(input, 0, score); got != nil {
		t.Errorf("Select(n=0) returned %v, want nil", got)
	}
}

func TestSelect_NilPublishedSortsLast(t *testing.T) {
	published := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	noDate := model.Job{JobID: "undated"}
	input := []model.Job{noDate, jobWithID("dated", published)}
	score := func(model.Job) float64 { return 1 }

	got := ids(selector.Select(input, 2, score))
	want := []string{"dated", "undated"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select nil-published ordering wrong (-want +got):\n%s", diff)
	}
}

// ── Weighted ───────────────────────────────────────────────────────────────

func TestWeighted_PrefersFresherHigherBudget(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	weights := config.ScoringWeights{Recency: 1, Budget: 1}
	score := selector.Weighted(weights, now)

	budget := 1500.0
	fresh := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	stale := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	rich := model.Job{JobID: "rich", PublishedOn: &fresh, FixedBudget: &budget}
	poor := model.Job{JobID: "poor", PublishedOn: &stale}

	if score(rich) <= score(poor) {
		t.Errorf("Weighted score should prefer fresh high-budget job: rich=%v poor=%v",
			score(rich), score(poor))
	}
}

func TestWeighted_CompetitionTiers(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	score := selector.Weighted(config.ScoringWeights{Competition: 1}, now)

	low := model.Job{JobID: "low", ProposalsTier: "Less than 5"}
	high := model.Job{JobID: "high", ProposalsTier: "50+"}

	if score(low) <= score(high) {
		t.Errorf("fewer proposals should score higher: low=%v high=%v", score(low), score(high))
	}
}
