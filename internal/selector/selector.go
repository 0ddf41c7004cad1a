// Package selector ranks promotion candidates and picks the bounded subset
// that gets a slot in the triage view.
package selector

import (
	"sort"
	"time"

	"github.com/joshslade/upwork-analysis-project/internal/config"
	"github.com/joshslade/upwork-analysis-project/internal/model"
)

// ScorePolicy assigns a promotion score to a job. Higher wins. Policies must
// be pure: same job, same score.
type ScorePolicy func(model.Job) float64

// Select returns at most n jobs ordered highest score first. Ties are broken
// by most recent published_on, then by ascending job_id, so the result is
// independent of the input's iteration order.
func Select(jobs []model.Job, n int, score ScorePolicy) []model.Job {
	if n <= 0 || len(jobs) == 0 {
		return nil
	}

	type scored struct {
		job   model.Job
		score float64
	}
	ranked := make([]scored, 0, len(jobs))
	for _, j := range jobs {
		ranked = append(ranked, scored{job: j, score: score(j)})
	}

	sort.Slice(ranked, func(i, k int) bool {
		a, b := ranked[i], ranked[k]
		if a.score != b.score {
			return a.score > b.score
		}
		ap, bp := publishedOrZero(a.job), publishedOrZero(b.job)
		if !ap.Equal(bp) {
			return ap.After(bp)
		}
		return a.job.JobID < b.job.JobID
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]model.Job, 0, n)
	for _, s := range ranked[:n] {
		out = append(out, s.job)
	}
	return out
}

func publishedOrZero(j model.Job) time.Time {
	if j.PublishedOn == nil {
		return time.Time{}
	}
	return *j.PublishedOn
}

// Weighted builds the default scoring policy from configured weights. The
// reference time anchors the recency signal so a whole run scores against
// one clock.
func Weighted(w config.ScoringWeights, now time.Time) ScorePolicy {
	return func(j model.Job) float64 {
		return w.Recency*recencyScore(j, now) +
			w.Budget*budgetScore(j) +
			w.ClientReputation*reputationScore(j) +
			w.Competition*competitionScore(j)
	}
}

// recencyScore decays linearly from 1 to 0 over a week.
func recencyScore(j model.Job, now time.Time) float64 {
	if j.PublishedOn == nil {
		return 0
	}
	age := now.Sub(*j.PublishedOn)
	if age < 0 {
		age = 0
	}
	const week = 7 * 24 * time.Hour
	if age >= week {
		return 0
	}
	return 1 - float64(age)/float64(week)
}

// budgetScore normalises whichever budget shape the job carries into [0,1].
// Fixed budgets saturate at 2000, hourly maxima at 100.
func budgetScore(j model.Job) float64 {
	switch {
	case j.FixedBudget != nil && *j.FixedBudget > 0:
		return clamp01(*j.FixedBudget / 2000)
	case j.HourlyBudgetMax != nil && *j.HourlyBudgetMax > 0:
		return clamp01(*j.HourlyBudgetMax / 100)
	case j.WeeklyBudget != nil && *j.WeeklyBudget > 0:
		return clamp01(*j.WeeklyBudget / 4000)
	}
	return 0
}

// reputationScore blends payment verification, historical spend and average
// feedback into [0,1].
func reputationScore(j model.Job) float64 {
	var s float64
	if j.ClientPaymentVerified {
		s += 0.3
	}
	if j.ClientTotalSpent != nil {
		s += 0.4 * clamp01(*j.ClientTotalSpent/10000)
	}
	if j.ClientAvgFeedback != nil {
		s += 0.3 * clamp01(*j.ClientAvgFeedback/5)
	}
	return s
}

// proposalTierScores maps Upwork's proposal-count tiers to an inverse
// competition score: fewer existing proposals, higher score.
var proposalTierScores = map[string]float64{
	"Less than 5": 1.0,
	"5 to 10":     0.8,
	"10 to 15":    0.6,
	"15 to 20":    0.4,
	"20 to 50":    0.2,
	"50+":         0.0,
}

func competitionScore(j model.Job) float64 {
	if s, ok := proposalTierScores[j.ProposalsTier]; ok {
		return s
	}
	return 0.5 // unknown tier: neutral
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
