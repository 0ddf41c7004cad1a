// Package model defines shared data structures for the sync service.
package model

import "time"

// Job mirrors a row of the canonical jobs table in Supabase.
//
// All columns are owned by the ingest pipeline except AirtableStatus and
// AirtableStatusChangeTime, which only the reconciler writes (backed up from
// the human-edited Airtable view before rows are pruned there).
type Job struct {
	JobID       string
	URL         string
	Title       string
	Description string
	Skills      []string

	CreatedOn   *time.Time
	PublishedOn *time.Time
	RenewedOn   *time.Time

	DurationLabel string
	ConnectPrice  *int
	JobType       string
	Engagement    string
	ProposalsTier string
	TierText      string

	FixedBudget     *float64
	WeeklyBudget    *float64
	HourlyBudgetMin *float64
	HourlyBudgetMax *float64
	Currency        string

	ClientCountry         string
	ClientTotalSpent      *float64
	ClientPaymentVerified bool
	ClientTotalReviews    *int
	ClientAvgFeedback     *float64

	IsApplied bool

	AirtableStatus           *string
	AirtableStatusChangeTime *time.Time
}

// ScrapeRequest mirrors the scrape_requests table: one capture of one page of
// one search query. Processed is flipped by the loader once the page's jobs
// have been ingested; the row is immutable afterwards.
type ScrapeRequest struct {
	SearchID        string
	QueryTimestamp  time.Time
	UploadTimestamp *time.Time
	Query           string
	Page            int
	Filepath        string
	Processed       bool
}

// SearchResult is the (search, job) membership edge: this job appeared in
// this search's results. ProposalsTier and IsApplied are snapshots taken at
// capture time.
type SearchResult struct {
	SearchID      string
	JobID         string
	ProposalsTier string
	IsApplied     bool
}

// TriageRecord is one row of the Airtable Jobs view.
//
// RecordID is assigned by Airtable. JobID links back to the canonical jobs
// table, where it must exist. Status is the human decision; an
// empty string means "new, undecided". SkillIDs hold linked Skills record
// ids, not skill names.
type TriageRecord struct {
	RecordID string
	JobID    string
	Status   string
	SkillIDs []string

	// LastModified is Airtable's last-modified timestamp for the row, used
	// to stamp airtable_status_change_time on backup when available.
	LastModified *time.Time
}

// SkillRecord is one row of the Airtable Skills view, unique by Name.
type SkillRecord struct {
	RecordID string
	Name     string
}
