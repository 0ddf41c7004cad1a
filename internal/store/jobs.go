// Package store is the typed client for the canonical record store (the
// Supabase Postgres database holding every ingested job, search and
// membership edge).
//
// All writes are idempotent upserts on the primary key: re-submitting an
// identical record is a no-op. The reconciler is the only writer of the
// airtable_status columns; upserts from the ingest side deliberately never
// touch them.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joshslade/upwork-analysis-project/internal/model"
)

// Store wraps a pgx pool with typed access to the three record sets.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store over an established pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// jobColumns is the scan/select order used by every jobs query.
const jobColumns = `job_id, url, title, description, skills,
	created_on, published_on, renewed_on,
	duration_label, connect_price, job_type, engagement, proposals_tier, tier_text,
	fixed_budget, weekly_budget, hourly_budget_min, hourly_budget_max, currency,
	client_country, client_total_spent, client_payment_verified,
	client_total_reviews, client_avg_feedback,
	is_applied, airtable_status, airtable_status_change_time`

func scanJob(row interface{ Scan(...any) error }) (model.Job, error) {
	var j model.Job
	err := row.Scan(
		&j.JobID, &j.URL, &j.Title, &j.Description, &j.Skills,
		&j.CreatedOn, &j.PublishedOn, &j.RenewedOn,
		&j.DurationLabel, &j.ConnectPrice, &j.JobType, &j.Engagement, &j.ProposalsTier, &j.TierText,
		&j.FixedBudget, &j.WeeklyBudget, &j.HourlyBudgetMin, &j.HourlyBudgetMax, &j.Currency,
		&j.ClientCountry, &j.ClientTotalSpent, &j.ClientPaymentVerified,
		&j.ClientTotalReviews, &j.ClientAvgFeedback,
		&j.IsApplied, &j.AirtableStatus, &j.AirtableStatusChangeTime,
	)
	return j, err
}

// UpsertJobs inserts or updates job records on job_id. Ingest-owned columns
// are overwritten; the airtable_status columns are left untouched so a
// re-ingest can never clobber a backed-up human decision.
func (s *Store) UpsertJobs(ctx context.Context, jobs []model.Job) error {
	for _, j := range jobs {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO jobs (
			   job_id, url, title, description, skills,
			   created_on, published_on, renewed_on,
			   duration_label, connect_price, job_type, engagement, proposals_tier, tier_text,
			   fixed_budget, weekly_budget, hourly_budget_min, hourly_budget_max, currency,
			   client_country, client_total_spent, client_payment_verified,
			   client_total_reviews, client_avg_feedback, is_applied
			 ) VALUES (
			   $1, $2, $3, $4, $5,
			   $6, $7, $8,
			   $9, $10, $11, $12, $13, $14,
			   $15, $16, $17, $18, $19,
			   $20, $21, $22,
			   $23, $24, $25
			 )
			 ON CONFLICT (job_id) DO UPDATE SET
			   url = EXCLUDED.url,
			   title = EXCLUDED.title,
			   description = EXCLUDED.description,
			   skills = EXCLUDED.skills,
			   created_on = EXCLUDED.created_on,
			   published_on = EXCLUDED.published_on,
			   renewed_on = EXCLUDED.renewed_on,
			   duration_label = EXCLUDED.duration_label,
			   connect_price = EXCLUDED.connect_price,
			   job_type = EXCLUDED.job_type,
			   engagement = EXCLUDED.engagement,
			   proposals_tier = EXCLUDED.proposals_tier,
			   tier_text = EXCLUDED.tier_text,
			   fixed_budget = EXCLUDED.fixed_budget,
			   weekly_budget = EXCLUDED.weekly_budget,
			   hourly_budget_min = EXCLUDED.hourly_budget_min,
			   hourly_budget_max = EXCLUDED.hourly_budget_max,
			   currency = EXCLUDED.currency,
			   client_country = EXCLUDED.client_country,
			   client_total_spent = EXCLUDED.client_total_spent,
			   client_payment_verified = EXCLUDED.client_payment_verified,
			   client_total_reviews = EXCLUDED.client_total_reviews,
			   client_avg_feedback = EXCLUDED.client_avg_feedback,
			   is_applied = EXCLUDED.is_applied`,
			j.JobID, j.URL, j.Title, j.Description, j.Skills,
			j.CreatedOn, j.PublishedOn, j.RenewedOn,
			j.DurationLabel, j.ConnectPrice, j.JobType, j.Engagement, j.ProposalsTier, j.TierText,
			j.FixedBudget, j.WeeklyBudget, j.HourlyBudgetMin, j.HourlyBudgetMax, j.Currency,
			j.ClientCountry, j.ClientTotalSpent, j.ClientPaymentVerified,
			j.ClientTotalReviews, j.ClientAvgFeedback, j.IsApplied,
		)
		if err != nil {
			return fmt.Errorf("upsert job %s: %w", j.JobID, err)
		}
	}
	return nil
}

// GetJob returns one job by id, or ErrJobNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = $1`, jobID)
	j, err := scanJob(row)
	if err != nil {
		return nil, ErrJobNotFound
	}
	return &j, nil
}

// GetJobs returns the jobs matching the given ids. Ids absent from the store
// are simply missing from the result; the caller decides whether that is a
// stale reference worth logging.
func (s *Store) GetJobs(ctx context.Context, jobIDs []string) ([]model.Job, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = ANY($1)`, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("query jobs by id: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// EligibleForPromotion returns jobs never shown in the triage view
// (airtable_status IS NULL) plus jobs whose backed-up status is in the
// repromotable set.
func (s *Store) EligibleForPromotion(ctx context.Context, repromotable []string) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE airtable_status IS NULL OR airtable_status = ANY($1)`,
		repromotable)
	if err != nil {
		return nil, fmt.Errorf("query eligible jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan eligible job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// StatusUpdate carries one human decision back into the canonical store.
type StatusUpdate struct {
	JobID     string
	Status    string
	ChangedAt time.Time
}

/// StatusBackupResult reports a WriteTriageStatuses call: how many rows were
// updated and which job ids had no canonical record (stale references,
// skipped rather than fatal).
type StatusBackupResult struct {
	Updated []string
	Missing []string
}

// WriteTriageStatuses persists human decisions into airtable_status and
// airtable_status_change_time. Updates for unknown job ids are collected in
// Missing; they do not abort the rest of the batch.
func (s *Store) WriteTriageStatuses(ctx context.Context, updates []StatusUpdate) (StatusBackupResult, error) {
	var res StatusBackupResult
	for _, u := range updates {
		tag, err := s.pool.Exec(ctx,
			`UPDATE jobs
			 SET airtable_status = $2, airtable_status_change_time = $3
			 WHERE job_id = $1`,
			u.JobID, u.Status, u.ChangedAt)
		if err != nil {
			return res, fmt.Errorf("write triage status for %s: %w", u.JobID, err)
		}
		if tag.RowsAffected() == 0 {
			res.Missing = append(res.Missing, u.JobID)
			continue
		}
		res.Updated = append(res.Updated, u.JobID)
	}
	return res, nil
}

// ErrJobNotFound is returned when a job id has no canonical record.
var ErrJobNotFound = fmt.Errorf("job not found")
