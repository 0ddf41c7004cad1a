package store

import (
	"context"
	"fmt"
	"time"

	"github.com/joshslade/upwork-analysis-project/internal/model"
)

// UpsertScrapeRequest records one capture of one search page. Idempotent on
// search_id: the extension may re-upload the same capture.
func (s *Store) UpsertScrapeRequest(ctx context.Context, req model.ScrapeRequest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_requests (search_id, query_timestamp, upload_timestamp, query, page, filepath, processed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (search_id) DO UPDATE SET
		   query_timestamp = EXCLUDED.query_timestamp,
		   upload_timestamp = EXCLUDED.upload_timestamp,
		   query = EXCLUDED.query,
		   page = EXCLUDED.page,
		   filepath = EXCLUDED.filepath`,
		req.SearchID, req.QueryTimestamp, req.UploadTimestamp,
		req.Query, req.Page, req.Filepath, req.Processed)
	if err != nil {
		return fmt.Errorf("upsert scrape request %s: %w", req.SearchID, err)
	}
	return nil
}

// MarkProcessed flips the processed flag once a capture's jobs are ingested
// and stamps the upload timestamp.
func (s *Store) MarkProcessed(ctx context.Context, searchID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_requests SET processed = true, upload_timestamp = $2 WHERE search_id = $1`,
		searchID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark scrape request %s processed: %w", searchID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark scrape request %s processed: %w", searchID, ErrScrapeRequestNotFound)
	}
	return nil
}

// UpsertSearchResults records the (search, job) membership edges for one
// capture. Idempotent on the composite key.
func (s *Store) UpsertSearchResults(ctx context.Context, edges []model.SearchResult) error {
	for _, e := range edges {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO search_results (search_id, job_id, proposals_tier, is_applied)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (search_id, job_id) DO UPDATE SET
			   proposals_tier = EXCLUDED.proposals_tier,
			   is_applied = EXCLUDED.is_applied`,
			e.SearchID, e.JobID, e.ProposalsTier, e.IsApplied)
		if err != nil {
			return fmt.Errorf("upsert search result (%s, %s): %w", e.SearchID, e.JobID, err)
		}
	}
	return nil
}

// RecordSearchPage is the typed boundary the (external) loader calls after
// extracting one search page: register the capture, upsert its jobs, record
// the membership edges, then mark the capture processed.
func (s *Store) RecordSearchPage(ctx context.Context, req model.ScrapeRequest, jobs []model.Job, edges []model.SearchResult) error {
	if err := s.UpsertScrapeRequest(ctx, req); err != nil {
		return err
	}
	if err := s.UpsertJobs(ctx, jobs); err != nil {
		return err
	}
	if err := s.UpsertSearchResults(ctx, edges); err != nil {
		return err
	}
	return s.MarkProcessed(ctx, req.SearchID)
}

// ErrScrapeRequestNotFound is returned when a search_id has no capture row.
var ErrScrapeRequestNotFound = fmt.Errorf("scrape request not found")
