// Package airtable is the typed client for the triage view: the small,
// human-edited Airtable base surfacing an active subset of canonical jobs.
//
// Airtable's API is batch-constrained (10 records per mutating call) and
// rate-limited (5 requests per second, 429 on excess). Every mutating method
// chunks its input to the batch ceiling and retries transient failures with
// exponential backoff before surfacing a TransientError.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joshslade/upwork-analysis-project/internal/config"
)

const (
	defaultBaseURL = "https://api.airtable.com/v0"
	batchCeiling   = 10 // Airtable hard limit per mutating call
	inflightLimit  = 4  // concurrent batch calls per operation
	maxAttempts    = 4
	initialBackoff = 500 * time.Millisecond
	httpTimeout    = 15 * time.Second
)

// Client talks to one Airtable base holding the Jobs and Skills tables.
type Client struct {
	apiKey        string
	baseID        string
	jobsTableID   string
	skillsTableID string
	baseURL       string
	policy        config.Policy
	client        *http.Client
	backoff       time.Duration

	// rdb caches the skill name → record id map across runs. Optional:
	// a nil client falls back to listing the Skills table every run.
	rdb *redis.Client
}

// NewClient constructs a Client. rdb may be nil.
func NewClient(cfg *config.Config, policy config.Policy, rdb *redis.Client) *Client {
	return &Client{
		apiKey:        cfg.AirtableAPIKey,
		baseID:        cfg.AirtableBaseID,
		jobsTableID:   cfg.AirtableJobsTableID,
		skillsTableID: cfg.AirtableSkillTableID,
		baseURL:       defaultBaseURL,
		policy:        policy,
		client:        &http.Client{Timeout: httpTimeout},
		backoff:       initialBackoff,
		rdb:           rdb,
	}
}

// apiRecord mirrors one record in Airtable's wire format.
type apiRecord struct {
	ID          string         `json:"id,omitempty"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// recordPage mirrors a paginated list response.
type recordPage struct {
	Records []apiRecord `json:"records"`
	Offset  string      `json:"offset,omitempty"`
}

// recordBatch mirrors the request/response body of batch mutations.
type recordBatch struct {
	Records []apiRecord `json:"records"`
}

// deleteResponse mirrors the response of a batch delete.
type deleteResponse struct {
	Records []struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	} `json:"records"`
}

// doJSON performs one HTTP exchange with bounded retry on 429 and 5xx.
// A nil out skips response decoding.
func (c *Client) doJSON(ctx context.Context, op, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("airtable %s: marshal request: %w", op, err)
		}
	}

	backoff := c.backoff
	if backoff <= 0 {
		backoff = initialBackoff
	}
	var lastErr error
	lastStatus := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return fmt.Errorf("airtable %s: build request: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Transport errors and timeouts are transient.
			lastErr, lastStatus = err, 0
			log.Printf("[airtable] %s attempt %d/%d failed: %v", op, attempt, maxAttempts, err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr, lastStatus = readErr, resp.StatusCode
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("airtable %s: decode response: %w", op, err)
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests:
			// Honor Retry-After when Airtable provides one; it is the
			// service's own backpressure signal.
			if ra := retryAfter(resp); ra > backoff {
				backoff = ra
			}
			lastErr = fmt.Errorf("rate limited")
			lastStatus = resp.StatusCode
			log.Printf("[airtable] %s attempt %d/%d rate limited, next backoff %s", op, attempt, maxAttempts, backoff)

		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %s", truncate(respBody, 200))
			lastStatus = resp.StatusCode
			log.Printf("[airtable] %s attempt %d/%d got %d", op, attempt, maxAttempts, resp.StatusCode)

		default:
			// 4xx other than 429 will not improve on retry.
			return fmt.Errorf("airtable %s: status %d: %s", op, resp.StatusCode, truncate(respBody, 200))
		}
	}

	return &TransientError{Op: op, StatusCode: lastStatus, Err: lastErr}
}

func retryAfter(resp *http.Response) time.Duration {
	s := resp.Header.Get("Retry-After")
	if s == "" {
		return 0
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}

// listAll pages through a table, optionally constrained by filterByFormula.
func (c *Client) listAll(ctx context.Context, op, tableID, formula string) ([]apiRecord, error) {
	var records []apiRecord
	offset := ""
	for {
		reqURL := fmt.Sprintf("%s/%s/%s?pageSize=100", c.baseURL, c.baseID, tableID)
		if formula != "" {
			reqURL += "&filterByFormula=" + url.QueryEscape(formula)
		}
		if offset != "" {
			reqURL += "&offset=" + url.QueryEscape(offset)
		}

		var page recordPage
		if err := c.doJSON(ctx, op, http.MethodGet, reqURL, nil, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}
