package airtable

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshslade/upwork-analysis-project/internal/model"
)

// Field names owned by the triage view itself (not mapped from canonical
// columns). Status is the human decision; Last Modified is an Airtable
// lastModifiedTime field used to stamp status backups.
const (
	statusField       = "Status"
	lastModifiedField = "Last Modified"
	skillNameField    = "Name"
)

// ListJobRecords returns triage rows, optionally restricted to the given
// statuses. With no arguments every row is returned, including undecided
// ones.
func (c *Client) ListJobRecords(ctx context.Context, statuses ...string) ([]model.TriageRecord, error) {
	formula := statusFormula(statuses)
	raw, err := c.listAll(ctx, "list jobs", c.jobsTableID, formula)
	if err != nil {
		return nil, err
	}

	jobIDField, _ := c.policy.FieldFor("job_id")
	skillsField, _ := c.policy.FieldFor("skills")

	records := make([]model.TriageRecord, 0, len(raw))
	for _, r := range raw {
		rec := model.TriageRecord{RecordID: r.ID}
		if v, ok := r.Fields[jobIDField].(string); ok {
			rec.JobID = v
		}
		if v, ok := r.Fields[statusField].(string); ok {
			rec.Status = v
		}
		if links, ok := r.Fields[skillsField].([]any); ok {
			for _, l := range links {
				if id, ok := l.(string); ok {
					rec.SkillIDs = append(rec.SkillIDs, id)
				}
			}
		}
		if v, ok := r.Fields[lastModifiedField].(string); ok {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				rec.LastModified = &t
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// statusFormula builds an OR({Status} = '...') filterByFormula clause.
func statusFormula(statuses []string) string {
	if len(statuses) == 0 {
		return ""
	}
	terms := make([]string, 0, len(statuses))
	for _, s := range statuses {
		terms = append(terms, fmt.Sprintf("{%s} = '%s'", statusField, strings.ReplaceAll(s, "'", "\\'")))
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return "OR(" + strings.Join(terms, ", ") + ")"
}

// CreateJobRecords promotes canonical jobs into the triage view. Skill names
// are resolved to linked Skills records (creating missing ones) before the
// rows are written. Returns the number of rows created; per-chunk failures
// are accumulated, not rolled back.
func (c *Client) CreateJobRecords(ctx context.Context, jobs []model.Job) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	resolver := c.skillResolver()
	if err := resolver.warm(ctx, allSkillNames(jobs)); err != nil {
		return 0, err
	}

	records := make([]apiRecord, 0, len(jobs))
	for _, j := range jobs {
		fields, err := c.jobFields(j, c.mappedColumns(), resolver)
		if err != nil {
			return 0, err
		}
		records = append(records, apiRecord{Fields: fields})
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, c.jobsTableID)
	return c.mutateChunks(ctx, "create records", records, func(ctx context.Context, chunk []apiRecord) error {
		return c.doJSON(ctx, "create records", http.MethodPost, endpoint, recordBatch{Records: chunk}, nil)
	})
}

// JobPatch pairs a triage row with the fresh canonical job to patch onto it.
type JobPatch struct {
	RecordID string
	Job      model.Job
}

// PatchJobRecords rewrites only the policy's dynamic-field subset on existing
// rows. Static descriptive fields are never re-patched, so an unchanged row
// costs Airtable nothing beyond the call itself.
func (c *Client) PatchJobRecords(ctx context.Context, patches []JobPatch) (int, error) {
	if len(patches) == 0 {
		return 0, nil
	}

	resolver := c.skillResolver()
	if dynamicContains(c.policy.DynamicFields, "skills") {
		jobs := make([]model.Job, 0, len(patches))
		for _, p := range patches {
			jobs = append(jobs, p.Job)
		}
		if err := resolver.warm(ctx, allSkillNames(jobs)); err != nil {
			return 0, err
		}
	}

	records := make([]apiRecord, 0, len(patches))
	for _, p := range patches {
		fields, err := c.jobFields(p.Job, c.policy.DynamicFields, resolver)
		if err != nil {
			return 0, err
		}
		records = append(records, apiRecord{ID: p.RecordID, Fields: fields})
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, c.jobsTableID)
	return c.mutateChunks(ctx, "patch records", records, func(ctx context.Context, chunk []apiRecord) error {
		return c.doJSON(ctx, "patch records", http.MethodPatch, endpoint, recordBatch{Records: chunk}, nil)
	})
}

// DeleteJobRecords removes triage rows by record id.
func (c *Client) DeleteJobRecords(ctx context.Context, recordIDs []string) (int, error) {
	return c.deleteRecords(ctx, "delete records", c.jobsTableID, recordIDs)
}

func (c *Client) deleteRecords(ctx context.Context, op, tableID string, recordIDs []string) (int, error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}
	records := make([]apiRecord, 0, len(recordIDs))
	for _, id := range recordIDs {
		records = append(records, apiRecord{ID: id})
	}
	return c.mutateChunks(ctx, op, records, func(ctx context.Context, chunk []apiRecord) error {
		params := url.Values{}
		for _, r := range chunk {
			params.Add("records[]", r.ID)
		}
		endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, c.baseID, tableID, params.Encode())
		return c.doJSON(ctx, op, http.MethodDelete, endpoint, nil, &deleteResponse{})
	})
}

// mutateChunks splits records into batches of at most batchCeiling and runs
// them with bounded parallelism. Every chunk is attempted even when an
// earlier one fails; the succeeded-record count and the joined chunk errors
// are both returned (batches are not transactional).
func (c *Client) mutateChunks(ctx context.Context, op string, records []apiRecord, call func(context.Context, []apiRecord) error) (int, error) {
	var (
		mu        sync.Mutex
		succeeded int
		errs      []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inflightLimit)

	for start := 0; start < len(records); start += batchCeiling {
		end := start + batchCeiling
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		g.Go(func() error {
			err := call(gctx, chunk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s batch of %d: %w", op, len(chunk), err))
				return nil // keep the other chunks running
			}
			succeeded += len(chunk)
			return nil
		})
	}

	_ = g.Wait()
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	return succeeded, errors.Join(errs...)
}

// mappedColumns returns every canonical column of the field map, in map
// order.
func (c *Client) mappedColumns() []string {
	cols := make([]string, 0, len(c.policy.FieldMap))
	for _, m := range c.policy.FieldMap {
		cols = append(cols, m.Column)
	}
	return cols
}

// jobFields encodes the given canonical columns of a job into Airtable
// fields. Nil-valued columns are omitted rather than sent as explicit nulls.
func (c *Client) jobFields(j model.Job, columns []string, resolver *skillResolver) (map[string]any, error) {
	fields := make(map[string]any, len(columns))
	for _, col := range columns {
		name, ok := c.policy.FieldFor(col)
		if !ok {
			return nil, fmt.Errorf("column %q is not in the field map", col)
		}
		if col == "skills" {
			ids := resolver.idsFor(j.Skills)
			if len(ids) > 0 {
				fields[name] = ids
			}
			continue
		}
		if v, ok := columnValue(j, col); ok {
			fields[name] = v
		}
	}
	return fields, nil
}

// columnValue extracts one canonical column from a job. The second return is
// false when the column is nil/absent and should be omitted from the payload.
func columnValue(j model.Job, column string) (any, bool) {
	switch column {
	case "job_id":
		return j.JobID, true
	case "url":
		return strOK(j.URL)
	case "title":
		return strOK(j.Title)
	case "description":
		return strOK(j.Description)
	case "created_on":
		return timeOK(j.CreatedOn)
	case "published_on":
		return timeOK(j.PublishedOn)
	case "renewed_on":
		return timeOK(j.RenewedOn)
	case "duration_label":
		return strOK(j.DurationLabel)
	case "connect_price":
		return intOK(j.ConnectPrice)
	case "job_type":
		return strOK(j.JobType)
	case "engagement":
		return strOK(j.Engagement)
	case "proposals_tier":
		return strOK(j.ProposalsTier)
	case "tier_text":
		return strOK(j.TierText)
	case "fixed_budget":
		return floatOK(j.FixedBudget)
	case "weekly_budget":
		return floatOK(j.WeeklyBudget)
	case "hourly_budget_min":
		return floatOK(j.HourlyBudgetMin)
	case "hourly_budget_max":
		return floatOK(j.HourlyBudgetMax)
	case "currency":
		return strOK(j.Currency)
	case "client_country":
		return strOK(j.ClientCountry)
	case "client_total_spent":
		return floatOK(j.ClientTotalSpent)
	case "client_payment_verified":
		return j.ClientPaymentVerified, true
	case "client_total_reviews":
		return intOK(j.ClientTotalReviews)
	case "client_avg_feedback":
		return floatOK(j.ClientAvgFeedback)
	case "is_applied":
		return j.IsApplied, true
	}
	return nil, false
}

func strOK(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}

func timeOK(t *time.Time) (any, bool) {
	if t == nil {
		return nil, false
	}
	return t.UTC().Format(time.RFC3339), true
}

func floatOK(f *float64) (any, bool) {
	if f == nil {
		return nil, false
	}
	return *f, true
}

func intOK(i *int) (any, bool) {
	if i == nil {
		return nil, false
	}
	return *i, true
}

func dynamicContains(fields []string, col string) bool {
	for _, f := range fields {
		if f == col {
			return true
		}
	}
	return false
}

func allSkillNames(jobs []model.Job) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, j := range jobs {
		for _, s := range j.Skills {
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			names = append(names, s)
		}
	}
	return names
}
