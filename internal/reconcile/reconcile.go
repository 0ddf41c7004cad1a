// Package reconcile implements the five-phase synchronization protocol
// between the canonical store and the triage view:
//
//  1. backup  - harvest human decisions (Status) into the canonical store
//  2. prune   - delete triage rows whose decision is terminal
//  3. tag-gc  - delete skill records no surviving row links
//  4. refresh - re-patch the dynamic field subset on surviving rows
//  5. promote - fill free slots with the highest-priority eligible jobs
//
// A run keeps no state of its own: every invocation re-derives behaviour from
// the two stores' current content, and each phase's writes are idempotent, so
// re-running after a partial failure is always safe. Backup strictly precedes
// prune because pruning deletes the only copy of the human decision.
//
// The design assumes a single writer. Concurrent runs could duplicate triage
// rows and duplicate skill records (tag resolution is read-check-create);
// nothing in-process guards against that.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joshslade/upwork-analysis-project/internal/airtable"
	"github.com/joshslade/upwork-analysis-project/internal/config"
	"github.com/joshslade/upwork-analysis-project/internal/model"
	"github.com/joshslade/upwork-analysis-project/internal/selector"
	"github.com/joshslade/upwork-analysis-project/internal/store"
	"github.com/joshslade/upwork-analysis-project/internal/triage"
)

// CanonicalStore is the canonical-store surface the reconciler needs.
// *store.Store implements it.
type CanonicalStore interface {
	GetJobs(ctx context.Context, jobIDs []string) ([]model.Job, error)
	EligibleForPromotion(ctx context.Context, repromotable []string) ([]model.Job, error)
	WriteTriageStatuses(ctx context.Context, updates []store.StatusUpdate) (store.StatusBackupResult, error)
}

// TriageView is the triage-view surface the reconciler needs.
// *airtable.Client implements it.
type TriageView interface {
	ListJobRecords(ctx context.Context, statuses ...string) ([]model.TriageRecord, error)
	CreateJobRecords(ctx context.Context, jobs []model.Job) (int, error)
	PatchJobRecords(ctx context.Context, patches []airtable.JobPatch) (int, error)
	DeleteJobRecords(ctx context.Context, recordIDs []string) (int, error)
	ListSkills(ctx context.Context) ([]model.SkillRecord, error)
	DeleteSkills(ctx context.Context, recordIDs []string) (int, error)
}

// Reconciler orchestrates one synchronization pass.
type Reconciler struct {
	store  CanonicalStore
	view   TriageView
	policy config.Policy
	vocab  triage.Vocabulary

	// Clock supplies the run's reference time; defaults to time.Now.
	// Status backups and recency scoring both use it.
	Clock func() time.Time

	// Score overrides the policy-derived scoring function. Nil means the
	// weighted default built from policy.Scoring.
	Score selector.ScorePolicy

	// rdb, when non-nil, receives a run-complete event after each run.
	rdb *redis.Client
}

// New returns a Reconciler bound to the two stores. rdb may be nil.
func New(cs CanonicalStore, view TriageView, policy config.Policy, rdb *redis.Client) *Reconciler {
	return &Reconciler{
		store:  cs,
		view:   view,
		policy: policy,
		vocab:  triage.NewVocabulary(policy.StatusVocabulary, policy.TerminalStatuses, policy.RepromotableStatuses),
		Clock:  time.Now,
		rdb:    rdb,
	}
}

// Run executes the five phases in order. A phase failure aborts the phases
// after it but leaves the committed phases' work in place; per-record
// failures within a phase are accumulated in the report without aborting the
// phase. Cancellation is honoured at phase boundaries only.
func (r *Reconciler) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{StartedAt: r.Clock().UTC()}
	log.Println("[reconcile] Run started")

	var (
		backedUp map[string]triage.Status // record id → status written to the store
		survived []model.TriageRecord     // post-prune listing, shared by phases 3-5
	)

	phases := []struct {
		name string
		fn   func(context.Context, *PhaseReport) error
	}{
		{"backup", func(ctx context.Context, p *PhaseReport) error {
			var err error
			backedUp, err = r.backupPhase(ctx, p)
			return err
		}},
		{"prune", func(ctx context.Context, p *PhaseReport) error {
			return r.prunePhase(ctx, p, backedUp)
		}},
		{"tag-gc", func(ctx context.Context, p *PhaseReport) error {
			var err error
			survived, err = r.tagGCPhase(ctx, p)
			return err
		}},
		{"refresh", func(ctx context.Context, p *PhaseReport) error {
			return r.refreshPhase(ctx, p, survived)
		}},
		{"promote", func(ctx context.Context, p *PhaseReport) error {
			return r.promotePhase(ctx, p, survived)
		}},
	}

	var runErr error
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			report.AbortedAt = ph.name
			report.Error = err.Error()
			runErr = err
			break
		}

		p := PhaseReport{Name: ph.name}
		err := ph.fn(ctx, &p)
		report.Phases = append(report.Phases, p)
		if err != nil {
			log.Printf("[reconcile] Phase %s failed: %v, aborting remaining phases", ph.name, err)
			report.AbortedAt = ph.name
			report.Error = err.Error()
			runErr = fmt.Errorf("phase %s: %w", ph.name, err)
			break
		}
		log.Printf("[reconcile] Phase %s done: attempted=%d succeeded=%d failed=%d",
			ph.name, p.Attempted, p.Succeeded, p.Failed)
	}

	report.FinishedAt = r.Clock().UTC()
	log.Printf("[reconcile] Run finished: %s", report.Summary())
	r.publishRunEvent(context.WithoutCancel(ctx), report)
	return report, runErr
}

// backupPhase writes every non-blank human decision into the canonical store
// and returns which rows were safely captured. Rows with no job id, an
// out-of-vocabulary status, or no canonical record are logged and skipped;
// one bad row must not block the rest.
func (r *Reconciler) backupPhase(ctx context.Context, p *PhaseReport) (map[string]triage.Status, error) {
	rows, err := r.view.ListJobRecords(ctx)
	if err != nil {
		return nil, err
	}

	now := r.Clock().UTC()
	var updates []store.StatusUpdate
	byJobID := make(map[string]string) // job id → record id
	parsed := make(map[string]triage.Status)

	for _, row := range rows {
		if row.Status == "" {
			continue
		}
		p.Attempted++

		st, err := r.vocab.Parse(row.Status)
		if err != nil {
			p.Failed++
			p.recordError(fmt.Errorf("row %s: %w", row.RecordID, err))
			log.Printf("[reconcile] Skipping row %s: %v", row.RecordID, err)
			continue
		}
		if row.JobID == "" {
			p.Failed++
			p.recordError(fmt.Errorf("row %s has no job id", row.RecordID))
			log.Printf("[reconcile] Skipping row %s: no job id", row.RecordID)
			continue
		}

		changedAt := now
		if row.LastModified != nil {
			changedAt = row.LastModified.UTC()
		}
		updates = append(updates, store.StatusUpdate{
			JobID:     row.JobID,
			Status:    string(st),
			ChangedAt: changedAt,
		})
		byJobID[row.JobID] = row.RecordID
		parsed[row.RecordID] = st
	}

	if len(updates) == 0 {
		return nil, nil
	}

	res, err := r.store.WriteTriageStatuses(ctx, updates)
	if err != nil {
		// Whatever was written before the failure is still a valid
		// partial backup; the next run redoes the rest.
		p.Succeeded += len(res.Updated)
		p.Failed = p.Attempted - p.Succeeded
		return nil, err
	}

	backedUp := make(map[string]triage.Status, len(res.Updated))
	for _, jobID := range res.Updated {
		p.Succeeded++
		rec := byJobID[jobID]
		backedUp[rec] = parsed[rec]
	}
	for _, jobID := range res.Missing {
		p.Failed++
		p.recordError(fmt.Errorf("job %s not in canonical store (stale triage row)", jobID))
		log.Printf("[reconcile] Stale triage row: job %s missing from canonical store", jobID)
	}
	return backedUp, nil
}

// prunePhase deletes rows whose captured status is terminal. Only rows whose
// backup succeeded are candidates: a decision is never deleted before it has
// been captured.
func (r *Reconciler) prunePhase(ctx context.Context, p *PhaseReport, backedUp map[string]triage.Status) error {
	var ids []string
	for recordID, st := range backedUp {
		if r.vocab.IsTerminal(st) {
			ids = append(ids, recordID)
		}
	}
	p.Attempted = len(ids)
	if len(ids) == 0 {
		return nil
	}

	n, err := r.view.DeleteJobRecords(ctx, ids)
	p.Succeeded = n
	p.Failed = len(ids) - n
	if err != nil {
		p.recordError(err)
		if n == 0 {
			// Nothing was deleted at all: treat as a phase failure so
			// the next run re-observes the same state.
			return err
		}
	}
	return nil
}

// tagGCPhase deletes skill records referenced by zero surviving rows and
// returns the post-prune row listing for the later phases.
func (r *Reconciler) tagGCPhase(ctx context.Context, p *PhaseReport) ([]model.TriageRecord, error) {
	rows, err := r.view.ListJobRecords(ctx)
	if err != nil {
		return nil, err
	}
	skills, err := r.view.ListSkills(ctx)
	if err != nil {
		return rows, err
	}

	referenced := make(map[string]bool)
	for _, row := range rows {
		for _, id := range row.SkillIDs {
			referenced[id] = true
		}
	}

	var orphans []string
	for _, s := range skills {
		if !referenced[s.RecordID] {
			orphans = append(orphans, s.RecordID)
		}
	}
	p.Attempted = len(orphans)
	if len(orphans) == 0 {
		return rows, nil
	}

	n, err := r.view.DeleteSkills(ctx, orphans)
	p.Succeeded = n
	p.Failed = len(orphans) - n
	if err != nil {
		p.recordError(err)
		if n == 0 {
			return rows, err
		}
	}
	return rows, nil
}

// refreshPhase re-reads the canonical record behind each surviving row and
// patches only the dynamic field subset. Rows whose job vanished from the
// canonical store are logged and skipped.
func (r *Reconciler) refreshPhase(ctx context.Context, p *PhaseReport, rows []model.TriageRecord) error {
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.JobID != "" {
			ids = append(ids, row.JobID)
		}
	}
	jobs, err := r.store.GetJobs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]model.Job, len(jobs))
	for _, j := range jobs {
		byID[j.JobID] = j
	}

	var patches []airtable.JobPatch
	for _, row := range rows {
		p.Attempted++
		job, ok := byID[row.JobID]
		if !ok {
			p.Failed++
			p.recordError(fmt.Errorf("row %s: job %q missing from canonical store", row.RecordID, row.JobID))
			log.Printf("[reconcile] Not refreshing row %s: job %q missing from canonical store", row.RecordID, row.JobID)
			continue
		}
		patches = append(patches, airtable.JobPatch{RecordID: row.RecordID, Job: job})
	}

	n, err := r.view.PatchJobRecords(ctx, patches)
	p.Succeeded += n
	p.Failed += len(patches) - n
	if err != nil {
		p.recordError(err)
		if n == 0 {
			return err
		}
	}
	return nil
}

// promotePhase fills the remaining slots with the highest-priority eligible
// jobs. Jobs already present in the view are never re-promoted, keeping at
// most one row per job.
func (r *Reconciler) promotePhase(ctx context.Context, p *PhaseReport, rows []model.TriageRecord) error {
	slots := r.policy.SlotCeiling - len(rows)
	if slots <= 0 {
		log.Printf("[reconcile] Slot ceiling %d reached (%d active rows), nothing to promote",
			r.policy.SlotCeiling, len(rows))
		return nil
	}

	eligible, err := r.store.EligibleForPromotion(ctx, r.vocab.Repromotable())
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(rows))
	for _, row := range rows {
		present[row.JobID] = true
	}
	candidates := make([]model.Job, 0, len(eligible))
	for _, j := range eligible {
		if !present[j.JobID] {
			candidates = append(candidates, j)
		}
	}
	candidates = selector.FilterExcluded(candidates, r.policy.ExcludeTerms)

	score := r.Score
	if score == nil {
		score = selector.Weighted(r.policy.Scoring, r.Clock().UTC())
	}
	picked := selector.Select(candidates, slots, score)
	p.Attempted = len(picked)
	if len(picked) == 0 {
		return nil
	}

	n, err := r.view.CreateJobRecords(ctx, picked)
	p.Succeeded = n
	p.Failed = len(picked) - n
	if err != nil {
		p.recordError(err)
		if n == 0 {
			return err
		}
	}
	return nil
}

// publishRunEvent pushes the run report onto Redis for any listeners
// (dashboards, notifiers). Non-fatal.
func (r *Reconciler) publishRunEvent(ctx context.Context, report *RunReport) {
	if r.rdb == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := r.rdb.Publish(ctx, "sync:run_complete", payload).Err(); err != nil {
		slog.Warn("publish sync:run_complete failed", "err", err)
	}
}
