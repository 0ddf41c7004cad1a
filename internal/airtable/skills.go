package airtable

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/joshslade/upwork-analysis-project/internal/model"
)

// skillsCacheKey is the Redis hash caching skill name → record id. It is
// repopulated lazily and dropped whenever skills are garbage collected.
const (
	skillsCacheKey = "airtable:skills"
	skillsCacheTTL = 24 * time.Hour
)

// ListSkills returns every record of the Skills table.
func (c *Client) ListSkills(ctx context.Context) ([]model.SkillRecord, error) {
	raw, err := c.listAll(ctx, "list skills", c.skillsTableID, "")
	if err != nil {
		return nil, err
	}
	out := make([]model.SkillRecord, 0, len(raw))
	for _, r := range raw {
		name, _ := r.Fields[skillNameField].(string)
		out = append(out, model.SkillRecord{RecordID: r.ID, Name: name})
	}
	return out, nil
}

// DeleteSkills removes skill records by record id and drops the cached
// name → id map, which may still reference them.
func (c *Client) DeleteSkills(ctx context.Context, recordIDs []string) (int, error) {
	n, err := c.deleteRecords(ctx, "delete skills", c.skillsTableID, recordIDs)
	if n > 0 && c.rdb != nil {
		if derr := c.rdb.Del(ctx, skillsCacheKey).Err(); derr != nil {
			log.Printf("[airtable] skills cache invalidation failed: %v", derr)
		}
	}
	return n, err
}

// skillResolver converts skill names into linked Skills record ids, creating
// missing records first. Creation is read-check-create: with a single sync
// writer the duplicate-creation race is accepted (see the package doc of
// reconcile).
type skillResolver struct {
	c   *Client
	ids map[string]string // name → record id
}

func (c *Client) skillResolver() *skillResolver {
	return &skillResolver{c: c, ids: make(map[string]string)}
}

// warm makes every given name resolvable: loads the name → id map (Redis
// cache first, Skills table on miss) and batch-creates records for names not
// yet present.
func (r *skillResolver) warm(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if err := r.load(ctx); err != nil {
		return err
	}

	var missing []string
	for _, n := range names {
		if _, ok := r.ids[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	created, err := r.createSkills(ctx, missing)
	if err != nil {
		return err
	}
	log.Printf("[airtable] created %d new skill record(s)", len(created))

	cacheUpdates := make(map[string]string, len(created))
	for name, id := range created {
		r.ids[name] = id
		cacheUpdates[name] = id
	}
	r.cachePut(ctx, cacheUpdates)
	return nil
}

// idsFor maps names to record ids, silently dropping names that could not be
// resolved (their creation failed earlier; the row is still usable without
// the link).
func (r *skillResolver) idsFor(names []string) []string {
	var ids []string
	for _, n := range names {
		if id, ok := r.ids[n]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *skillResolver) load(ctx context.Context) error {
	if len(r.ids) > 0 {
		return nil
	}

	if r.c.rdb != nil {
		cached, err := r.c.rdb.HGetAll(ctx, skillsCacheKey).Result()
		if err != nil {
			log.Printf("[airtable] skills cache read failed: %v", err)
		} else if len(cached) > 0 {
			r.ids = cached
			return nil
		}
	}

	skills, err := r.c.ListSkills(ctx)
	if err != nil {
		return err
	}
	for _, s := range skills {
		if s.Name != "" {
			r.ids[s.Name] = s.RecordID
		}
	}
	r.cachePut(ctx, r.ids)
	return nil
}

func (r *skillResolver) cachePut(ctx context.Context, entries map[string]string) {
	if r.c.rdb == nil || len(entries) == 0 {
		return
	}
	flat := make([]any, 0, len(entries)*2)
	for name, id := range entries {
		flat = append(flat, name, id)
	}
	if err := r.c.rdb.HSet(ctx, skillsCacheKey, flat...).Err(); err != nil {
		log.Printf("[airtable] skills cache write failed: %v", err)
		return
	}
	if err := r.c.rdb.Expire(ctx, skillsCacheKey, skillsCacheTTL).Err(); err != nil {
		log.Printf("[airtable] skills cache expire failed: %v", err)
	}
}

// createSkills batch-creates skill records and returns name → new record id.
func (r *skillResolver) createSkills(ctx context.Context, names []string) (map[string]string, error) {
	records := make([]apiRecord, 0, len(names))
	for _, n := range names {
		records = append(records, apiRecord{Fields: map[string]any{skillNameField: n}})
	}

	created := make(map[string]string, len(names))
	endpoint := fmt.Sprintf("%s/%s/%s", r.c.baseURL, r.c.baseID, r.c.skillsTableID)

	for start := 0; start < len(records); start += batchCeiling {
		end := start + batchCeiling
		if end > len(records) {
			end = len(records)
		}
		var resp recordBatch
		if err := r.c.doJSON(ctx, "create skills", http.MethodPost, endpoint, recordBatch{Records: records[start:end]}, &resp); err != nil {
			return created, err
		}
		for _, rec := range resp.Records {
			if name, ok := rec.Fields[skillNameField].(string); ok {
				created[name] = rec.ID
			}
		}
	}
	return created, nil
}
