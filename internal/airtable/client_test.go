package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/joshslade/upwork-analysis-project/internal/config"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{
		apiKey:        "key-test",
		baseID:        "appTest",
		jobsTableID:   "tblJobs",
		skillsTableID: "tblSkills",
		baseURL:       srv.URL,
		policy:        config.DefaultPolicy(),
		client:        srv.Client(),
		backoff:       time.Millisecond,
	}
}

func writePage(t *testing.T, w http.ResponseWriter, page recordPage) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(page); err != nil {
		t.Errorf("encode page: %v", err)
	}
}

func TestDoJSON_RetriesRateLimitThenSucceeds(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writePage(t, w, recordPage{})
	}))
	defer srv.Close()

	c := testClient(srv)
	if _, err := c.ListSkills(context.Background()); err != nil {
		t.Fatalf("ListSkills after rate limiting: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("server saw %d calls, want 3 (two 429s then success)", calls)
	}
}

func TestDoJSON_TransientAfterExhaustedRetries(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv)
	_, err := c.ListSkills(context.Background())
	if err == nil {
		t.Fatal("expected error after persistent 502s")
	}
	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransientError", err)
	}
	if te.StatusCode != http.StatusBadGateway {
		t.Errorf("TransientError.StatusCode = %d, want 502", te.StatusCode)
	}
	if !IsTransient(err) {
		t.Error("IsTransient should report true")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != maxAttempts {
		t.Errorf("server saw %d calls, want %d", calls, maxAttempts)
	}
}

func TestDoJSON_ClientErrorNotRetried(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := testClient(srv)
	_, err := c.ListSkills(context.Background())
	if err == nil {
		t.Fatal("expected error on 422")
	}
	if IsTransient(err) {
		t.Error("422 must not be reported as transient")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry on 4xx)", calls)
	}
}

func TestListAll_FollowsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			writePage(t, w, recordPage{
				Records: []apiRecord{{ID: "rec1", Fields: map[string]any{"Name": "go"}}},
				Offset:  "page2",
			})
			return
		}
		writePage(t, w, recordPage{
			Records: []apiRecord{{ID: "rec2", Fields: map[string]any{"Name": "python"}}},
		})
	}))
	defer srv.Close()

	c := testClient(srv)
	skills, err := c.ListSkills(context.Background())
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	if len(skills) != 2 {
		t.Fatalf("got %d skills across pages, want 2", len(skills))
	}
	if skills[0].RecordID != "rec1" || skills[1].Name != "python" {
		t.Errorf("unexpected records: %+v", skills)
	}
}

func TestListJobRecords_DecodesTriageFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(t, w, recordPage{Records: []apiRecord{
			{ID: "recA", Fields: map[string]any{
				"job_id":        "j1",
				"Status":        "Discarded",
				"Skills":        []any{"recS1", "recS2"},
				"Last Modified": "2026-08-29T10:00:00Z",
			}},
			{ID: "recB", Fields: map[string]any{"job_id": "j2"}},
		}})
	}))
	defer srv.Close()

	c := testClient(srv)
	recs, err := c.ListJobRecords(context.Background())
	if err != nil {
		t.Fatalf("ListJobRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	a := recs[0]
	if a.JobID != "j1" || a.Status != "Discarded" {
		t.Errorf("record A = %+v", a)
	}
	if len(a.SkillIDs) != 2 || a.SkillIDs[0] != "recS1" {
		t.Errorf("record A skill ids = %v", a.SkillIDs)
	}
	if a.LastModified == nil || !a.LastModified.Equal(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("record A last modified = %v", a.LastModified)
	}

	b := recs[1]
	if b.Status != "" || b.LastModified != nil {
		t.Errorf("undecided record B should have blank status and nil timestamp, got %+v", b)
	}
}

func TestListJobRecords_StatusFilterFormula(t *testing.T) {
	var gotFormula string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		writePage(t, w, recordPage{})
	}))
	defer srv.Close()

	c := testClient(srv)
	if _, err := c.ListJobRecords(context.Background(), "Discarded", "Lead"); err != nil {
		t.Fatalf("ListJobRecords: %v", err)
	}
	want := "OR({Status} = 'Discarded', {Status} = 'Lead')"
	if gotFormula != want {
		t.Errorf("filterByFormula = %q, want %q", gotFormula, want)
	}
}

func TestDeleteJobRecords_ChunksToBatchCeiling(t *testing.T) {
	var (
		mu         sync.Mutex
		chunkSizes []int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		ids := r.URL.Query()["records[]"]
		mu.Lock()
		chunkSizes = append(chunkSizes, len(ids))
		mu.Unlock()
		writePage(t, w, recordPage{})
	}))
	defer srv.Close()

	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("rec%02d", i)
	}

	c := testClient(srv)
	n, err := c.DeleteJobRecords(context.Background(), ids)
	if err != nil {
		t.Fatalf("DeleteJobRecords: %v", err)
	}
	if n != 25 {
		t.Errorf("deleted count = %d, want 25", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(chunkSizes) != 3 {
		t.Fatalf("server saw %d calls, want 3", len(chunkSizes))
	}
	total := 0
	for _, sz := range chunkSizes {
		if sz > batchCeiling {
			t.Errorf("chunk of %d exceeds batch ceiling %d", sz, batchCeiling)
		}
		total += sz
	}
	if total != 25 {
		t.Errorf("chunks covered %d ids, want 25", total)
	}
}

func TestDeleteJobRecords_PartialFailureReportsSurvivors(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writePage(t, w, recordPage{})
	}))
	defer srv.Close()

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("rec%02d", i)
	}

	c := testClient(srv)
	n, err := c.DeleteJobRecords(context.Background(), ids)
	if err == nil {
		t.Fatal("expected partial-failure error")
	}
	if n != 10 {
		t.Errorf("succeeded count = %d, want 10 (one chunk failed)", n)
	}
}
