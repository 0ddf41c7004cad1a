// sync-service keeps the canonical job store (Supabase Postgres) and the
// human-edited Airtable triage view in sync:
//   - backs up human Status decisions into the canonical store
//   - prunes terminal rows and orphaned skill records from Airtable
//   - refreshes volatile fields on the remaining rows
//   - promotes the highest-priority new jobs into free slots
//
// Runs on a cron interval and on demand via POST /runs.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshslade/upwork-analysis-project/internal/airtable"
	"github.com/joshslade/upwork-analysis-project/internal/api"
	"github.com/joshslade/upwork-analysis-project/internal/config"
	"github.com/joshslade/upwork-analysis-project/internal/db"
	"github.com/joshslade/upwork-analysis-project/internal/reconcile"
	"github.com/joshslade/upwork-analysis-project/internal/scheduler"
	"github.com/joshslade/upwork-analysis-project/internal/store"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[sync-service] Config error: %v", err)
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("[sync-service] Policy error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[sync-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[sync-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[sync-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[sync-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[sync-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[sync-service] Redis connected ✓")

	// ── Airtable ─────────────────────────────────────────────────────────────
	view := airtable.NewClient(cfg, policy, rdb)
	log.Println("[sync-service] Validating Airtable schema…")
	if err := view.ValidateSchema(ctx); err != nil {
		log.Fatalf("[sync-service] Airtable schema: %v", err)
	}
	log.Println("[sync-service] Airtable schema validated ✓")

	// ── Reconciler + scheduler ───────────────────────────────────────────────
	reconciler := reconcile.New(store.New(pool), view, policy, rdb)
	sched := scheduler.New(reconciler, cfg.SyncIntervalHours)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[sync-service] Scheduler: %v", err)
	}
	defer sched.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	api.NewHandler(sched, version).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[sync-service] Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[sync-service] HTTP server: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("[sync-service] Shutting down…")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[sync-service] HTTP shutdown: %v", err)
	}
	cancel()
}
