package main

import (
	"context"
	"log"
	"time"

	"certus/internal/config"
	httpinfra "certus/internal/infra/http"
)

// runJobs drives the periodic background work: snapshot checks, archive
// outbox draining and the audit scheduler. Each tick is independent; a
// failed tick logs and waits for the next one.
func runJobs(ctx context.Context, cfg config.Config, srv *httpinfra.Server) {
	snapshotTicker := time.NewTicker(time.Duration(cfg.SnapshotCheckSeconds) * time.Second)
	archiveTicker := time.NewTicker(time.Duration(cfg.ArchiveRepublishSeconds) * time.Second)
	auditTicker := time.NewTicker(time.Duration(cfg.AuditCheckSeconds) * time.Second)
	defer snapshotTicker.Stop()
	defer archiveTicker.Stop()
	defer auditTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-snapshotTicker.C:
			result, err := srv.Batcher().CheckAndCreateSnapshot(ctx)
			if err != nil {
				log.Printf("jobs: snapshot check failed: %v", err)
				continue
			}
			if result.Success {
				log.Printf("jobs: created snapshot batch %d with %d proofs", result.Batch, result.Count)
				if cfg.SnapshotRetention > 0 {
					if deleted, err := srv.Batcher().CleanupSnapshots(ctx, cfg.SnapshotRetention); err != nil {
						log.Printf("jobs: snapshot cleanup failed: %v", err)
					} else if deleted > 0 {
						log.Printf("jobs: pruned %d old snapshot batches", deleted)
					}
				}
			}
		case <-archiveTicker.C:
			published, err := srv.Publisher().RepublishPending(ctx, 10)
			if err != nil {
				log.Printf("jobs: archive republish failed: %v", err)
				continue
			}
			if published > 0 {
				log.Printf("jobs: published %d batches to the archive", published)
			}
		case <-auditTicker.C:
			schedule, err := srv.Audit().ShouldRunRecoveryAudit(ctx)
			if err != nil {
				log.Printf("jobs: audit schedule check failed: %v", err)
				continue
			}
			if !schedule.ShouldRun {
				continue
			}
			log.Printf("jobs: starting recovery audit: %s", schedule.Reason)
			summary, err := srv.Audit().Run(ctx, true)
			if err != nil {
				log.Printf("jobs: recovery audit failed: %v", err)
				continue
			}
			log.Printf("jobs: audit %s finished: %d audited, %d recovered, %d mismatches",
				summary.RunID, summary.TotalAudited, summary.SuccessfulRecoveries, summary.HashMismatches)
		}
	}
}
