package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"certus/internal/domain"
)

// MirrorPublisher pushes snapshot manifests to the primary object store and
// queues permanent-archive publication through the outbox.
type MirrorPublisher struct {
	Proofs    ProofRepository
	Snapshots SnapshotRepository
	Outbox    OutboxRepository
	Store     ObjectStore
	Archive   ArchiveClient
	Metrics   VerificationMetrics
}

func ManifestKey(batch int64) string {
	return fmt.Sprintf("snapshots/batch-%d.json", batch)
}

func ManifestJSONLKey(batch int64) string {
	return fmt.Sprintf("snapshots/batch-%d.jsonl", batch)
}

func archiveIdentifier(batch int64, kind string) string {
	return fmt.Sprintf("batch-%d-%s", batch, kind)
}

func BuildManifest(snapshot domain.SnapshotBatch, hashes []string) domain.Manifest {
	return domain.Manifest{
		SchemaVersion: domain.ManifestSchemaVersion,
		Batch:         snapshot.Batch,
		Count:         snapshot.Count,
		MerkleRoot:    snapshot.MerkleRoot,
		ProofHashes:   hashes,
	}
}

func encodeJSONL(hashes []string) []byte {
	var b strings.Builder
	for _, hash := range hashes {
		b.WriteString(hash)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// PublishSnapshot writes both manifest renditions to the object store,
// records their urls on the snapshot row and enqueues the archive job.
// The archive itself is never called here.
func (uc *MirrorPublisher) PublishSnapshot(ctx context.Context, snapshot domain.SnapshotBatch, hashes []string) error {
	manifest := BuildManifest(snapshot, hashes)
	payload, err := json.Marshal(manifest)
	if err != nil {
		return err
	}
	manifestKey := ManifestKey(snapshot.Batch)
	jsonlKey := ManifestJSONLKey(snapshot.Batch)
	if err := uc.Store.PutObject(ctx, manifestKey, payload); err != nil {
		return fmt.Errorf("put manifest: %w", err)
	}
	if err := uc.Store.PutObject(ctx, jsonlKey, encodeJSONL(hashes)); err != nil {
		return fmt.Errorf("put jsonl: %w", err)
	}
	if err := uc.Snapshots.SetObjectStoreURLs(ctx, snapshot.Batch, uc.Store.URL(manifestKey), uc.Store.URL(jsonlKey)); err != nil {
		return err
	}
	if uc.Outbox != nil {
		if err := uc.Outbox.Enqueue(ctx, snapshot.Batch); err != nil {
			return fmt.Errorf("enqueue archive job: %w", err)
		}
	}
	return nil
}

// RepublishPending drains the archive outbox. Each job first asks the
// archive whether the batch already landed so retries stay idempotent and
// cheap, then publishes both renditions and records the transaction ids.
func (uc *MirrorPublisher) RepublishPending(ctx context.Context, limit int) (int, error) {
	if uc.Archive == nil || uc.Outbox == nil {
		return 0, nil
	}
	jobs, err := uc.Outbox.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, job := range jobs {
		if err := uc.publishJob(ctx, job); err != nil {
			log.Printf("publisher: archive publish of batch %d failed: %v", job.Batch, err)
			uc.observe("failure")
			if markErr := uc.Outbox.MarkFailed(ctx, job.Batch, err.Error()); markErr != nil {
				return published, markErr
			}
			continue
		}
		published++
		uc.observe("success")
	}
	return published, nil
}

func (uc *MirrorPublisher) publishJob(ctx context.Context, job domain.ArchiveJob) error {
	manifestID := archiveIdentifier(job.Batch, "manifest")
	already, err := uc.Archive.IsPublished(ctx, manifestID)
	if err != nil {
		return fmt.Errorf("archive status: %w", err)
	}
	if already && job.ManifestTxID != "" && job.JSONLTxID != "" {
		return uc.record(ctx, job.Batch, job.ManifestTxID, job.JSONLTxID)
	}

	hashes, err := uc.Proofs.ListBatchHashes(ctx, job.Batch)
	if err != nil {
		return err
	}
	snapshot, err := uc.Snapshots.Get(ctx, job.Batch)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(BuildManifest(*snapshot, hashes))
	if err != nil {
		return err
	}
	manifestTxID, err := uc.Archive.PublishTransaction(ctx, payload, "application/json", manifestID)
	if err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	jsonlTxID, err := uc.Archive.PublishTransaction(ctx, encodeJSONL(hashes), "application/x-ndjson", archiveIdentifier(job.Batch, "jsonl"))
	if err != nil {
		return fmt.Errorf("publish jsonl: %w", err)
	}
	return uc.record(ctx, job.Batch, manifestTxID, jsonlTxID)
}

func (uc *MirrorPublisher) record(ctx context.Context, batch int64, manifestTxID, jsonlTxID string) error {
	if err := uc.Snapshots.SetArchiveTxIDs(ctx, batch, manifestTxID, jsonlTxID); err != nil {
		return err
	}
	return uc.Outbox.MarkPublished(ctx, batch, manifestTxID, jsonlTxID)
}

func (uc *MirrorPublisher) observe(outcome string) {
	if uc.Metrics != nil {
		uc.Metrics.ObserveArchivePublish(outcome)
	}
}
