package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"certus/internal/domain"
	"certus/internal/infra/merkle"
)

// SnapshotBatcher groups unbatched proofs into merkle-rooted snapshot
// batches. Concurrent invocations coordinate through the batch cursor's
// version field; the loser backs off without writing anything.
type SnapshotBatcher struct {
	Proofs    ProofRepository
	Snapshots SnapshotRepository
	Publisher *MirrorPublisher
	Threshold int
	Metrics   VerificationMetrics
	Now       func() time.Time
}

func (uc *SnapshotBatcher) threshold() int {
	if uc.Threshold > 0 {
		return uc.Threshold
	}
	return 1000
}

func (uc *SnapshotBatcher) CheckAndCreateSnapshot(ctx context.Context) (domain.SnapshotResult, error) {
	threshold := uc.threshold()
	unbatched, err := uc.Proofs.CountUnbatched(ctx)
	if err != nil {
		return domain.SnapshotResult{}, err
	}
	if unbatched < int64(threshold) {
		return domain.SnapshotResult{Success: false, Reason: "threshold not reached"}, nil
	}

	cursor, err := uc.Snapshots.GetCursor(ctx)
	if err != nil {
		return domain.SnapshotResult{}, err
	}
	proofs, err := uc.Proofs.ListUnbatched(ctx, threshold)
	if err != nil {
		return domain.SnapshotResult{}, err
	}
	if len(proofs) < threshold {
		// Another batcher claimed them between the count and the list.
		return domain.SnapshotResult{Success: false, Reason: "threshold not reached"}, nil
	}

	hashes := make([]string, len(proofs))
	ids := make([]string, len(proofs))
	for i, proof := range proofs {
		hashes[i] = proof.Hash
		ids[i] = proof.ID
	}
	root, err := merkle.Root(hashes)
	if err != nil {
		return domain.SnapshotResult{}, fmt.Errorf("merkle root: %w", err)
	}

	snapshot := domain.SnapshotBatch{
		Batch:      cursor.NextBatch,
		Count:      len(proofs),
		MerkleRoot: root,
		CreatedAt:  uc.now().UTC(),
	}
	if err := uc.Snapshots.CreateSnapshot(ctx, snapshot, ids, cursor.Version); err != nil {
		if errors.Is(err, domain.ErrConcurrentBatch) {
			return domain.SnapshotResult{Success: false, Reason: "concurrent snapshot in progress"}, nil
		}
		return domain.SnapshotResult{}, err
	}
	if uc.Metrics != nil {
		uc.Metrics.ObserveSnapshot(len(proofs))
	}

	// Mirror publication is synchronous with batch creation; archive
	// publication is deferred to the outbox inside the publisher.
	if uc.Publisher != nil {
		if err := uc.Publisher.PublishSnapshot(ctx, snapshot, hashes); err != nil {
			log.Printf("batcher: publish of batch %d failed: %v", snapshot.Batch, err)
		}
	}
	return domain.SnapshotResult{Success: true, Batch: snapshot.Batch, Count: snapshot.Count}, nil
}

func (uc *SnapshotBatcher) SnapshotStatus(ctx context.Context) (domain.SnapshotStatus, error) {
	total, err := uc.Proofs.CountTotal(ctx)
	if err != nil {
		return domain.SnapshotStatus{}, err
	}
	unbatched, err := uc.Proofs.CountUnbatched(ctx)
	if err != nil {
		return domain.SnapshotStatus{}, err
	}
	var lastBatch int64
	latest, err := uc.Snapshots.Latest(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.SnapshotStatus{}, err
	}
	if latest != nil {
		lastBatch = latest.Batch
	}
	return domain.SnapshotStatus{
		TotalProofs:          total,
		LastBatch:            lastBatch,
		ProofsSinceLastBatch: unbatched,
		IsSnapshotDue:        unbatched >= int64(uc.threshold()),
	}, nil
}

// CleanupSnapshots removes all but the keep most recent batches.
func (uc *SnapshotBatcher) CleanupSnapshots(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, fmt.Errorf("retention must keep at least one batch")
	}
	return uc.Snapshots.DeleteOlderKeeping(ctx, keep)
}

func (uc *SnapshotBatcher) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}
