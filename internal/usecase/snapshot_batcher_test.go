package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"certus/internal/infra/merkle"
	"certus/pkg/digest"
)

func seedProofs(t *testing.T, repo *fakeProofRepo, n int) []string {
	t.Helper()
	svc := newTestCrypto(t)
	hashes := make([]string, n)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		proof := testProof(t, svc, digest.SHA256Bytes([]byte(fmt.Sprintf("payload-%d", i))), base.Add(time.Duration(i)*time.Millisecond))
		if err := repo.Insert(context.Background(), proof); err != nil {
			t.Fatalf("insert: %v", err)
		}
		hashes[i] = proof.Hash
	}
	return hashes
}

func TestCheckAndCreateSnapshotBelowThreshold(t *testing.T) {
	repo := newFakeProofRepo()
	snapshots := newFakeSnapshotRepo(repo)
	seedProofs(t, repo, 3)
	uc := &SnapshotBatcher{Proofs: repo, Snapshots: snapshots, Threshold: 5}

	result, err := uc.CheckAndCreateSnapshot(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Success {
		t.Fatalf("snapshot created below threshold")
	}
	if result.Reason != "threshold not reached" {
		t.Fatalf("reason = %q", result.Reason)
	}
	if len(snapshots.snapshots) != 0 {
		t.Fatalf("nothing should be persisted")
	}
}

func TestCheckAndCreateSnapshotBuildsBatch(t *testing.T) {
	repo := newFakeProofRepo()
	snapshots := newFakeSnapshotRepo(repo)
	seedProofs(t, repo, 5)
	uc := &SnapshotBatcher{Proofs: repo, Snapshots: snapshots, Threshold: 5}

	result, err := uc.CheckAndCreateSnapshot(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.Success || result.Batch != 1 || result.Count != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}

	snapshot, err := snapshots.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	batchHashes, err := repo.ListBatchHashes(context.Background(), 1)
	if err != nil {
		t.Fatalf("batch hashes: %v", err)
	}
	if len(batchHashes) != 5 {
		t.Fatalf("batched %d proofs, want 5", len(batchHashes))
	}
	root, err := merkle.Root(batchHashes)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if snapshot.MerkleRoot != root {
		t.Fatalf("stored root %s does not match recomputed %s", snapshot.MerkleRoot, root)
	}
	if unbatched, _ := repo.CountUnbatched(context.Background()); unbatched != 0 {
		t.Fatalf("%d proofs left unbatched", unbatched)
	}

	// A second pass must be a no-op: the same proofs are never re-batched.
	again, err := uc.CheckAndCreateSnapshot(context.Background())
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if again.Success {
		t.Fatalf("second snapshot created from same proofs")
	}
}

func TestCheckAndCreateSnapshotConcurrentLoserBacksOff(t *testing.T) {
	repo := newFakeProofRepo()
	snapshots := newFakeSnapshotRepo(repo)
	seedProofs(t, repo, 4)
	uc := &SnapshotBatcher{Proofs: repo, Snapshots: snapshots, Threshold: 2}

	// Simulate a competing batcher winning the cursor CAS between this
	// invocation's cursor read and its transaction.
	var once sync.Once
	snapshots.casBarrier = func() {
		once.Do(func() {
			snapshots.mu.Lock()
			snapshots.cursor.Version++
			snapshots.mu.Unlock()
		})
	}

	result, err := uc.CheckAndCreateSnapshot(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Success {
		t.Fatalf("loser created a snapshot")
	}
	if result.Reason != "concurrent snapshot in progress" {
		t.Fatalf("reason = %q", result.Reason)
	}
	if len(snapshots.snapshots) != 0 {
		t.Fatalf("loser persisted state")
	}

	// Retry with the cursor settled succeeds.
	snapshots.casBarrier = nil
	result, err = uc.CheckAndCreateSnapshot(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !result.Success {
		t.Fatalf("retry failed: %+v", result)
	}
}

func TestSnapshotStatus(t *testing.T) {
	repo := newFakeProofRepo()
	snapshots := newFakeSnapshotRepo(repo)
	seedProofs(t, repo, 7)
	uc := &SnapshotBatcher{Proofs: repo, Snapshots: snapshots, Threshold: 5}

	status, err := uc.SnapshotStatus(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.TotalProofs != 7 || status.LastBatch != 0 || !status.IsSnapshotDue {
		t.Fatalf("unexpected status: %+v", status)
	}

	if _, err := uc.CheckAndCreateSnapshot(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	status, err = uc.SnapshotStatus(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.LastBatch != 1 || status.ProofsSinceLastBatch != 2 || status.IsSnapshotDue {
		t.Fatalf("unexpected status after batch: %+v", status)
	}
}

func TestCleanupSnapshots(t *testing.T) {
	repo := newFakeProofRepo()
	snapshots := newFakeSnapshotRepo(repo)
	uc := &SnapshotBatcher{Proofs: repo, Snapshots: snapshots, Threshold: 2}
	for i := 0; i < 3; i++ {
		seedProofs(t, repo, 2)
		if result, err := uc.CheckAndCreateSnapshot(context.Background()); err != nil || !result.Success {
			t.Fatalf("snapshot %d: %+v %v", i, result, err)
		}
	}

	deleted, err := uc.CleanupSnapshots(context.Background(), 2)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted %d, want 1", deleted)
	}
	if _, err := uc.CleanupSnapshots(context.Background(), 0); err == nil {
		t.Fatalf("zero retention accepted")
	}
}
