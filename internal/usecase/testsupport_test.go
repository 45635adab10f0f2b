package usecase

import (
	"context"
	"crypto/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"certus/internal/domain"
	"certus/internal/infra/crypto"

	"github.com/oklog/ulid/v2"
)

func newTestCrypto(t *testing.T) *crypto.Service {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	svc, err := crypto.NewService(key, nil)
	if err != nil {
		t.Fatalf("new crypto service: %v", err)
	}
	return svc
}

func signProof(t *testing.T, svc *crypto.Service, proof *domain.Proof) {
	t.Helper()
	proof.SignerFingerprint = svc.ActiveFingerprint()
	canonical, err := crypto.CanonicalizeProof(*proof)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	sig, fp, err := svc.Sign(canonical)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if fp != proof.SignerFingerprint {
		t.Fatalf("signer fingerprint changed during signing")
	}
	proof.Signature = sig
}

func testProof(t *testing.T, svc *crypto.Service, hash string, signedAt time.Time) domain.Proof {
	t.Helper()
	proof := domain.Proof{
		ID:            ulid.MustNew(ulid.Timestamp(signedAt), rand.Reader).String(),
		Hash:          hash,
		Subject:       domain.Subject{Type: "file", Namespace: "test", ID: "doc-1"},
		SignedAt:      signedAt.UTC().Truncate(time.Second),
		SchemaVersion: domain.ProofSchemaVersion,
	}
	signProof(t, svc, &proof)
	return proof
}

type fakeProofRepo struct {
	mu     sync.Mutex
	proofs []domain.Proof
	batch  map[string]int64
}

func newFakeProofRepo() *fakeProofRepo {
	return &fakeProofRepo{batch: make(map[string]int64)}
}

func (r *fakeProofRepo) Insert(_ context.Context, proof domain.Proof) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proofs = append(r.proofs, proof)
	sort.Slice(r.proofs, func(i, j int) bool { return r.proofs[i].ID < r.proofs[j].ID })
	return nil
}

func (r *fakeProofRepo) GetByID(_ context.Context, id string) (*domain.Proof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.proofs {
		if p.ID == id {
			copied := p
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeProofRepo) GetByHash(_ context.Context, hash string) (*domain.Proof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.proofs {
		if p.Hash == hash {
			copied := p
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeProofRepo) ListUnbatched(_ context.Context, limit int) ([]domain.Proof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Proof
	for _, p := range r.proofs {
		if _, batched := r.batch[p.ID]; batched {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeProofRepo) CountUnbatched(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.proofs {
		if _, batched := r.batch[p.ID]; !batched {
			n++
		}
	}
	return n, nil
}

func (r *fakeProofRepo) CountTotal(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.proofs)), nil
}

func (r *fakeProofRepo) CountCreatedAfter(_ context.Context, after time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.proofs {
		if p.SignedAt.After(after) {
			n++
		}
	}
	return n, nil
}

func (r *fakeProofRepo) ListAfterID(_ context.Context, afterID string, limit int) ([]domain.Proof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Proof
	for _, p := range r.proofs {
		if p.ID <= afterID {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeProofRepo) ListBatchHashes(_ context.Context, batch int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range r.proofs {
		if r.batch[p.ID] == batch {
			out = append(out, p.Hash)
		}
	}
	return out, nil
}

type fakeSnapshotRepo struct {
	mu         sync.Mutex
	cursor     domain.BatchCursor
	snapshots  map[int64]domain.SnapshotBatch
	proofRepo  *fakeProofRepo
	casBarrier func() // invoked between cursor read and CAS, for race tests
}

func newFakeSnapshotRepo(proofs *fakeProofRepo) *fakeSnapshotRepo {
	return &fakeSnapshotRepo{
		cursor:    domain.BatchCursor{NextBatch: 1},
		snapshots: make(map[int64]domain.SnapshotBatch),
		proofRepo: proofs,
	}
}

func (r *fakeSnapshotRepo) GetCursor(_ context.Context) (domain.BatchCursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor, nil
}

func (r *fakeSnapshotRepo) CreateSnapshot(_ context.Context, snapshot domain.SnapshotBatch, proofIDs []string, cursorVersion int64) error {
	if r.casBarrier != nil {
		r.casBarrier()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor.Version != cursorVersion {
		return domain.ErrConcurrentBatch
	}
	r.cursor.Version++
	r.cursor.NextBatch++
	r.snapshots[snapshot.Batch] = snapshot
	r.proofRepo.mu.Lock()
	for _, id := range proofIDs {
		r.proofRepo.batch[id] = snapshot.Batch
	}
	r.proofRepo.mu.Unlock()
	return nil
}

func (r *fakeSnapshotRepo) Get(_ context.Context, batch int64) (*domain.SnapshotBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[batch]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &snapshot, nil
}

func (r *fakeSnapshotRepo) Latest(_ context.Context) (*domain.SnapshotBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.SnapshotBatch
	for batch := range r.snapshots {
		snapshot := r.snapshots[batch]
		if latest == nil || snapshot.Batch > latest.Batch {
			latest = &snapshot
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (r *fakeSnapshotRepo) List(_ context.Context) ([]domain.SnapshotBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SnapshotBatch, 0, len(r.snapshots))
	for _, snapshot := range r.snapshots {
		out = append(out, snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Batch < out[j].Batch })
	return out, nil
}

func (r *fakeSnapshotRepo) ListUnverified(_ context.Context) ([]domain.SnapshotBatch, error) {
	all, _ := r.List(context.Background())
	var out []domain.SnapshotBatch
	for _, snapshot := range all {
		if !snapshot.IntegrityVerified {
			out = append(out, snapshot)
		}
	}
	return out, nil
}

func (r *fakeSnapshotRepo) SetObjectStoreURLs(_ context.Context, batch int64, manifestURL, jsonlURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[batch]
	if !ok {
		return domain.ErrNotFound
	}
	snapshot.ObjectStoreURL = manifestURL
	snapshot.JSONLURL = jsonlURL
	r.snapshots[batch] = snapshot
	return nil
}

func (r *fakeSnapshotRepo) SetArchiveTxIDs(_ context.Context, batch int64, manifestTxID, jsonlTxID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[batch]
	if !ok {
		return domain.ErrNotFound
	}
	snapshot.ArchiveTxID = manifestTxID
	snapshot.ArchiveJSONLTxID = jsonlTxID
	r.snapshots[batch] = snapshot
	return nil
}

func (r *fakeSnapshotRepo) SetIntegrityVerified(_ context.Context, batch int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[batch]
	if !ok {
		return domain.ErrNotFound
	}
	snapshot.IntegrityVerified = true
	r.snapshots[batch] = snapshot
	return nil
}

func (r *fakeSnapshotRepo) DeleteOlderKeeping(_ context.Context, keep int) (int64, error) {
	all, _ := r.List(context.Background())
	if len(all) <= keep {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for _, snapshot := range all[:len(all)-keep] {
		delete(r.snapshots, snapshot.Batch)
		deleted++
	}
	return deleted, nil
}

type fakeAuditRepo struct {
	mu          sync.Mutex
	results     []domain.RecoveryAuditResult
	validations []domain.CrossMirrorValidation
	runs        map[string]domain.AuditRun
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{runs: make(map[string]domain.AuditRun)}
}

func (r *fakeAuditRepo) AppendResult(_ context.Context, result domain.RecoveryAuditResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

func (r *fakeAuditRepo) AppendCrossMirror(_ context.Context, validation domain.CrossMirrorValidation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validations = append(r.validations, validation)
	return nil
}

func (r *fakeAuditRepo) ListCrossMirrorByDate(_ context.Context, date string) ([]domain.CrossMirrorValidation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CrossMirrorValidation
	for _, v := range r.validations {
		if v.AuditDate == date {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) CreateRun(_ context.Context, run domain.AuditRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.RunID] = run
	return nil
}

func (r *fakeAuditRepo) FinishRun(_ context.Context, run domain.AuditRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.RunID] = run
	return nil
}

func (r *fakeAuditRepo) LastRun(_ context.Context) (*domain.AuditRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *domain.AuditRun
	for id := range r.runs {
		run := r.runs[id]
		if run.FinishedAt.IsZero() {
			continue
		}
		if last == nil || run.FinishedAt.After(last.FinishedAt) {
			last = &run
		}
	}
	if last == nil {
		return nil, domain.ErrNotFound
	}
	return last, nil
}

type fakeOutbox struct {
	mu   sync.Mutex
	jobs map[int64]*domain.ArchiveJob
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{jobs: make(map[int64]*domain.ArchiveJob)}
}

func (r *fakeOutbox) Enqueue(_ context.Context, batch int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[batch]; ok {
		return nil
	}
	r.jobs[batch] = &domain.ArchiveJob{Batch: batch, Status: domain.ArchiveJobPending}
	return nil
}

func (r *fakeOutbox) ListPending(_ context.Context, limit int) ([]domain.ArchiveJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ArchiveJob
	for _, job := range r.jobs {
		if job.Status == domain.ArchiveJobPending || job.Status == domain.ArchiveJobFailed {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Batch < out[j].Batch })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeOutbox) MarkPublished(_ context.Context, batch int64, manifestTxID, jsonlTxID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[batch]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.ArchiveJobPublished
	job.ManifestTxID = manifestTxID
	job.JSONLTxID = jsonlTxID
	return nil
}

func (r *fakeOutbox) MarkFailed(_ context.Context, batch int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[batch]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.ArchiveJobFailed
	job.Attempts++
	job.LastError = reason
	return nil
}

// staticSource serves a fixed proof, or an error, under a given name.
type staticSource struct {
	name  string
	proof *domain.Proof
	err   error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) FetchProof(context.Context, string) (*domain.Proof, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.proof == nil {
		return nil, domain.ErrNotFound
	}
	copied := *s.proof
	return &copied, nil
}
