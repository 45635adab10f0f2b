package usecase

import (
	"context"
	"time"

	"certus/internal/domain"
)

type ProofRepository interface {
	Insert(ctx context.Context, proof domain.Proof) error
	GetByID(ctx context.Context, id string) (*domain.Proof, error)
	GetByHash(ctx context.Context, hash string) (*domain.Proof, error)
	ListUnbatched(ctx context.Context, limit int) ([]domain.Proof, error)
	CountUnbatched(ctx context.Context) (int64, error)
	CountTotal(ctx context.Context) (int64, error)
	CountCreatedAfter(ctx context.Context, after time.Time) (int64, error)
	ListAfterID(ctx context.Context, afterID string, limit int) ([]domain.Proof, error)
	ListBatchHashes(ctx context.Context, batch int64) ([]string, error)
}

type SnapshotRepository interface {
	GetCursor(ctx context.Context) (domain.BatchCursor, error)
	CreateSnapshot(ctx context.Context, snapshot domain.SnapshotBatch, proofIDs []string, cursorVersion int64) error
	Get(ctx context.Context, batch int64) (*domain.SnapshotBatch, error)
	Latest(ctx context.Context) (*domain.SnapshotBatch, error)
	List(ctx context.Context) ([]domain.SnapshotBatch, error)
	ListUnverified(ctx context.Context) ([]domain.SnapshotBatch, error)
	SetObjectStoreURLs(ctx context.Context, batch int64, manifestURL, jsonlURL string) error
	SetArchiveTxIDs(ctx context.Context, batch int64, manifestTxID, jsonlTxID string) error
	SetIntegrityVerified(ctx context.Context, batch int64) error
	DeleteOlderKeeping(ctx context.Context, keep int) (int64, error)
}

type AuditRepository interface {
	AppendResult(ctx context.Context, result domain.RecoveryAuditResult) error
	AppendCrossMirror(ctx context.Context, validation domain.CrossMirrorValidation) error
	ListCrossMirrorByDate(ctx context.Context, date string) ([]domain.CrossMirrorValidation, error)
	CreateRun(ctx context.Context, run domain.AuditRun) error
	FinishRun(ctx context.Context, run domain.AuditRun) error
	LastRun(ctx context.Context) (*domain.AuditRun, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, batch int64) error
	ListPending(ctx context.Context, limit int) ([]domain.ArchiveJob, error)
	MarkPublished(ctx context.Context, batch int64, manifestTxID, jsonlTxID string) error
	MarkFailed(ctx context.Context, batch int64, reason string) error
}

// CryptoService signs canonical payloads with the active key and verifies
// against the active or previous key.
type CryptoService interface {
	ActiveFingerprint() string
	Sign(canonical []byte) (signature string, fingerprint string, err error)
	Verify(canonical []byte, signature, fingerprint string) (valid bool, reason string)
}

type ObjectStore interface {
	Name() string
	PutObject(ctx context.Context, key string, data []byte) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	URL(key string) string
}

// ArchiveClient talks to the permanent external archive.
type ArchiveClient interface {
	PublishTransaction(ctx context.Context, payload []byte, contentType string, identifier string) (string, error)
	IsPublished(ctx context.Context, identifier string) (bool, error)
	FetchByTxID(ctx context.Context, txID string) ([]byte, error)
}

type ProofCache interface {
	Get(ctx context.Context, hash string) (*domain.Proof, bool)
	Put(ctx context.Context, proof domain.Proof)
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyResult, error)
}

// VerificationMetrics is the subset of the metrics surface the usecases
// touch. A nil implementation is fine.
type VerificationMetrics interface {
	IncrementProofsIssued()
	ObserveVerification(source, outcome string)
	ObserveSnapshot(count int)
	ObserveAuditRun(outcome string)
	ObserveArchivePublish(outcome string)
}
