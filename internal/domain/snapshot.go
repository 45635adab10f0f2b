package domain

import "time"

const ManifestSchemaVersion = 1

// SnapshotBatch is one merkle-rooted grouping of issued proofs.
type SnapshotBatch struct {
	Batch             int64     `json:"batch"`
	Count             int       `json:"count"`
	MerkleRoot        string    `json:"merkle_root"`
	ObjectStoreURL    string    `json:"object_store_url,omitempty"`
	JSONLURL          string    `json:"jsonl_url,omitempty"`
	ArchiveTxID       string    `json:"archive_txid,omitempty"`
	ArchiveJSONLTxID  string    `json:"archive_jsonl_txid,omitempty"`
	IntegrityVerified bool      `json:"integrity_verified"`
	CreatedAt         time.Time `json:"created_at"`
}

// BatchCursor is the single authoritative row coordinating batch assignment.
// Writers advance it with compare-and-swap on Version.
type BatchCursor struct {
	NextBatch int64
	Version   int64
}

// Manifest is the externally published form of a snapshot batch.
type Manifest struct {
	SchemaVersion int      `json:"schema_version"`
	Batch         int64    `json:"batch"`
	Count         int      `json:"count"`
	MerkleRoot    string   `json:"merkle_root"`
	ProofHashes   []string `json:"proof_hashes"`
}

type SnapshotResult struct {
	Success bool   `json:"success"`
	Batch   int64  `json:"batch,omitempty"`
	Count   int    `json:"count,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type SnapshotStatus struct {
	TotalProofs          int64 `json:"total_proofs"`
	LastBatch            int64 `json:"last_batch"`
	ProofsSinceLastBatch int64 `json:"proofs_since_last_batch"`
	IsSnapshotDue        bool  `json:"is_snapshot_due"`
}

const (
	ArchiveJobPending   = "pending"
	ArchiveJobPublished = "published"
	ArchiveJobFailed    = "failed"
)

// ArchiveJob is an outbox row deferring permanent-archive publication of a
// batch manifest off the synchronous request path.
type ArchiveJob struct {
	Batch        int64
	Status       string
	Attempts     int
	LastError    string
	ManifestTxID string
	JSONLTxID    string
}
