package db

import "time"

type ProofModel struct {
	ID                string    `gorm:"primaryKey;size:26"`
	Hash              string    `gorm:"uniqueIndex;size:64;not null"`
	SubjectType       string    `gorm:"not null"`
	SubjectNamespace  string    `gorm:"index"`
	SubjectID         string    `gorm:"index"`
	MetadataJSON      []byte    `gorm:"type:jsonb"`
	SignedAt          time.Time `gorm:"not null"`
	SignerFingerprint string    `gorm:"size:64;not null"`
	SchemaVersion     int       `gorm:"not null"`
	Signature         string    `gorm:"not null"`
	Batch             *int64    `gorm:"index"`
	CreatedAt         time.Time `gorm:"not null"`
}

type SnapshotMetaModel struct {
	Batch             int64  `gorm:"primaryKey;autoIncrement:false"`
	Count             int    `gorm:"not null"`
	MerkleRoot        string `gorm:"size:64;not null"`
	ObjectStoreURL    string
	JSONLURL          string
	ArchiveTxID       *string
	ArchiveJSONLTxID  *string
	IntegrityVerified bool      `gorm:"not null;default:false"`
	CreatedAt         time.Time `gorm:"not null"`
}

// BatchCursorModel is the single coordination row for batch assignment.
// Version implements optimistic concurrency: a writer that read version v
// may only advance the cursor while version is still v.
type BatchCursorModel struct {
	ID        int   `gorm:"primaryKey"`
	NextBatch int64 `gorm:"not null"`
	Version   int64 `gorm:"not null"`
}

type RecoveryAuditResultModel struct {
	ID             int64  `gorm:"primaryKey"`
	RunID          string `gorm:"index;size:36;not null"`
	AuditDate      string `gorm:"index;size:10;not null"`
	ProofID        string `gorm:"index;size:26;not null"`
	OriginalHash   string `gorm:"size:64;not null"`
	RecoveredHash  string `gorm:"size:64"`
	HashMatch      bool   `gorm:"not null"`
	SignatureValid bool   `gorm:"not null"`
	Source         string
	RecoveredAt    time.Time `gorm:"not null"`
	ErrorsJSON     []byte    `gorm:"type:jsonb"`
	CreatedAt      time.Time `gorm:"not null"`
}

type CrossMirrorValidationModel struct {
	ID                int64     `gorm:"primaryKey"`
	RunID             string    `gorm:"index;size:36;not null"`
	AuditDate         string    `gorm:"index;size:10;not null"`
	ProofID           string    `gorm:"index;size:26;not null"`
	Consistent        bool      `gorm:"not null"`
	ConsensusHash     *string   `gorm:"size:64"`
	IntegrityScore    float64   `gorm:"not null"`
	SourcesJSON       []byte    `gorm:"type:jsonb;not null"`
	DiscrepanciesJSON []byte    `gorm:"type:jsonb"`
	CreatedAt         time.Time `gorm:"not null"`
}

type AuditRunModel struct {
	RunID       string    `gorm:"primaryKey;size:36"`
	AuditDate   string    `gorm:"index;size:10;not null"`
	Enhanced    bool      `gorm:"not null"`
	LastProofID string    `gorm:"size:26"`
	SummaryJSON []byte    `gorm:"type:jsonb"`
	StartedAt   time.Time `gorm:"not null"`
	FinishedAt  *time.Time
}

type ArchiveJobModel struct {
	ID           int64  `gorm:"primaryKey"`
	Batch        int64  `gorm:"uniqueIndex;not null"`
	Status       string `gorm:"index;not null"`
	Attempts     int    `gorm:"not null"`
	LastError    string
	ManifestTxID string
	JSONLTxID    string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}
