package domain

import "time"

// RecoveryAuditResult is one append-only row per proof per audit run.
type RecoveryAuditResult struct {
	RunID          string    `json:"run_id"`
	AuditDate      string    `json:"audit_date"` // YYYY-MM-DD
	ProofID        string    `json:"proof_id"`
	OriginalHash   string    `json:"original_hash"`
	RecoveredHash  string    `json:"recovered_hash,omitempty"`
	HashMatch      bool      `json:"hash_match"`
	SignatureValid bool      `json:"signature_valid"`
	Source         string    `json:"source,omitempty"`
	RecoveredAt    time.Time `json:"recovered_at"`
	Errors         []string  `json:"errors,omitempty"`
}

// SourceRecovery is one mirror's view of a proof during an enhanced audit.
type SourceRecovery struct {
	Source         string   `json:"source"`
	Hash           string   `json:"hash,omitempty"`
	SignatureValid bool     `json:"signature_valid"`
	RecoveryMillis int64    `json:"recovery_ms"`
	Errors         []string `json:"errors,omitempty"`
}

// Discrepancy records a pairwise field difference between two sources.
type Discrepancy struct {
	SourceA string `json:"source_a"`
	SourceB string `json:"source_b"`
	Field   string `json:"field"`
	ValueA  string `json:"value_a"`
	ValueB  string `json:"value_b"`
}

// CrossMirrorValidation compares every mirror's copy of one proof.
// Consistent is true iff all non-error sources agree on the hash and report a
// valid signature. ConsensusHash is the strict-majority hash, empty when no
// majority exists (including a two-source tie).
type CrossMirrorValidation struct {
	RunID          string           `json:"run_id"`
	AuditDate      string           `json:"audit_date"`
	ProofID        string           `json:"proof_id"`
	Sources        []SourceRecovery `json:"sources"`
	Consistent     bool             `json:"consistent"`
	ConsensusHash  string           `json:"consensus_hash,omitempty"`
	Discrepancies  []Discrepancy    `json:"discrepancies,omitempty"`
	IntegrityScore float64          `json:"integrity_score"`
}

type AuditSummary struct {
	RunID                string         `json:"run_id"`
	AuditDate            string         `json:"audit_date"`
	Enhanced             bool           `json:"enhanced"`
	TotalAudited         int            `json:"total_audited"`
	SuccessfulRecoveries int            `json:"successful_recoveries"`
	FailedRecoveries     int            `json:"failed_recoveries"`
	HashMismatches       int            `json:"hash_mismatches"`
	SignatureFailures    int            `json:"signature_failures"`
	BatchesVerified      int            `json:"batches_verified"`
	SourceBreakdown      map[string]int `json:"source_breakdown"`
	Errors               []string       `json:"errors,omitempty"`
}

// AuditRun persists scheduling state between runs: the resume cursor and the
// trigger inputs for ShouldRunRecoveryAudit.
type AuditRun struct {
	RunID       string
	AuditDate   string
	Enhanced    bool
	LastProofID string
	Summary     AuditSummary
	StartedAt   time.Time
	FinishedAt  time.Time
}

type AuditSchedule struct {
	ShouldRun                bool      `json:"should_run"`
	Reason                   string    `json:"reason"`
	LastAuditDate            string    `json:"last_audit_date,omitempty"`
	LastAuditAt              time.Time `json:"last_audit_at,omitzero"`
	ProofCountSinceLastAudit int64     `json:"proof_count_since_last_audit"`
}
