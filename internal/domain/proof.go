package domain

import "time"

const ProofSchemaVersion = 1

type Subject struct {
	Type      string `json:"type"`
	Namespace string `json:"namespace"`
	ID        string `json:"id"`
}

// Proof is the authoritative record of a single file-integrity attestation.
// Immutable once issued.
type Proof struct {
	ID                string            `json:"id"`
	Hash              string            `json:"hash"`
	Subject           Subject           `json:"subject"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	SignedAt          time.Time         `json:"signed_at"`
	SignerFingerprint string            `json:"signer_fingerprint"`
	SchemaVersion     int               `json:"schema_version"`
	Signature         string            `json:"signature"` // base64
}
