package crypto

import (
	"time"

	"certus/internal/domain"
)

// proofPayload is the canonical field set of a proof: everything that is
// signed, and nothing else. The signature is never part of its own payload.
type proofPayload struct {
	ID                string            `json:"id"`
	Hash              string            `json:"hash"`
	Subject           domain.Subject    `json:"subject"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	SignedAt          string            `json:"signed_at"`
	SignerFingerprint string            `json:"signer_fingerprint"`
	SchemaVersion     int               `json:"schema_version"`
}

// CanonicalizeProof returns the deterministic byte form of a proof's logical
// fields, independent of map insertion order. The same bytes feed both the
// signature and the merkle leaf inputs.
func CanonicalizeProof(proof domain.Proof) ([]byte, error) {
	payload := proofPayload{
		ID:                proof.ID,
		Hash:              proof.Hash,
		Subject:           proof.Subject,
		SignedAt:          proof.SignedAt.UTC().Format(time.RFC3339),
		SignerFingerprint: proof.SignerFingerprint,
		SchemaVersion:     proof.SchemaVersion,
	}
	if len(proof.Metadata) > 0 {
		payload.Metadata = proof.Metadata
	}
	return CanonicalizeAny(payload)
}
