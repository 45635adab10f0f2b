package domain

import (
	"context"
	"time"
)

// Source is one backend a proof can be recovered from. Fetch returns
// ErrNotFound when the backend is reachable but holds no copy.
type Source interface {
	Name() string
	FetchProof(ctx context.Context, hash string) (*Proof, error)
}

type VerificationResult struct {
	Valid     bool      `json:"valid"`
	Signer    string    `json:"signer,omitempty"`
	IssuedAt  time.Time `json:"issued_at,omitzero"`
	ProofID   string    `json:"proof_id,omitempty"`
	Source    string    `json:"source,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Errors    []string  `json:"errors"`
}
