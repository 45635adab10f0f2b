package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidHash      = errors.New("invalid hash format")
	ErrInvalidProof     = errors.New("invalid proof")
	ErrSchemaVersion    = errors.New("unsupported schema version")
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrProofStale       = errors.New("proof timestamp outside tolerance window")
	ErrNoSigningKey     = errors.New("no active signing key configured")
	ErrUnknownSigner    = errors.New("unknown signer fingerprint")
	ErrConcurrentBatch  = errors.New("batch cursor moved")
	ErrPolicyDenied     = errors.New("issuance denied by policy")
	ErrUnauthorized     = errors.New("unauthorized")
)
