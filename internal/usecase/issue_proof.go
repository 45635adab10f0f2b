package usecase

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"time"

	"certus/internal/domain"
	"certus/internal/infra/crypto"
	"certus/internal/infra/sources"

	"github.com/oklog/ulid/v2"
)

var hexDigestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func ValidHexDigest(hash string) bool {
	return hexDigestPattern.MatchString(hash)
}

type IssueProofRequest struct {
	Hash     string            `json:"hash"`
	Subject  domain.Subject    `json:"subject"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IssueProof canonicalizes, signs and stores a new proof, then mirrors it
// to the object store and fallback cache on a best-effort basis.
type IssueProof struct {
	Proofs  ProofRepository
	Crypto  CryptoService
	Store   ObjectStore
	Cache   ProofCache
	Policy  PolicyEngine
	Metrics VerificationMetrics
	Now     func() time.Time
}

func (uc *IssueProof) Execute(ctx context.Context, req IssueProofRequest) (*domain.Proof, error) {
	if !ValidHexDigest(req.Hash) {
		return nil, domain.ErrInvalidHash
	}
	if req.Subject.Type == "" || req.Subject.ID == "" {
		return nil, fmt.Errorf("%w: subject type and id are required", domain.ErrInvalidProof)
	}

	if uc.Policy != nil {
		result, err := uc.Policy.Evaluate(ctx, domain.PolicyInput{
			Hash:     req.Hash,
			Subject:  req.Subject,
			Metadata: req.Metadata,
		})
		if err != nil {
			return nil, fmt.Errorf("policy evaluation: %w", err)
		}
		if !result.Allow {
			if len(result.Deny) > 0 {
				return nil, fmt.Errorf("%w: %s", domain.ErrPolicyDenied, result.Deny[0].Code)
			}
			return nil, domain.ErrPolicyDenied
		}
	}

	now := uc.now().UTC()
	proof := domain.Proof{
		ID:            ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Hash:          req.Hash,
		Subject:       req.Subject,
		Metadata:      req.Metadata,
		SignedAt:      now,
		SchemaVersion: domain.ProofSchemaVersion,
	}

	// The fingerprint is part of the signed bytes, so it must be on the
	// proof before canonicalization. If a rotation lands between the
	// fingerprint read and the signature, redo with the new signer.
	proof.SignerFingerprint = uc.Crypto.ActiveFingerprint()
	for {
		canonical, err := crypto.CanonicalizeProof(proof)
		if err != nil {
			return nil, err
		}
		signature, fingerprint, err := uc.Crypto.Sign(canonical)
		if err != nil {
			return nil, err
		}
		if fingerprint == proof.SignerFingerprint {
			proof.Signature = signature
			break
		}
		proof.SignerFingerprint = fingerprint
	}

	if err := uc.Proofs.Insert(ctx, proof); err != nil {
		return nil, err
	}
	if uc.Metrics != nil {
		uc.Metrics.IncrementProofsIssued()
	}

	// Mirror copies are redundancy, not correctness. Failures are logged
	// and the proof is still issued.
	if uc.Store != nil {
		payload, err := json.Marshal(proof)
		if err == nil {
			err = uc.Store.PutObject(ctx, sources.ProofObjectKey(proof.Hash), payload)
		}
		if err != nil {
			log.Printf("issue: mirror of proof %s failed: %v", proof.ID, err)
		}
	}
	if uc.Cache != nil {
		uc.Cache.Put(ctx, proof)
	}
	return &proof, nil
}

func (uc *IssueProof) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}
