package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"certus/internal/domain"
	"certus/internal/infra/crypto"
	"certus/pkg/digest"
)

// VerifyCascade resolves a proof by walking the mirror sources in priority
// order. The first source that yields a proof decides the outcome; every
// failed attempt leaves a breadcrumb in the result's error list.
type VerifyCascade struct {
	Sources       []domain.Source
	Crypto        CryptoService
	Tolerance     time.Duration
	SourceTimeout time.Duration
	Metrics       VerificationMetrics
	Now           func() time.Time
}

func (uc *VerifyCascade) VerifyByHash(ctx context.Context, hash string) domain.VerificationResult {
	started := uc.now()
	result := domain.VerificationResult{Errors: []string{}}
	defer func() {
		result.LatencyMS = uc.now().Sub(started).Milliseconds()
	}()

	if !ValidHexDigest(hash) {
		result.Errors = append(result.Errors, domain.ErrInvalidHash.Error())
		return result
	}

	for _, source := range uc.Sources {
		proof, err := uc.fetch(ctx, source, hash)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", source.Name(), err))
			continue
		}
		if reason := uc.checkProof(*proof, hash); reason != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", source.Name(), reason))
			uc.observe(source.Name(), "invalid")
			continue
		}
		result.Valid = true
		result.Source = source.Name()
		result.ProofID = proof.ID
		result.Signer = proof.SignerFingerprint
		result.IssuedAt = proof.SignedAt
		uc.observe(source.Name(), "valid")
		return result
	}
	uc.observe("none", "unresolved")
	return result
}

// VerifyFile hashes the stream server-side and feeds the digest into the
// same cascade.
func (uc *VerifyCascade) VerifyFile(ctx context.Context, r io.Reader) (domain.VerificationResult, error) {
	hash, err := digest.SHA256Reader(r)
	if err != nil {
		return domain.VerificationResult{}, err
	}
	result := uc.VerifyByHash(ctx, hash)
	return result, nil
}

func (uc *VerifyCascade) fetch(ctx context.Context, source domain.Source, hash string) (*domain.Proof, error) {
	timeout := uc.SourceTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	proof, err := source.FetchProof(fetchCtx, hash)
	if err != nil {
		return nil, err
	}
	if proof == nil {
		return nil, domain.ErrNotFound
	}
	return proof, nil
}

// checkProof validates one recovered proof against the requested hash.
// Empty return means the proof passed.
func (uc *VerifyCascade) checkProof(proof domain.Proof, hash string) string {
	if proof.SchemaVersion != domain.ProofSchemaVersion {
		return domain.ErrSchemaVersion.Error()
	}
	if proof.Hash != hash {
		return "recovered proof hash mismatch"
	}
	canonical, err := crypto.CanonicalizeProof(proof)
	if err != nil {
		return err.Error()
	}
	valid, reason := uc.Crypto.Verify(canonical, proof.Signature, proof.SignerFingerprint)
	if !valid {
		return reason
	}
	tolerance := uc.Tolerance
	if tolerance <= 0 {
		tolerance = 24 * time.Hour
	}
	now := uc.now()
	if proof.SignedAt.After(now.Add(tolerance)) || proof.SignedAt.Before(now.Add(-tolerance)) {
		return domain.ErrProofStale.Error()
	}
	return ""
}

func (uc *VerifyCascade) observe(source, outcome string) {
	if uc.Metrics != nil {
		uc.Metrics.ObserveVerification(source, outcome)
	}
}

func (uc *VerifyCascade) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}
