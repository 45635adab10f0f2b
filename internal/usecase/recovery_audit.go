package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"certus/internal/domain"
	"certus/internal/infra/crypto"
	"certus/internal/infra/merkle"

	"github.com/google/uuid"
)

// RecoveryAudit independently re-fetches proofs from every mirror and
// reconciles what it finds. It only appends result rows; proofs and
// historical signatures are never touched.
type RecoveryAudit struct {
	Proofs        ProofRepository
	Snapshots     SnapshotRepository
	Audits        AuditRepository
	Sources       []domain.Source
	Crypto        CryptoService
	Interval      time.Duration
	ProofTrigger  int64
	RunLimit      int
	SourceTimeout time.Duration
	Metrics       VerificationMetrics
	Now           func() time.Time
}

func (uc *RecoveryAudit) runLimit() int {
	if uc.RunLimit > 0 {
		return uc.RunLimit
	}
	return 1000
}

// ShouldRunRecoveryAudit applies the dual time/volume trigger: a run is due
// when the configured interval elapsed since the last finished run or when
// enough proofs were issued since then.
func (uc *RecoveryAudit) ShouldRunRecoveryAudit(ctx context.Context) (domain.AuditSchedule, error) {
	interval := uc.Interval
	if interval <= 0 {
		interval = 7 * 24 * time.Hour
	}
	trigger := uc.ProofTrigger
	if trigger <= 0 {
		trigger = 1000
	}

	last, err := uc.Audits.LastRun(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.AuditSchedule{}, err
	}
	if last == nil {
		return domain.AuditSchedule{ShouldRun: true, Reason: "no previous audit"}, nil
	}

	schedule := domain.AuditSchedule{
		LastAuditDate: last.AuditDate,
		LastAuditAt:   last.FinishedAt,
	}
	issuedSince, err := uc.Proofs.CountCreatedAfter(ctx, last.FinishedAt)
	if err != nil {
		return domain.AuditSchedule{}, err
	}
	schedule.ProofCountSinceLastAudit = issuedSince

	now := uc.now()
	switch {
	case now.Sub(last.FinishedAt) >= interval:
		schedule.ShouldRun = true
		schedule.Reason = "audit interval elapsed"
	case issuedSince >= trigger:
		schedule.ShouldRun = true
		schedule.Reason = "proof volume threshold reached"
	default:
		schedule.Reason = "not due"
	}
	return schedule, nil
}

// Run performs one bounded audit pass, resuming from the previous run's
// proof cursor. Enhanced mode adds cross-mirror reconciliation per proof.
func (uc *RecoveryAudit) Run(ctx context.Context, enhanced bool) (domain.AuditSummary, error) {
	now := uc.now().UTC()
	run := domain.AuditRun{
		RunID:     uuid.NewString(),
		AuditDate: now.Format("2006-01-02"),
		Enhanced:  enhanced,
		StartedAt: now,
	}
	last, err := uc.Audits.LastRun(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.AuditSummary{}, err
	}
	cursor := ""
	if last != nil {
		cursor = last.LastProofID
	}
	if err := uc.Audits.CreateRun(ctx, run); err != nil {
		return domain.AuditSummary{}, err
	}

	proofs, err := uc.Proofs.ListAfterID(ctx, cursor, uc.runLimit())
	if err != nil {
		return domain.AuditSummary{}, err
	}
	if len(proofs) == 0 && cursor != "" {
		// Wrapped around: start over from the beginning of the table.
		proofs, err = uc.Proofs.ListAfterID(ctx, "", uc.runLimit())
		if err != nil {
			return domain.AuditSummary{}, err
		}
	}

	summary := domain.AuditSummary{
		RunID:           run.RunID,
		AuditDate:       run.AuditDate,
		Enhanced:        enhanced,
		SourceBreakdown: make(map[string]int),
	}
	for _, proof := range proofs {
		recoveries := uc.recoverAll(ctx, proof)
		uc.tally(ctx, run, proof, recoveries, &summary)
		if enhanced {
			validation := uc.crossMirror(run, proof, recoveries)
			if err := uc.Audits.AppendCrossMirror(ctx, validation); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("persist cross-mirror for %s: %v", proof.ID, err))
			}
		}
		run.LastProofID = proof.ID
	}

	verified, err := uc.confirmBatches(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("batch confirmation: %v", err))
	}
	summary.BatchesVerified = verified

	run.Summary = summary
	run.FinishedAt = uc.now().UTC()
	if err := uc.Audits.FinishRun(ctx, run); err != nil {
		return summary, err
	}
	if uc.Metrics != nil {
		outcome := "clean"
		if summary.FailedRecoveries > 0 || summary.HashMismatches > 0 || summary.SignatureFailures > 0 {
			outcome = "findings"
		}
		uc.Metrics.ObserveAuditRun(outcome)
	}
	return summary, nil
}

// recoverAll fetches the proof from every configured source, never stopping
// at first success.
func (uc *RecoveryAudit) recoverAll(ctx context.Context, proof domain.Proof) []domain.SourceRecovery {
	timeout := uc.SourceTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	recoveries := make([]domain.SourceRecovery, 0, len(uc.Sources))
	for _, source := range uc.Sources {
		started := uc.now()
		recovery := domain.SourceRecovery{Source: source.Name()}
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		recovered, err := source.FetchProof(fetchCtx, proof.Hash)
		cancel()
		switch {
		case err != nil:
			recovery.Errors = append(recovery.Errors, err.Error())
		case recovered == nil:
			recovery.Errors = append(recovery.Errors, domain.ErrNotFound.Error())
		default:
			recovery.Hash = recovered.Hash
			canonical, cErr := crypto.CanonicalizeProof(*recovered)
			if cErr != nil {
				recovery.Errors = append(recovery.Errors, cErr.Error())
			} else {
				valid, reason := uc.Crypto.Verify(canonical, recovered.Signature, recovered.SignerFingerprint)
				recovery.SignatureValid = valid
				if !valid {
					recovery.Errors = append(recovery.Errors, reason)
				}
			}
		}
		recovery.RecoveryMillis = uc.now().Sub(started).Milliseconds()
		recoveries = append(recoveries, recovery)
	}
	return recoveries
}

func (uc *RecoveryAudit) tally(ctx context.Context, run domain.AuditRun, proof domain.Proof, recoveries []domain.SourceRecovery, summary *domain.AuditSummary) {
	summary.TotalAudited++

	result := domain.RecoveryAuditResult{
		RunID:        run.RunID,
		AuditDate:    run.AuditDate,
		ProofID:      proof.ID,
		OriginalHash: proof.Hash,
		RecoveredAt:  uc.now().UTC(),
	}
	mismatch := false
	sigFailure := false
	for _, recovery := range recoveries {
		if recovery.Hash == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", recovery.Source, joinOrNone(recovery.Errors)))
			continue
		}
		if recovery.Hash != proof.Hash {
			mismatch = true
		}
		if !recovery.SignatureValid {
			sigFailure = true
		}
		if recovery.Hash == proof.Hash && recovery.SignatureValid && !result.HashMatch {
			result.HashMatch = true
			result.SignatureValid = true
			result.RecoveredHash = recovery.Hash
			result.Source = recovery.Source
		}
	}

	if result.HashMatch && result.SignatureValid {
		summary.SuccessfulRecoveries++
		summary.SourceBreakdown[result.Source]++
	} else {
		summary.FailedRecoveries++
	}
	if mismatch {
		summary.HashMismatches++
	}
	if sigFailure {
		summary.SignatureFailures++
	}

	if err := uc.Audits.AppendResult(ctx, result); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("persist result for %s: %v", proof.ID, err))
	}
}

// crossMirror compares every source's copy of one proof. Consensus is the
// strict-majority hash over sources that returned one; a two-way tie means
// no consensus.
func (uc *RecoveryAudit) crossMirror(run domain.AuditRun, proof domain.Proof, recoveries []domain.SourceRecovery) domain.CrossMirrorValidation {
	validation := domain.CrossMirrorValidation{
		RunID:     run.RunID,
		AuditDate: run.AuditDate,
		ProofID:   proof.ID,
		Sources:   recoveries,
	}

	votes := make(map[string]int)
	responded := 0
	for _, recovery := range recoveries {
		if recovery.Hash == "" {
			continue
		}
		responded++
		votes[recovery.Hash]++
	}
	best, bestCount := "", 0
	for hash, count := range votes {
		if count > bestCount {
			best, bestCount = hash, count
		}
	}
	if responded > 0 && bestCount*2 > responded {
		validation.ConsensusHash = best
	}

	for i := 0; i < len(recoveries); i++ {
		for j := i + 1; j < len(recoveries); j++ {
			a, b := recoveries[i], recoveries[j]
			if a.Hash == "" || b.Hash == "" {
				continue
			}
			if a.Hash != b.Hash {
				validation.Discrepancies = append(validation.Discrepancies, domain.Discrepancy{
					SourceA: a.Source,
					SourceB: b.Source,
					Field:   "hash",
					ValueA:  a.Hash,
					ValueB:  b.Hash,
				})
			}
			if a.SignatureValid != b.SignatureValid {
				validation.Discrepancies = append(validation.Discrepancies, domain.Discrepancy{
					SourceA: a.Source,
					SourceB: b.Source,
					Field:   "signature_valid",
					ValueA:  fmt.Sprintf("%t", a.SignatureValid),
					ValueB:  fmt.Sprintf("%t", b.SignatureValid),
				})
			}
		}
	}

	validation.Consistent = responded > 0 && len(validation.Discrepancies) == 0 && allSignaturesValid(recoveries)
	if validation.ConsensusHash != "" && len(recoveries) > 0 {
		agreeing := 0
		for _, recovery := range recoveries {
			if recovery.Hash == validation.ConsensusHash {
				agreeing++
			}
		}
		validation.IntegrityScore = float64(agreeing) / float64(len(recoveries))
	}
	return validation
}

// confirmBatches recomputes each unverified batch's merkle root from the
// authoritative hash list and marks matching batches integrity_verified.
func (uc *RecoveryAudit) confirmBatches(ctx context.Context) (int, error) {
	batches, err := uc.Snapshots.ListUnverified(ctx)
	if err != nil {
		return 0, err
	}
	verified := 0
	for _, batch := range batches {
		hashes, err := uc.Proofs.ListBatchHashes(ctx, batch.Batch)
		if err != nil {
			return verified, err
		}
		if len(hashes) == 0 {
			continue
		}
		root, err := merkle.Root(hashes)
		if err != nil {
			return verified, err
		}
		if root != batch.MerkleRoot {
			log.Printf("audit: batch %d merkle root mismatch: stored %s recomputed %s", batch.Batch, batch.MerkleRoot, root)
			continue
		}
		if err := uc.Snapshots.SetIntegrityVerified(ctx, batch.Batch); err != nil {
			return verified, err
		}
		verified++
	}
	return verified, nil
}

func (uc *RecoveryAudit) CrossMirrorResults(ctx context.Context, date string) ([]domain.CrossMirrorValidation, error) {
	return uc.Audits.ListCrossMirrorByDate(ctx, date)
}

func allSignaturesValid(recoveries []domain.SourceRecovery) bool {
	for _, recovery := range recoveries {
		if recovery.Hash != "" && !recovery.SignatureValid {
			return false
		}
	}
	return true
}

func joinOrNone(errs []string) string {
	if len(errs) == 0 {
		return "no copy recovered"
	}
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}

func (uc *RecoveryAudit) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}
