package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"certus/internal/domain"

	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) AppendResult(ctx context.Context, result domain.RecoveryAuditResult) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := RecoveryAuditResultModel{
		RunID:          result.RunID,
		AuditDate:      result.AuditDate,
		ProofID:        result.ProofID,
		OriginalHash:   result.OriginalHash,
		RecoveredHash:  result.RecoveredHash,
		HashMatch:      result.HashMatch,
		SignatureValid: result.SignatureValid,
		Source:         result.Source,
		RecoveredAt:    result.RecoveredAt.UTC(),
		ErrorsJSON:     marshalJSON(result.Errors),
		CreatedAt:      time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AuditRepository) AppendCrossMirror(ctx context.Context, validation domain.CrossMirrorValidation) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := CrossMirrorValidationModel{
		RunID:             validation.RunID,
		AuditDate:         validation.AuditDate,
		ProofID:           validation.ProofID,
		Consistent:        validation.Consistent,
		IntegrityScore:    validation.IntegrityScore,
		SourcesJSON:       marshalJSON(validation.Sources),
		DiscrepanciesJSON: marshalJSON(validation.Discrepancies),
		CreatedAt:         time.Now().UTC(),
	}
	if validation.ConsensusHash != "" {
		hash := validation.ConsensusHash
		model.ConsensusHash = &hash
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AuditRepository) ListCrossMirrorByDate(ctx context.Context, date string) ([]domain.CrossMirrorValidation, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CrossMirrorValidationModel
	err := r.db.WithContext(ctx).
		Where("audit_date = ?", date).
		Order("id asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	validations := make([]domain.CrossMirrorValidation, len(models))
	for i, model := range models {
		validations[i] = modelToCrossMirror(model)
	}
	return validations, nil
}

func (r *AuditRepository) CreateRun(ctx context.Context, run domain.AuditRun) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := AuditRunModel{
		RunID:       run.RunID,
		AuditDate:   run.AuditDate,
		Enhanced:    run.Enhanced,
		LastProofID: run.LastProofID,
		StartedAt:   run.StartedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AuditRepository) FinishRun(ctx context.Context, run domain.AuditRun) error {
	if r.db == nil {
		return errDBUnavailable
	}
	finished := run.FinishedAt.UTC()
	return r.db.WithContext(ctx).Model(&AuditRunModel{}).
		Where("run_id = ?", run.RunID).
		Updates(map[string]any{
			"last_proof_id": run.LastProofID,
			"summary_json":  marshalJSON(run.Summary),
			"finished_at":   &finished,
		}).Error
}

// LastRun returns the most recently finished audit run.
func (r *AuditRepository) LastRun(ctx context.Context) (*domain.AuditRun, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model AuditRunModel
	err := r.db.WithContext(ctx).
		Where("finished_at IS NOT NULL").
		Order("finished_at desc").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	run := domain.AuditRun{
		RunID:       model.RunID,
		AuditDate:   model.AuditDate,
		Enhanced:    model.Enhanced,
		LastProofID: model.LastProofID,
		StartedAt:   model.StartedAt,
	}
	if model.FinishedAt != nil {
		run.FinishedAt = *model.FinishedAt
	}
	if len(model.SummaryJSON) > 0 {
		_ = json.Unmarshal(model.SummaryJSON, &run.Summary)
	}
	return &run, nil
}

func modelToCrossMirror(model CrossMirrorValidationModel) domain.CrossMirrorValidation {
	validation := domain.CrossMirrorValidation{
		RunID:          model.RunID,
		AuditDate:      model.AuditDate,
		ProofID:        model.ProofID,
		Consistent:     model.Consistent,
		ConsensusHash:  deref(model.ConsensusHash),
		IntegrityScore: model.IntegrityScore,
	}
	if len(model.SourcesJSON) > 0 {
		_ = json.Unmarshal(model.SourcesJSON, &validation.Sources)
	}
	if len(model.DiscrepanciesJSON) > 0 {
		_ = json.Unmarshal(model.DiscrepanciesJSON, &validation.Discrepancies)
	}
	return validation
}
