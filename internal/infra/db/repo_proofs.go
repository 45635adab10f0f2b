package db

import (
	"context"
	"errors"
	"time"

	"certus/internal/domain"

	"gorm.io/gorm"
)

type ProofRepository struct {
	db *gorm.DB
}

func NewProofRepository(db *gorm.DB) *ProofRepository {
	return &ProofRepository{db: db}
}

func (r *ProofRepository) Insert(ctx context.Context, proof domain.Proof) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := proofToModel(proof)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *ProofRepository) GetByID(ctx context.Context, id string) (*domain.Proof, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *ProofRepository) GetByHash(ctx context.Context, hash string) (*domain.Proof, error) {
	return r.getOne(ctx, "hash = ?", hash)
}

func (r *ProofRepository) getOne(ctx context.Context, query string, arg any) (*domain.Proof, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model ProofModel
	err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	proof := modelToProof(model)
	return &proof, nil
}

// ListUnbatched returns the oldest unbatched proofs ordered by id, which is
// the stable sort key batching determinism depends on.
func (r *ProofRepository) ListUnbatched(ctx context.Context, limit int) ([]domain.Proof, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []ProofModel
	q := r.db.WithContext(ctx).Where("batch IS NULL").Order("id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	proofs := make([]domain.Proof, len(models))
	for i, model := range models {
		proofs[i] = modelToProof(model)
	}
	return proofs, nil
}

func (r *ProofRepository) CountUnbatched(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&ProofModel{}).Where("batch IS NULL").Count(&count).Error
	return count, err
}

func (r *ProofRepository) CountTotal(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&ProofModel{}).Count(&count).Error
	return count, err
}

func (r *ProofRepository) CountCreatedAfter(ctx context.Context, after time.Time) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&ProofModel{}).Where("created_at > ?", after).Count(&count).Error
	return count, err
}

// ListAfterID pages through proofs in id order; the audit engine uses it to
// resume bounded runs from a cursor.
func (r *ProofRepository) ListAfterID(ctx context.Context, afterID string, limit int) ([]domain.Proof, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []ProofModel
	q := r.db.WithContext(ctx).Where("id > ?", afterID).Order("id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	proofs := make([]domain.Proof, len(models))
	for i, model := range models {
		proofs[i] = modelToProof(model)
	}
	return proofs, nil
}

// ListBatchHashes returns the hashes of a batch in canonical (id) order.
func (r *ProofRepository) ListBatchHashes(ctx context.Context, batch int64) ([]string, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var hashes []string
	err := r.db.WithContext(ctx).Model(&ProofModel{}).
		Where("batch = ?", batch).
		Order("id asc").
		Pluck("hash", &hashes).Error
	return hashes, err
}

func proofToModel(proof domain.Proof) ProofModel {
	return ProofModel{
		ID:                proof.ID,
		Hash:              proof.Hash,
		SubjectType:       proof.Subject.Type,
		SubjectNamespace:  proof.Subject.Namespace,
		SubjectID:         proof.Subject.ID,
		MetadataJSON:      marshalJSON(proof.Metadata),
		SignedAt:          proof.SignedAt.UTC(),
		SignerFingerprint: proof.SignerFingerprint,
		SchemaVersion:     proof.SchemaVersion,
		Signature:         proof.Signature,
		CreatedAt:         time.Now().UTC(),
	}
}

func modelToProof(model ProofModel) domain.Proof {
	return domain.Proof{
		ID:   model.ID,
		Hash: model.Hash,
		Subject: domain.Subject{
			Type:      model.SubjectType,
			Namespace: model.SubjectNamespace,
			ID:        model.SubjectID,
		},
		Metadata:          unmarshalStringMap(model.MetadataJSON),
		SignedAt:          model.SignedAt.UTC(),
		SignerFingerprint: model.SignerFingerprint,
		SchemaVersion:     model.SchemaVersion,
		Signature:         model.Signature,
	}
}
