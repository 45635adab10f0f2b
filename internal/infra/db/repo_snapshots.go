package db

import (
	"context"
	"errors"
	"time"

	"certus/internal/domain"

	"gorm.io/gorm"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// GetCursor reads the batch cursor, creating the initial row on first use.
func (r *SnapshotRepository) GetCursor(ctx context.Context) (domain.BatchCursor, error) {
	if r.db == nil {
		return domain.BatchCursor{}, errDBUnavailable
	}
	var model BatchCursorModel
	err := r.db.WithContext(ctx).Where("id = ?", 1).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		model = BatchCursorModel{ID: 1, NextBatch: 1, Version: 0}
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return domain.BatchCursor{}, err
		}
		return domain.BatchCursor{NextBatch: 1, Version: 0}, nil
	}
	if err != nil {
		return domain.BatchCursor{}, err
	}
	return domain.BatchCursor{NextBatch: model.NextBatch, Version: model.Version}, nil
}

// CreateSnapshot persists a batch, marks its proofs as batched, and advances
// the cursor, all in one transaction. The cursor update is a compare-and-swap
// on the version read by the caller: if another writer advanced it first, the
// whole transaction rolls back with ErrConcurrentBatch and nothing is
// persisted.
func (r *SnapshotRepository) CreateSnapshot(ctx context.Context, snapshot domain.SnapshotBatch, proofIDs []string, cursorVersion int64) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&BatchCursorModel{}).
			Where("id = ? AND version = ?", 1, cursorVersion).
			Updates(map[string]any{
				"next_batch": snapshot.Batch + 1,
				"version":    cursorVersion + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConcurrentBatch
		}

		model := SnapshotMetaModel{
			Batch:      snapshot.Batch,
			Count:      snapshot.Count,
			MerkleRoot: snapshot.MerkleRoot,
			CreatedAt:  time.Now().UTC(),
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}

		res = tx.Model(&ProofModel{}).
			Where("id IN ? AND batch IS NULL", proofIDs).
			Update("batch", snapshot.Batch)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(proofIDs)) {
			// Another writer claimed part of the set; abort, nothing is lost.
			return domain.ErrConcurrentBatch
		}
		return nil
	})
}

func (r *SnapshotRepository) Get(ctx context.Context, batch int64) (*domain.SnapshotBatch, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SnapshotMetaModel
	err := r.db.WithContext(ctx).Where("batch = ?", batch).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	snapshot := modelToSnapshot(model)
	return &snapshot, nil
}

func (r *SnapshotRepository) Latest(ctx context.Context) (*domain.SnapshotBatch, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SnapshotMetaModel
	err := r.db.WithContext(ctx).Order("batch desc").First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	snapshot := modelToSnapshot(model)
	return &snapshot, nil
}

func (r *SnapshotRepository) List(ctx context.Context) ([]domain.SnapshotBatch, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []SnapshotMetaModel
	if err := r.db.WithContext(ctx).Order("batch asc").Find(&models).Error; err != nil {
		return nil, err
	}
	snapshots := make([]domain.SnapshotBatch, len(models))
	for i, model := range models {
		snapshots[i] = modelToSnapshot(model)
	}
	return snapshots, nil
}

func (r *SnapshotRepository) ListUnverified(ctx context.Context) ([]domain.SnapshotBatch, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []SnapshotMetaModel
	err := r.db.WithContext(ctx).
		Where("integrity_verified = ?", false).
		Order("batch asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	snapshots := make([]domain.SnapshotBatch, len(models))
	for i, model := range models {
		snapshots[i] = modelToSnapshot(model)
	}
	return snapshots, nil
}

func (r *SnapshotRepository) SetObjectStoreURLs(ctx context.Context, batch int64, manifestURL, jsonlURL string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Model(&SnapshotMetaModel{}).
		Where("batch = ?", batch).
		Updates(map[string]any{"object_store_url": manifestURL, "jsonl_url": jsonlURL}).Error
}

func (r *SnapshotRepository) SetArchiveTxIDs(ctx context.Context, batch int64, manifestTxID, jsonlTxID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Model(&SnapshotMetaModel{}).
		Where("batch = ?", batch).
		Updates(map[string]any{"archive_tx_id": manifestTxID, "archive_jsonl_tx_id": jsonlTxID}).Error
}

func (r *SnapshotRepository) SetIntegrityVerified(ctx context.Context, batch int64) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Model(&SnapshotMetaModel{}).
		Where("batch = ?", batch).
		Update("integrity_verified", true).Error
}

// DeleteOlderKeeping removes all but the keep most recent batches. Explicit
// retention cleanup is the only path that ever deletes a batch.
func (r *SnapshotRepository) DeleteOlderKeeping(ctx context.Context, keep int) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	if keep <= 0 {
		return 0, errors.New("keep must be positive")
	}
	var latest SnapshotMetaModel
	err := r.db.WithContext(ctx).Order("batch desc").First(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := latest.Batch - int64(keep)
	res := r.db.WithContext(ctx).Where("batch <= ?", cutoff).Delete(&SnapshotMetaModel{})
	return res.RowsAffected, res.Error
}

func modelToSnapshot(model SnapshotMetaModel) domain.SnapshotBatch {
	return domain.SnapshotBatch{
		Batch:             model.Batch,
		Count:             model.Count,
		MerkleRoot:        model.MerkleRoot,
		ObjectStoreURL:    model.ObjectStoreURL,
		JSONLURL:          model.JSONLURL,
		ArchiveTxID:       deref(model.ArchiveTxID),
		ArchiveJSONLTxID:  deref(model.ArchiveJSONLTxID),
		IntegrityVerified: model.IntegrityVerified,
		CreatedAt:         model.CreatedAt,
	}
}
