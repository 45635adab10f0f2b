package db

import (
	"context"
	"errors"
	"time"

	"certus/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxRepository holds deferred archive-publication jobs: one row per batch
// awaiting the background republish worker.
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, batch int64) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := ArchiveJobModel{
		Batch:     batch,
		Status:    domain.ArchiveJobPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	// Re-enqueueing an existing batch is a no-op.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "batch"}}, DoNothing: true}).
		Create(&model).Error
}

func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]domain.ArchiveJob, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []ArchiveJobModel
	q := r.db.WithContext(ctx).
		Where("status IN ?", []string{domain.ArchiveJobPending, domain.ArchiveJobFailed}).
		Order("batch asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	jobs := make([]domain.ArchiveJob, len(models))
	for i, model := range models {
		jobs[i] = domain.ArchiveJob{
			Batch:        model.Batch,
			Status:       model.Status,
			Attempts:     model.Attempts,
			LastError:    model.LastError,
			ManifestTxID: model.ManifestTxID,
			JSONLTxID:    model.JSONLTxID,
		}
	}
	return jobs, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, batch int64, manifestTxID, jsonlTxID string) error {
	return r.update(ctx, batch, map[string]any{
		"status":         domain.ArchiveJobPublished,
		"manifest_tx_id": manifestTxID,
		"jsonl_tx_id":    jsonlTxID,
		"last_error":     "",
		"updated_at":     time.Now().UTC(),
	})
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, batch int64, reason string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Model(&ArchiveJobModel{}).
		Where("batch = ?", batch).
		Updates(map[string]any{
			"status":     domain.ArchiveJobFailed,
			"last_error": reason,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *OutboxRepository) update(ctx context.Context, batch int64, fields map[string]any) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).Model(&ArchiveJobModel{}).
		Where("batch = ?", batch).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("archive job not found")
	}
	return nil
}
