package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lewtec/imagesprite/internal/domain"
)

// MetadataRepository implements domain.MetadataRepository on the logs table
type MetadataRepository struct {
	db *sql.DB
}

// NewMetadataRepository creates a new MetadataRepository
func NewMetadataRepository(db *sql.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

// ImageIDs returns the ids of images matching filter in log order
func (r *MetadataRepository) ImageIDs(ctx context.Context, filter domain.ImageFilter) ([]domain.ImageID, error) {
	limit := filter.Limit
	if limit < 0 {
		return nil, fmt.Errorf("image limit %d: %w", limit, domain.ErrOutOfRange)
	}
	if limit == 0 {
		limit = domain.DefaultImageLimit
	}
	rows, err := r.db.QueryContext(ctx, `
select img_id from logs
where epoch_id = ? and ground_truth = ? and predicted = ? and (? or run_id = ?)
order by id
limit ?
`, filter.EpochID, filter.GroundTruth, filter.Predicted, filter.AnyRun, filter.RunID, limit)
	if err != nil {
		return nil, fmt.Errorf("while querying image ids: %w", err)
	}
	defer rows.Close()

	ids := make([]domain.ImageID, 0, limit)
	for rows.Next() {
		var id domain.ImageID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("while reading image ids: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AccuracyRatio returns how many predictions of an epoch were correct
func (r *MetadataRepository) AccuracyRatio(ctx context.Context, runID, epochID int) (*domain.AccuracyRatio, error) {
	var ratio domain.AccuracyRatio
	err := r.db.QueryRowContext(ctx, `
select coalesce(sum(ground_truth = predicted), 0), count(*) from logs
where run_id = ? and epoch_id = ?
`, runID, epochID).Scan(&ratio.Correct, &ratio.Total)
	if err != nil {
		return nil, fmt.Errorf("while computing accuracy of run %d epoch %d: %w", runID, epochID, err)
	}
	if ratio.Total > 0 {
		ratio.Ratio = float64(ratio.Correct) / float64(ratio.Total)
	}
	return &ratio, nil
}

// Insert stores entries in one transaction
func (r *MetadataRepository) Insert(ctx context.Context, entries []domain.LogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("while starting log insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
insert into logs (run_id, epoch_id, img_id, ground_truth, predicted) values (?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("while preparing log insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.RunID, e.EpochID, e.ImageID, e.GroundTruth, e.Predicted); err != nil {
			return fmt.Errorf("while inserting log entry for image %d: %w", e.ImageID, err)
		}
	}
	return tx.Commit()
}

// Verify that MetadataRepository implements domain.MetadataRepository
var _ domain.MetadataRepository = (*MetadataRepository)(nil)
