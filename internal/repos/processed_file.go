package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

type ProcessedFileRepo interface {
	ListByCourseID(ctx context.Context, tx *gorm.DB, courseID string) ([]*types.ProcessedFile, error)
	GetByFilename(ctx context.Context, tx *gorm.DB, filename, courseID string) (*types.ProcessedFile, error)
	Upsert(ctx context.Context, tx *gorm.DB, record *types.ProcessedFile) error
}

type processedFileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProcessedFileRepo(db *gorm.DB, baseLog *logger.Logger) ProcessedFileRepo {
	return &processedFileRepo{db: db, log: baseLog.With("repo", "ProcessedFileRepo")}
}

func (r *processedFileRepo) ListByCourseID(ctx context.Context, tx *gorm.DB, courseID string) ([]*types.ProcessedFile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ProcessedFile
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetByFilename looks a record up by its stored artifact name. The ingestion
// pipeline uses it to reuse previously generated reports and conversions.
func (r *processedFileRepo) GetByFilename(ctx context.Context, tx *gorm.DB, filename, courseID string) (*types.ProcessedFile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.ProcessedFile
	err := transaction.WithContext(ctx).
		Where("filename = ? AND course_id = ?", filename, courseID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

// Upsert inserts the record or, when the (remote_file_id, course_id) key
// already exists, refreshes the mutable columns.
func (r *processedFileRepo) Upsert(ctx context.Context, tx *gorm.DB, record *types.ProcessedFile) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "remote_file_id"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"filename", "remote_updated_at", "index_file_id"}),
		}).
		Create(record).Error
}
