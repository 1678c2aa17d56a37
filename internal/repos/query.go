package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

type QueryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, query *types.Query) (*types.Query, error)
	GetByID(ctx context.Context, tx *gorm.DB, queryID string) (*types.Query, error)
	ListPending(ctx context.Context, tx *gorm.DB) ([]*types.Query, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, queryID string, fields map[string]any) error
}

type queryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQueryRepo(db *gorm.DB, baseLog *logger.Logger) QueryRepo {
	return &queryRepo{db: db, log: baseLog.With("repo", "QueryRepo")}
}

func (r *queryRepo) Create(ctx context.Context, tx *gorm.DB, query *types.Query) (*types.Query, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(query).Error; err != nil {
		return nil, err
	}
	return query, nil
}

func (r *queryRepo) GetByID(ctx context.Context, tx *gorm.DB, queryID string) (*types.Query, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Query
	if err := transaction.WithContext(ctx).
		Where("query_id = ?", queryID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *queryRepo) ListPending(ctx context.Context, tx *gorm.DB) ([]*types.Query, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Query
	if err := transaction.WithContext(ctx).
		Where("status = ?", types.QueryStatusPending).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *queryRepo) UpdateFields(ctx context.Context, tx *gorm.DB, queryID string, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fields) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.Query{}).
		Where("query_id = ?", queryID).
		Updates(fields).Error
}
