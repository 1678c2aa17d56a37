package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

type AssistantRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, assistantID string) (*types.Assistant, error)
	ListByCourseID(ctx context.Context, tx *gorm.DB, courseID string) ([]*types.Assistant, error)
	GetInternalBySubtype(ctx context.Context, tx *gorm.DB, subtype string) (*types.Assistant, error)
}

type assistantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssistantRepo(db *gorm.DB, baseLog *logger.Logger) AssistantRepo {
	return &assistantRepo{db: db, log: baseLog.With("repo", "AssistantRepo")}
}

func (r *assistantRepo) GetByID(ctx context.Context, tx *gorm.DB, assistantID string) (*types.Assistant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Assistant
	err := transaction.WithContext(ctx).
		Where("assistant_id = ?", assistantID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *assistantRepo) ListByCourseID(ctx context.Context, tx *gorm.DB, courseID string) ([]*types.Assistant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Assistant
	err := transaction.WithContext(ctx).
		Joins("JOIN course_assistant ON course_assistant.assistant_id = assistant.assistant_id").
		Where("course_assistant.course_id = ?", courseID).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetInternalBySubtype resolves pipeline assistants such as the code
// analyzer. A missing row is a configuration problem, not a data miss.
func (r *assistantRepo) GetInternalBySubtype(ctx context.Context, tx *gorm.DB, subtype string) (*types.Assistant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Assistant
	err := transaction.WithContext(ctx).
		Where("category = ? AND subtype = ?", types.AssistantCategoryInternal, subtype).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("internal assistant %q: %w", subtype, apperrors.ErrConfigurationMissing)
		}
		return nil, err
	}
	return &result, nil
}
