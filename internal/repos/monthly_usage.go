package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

type MonthlyUsageRepo interface {
	EnsureRow(ctx context.Context, tx *gorm.DB, userID, courseID string, month time.Time) error
	IncrementIfBelow(ctx context.Context, tx *gorm.DB, userID, courseID string, month time.Time, ceiling int) (bool, error)
	Get(ctx context.Context, tx *gorm.DB, userID, courseID string, month time.Time) (*types.MonthlyUsage, error)
}

type monthlyUsageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMonthlyUsageRepo(db *gorm.DB, baseLog *logger.Logger) MonthlyUsageRepo {
	return &monthlyUsageRepo{db: db, log: baseLog.With("repo", "MonthlyUsageRepo")}
}

// EnsureRow creates the counter row with total=0 if it does not exist.
// Concurrent callers are safe: the insert is ON CONFLICT DO NOTHING on the
// composite primary key.
func (r *monthlyUsageRepo) EnsureRow(ctx context.Context, tx *gorm.DB, userID, courseID string, month time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	row := &types.MonthlyUsage{
		UserID:   userID,
		CourseID: courseID,
		Month:    month,
		Total:    0,
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
}

// IncrementIfBelow atomically bumps the counter only while it is under the
// ceiling. The conditional UPDATE is a single statement, so two racing
// callers cannot both pass a check and push the total past the limit.
func (r *monthlyUsageRepo) IncrementIfBelow(ctx context.Context, tx *gorm.DB, userID, courseID string, month time.Time, ceiling int) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.MonthlyUsage{}).
		Where("user_id = ? AND course_id = ? AND month = ? AND total < ?", userID, courseID, month, ceiling).
		Update("total", gorm.Expr("total + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *monthlyUsageRepo) Get(ctx context.Context, tx *gorm.DB, userID, courseID string, month time.Time) (*types.MonthlyUsage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.MonthlyUsage
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND month = ?", userID, courseID, month).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
