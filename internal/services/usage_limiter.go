package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

// DefaultMonthlyCeiling is the number of queries one user may submit per
// course per calendar month.
const DefaultMonthlyCeiling = 25

// UsageLimiter enforces the per-user-per-course-per-month query quota.
type UsageLimiter interface {
	// CheckAndIncrement consumes one unit of quota. It returns false, with
	// no increment, when the ceiling is already reached. Safe under
	// concurrent callers for the same key.
	CheckAndIncrement(ctx context.Context, tx *gorm.DB, userID, courseID string) (bool, error)
	// Remaining reports how many queries the user has left this month.
	Remaining(ctx context.Context, tx *gorm.DB, userID, courseID string) (int, error)
}

type usageLimiter struct {
	db      *gorm.DB
	log     *logger.Logger
	repo    repos.MonthlyUsageRepo
	ceiling int
	now     func() time.Time
}

func NewUsageLimiter(db *gorm.DB, baseLog *logger.Logger, repo repos.MonthlyUsageRepo, ceiling int) UsageLimiter {
	if ceiling <= 0 {
		ceiling = DefaultMonthlyCeiling
	}
	return &usageLimiter{
		db:      db,
		log:     baseLog.With("service", "UsageLimiter"),
		repo:    repo,
		ceiling: ceiling,
		now:     time.Now,
	}
}

func (ul *usageLimiter) CheckAndIncrement(ctx context.Context, tx *gorm.DB, userID, courseID string) (bool, error) {
	month := types.MonthKey(ul.now())

	if err := ul.repo.EnsureRow(ctx, tx, userID, courseID, month); err != nil {
		return false, fmt.Errorf("ensure usage row: %w", err)
	}

	allowed, err := ul.repo.IncrementIfBelow(ctx, tx, userID, courseID, month, ul.ceiling)
	if err != nil {
		return false, fmt.Errorf("increment usage: %w", err)
	}
	if !allowed {
		ul.log.Info("Monthly quota reached", "user_id", userID, "course_id", courseID, "month", month.Format("2006-01"))
	}
	return allowed, nil
}

func (ul *usageLimiter) Remaining(ctx context.Context, tx *gorm.DB, userID, courseID string) (int, error) {
	month := types.MonthKey(ul.now())

	usage, err := ul.repo.Get(ctx, tx, userID, courseID, month)
	if err != nil {
		return 0, err
	}
	if usage == nil {
		return ul.ceiling, nil
	}
	remaining := ul.ceiling - usage.Total
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
