package types

import (
	"time"
)

// MonthlyUsage counts submitted queries per (user, course, calendar month).
// Month always holds the first day of the month, so a new month implicitly
// starts a fresh counter.
type MonthlyUsage struct {
	UserID   string    `gorm:"column:user_id;primaryKey" json:"user_id"`
	CourseID string    `gorm:"column:course_id;primaryKey" json:"course_id"`
	Month    time.Time `gorm:"column:month;primaryKey" json:"month"`
	Total    int       `gorm:"column:total;not null;default:0" json:"total"`
}

func (MonthlyUsage) TableName() string { return "monthly_usage" }

// MonthKey truncates t to the first of its month in UTC.
func MonthKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
