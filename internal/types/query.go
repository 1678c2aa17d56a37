package types

import (
	"time"
)

const (
	QueryStatusPending   = "pending"
	QueryStatusCompleted = "completed"
	QueryStatusError     = "error"
)

const QueryKindGeneral = "general"

// Query is one user question moving through the pending -> completed/error
// lifecycle. The ID is externally visible (the UI polls it), so it is
// assigned at submit time and never changes.
type Query struct {
	ID          string    `gorm:"column:query_id;primaryKey" json:"query_id"`
	UserID      string    `gorm:"column:user_id;not null;index" json:"user_id"`
	CourseID    string    `gorm:"column:course_id;not null;index" json:"course_id"`
	AssistantID string    `gorm:"column:assistant_id;not null" json:"assistant_id"`
	ThreadID    *string   `gorm:"column:thread_id" json:"thread_id,omitempty"`
	Kind        string    `gorm:"column:kind;not null;default:'general'" json:"kind"`
	Status      string    `gorm:"column:status;not null;index" json:"status"`
	Question    string    `gorm:"column:question;type:text;not null" json:"question"`
	Answer      *string   `gorm:"column:answer;type:text" json:"answer,omitempty"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Query) TableName() string { return "query" }

// Terminal reports whether the query has reached a final state.
func (q *Query) Terminal() bool {
	return q.Status == QueryStatusCompleted || q.Status == QueryStatusError
}
