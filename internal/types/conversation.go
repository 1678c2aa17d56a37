package types

import (
	"time"
)

// Conversation binds a remote assistant thread to exactly one (user, course)
// pair. The first assistant used for the pair owns the thread for its
// lifetime; later queries reuse it regardless of their selected assistant.
type Conversation struct {
	ThreadID    string    `gorm:"column:thread_id;primaryKey" json:"thread_id"`
	UserID      string    `gorm:"column:user_id;not null;uniqueIndex:idx_conversation_user_course" json:"user_id"`
	CourseID    string    `gorm:"column:course_id;not null;uniqueIndex:idx_conversation_user_course" json:"course_id"`
	AssistantID string    `gorm:"column:assistant_id;not null" json:"assistant_id"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Conversation) TableName() string { return "conversation" }
