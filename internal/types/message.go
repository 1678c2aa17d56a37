package types

import (
	"time"

	"gorm.io/datatypes"
)

// Message is an immutable record of one question/answer exchange inside a
// conversation. Rows are append-only; nothing updates them after creation.
type Message struct {
	ID        string         `gorm:"column:message_id;primaryKey" json:"message_id"`
	ThreadID  string         `gorm:"column:thread_id;not null;index" json:"thread_id"`
	Question  string         `gorm:"column:question;type:text;not null" json:"question"`
	Answer    string         `gorm:"column:answer;type:text" json:"answer"`
	Citations datatypes.JSON `gorm:"column:citations;type:jsonb" json:"citations"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Message) TableName() string { return "message" }
