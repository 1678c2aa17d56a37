package types

import (
	"time"
)

const (
	UserRoleStudent    = "student"
	UserRoleInstructor = "instructor"
)

// User is an LTI subject. The ID is the platform-issued subject identifier,
// so there is no local account creation; rows are upserted at launch.
type User struct {
	ID        string    `gorm:"column:user_id;primaryKey" json:"user_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Email     string    `gorm:"column:email" json:"email"`
	Role      string    `gorm:"column:role;not null;default:'student'" json:"role"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (User) TableName() string { return "app_user" }
