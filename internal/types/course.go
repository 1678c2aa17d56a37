package types

import (
	"time"
)

// Course mirrors one LMS course. Configuration (assistant bindings, vector
// store, deployment) is reference data maintained by operators; the pipeline
// only reads it.
type Course struct {
	ID              string       `gorm:"column:course_id;primaryKey" json:"course_id"`
	Name            string       `gorm:"column:name;not null" json:"name"`
	LTIDeploymentID string       `gorm:"column:lti_deployment_id" json:"lti_deployment_id"`
	VectorStoreID   string       `gorm:"column:vector_store_id" json:"vector_store_id"`
	Assistants      []*Assistant `gorm:"many2many:course_assistant;foreignKey:ID;joinForeignKey:CourseID;References:ID;joinReferences:AssistantID" json:"assistants,omitempty"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Course) TableName() string { return "course" }
