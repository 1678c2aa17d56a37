package types

import (
	"time"
)

const (
	AssistantCategoryCourse   = "course"
	AssistantCategoryInternal = "internal"

	// AssistantSubtypeCodeAnalyzer is the internal assistant the ingestion
	// pipeline uses to turn source files into indexable reports.
	AssistantSubtypeCodeAnalyzer = "code_analyzer"
	// AssistantSubtypeMindMap is the internal assistant that renders course
	// content as a Mermaid mind map.
	AssistantSubtypeMindMap = "mind_map"
)

// Assistant is a configured remote assistant. Course-category assistants are
// selectable at submit time; internal ones serve pipeline transforms only.
type Assistant struct {
	ID            string    `gorm:"column:assistant_id;primaryKey" json:"assistant_id"`
	Name          string    `gorm:"column:name;not null" json:"name"`
	Category      string    `gorm:"column:category;not null;default:'course'" json:"category"`
	Subtype       string    `gorm:"column:subtype" json:"subtype"`
	Model         string    `gorm:"column:model" json:"model"`
	Temperature   float64   `gorm:"column:temperature" json:"temperature"`
	TopP          float64   `gorm:"column:top_p" json:"top_p"`
	Instructions  string    `gorm:"column:instructions;type:text" json:"instructions"`
	VectorStoreID string    `gorm:"column:vector_store_id" json:"vector_store_id"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Assistant) TableName() string { return "assistant" }
