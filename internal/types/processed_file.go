package types

import (
	"time"
)

// ProcessedFile records that one version of a remote course document has been
// ingested into the retrieval index. Keyed by (remote file id, course);
// re-ingestion happens only when the normalized remote timestamp differs.
type ProcessedFile struct {
	RemoteFileID    string    `gorm:"column:remote_file_id;primaryKey" json:"remote_file_id"`
	CourseID        string    `gorm:"column:course_id;primaryKey" json:"course_id"`
	Filename        string    `gorm:"column:filename;not null" json:"filename"`
	RemoteUpdatedAt string    `gorm:"column:remote_updated_at;not null" json:"remote_updated_at"`
	IndexFileID     string    `gorm:"column:index_file_id;not null" json:"index_file_id"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ProcessedFile) TableName() string { return "processed_file" }
