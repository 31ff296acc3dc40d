package models

import (
	"time"

	"github.com/certforge/certstore/pkg/usage"
)

// FileUsage is the GORM row of a usage record. The tuple
// (file_path, reference_table, reference_id, usage_type) is unique.
type FileUsage struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	FilePath       string    `gorm:"not null;size:1024;uniqueIndex:idx_file_usage_tuple,priority:1" json:"filePath"`
	ReferenceTable string    `gorm:"not null;size:255;uniqueIndex:idx_file_usage_tuple,priority:2;index:idx_file_usage_reference,priority:1" json:"referenceTable"`
	ReferenceID    string    `gorm:"not null;size:255;uniqueIndex:idx_file_usage_tuple,priority:3;index:idx_file_usage_reference,priority:2" json:"referenceId"`
	UsageType      string    `gorm:"not null;size:255;uniqueIndex:idx_file_usage_tuple,priority:4" json:"usageType"`
	CreatedAt      time.Time `json:"created"`
}

// TableName returns the table name for FileUsage.
func (FileUsage) TableName() string {
	return "file_usages"
}

// Record converts the row to a usage record.
func (f *FileUsage) Record() usage.Record {
	return usage.Record{
		ID:             f.ID,
		FilePath:       f.FilePath,
		ReferenceID:    f.ReferenceID,
		ReferenceTable: f.ReferenceTable,
		UsageType:      f.UsageType,
		Created:        f.CreatedAt.UTC(),
	}
}

// FileUsageFromRecord converts a usage record to a row.
func FileUsageFromRecord(r usage.Record) *FileUsage {
	return &FileUsage{
		ID:             r.ID,
		FilePath:       r.FilePath,
		ReferenceID:    r.ReferenceID,
		ReferenceTable: r.ReferenceTable,
		UsageType:      r.UsageType,
		CreatedAt:      r.Created,
	}
}
