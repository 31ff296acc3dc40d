package models

import (
	"time"

	"github.com/certforge/certstore/pkg/storage"
)

// ItemMetadata holds what the storage backends cannot: protection flags,
// explicit directory permissions and the creator of an item. Rows are keyed
// by canonical storage path. A path without a row inherits everything.
type ItemMetadata struct {
	Path            string `gorm:"primaryKey;size:1024" json:"path"`
	IsProtected     bool   `gorm:"not null;default:false" json:"isProtected"`
	ProtectChildren bool   `gorm:"not null;default:false" json:"protectChildren"`

	// Explicit permission flags; NULL inherits from the ancestors.
	AllowUploads       *bool `json:"allowUploads,omitempty"`
	AllowCreateSubDirs *bool `gorm:"column:allow_create_sub_dirs" json:"allowCreateSubDirs,omitempty"`
	AllowDelete        *bool `json:"allowDelete,omitempty"`
	AllowDeleteFiles   *bool `json:"allowDeleteFiles,omitempty"`
	AllowMove          *bool `json:"allowMove,omitempty"`
	AllowMoveFiles     *bool `json:"allowMoveFiles,omitempty"`

	CreatedBy string    `gorm:"size:255" json:"createdBy,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for ItemMetadata.
func (ItemMetadata) TableName() string {
	return "item_metadata"
}

// Flags returns the explicit permission flags of the item.
func (m *ItemMetadata) Flags() storage.PermissionFlags {
	return storage.PermissionFlags{
		AllowUploads:       m.AllowUploads,
		AllowCreateSubDirs: m.AllowCreateSubDirs,
		AllowDelete:        m.AllowDelete,
		AllowDeleteFiles:   m.AllowDeleteFiles,
		AllowMove:          m.AllowMove,
		AllowMoveFiles:     m.AllowMoveFiles,
	}
}

// SetFlags replaces the explicit permission flags.
func (m *ItemMetadata) SetFlags(f storage.PermissionFlags) {
	m.AllowUploads = f.AllowUploads
	m.AllowCreateSubDirs = f.AllowCreateSubDirs
	m.AllowDelete = f.AllowDelete
	m.AllowDeleteFiles = f.AllowDeleteFiles
	m.AllowMove = f.AllowMove
	m.AllowMoveFiles = f.AllowMoveFiles
}

// IsEmpty reports whether the row carries nothing beyond defaults and can be
// dropped.
func (m *ItemMetadata) IsEmpty() bool {
	return !m.IsProtected && !m.ProtectChildren && m.CreatedBy == "" && m.Flags().IsEmpty()
}
