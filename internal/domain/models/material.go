package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Item types
const (
	ItemTypePDF   = "pdf"
	ItemTypePPT   = "ppt"
	ItemTypeVideo = "video"
	ItemTypeNote  = "note"
	ItemTypeLink  = "link"
)

// IsValidItemType checks if a value is a valid item type.
func IsValidItemType(t string) bool {
	switch t {
	case ItemTypePDF, ItemTypePPT, ItemTypeVideo, ItemTypeNote, ItemTypeLink:
		return true
	}
	return false
}

// Item is one uploaded file, note, or link belonging to exactly one material.
// Items are embedded in the material document and have no independent lifecycle.
type Item struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type             string             `bson:"type" json:"type"`
	OriginalFileName string             `bson:"original_file_name,omitempty" json:"original_file_name,omitempty"`
	StoredFileName   string             `bson:"stored_file_name,omitempty" json:"stored_file_name,omitempty"`
	FileURL          string             `bson:"file_url,omitempty" json:"file_url,omitempty"`

	// LocalPath is a transient staging path on the server's filesystem. It is
	// set only between receiving an upload and confirming the remote copy, and
	// is nil for items uploaded straight from memory.
	LocalPath *string `bson:"local_path,omitempty" json:"local_path,omitempty"`

	// StorageKey is the key to hand the storage backend when deleting this
	// item's remote copy. Legacy records without one fall back to deriving a
	// key from FileURL.
	StorageKey   string `bson:"storage_key,omitempty" json:"storage_key,omitempty"`
	ResourceType string `bson:"resource_type,omitempty" json:"resource_type,omitempty"`

	Size        int64     `bson:"size,omitempty" json:"size,omitempty"`
	NoteContent string    `bson:"note_content,omitempty" json:"note_content,omitempty"`
	LinkURL     string    `bson:"link_url,omitempty" json:"link_url,omitempty"`
	UploadedAt  time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// Material is a titled unit of shared content consisting of one or more items,
// optionally filed under a folder.
//
// When a material is created or re-filed under a folder, the folder's
// access/allowed_branches/allowed_classes are copied onto the material. The
// copy is a denormalization made at write time for query performance; editing
// the folder afterward does not touch existing materials.
type Material struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title           string              `bson:"title" json:"title"`
	Description     string              `bson:"description,omitempty" json:"description,omitempty"`
	UploadedBy      primitive.ObjectID  `bson:"uploaded_by" json:"uploaded_by"`
	Access          string              `bson:"access" json:"access"`
	AllowedBranches []string            `bson:"allowed_branches,omitempty" json:"allowed_branches,omitempty"`
	AllowedClasses  []string            `bson:"allowed_classes,omitempty" json:"allowed_classes,omitempty"`
	Folder          *primitive.ObjectID `bson:"folder,omitempty" json:"folder,omitempty"`
	Items           []Item              `bson:"items" json:"items"`
	CreatedAt       time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `bson:"updated_at" json:"updated_at"`
}

// ItemByID returns the embedded item with the given id, or nil.
func (m *Material) ItemByID(id primitive.ObjectID) *Item {
	for i := range m.Items {
		if m.Items[i].ID == id {
			return &m.Items[i]
		}
	}
	return nil
}
