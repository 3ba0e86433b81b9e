package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Access levels governing who may view a folder or material.
const (
	AccessFacultyOnly    = "facultyOnly"
	AccessAllStudents    = "allStudents"
	AccessSpecific       = "specificBranchOrClass"
	AccessBoth           = "both"
)

// AllAccessLevels returns all valid access levels.
func AllAccessLevels() []string {
	return []string{AccessFacultyOnly, AccessAllStudents, AccessSpecific, AccessBoth}
}

// IsValidAccess checks if a value is a valid access level.
func IsValidAccess(access string) bool {
	for _, a := range AllAccessLevels() {
		if a == access {
			return true
		}
	}
	return false
}

// Folder is a named, access-controlled container of materials, owned by the
// faculty member who created it.
type Folder struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedBy       primitive.ObjectID `bson:"created_by" json:"created_by"`
	Access          string             `bson:"access" json:"access"`
	AllowedBranches []string           `bson:"allowed_branches,omitempty" json:"allowed_branches,omitempty"`
	AllowedClasses  []string           `bson:"allowed_classes,omitempty" json:"allowed_classes,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}
