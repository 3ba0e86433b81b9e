// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account on the platform. Faculty create folders and
// upload materials; students browse what their branch/year is allowed to see.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Email    string             `bson:"email" json:"email"` // stored lowercase, unique
	Role     string             `bson:"role" json:"role"`   // student, faculty

	// Password auth
	PasswordHash string `bson:"password_hash" json:"-"` // bcrypt hash (never in JSON)

	// Student-only fields. Empty for faculty.
	Branch string `bson:"branch,omitempty" json:"branch,omitempty"`
	Year   string `bson:"year,omitempty" json:"year,omitempty"` // FE, SE, TE, BE

	// RefreshToken is the currently valid refresh token for this user,
	// or empty when logged out. Rotated on login.
	RefreshToken string `bson:"refresh_token,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// User roles
const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
)

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	return role == RoleStudent || role == RoleFaculty
}

// AllYears returns the valid class years in progression order.
func AllYears() []string {
	return []string{"FE", "SE", "TE", "BE"}
}

// IsValidYear checks if a year is a valid class year.
func IsValidYear(year string) bool {
	for _, y := range AllYears() {
		if y == year {
			return true
		}
	}
	return false
}

// IsStudent returns true if the user has the student role.
func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}
