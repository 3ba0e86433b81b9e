package testutil

import (
	"testing"
	"time"

	"github.com/coursestack/coursestack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// InsertUser inserts a user document directly, bypassing signup validation.
// Useful for seeding accounts with known roles, branches, and years.
func InsertUser(t *testing.T, db *mongo.Database, u models.User) models.User {
	t.Helper()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	ctx, cancel := TestContext()
	defer cancel()
	if _, err := db.Collection("users").InsertOne(ctx, u); err != nil {
		t.Fatalf("failed to insert test user: %v", err)
	}
	return u
}

// NewStudent inserts a student with the given branch and year.
func NewStudent(t *testing.T, db *mongo.Database, name, email, branch, year string) models.User {
	t.Helper()
	return InsertUser(t, db, models.User{
		Name:   name,
		Email:  email,
		Role:   models.RoleStudent,
		Branch: branch,
		Year:   year,
	})
}

// NewFaculty inserts a faculty user.
func NewFaculty(t *testing.T, db *mongo.Database, name, email string) models.User {
	t.Helper()
	return InsertUser(t, db, models.User{
		Name:  name,
		Email: email,
		Role:  models.RoleFaculty,
	})
}
