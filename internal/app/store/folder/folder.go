// Package folder provides storage for material folders.
package folder

import (
	"context"
	"time"

	"github.com/coursestack/coursestack/internal/app/system/access"
	"github.com/coursestack/coursestack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the folders collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new folder store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("folders")}
}

// CreateInput contains the input for creating a folder.
type CreateInput struct {
	Name            string
	Description     string
	CreatedBy       primitive.ObjectID
	Access          string
	AllowedBranches []string
	AllowedClasses  []string
}

// Create creates a new folder. An empty access level defaults to allStudents.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.Folder, error) {
	accessLevel := input.Access
	if accessLevel == "" {
		accessLevel = models.AccessAllStudents
	}

	now := time.Now()
	f := models.Folder{
		ID:              primitive.NewObjectID(),
		Name:            input.Name,
		Description:     input.Description,
		CreatedBy:       input.CreatedBy,
		Access:          accessLevel,
		AllowedBranches: input.AllowedBranches,
		AllowedClasses:  input.AllowedClasses,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if _, err := s.c.InsertOne(ctx, f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetByID retrieves a folder by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Folder, error) {
	var f models.Folder
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// UpdateInput contains the input for a partial folder update. Nil fields are
// left untouched; existing materials keep the access values they were
// created with (denormalized at write time, no re-sync).
type UpdateInput struct {
	Name            *string
	Description     *string
	Access          *string
	AllowedBranches []string
	AllowedClasses  []string
}

// Update applies a partial update and returns the updated folder.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, input UpdateInput) (*models.Folder, error) {
	set := bson.M{"updated_at": time.Now()}

	if input.Name != nil {
		set["name"] = *input.Name
	}
	if input.Description != nil {
		set["description"] = *input.Description
	}
	if input.Access != nil {
		set["access"] = *input.Access
	}
	if input.AllowedBranches != nil {
		set["allowed_branches"] = input.AllowedBranches
	}
	if input.AllowedClasses != nil {
		set["allowed_classes"] = input.AllowedClasses
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var f models.Folder
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&f)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Delete deletes a folder record. Cascading removal of the folder's
// materials is the caller's job and happens before this.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ListByOwner returns all folders created by the given user, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Folder, error) {
	return s.list(ctx, bson.M{"created_by": ownerID})
}

// ListVisible returns the folders owned by ownerID that the requester may
// see under the given match policy, newest first.
func (s *Store) ListVisible(ctx context.Context, ownerID primitive.ObjectID, req access.Requester, policy access.MatchPolicy) ([]models.Folder, error) {
	return s.list(ctx, access.FolderFilter(ownerID, req, policy))
}

func (s *Store) list(ctx context.Context, filter bson.M) ([]models.Folder, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var folders []models.Folder
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}
