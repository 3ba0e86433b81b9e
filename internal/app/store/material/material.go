// Package material provides storage for materials and their embedded items.
package material

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

// Store provides access to the materials collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new material store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("materials")}
}

// CreateInput contains the input for creating a material. Access fields are
// the final values to persist; folder inheritance is resolved by the caller
// before this point.
type CreateInput struct {
	Title           string
	Description     string
	UploadedBy      primitive.ObjectID
	Access          string
	AllowedBranches []string
	AllowedClasses  []string
	Folder          *primitive.ObjectID
	Items           []models.Item
}

// Create creates a new material with its initial items. An empty access
// level defaults to allStudents.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.Material, error) {
	accessLevel := input.Access
	if accessLevel == "" {
		accessLevel = models.AccessAllStudents
	}

	now := time.Now()
	items := input.Items
	for i := range items {
		if items[i].ID.IsZero() {
			items[i].ID = primitive.NewObjectID()
		}
		if items[i].UploadedAt.IsZero() {
			items[i].UploadedAt = now
		}
	}
	if items == nil {
		items = []models.Item{}
	}

	m := models.Material{
		ID:              primitive.NewObjectID(),
		Title:           input.Title,
		Description:     input.Description,
		UploadedBy:      input.UploadedBy,
		Access:          accessLevel,
		AllowedBranches: input.AllowedBranches,
		AllowedClasses:  input.AllowedClasses,
		Folder:          input.Folder,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID retrieves a material by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Material, error) {
	var m models.Material
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateInput contains the input for a partial material update. Nil fields
// are left untouched.
type UpdateInput struct {
	Title           *string
	Description     *string
	Access          *string
	AllowedBranches []string
	AllowedClasses  []string
	Folder          *primitive.ObjectID
}

// Update applies a partial update and returns the updated material.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, input UpdateInput) (*models.Material, error) {
	set := bson.M{"updated_at": time.Now()}

	if input.Title != nil {
		set["title"] = *input.Title
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
	if input.Folder != nil {
		set["folder"] = *input.Folder
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m models.Material
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// AppendItems pushes items onto the material's item list and returns the
// updated material.
func (s *Store) AppendItems(ctx context.Context, id primitive.ObjectID, items []models.Item) (*models.Material, error) {
	now := time.Now()
	for i := range items {
		if items[i].ID.IsZero() {
			items[i].ID = primitive.NewObjectID()
		}
		if items[i].UploadedAt.IsZero() {
			items[i].UploadedAt = now
		}
	}

	update := bson.M{
		"$push": bson.M{"items": bson.M{"$each": items}},
		"$set":  bson.M{"updated_at": now},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m models.Material
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// PullItem removes the embedded item with the given id from the material.
// The material record survives even when its last item is pulled.
func (s *Store) PullItem(ctx context.Context, materialID, itemID primitive.ObjectID) error {
	update := bson.M{
		"$pull": bson.M{"items": bson.M{"_id": itemID}},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": materialID}, update)
	return err
}

// Delete deletes a material record. Item cleanup happens before this.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ListByFolder returns all materials filed under the given folder, newest
// first. Used both for folder views and for cascade enumeration.
func (s *Store) ListByFolder(ctx context.Context, folderID primitive.ObjectID) ([]models.Material, error) {
	return s.list(ctx, bson.M{"folder": folderID})
}

// ListUnfiledByOwner returns materials uploaded by the given user that are
// not filed under any folder, newest first.
func (s *Store) ListUnfiledByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Material, error) {
	return s.list(ctx, bson.M{
		"uploaded_by": ownerID,
		"folder":      bson.M{"$exists": false},
	})
}

// ListVisible returns the materials uploaded by ownerID that the requester
// may see under the given match policy, newest first.
func (s *Store) ListVisible(ctx context.Context, ownerID primitive.ObjectID, req access.Requester, policy access.MatchPolicy) ([]models.Material, error) {
	return s.list(ctx, access.MaterialFilter(ownerID, req, policy))
}

func (s *Store) list(ctx context.Context, filter bson.M) ([]models.Material, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var materials []models.Material
	if err := cursor.All(ctx, &materials); err != nil {
		return nil, err
	}
	return materials, nil
}
