// Package doubt provides storage for doubt threads and their replies.
package doubt

import (
	"context"
	"time"

	"github.com/coursestack/coursestack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the doubts collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new doubt store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("doubts")}
}

// Create posts a new doubt on a material. The material reference is stored
// as given; existence is not checked here.
func (s *Store) Create(ctx context.Context, materialID, postedBy primitive.ObjectID, content string) (*models.Doubt, error) {
	d := models.Doubt{
		ID:        primitive.NewObjectID(),
		Material:  materialID,
		PostedBy:  postedBy,
		Content:   content,
		Replies:   []models.Reply{},
		CreatedAt: time.Now(),
	}

	if _, err := s.c.InsertOne(ctx, d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByID retrieves a doubt by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Doubt, error) {
	var d models.Doubt
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// AppendReply appends one reply to a doubt's thread and returns the updated
// doubt. Existing replies are never touched.
func (s *Store) AppendReply(ctx context.Context, doubtID, postedBy primitive.ObjectID, content string) (*models.Doubt, error) {
	reply := models.Reply{
		ID:        primitive.NewObjectID(),
		PostedBy:  postedBy,
		Content:   content,
		CreatedAt: time.Now(),
	}

	update := bson.M{"$push": bson.M{"replies": reply}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d models.Doubt
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": doubtID}, update, opts).Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByMaterial returns all doubts posted on a material, newest first.
func (s *Store) ListByMaterial(ctx context.Context, materialID primitive.ObjectID) ([]models.Doubt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.c.Find(ctx, bson.M{"material": materialID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var doubts []models.Doubt
	if err := cursor.All(ctx, &doubts); err != nil {
		return nil, err
	}
	return doubts, nil
}
