// Package userstore provides storage for user accounts.
package userstore

import (
	"context"
	"strings"
	"time"

	"github.com/coursestack/coursestack/internal/app/store/storeutil"
	"github.com/coursestack/coursestack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the users collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new user store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// CreateInput contains the input for creating a user. PasswordHash must
// already be hashed; stores never see plaintext passwords.
type CreateInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Branch       string
	Year         string
}

// Create inserts a new user. Email uniqueness is enforced by the index;
// callers should check GetByEmail first for a friendlier error.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.User, error) {
	now := time.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Name:         input.Name,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Branch:       input.Branch,
		Year:         input.Year,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.c.InsertOne(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail retrieves a user by email (case-insensitive via lowercasing).
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	filter := bson.M{"email": strings.ToLower(strings.TrimSpace(email))}
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByRefreshToken retrieves the user currently holding the given refresh
// token, if any.
func (s *Store) GetByRefreshToken(ctx context.Context, token string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"refresh_token": token}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDs loads multiple users by their ObjectIDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetRefreshToken stores the user's current refresh token. Pass an empty
// string to clear it (logout).
func (s *Store) SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	update := bson.M{"$set": bson.M{"refresh_token": token, "updated_at": time.Now()}}
	if token == "" {
		update = bson.M{
			"$unset": bson.M{"refresh_token": ""},
			"$set":   bson.M{"updated_at": time.Now()},
		}
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// ListPage is one page of a role-filtered user listing.
type ListPage struct {
	Users      []models.User
	Total      int64
	Page       int64
	TotalPages int64
}

// ListByRole returns a page of users with the given role, newest first,
// excluding excludeID when non-nil (so callers can hide the requester).
func (s *Store) ListByRole(ctx context.Context, role string, excludeID *primitive.ObjectID, limit, page int64) (*ListPage, error) {
	filter := bson.M{"role": role}
	if excludeID != nil {
		filter["_id"] = bson.M{"$ne": *excludeID}
	}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	opts := storeutil.Paginate(limit, page).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 10
	}
	totalPages := (total + limit - 1) / limit
	return &ListPage{Users: users, Total: total, Page: page, TotalPages: totalPages}, nil
}

// SearchByName returns users of the given role whose name matches the query,
// case-insensitively.
func (s *Store) SearchByName(ctx context.Context, role, name string) ([]models.User, error) {
	filter := bson.M{
		"role": role,
		"name": bson.M{"$regex": name, "$options": "i"},
	}
	cursor, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateStudentProfile sets a student's branch and/or year. Empty strings
// leave the field untouched.
func (s *Store) UpdateStudentProfile(ctx context.Context, id primitive.ObjectID, branch, year string) error {
	set := bson.M{"updated_at": time.Now()}
	if branch != "" {
		set["branch"] = branch
	}
	if year != "" {
		set["year"] = year
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}
