// Package indexes creates the MongoDB indexes the application relies on.
package indexes

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureAll is called at startup. Each ensure* function is idempotent.
// Errors are aggregated so every problem is visible and startup can fail fast.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureFolders(ctx, db); err != nil {
		problems = append(problems, "folders: "+err.Error())
	}
	if err := ensureMaterials(ctx, db); err != nil {
		problems = append(problems, "materials: "+err.Error())
	}
	if err := ensureDoubts(ctx, db); err != nil {
		problems = append(problems, "doubts: "+err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("index creation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("users")
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetName("role_name"),
		},
		{
			Keys:    bson.D{{Key: "refresh_token", Value: 1}},
			Options: options.Index().SetName("refresh_token").SetSparse(true),
		},
	})
	return err
}

func ensureFolders(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("folders")
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// Owner listing, newest first.
			Keys:    bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("owner_created"),
		},
		{
			Keys:    bson.D{{Key: "access", Value: 1}},
			Options: options.Index().SetName("access"),
		},
	})
	return err
}

func ensureMaterials(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("materials")
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "uploaded_by", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("uploader_created"),
		},
		{
			// Folder enumeration for cascades and folder views.
			Keys:    bson.D{{Key: "folder", Value: 1}},
			Options: options.Index().SetName("folder").SetSparse(true),
		},
	})
	return err
}

func ensureDoubts(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("doubts")
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "material", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("material_created"),
		},
	})
	return err
}
