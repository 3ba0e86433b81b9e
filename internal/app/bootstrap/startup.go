// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/coursestack/coursestack/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Startup runs one-time initialization after the database is connected and
// the schema is ensured, but before the HTTP handler is built.
//
// Returning a non-nil error will abort startup and prevent the server from
// starting. The context will be cancelled if the process is asked to shut
// down while Startup is running; honor it in any long-running work.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	// Seed faculty user if configured
	if appCfg.SeedFacultyEmail != "" {
		if err := ensureFacultyUser(ctx, deps, appCfg, logger); err != nil {
			logger.Error("failed to seed faculty user", zap.Error(err))
			return err
		}
	}

	return nil
}

// ensureFacultyUser ensures a faculty user exists with the configured email.
// If a user exists with this email, ensure they have the faculty role.
// If no user exists, create a new faculty user with the configured password.
func ensureFacultyUser(ctx context.Context, deps DBDeps, appCfg AppConfig, logger *zap.Logger) error {
	coll := deps.MongoDatabase.Collection("users")

	email := strings.ToLower(strings.TrimSpace(appCfg.SeedFacultyEmail))
	name := appCfg.SeedFacultyName
	if name == "" {
		name = "Faculty"
	}

	var existing models.User
	err := coll.FindOne(ctx, bson.M{"email": email}).Decode(&existing)

	if err == nil {
		if existing.Role == models.RoleFaculty {
			logger.Debug("faculty user already configured", zap.String("email", email))
			return nil
		}

		_, err = coll.UpdateByID(ctx, existing.ID, bson.M{
			"$set": bson.M{
				"role":       models.RoleFaculty,
				"updated_at": time.Now().UTC(),
			},
		})
		if err != nil {
			return err
		}
		logger.Info("promoted existing user to faculty",
			zap.String("email", email),
			zap.String("user_id", existing.ID.Hex()),
			zap.String("previous_role", existing.Role))
		return nil
	}

	if err != mongo.ErrNoDocuments {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(appCfg.SeedFacultyPassword), 12)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	newUser := models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleFaculty,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := coll.InsertOne(ctx, newUser); err != nil {
		return err
	}

	logger.Info("seeded faculty user",
		zap.String("email", email),
		zap.String("user_id", newUser.ID.Hex()))
	return nil
}
