// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/coursestack/coursestack/internal/app/system/indexes"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.uber.org/zap"
)

// ConnectDB connects to MongoDB and initializes the file storage backend.
//
// WAFFLE calls this after configuration is loaded but before EnsureSchema and
// Startup. Clients are stored in DBDeps for use in handlers.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	// Configure MongoDB connection pool
	poolCfg := wafflemongo.DefaultPoolConfig()
	if appCfg.MongoMaxPoolSize > 0 {
		poolCfg.MaxPoolSize = appCfg.MongoMaxPoolSize
	}
	if appCfg.MongoMinPoolSize > 0 {
		poolCfg.MinPoolSize = appCfg.MongoMinPoolSize
	}

	client, err := wafflemongo.ConnectWithPool(ctx, appCfg.MongoURI, appCfg.MongoDatabase, poolCfg)
	if err != nil {
		return DBDeps{}, err
	}

	db := client.Database(appCfg.MongoDatabase)

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", poolCfg.MaxPoolSize),
		zap.Uint64("min_pool_size", poolCfg.MinPoolSize),
	)

	// Initialize file storage
	var store storage.Store
	switch appCfg.StorageType {
	case "s3":
		store, err = storage.NewS3(ctx, storage.S3Config{
			Region:                   appCfg.StorageS3Region,
			Bucket:                   appCfg.StorageS3Bucket,
			Prefix:                   appCfg.StorageS3Prefix,
			CloudFrontURL:            appCfg.StorageCFURL,
			CloudFrontKeyPairID:      appCfg.StorageCFKeyPairID,
			CloudFrontPrivateKeyPath: appCfg.StorageCFKeyPath,
		})
		if err != nil {
			return DBDeps{}, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		logger.Info("initialized S3/CloudFront file storage",
			zap.String("bucket", appCfg.StorageS3Bucket),
			zap.String("prefix", appCfg.StorageS3Prefix),
		)
	case "local", "":
		store, err = storage.NewLocal(storage.LocalConfig{
			BasePath: appCfg.StorageLocalPath,
			BaseURL:  appCfg.StorageLocalURL,
		})
		if err != nil {
			return DBDeps{}, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		logger.Info("initialized local file storage",
			zap.String("path", appCfg.StorageLocalPath),
			zap.String("url", appCfg.StorageLocalURL),
		)
	default:
		return DBDeps{}, fmt.Errorf("unknown storage type: %s", appCfg.StorageType)
	}

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
		FileStorage:   store,
	}, nil
}

// EnsureSchema sets up indexes as needed.
//
// This runs after ConnectDB succeeds but before Startup and before the HTTP
// handler is built. The context has a timeout based on coreCfg.IndexBootTimeout,
// so long-running work should respect context cancellation.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	logger.Info("ensuring database indexes")
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("failed to ensure indexes", zap.Error(err))
		return err
	}

	logger.Info("database schema ensured successfully")
	return nil
}
