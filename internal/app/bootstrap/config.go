// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/coursestack/coursestack/internal/app/system/access"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "COURSESTACK"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, access_token_secret, etc.
//   - Environment variables: COURSESTACK_MONGO_URI, COURSESTACK_ACCESS_TOKEN_SECRET, etc.
//   - Command-line flags: --mongo_uri, --access_token_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "coursestack", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// JWT configuration
	{Name: "access_token_secret", Default: "dev-only-access-secret-change-me-0123456789", Desc: "Access token signing secret (must be strong in production)"},
	{Name: "access_token_ttl", Default: "15m", Desc: "Access token lifetime (e.g., 15m, 1h)"},
	{Name: "refresh_token_secret", Default: "dev-only-refresh-secret-change-me-0123456789", Desc: "Refresh token signing secret (must be strong in production)"},
	{Name: "refresh_token_ttl", Default: "240h", Desc: "Refresh token lifetime (e.g., 240h for 10 days)"},

	// Access filtering
	{Name: "access_match_policy", Default: "exact", Desc: "Branch/class matching for specificBranchOrClass: 'exact' or 'lenient'"},

	// Upload limits
	{Name: "upload_max_files", Default: 10, Desc: "Max files per material upload"},
	{Name: "upload_max_bytes", Default: 33554432, Desc: "Max multipart upload size in bytes (default: 32MB)"},

	// File storage configuration
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded files"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix for serving local files"},

	// S3/CloudFront configuration
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "materials/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},

	// Faculty seeding configuration
	{Name: "seed_faculty_email", Default: "", Desc: "Email of faculty user to create on startup"},
	{Name: "seed_faculty_name", Default: "Faculty", Desc: "Name of faculty user to create on startup"},
	{Name: "seed_faculty_password", Default: "", Desc: "Initial password for seeded faculty user"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
// CoreConfig comes from the shared WAFFLE layer; AppConfig is specific
// to this app and can be extended as the app grows.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		// JWT
		AccessTokenSecret:  appValues.String("access_token_secret"),
		AccessTokenTTL:     appValues.Duration("access_token_ttl", 15*time.Minute),
		RefreshTokenSecret: appValues.String("refresh_token_secret"),
		RefreshTokenTTL:    appValues.Duration("refresh_token_ttl", 240*time.Hour),

		// Access filtering
		AccessMatchPolicy: appValues.String("access_match_policy"),

		// Upload limits
		UploadMaxFiles: appValues.Int("upload_max_files"),
		UploadMaxBytes: int64(appValues.Int("upload_max_bytes")),

		// File storage
		StorageType:      appValues.String("storage_type"),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),

		// S3/CloudFront
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageCFURL:       appValues.String("storage_cf_url"),
		StorageCFKeyPairID: appValues.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   appValues.String("storage_cf_key_path"),

		// Faculty seeding
		SeedFacultyEmail:    appValues.String("seed_faculty_email"),
		SeedFacultyName:     appValues.String("seed_faculty_name"),
		SeedFacultyPassword: appValues.String("seed_faculty_password"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce required fields or invariants that
// involve both the core and app configs.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if !access.IsValidMatchPolicy(appCfg.AccessMatchPolicy) {
		return fmt.Errorf("invalid access_match_policy %q (want 'exact' or 'lenient')", appCfg.AccessMatchPolicy)
	}

	if appCfg.UploadMaxFiles <= 0 {
		return fmt.Errorf("upload_max_files must be positive, got %d", appCfg.UploadMaxFiles)
	}
	if appCfg.UploadMaxBytes <= 0 {
		return fmt.Errorf("upload_max_bytes must be positive, got %d", appCfg.UploadMaxBytes)
	}

	if appCfg.SeedFacultyEmail != "" && appCfg.SeedFacultyPassword == "" {
		return fmt.Errorf("seed_faculty_password is required when seed_faculty_email is set")
	}

	return nil
}
