// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS
// ports, TLS, logging level and format, CORS, and request body size limits.
// AppConfig is where everything specific to this application lives.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// JWT authentication configuration
	AccessTokenSecret  string        // Secret key for signing access tokens (must be strong in production)
	AccessTokenTTL     time.Duration // Access token lifetime (default: 15m)
	RefreshTokenSecret string        // Secret key for signing refresh tokens
	RefreshTokenTTL    time.Duration // Refresh token lifetime (default: 240h)

	// Access filtering configuration
	// "exact": specificBranchOrClass requires both lists to contain the
	// student's values; an empty list never matches.
	// "lenient": an empty list matches any value.
	AccessMatchPolicy string

	// Upload limits
	UploadMaxFiles int   // Max files per material upload (default: 10)
	UploadMaxBytes int64 // Max total multipart size per request (default: 32MB)

	// File storage configuration
	StorageType      string // Storage backend: "local" or "s3"
	StorageLocalPath string // Local storage path (e.g., "./uploads")
	StorageLocalURL  string // URL prefix for serving local files (e.g., "/files")

	// S3/CloudFront configuration (only used if StorageType is "s3")
	StorageS3Region    string // AWS region
	StorageS3Bucket    string // S3 bucket name
	StorageS3Prefix    string // Key prefix (e.g., "materials/")
	StorageCFURL       string // CloudFront distribution URL
	StorageCFKeyPairID string // CloudFront key pair ID
	StorageCFKeyPath   string // Path to CloudFront private key file

	// Faculty seeding configuration
	SeedFacultyEmail    string // Email of the faculty user to create on startup (if set)
	SeedFacultyName     string // Name of the faculty user to create on startup
	SeedFacultyPassword string // Initial password for the seeded faculty user
}
