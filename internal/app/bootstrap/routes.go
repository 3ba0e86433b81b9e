// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	doubtsfeature "github.com/coursestack/coursestack/internal/app/features/doubts"
	errorsfeature "github.com/coursestack/coursestack/internal/app/features/errors"
	foldersfeature "github.com/coursestack/coursestack/internal/app/features/folders"
	healthfeature "github.com/coursestack/coursestack/internal/app/features/health"
	materialsfeature "github.com/coursestack/coursestack/internal/app/features/materials"
	usersapifeature "github.com/coursestack/coursestack/internal/app/features/usersapi"
	"github.com/coursestack/coursestack/internal/app/system/access"
	"github.com/coursestack/coursestack/internal/app/system/apicors"
	"github.com/coursestack/coursestack/internal/app/system/auth"
	"github.com/coursestack/coursestack/internal/app/system/cleanup"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. The whole surface is a JSON API for the
// SPA frontend: Bearer token auth, no sessions, no CSRF, permissive CORS on
// /api. The refresh token travels in an httpOnly cookie scoped to the
// same-origin refresh/logout endpoints.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	secure := coreCfg.Env == "prod"

	tokens, err := auth.NewTokenManager(
		appCfg.AccessTokenSecret,
		appCfg.RefreshTokenSecret,
		appCfg.AccessTokenTTL,
		appCfg.RefreshTokenTTL,
	)
	if err != nil {
		logger.Error("token manager init failed", zap.Error(err))
		return nil, err
	}
	authMW := auth.NewMiddleware(tokens, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	cleaner := cleanup.New(deps.FileStorage, logger)
	matchPolicy := access.MatchPolicy(appCfg.AccessMatchPolicy)

	usersHandler := usersapifeature.NewHandler(deps.MongoDatabase, tokens, errLog, logger, secure)
	foldersHandler := foldersfeature.NewHandler(deps.MongoDatabase, cleaner, errLog, logger)
	materialsHandler := materialsfeature.NewHandler(
		deps.MongoDatabase,
		deps.FileStorage,
		cleaner,
		errLog,
		logger,
		matchPolicy,
		appCfg.UploadMaxFiles,
		appCfg.UploadMaxBytes,
	)
	doubtsHandler := doubtsfeature.NewHandler(deps.MongoDatabase, errLog, logger)
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)

	r := chi.NewRouter()

	// Request timeout middleware: prevents requests from hanging indefinitely.
	r.Use(chimw.Timeout(30 * time.Second))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// API routes: permissive CORS, Bearer token auth inside each feature.
	r.Route("/api", func(r chi.Router) {
		r.Use(apicors.Middleware())

		r.Mount("/users", usersapifeature.Routes(usersHandler, authMW))
		r.Mount("/folders", foldersfeature.Routes(foldersHandler, authMW))
		r.Mount("/materials", materialsfeature.Routes(materialsHandler, authMW))
		r.Mount("/doubts", doubtsfeature.Routes(doubtsHandler, authMW))
	})

	// Health checks
	r.Mount("/health", healthfeature.Routes(healthHandler))

	return r, nil
}
