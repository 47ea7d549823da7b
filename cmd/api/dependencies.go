package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/credtrack/credtrack-api/internal/domain/assistant"
	authhandler "github.com/credtrack/credtrack-api/internal/domain/auth/handler"
	authrepo "github.com/credtrack/credtrack-api/internal/domain/auth/repository"
	authservice "github.com/credtrack/credtrack-api/internal/domain/auth/service"
	"github.com/credtrack/credtrack-api/internal/domain/entitlements"
	"github.com/credtrack/credtrack-api/internal/domain/roster"
	"github.com/credtrack/credtrack-api/internal/domain/subscription"
	"github.com/credtrack/credtrack-api/pkg/config"
	"github.com/credtrack/credtrack-api/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	AuthRepo      authrepo.AuthRepository
	SubRepo       *subscription.PostgresRepository
	RosterRepo    roster.Repository
	AssistantRepo assistant.Repository

	// Entitlements
	Sessions *entitlements.Registry

	// Services
	TokenManager authservice.TokenManager
	AuthService  *authservice.AuthService
	RosterSvc    roster.Service
	AssistantSvc assistant.Service

	// Handlers
	AuthHandler        *authhandler.AuthHandler
	EntitlementHandler *entitlements.Handler
	RosterHandler      *roster.Handler
	AssistantHandler   *assistant.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.AuthRepo = authrepo.NewPostgresAuthRepository(d.DB.Pool, d.Logger)
	d.SubRepo = subscription.NewPostgresRepository(d.DB.Pool, d.Logger)
	d.RosterRepo = roster.NewPostgresRepository(d.DB.Pool, d.Logger)
	d.AssistantRepo = assistant.NewPostgresRepository(d.DB.Pool, d.Logger)

	d.Logger.Info("repositories initialized")
}

// initServices initializes the entitlement provider and all service
// layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	jwtSecret := []byte(d.Config.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		return fmt.Errorf("jwt secret is required")
	}

	accessTokenTTL := 15 * time.Minute
	refreshTokenTTL := 30 * 24 * time.Hour

	d.TokenManager = authservice.NewTokenManager(jwtSecret, accessTokenTTL, refreshTokenTTL)
	d.AuthService = authservice.NewAuthService(d.AuthRepo, d.SubRepo, d.TokenManager, d.Logger)

	d.Sessions = entitlements.NewRegistry(d.SubRepo, d.Logger)

	d.RosterSvc = roster.NewService(d.RosterRepo, d.Sessions, d.Logger)

	model, err := assistant.NewGeminiClient(ctx, d.Config.Assistant.GeminiAPIKey, d.Config.Assistant.Model)
	if err != nil {
		return fmt.Errorf("failed to init model client: %w", err)
	}
	d.AssistantSvc = assistant.NewService(d.AssistantRepo, d.RosterSvc, d.Sessions, model, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.AuthHandler = authhandler.NewAuthHandler(d.AuthService, d.Logger)
	d.EntitlementHandler = entitlements.NewHandler(d.Logger)
	d.RosterHandler = roster.NewHandler(d.RosterSvc, d.Logger)
	d.AssistantHandler = assistant.NewHandler(d.AssistantSvc, d.Logger)
	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Sessions != nil {
		d.Sessions.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
