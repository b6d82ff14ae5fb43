// Package app wires the application together. Dependencies is the single
// composition point; nothing else constructs cross-package collaborators.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govconone/backend/config"
	"github.com/govconone/backend/googleid"
	"github.com/govconone/backend/handlers"
	"github.com/govconone/backend/middleware"
	"github.com/govconone/backend/repositories"
	"github.com/govconone/backend/repositories/postgres"
	"github.com/govconone/backend/services"
	"github.com/govconone/backend/services/usage"
	"github.com/govconone/backend/token"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies. This is the central wiring
// point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	Tenants   repositories.TenantRepository
	Usage     repositories.UsageRepository
	TxManager repositories.TransactionManager

	// Services
	Tokens      *token.Service
	AuthService *services.AuthService
	Meter       *usage.Meter

	// HTTP layer
	Authenticator *middleware.Authenticator
	UsageTracker  *middleware.UsageTracker
	AuthHandler   *handlers.AuthHandler
	UsageHandler  *handlers.UsageHandler
	HealthHandler *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()
	deps.initServices(cfg)
	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection, factory and schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.Tenants = repos.Tenants
	d.Usage = repos.Usage
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initServices initializes the domain services and the usage meter
func (d *Dependencies) initServices(cfg *config.Config) {
	d.Tokens = token.NewService(cfg.JWT)
	d.AuthService = services.NewAuthService(d.Users, d.Tenants, d.TxManager, d.Logger)

	meterCfg := usage.DefaultConfig()
	meterCfg.DemoTenantID = cfg.Auth.DemoTenantID
	d.Meter = usage.NewMeter(d.Usage, d.Logger, meterCfg)
}

// initHTTP initializes the middleware and handlers
func (d *Dependencies) initHTTP(cfg *config.Config) {
	binder := &tenantBinderAdapter{db: d.DB}
	d.Authenticator = middleware.NewAuthenticator(d.Tokens, d.AuthService, binder, cfg.Auth, d.Logger)
	d.UsageTracker = middleware.NewUsageTracker(d.Meter, d.Logger)

	validator := googleid.NewValidator(cfg.Google)
	exchanger := googleid.NewExchanger(cfg.Google)

	d.AuthHandler = handlers.NewAuthHandler(d.AuthService, d.Tokens, validator, exchanger, d.Logger)
	d.UsageHandler = handlers.NewUsageHandler(d.Usage, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB, d.Logger)

	if cfg.Auth.DemoMode {
		d.Logger.Warn("demo mode enabled, requests without credentials get the demo identity")
	}
}

// Start starts the background components
func (d *Dependencies) Start() error {
	if err := d.Meter.Start(); err != nil {
		return fmt.Errorf("failed to start usage meter: %w", err)
	}
	return nil
}

// Close gracefully shuts down all dependencies. The HTTP server must already be
// drained; the meter flushes queued records before the database closes.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Meter != nil {
		if err := d.Meter.Stop(10 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop usage meter: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// tenantBinderAdapter adapts *postgres.DB to middleware.TenantBinder
type tenantBinderAdapter struct {
	db *postgres.DB
}

func (a *tenantBinderAdapter) BindTenant(ctx context.Context, tenantID uuid.UUID) (middleware.TenantHandle, error) {
	return a.db.BindTenant(ctx, tenantID)
}
