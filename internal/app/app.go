// File: internal/app/app.go
package app

import (
	"context"

	"servicebook_client/internal/api"
	"servicebook_client/internal/auth"
	"servicebook_client/internal/config"
	"servicebook_client/internal/jobs"
	"servicebook_client/internal/validation"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App aggregates the client's long-lived components: the auth manager, the
// field validation engine and the background session refresh job, plus the
// handles they share. API is exposed for the session-free surfaces (the
// public service catalog).
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	API     *api.Client
	Auth    *auth.Manager
	Checks  *validation.Engine
	refresh *jobs.SessionRefreshJob
}

// New assembles the application from already-constructed components.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	client *api.Client,
	manager *auth.Manager,
	checks *validation.Engine,
	refresh *jobs.SessionRefreshJob,
) *App {
	return &App{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		API:     client,
		Auth:    manager,
		Checks:  checks,
		refresh: refresh,
	}
}

// Start restores any persisted session and starts the background refresh
// job. Bootstrap never fails; an unusable persisted session simply leaves
// the app unauthenticated.
func (a *App) Start(ctx context.Context) error {
	a.Auth.Bootstrap(ctx)

	if a.refresh != nil {
		if err := a.refresh.SetupAndStart(); err != nil {
			a.logger.Error("Failed to start session refresh job", zap.Error(err))
			return err
		}
	}
	return nil
}

// Shutdown stops the background job, pending validation timers and the
// state database.
func (a *App) Shutdown(_ context.Context) error {
	a.logger.Info("Shutting down")
	if a.refresh != nil {
		a.refresh.Stop()
	}
	if a.Checks != nil {
		a.Checks.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("Failed to close state database", zap.Error(err))
			return err
		}
	}
	return nil
}
