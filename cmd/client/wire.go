// File: cmd/client/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"servicebook_client/internal/api"
	"servicebook_client/internal/app"
	"servicebook_client/internal/auth"
	"servicebook_client/internal/config"
	"servicebook_client/internal/google"
	"servicebook_client/internal/jobs"
	"servicebook_client/internal/platform/database"
	"servicebook_client/internal/platform/logger"
	"servicebook_client/internal/session"
	"servicebook_client/internal/validation"

	"github.com/google/wire"
)

// initializeApp is the main Wire injector.
func initializeApp(cfg *config.Config) (*app.App, error) {
	wire.Build(
		// Platform Layer
		logger.New,
		database.NewSQLite,

		// Session persistence
		session.NewGORMStore,
		wire.Bind(new(session.Store), new(*session.GORMStore)),

		// Backend exchange client, doubling as the validation checker
		api.NewClient,
		wire.Bind(new(auth.Backend), new(*api.Client)),
		wire.Bind(new(validation.Checker), new(*api.Client)),

		// Google consent flow
		google.NewLoopbackProvider,
		wire.Bind(new(google.ConsentProvider), new(*google.LoopbackProvider)),
		google.NewFlow,
		wire.Bind(new(auth.Federation), new(*google.Flow)),

		// Core services
		auth.NewManager,
		wire.Bind(new(jobs.SessionRefresher), new(*auth.Manager)),
		validation.NewEngine,
		jobs.NewSessionRefreshJob,

		// Application Layer
		app.New,
	)
	return nil, nil
}
