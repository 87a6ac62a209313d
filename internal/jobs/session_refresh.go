// File: internal/jobs/session_refresh.go
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"servicebook_client/internal/auth"
	"servicebook_client/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionRefresher is the slice of the auth manager the job needs.
type SessionRefresher interface {
	IsAuthenticated() bool
	Refresh(ctx context.Context) error
}

// SessionRefreshJob proactively refreshes the access token on a schedule so
// long-lived sessions do not go stale between user actions.
type SessionRefreshJob struct {
	refresher     SessionRefresher
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

// NewSessionRefreshJob creates a new SessionRefreshJob.
func NewSessionRefreshJob(
	refresher SessionRefresher,
	logger *zap.Logger,
	cfg *config.Config,
) *SessionRefreshJob {
	scheduler := cron.New(cron.WithLogger(NewCronLogger(logger.Named("cron"))))

	return &SessionRefreshJob{
		refresher:     refresher,
		logger:        logger.Named("SessionRefreshJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules and starts the cron job.
func (j *SessionRefreshJob) SetupAndStart() error {
	jobSpec := j.cfg.SessionRefreshSchedule // e.g. "@every 10m"
	if jobSpec == "" {
		j.logger.Warn("Session refresh schedule not defined (SESSION_REFRESH_SCHEDULE). Job will not run.")
		return nil // Not a fatal error, just won't run
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.runJob)
	if err != nil {
		j.logger.Error("Failed to schedule session refresh job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Session refresh job scheduled", zap.String("spec", jobSpec), zap.Any("jobID", jobID))
	j.cronScheduler.Start()
	return nil
}

// runJob is the actual work performed by the cron job.
func (j *SessionRefreshJob) runJob() {
	if !j.refresher.IsAuthenticated() {
		j.logger.Debug("No active session, skipping refresh run")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := j.refresher.Refresh(ctx)
	switch {
	case err == nil:
		j.logger.Info("Session refresh job run completed")
	case errors.Is(err, auth.ErrNotAuthenticated):
		// The user logged out between the check and the refresh.
		j.logger.Debug("Session gone before refresh ran")
	case errors.Is(err, auth.ErrAuthInProgress):
		// A foreground operation holds the mutation slot; the next tick
		// will refresh.
		j.logger.Debug("Auth operation in flight, skipping refresh run")
	default:
		j.logger.Error("Session refresh job run failed", zap.Error(err))
	}
}

// Stop gracefully stops the cron scheduler.
func (j *SessionRefreshJob) Stop() {
	if j.cronScheduler != nil {
		j.logger.Info("Stopping session refresh job scheduler...")
		stopCtx := j.cronScheduler.Stop()
		select {
		case <-stopCtx.Done():
			j.logger.Info("Session refresh job scheduler stopped gracefully.")
		case <-time.After(10 * time.Second):
			j.logger.Warn("Session refresh job scheduler stop timed out.")
		}
	}
}

// --- Cron Logger Adapter ---

// cronLogger adapts zap.Logger to cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a new cronLogger.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

// Info logs routine messages from cron.
func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	fields := cl.parseKeysAndValues(keysAndValues...)
	cl.zl.Info(msg, fields...)
}

// Error logs error messages from cron.
func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := cl.parseKeysAndValues(keysAndValues...)
	fields = append(fields, zap.Error(err))
	cl.zl.Error(msg, fields...)
}

func (cl *cronLogger) parseKeysAndValues(keysAndValues ...interface{}) []zap.Field {
	var fields []zap.Field
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), "MISSING_VALUE"))
		}
	}
	return fields
}
