// File: internal/session/store.go
package session

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Session is the paired token grant returned by the backend. Both tokens are
// always present together; a half-populated session never exists.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// Store is the passive persistence surface for the session. The auth manager
// is its sole writer.
type Store interface {
	// Load returns the persisted session, or nil when none is stored.
	// Missing or malformed records are reported as absence, not failure.
	Load() (*Session, error)
	Save(sess Session) error
	Clear() error
}

// sessionRecord is the single-row table backing the store. The fixed primary
// key makes every save an upsert of the same row, so the token pair is
// replaced atomically.
type sessionRecord struct {
	ID           uint `gorm:"primaryKey"`
	AccessToken  string
	RefreshToken string
}

func (sessionRecord) TableName() string {
	return "session"
}

const sessionRowID = 1

// GORMStore persists the session in the local SQLite state database.
type GORMStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Store = (*GORMStore)(nil)

// NewGORMStore migrates the session table and returns the store.
func NewGORMStore(db *gorm.DB, logger *zap.Logger) (*GORMStore, error) {
	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session table: %w", err)
	}
	return &GORMStore{db: db, logger: logger.Named("SessionStore")}, nil
}

// Load returns the stored session. A row holding only one of the two tokens
// is treated as corrupt: it is deleted and absence is reported.
func (s *GORMStore) Load() (*Session, error) {
	var rec sessionRecord
	err := s.db.First(&rec, sessionRowID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if rec.AccessToken == "" || rec.RefreshToken == "" {
		s.logger.Warn("Discarding half-populated session record")
		if err := s.Clear(); err != nil {
			s.logger.Warn("Failed to clear corrupt session record", zap.Error(err))
		}
		return nil, nil
	}

	return &Session{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken}, nil
}

// Save replaces the stored token pair in a single upsert.
func (s *GORMStore) Save(sess Session) error {
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		return fmt.Errorf("refusing to persist half-populated session")
	}

	rec := sessionRecord{
		ID:           sessionRowID,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Clear removes the stored session. Clearing an empty store is not an error.
func (s *GORMStore) Clear() error {
	err := s.db.Delete(&sessionRecord{}, sessionRowID).Error
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
