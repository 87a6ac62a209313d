// File: internal/auth/manager.go
package auth

import (
	"context"
	"errors"
	"sync"

	"servicebook_client/internal/api"
	"servicebook_client/internal/common"
	"servicebook_client/internal/session"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrAuthInProgress is returned when a session-mutating operation is invoked
// while another one is still in flight. The manager rejects rather than
// queues: a queued credential exchange would fire with stale inputs long
// after the user moved on.
var ErrAuthInProgress = errors.New("an authentication operation is already in progress")

// ErrNotAuthenticated is returned by operations that require a session.
var ErrNotAuthenticated = errors.New("not authenticated")

// GoogleResult is the outcome of a completed Google sign-in. NeedsCompletion
// signals that the backend wants a phone number before the profile counts as
// fully provisioned; acting on that (navigation) is the caller's business.
type GoogleResult struct {
	User            *api.User
	NeedsCompletion bool
}

// Manager is the single stateful coordinator of the auth subsystem. It owns
// the current user and session, sequences every session-mutating operation,
// and is the sole writer of the session store. Persistence failures are
// logged and tolerated: the in-memory session stays authoritative for the
// process lifetime.
type Manager struct {
	backend    Backend
	store      session.Store
	federation Federation
	logger     *zap.Logger
	validate   *validator.Validate

	mu              sync.Mutex
	user            *api.User
	sess            *session.Session
	busy            bool
	loading         bool
	needsCompletion bool
}

// NewManager creates the auth manager.
func NewManager(backend Backend, store session.Store, federation Federation, logger *zap.Logger) *Manager {
	return &Manager{
		backend:    backend,
		store:      store,
		federation: federation,
		logger:     logger.Named("AuthManager"),
		validate:   validator.New(),
	}
}

// begin claims the single session-mutation slot.
func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrAuthInProgress
	}
	m.busy = true
	m.loading = true
	return nil
}

func (m *Manager) end() {
	m.mu.Lock()
	m.busy = false
	m.loading = false
	m.mu.Unlock()
}

// IsAuthenticated reports whether a user is currently held. It is true
// exactly when CurrentUser returns non-nil.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// IsLoading reports whether an auth operation is in flight.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// NeedsCompletion reports whether the current user still owes a phone number
// after an OAuth sign-in.
func (m *Manager) NeedsCompletion() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.needsCompletion
}

// CurrentUser returns a copy of the current user, or nil when unauthenticated.
func (m *Manager) CurrentUser() *api.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// CurrentSession returns a copy of the current session, or nil.
func (m *Manager) CurrentSession() *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	s := *m.sess
	return &s
}

// setAuthenticated installs user and session together, keeping the
// IsAuthenticated/user invariant, and persists the session pair.
func (m *Manager) setAuthenticated(user *api.User, sess session.Session, needsCompletion bool) {
	m.mu.Lock()
	m.user = user
	m.sess = &sess
	m.needsCompletion = needsCompletion
	m.mu.Unlock()

	if err := m.store.Save(sess); err != nil {
		// Non-fatal: the in-memory session carries this process.
		m.logger.Warn("Failed to persist session", zap.Error(err))
	}
}

// clearAuthenticated drops user and session together and empties the store.
func (m *Manager) clearAuthenticated() {
	m.mu.Lock()
	m.user = nil
	m.sess = nil
	m.needsCompletion = false
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("Failed to clear persisted session", zap.Error(err))
	}
}

// Bootstrap restores a persisted session at process start. It is the only
// path that silently downgrades a persisted session to unauthenticated: a
// stored token rejected by the backend is healed by one refresh attempt and
// otherwise cleared. No error ever escapes to the caller.
func (m *Manager) Bootstrap(ctx context.Context) {
	if err := m.begin(); err != nil {
		m.logger.Warn("Bootstrap skipped, another operation in flight")
		return
	}
	defer m.end()

	sess, err := m.store.Load()
	if err != nil {
		m.logger.Warn("Failed to load persisted session", zap.Error(err))
		return
	}
	if sess == nil {
		m.logger.Debug("No persisted session")
		return
	}

	// Skip a profile fetch that is guaranteed to fail.
	if tokenVisiblyExpired(sess.AccessToken) {
		m.logger.Info("Persisted access token expired, refreshing")
		if !m.refreshInto(ctx, sess) {
			return
		}
	}

	user, err := m.backend.FetchProfile(ctx, sess.AccessToken)
	if err != nil && common.IsKind(err, common.KindInvalidSession) {
		if m.refreshInto(ctx, sess) {
			user, err = m.backend.FetchProfile(ctx, sess.AccessToken)
		}
	}
	if err != nil {
		if common.IsKind(err, common.KindNetwork) {
			// Offline start: keep the persisted session for next time but
			// stay unauthenticated now.
			m.logger.Warn("Bootstrap could not reach backend", zap.Error(err))
			return
		}
		m.logger.Info("Persisted session rejected, clearing it", zap.Error(err))
		m.clearAuthenticated()
		return
	}

	m.setAuthenticated(user, *sess, user.PhoneNumber == "")
	m.logger.Info("Session restored", zap.Int64("userID", user.ID))
}

// refreshInto exchanges sess's refresh token for a new access token,
// updating sess in place. On rejection the persisted session is cleared.
func (m *Manager) refreshInto(ctx context.Context, sess *session.Session) bool {
	access, err := m.backend.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if common.IsKind(err, common.KindInvalidSession) {
			m.logger.Info("Refresh token rejected, clearing persisted session")
			m.clearAuthenticated()
		} else {
			m.logger.Warn("Token refresh failed", zap.Error(err))
		}
		return false
	}
	sess.AccessToken = access
	if err := m.store.Save(*sess); err != nil {
		m.logger.Warn("Failed to persist refreshed session", zap.Error(err))
	}
	return true
}

// Login authenticates with credentials, replacing any prior state. Errors
// propagate unchanged; there are no retries.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()
	return m.login(ctx, email, password)
}

func (m *Manager) login(ctx context.Context, email, password string) error {
	resp, err := m.backend.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return m.adopt(ctx, resp, false)
}

// adopt installs the session and user from an auth response, fetching the
// profile separately when the response carries none.
func (m *Manager) adopt(ctx context.Context, resp *api.AuthResponse, needsCompletion bool) error {
	user := resp.User
	if user == nil {
		fetched, err := m.backend.FetchProfile(ctx, resp.Access)
		if err != nil {
			return err
		}
		user = fetched
	}
	m.setAuthenticated(user, session.Session{
		AccessToken:  resp.Access,
		RefreshToken: resp.Refresh,
	}, needsCompletion)
	return nil
}

// Signup registers a new account. When the backend's policy omits tokens
// from the register response, exactly one login fallback with the same
// credentials is attempted; a failure of that fallback propagates without
// any further attempt.
func (m *Manager) Signup(ctx context.Context, req api.RegisterRequest) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	if err := m.validate.Struct(req); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			return common.NewFieldError(fieldName(invalid[0]), "invalid value")
		}
		return common.NewAuthError(common.KindValidation, err.Error())
	}

	resp, err := m.backend.Register(ctx, req)
	if err != nil {
		return err
	}

	if resp.HasTokens() {
		return m.adopt(ctx, resp, false)
	}

	// Single-shot fallback: m.login never re-enters Signup, so the retry is
	// structurally bounded to one.
	m.logger.Info("Registration returned no tokens, logging in")
	return m.login(ctx, req.Email, req.Password)
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "Email":
		return "email"
	case "Password":
		return "password"
	case "FirstName":
		return "first_name"
	case "LastName":
		return "last_name"
	case "PhoneNumber":
		return "phone"
	}
	return fe.Field()
}

// GoogleLogin runs the consent flow and exchanges the artifact. A nil result
// with a nil error means the user abandoned the consent surface; abandonment
// is not a failure and is never reported as one.
func (m *Manager) GoogleLogin(ctx context.Context) (*GoogleResult, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	artifacts := make(chan string, 1)
	done := m.federation.Initiate(ctx, func(artifact string) {
		artifacts <- artifact
	})

	var artifact string
	select {
	case artifact = <-artifacts:
	case <-done:
		// Terminal event without an artifact unless one raced in.
		select {
		case artifact = <-artifacts:
		default:
			m.logger.Info("Google sign-in abandoned")
			return nil, nil
		}
	case <-ctx.Done():
		m.logger.Info("Google sign-in cancelled")
		return nil, nil
	}

	resp, err := m.backend.ExchangeGoogleToken(ctx, artifact)
	if err != nil {
		return nil, err
	}
	if err := m.adopt(ctx, resp, resp.NeedsPhone); err != nil {
		return nil, err
	}
	return &GoogleResult{User: m.CurrentUser(), NeedsCompletion: resp.NeedsPhone}, nil
}

// GoogleSignup is the signup entry point for Google accounts. The backend
// exchange is identical to GoogleLogin; it creates the account on first
// contact.
func (m *Manager) GoogleSignup(ctx context.Context) (*GoogleResult, error) {
	return m.GoogleLogin(ctx)
}

// Logout clears local state unconditionally and immediately. The backend
// revocation is best-effort and its failure is only logged. Logout is never
// rejected, even while another operation is in flight: the local clear must
// always win.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	var refresh string
	if m.sess != nil {
		refresh = m.sess.RefreshToken
	}
	m.user = nil
	m.sess = nil
	m.needsCompletion = false
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("Failed to clear persisted session", zap.Error(err))
	}

	if refresh != "" {
		if err := m.backend.Logout(ctx, refresh); err != nil {
			m.logger.Warn("Best-effort backend logout failed", zap.Error(err))
		}
	}
	m.logger.Info("Logged out")
}

// UpdateProfile patches the current user's profile. A successful update that
// fills the phone number completes an OAuth profile. Holds the mutation slot,
// so it is rejected with ErrAuthInProgress while another operation runs.
func (m *Manager) UpdateProfile(ctx context.Context, update api.ProfileUpdate) (*api.User, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()
	if sess == nil {
		return nil, ErrNotAuthenticated
	}

	user, err := m.backend.UpdateProfile(ctx, sess.AccessToken, update)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	// Logout can interleave with any in-flight call. If the session that
	// started this call is gone, the result must not re-install a user.
	if m.sess != sess {
		m.mu.Unlock()
		m.logger.Info("Discarding profile update result, session ended during the call")
		return nil, ErrNotAuthenticated
	}
	m.user = user
	if user.PhoneNumber != "" {
		m.needsCompletion = false
	}
	m.mu.Unlock()
	return user, nil
}

// Refresh exchanges the refresh token for a new access token. A rejected
// refresh token is self-healing: local state and the store are cleared, and
// the InvalidSession error is still returned so callers can react. Holds the
// mutation slot, so it is rejected with ErrAuthInProgress while another
// operation runs.
func (m *Manager) Refresh(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()
	if sess == nil {
		return ErrNotAuthenticated
	}

	access, err := m.backend.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if common.IsKind(err, common.KindInvalidSession) {
			m.logger.Info("Refresh token rejected, forcing local logout")
			m.clearAuthenticated()
		}
		return err
	}

	next := session.Session{AccessToken: access, RefreshToken: sess.RefreshToken}
	m.mu.Lock()
	// Logout can interleave with any in-flight call. A session cleared while
	// the backend round trip ran must stay cleared; installing the fresh pair
	// here would resurrect it in memory and in the store.
	if m.sess != sess {
		m.mu.Unlock()
		m.logger.Info("Discarding refresh result, session ended during the call")
		return ErrNotAuthenticated
	}
	m.sess = &next
	m.mu.Unlock()
	if err := m.store.Save(next); err != nil {
		m.logger.Warn("Failed to persist refreshed session", zap.Error(err))
	}
	return nil
}

// ForgotPassword requests a password-reset email. No session state changes.
func (m *Manager) ForgotPassword(ctx context.Context, email string) (*api.MessageResponse, error) {
	return m.backend.ForgotPassword(ctx, email)
}

// ResetPassword completes a password reset with an emailed token. No session
// state changes; the user logs in afterwards.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (*api.MessageResponse, error) {
	if newPassword != confirmPassword {
		return nil, common.NewFieldError("confirm_password", "passwords do not match")
	}
	return m.backend.ResetPassword(ctx, token, newPassword, confirmPassword)
}
