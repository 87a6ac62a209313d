package integration_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"servicebook_client/internal/api"
	"servicebook_client/internal/auth"
	"servicebook_client/internal/common"
	"servicebook_client/internal/config"
	"servicebook_client/internal/platform/database"
	"servicebook_client/internal/session"
	"servicebook_client/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// consentStub plays the Google consent surface, immediately delivering a
// pre-agreed authorization artifact (or abandoning).
type consentStub struct {
	artifact string
	abandon  bool
}

func (s *consentStub) Initiate(_ context.Context, onArtifact func(artifact string)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if !s.abandon {
			onArtifact(s.artifact)
		}
	}()
	return done
}

type testEnv struct {
	t       *testing.T
	backend *bookingBackend
	server  *httptest.Server
	cfg     *config.Config
	store   *session.GORMStore
	client  *api.Client
	consent *consentStub
	manager *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := newBookingBackend()
	server := httptest.NewServer(backend.router)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		AppEnv:             "test",
		APIBaseURL:         server.URL,
		HTTPTimeout:        5 * time.Second,
		StateDBPath:        filepath.Join(t.TempDir(), "state.db"),
		LogLevel:           "debug",
		LogFormat:          "console",
		EmailCheckDebounce: 25 * time.Millisecond,
		PhoneCheckDebounce: 25 * time.Millisecond,
	}

	db, err := database.NewSQLite(cfg)
	require.NoError(t, err)
	store, err := session.NewGORMStore(db, zap.NewNop())
	require.NoError(t, err)

	env := &testEnv{
		t:       t,
		backend: backend,
		server:  server,
		cfg:     cfg,
		store:   store,
		client:  api.NewClient(cfg, zap.NewNop()),
		consent: &consentStub{},
	}
	env.manager = env.newManager()
	return env
}

// newManager builds a fresh manager over the same store and backend,
// simulating a process restart.
func (env *testEnv) newManager() *auth.Manager {
	return auth.NewManager(env.client, env.store, env.consent, zap.NewNop())
}

func registration(email string) api.RegisterRequest {
	return api.RegisterRequest{
		Email:     email,
		Password:  "orig-password-1",
		FirstName: "Jane",
		LastName:  "Doe",
	}
}

func TestSignupThenLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.manager.Signup(ctx, registration("jane@example.com")))
	require.True(t, env.manager.IsAuthenticated())
	assert.Equal(t, "jane@example.com", env.manager.CurrentUser().Email)

	persisted, err := env.store.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted, "A token pair must be persisted after signup")

	env.manager.Logout(ctx)
	assert.False(t, env.manager.IsAuthenticated())

	persisted, err = env.store.Load()
	require.NoError(t, err)
	assert.Nil(t, persisted, "Logout must clear the persisted session")
}

func TestSignupFallsBackToLoginWhenRegisterOmitsTokens(t *testing.T) {
	env := newTestEnv(t)
	env.backend.issueTokensOnRegister = false

	require.NoError(t, env.manager.Signup(context.Background(), registration("jane@example.com")))
	assert.True(t, env.manager.IsAuthenticated(), "The login fallback must establish the session")
}

func TestLoginWithWrongPasswordIsInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.backend.addAccount("jane@example.com", "orig-password-1", "Jane", "Doe", "")

	err := env.manager.Login(context.Background(), "jane@example.com", "wrong")

	assert.True(t, common.IsKind(err, common.KindInvalidCredentials))
	assert.False(t, env.manager.IsAuthenticated())
}

func TestBootstrapRestoresSessionAcrossRestart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.backend.addAccount("jane@example.com", "orig-password-1", "Jane", "Doe", "+14155550100")
	require.NoError(t, env.manager.Login(ctx, "jane@example.com", "orig-password-1"))

	restarted := env.newManager()
	require.False(t, restarted.IsAuthenticated())

	restarted.Bootstrap(ctx)

	require.True(t, restarted.IsAuthenticated())
	assert.Equal(t, "jane@example.com", restarted.CurrentUser().Email)
	assert.False(t, restarted.NeedsCompletion())
}

func TestBootstrapHealsRevokedAccessToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.backend.addAccount("jane@example.com", "orig-password-1", "Jane", "Doe", "+14155550100")
	require.NoError(t, env.manager.Login(ctx, "jane@example.com", "orig-password-1"))

	// Access tokens expire; the refresh token survives.
	env.backend.revokeAccessTokens()

	restarted := env.newManager()
	restarted.Bootstrap(ctx)

	require.True(t, restarted.IsAuthenticated(), "A live refresh token must heal the session")
}

func TestBootstrapClearsFullyRevokedSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.backend.addAccount("jane@example.com", "orig-password-1", "Jane", "Doe", "")
	require.NoError(t, env.manager.Login(ctx, "jane@example.com", "orig-password-1"))

	env.backend.revokeAccessTokens()
	env.backend.revokeRefreshTokens()

	restarted := env.newManager()
	restarted.Bootstrap(ctx)

	assert.False(t, restarted.IsAuthenticated())
	persisted, err := env.store.Load()
	require.NoError(t, err)
	assert.Nil(t, persisted, "A dead session must not be offered to the next start")
}

func TestGoogleSignInWithProfileCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.backend.registerGoogleCode("google-code-1", "gia@example.com", "Gia", "Ng")
	env.consent.artifact = "google-code-1"

	result, err := env.manager.GoogleLogin(ctx)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.NeedsCompletion, "A Google account without a phone needs completion")
	assert.True(t, env.manager.NeedsCompletion())

	phone := "+14155550123"
	_, err = env.manager.UpdateProfile(ctx, api.ProfileUpdate{PhoneNumber: &phone})
	require.NoError(t, err)
	assert.False(t, env.manager.NeedsCompletion())
	assert.Equal(t, phone, env.manager.CurrentUser().PhoneNumber)
}

func TestGoogleSignInAbandoned(t *testing.T) {
	env := newTestEnv(t)
	env.consent.abandon = true

	result, err := env.manager.GoogleLogin(context.Background())

	assert.NoError(t, err, "Abandonment is not an error")
	assert.Nil(t, result)
	assert.False(t, env.manager.IsAuthenticated())
}

func TestProfilePhoneConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.backend.addAccount("taken@example.com", "orig-password-1", "Tam", "Vo", "+14155550999")
	env.backend.addAccount("jane@example.com", "orig-password-1", "Jane", "Doe", "")
	require.NoError(t, env.manager.Login(ctx, "jane@example.com", "orig-password-1"))

	phone := "+14155550999"
	_, err := env.manager.UpdateProfile(ctx, api.ProfileUpdate{PhoneNumber: &phone})

	authErr, ok := common.IsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, common.KindFieldValidation, authErr.Kind)
	assert.Equal(t, "phone", authErr.Field)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.backend.addAccount("jane@example.com", "orig-password-1", "Jane", "Doe", "")

	resp, err := env.manager.ForgotPassword(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.True(t, resp.Success)

	// A bogus token is rejected as InvalidToken.
	_, err = env.manager.ResetPassword(ctx, "reset-bogus", "new-password-2", "new-password-2")
	assert.True(t, common.IsKind(err, common.KindInvalidToken))

	// The emailed token completes the reset.
	_, err = env.manager.ResetPassword(ctx, env.backend.lastResetToken, "new-password-2", "new-password-2")
	require.NoError(t, err)

	err = env.manager.Login(ctx, "jane@example.com", "orig-password-1")
	assert.True(t, common.IsKind(err, common.KindInvalidCredentials), "The old password must stop working")
	require.NoError(t, env.manager.Login(ctx, "jane@example.com", "new-password-2"))
}

func TestRefreshRotationAndRevocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.backend.addAccount("jane@example.com", "orig-password-1", "Jane", "Doe", "")
	require.NoError(t, env.manager.Login(ctx, "jane@example.com", "orig-password-1"))
	before := env.manager.CurrentSession().AccessToken

	require.NoError(t, env.manager.Refresh(ctx))
	after := env.manager.CurrentSession().AccessToken
	assert.NotEqual(t, before, after)

	env.backend.revokeRefreshTokens()
	err := env.manager.Refresh(ctx)
	assert.True(t, common.IsKind(err, common.KindInvalidSession))
	assert.False(t, env.manager.IsAuthenticated(), "A rejected refresh forces local logout")
}

func TestServiceCatalogPagination(t *testing.T) {
	env := newTestEnv(t)
	env.backend.categoryPageSize = 2
	env.backend.categories = []api.ServiceCategory{
		{ID: 1, Code: "cleaning", Name: "Cleaning", Level: 0, HierarchyOrder: "001", IsActive: true},
		{ID: 2, Code: "repair", Name: "Repair", Level: 0, HierarchyOrder: "002", IsActive: true},
		{ID: 3, Code: "plumbing", Name: "Plumbing", Level: 0, HierarchyOrder: "003", IsActive: true},
	}

	var codes []string
	pageURL := ""
	for {
		page, err := env.client.ListServiceCategories(context.Background(), pageURL)
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Count)
		for _, cat := range page.Results {
			codes = append(codes, cat.Code)
		}
		if page.Next == nil {
			break
		}
		pageURL = *page.Next
	}

	assert.Equal(t, []string{"cleaning", "repair", "plumbing"}, codes)
}

func TestDebouncedUniquenessChecksAgainstBackend(t *testing.T) {
	env := newTestEnv(t)
	env.backend.addAccount("taken@example.com", "orig-password-1", "Tam", "Vo", "+14155550999")

	engine := validation.NewEngine(env.cfg, env.client, zap.NewNop())
	defer engine.Close()

	type published struct {
		field  validation.FieldKey
		result validation.Result
	}
	results := make(chan published, 4)
	engine.Subscribe(func(f validation.FieldKey, r validation.Result) {
		results <- published{f, r}
	})

	collect := func() published {
		select {
		case p := <-results:
			return p
		case <-time.After(2 * time.Second):
			t.Fatal("no validation result published")
			return published{}
		}
	}

	engine.SetValue(validation.FieldEmail, "taken@example.com")
	got := collect()
	assert.Equal(t, validation.FieldEmail, got.field)
	assert.True(t, got.result.Exists)

	engine.SetValue(validation.FieldEmail, "free@example.com")
	got = collect()
	assert.False(t, got.result.Exists)

	engine.SetValue(validation.FieldPhone, "+14155550999")
	got = collect()
	assert.Equal(t, validation.FieldPhone, got.field)
	assert.True(t, got.result.Exists)
}
