// File: internal/auth/interfaces.go
package auth

import (
	"context"

	"servicebook_client/internal/api"
)

// Backend is the slice of the exchange client the manager depends on.
// *api.Client satisfies it; tests substitute a scripted fake.
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
	ExchangeGoogleToken(ctx context.Context, artifact string) (*api.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	FetchProfile(ctx context.Context, accessToken string) (*api.User, error)
	UpdateProfile(ctx context.Context, accessToken string, update api.ProfileUpdate) (*api.User, error)
	ForgotPassword(ctx context.Context, email string) (*api.MessageResponse, error)
	ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (*api.MessageResponse, error)
}

var _ Backend = (*api.Client)(nil)

// Federation drives the identity provider's consent flow. *google.Flow
// satisfies it. The returned channel closes on the invocation's terminal
// event; abandonment closes it without the callback having fired.
type Federation interface {
	Initiate(ctx context.Context, onArtifact func(artifact string)) <-chan struct{}
}
