// File: internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"servicebook_client/internal/common"
	"servicebook_client/internal/config"

	"go.uber.org/zap"
)

// Client is the stateless request/response mapping to the booking backend.
// It owns no session state; tokens are passed in per call. Its core
// responsibility besides plumbing is normalizing every raw backend error
// into the common.AuthError taxonomy before it reaches the auth manager.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend API client from configuration.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logger.Named("APIClient"),
	}
}

// do executes one JSON exchange and hands back the status and raw body.
// Transport failures surface as NetworkError; everything past this point has
// an HTTP response to interpret.
func (c *Client) do(ctx context.Context, method, path, accessToken string, reqBody interface{}) (int, []byte, error) {
	var reader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Request transport failure", zap.String("path", path), zap.Error(err))
		return 0, nil, common.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, common.NewNetworkError(err)
	}
	return resp.StatusCode, body, nil
}

// decodeSuccess parses a 2xx body; a malformed success body is a ServerError.
func (c *Client) decodeSuccess(path string, body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("Malformed success body", zap.String("path", path), zap.Error(err))
		return common.NewServerError("malformed response from server")
	}
	return nil
}

// Login exchanges credentials for a session and user.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	reqBody := map[string]string{"email": email, "password": password}
	status, body, err := c.do(ctx, http.MethodPost, "/api/login/", "", reqBody)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
		var out AuthResponse
		if err := c.decodeSuccess("/api/login/", body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	case status >= http.StatusInternalServerError:
		return nil, common.NewServerError(genericStatusMessage(status))
	default:
		payload := parseErrorBody(body)
		msg := detailFrom(payload)
		if msg == "" {
			msg = "Invalid email or password."
		}
		c.logger.Info("Login rejected", zap.Int("status", status))
		return nil, common.NewAuthError(common.KindInvalidCredentials, msg)
	}
}

// Register creates a new account. Depending on backend policy the response
// may or may not carry a token pair; callers must check HasTokens.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/api/register/", "", req)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		var out AuthResponse
		if err := c.decodeSuccess("/api/register/", body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	case status >= http.StatusInternalServerError:
		return nil, common.NewServerError(genericStatusMessage(status))
	default:
		payload := parseErrorBody(body)
		if fieldErr := fieldErrorFrom(payload); fieldErr != nil {
			c.logger.Info("Registration rejected for field",
				zap.String("field", fieldErr.Field), zap.Int("status", status))
			return nil, fieldErr
		}
		msg := detailFrom(payload)
		if msg == "" {
			msg = nonFieldFrom(payload)
		}
		if msg == "" {
			msg = genericStatusMessage(status)
		}
		return nil, common.NewAuthError(common.KindValidation, msg)
	}
}

// ExchangeGoogleToken trades the provider's authorization artifact for a
// session, a user and the profile-completion signal.
func (c *Client) ExchangeGoogleToken(ctx context.Context, artifact string) (*AuthResponse, error) {
	reqBody := map[string]string{"token": artifact}
	status, body, err := c.do(ctx, http.MethodPost, "/api/google-auth/", "", reqBody)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
		var out AuthResponse
		if err := c.decodeSuccess("/api/google-auth/", body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	case status >= http.StatusInternalServerError:
		return nil, common.NewServerError(genericStatusMessage(status))
	default:
		payload := parseErrorBody(body)
		msg := detailFrom(payload)
		if msg == "" {
			msg = nonFieldFrom(payload)
		}
		if msg == "" {
			msg = genericStatusMessage(status)
		}
		return nil, common.NewAuthError(common.KindValidation, msg)
	}
}

// Refresh trades a refresh token for a fresh access token. Any rejection of
// the refresh token is InvalidSession; the caller must then force logout.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	reqBody := map[string]string{"refresh": refreshToken}
	status, body, err := c.do(ctx, http.MethodPost, "/api/token/refresh/", "", reqBody)
	if err != nil {
		return "", err
	}

	switch {
	case status == http.StatusOK:
		var out struct {
			Access string `json:"access"`
		}
		if err := c.decodeSuccess("/api/token/refresh/", body, &out); err != nil {
			return "", err
		}
		if out.Access == "" {
			return "", common.NewServerError("refresh response carried no access token")
		}
		return out.Access, nil
	case status >= http.StatusInternalServerError:
		return "", common.NewServerError(genericStatusMessage(status))
	default:
		return "", common.NewAuthError(common.KindInvalidSession, "refresh token rejected")
	}
}

// Logout revokes the refresh token server-side. Best-effort: callers clear
// local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	reqBody := map[string]string{"refresh": refreshToken}
	status, _, err := c.do(ctx, http.MethodPost, "/api/logout/", "", reqBody)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return common.NewServerError(genericStatusMessage(status))
	}
	return nil
}

// FetchProfile loads the current user with the given access token.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*User, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/profile/", accessToken, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
		var out User
		if err := c.decodeSuccess("/api/profile/", body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, common.NewAuthError(common.KindInvalidSession, "access token rejected")
	default:
		return nil, common.NewServerError(genericStatusMessage(status))
	}
}

// UpdateProfile patches the current user's profile. Phone-number uniqueness
// violations surface as a FieldValidationError on "phone".
func (c *Client) UpdateProfile(ctx context.Context, accessToken string, update ProfileUpdate) (*User, error) {
	status, body, err := c.do(ctx, http.MethodPatch, "/api/profile/", accessToken, update)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
		var out User
		if err := c.decodeSuccess("/api/profile/", body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, common.NewAuthError(common.KindInvalidSession, "access token rejected")
	case status >= http.StatusInternalServerError:
		return nil, common.NewServerError(genericStatusMessage(status))
	default:
		payload := parseErrorBody(body)
		if fieldErr := fieldErrorFrom(payload); fieldErr != nil {
			return nil, fieldErr
		}
		msg := detailFrom(payload)
		if msg == "" {
			msg = nonFieldFrom(payload)
		}
		if msg == "" {
			msg = genericStatusMessage(status)
		}
		return nil, common.NewAuthError(common.KindValidation, msg)
	}
}

// ForgotPassword requests a password-reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	reqBody := map[string]string{"email": email}
	status, body, err := c.do(ctx, http.MethodPost, "/api/forgot-password/", "", reqBody)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
		var out MessageResponse
		if err := c.decodeSuccess("/api/forgot-password/", body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	case status >= http.StatusInternalServerError:
		return nil, common.NewServerError(genericStatusMessage(status))
	default:
		payload := parseErrorBody(body)
		msg := messageFrom(payload)
		if msg == "" {
			msg = "Failed to send password reset email"
		}
		return nil, common.NewAuthError(common.KindValidation, msg)
	}
}

// ResetPassword sets a new password using a reset token from email.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (*MessageResponse, error) {
	reqBody := map[string]string{
		"token":            token,
		"new_password":     newPassword,
		"confirm_password": confirmPassword,
	}
	status, body, err := c.do(ctx, http.MethodPost, "/api/reset-password/", "", reqBody)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
		var out MessageResponse
		if err := c.decodeSuccess("/api/reset-password/", body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	case status >= http.StatusInternalServerError:
		return nil, common.NewServerError(genericStatusMessage(status))
	default:
		payload := parseErrorBody(body)
		msg := messageFrom(payload)
		if msg == "" {
			msg = "Failed to reset password"
		}
		return nil, common.NewAuthError(common.KindInvalidToken, msg)
	}
}

// ListServiceCategories fetches one page of the public service catalog. No
// authentication; the endpoint serves the site's category browser.
func (c *Client) ListServiceCategories(ctx context.Context, pageURL string) (*ServiceCategoryPage, error) {
	path := "/api/public/service-categories/"
	if pageURL != "" {
		// Follow-up pages come back as absolute URLs in Next/Previous.
		parsed, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("bad catalog page url: %w", err)
		}
		path = parsed.Path
		if parsed.RawQuery != "" {
			path += "?" + parsed.RawQuery
		}
	}

	status, body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, common.NewServerError(genericStatusMessage(status))
	}
	var out ServiceCategoryPage
	if err := c.decodeSuccess(path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckEmail asks the backend whether an email is already taken.
func (c *Client) CheckEmail(ctx context.Context, email string) (*ValidationResult, error) {
	return c.check(ctx, "/api/check-email/", "email", email)
}

// CheckPhone asks the backend whether a phone number is already taken.
func (c *Client) CheckPhone(ctx context.Context, phone string) (*ValidationResult, error) {
	return c.check(ctx, "/api/check-phone/", "phone", phone)
}

func (c *Client) check(ctx context.Context, path, param, value string) (*ValidationResult, error) {
	q := url.Values{}
	q.Set(param, value)
	status, body, err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, common.NewServerError(genericStatusMessage(status))
	}
	var out ValidationResult
	if err := c.decodeSuccess(path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
