// File: internal/google/provider.go
package google

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"

	"servicebook_client/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// googleEndpoint is Google's OAuth2 endpoint. Declared here instead of
// importing the x/oauth2 google subpackage, which drags in cloud SDK
// dependencies this client has no use for.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// LoopbackProvider implements ConsentProvider by opening the system browser
// on Google's consent page and catching the redirect on a 127.0.0.1
// listener. The authorization code it returns is an opaque artifact; the
// backend performs the actual token exchange.
type LoopbackProvider struct {
	oauthCfg    *oauth2.Config
	logger      *zap.Logger
	openBrowser func(url string) error
}

var _ ConsentProvider = (*LoopbackProvider)(nil)

// NewLoopbackProvider creates the browser-based consent provider.
func NewLoopbackProvider(cfg *config.Config, logger *zap.Logger) *LoopbackProvider {
	return &LoopbackProvider{
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     googleEndpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		logger:      logger.Named("GoogleConsent"),
		openBrowser: openBrowser,
	}
}

// RequestCode runs one consent round trip. It blocks until the redirect
// arrives, the user denies consent, or ctx is cancelled; the latter two are
// reported as ErrConsentAbandoned.
func (p *LoopbackProvider) RequestCode(ctx context.Context) (string, error) {
	if p.oauthCfg.ClientID == "" {
		return "", fmt.Errorf("google client id is not configured")
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to open loopback listener: %w", err)
	}
	defer listener.Close()

	// Per-invocation CSRF state; redirects carrying anything else are ignored.
	state := uuid.NewString()

	oauthCfg := *p.oauthCfg
	oauthCfg.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr().String())
	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)

	codeCh := make(chan string, 1)
	deniedCh := make(chan struct{}, 1)

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("state") != state {
			p.logger.Warn("Redirect with mismatched state ignored")
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("error") != "" {
			fmt.Fprint(w, "Sign-in was cancelled. You can close this window.")
			select {
			case deniedCh <- struct{}{}:
			default:
			}
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "Signed in. You can close this window and return to the application.")
		select {
		case codeCh <- code:
		default:
		}
	})}
	go func() {
		_ = server.Serve(listener)
	}()
	defer server.Close()

	p.logger.Info("Opening browser for Google consent")
	if err := p.openBrowser(authURL); err != nil {
		return "", fmt.Errorf("failed to open browser: %w", err)
	}

	select {
	case code := <-codeCh:
		return code, nil
	case <-deniedCh:
		return "", ErrConsentAbandoned
	case <-ctx.Done():
		return "", ErrConsentAbandoned
	}
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
