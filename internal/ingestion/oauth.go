package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// TokenProvider is the key tokens are stored under
const TokenProvider = "google"

// ErrNotAuthorized is returned when Drive access has not been granted yet
var ErrNotAuthorized = errors.New("google drive is not authorized")

// TokenStore persists OAuth tokens between runs
type TokenStore interface {
	LoadToken(ctx context.Context, provider string) (*oauth2.Token, error)
	SaveToken(ctx context.Context, provider string, tok *oauth2.Token) error
}

// GoogleAuth manages the web consent flow and the persisted Drive token
type GoogleAuth struct {
	config *oauth2.Config
	tokens TokenStore
}

// NewGoogleAuth creates the OAuth helper for read-only Drive access
func NewGoogleAuth(clientID, clientSecret, redirectURL string, tokens TokenStore) *GoogleAuth {
	return &GoogleAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{drive.DriveReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		tokens: tokens,
	}
}

// AuthURL returns the consent page URL. Offline access with forced approval
// makes Google hand out a refresh token every time.
func (a *GoogleAuth) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it
func (a *GoogleAuth) Exchange(ctx context.Context, code string) error {
	if code == "" {
		return errors.New("authorization code is required")
	}
	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := a.tokens.SaveToken(ctx, TokenProvider, tok); err != nil {
		return err
	}
	slog.Info("Google Drive authorized", "has_refresh_token", tok.RefreshToken != "")
	return nil
}

// Client returns an HTTP client that refreshes the stored token and writes
// refreshed tokens back to the store
func (a *GoogleAuth) Client(ctx context.Context) (*http.Client, error) {
	tok, err := a.tokens.LoadToken(ctx, TokenProvider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	}

	src := &persistingTokenSource{
		base:   a.config.TokenSource(ctx, tok),
		tokens: a.tokens,
		last:   tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// persistingTokenSource saves every newly issued access token
type persistingTokenSource struct {
	base   oauth2.TokenSource
	tokens TokenStore

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh google token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.tokens.SaveToken(context.Background(), TokenProvider, tok); err != nil {
			slog.Warn("Failed to persist refreshed token", "error", err)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
