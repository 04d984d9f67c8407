package auth

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/go-authgate/drive-image-uploader/transport"
)

// Refresher hands out usable access tokens, refreshing silently when the
// cached one is expired or about to expire.
//
// Concurrent callers may each refresh once; the last write to the store wins
// and any of the returned tokens is valid.
type Refresher struct {
	// Clock defaults to SystemClock.
	Clock Clock

	http   *transport.Client
	config *oauth2.Config
	store  *TokenStore
}

func NewRefresher(hc *transport.Client, cfg *oauth2.Config, store *TokenStore) *Refresher {
	return &Refresher{http: hc, config: cfg, store: store}
}

// EnsureAccessToken returns a valid access token. No network call is made
// while the cached token is valid.
func (r *Refresher) EnsureAccessToken(ctx context.Context) (string, error) {
	if r.store.IsValid() {
		return r.store.Get().AccessToken, nil
	}

	current := r.store.Get()
	if current.RefreshToken == "" {
		return "", ErrNotAuthenticated
	}
	if r.config.ClientID == "" {
		return "", configError("client id")
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", current.RefreshToken)

	token, err := requestToken(ctx, r.http, r.config, clockOrSystem(r.Clock), data, refreshTokenTimeout)
	if err != nil {
		return "", fmt.Errorf("refresh failed: %w", err)
	}

	// Rotation mode: the server returns a new refresh_token. Fixed mode: it
	// does not, and the old one stays on file.
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = current.RefreshToken
	}

	next := Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    token.Expiry,
	}
	if err := r.store.Set(ctx, next); err != nil {
		return "", fmt.Errorf("failed to save refreshed tokens: %w", err)
	}

	return next.AccessToken, nil
}
