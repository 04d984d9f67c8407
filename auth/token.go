package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/go-authgate/drive-image-uploader/transport"
)

// Timeout configuration for authorization server calls
const (
	deviceCodeRequestTimeout = 10 * time.Second
	tokenExchangeTimeout     = 5 * time.Second
	refreshTokenTimeout      = 10 * time.Second
)

// tokenResponse is the successful token endpoint body for both grants.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// validateTokenResponse validates the OAuth token response
func validateTokenResponse(accessToken, tokenType string, expiresIn int) error {
	if accessToken == "" {
		return errors.New("access_token is empty")
	}

	if len(accessToken) < 10 {
		return fmt.Errorf("access_token is too short (length: %d)", len(accessToken))
	}

	if expiresIn <= 0 {
		return fmt.Errorf("expires_in must be positive, got: %d", expiresIn)
	}

	// Token type is optional in OAuth 2.0, but if present, should be "Bearer"
	if tokenType != "" && tokenType != "Bearer" {
		return fmt.Errorf("unexpected token_type: %s (expected Bearer)", tokenType)
	}

	return nil
}

// requestToken posts a grant to the token endpoint. A non-2xx answer becomes
// an *AuthError so callers can inspect the OAuth error code.
func requestToken(
	ctx context.Context,
	hc *transport.Client,
	cfg *oauth2.Config,
	clk Clock,
	data url.Values,
	timeout time.Duration,
) (*oauth2.Token, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data.Set("client_id", cfg.ClientID)
	if cfg.ClientSecret != "" {
		data.Set("client_secret", cfg.ClientSecret)
	}

	resp, err := hc.PostForm(reqCtx, cfg.Endpoint.TokenURL, data)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		return nil, authErrorFromResponse(resp)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(resp.Body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if err := validateTokenResponse(
		tokenResp.AccessToken,
		tokenResp.TokenType,
		tokenResp.ExpiresIn,
	); err != nil {
		return nil, fmt.Errorf("invalid token response: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		Expiry:       clk.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}
