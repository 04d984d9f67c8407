package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/go-authgate/drive-image-uploader/transport"
)

const (
	defaultPollInterval  = 5 * time.Second // RFC 8628 default
	minPollInterval      = time.Second
	slowDownBackoff      = 2 * time.Second
	defaultDeviceCodeTTL = 30 * time.Minute
)

// Sign-in UI status texts.
const (
	StatusWaiting     = "waiting"
	StatusRateLimited = "waiting (rate-limited)"
	StatusConnected   = "connected"
	StatusFailed      = "failed"
	StatusTimedOut    = "timed out"
)

// PollState is a non-terminal polling outcome.
type PollState int

const (
	PollPending  PollState = iota // authorization_pending
	PollSlowDown                  // slow_down
)

func (s PollState) String() string {
	if s == PollSlowDown {
		return StatusRateLimited
	}
	return StatusWaiting
}

// SignInUI presents the user code out-of-band and shows polling progress.
type SignInUI interface {
	Show(userCode, verificationURL string)
	SetStatus(status string)
}

// DeviceClient drives the OAuth device authorization grant.
type DeviceClient struct {
	// Clock defaults to SystemClock.
	Clock Clock

	http   *transport.Client
	config *oauth2.Config
}

// NewDeviceClient creates a DeviceClient for cfg. cfg.Endpoint must carry
// both DeviceAuthURL and TokenURL.
func NewDeviceClient(hc *transport.Client, cfg *oauth2.Config) *DeviceClient {
	return &DeviceClient{http: hc, config: cfg}
}

// Begin requests a device code and user code.
func (c *DeviceClient) Begin(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	if c.config.ClientID == "" {
		return nil, configError("client id")
	}

	reqCtx, cancel := context.WithTimeout(ctx, deviceCodeRequestTimeout)
	defer cancel()

	data := url.Values{}
	data.Set("client_id", c.config.ClientID)
	data.Set("scope", strings.Join(c.config.Scopes, " "))

	resp, err := c.http.PostForm(reqCtx, c.config.Endpoint.DeviceAuthURL, data)
	if err != nil {
		return nil, fmt.Errorf("device code request failed: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("device code request failed: %w", authErrorFromResponse(resp))
	}

	// Google answers with verification_url, RFC 8628 servers with
	// verification_uri.
	var deviceResp struct {
		DeviceCode              string `json:"device_code"`
		UserCode                string `json:"user_code"`
		VerificationURL         string `json:"verification_url"`
		VerificationURI         string `json:"verification_uri"`
		VerificationURIComplete string `json:"verification_uri_complete"`
		ExpiresIn               int    `json:"expires_in"`
		Interval                int    `json:"interval"`
	}
	if err := json.Unmarshal(resp.Body, &deviceResp); err != nil {
		return nil, fmt.Errorf("failed to parse device code response: %w", err)
	}
	if deviceResp.DeviceCode == "" || deviceResp.UserCode == "" {
		return nil, errors.New("device code response missing device_code or user_code")
	}

	verification := deviceResp.VerificationURL
	if verification == "" {
		verification = deviceResp.VerificationURI
	}

	ttl := time.Duration(deviceResp.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultDeviceCodeTTL
	}

	return &oauth2.DeviceAuthResponse{
		DeviceCode:              deviceResp.DeviceCode,
		UserCode:                deviceResp.UserCode,
		VerificationURI:         verification,
		VerificationURIComplete: deviceResp.VerificationURIComplete,
		Expiry:                  clockOrSystem(c.Clock).Now().Add(ttl),
		Interval:                int64(deviceResp.Interval),
	}, nil
}

// Poll waits for the user to approve the device code. onStatus, if non-nil,
// is called after every non-terminal answer. Any error other than
// authorization_pending and slow_down ends polling.
func (c *DeviceClient) Poll(
	ctx context.Context,
	deviceAuth *oauth2.DeviceAuthResponse,
	onStatus func(PollState),
) (Credential, error) {
	clk := clockOrSystem(c.Clock)

	interval := time.Duration(deviceAuth.Interval) * time.Second
	if interval == 0 {
		interval = defaultPollInterval
	}
	interval = max(interval, minPollInterval)

	notify := func(s PollState) {
		if onStatus != nil {
			onStatus(s)
		}
	}

	for {
		if !clk.Now().Before(deviceAuth.Expiry) {
			return Credential{}, ErrAuthTimeout
		}

		select {
		case <-ctx.Done():
			return Credential{}, fmt.Errorf("device authorization cancelled: %w", ctx.Err())
		case <-clk.After(interval):
		}

		if err := ctx.Err(); err != nil {
			return Credential{}, fmt.Errorf("device authorization cancelled: %w", err)
		}
		if !clk.Now().Before(deviceAuth.Expiry) {
			return Credential{}, ErrAuthTimeout
		}

		token, err := c.exchangeDeviceCode(ctx, deviceAuth.DeviceCode)
		if err == nil {
			return Credential{
				AccessToken:  token.AccessToken,
				RefreshToken: token.RefreshToken,
				ExpiresAt:    token.Expiry,
			}, nil
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			switch authErr.Code {
			case "authorization_pending":
				notify(PollPending)
				continue
			case "slow_down":
				interval += slowDownBackoff
				notify(PollSlowDown)
				continue
			}
			return Credential{}, err
		}
		return Credential{}, fmt.Errorf("token exchange failed: %w", err)
	}
}

// exchangeDeviceCode exchanges device code for access token
func (c *DeviceClient) exchangeDeviceCode(ctx context.Context, deviceCode string) (*oauth2.Token, error) {
	data := url.Values{}
	data.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")
	data.Set("device_code", deviceCode)

	return requestToken(ctx, c.http, c.config, clockOrSystem(c.Clock), data, tokenExchangeTimeout)
}

// Connect runs the whole device flow: request a code, show it on ui, poll,
// then store the resulting credential.
func (c *DeviceClient) Connect(ctx context.Context, ui SignInUI, store *TokenStore) (Credential, error) {
	deviceAuth, err := c.Begin(ctx)
	if err != nil {
		return Credential{}, err
	}

	ui.Show(deviceAuth.UserCode, deviceAuth.VerificationURI)
	ui.SetStatus(StatusWaiting)

	cred, err := c.Poll(ctx, deviceAuth, func(s PollState) {
		ui.SetStatus(s.String())
	})
	if err != nil {
		if errors.Is(err, ErrAuthTimeout) {
			ui.SetStatus(StatusTimedOut)
		} else {
			ui.SetStatus(StatusFailed)
		}
		return Credential{}, err
	}

	if err := store.Set(ctx, cred); err != nil {
		ui.SetStatus(StatusFailed)
		return Credential{}, fmt.Errorf("failed to save tokens: %w", err)
	}

	ui.SetStatus(StatusConnected)
	return cred, nil
}
