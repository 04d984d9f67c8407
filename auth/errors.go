package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/go-authgate/drive-image-uploader/transport"
)

var (
	// ErrConfig indicates missing credential configuration. The user must fix
	// settings before retrying.
	ErrConfig = errors.New("missing required configuration")

	// ErrNotAuthenticated indicates that no refresh token is on file.
	ErrNotAuthenticated = errors.New("not logged in, run: connect")

	// ErrAuthTimeout indicates the device flow was not approved before the
	// device code expired.
	ErrAuthTimeout = errors.New("device authorization timed out")

	// ErrRefreshTokenExpired matches an *AuthError whose code says the refresh
	// token is no longer accepted.
	ErrRefreshTokenExpired = errors.New("refresh token expired or invalid")
)

// ErrorResponse is the OAuth error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// AuthError reports a request the authorization server rejected. Err is the
// underlying *oauth2.RetrieveError.
type AuthError struct {
	Code        string
	Description string
	Err         error
}

func (e *AuthError) Error() string {
	switch e.Code {
	case "expired_token":
		return "device code expired, please restart the flow"
	case "access_denied":
		return "user denied authorization"
	case "":
		return fmt.Sprintf("authorization server rejected request: %v", e.Err)
	}
	if e.Description == "" {
		return "authorization failed: " + e.Code
	}
	return fmt.Sprintf("authorization failed: %s - %s", e.Code, e.Description)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRefreshTokenExpired) match rejected refresh grants.
func (e *AuthError) Is(target error) bool {
	if target != ErrRefreshTokenExpired {
		return false
	}
	return e.Code == "invalid_grant" || e.Code == "invalid_token"
}

func configError(field string) error {
	return fmt.Errorf("%w: %s not set", ErrConfig, field)
}

// authErrorFromResponse converts a non-2xx token endpoint response.
func authErrorFromResponse(resp *transport.Response) *AuthError {
	var errResp ErrorResponse
	_ = json.Unmarshal(resp.Body, &errResp)

	return &AuthError{
		Code:        errResp.Error,
		Description: errResp.ErrorDescription,
		Err: &oauth2.RetrieveError{
			Response: &http.Response{
				StatusCode: resp.StatusCode,
				Status:     fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
				Header:     resp.Header,
			},
			Body:             resp.Body,
			ErrorCode:        errResp.Error,
			ErrorDescription: errResp.ErrorDescription,
		},
	}
}
