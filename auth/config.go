package auth

import (
	"strings"

	"golang.org/x/oauth2"
)

// Google endpoints and the Drive scope used when no override is configured.
const (
	GoogleDeviceAuthURL = "https://oauth2.googleapis.com/device/code"
	GoogleTokenURL      = "https://oauth2.googleapis.com/token"
	DriveFileScope      = "https://www.googleapis.com/auth/drive.file"
)

// GoogleConfig returns the OAuth client configuration for Drive uploads.
// serverURL, when non-empty, replaces the Google endpoints with
// serverURL+"/device/code" and serverURL+"/token".
func GoogleConfig(clientID, clientSecret, serverURL string) *oauth2.Config {
	endpoint := oauth2.Endpoint{
		DeviceAuthURL: GoogleDeviceAuthURL,
		TokenURL:      GoogleTokenURL,
	}
	if serverURL != "" {
		base := strings.TrimRight(serverURL, "/")
		endpoint.DeviceAuthURL = base + "/device/code"
		endpoint.TokenURL = base + "/token"
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{DriveFileScope},
	}
}
