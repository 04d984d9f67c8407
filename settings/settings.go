// Package settings holds the uploader configuration, its declarative schema
// and its on-disk persistence.
package settings

import (
	"time"

	"github.com/go-authgate/drive-image-uploader/auth"
)

// DefaultLocalFolder is used when the local folder setting is blank.
const DefaultLocalFolder = "DriveUploads"

// Settings is persisted as a single JSON object, token fields included.
// TokenExpiresAt is epoch milliseconds.
type Settings struct {
	GoogleClientID     string `json:"googleClientId"`
	GoogleClientSecret string `json:"googleClientSecret"`
	GoogleAPIKey       string `json:"googleApiKey"`
	DriveFolderID      string `json:"driveFolderId"`
	MakePublic         bool   `json:"makePublic"`
	UseOriginalName    bool   `json:"useOriginalName"`
	FilenamePrefix     string `json:"filenamePrefix"`
	FallbackToLocal    bool   `json:"fallbackToLocal"`
	LocalFolder        string `json:"localFolder"`

	AccessToken    string `json:"accessToken,omitempty"`
	RefreshToken   string `json:"refreshToken,omitempty"`
	TokenExpiresAt int64  `json:"tokenExpiresAt,omitempty"`
}

// Defaults returns the values used for keys missing from the saved file.
func Defaults() Settings {
	return Settings{
		MakePublic:      true,
		UseOriginalName: false,
		FilenamePrefix:  "img_",
		FallbackToLocal: true,
		LocalFolder:     DefaultLocalFolder,
	}
}

// HasSession reports whether a silent refresh can be attempted.
func (s Settings) HasSession() bool {
	return s.RefreshToken != "" && s.GoogleClientID != ""
}

// Credential extracts the token fields.
func (s Settings) Credential() auth.Credential {
	c := auth.Credential{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
	if s.TokenExpiresAt > 0 {
		c.ExpiresAt = time.UnixMilli(s.TokenExpiresAt)
	}
	return c
}

// SetCredential overwrites the token fields. A zero credential clears them.
func (s *Settings) SetCredential(c auth.Credential) {
	s.AccessToken = c.AccessToken
	s.RefreshToken = c.RefreshToken
	s.TokenExpiresAt = 0
	if !c.ExpiresAt.IsZero() {
		s.TokenExpiresAt = c.ExpiresAt.UnixMilli()
	}
}

// LocalFolderOrDefault returns the local fallback folder, never blank.
func (s Settings) LocalFolderOrDefault() string {
	if s.LocalFolder == "" {
		return DefaultLocalFolder
	}
	return s.LocalFolder
}
