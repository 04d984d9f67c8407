package settings

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind selects the widget a host UI renders for a field.
type Kind string

const (
	KindText   Kind = "text"
	KindSecret Kind = "secret"
	KindToggle Kind = "toggle"
)

// Field describes one user-editable setting.
type Field struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
	Placeholder string `json:"placeholder,omitempty"`
}

var schema = []Field{
	{
		Key:         "googleClientId",
		Name:        "Google Client ID (OAuth)",
		Description: "Required. From Google Cloud → OAuth client (TVs and Limited Input).",
		Kind:        KindText,
		Placeholder: "xxxxxxxxxx-abc123.apps.googleusercontent.com",
	},
	{
		Key:         "googleClientSecret",
		Name:        "Google Client Secret (optional)",
		Description: "If your OAuth client shows a secret, paste it.",
		Kind:        KindSecret,
	},
	{
		Key:         "googleApiKey",
		Name:        "Google API Key (for alt=media fallback)",
		Description: "Create an API key in Google Cloud. Optional but recommended.",
		Kind:        KindSecret,
		Placeholder: "AIzaSy...",
	},
	{
		Key:         "driveFolderId",
		Name:        "Target Drive Folder ID (optional)",
		Description: "Upload images into this Drive folder.",
		Kind:        KindText,
		Placeholder: "1AbCDeFg...",
	},
	{
		Key:         "makePublic",
		Name:        "Make files public",
		Description: "Set permission: anyone with the link → reader.",
		Kind:        KindToggle,
	},
	{
		Key:         "useOriginalName",
		Name:        "Use original file name",
		Description: "Otherwise use prefix + timestamp.",
		Kind:        KindToggle,
	},
	{
		Key:         "filenamePrefix",
		Name:        "Filename prefix",
		Description: "Used when not using original name.",
		Kind:        KindText,
		Placeholder: "img_",
	},
	{
		Key:         "fallbackToLocal",
		Name:        "Fallback to local save",
		Description: "If cloud embed fails, save image inside the vault.",
		Kind:        KindToggle,
	},
	{
		Key:         "localFolder",
		Name:        "Local folder (under vault)",
		Description: "Used for local fallback.",
		Kind:        KindText,
		Placeholder: DefaultLocalFolder,
	},
}

// Schema lists the editable settings in display order.
func Schema() []Field {
	out := make([]Field, len(schema))
	copy(out, schema)
	return out
}

// Apply sets the field named key from its string form. Text values are
// trimmed, except the filename prefix which is kept verbatim.
func Apply(s *Settings, key, value string) error {
	switch key {
	case "googleClientId":
		s.GoogleClientID = strings.TrimSpace(value)
	case "googleClientSecret":
		s.GoogleClientSecret = strings.TrimSpace(value)
	case "googleApiKey":
		s.GoogleAPIKey = strings.TrimSpace(value)
	case "driveFolderId":
		s.DriveFolderID = strings.TrimSpace(value)
	case "filenamePrefix":
		s.FilenamePrefix = value
	case "localFolder":
		s.LocalFolder = strings.TrimSpace(value)
		if s.LocalFolder == "" {
			s.LocalFolder = DefaultLocalFolder
		}
	case "makePublic", "useOriginalName", "fallbackToLocal":
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: expected true or false, got %q", key, value)
		}
		switch key {
		case "makePublic":
			s.MakePublic = b
		case "useOriginalName":
			s.UseOriginalName = b
		default:
			s.FallbackToLocal = b
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
