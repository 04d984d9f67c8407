package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomasbasham/cli-runtime/iooption"

	"github.com/go-authgate/drive-image-uploader/settings"
	"github.com/go-authgate/drive-image-uploader/tui"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// clearEnv makes sure ambient configuration does not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SETTINGS_FILE", "VAULT_DIR", "AUTH_SERVER_URL",
		"DRIVE_CLIENT_ID", "DRIVE_CLIENT_SECRET", "DRIVE_API_KEY", "DRIVE_FOLDER_ID",
	} {
		t.Setenv(key, "")
	}
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	o := NewRootOptions(iooption.IOStreams{
		In:     strings.NewReader(""),
		Out:    &out,
		ErrOut: &errOut,
	})
	cmd := NewRootCommandWithArgs(o)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestGetConfig(t *testing.T) {
	t.Setenv("TEST_UPLOADER_KEY", "from-env")

	if got := getConfig("from-flag", "TEST_UPLOADER_KEY", "default"); got != "from-flag" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := getConfig("", "TEST_UPLOADER_KEY", "default"); got != "from-env" {
		t.Errorf("env should win over default, got %q", got)
	}
	if got := getConfig("", "TEST_UPLOADER_MISSING", "default"); got != "default" {
		t.Errorf("expected default, got %q", got)
	}
}

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://oauth2.example.com", false},
		{"http with port", "http://localhost:8080", false},
		{"missing scheme", "oauth2.example.com", true},
		{"ftp scheme", "ftp://example.com", true},
		{"missing host", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateServerURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateServerURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestLoadSettings_OverlayNotPersisted(t *testing.T) {
	clearEnv(t)
	t.Setenv("DRIVE_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "conf", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"googleClientId":"file-id","driveFolderId":"folder-1"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	o := NewRootOptions(iooption.IOStreams{})
	o.SettingsFile = path
	o.ClientID = "flag-id"

	mgr, err := o.loadSettings(context.Background())
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}

	got := mgr.Get()
	if got.GoogleClientID != "flag-id" {
		t.Errorf("client id = %q, want flag-id", got.GoogleClientID)
	}
	if got.GoogleAPIKey != "env-key" {
		t.Errorf("api key = %q, want env-key", got.GoogleAPIKey)
	}
	if got.DriveFolderID != "folder-1" {
		t.Errorf("folder id = %q, want the saved value", got.DriveFolderID)
	}

	if err := mgr.Update(context.Background(), func(s *settings.Settings) error {
		s.FilenamePrefix = "shot_"
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var saved settings.Settings
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatal(err)
	}
	if saved.GoogleClientID != "file-id" || saved.GoogleAPIKey != "" {
		t.Errorf("overlay leaked into the settings file: %s", data)
	}
	if saved.FilenamePrefix != "shot_" {
		t.Errorf("update not saved: %s", data)
	}
}

func TestUploadCommand_FallsBackToLocal(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	vault := filepath.Join(dir, "vault")
	img := filepath.Join(dir, "shot.png")
	doc := filepath.Join(dir, "note.md")
	if err := os.WriteFile(img, pngHeader, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(doc, []byte("# Note\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := runCommand(t,
		"upload", img,
		"--doc", doc,
		"--plain",
		"--settings-file", filepath.Join(dir, "settings.json"),
		"--vault-dir", vault,
	)
	if err != nil {
		t.Fatalf("upload failed: %v\nstderr: %s", err, stderr)
	}

	data, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "# Note\n![](DriveUploads/img_") {
		t.Fatalf("unexpected document:\n%s", text)
	}
	if strings.Contains(text, "Uploading") {
		t.Errorf("placeholder left in document:\n%s", text)
	}

	ref := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(text, "# Note\n"), "!["+"]("), ")")
	saved, err := os.ReadFile(filepath.Join(vault, filepath.FromSlash(ref)))
	if err != nil {
		t.Fatalf("local copy missing: %v", err)
	}
	if !bytes.Equal(saved, pngHeader) {
		t.Error("local copy differs from the source image")
	}
}

func TestUploadCommand_StdoutAtLine(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	img := filepath.Join(dir, "a.png")
	doc := filepath.Join(dir, "note.md")
	if err := os.WriteFile(img, pngHeader, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(doc, []byte("one\ntwo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	settingsFile := filepath.Join(dir, "settings.json")
	if _, _, err := runCommand(t, "config", "set", "useOriginalName", "true", "--settings-file", settingsFile); err != nil {
		t.Fatal(err)
	}

	// Without --doc the buffer starts empty and is printed.
	stdout, stderr, err := runCommand(t,
		"upload", img,
		"--plain",
		"--settings-file", settingsFile,
		"--vault-dir", filepath.Join(dir, "vault"),
	)
	if err != nil {
		t.Fatalf("upload failed: %v\nstderr: %s", err, stderr)
	}
	if stdout != "![](DriveUploads/a.png)" {
		t.Errorf("stdout = %q", stdout)
	}

	if _, stderr, err := runCommand(t,
		"upload", img,
		"--doc", doc,
		"--line", "2",
		"--plain",
		"--settings-file", settingsFile,
		"--vault-dir", filepath.Join(dir, "vault"),
	); err != nil {
		t.Fatalf("upload failed: %v\nstderr: %s", err, stderr)
	}
	data, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	if want := "one\n![](DriveUploads/a-1.png)two\n"; string(data) != want {
		t.Errorf("document = %q, want %q", data, want)
	}
}

func TestUploadCommand_NoImages(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	txt := filepath.Join(dir, "readme.txt")
	doc := filepath.Join(dir, "note.md")
	if err := os.WriteFile(txt, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(doc, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, _, err := runCommand(t,
		"upload", txt,
		"--doc", doc,
		"--plain",
		"--settings-file", filepath.Join(dir, "settings.json"),
		"--vault-dir", dir,
	)
	if err == nil || !strings.Contains(err.Error(), "no image files") {
		t.Fatalf("expected no-image error, got %v", err)
	}

	data, _ := os.ReadFile(doc)
	if string(data) != "keep" {
		t.Errorf("document modified: %q", data)
	}
}

func TestUploadCommand_Validate(t *testing.T) {
	clearEnv(t)
	if _, _, err := runCommand(t, "upload"); err == nil {
		t.Error("expected error without files")
	}
	if _, _, err := runCommand(t, "upload", "a.png", "--line", "-1"); err == nil {
		t.Error("expected error for negative line")
	}
}

func TestReadBlobs_DetectsMimeType(t *testing.T) {
	dir := t.TempDir()
	noExt := filepath.Join(dir, "clipboard")
	jpg := filepath.Join(dir, "photo.JPG")
	if err := os.WriteFile(noExt, pngHeader, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jpg, []byte("not really a jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}

	blobs, err := readBlobs([]string{noExt, jpg})
	if err != nil {
		t.Fatalf("readBlobs: %v", err)
	}
	if blobs[0].MimeType != "image/png" {
		t.Errorf("sniffed type = %q, want image/png", blobs[0].MimeType)
	}
	if blobs[1].MimeType != "image/jpeg" {
		t.Errorf("extension type = %q, want image/jpeg", blobs[1].MimeType)
	}
	if blobs[1].Name != "photo.JPG" {
		t.Errorf("name = %q", blobs[1].Name)
	}

	if _, err := readBlobs([]string{filepath.Join(dir, "missing.png")}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSchemaCommand(t *testing.T) {
	clearEnv(t)
	stdout, _, err := runCommand(t, "schema")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}

	var fields []settings.Field
	if err := json.Unmarshal([]byte(stdout), &fields); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if len(fields) != len(settings.Schema()) {
		t.Fatalf("got %d fields, want %d", len(fields), len(settings.Schema()))
	}
	if fields[0].Key != "googleClientId" {
		t.Errorf("first field = %q", fields[0].Key)
	}
}

func TestConfigSetAndShow(t *testing.T) {
	clearEnv(t)
	settingsFile := filepath.Join(t.TempDir(), "settings.json")

	for _, kv := range [][2]string{
		{"googleApiKey", "AIzaSecret"},
		{"makePublic", "false"},
		{"localFolder", "  "},
	} {
		if _, _, err := runCommand(t, "config", "set", kv[0], kv[1], "--settings-file", settingsFile); err != nil {
			t.Fatalf("config set %s: %v", kv[0], err)
		}
	}

	if _, _, err := runCommand(t, "config", "set", "bogus", "1", "--settings-file", settingsFile); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, _, err := runCommand(t, "config", "set", "makePublic", "maybe", "--settings-file", settingsFile); err == nil {
		t.Error("expected error for invalid toggle")
	}

	// Flag overrides are not shown as saved values.
	stdout, _, err := runCommand(t, "config", "show", "--settings-file", settingsFile, "--client-id", "flag-id")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}

	var shown settings.Settings
	if err := json.Unmarshal([]byte(stdout), &shown); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if shown.GoogleAPIKey != redacted {
		t.Errorf("api key not redacted: %q", shown.GoogleAPIKey)
	}
	if shown.MakePublic {
		t.Error("makePublic should be false")
	}
	if shown.LocalFolder != settings.DefaultLocalFolder {
		t.Errorf("blank local folder should reset to default, got %q", shown.LocalFolder)
	}
	if shown.GoogleClientID != "" {
		t.Errorf("flag value shown as saved: %q", shown.GoogleClientID)
	}
}

func TestStatusCommand_NotConnected(t *testing.T) {
	clearEnv(t)
	_, stderr, err := runCommand(t, "status", "--plain", "--settings-file", filepath.Join(t.TempDir(), "settings.json"))
	if err == nil {
		t.Fatal("expected error without a session")
	}
	if !strings.Contains(stderr, "not connected") {
		t.Errorf("stderr should report the status, got:\n%s", stderr)
	}
}

func TestNewPlugin_InvalidServerURL(t *testing.T) {
	clearEnv(t)
	o := NewRootOptions(iooption.IOStreams{ErrOut: io.Discard})
	o.SettingsFile = filepath.Join(t.TempDir(), "settings.json")
	o.AuthServerURL = "ftp://oauth.example.com"

	if _, _, err := o.newPlugin(context.Background(), tui.NoopDisplayer{}); err == nil {
		t.Fatal("expected error for invalid auth server URL")
	}

	o.AuthServerURL = "http://127.0.0.1:9"
	p, host, err := o.newPlugin(context.Background(), tui.NoopDisplayer{})
	if err != nil {
		t.Fatalf("newPlugin: %v", err)
	}
	if p == nil || host == nil {
		t.Fatal("expected plugin and host")
	}
	if err := host.run(context.Background(), "unknown"); err == nil {
		t.Error("expected error for unregistered command")
	}
}

func TestHoldLogs_DefersOutputUntilFlush(t *testing.T) {
	var errOut bytes.Buffer
	o := NewRootOptions(iooption.IOStreams{ErrOut: &errOut})

	flush := o.holdLogs()
	o.logger().Warn("drive upload failed, trying fallbacks", "name", "a.png")
	if errOut.Len() != 0 {
		t.Fatalf("log written while held: %q", errOut.String())
	}

	flush()
	if !strings.Contains(errOut.String(), "drive upload failed") {
		t.Errorf("held log not flushed, got %q", errOut.String())
	}

	errOut.Reset()
	o.logger().Info("after flush")
	if !strings.Contains(errOut.String(), "after flush") {
		t.Errorf("logger should write to ErrOut after flush, got %q", errOut.String())
	}
}
