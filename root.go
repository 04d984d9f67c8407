package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/go-authgate/drive-image-uploader/plugin"
	"github.com/go-authgate/drive-image-uploader/settings"
	"github.com/go-authgate/drive-image-uploader/transport"
	"github.com/go-authgate/drive-image-uploader/tui"
)

const defaultSettingsFile = ".drive-uploader.json"

var (
	rootLong = templates.LongDesc(`
		Upload pasted and dropped images to Google Drive and embed them in
		markdown notes.

		Sign in once with the device flow (connect); the refresh token is kept
		in the settings file and used silently afterwards. When Drive is not
		reachable images fall back to an API-key link or a local copy under the
		vault directory.`)

	rootExamples = templates.Examples(`
		# Sign in to Google Drive
		drive-uploader connect --client-id 1234.apps.googleusercontent.com

		# Drop two screenshots into line 3 of a note
		drive-uploader upload a.png b.png --doc notes/today.md --line 3`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// RootOptions carries the global flags shared by every command.
type RootOptions struct {
	SettingsFile  string
	VaultDir      string
	ClientID      string
	ClientSecret  string
	APIKey        string
	FolderID      string
	AuthServerURL string
	Verbose       bool
	Plain         bool

	iooption.IOStreams

	// logOut replaces ErrOut as the log destination while the TUI owns the
	// terminal.
	logOut io.Writer
}

// NewRootOptions provides an initialised RootOptions instance.
func NewRootOptions(streams iooption.IOStreams) *RootOptions {
	return &RootOptions{IOStreams: streams}
}

// NewRootCommand creates the root command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewRootOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the root command and its nested children.
func NewRootCommandWithArgs(o *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "drive-uploader [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Google Drive image uploader for markdown notes",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}

	printerOpts := printer.WarningPrinterOptions{Color: true}
	warnings := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(warnings))

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&o.SettingsFile, "settings-file", "", "Settings file (default: "+defaultSettingsFile+" or SETTINGS_FILE env)")
	pflags.StringVar(&o.VaultDir, "vault-dir", "", "Vault directory for local fallback copies (default: . or VAULT_DIR env)")
	pflags.StringVar(&o.ClientID, "client-id", "", "Google OAuth client ID (or DRIVE_CLIENT_ID env)")
	pflags.StringVar(&o.ClientSecret, "client-secret", "", "Google OAuth client secret (or DRIVE_CLIENT_SECRET env)")
	pflags.StringVar(&o.APIKey, "api-key", "", "Google API key for alt=media links (or DRIVE_API_KEY env)")
	pflags.StringVar(&o.FolderID, "folder-id", "", "Target Drive folder ID (or DRIVE_FOLDER_ID env)")
	pflags.StringVar(&o.AuthServerURL, "auth-server-url", "", "Override the Google OAuth endpoints (or AUTH_SERVER_URL env)")
	pflags.BoolVarP(&o.Verbose, "verbose", "v", false, "Enable debug logging")
	pflags.BoolVar(&o.Plain, "plain", false, "Disable the interactive terminal UI")

	cmd.AddCommand(NewConnectCommand(o))
	cmd.AddCommand(NewStatusCommand(o))
	cmd.AddCommand(NewSignOutCommand(o))
	cmd.AddCommand(NewUploadCommand(NewUploadOptions(o)))
	cmd.AddCommand(NewSchemaCommand(o))
	cmd.AddCommand(NewConfigCommand(o))

	// The global normalisation function ensures that all flags specified meet
	// the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (o *RootOptions) settingsPath() string {
	return getConfig(o.SettingsFile, "SETTINGS_FILE", defaultSettingsFile)
}

func (o *RootOptions) vaultDir() string {
	return getConfig(o.VaultDir, "VAULT_DIR", ".")
}

func (o *RootOptions) authServerURL() (string, error) {
	raw := getConfig(o.AuthServerURL, "AUTH_SERVER_URL", "")
	if raw == "" {
		return "", nil
	}
	if err := validateServerURL(raw); err != nil {
		return "", fmt.Errorf("invalid AUTH_SERVER_URL: %w", err)
	}
	return raw, nil
}

// validateServerURL validates that the server URL is properly formatted.
func validateServerURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

// loadSettings opens the settings file and layers flag and environment values
// over it. The settings file supplies the default for each key.
func (o *RootOptions) loadSettings(ctx context.Context) (*settings.Manager, error) {
	path := o.settingsPath()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	mgr, err := settings.NewManager(ctx, settings.NewFileStore(path))
	if err != nil {
		return nil, err
	}

	mgr.SetOverlay(func(s *settings.Settings) {
		s.GoogleClientID = getConfig(o.ClientID, "DRIVE_CLIENT_ID", s.GoogleClientID)
		s.GoogleClientSecret = getConfig(o.ClientSecret, "DRIVE_CLIENT_SECRET", s.GoogleClientSecret)
		s.GoogleAPIKey = getConfig(o.APIKey, "DRIVE_API_KEY", s.GoogleAPIKey)
		s.DriveFolderID = getConfig(o.FolderID, "DRIVE_FOLDER_ID", s.DriveFolderID)
	})
	return mgr, nil
}

func (o *RootOptions) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	w := o.logOut
	if w == nil {
		w = o.ErrOut
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// holdLogs buffers log output until flush is called. Loggers created in
// between write to the buffer.
func (o *RootOptions) holdLogs() (flush func()) {
	var logs bytes.Buffer
	o.logOut = &logs
	return func() {
		o.logOut = nil
		_, _ = io.Copy(o.ErrOut, &logs)
	}
}

// newPlugin builds the plugin against a CLI host rendering through d.
func (o *RootOptions) newPlugin(ctx context.Context, d tui.Displayer) (*plugin.Plugin, *cliHost, error) {
	serverURL, err := o.authServerURL()
	if err != nil {
		return nil, nil, err
	}
	if strings.HasPrefix(strings.ToLower(serverURL), "http://") {
		d.Notice("WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!")
	}

	mgr, err := o.loadSettings(ctx)
	if err != nil {
		return nil, nil, err
	}

	hc, err := transport.New()
	if err != nil {
		return nil, nil, err
	}

	host := newCLIHost(d)
	p, err := plugin.New(plugin.Options{
		Host:          host,
		Settings:      mgr,
		HTTP:          hc,
		SignInUI:      d,
		VaultDir:      o.vaultDir(),
		AuthServerURL: serverURL,
		Logger:        o.logger(),
	})
	if err != nil {
		return nil, nil, err
	}
	return p, host, nil
}

// isTTY reports whether w is a character device (interactive terminal).
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// withDisplayer runs fn with the BubbleTea UI on stderr when it is a
// terminal and plain output otherwise. Quitting the UI cancels ctx.
func (o *RootOptions) withDisplayer(ctx context.Context, fn func(context.Context, tui.Displayer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.Plain || !isTTY(o.ErrOut) {
		d := tui.NewPlainDisplayer(o.ErrOut)
		err := fn(ctx, d)
		if err != nil {
			d.Fatal(err)
		}
		return err
	}

	// Logs would tear through the TUI frame; print them once it is gone.
	flushLogs := o.holdLogs()
	defer flushLogs()

	// Run TUI program on stderr so stdout pipes are not corrupted
	p := tea.NewProgram(tui.NewModel(cancel), tea.WithOutput(o.ErrOut), tea.WithInput(o.In))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(o.ErrOut, "TUI error: %v\n", err)
		}
	}()

	d := tui.NewProgramDisplayer(p)
	runErr := fn(ctx, d)
	if runErr != nil {
		d.Fatal(runErr)
	}
	d.Done()
	wg.Wait()
	return runErr
}
