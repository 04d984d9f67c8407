// Package plugin wires token handling, the upload pipeline and inline
// placeholders into an editor host.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/go-authgate/drive-image-uploader/auth"
	"github.com/go-authgate/drive-image-uploader/editor"
	"github.com/go-authgate/drive-image-uploader/gdrive"
	"github.com/go-authgate/drive-image-uploader/settings"
	"github.com/go-authgate/drive-image-uploader/status"
	"github.com/go-authgate/drive-image-uploader/transport"
	"github.com/go-authgate/drive-image-uploader/upload"
)

// Options configures a Plugin. Host, Settings and HTTP are required.
type Options struct {
	Host     Host
	Settings *settings.Manager
	HTTP     *transport.Client
	SignInUI auth.SignInUI

	// VaultDir roots the local fallback folder.
	VaultDir string
	// AuthServerURL replaces the Google OAuth endpoints when set.
	AuthServerURL string
	// Drive defaults to a gdrive.Client over HTTP.
	Drive upload.Drive
	// Clock defaults to auth.SystemClock.
	Clock  auth.Clock
	Logger *slog.Logger
}

// Plugin is the uploader loaded into a Host.
type Plugin struct {
	opts     Options
	host     Host
	settings *settings.Manager
	store    *auth.TokenStore
	pipeline *upload.Pipeline
	coord    *editor.Coordinator
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// ErrStopped is returned for editor events that arrive after Stop.
var ErrStopped = errors.New("plugin stopped")

func New(opts Options) (*Plugin, error) {
	if opts.Host == nil || opts.Settings == nil || opts.HTTP == nil {
		return nil, errors.New("plugin: host, settings and http client are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Drive == nil {
		opts.Drive = gdrive.NewClient(opts.HTTP)
	}

	p := &Plugin{
		opts:     opts,
		host:     opts.Host,
		settings: opts.Settings,
		logger:   opts.Logger,
	}
	p.store = auth.NewTokenStore(opts.Settings.Get().Credential(), opts.Settings)
	p.store.Clock = opts.Clock

	p.pipeline = upload.NewPipeline(
		opts.Settings,
		p,
		opts.Drive,
		upload.NewLocalStore(opts.VaultDir),
		opts.Logger,
	)
	p.pipeline.Clock = opts.Clock
	p.coord = editor.NewCoordinator(opts.Host, opts.Logger)
	return p, nil
}

// Start registers handlers and commands on the host, then checks the saved
// session.
func (p *Plugin) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.ctx != nil {
		p.mu.Unlock()
		return errors.New("plugin already started")
	}
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	p.mu.Unlock()

	p.host.OnPaste(p.HandlePaste)
	p.host.OnDrop(p.HandleDrop)
	p.host.AddCommand(Command{ID: CommandConnect, Name: "Connect Google Drive (Device Flow)", Run: p.Connect})
	p.host.AddCommand(Command{ID: CommandCheckConnection, Name: "Check Google Drive connection", Run: p.CheckConnection})
	p.host.AddCommand(Command{ID: CommandSignOut, Name: "Sign out of Google Drive", Run: p.SignOut})

	p.checkOnStart(ctx)
	return nil
}

// Stop cancels running uploads and waits for them to settle. Later paste
// and drop events are refused with ErrStopped.
func (p *Plugin) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// InFlight returns the number of running uploads.
func (p *Plugin) InFlight() int64 {
	return p.coord.InFlight()
}

// TokenStore exposes the live credential.
func (p *Plugin) TokenStore() *auth.TokenStore {
	return p.store
}

func (p *Plugin) checkOnStart(ctx context.Context) {
	p.setStatus(status.Checking)

	if !p.settings.Get().HasSession() {
		p.host.Notify("Drive Image Uploader loaded. Connect in Settings.", 3*time.Second)
		p.setStatus(status.NotConnected)
		return
	}

	if _, err := p.EnsureAccessToken(ctx); err != nil {
		p.logger.Warn("startup connection check failed", "error", err)
		p.host.Notify("Drive Image Uploader: not connected - connect in Settings", 5*time.Second)
		p.setStatus(status.NotConnected)
		return
	}
	p.host.Notify("Drive Image Uploader: connected ✅", 3*time.Second)
	p.setStatus(status.Ready)
}

// EnsureAccessToken returns a usable access token for the current client
// settings, refreshing it when needed.
func (p *Plugin) EnsureAccessToken(ctx context.Context) (string, error) {
	r := auth.NewRefresher(p.opts.HTTP, p.oauthConfig(), p.store)
	r.Clock = p.opts.Clock
	return r.EnsureAccessToken(ctx)
}

// Connect runs the device flow through the sign-in UI.
func (p *Plugin) Connect(ctx context.Context) error {
	if p.settings.Get().GoogleClientID == "" {
		p.host.Notify("Set Google Client ID in settings.", 0)
		return fmt.Errorf("%w: client id not set", auth.ErrConfig)
	}

	ui := p.opts.SignInUI
	if ui == nil {
		ui = noticeUI{host: p.host}
	}

	dc := auth.NewDeviceClient(p.opts.HTTP, p.oauthConfig())
	dc.Clock = p.opts.Clock

	p.host.Notify("Open the browser window and paste the code to authorize.", 4*time.Second)
	if _, err := dc.Connect(ctx, ui, p.store); err != nil {
		p.logger.Error("device flow failed", "error", err)
		p.host.Notify(fmt.Sprintf("Google login failed: %v", err), 0)
		return err
	}

	p.setStatus(status.Connected)
	p.host.Notify("Google Drive connected ✅", 0)
	return nil
}

// CheckConnection refreshes the token if needed and reports the result.
func (p *Plugin) CheckConnection(ctx context.Context) error {
	if _, err := p.EnsureAccessToken(ctx); err != nil {
		p.logger.Warn("connection check failed", "error", err)
		p.setStatus(status.NotConnected)
		p.host.Notify("Drive: not connected - connect in Settings", 4*time.Second)
		return err
	}
	p.setStatus(status.Ready)
	p.host.Notify("Drive: connected ✅", 0)
	return nil
}

// SignOut clears the saved tokens.
func (p *Plugin) SignOut(ctx context.Context) error {
	if err := p.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	p.setStatus(status.NotConnected)
	p.host.Notify("Signed out.", 0)
	return nil
}

// HandlePaste uploads the first image of a paste. Events without an image
// are left to the host.
func (p *Plugin) HandlePaste(ctx context.Context, buf *editor.Buffer, ev *editor.Event) error {
	images := ev.Images()
	if len(images) == 0 {
		return nil
	}
	ctx, done, err := p.track(ctx)
	if err != nil {
		return err
	}
	defer done()
	ev.PreventDefault()

	img := images[0]
	err = p.coord.RunWithPlaceholder(ctx, buf, img.Name, p.uploadFunc(img))
	p.promptConnect(err)
	return err
}

// HandleDrop uploads every image of a drop concurrently, each behind its
// own placeholder.
func (p *Plugin) HandleDrop(ctx context.Context, buf *editor.Buffer, ev *editor.Event) error {
	images := ev.Images()
	if len(images) == 0 {
		return nil
	}
	ctx, done, err := p.track(ctx)
	if err != nil {
		return err
	}
	defer done()
	ev.PreventDefault()

	jobs := make([]editor.Job, len(images))
	for i, img := range images {
		jobs[i] = editor.Job{Name: img.Name, Run: p.uploadFunc(img)}
	}
	err = p.coord.RunAll(ctx, buf, jobs)
	p.promptConnect(err)
	return err
}

// promptConnect asks the user to connect when uploads failed for lack of a
// usable session. It runs after the placeholders settled so the status is
// not overwritten by the upload count.
func (p *Plugin) promptConnect(err error) {
	if !errors.Is(err, auth.ErrNotAuthenticated) && !errors.Is(err, auth.ErrRefreshTokenExpired) {
		return
	}
	p.setStatus(status.NotConnected)
	p.host.Notify("Google Drive is not connected. Run the connect command to sign in.", 5*time.Second)
}

func (p *Plugin) uploadFunc(img editor.Blob) editor.UploadFunc {
	return func(ctx context.Context) (string, error) {
		out := p.pipeline.Upload(ctx, upload.Request{
			Data:     img.Data,
			MimeType: img.MimeType,
			Name:     img.Name,
		})
		if !out.OK() {
			p.host.Notify("All upload fallbacks failed.", 0)
			return "", out.Err
		}
		p.logger.Info("image uploaded", "name", img.Name, "kind", out.Kind.String(), "ref", out.Reference())
		return out.Markdown(), nil
	}
}

// track ties ctx to the plugin lifetime so Stop cancels and awaits it.
func (p *Plugin) track(ctx context.Context) (context.Context, func(), error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, nil, ErrStopped
	}
	p.wg.Add(1)
	base := p.ctx
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)

	stop := func() bool { return false }
	if base != nil {
		stop = context.AfterFunc(base, cancel)
	}
	return ctx, func() {
		stop()
		cancel()
		p.wg.Done()
	}, nil
}

func (p *Plugin) oauthConfig() *oauth2.Config {
	s := p.settings.Get()
	return auth.GoogleConfig(s.GoogleClientID, s.GoogleClientSecret, p.opts.AuthServerURL)
}

func (p *Plugin) setStatus(s status.State) {
	p.host.SetStatus(status.Text(s, p.coord.InFlight()))
}

// noticeUI shows the device code through host notices when no dedicated
// sign-in UI is configured.
type noticeUI struct {
	host Host
}

func (u noticeUI) Show(userCode, verificationURL string) {
	u.host.Notify(fmt.Sprintf("Open %s and enter code %s", verificationURL, userCode), 0)
}

// SetStatus only surfaces terminal states; polling repeats the others.
func (u noticeUI) SetStatus(s string) {
	if s == auth.StatusWaiting || s == auth.StatusRateLimited {
		return
	}
	u.host.Notify("Sign-in: "+s, 0)
}
