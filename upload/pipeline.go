package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	drive "google.golang.org/api/drive/v3"

	"github.com/go-authgate/drive-image-uploader/auth"
	"github.com/go-authgate/drive-image-uploader/gdrive"
	"github.com/go-authgate/drive-image-uploader/settings"
)

// TokenSource hands out a usable access token. *auth.Refresher implements it.
type TokenSource interface {
	EnsureAccessToken(ctx context.Context) (string, error)
}

// Drive is the subset of *gdrive.Client the pipeline uses.
type Drive interface {
	Upload(ctx context.Context, token string, meta *drive.File, data []byte) (string, error)
	MakePublic(ctx context.Context, token, fileID string) error
}

// Saver writes the local fallback copy. *LocalStore implements it.
type Saver interface {
	Save(folder, name string, data []byte) (string, error)
}

// SettingsSource returns the current settings. *settings.Manager implements it.
type SettingsSource interface {
	Get() settings.Settings
}

// Pipeline runs the fallback chain: Drive with a direct-view link, Drive
// again with an alt=media link, then a local file.
type Pipeline struct {
	// Clock defaults to auth.SystemClock.
	Clock auth.Clock

	settings SettingsSource
	tokens   TokenSource
	drive    Drive
	local    Saver
	logger   *slog.Logger
}

func NewPipeline(
	src SettingsSource,
	tokens TokenSource,
	d Drive,
	local Saver,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		settings: src,
		tokens:   tokens,
		drive:    d,
		local:    local,
		logger:   logger,
	}
}

// Upload returns the first successful Outcome. Strategy errors are logged at
// warn level; they only surface through a Failure outcome.
func (p *Pipeline) Upload(ctx context.Context, req Request) Outcome {
	cfg := p.settings.Get()
	name := BuildFilename(cfg.FilenamePrefix, cfg.UseOriginalName, req.Name, p.now())
	log := p.logger.With("file", name)

	var errs []error

	id, err := p.uploadToDrive(ctx, cfg, req, name)
	if err == nil {
		return Outcome{Kind: CloudPrimary, FileID: id, URL: gdrive.ViewURL(id)}
	}
	log.Warn("drive upload failed, trying fallbacks", "error", err)
	errs = append(errs, fmt.Errorf("drive upload: %w", err))

	if ctx.Err() != nil {
		return Outcome{Kind: Failure, Err: errors.Join(errs...)}
	}

	if cfg.GoogleAPIKey != "" {
		id, err := p.uploadToDrive(ctx, cfg, req, name)
		if err == nil {
			return Outcome{Kind: CloudAltMedia, FileID: id, URL: gdrive.AltMediaURL(id, cfg.GoogleAPIKey)}
		}
		log.Warn("alt=media fallback failed", "error", err)
		errs = append(errs, fmt.Errorf("alt=media upload: %w", err))
	}

	if cfg.FallbackToLocal {
		path, err := p.local.Save(cfg.LocalFolderOrDefault(), name, req.Data)
		if err == nil {
			log.Info("saved image locally", "path", path)
			return Outcome{Kind: LocalPath, Path: path}
		}
		log.Warn("local save failed", "error", err)
		errs = append(errs, fmt.Errorf("local save: %w", err))
	}

	return Outcome{Kind: Failure, Err: errors.Join(errs...)}
}

func (p *Pipeline) uploadToDrive(
	ctx context.Context,
	cfg settings.Settings,
	req Request,
	name string,
) (string, error) {
	if cfg.GoogleClientID == "" {
		return "", fmt.Errorf("%w: client id not set", auth.ErrConfig)
	}

	token, err := p.tokens.EnsureAccessToken(ctx)
	if err != nil {
		return "", err
	}

	meta := &drive.File{Name: name, MimeType: req.MimeType}
	if cfg.DriveFolderID != "" {
		meta.Parents = []string{cfg.DriveFolderID}
	}

	id, err := p.drive.Upload(ctx, token, meta, req.Data)
	if err != nil {
		return "", err
	}

	if cfg.MakePublic {
		if err := p.drive.MakePublic(ctx, token, id); err != nil {
			p.logger.Warn("failed to make file public", "file_id", id, "error", err)
		}
	}
	return id, nil
}

func (p *Pipeline) now() time.Time {
	if p.Clock == nil {
		return auth.SystemClock.Now()
	}
	return p.Clock.Now()
}
