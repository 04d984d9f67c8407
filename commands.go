package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/go-authgate/drive-image-uploader/editor"
	"github.com/go-authgate/drive-image-uploader/plugin"
	"github.com/go-authgate/drive-image-uploader/settings"
	"github.com/go-authgate/drive-image-uploader/tui"
)

var (
	connectLong = templates.LongDesc(`
		Connect Google Drive with the OAuth device flow. A code and a link are
		shown; approve the request in a browser and the tokens are saved to the
		settings file.`)

	uploadLong = templates.LongDesc(`
		Upload image files as if they were dropped into a markdown document.
		Each image gets an inline placeholder that is replaced by its embed
		once the upload finishes. Without --doc the resulting markdown is
		written to stdout.`)

	uploadExample = templates.Examples(`
		# Append embeds for two images to a note
		drive-uploader upload a.png b.jpg --doc note.md

		# Paste a single image at the start of line 10
		drive-uploader upload shot.png --doc note.md --line 10 --paste`)
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runPluginCommand starts the plugin and runs one of its registered commands.
func (o *RootOptions) runPluginCommand(id string) error {
	ctx, stop := signalContext()
	defer stop()

	return o.withDisplayer(ctx, func(ctx context.Context, d tui.Displayer) error {
		p, host, err := o.newPlugin(ctx, d)
		if err != nil {
			return err
		}
		if err := p.Start(ctx); err != nil {
			return err
		}
		defer p.Stop()

		return host.run(ctx, id)
	})
}

func NewConnectCommand(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:                   "connect",
		DisableFlagsInUseLine: true,
		Short:                 "Connect Google Drive (device flow)",
		Long:                  connectLong,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runPluginCommand(plugin.CommandConnect)
		},
	}
}

func NewStatusCommand(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:                   "status",
		DisableFlagsInUseLine: true,
		Short:                 "Check the Google Drive connection",
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runPluginCommand(plugin.CommandCheckConnection)
		},
	}
}

func NewSignOutCommand(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:                   "signout",
		DisableFlagsInUseLine: true,
		Short:                 "Clear the saved Google tokens",
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runPluginCommand(plugin.CommandSignOut)
		},
	}
}

// UploadOptions are the flags of the upload command.
type UploadOptions struct {
	*RootOptions

	Files []string
	Doc   string
	Line  int
	Paste bool
}

func NewUploadOptions(root *RootOptions) *UploadOptions {
	return &UploadOptions{RootOptions: root}
}

func NewUploadCommand(o *UploadOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "upload FILE...",
		DisableFlagsInUseLine: true,
		Short:                 "Upload images into a markdown document",
		Long:                  uploadLong,
		Example:               uploadExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run()
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.Doc, "doc", "d", "", "Markdown document to insert into (default: stdout)")
	flags.IntVarP(&o.Line, "line", "l", 0, "Insert at the start of this 1-based line (default: end of document)")
	flags.BoolVar(&o.Paste, "paste", false, "Behave like a paste: only the first image is uploaded")

	return cmd
}

func (o *UploadOptions) Complete(cmd *cobra.Command, args []string) error {
	o.Files = args
	return nil
}

func (o *UploadOptions) Validate() error {
	if len(o.Files) == 0 {
		return errors.New("at least one FILE is required")
	}
	if o.Line < 0 {
		return fmt.Errorf("--line must be positive, got %d", o.Line)
	}
	return nil
}

func (o *UploadOptions) Run() error {
	blobs, err := readBlobs(o.Files)
	if err != nil {
		return err
	}

	text := ""
	if o.Doc != "" {
		data, err := os.ReadFile(o.Doc)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read document: %w", err)
		}
		text = string(data)
	}

	buf := editor.NewBuffer(text)
	if o.Line > 0 {
		offset, err := buf.LineOffset(o.Line)
		if err != nil {
			return err
		}
		if err := buf.SetCursor(offset); err != nil {
			return err
		}
	}

	ctx, stop := signalContext()
	defer stop()

	ev := &editor.Event{Blobs: blobs}
	uploadErr := o.withDisplayer(ctx, func(ctx context.Context, d tui.Displayer) error {
		p, host, err := o.newPlugin(ctx, d)
		if err != nil {
			return err
		}
		if err := p.Start(ctx); err != nil {
			return err
		}
		defer p.Stop()

		if o.Paste {
			err = host.dispatchPaste(ctx, buf, ev)
		} else {
			err = host.dispatchDrop(ctx, buf, ev)
		}
		if err == nil && !ev.DefaultPrevented() {
			return errors.New("no image files given")
		}
		return err
	})
	if !ev.DefaultPrevented() {
		return uploadErr
	}

	// Placeholders were replaced either way; keep the document consistent.
	if o.Doc == "" {
		fmt.Fprint(o.Out, buf.Text())
	} else if err := os.WriteFile(o.Doc, []byte(buf.Text()), 0o644); err != nil {
		return errors.Join(uploadErr, fmt.Errorf("failed to write document: %w", err))
	}
	return uploadErr
}

// readBlobs loads files and guesses their MIME type from the extension,
// falling back to content sniffing.
func readBlobs(paths []string) ([]editor.Blob, error) {
	blobs := make([]editor.Blob, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		blobs = append(blobs, editor.Blob{
			Name:     filepath.Base(path),
			MimeType: mimeType,
			Data:     data,
		})
	}
	return blobs, nil
}

func NewSchemaCommand(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:                   "schema",
		DisableFlagsInUseLine: true,
		Short:                 "Print the settings schema as JSON",
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(o.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(settings.Schema())
		},
	}
}

func NewConfigCommand(o *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "config",
		DisableFlagsInUseLine: true,
		Short:                 "Show or change saved settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:                   "show",
		DisableFlagsInUseLine: true,
		Short:                 "Print the saved settings with secrets redacted",
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := o.loadSettings(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(o.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(redact(mgr.Saved()))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:                   "set KEY VALUE",
		DisableFlagsInUseLine: true,
		Short:                 "Change one setting (see: schema)",
		Args:                  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := o.loadSettings(cmd.Context())
			if err != nil {
				return err
			}
			if err := mgr.Update(cmd.Context(), func(s *settings.Settings) error {
				return settings.Apply(s, args[0], args[1])
			}); err != nil {
				return err
			}
			fmt.Fprintf(o.Out, "%s updated\n", args[0])
			return nil
		},
	})

	return cmd
}

const redacted = "<redacted>"

func redact(s settings.Settings) settings.Settings {
	for _, field := range []*string{&s.GoogleClientSecret, &s.GoogleAPIKey, &s.AccessToken, &s.RefreshToken} {
		if *field != "" {
			*field = redacted
		}
	}
	return s
}
