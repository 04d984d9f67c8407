package plugin

import (
	"context"
	"time"

	"github.com/go-authgate/drive-image-uploader/editor"
)

// Host is the editor application the plugin is loaded into.
type Host interface {
	// Notify shows a transient message. A zero duration uses the host default.
	Notify(msg string, d time.Duration)
	// SetStatus replaces the status bar text.
	SetStatus(text string)
	OnPaste(h EventHandler)
	OnDrop(h EventHandler)
	AddCommand(c Command)
}

// EventHandler receives a paste or drop aimed at buf.
type EventHandler func(ctx context.Context, buf *editor.Buffer, ev *editor.Event) error

// Command is a named action the host exposes to the user.
type Command struct {
	ID   string
	Name string
	Run  func(ctx context.Context) error
}

// Command ids registered by Start.
const (
	CommandConnect         = "connect-google-drive"
	CommandCheckConnection = "check-drive-connection"
	CommandSignOut         = "sign-out-google-drive"
)
