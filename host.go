package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-authgate/drive-image-uploader/editor"
	"github.com/go-authgate/drive-image-uploader/plugin"
	"github.com/go-authgate/drive-image-uploader/tui"
)

// cliHost hosts the plugin in a one-shot command: notices and the status
// line go to the displayer, commands and handlers are invoked directly.
type cliHost struct {
	d tui.Displayer

	mu       sync.Mutex
	paste    plugin.EventHandler
	drop     plugin.EventHandler
	commands map[string]plugin.Command
}

func newCLIHost(d tui.Displayer) *cliHost {
	return &cliHost{d: d, commands: make(map[string]plugin.Command)}
}

func (h *cliHost) Notify(msg string, _ time.Duration) {
	h.d.Notice(msg)
}

func (h *cliHost) SetStatus(text string) {
	h.d.StatusLine(text)
}

func (h *cliHost) OnPaste(fn plugin.EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paste = fn
}

func (h *cliHost) OnDrop(fn plugin.EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop = fn
}

func (h *cliHost) AddCommand(c plugin.Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands[c.ID] = c
}

// run invokes a registered command by id.
func (h *cliHost) run(ctx context.Context, id string) error {
	h.mu.Lock()
	c, ok := h.commands[id]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("command %q not registered", id)
	}
	return c.Run(ctx)
}

// dispatchDrop delivers ev to the registered drop handler.
func (h *cliHost) dispatchDrop(ctx context.Context, buf *editor.Buffer, ev *editor.Event) error {
	h.mu.Lock()
	fn := h.drop
	h.mu.Unlock()
	if fn == nil {
		return fmt.Errorf("no drop handler registered")
	}
	return fn(ctx, buf, ev)
}

// dispatchPaste delivers ev to the registered paste handler.
func (h *cliHost) dispatchPaste(ctx context.Context, buf *editor.Buffer, ev *editor.Event) error {
	h.mu.Lock()
	fn := h.paste
	h.mu.Unlock()
	if fn == nil {
		return fmt.Errorf("no paste handler registered")
	}
	return fn(ctx, buf, ev)
}
