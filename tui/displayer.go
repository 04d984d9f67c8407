package tui

import (
	"fmt"
	"io"

	tea "charm.land/bubbletea/v2"

	"github.com/go-authgate/drive-image-uploader/auth"
)

// Displayer abstracts all user-facing output of the CLI. Every
// implementation also serves as the auth.SignInUI of the device flow.
type Displayer interface {
	auth.SignInUI
	StatusLine(text string)
	Notice(msg string)
	Fatal(err error)
}

var (
	_ Displayer = (*PlainDisplayer)(nil)
	_ Displayer = NoopDisplayer{}
	_ Displayer = (*ProgramDisplayer)(nil)
)

// PlainDisplayer writes plain text to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w          io.Writer
	lastStatus string
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Show(userCode, verificationURL string) {
	fmt.Fprintln(p.w, "----------------------------------------")
	fmt.Fprintf(p.w, "Open this link to connect Google Drive:\n%s\n", verificationURL)
	fmt.Fprintf(p.w, "And enter code: %s\n", userCode)
	fmt.Fprintln(p.w, "----------------------------------------")
}

// SetStatus prints sign-in status changes, skipping repeats.
func (p *PlainDisplayer) SetStatus(status string) {
	if status == p.lastStatus {
		return
	}
	p.lastStatus = status
	fmt.Fprintf(p.w, "Status: %s\n", status)
}

func (p *PlainDisplayer) StatusLine(text string) {
	fmt.Fprintln(p.w, text)
}

func (p *PlainDisplayer) Notice(msg string) {
	fmt.Fprintln(p.w, msg)
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Show(_, _ string)    {}
func (NoopDisplayer) SetStatus(_ string)  {}
func (NoopDisplayer) StatusLine(_ string) {}
func (NoopDisplayer) Notice(_ string)     {}
func (NoopDisplayer) Fatal(_ error)       {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Show(userCode, verificationURL string) {
	t.p.Send(MsgDeviceCodeReady{UserCode: userCode, VerificationURL: verificationURL})
}

func (t *ProgramDisplayer) SetStatus(status string) {
	t.p.Send(MsgSignInStatus{Status: status})
}

func (t *ProgramDisplayer) StatusLine(text string) {
	t.p.Send(MsgStatusLine{Text: text})
}

func (t *ProgramDisplayer) Notice(msg string) {
	t.p.Send(MsgNotice{Text: msg})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}

// Done asks the program to exit once pending messages are drawn.
func (t *ProgramDisplayer) Done() {
	t.p.Send(MsgDone{})
}
