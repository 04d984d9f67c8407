package tui

// MsgDeviceCodeReady carries the code the user enters on the verification page.
type MsgDeviceCodeReady struct {
	UserCode        string
	VerificationURL string
}

// MsgSignInStatus reports polling progress: waiting, connected, failed, ...
type MsgSignInStatus struct{ Status string }

// MsgStatusLine replaces the Drive status line.
type MsgStatusLine struct{ Text string }

// MsgNotice appends a transient notice to the status log.
type MsgNotice struct{ Text string }

// MsgFatal signals that the command failed.
type MsgFatal struct{ Err error }

// MsgDone signals that the command finished and the program can exit.
type MsgDone struct{}

// msgBrowserOpened is the result of the open-URL key.
type msgBrowserOpened struct{ err error }
