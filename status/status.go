// Package status formats the one-line connection and upload indicator.
package status

import "fmt"

// State is the coarse plugin state shown next to the upload count.
type State string

const (
	Ready        State = "ready"
	Uploading    State = "uploading"
	Connected    State = "connected"
	NotConnected State = "not connected"
	Checking     State = "checking"
)

// Text renders the status line for state with inFlight uploads running.
func Text(state State, inFlight int64) string {
	switch {
	case state == Uploading && inFlight > 0:
		return fmt.Sprintf("Drive: uploading %d…", inFlight)
	case state == Ready:
		return "Drive: ready"
	case state == NotConnected:
		return "Drive: not connected - connect in Settings"
	default:
		return "Drive: " + string(state)
	}
}

// ForCount is the state after an upload starts or finishes.
func ForCount(inFlight int64) State {
	if inFlight > 0 {
		return Uploading
	}
	return Ready
}
