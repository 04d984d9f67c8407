package editor

import (
	"strings"
	"sync/atomic"
)

// Blob is one file carried by a paste or drop.
type Blob struct {
	Name     string
	MimeType string
	Data     []byte
}

// IsImage reports whether the blob has an image/* MIME type.
func (b Blob) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(b.MimeType), "image/")
}

// Event is a paste or drop. Handlers call PreventDefault once they take it
// over so the host skips its own insertion.
type Event struct {
	Blobs []Blob

	prevented atomic.Bool
}

func (e *Event) PreventDefault() {
	e.prevented.Store(true)
}

func (e *Event) DefaultPrevented() bool {
	return e.prevented.Load()
}

// Images returns the image blobs in order.
func (e *Event) Images() []Blob {
	var images []Blob
	for _, b := range e.Blobs {
		if b.IsImage() {
			images = append(images, b)
		}
	}
	return images
}
