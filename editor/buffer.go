// Package editor models the markdown document being edited and the inline
// upload placeholders inserted into it.
package editor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// ErrOffset is returned for offsets outside the text or inside a UTF-8
// sequence.
var ErrOffset = errors.New("offset out of range")

// Gravity decides where an anchor goes when text is inserted exactly at its
// offset.
type Gravity int

const (
	// Left anchors stay before the inserted text.
	Left Gravity = iota
	// Right anchors move after it.
	Right
)

// Anchor is a byte offset into a Buffer that follows later edits.
type Anchor struct {
	buf      *Buffer
	offset   int
	gravity  Gravity
	released bool
}

// Offset returns the current position.
func (a *Anchor) Offset() int {
	a.buf.mu.Lock()
	defer a.buf.mu.Unlock()
	return a.offset
}

// Release stops tracking the anchor.
func (a *Anchor) Release() {
	a.buf.mu.Lock()
	defer a.buf.mu.Unlock()
	a.release()
}

func (a *Anchor) release() {
	if a.released {
		return
	}
	a.released = true
	delete(a.buf.anchors, a)
}

// mapThrough moves the anchor across the replacement of [from, to) by n
// bytes.
func (a *Anchor) mapThrough(from, to, n int) {
	p := a.offset
	switch {
	case p < from:
		// Before the edit.
	case p > to:
		a.offset = p + n - (to - from)
	case from == to:
		if a.gravity == Right {
			a.offset = p + n
		}
	case p == from:
	case p == to:
		a.offset = from + n
	default:
		// Inside a replaced range.
		if a.gravity == Right {
			a.offset = from + n
		} else {
			a.offset = from
		}
	}
}

// Buffer is a text document with a selection. Every edit maps all live
// anchors, the selection included.
type Buffer struct {
	mu      sync.Mutex
	text    string
	anchors map[*Anchor]struct{}
	selFrom *Anchor
	selTo   *Anchor
}

// NewBuffer creates a buffer holding text with the cursor at the end.
func NewBuffer(text string) *Buffer {
	b := &Buffer{text: text, anchors: make(map[*Anchor]struct{})}
	b.selFrom = b.newAnchor(len(text), Right)
	b.selTo = b.newAnchor(len(text), Right)
	return b
}

// Text returns the current content.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Len returns the content length in bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.text)
}

// Selection returns the selected range; from == to is a plain cursor.
func (b *Buffer) Selection() (from, to int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selFrom.offset, b.selTo.offset
}

// SetCursor collapses the selection to offset.
func (b *Buffer) SetCursor(offset int) error {
	return b.SetSelection(offset, offset)
}

// SetSelection selects [from, to).
func (b *Buffer) SetSelection(from, to int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkRange(from, to); err != nil {
		return err
	}
	b.selFrom.offset = from
	b.selTo.offset = to
	return nil
}

// LineOffset returns the offset of the start of the 1-based line. Lines past
// the end map to the end of the text.
func (b *Buffer) LineOffset(line int) (int, error) {
	if line < 1 {
		return 0, fmt.Errorf("%w: line %d", ErrOffset, line)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	offset := 0
	for i := 1; i < line; i++ {
		next := strings.IndexByte(b.text[offset:], '\n')
		if next < 0 {
			return len(b.text), nil
		}
		offset += next + 1
	}
	return offset, nil
}

// NewAnchor tracks offset with the given gravity.
func (b *Buffer) NewAnchor(offset int, g Gravity) (*Anchor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkOffset(offset); err != nil {
		return nil, err
	}
	return b.newAnchor(offset, g), nil
}

// Insert inserts s at offset.
func (b *Buffer) Insert(offset int, s string) error {
	return b.Replace(offset, offset, s)
}

// Replace replaces [from, to) with s.
func (b *Buffer) Replace(from, to int, s string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkRange(from, to); err != nil {
		return err
	}
	b.replace(from, to, s)
	return nil
}

// ReplaceSelection replaces the selection with s, leaves the cursor after it
// and returns anchors bounding the inserted text. The start anchor has right
// gravity and the end anchor left gravity, so text typed at either edge stays
// outside the span.
func (b *Buffer) ReplaceSelection(s string) (start, end *Anchor) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from, to := b.selFrom.offset, b.selTo.offset
	b.replace(from, to, s)

	b.selFrom.offset = from + len(s)
	b.selTo.offset = from + len(s)
	return b.newAnchor(from, Right), b.newAnchor(from+len(s), Left)
}

// ReplaceSpan replaces the text between two anchors with s and releases
// both. If edits made end precede start, s is inserted at start.
func (b *Buffer) ReplaceSpan(start, end *Anchor, s string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if start.buf != b || end.buf != b {
		return errors.New("anchor belongs to another buffer")
	}
	if start.released || end.released {
		return errors.New("anchor already released")
	}

	from, to := start.offset, end.offset
	if to < from {
		to = from
	}
	start.release()
	end.release()
	b.replace(from, to, s)
	return nil
}

func (b *Buffer) newAnchor(offset int, g Gravity) *Anchor {
	a := &Anchor{buf: b, offset: offset, gravity: g}
	b.anchors[a] = struct{}{}
	return a
}

// replace must be called with mu held and a valid range.
func (b *Buffer) replace(from, to int, s string) {
	b.text = b.text[:from] + s + b.text[to:]
	for a := range b.anchors {
		a.mapThrough(from, to, len(s))
	}
}

func (b *Buffer) checkRange(from, to int) error {
	if from > to {
		return fmt.Errorf("%w: %d > %d", ErrOffset, from, to)
	}
	if err := b.checkOffset(from); err != nil {
		return err
	}
	return b.checkOffset(to)
}

func (b *Buffer) checkOffset(offset int) error {
	if offset < 0 || offset > len(b.text) {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrOffset, offset, len(b.text))
	}
	if offset < len(b.text) && !utf8.RuneStart(b.text[offset]) {
		return fmt.Errorf("%w: %d splits a character", ErrOffset, offset)
	}
	return nil
}
