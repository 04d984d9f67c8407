package editor

import (
	"errors"
	"testing"
)

func TestAnchorMapping(t *testing.T) {
	tests := []struct {
		name     string
		offset   int
		gravity  Gravity
		from, to int
		insert   string
		want     int
	}{
		{name: "before edit", offset: 2, gravity: Left, from: 5, to: 7, insert: "xyz", want: 2},
		{name: "after edit shifts", offset: 9, gravity: Left, from: 5, to: 7, insert: "xyz", want: 10},
		{name: "insert at left anchor", offset: 5, gravity: Left, from: 5, to: 5, insert: "xyz", want: 5},
		{name: "insert at right anchor", offset: 5, gravity: Right, from: 5, to: 5, insert: "xyz", want: 8},
		{name: "replace starting at anchor", offset: 5, gravity: Right, from: 5, to: 7, insert: "xyz", want: 5},
		{name: "replace ending at anchor", offset: 7, gravity: Left, from: 5, to: 7, insert: "xyz", want: 8},
		{name: "inside deleted range left", offset: 6, gravity: Left, from: 5, to: 8, insert: "", want: 5},
		{name: "inside replaced range right", offset: 6, gravity: Right, from: 5, to: 8, insert: "ab", want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer("0123456789")
			a, err := buf.NewAnchor(tt.offset, tt.gravity)
			if err != nil {
				t.Fatalf("NewAnchor() error = %v", err)
			}
			if err := buf.Replace(tt.from, tt.to, tt.insert); err != nil {
				t.Fatalf("Replace() error = %v", err)
			}
			if got := a.Offset(); got != tt.want {
				t.Errorf("Offset() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReplaceSelection_AnchorsBoundInsertedText(t *testing.T) {
	buf := NewBuffer("hello world")
	if err := buf.SetSelection(6, 11); err != nil {
		t.Fatal(err)
	}

	start, end := buf.ReplaceSelection("there")

	if buf.Text() != "hello there" {
		t.Errorf("Text() = %q", buf.Text())
	}
	if start.Offset() != 6 || end.Offset() != 11 {
		t.Errorf("Anchors = [%d, %d), want [6, 11)", start.Offset(), end.Offset())
	}
	if from, to := buf.Selection(); from != 11 || to != 11 {
		t.Errorf("Cursor = [%d, %d), want collapsed at 11", from, to)
	}

	// Typing at either edge stays outside the span.
	if err := buf.Insert(6, ">"); err != nil {
		t.Fatal(err)
	}
	if err := buf.Insert(end.Offset(), "<"); err != nil {
		t.Fatal(err)
	}
	if got := buf.Text()[start.Offset():end.Offset()]; got != "there" {
		t.Errorf("Span = %q, want %q", got, "there")
	}
}

func TestReplaceSpan_RoundTrip(t *testing.T) {
	const original = "# Notes\n\nsee: \n\nend ✓\n"
	cursor := len("# Notes\n\nsee: ")

	buf := NewBuffer(original)
	if err := buf.SetCursor(cursor); err != nil {
		t.Fatal(err)
	}

	start, end := buf.ReplaceSelection(Placeholder("a.png"))
	if err := buf.ReplaceSpan(start, end, ""); err != nil {
		t.Fatalf("ReplaceSpan() error = %v", err)
	}

	if got := buf.Text(); got != original {
		t.Errorf("Round trip changed text:\n got %q\nwant %q", got, original)
	}

	if err := buf.ReplaceSpan(start, end, "x"); err == nil {
		t.Error("Expected error when reusing released anchors")
	}
}

func TestReplaceSpan_SurvivesSurroundingEdits(t *testing.T) {
	buf := NewBuffer("ab")
	if err := buf.SetCursor(1); err != nil {
		t.Fatal(err)
	}
	start, end := buf.ReplaceSelection(Placeholder(""))

	// Edits before and after the placeholder while the upload runs.
	if err := buf.Insert(0, "PREFIX "); err != nil {
		t.Fatal(err)
	}
	if err := buf.Insert(buf.Len(), " SUFFIX"); err != nil {
		t.Fatal(err)
	}

	if err := buf.ReplaceSpan(start, end, "![](u)"); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.Text(), "PREFIX a![](u)b SUFFIX"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestReplaceSpan_DeletedPlaceholder(t *testing.T) {
	buf := NewBuffer("x")
	start, end := buf.ReplaceSelection(Placeholder("a"))

	// The user deletes the whole marker.
	if err := buf.Replace(1, buf.Len(), ""); err != nil {
		t.Fatal(err)
	}
	if err := buf.ReplaceSpan(start, end, "![](u)"); err != nil {
		t.Fatal(err)
	}
	if got := buf.Text(); got != "x![](u)" {
		t.Errorf("Text() = %q", got)
	}
}

func TestOffsetValidation(t *testing.T) {
	buf := NewBuffer("é")

	for _, off := range []int{-1, 1, 3} {
		if err := buf.SetCursor(off); !errors.Is(err, ErrOffset) {
			t.Errorf("SetCursor(%d) error = %v, want ErrOffset", off, err)
		}
	}
	if err := buf.Replace(2, 0, ""); !errors.Is(err, ErrOffset) {
		t.Errorf("Replace(2, 0) error = %v, want ErrOffset", err)
	}
	if err := buf.SetCursor(2); err != nil {
		t.Errorf("SetCursor(2) error = %v", err)
	}
}

func TestLineOffset(t *testing.T) {
	buf := NewBuffer("one\ntwo\nthree")

	tests := []struct {
		line int
		want int
	}{
		{1, 0},
		{2, 4},
		{3, 8},
		{10, 13},
	}
	for _, tt := range tests {
		got, err := buf.LineOffset(tt.line)
		if err != nil {
			t.Fatalf("LineOffset(%d) error = %v", tt.line, err)
		}
		if got != tt.want {
			t.Errorf("LineOffset(%d) = %d, want %d", tt.line, got, tt.want)
		}
	}

	if _, err := buf.LineOffset(0); !errors.Is(err, ErrOffset) {
		t.Errorf("LineOffset(0) error = %v, want ErrOffset", err)
	}
}

func TestEventImages(t *testing.T) {
	ev := &Event{Blobs: []Blob{
		{Name: "a.txt", MimeType: "text/plain"},
		{Name: "b.png", MimeType: "image/png"},
		{Name: "c.JPG", MimeType: "IMAGE/JPEG"},
	}}

	images := ev.Images()
	if len(images) != 2 || images[0].Name != "b.png" || images[1].Name != "c.JPG" {
		t.Errorf("Images() = %v", images)
	}
	if ev.DefaultPrevented() {
		t.Error("Expected default not prevented")
	}
	ev.PreventDefault()
	if !ev.DefaultPrevented() {
		t.Error("Expected default prevented")
	}
}
