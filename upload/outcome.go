// Package upload turns pasted or dropped image bytes into an embeddable
// reference, trying Drive first and falling back to a local file.
package upload

// Kind identifies which strategy produced an Outcome.
type Kind int

const (
	Failure       Kind = iota
	CloudPrimary       // Drive upload, direct-view link
	CloudAltMedia      // Drive upload, API-key media link
	LocalPath          // file written under the vault
)

func (k Kind) String() string {
	switch k {
	case CloudPrimary:
		return "cloud"
	case CloudAltMedia:
		return "cloud (alt=media)"
	case LocalPath:
		return "local"
	default:
		return "failure"
	}
}

// Request is one image to upload. Name may be empty.
type Request struct {
	Data     []byte
	MimeType string
	Name     string
}

// Outcome is the result of Pipeline.Upload. Err is only set for Failure and
// joins every strategy error in order.
type Outcome struct {
	Kind   Kind
	FileID string
	URL    string
	Path   string
	Err    error
}

// OK reports whether a reference was produced.
func (o Outcome) OK() bool {
	return o.Kind != Failure
}

// Reference is the URL for cloud outcomes and the vault-relative path for
// local ones.
func (o Outcome) Reference() string {
	if o.Kind == LocalPath {
		return o.Path
	}
	return o.URL
}

// Markdown renders the outcome as an image embed, or "" for Failure.
func (o Outcome) Markdown() string {
	if !o.OK() {
		return ""
	}
	return "![](" + o.Reference() + ")"
}
