// Package gdrive talks to the Google Drive v3 REST API: multipart uploads,
// public-read permissions and the URLs used to embed uploaded files.
package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/google/uuid"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/go-authgate/drive-image-uploader/transport"
)

const (
	DefaultUploadURL = "https://www.googleapis.com/upload/drive/v3/files?uploadType=multipart"
	DefaultAPIBase   = "https://www.googleapis.com/drive/v3"
	DefaultMimeType  = "image/png"

	viewBase       = "https://lh3.googleusercontent.com/d/"
	boundaryPrefix = "drive-image-uploader-"
)

// Client performs authenticated Drive calls with a caller-supplied bearer
// token.
type Client struct {
	http      *transport.Client
	uploadURL string
	apiBase   string
}

// NewClient targets the public Drive endpoints.
func NewClient(hc *transport.Client) *Client {
	return NewClientWithEndpoints(hc, DefaultUploadURL, DefaultAPIBase)
}

// NewClientWithEndpoints targets custom endpoints. uploadURL is used as-is;
// apiBase is the prefix for /files/<id>/permissions.
func NewClientWithEndpoints(hc *transport.Client, uploadURL, apiBase string) *Client {
	return &Client{
		http:      hc,
		uploadURL: uploadURL,
		apiBase:   strings.TrimRight(apiBase, "/"),
	}
}

// Upload creates a new Drive file from meta and data and returns its id.
// meta.MimeType defaults to image/png.
func (c *Client) Upload(ctx context.Context, token string, meta *drive.File, data []byte) (string, error) {
	if meta.MimeType == "" {
		meta.MimeType = DefaultMimeType
	}

	body, contentType, err := encodeMultipart(meta, data)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return "", &transport.NetworkError{
			Op:         http.MethodPost,
			URL:        req.URL.Path,
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	var created drive.File
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if created.Id == "" {
		return "", errors.New("drive response missing file id")
	}
	return created.Id, nil
}

// MakePublic grants "anyone with the link" read access to fileID.
func (c *Client) MakePublic(ctx context.Context, token, fileID string) error {
	body, err := json.Marshal(&drive.Permission{Role: "reader", Type: "anyone"})
	if err != nil {
		return err
	}

	endpoint := c.apiBase + "/files/" + url.PathEscape(fileID) + "/permissions"
	resp, err := c.http.PostJSON(ctx, endpoint, body, token)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return transport.StatusError(http.MethodPost, endpoint, resp)
	}
	return nil
}

// ViewURL is the direct-view link for a public file.
func ViewURL(fileID string) string {
	return viewBase + url.PathEscape(fileID)
}

// AltMediaURL fetches the file content by id with an API key. It is only
// built here, never requested.
func AltMediaURL(fileID, apiKey string) string {
	return DefaultAPIBase + "/files/" + url.PathEscape(fileID) +
		"?alt=media&key=" + url.QueryEscape(apiKey)
}

// encodeMultipart builds a multipart/related body: JSON metadata first, then
// the raw payload.
func encodeMultipart(meta *drive.File, data []byte) ([]byte, string, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(boundaryPrefix + uuid.NewString()); err != nil {
		return nil, "", err
	}

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := mw.CreatePart(metaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(metaJSON); err != nil {
		return nil, "", err
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", meta.MimeType)
	part, err = mw.CreatePart(mediaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "multipart/related; boundary=" + mw.Boundary(), nil
}
