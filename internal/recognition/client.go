// Package recognition talks to the document-recognition service and turns
// its answers into display models.
//
// The service has two deployments with incompatible response contracts and
// nothing on the wire to tell them apart beyond which fields are present, so
// every response goes through Decode's schema sniffing whatever endpoint it
// came from.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const (
	EndpointV2     = "/api/ocr/passport/v2"
	EndpointLegacy = "/api/recognize"

	UploadField    = "image"
	UploadFilename = "snapshot.jpg"
	UploadType     = "image/jpeg"
)

// Upload is one file sent as a multipart form field.
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// SnapshotUpload packages an encoded snapshot under the fixed field name.
func SnapshotUpload(jpeg []byte) Upload {
	return Upload{
		Field:       UploadField,
		Filename:    UploadFilename,
		ContentType: UploadType,
		Data:        jpeg,
	}
}

// TransportError covers everything between sending the upload and holding
// a parseable body: network failures and bodies that are not JSON.
type TransportError struct {
	Op        string
	RequestID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client posts snapshots to a single recognition endpoint.
type Client struct {
	baseURL  string
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient returns a Client for baseURL+endpoint. A nil httpClient uses a
// client without a timeout; cancellation is left to the caller's context.
func NewClient(baseURL, endpoint string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if endpoint == "" {
		endpoint = EndpointV2
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		endpoint: endpoint,
		http:     httpClient,
		logger:   logger,
	}
}

func (c *Client) URL() string { return c.baseURL + c.endpoint }

// Recognize uploads u and returns the raw JSON body. The HTTP status is not
// interpreted: error payloads are JSON too and are classified by Decode.
func (c *Client) Recognize(ctx context.Context, u Upload) ([]byte, error) {
	requestID := uuid.NewString()

	body, contentType, err := encodeMultipart(u)
	if err != nil {
		return nil, &TransportError{Op: "encode upload", RequestID: requestID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), body)
	if err != nil {
		return nil, &TransportError{Op: "build request", RequestID: requestID, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Info("uploading snapshot",
		"url", c.URL(),
		"request_id", requestID,
		"size", humanize.Bytes(uint64(len(u.Data))),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "post snapshot", RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response", RequestID: requestID, Err: err}
	}
	if !json.Valid(raw) {
		return nil, &TransportError{
			Op:        "parse response",
			RequestID: requestID,
			Err:       fmt.Errorf("status %d: body is not JSON", resp.StatusCode),
		}
	}

	c.logger.Info("recognition response",
		"request_id", requestID,
		"status", resp.StatusCode,
		"size", humanize.Bytes(uint64(len(raw))),
	)
	return raw, nil
}

func encodeMultipart(u Upload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, u.Field, u.Filename))
	h.Set("Content-Type", u.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(u.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
