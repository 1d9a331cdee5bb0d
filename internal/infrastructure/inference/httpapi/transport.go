package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kirillkom/neurovision/internal/core/domain"
)

const (
	fileField          = "file"
	defaultFilename    = "image"
	defaultContentType = "application/octet-stream"
	maxErrorBodyBytes  = 2048
	maxResponseBytes   = 32 << 20
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (c *Client) postImage(ctx context.Context, image domain.SelectedImage, out *domain.RawPrediction) error {
	body, contentType, err := encodeMultipart(image)
	if err != nil {
		return fmt.Errorf("encode multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return fmt.Errorf("create predict request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newHTTPStatusError(resp)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return domain.WrapError(domain.ErrMalformedResponse, "decode predict response", err)
	}
	return nil
}

// encodeMultipart builds a body with a single "file" part carrying the
// image bytes, filename and content type.
func encodeMultipart(image domain.SelectedImage) (*bytes.Buffer, string, error) {
	filename := strings.TrimSpace(image.Filename)
	if filename == "" {
		filename = defaultFilename
	}
	contentType := strings.TrimSpace(image.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func newHTTPStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &HTTPStatusError{
		Operation:  "predict",
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
