package imagefile

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/neurovision/internal/core/domain"
)

const DefaultMaxBytes = 20 << 20

var extraTypes = map[string]string{
	".dcm":   "application/dicom",
	".dicom": "application/dicom",
}

// Load reads a local file into a SelectedImage. The content is not
// inspected beyond content-type detection.
func Load(path string, maxBytes int64) (domain.SelectedImage, error) {
	if strings.TrimSpace(path) == "" {
		return domain.SelectedImage{}, fmt.Errorf("%w: image path is empty", domain.ErrInvalidInput)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.SelectedImage{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return domain.SelectedImage{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return domain.SelectedImage{}, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidInput, maxBytes)
	}

	filename := filepath.Base(path)
	return domain.SelectedImage{
		Filename:    filename,
		ContentType: DetectContentType(filename, data),
		Data:        data,
	}, nil
}

// DetectContentType prefers the file extension and falls back to sniffing.
func DetectContentType(filename string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := extraTypes[ext]; ok {
		return ct
	}
	if ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
				return mediaType
			}
			return ct
		}
	}
	if mediaType, _, err := mime.ParseMediaType(http.DetectContentType(data)); err == nil {
		return mediaType
	}
	return "application/octet-stream"
}
