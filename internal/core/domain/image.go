package domain

import "strings"

// SelectedImage is the payload chosen by the user. The session owns it
// exclusively from selection until it is replaced or cleared.
type SelectedImage struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (img SelectedImage) Size() int {
	return len(img.Data)
}

// PreviewHandle is a locally displayable reference derived from a
// SelectedImage. It must be released through the store that issued it.
type PreviewHandle struct {
	ID  string
	URI string
}

func (h PreviewHandle) IsZero() bool {
	return h.ID == "" && h.URI == ""
}

const (
	annotatedImageMIME  = "image/jpeg"
	dataURIScheme       = "data:"
	dataURIBase64Marker = ";base64,"
)

// NormalizeAnnotatedImage returns the canonical displayable form of the
// response's image field: "data:image/jpeg;base64,<payload>". The field may
// arrive as raw base64 or already carrying a data-URI marker, which is
// stripped before re-prefixing. Empty input stays empty.
func NormalizeAnnotatedImage(raw string) string {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(payload), dataURIScheme) {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return ""
		}
		payload = strings.TrimSpace(payload[idx+1:])
	}
	if payload == "" {
		return ""
	}
	return dataURIScheme + annotatedImageMIME + dataURIBase64Marker + payload
}
