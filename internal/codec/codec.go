// Package codec converts binary image and document content to and from the
// text-safe form embedded in snapshots and export files.
package codec

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/designpm/designpm-core/internal/core/domain"
)

const dataURLPrefix = "data:"

// Encode wraps raw bytes as standard base64 with an explicit MIME type.
// An empty mimeType is sniffed from the content.
func Encode(raw []byte, mimeType string) domain.EncodedMedia {
	return domain.EncodedMedia{
		MimeType: Sniff(raw, mimeType),
		Data:     base64.StdEncoding.EncodeToString(raw),
	}
}

// Decode returns the raw bytes of m. decode(encode(x)) == x for every x.
func Decode(m domain.EncodedMedia) ([]byte, error) {
	if m.IsZero() {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrMediaDecodeFailure)
	}
	if m.Data == "" {
		return []byte{}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaDecodeFailure, err)
	}
	return raw, nil
}

// DataURL renders m as a data URL so it can be redisplayed directly.
func DataURL(m domain.EncodedMedia) string {
	return dataURLPrefix + m.MimeType + ";base64," + m.Data
}

// ParseDataURL accepts the "data:<type>;base64,<data>" form older exports stored
// inline and splits it into type and payload.
func ParseDataURL(s string) (domain.EncodedMedia, error) {
	if !strings.HasPrefix(s, dataURLPrefix) {
		return domain.EncodedMedia{}, fmt.Errorf("%w: not a data URL", domain.ErrMediaDecodeFailure)
	}
	meta, data, ok := strings.Cut(s[len(dataURLPrefix):], ",")
	if !ok {
		return domain.EncodedMedia{}, fmt.Errorf("%w: missing payload separator", domain.ErrMediaDecodeFailure)
	}
	mimeType, params, _ := strings.Cut(meta, ";")
	if !strings.Contains(params, "base64") {
		return domain.EncodedMedia{}, fmt.Errorf("%w: only base64 data URLs are supported", domain.ErrMediaDecodeFailure)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	m := domain.EncodedMedia{MimeType: mimeType, Data: data}
	if _, err := Decode(m); err != nil {
		return domain.EncodedMedia{}, err
	}
	return m, nil
}

// Sniff returns the declared type when it is well-formed, otherwise the type
// detected from the content.
func Sniff(raw []byte, declared string) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(raw))
	return mt
}

// Detect returns the type detected from the content alone, ignoring any declared type.
func Detect(raw []byte) string {
	return Sniff(raw, "")
}
