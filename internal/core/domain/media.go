package domain

// EncodedMedia is a text-safe binary payload. The MIME type travels separately
// from the encoded bytes so the bytes never need re-parsing to learn their type.
type EncodedMedia struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// IsZero reports whether there is no payload at all. A typed payload with
// no data is an empty file, not a missing one.
func (m EncodedMedia) IsZero() bool {
	return m.MimeType == "" && m.Data == ""
}

// MediaItem is one image or attached document plus its caption.
// The ID is unique within its report and correlates surface nodes with records.
type MediaItem struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	Content     EncodedMedia `json:"content"`
	Caption     string       `json:"caption"`
}

// PreviewPage describes one rendered page of a multi-page document preview.
type PreviewPage struct {
	Number int     `json:"number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
