package domain

import "io"

// Upload is one file of a multi-file upload. Size is the declared size and is
// checked before the file is opened. MimeType may be empty, in which case the
// type is sniffed from the content.
type Upload struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// UploadTarget says where accepted uploads go.
// Section is required for the gallery, Row and Slot for comparison.
type UploadTarget struct {
	Kind    string `json:"kind"` // gallery, comparison or documents
	Section string `json:"section,omitempty"`
	Row     string `json:"row,omitempty"`
	Slot    string `json:"slot,omitempty"`
}

// Rejection records why one upload was refused.
type Rejection struct {
	Name    string    `json:"name"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// NewRejection classifies err for the named file.
func NewRejection(name string, err error) Rejection {
	return Rejection{Name: name, Kind: KindOf(err), Message: err.Error(), Err: err}
}

// UploadResult is the outcome of one upload batch. Added is in insertion order.
type UploadResult struct {
	Added    []MediaItem `json:"added"`
	Rejected []Rejection `json:"rejected"`
}
