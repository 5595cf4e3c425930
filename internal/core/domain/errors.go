package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedSnapshot indicates a snapshot that cannot be parsed or carries
	// the wrong document type marker. Live state must not be touched.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrIncompleteSnapshot indicates optional sections were missing or unreadable
	// and defaults were substituted
	ErrIncompleteSnapshot = errors.New("incomplete snapshot")

	// ErrStorageQuotaExceeded indicates the durable store refused a write for lack of space
	ErrStorageQuotaExceeded = errors.New("storage quota exceeded")

	// ErrMediaDecodeFailure indicates a single media payload could not be decoded
	ErrMediaDecodeFailure = errors.New("media decode failure")

	// ErrUnsupportedMediaType indicates an upload whose type is not accepted by its target
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrOversizedMedia indicates an upload above the per-item size limit
	ErrOversizedMedia = errors.New("oversized media")

	// ErrTargetGone indicates the container or node an operation was aimed at
	// was removed or rebuilt before the operation completed
	ErrTargetGone = errors.New("target no longer exists")

	// ErrConfirmationRequired indicates a destructive action was requested without confirmation
	ErrConfirmationRequired = errors.New("confirmation required")
)

// ErrorKind is the user-facing classification of an error.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindMalformedSnapshot    ErrorKind = "MalformedSnapshot"
	KindIncompleteSnapshot   ErrorKind = "IncompleteSnapshot"
	KindStorageQuotaExceeded ErrorKind = "StorageQuotaExceeded"
	KindMediaDecodeFailure   ErrorKind = "MediaDecodeFailure"
	KindUnsupportedMediaType ErrorKind = "UnsupportedMediaType"
	KindOversizedMedia       ErrorKind = "OversizedMedia"
	KindNotFound             ErrorKind = "NotFound"
	KindInvalidInput         ErrorKind = "InvalidInput"
	KindTargetGone           ErrorKind = "TargetGone"
	KindConfirmationRequired ErrorKind = "ConfirmationRequired"
	KindInternal             ErrorKind = "Internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrMalformedSnapshot, KindMalformedSnapshot},
	{ErrIncompleteSnapshot, KindIncompleteSnapshot},
	{ErrStorageQuotaExceeded, KindStorageQuotaExceeded},
	{ErrMediaDecodeFailure, KindMediaDecodeFailure},
	{ErrUnsupportedMediaType, KindUnsupportedMediaType},
	{ErrOversizedMedia, KindOversizedMedia},
	{ErrNotFound, KindNotFound},
	{ErrInvalidInput, KindInvalidInput},
	{ErrTargetGone, KindTargetGone},
	{ErrConfirmationRequired, KindConfirmationRequired},
}

// KindOf classifies err by the first domain sentinel it wraps.
// nil maps to KindNone, anything unrecognised to KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
