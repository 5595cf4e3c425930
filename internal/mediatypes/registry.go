// Package mediatypes decides which uploaded content types each upload target accepts.
package mediatypes

import (
	"sort"
	"strings"
	"sync"
)

// Target names a place uploads can land.
type Target string

const (
	// TargetGallery is a media section's thumbnail grid
	TargetGallery Target = "gallery"

	// TargetComparison is a before/after slot of a comparison row
	TargetComparison Target = "comparison"

	// TargetDocuments is the attached document list
	TargetDocuments Target = "documents"
)

// Registry maps upload targets to the MIME patterns they accept.
// Patterns may be exact ("application/pdf") or wildcards ("image/*", "*/*").
type Registry struct {
	mu       sync.RWMutex
	accepted map[Target][]string
}

// NewRegistry creates an empty registry. Nothing is accepted until registered.
func NewRegistry() *Registry {
	return &Registry{
		accepted: make(map[Target][]string),
	}
}

// Register adds accepted patterns for a target.
func (r *Registry) Register(target Target, patterns ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range patterns {
		r.accepted[target] = append(r.accepted[target], normalize(p))
	}
}

// Accepts reports whether target takes content of mimeType.
func (r *Registry) Accepts(target Target, mimeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return matchesMIMEType(r.accepted[target], mimeType)
}

// Patterns returns the patterns registered for target, sorted.
func (r *Registry) Patterns(target Target) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]string(nil), r.accepted[target]...)
	sort.Strings(out)
	return out
}

func normalize(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

// matchesMIMEType checks if any of the supported types match the given MIME type.
// Supports wildcard matching (e.g., "image/*" matches "image/png").
func matchesMIMEType(supportedTypes []string, mimeType string) bool {
	mimeType = normalize(mimeType)
	if mimeType == "" {
		return false
	}

	for _, supported := range supportedTypes {
		if supported == mimeType || supported == "*/*" {
			return true
		}

		if strings.HasSuffix(supported, "/*") {
			prefix := supported[:len(supported)-1] // "image/"
			if strings.HasPrefix(mimeType, prefix) {
				return true
			}
		}
	}

	return false
}

// DefaultRegistry accepts images in galleries and comparison slots and PDFs as documents.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TargetGallery, "image/*")
	r.Register(TargetComparison, "image/*")
	r.Register(TargetDocuments, "application/pdf")
	return r
}
