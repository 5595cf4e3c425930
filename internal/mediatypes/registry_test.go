package mediatypes

import "testing"

func TestDefaultRegistry_Accepts(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		target   Target
		mimeType string
		want     bool
	}{
		{TargetGallery, "image/png", true},
		{TargetGallery, "IMAGE/JPEG", true},
		{TargetGallery, "image/webp; q=1", true},
		{TargetGallery, "application/pdf", false},
		{TargetGallery, "", false},
		{TargetComparison, "image/gif", true},
		{TargetComparison, "text/plain", false},
		{TargetDocuments, "application/pdf", true},
		{TargetDocuments, "image/png", false},
		{Target("unknown"), "image/png", false},
	}

	for _, tt := range tests {
		if got := r.Accepts(tt.target, tt.mimeType); got != tt.want {
			t.Errorf("Accepts(%s, %q) = %v, want %v", tt.target, tt.mimeType, got, tt.want)
		}
	}
}

func TestRegistry_UniversalWildcard(t *testing.T) {
	r := NewRegistry()
	r.Register(TargetDocuments, "*/*")

	if !r.Accepts(TargetDocuments, "application/zip") {
		t.Error("expected */* to accept any type")
	}
}

func TestRegistry_Patterns(t *testing.T) {
	r := DefaultRegistry()

	r.Register(TargetDocuments, " Application/X-PDF ")
	patterns := r.Patterns(TargetDocuments)
	if len(patterns) != 2 || patterns[1] != "application/x-pdf" {
		t.Errorf("unexpected patterns %v", patterns)
	}
}
