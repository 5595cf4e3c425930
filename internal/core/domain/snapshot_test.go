package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmptySnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s := NewEmptySnapshot("report-1", now)

	assert.Equal(t, DocumentType, s.Metadata.Type)
	assert.Equal(t, SnapshotVersion, s.Metadata.Version)
	assert.Equal(t, "report-1", s.Metadata.ReportID)
	assert.Equal(t, now, s.Metadata.CreatedAt)
	assert.NotNil(t, s.Header)
	assert.NotNil(t, s.Dashboard.WorkItems)
	for _, spec := range TableSpecs() {
		assert.NotNil(t, s.Tables[spec.ID], "table %s", spec.ID)
	}
	assert.NotNil(t, s.MediaSections)
	assert.NotNil(t, s.ComparisonRows)
	assert.NotNil(t, s.Documents)
}

func TestPercentText_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want PercentText
	}{
		{`"50%"`, "50%"},
		{`"abc"`, "abc"},
		{`40`, "40%"},
		{`12.5`, "12.5%"},
		{`null`, ""},
	}

	for _, tt := range tests {
		var p PercentText
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &p), tt.raw)
		assert.Equal(t, tt.want, p, tt.raw)
	}

	var p PercentText
	assert.Error(t, json.Unmarshal([]byte(`{}`), &p))
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	s := NewEmptySnapshot("report-1", time.Now())
	s.Header[HeaderProject] = "Tower A"
	s.MediaSections = append(s.MediaSections, MediaSection{
		Group: GroupMaterials,
		Title: "Tiles",
		Items: []MediaItem{{ID: "m1", DisplayName: "a.png", Content: EncodedMedia{MimeType: "image/png", Data: "AAAA"}}},
	})

	c := s.Clone()
	c.Header[HeaderProject] = "changed"
	c.MediaSections[0].Items[0].Caption = "changed"

	assert.Equal(t, "Tower A", s.Header[HeaderProject])
	assert.Equal(t, "", s.MediaSections[0].Items[0].Caption)
}

func TestSnapshot_EachMediaVisitsEverySlot(t *testing.T) {
	s := NewEmptySnapshot("report-1", time.Now())
	s.MediaSections = []MediaSection{{Group: GroupSiteDocs, Items: []MediaItem{{ID: "a"}, {ID: "b"}}}}
	s.ComparisonRows = []ComparisonRow{{Before: &MediaItem{ID: "c"}}, {After: &MediaItem{ID: "d"}}}
	s.Documents = []MediaItem{{ID: "e"}}

	var seen []string
	s.EachMedia(func(item *MediaItem) { seen = append(seen, item.ID) })
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)
}

func TestTableSpec_Normalize(t *testing.T) {
	spec, ok := LookupTable(TableQuality)
	require.True(t, ok)

	out, changed := spec.Normalize(TableRow{"a"})
	assert.True(t, changed)
	assert.Equal(t, TableRow{"a", "", ""}, out)

	out, changed = spec.Normalize(TableRow{"a", "b", "c", "d", "e"})
	assert.True(t, changed)
	assert.Equal(t, TableRow{"a", "b", "c"}, out)

	out, changed = spec.Normalize(TableRow{"a", "b", "c"})
	assert.False(t, changed)
	assert.Equal(t, TableRow{"a", "b", "c"}, out)

	_, ok = LookupTable("unknown")
	assert.False(t, ok)
}
