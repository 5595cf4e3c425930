package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DocumentType is the marker every persisted or exported report carries in metadata.type
	DocumentType = "designpm.report"

	// SnapshotVersion is the schema version written by this build
	SnapshotVersion = "2.0"
)

// Header field names
const (
	HeaderProject    = "project"
	HeaderReportNo   = "reportNo"
	HeaderReportDate = "reportDate"
	HeaderPM         = "pm"
	HeaderClient     = "client"
	HeaderAddress    = "addr"
	HeaderReporter   = "reporter"
	HeaderStart      = "start"
	HeaderEnd        = "end"
)

// HeaderFields lists the header fields in document order.
var HeaderFields = []string{
	HeaderProject,
	HeaderReportNo,
	HeaderReportDate,
	HeaderPM,
	HeaderClient,
	HeaderAddress,
	HeaderReporter,
	HeaderStart,
	HeaderEnd,
}

// DocumentSnapshot is the complete serializable state of one report instance.
// Field order here is the serialization order.
type DocumentSnapshot struct {
	Metadata       Metadata        `json:"metadata"`
	Header         Header          `json:"header"`
	Dashboard      Dashboard       `json:"dashboard"`
	Summaries      []Note          `json:"summaries"`
	Tables         Tables          `json:"tables"`
	CostNotes      []Note          `json:"costNotes"`
	MediaSections  []MediaSection  `json:"mediaSections"`
	ComparisonRows []ComparisonRow `json:"comparisonRows"`
	Documents      []MediaItem     `json:"documents"`
	Config         ReportConfig    `json:"config"`
}

// Metadata identifies the snapshot format and the report instance.
type Metadata struct {
	Type      string     `json:"type"`
	Version   string     `json:"version"`
	ReportID  string     `json:"reportId"`
	CreatedAt time.Time  `json:"createdAt"`
	SavedAt   *time.Time `json:"savedAt,omitempty"`
}

// NewMetadata creates metadata for a fresh report instance.
func NewMetadata(reportID string, now time.Time) Metadata {
	return Metadata{
		Type:      DocumentType,
		Version:   SnapshotVersion,
		ReportID:  reportID,
		CreatedAt: now.UTC(),
	}
}

// Header maps header field names to free text. A missing key means "not yet filled".
type Header map[string]string

// Dashboard holds the primitive dashboard fields. Derived values are never stored;
// see Metrics.
type Dashboard struct {
	TotalDays    int             `json:"totalDays"`
	WorkedDays   int             `json:"workedDays"`
	Workers      int             `json:"workers"`
	BaseContract decimal.Decimal `json:"baseContract"`
	AddContract  decimal.Decimal `json:"addContract"`
	WorkItems    []WorkItem      `json:"workItems"`
}

// WorkItem is one row of the work progress list.
type WorkItem struct {
	Name    string      `json:"name"`
	Percent PercentText `json:"percent"`
}

// PercentText is a percentage as the user typed it ("50%", "50", "abc").
// Consumers parse it with ParsePercent.
type PercentText string

// UnmarshalJSON accepts a JSON string or a JSON number.
func (p *PercentText) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PercentText(s)
		return nil
	}
	if string(data) == "null" {
		*p = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("percent must be a string or number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*p = PercentText(strconv.FormatInt(i, 10) + "%")
		return nil
	}
	*p = PercentText(n.String() + "%")
	return nil
}

// Value returns the clamped integer percentage.
func (p PercentText) Value() int {
	return ParsePercent(string(p))
}

// Note is a title/body pair (summary items and cost notes).
type Note struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Tables holds the named data tables, keyed by table identity.
type Tables map[TableID][]TableRow

// TableRow is an ordered sequence of cell strings.
type TableRow []string

// MediaGroup identifies which top-level area a media section lives in.
type MediaGroup string

const (
	GroupMaterials MediaGroup = "materials"
	GroupSiteDocs  MediaGroup = "siteDocs"
)

// IsValid reports whether g is a known group.
func (g MediaGroup) IsValid() bool {
	return g == GroupMaterials || g == GroupSiteDocs
}

// MediaSection is a titled gallery of media items.
type MediaSection struct {
	Group MediaGroup  `json:"group"`
	Title string      `json:"title"`
	Items []MediaItem `json:"items"`
}

// ComparisonRow pairs a before (issue) and after (fix) photo. Each slot holds at most one item.
type ComparisonRow struct {
	Before *MediaItem `json:"before,omitempty"`
	After  *MediaItem `json:"after,omitempty"`
}

// ReportConfig holds navigation and print state.
type ReportConfig struct {
	ActiveModule string   `json:"activeModule,omitempty"`
	PrintModules []string `json:"printModules,omitempty"`
}

// NewEmptySnapshot returns the empty scaffolding for a fresh report.
func NewEmptySnapshot(reportID string, now time.Time) *DocumentSnapshot {
	s := &DocumentSnapshot{
		Metadata: NewMetadata(reportID, now),
		Header:   Header{},
	}
	s.Normalize()
	return s
}

// Normalize replaces nil collections with empty ones so that serialization
// is stable regardless of how the snapshot was produced.
func (s *DocumentSnapshot) Normalize() {
	if s.Header == nil {
		s.Header = Header{}
	}
	if s.Dashboard.WorkItems == nil {
		s.Dashboard.WorkItems = []WorkItem{}
	}
	if s.Summaries == nil {
		s.Summaries = []Note{}
	}
	if s.Tables == nil {
		s.Tables = Tables{}
	}
	for _, spec := range TableSpecs() {
		if s.Tables[spec.ID] == nil {
			s.Tables[spec.ID] = []TableRow{}
		}
	}
	if s.CostNotes == nil {
		s.CostNotes = []Note{}
	}
	if s.MediaSections == nil {
		s.MediaSections = []MediaSection{}
	}
	for i := range s.MediaSections {
		if s.MediaSections[i].Items == nil {
			s.MediaSections[i].Items = []MediaItem{}
		}
	}
	if s.ComparisonRows == nil {
		s.ComparisonRows = []ComparisonRow{}
	}
	if s.Documents == nil {
		s.Documents = []MediaItem{}
	}
}

// Clone returns a deep copy of the snapshot.
func (s *DocumentSnapshot) Clone() *DocumentSnapshot {
	data, err := json.Marshal(s)
	if err != nil {
		// Every field is plain data; marshaling cannot fail.
		panic(fmt.Sprintf("clone snapshot: %v", err))
	}
	var out DocumentSnapshot
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("clone snapshot: %v", err))
	}
	out.Normalize()
	return &out
}

// EachMedia calls fn for every media item in document order.
// fn receives a pointer into the snapshot and may modify the item.
func (s *DocumentSnapshot) EachMedia(fn func(item *MediaItem)) {
	for i := range s.MediaSections {
		for j := range s.MediaSections[i].Items {
			fn(&s.MediaSections[i].Items[j])
		}
	}
	for i := range s.ComparisonRows {
		if s.ComparisonRows[i].Before != nil {
			fn(s.ComparisonRows[i].Before)
		}
		if s.ComparisonRows[i].After != nil {
			fn(s.ComparisonRows[i].After)
		}
	}
	for i := range s.Documents {
		fn(&s.Documents[i])
	}
}
