package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/designpm/designpm-core/internal/codec"
	"github.com/designpm/designpm-core/internal/core/domain"
)

// Section names as they appear in the serialized document.
const (
	SectionMetadata       = "metadata"
	SectionHeader         = "header"
	SectionDashboard      = "dashboard"
	SectionSummaries      = "summaries"
	SectionTables         = "tables"
	SectionCostNotes      = "costNotes"
	SectionMediaSections  = "mediaSections"
	SectionComparisonRows = "comparisonRows"
	SectionDocuments      = "documents"
	SectionConfig         = "config"
)

var optionalSections = []string{
	SectionSummaries,
	SectionTables,
	SectionCostNotes,
	SectionMediaSections,
	SectionComparisonRows,
	SectionDocuments,
	SectionConfig,
}

// Warning records a recoverable problem found while decoding or applying.
type Warning struct {
	Section string `json:"section"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Section + ": " + w.Message
}

// Probe checks the document type marker without parsing the rest of the document.
func Probe(data []byte) error {
	var head struct {
		Metadata *struct {
			Type string `json:"type"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
	}
	if head.Metadata == nil {
		return fmt.Errorf("%w: missing metadata", domain.ErrMalformedSnapshot)
	}
	if head.Metadata.Type != domain.DocumentType {
		return fmt.Errorf("%w: document type %q, expected %q",
			domain.ErrMalformedSnapshot, head.Metadata.Type, domain.DocumentType)
	}
	return nil
}

// Decode parses a serialized snapshot. The type marker is checked first.
// A missing or unreadable required section (metadata, header, dashboard)
// fails with ErrMalformedSnapshot. Missing or unreadable optional sections are
// replaced by defaults and reported as warnings. Unknown fields are ignored.
func Decode(data []byte) (*domain.DocumentSnapshot, []Warning, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if err := Probe(data); err != nil {
		return nil, nil, err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
	}

	d := &decoder{}
	snap := &domain.DocumentSnapshot{}

	var err error
	if snap.Metadata, err = d.metadata(top[SectionMetadata]); err != nil {
		return nil, nil, err
	}
	if snap.Header, err = d.header(top[SectionHeader]); err != nil {
		return nil, nil, err
	}
	if snap.Dashboard, err = d.dashboard(top[SectionDashboard]); err != nil {
		return nil, nil, err
	}

	for _, name := range optionalSections {
		raw, ok := top[name]
		if !ok || isNull(raw) {
			d.warn(name, "missing, using defaults")
			continue
		}
		switch name {
		case SectionSummaries:
			snap.Summaries = d.notes(name, raw)
		case SectionTables:
			snap.Tables = d.tables(raw)
		case SectionCostNotes:
			snap.CostNotes = d.notes(name, raw)
		case SectionMediaSections:
			snap.MediaSections = d.mediaSections(raw)
		case SectionComparisonRows:
			snap.ComparisonRows = d.comparisonRows(raw)
		case SectionDocuments:
			snap.Documents = d.mediaList(name, raw)
		case SectionConfig:
			if err := json.Unmarshal(raw, &snap.Config); err != nil {
				d.warn(name, "unreadable, using defaults")
				snap.Config = domain.ReportConfig{}
			}
		}
	}

	snap.Normalize()
	return snap, d.warnings, nil
}

type decoder struct {
	warnings []Warning
}

func (d *decoder) warn(section, format string, args ...any) {
	d.warnings = append(d.warnings, Warning{Section: section, Message: fmt.Sprintf(format, args...)})
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func required(name string, raw json.RawMessage) error {
	if isNull(raw) {
		return fmt.Errorf("%w: missing %s", domain.ErrMalformedSnapshot, name)
	}
	return nil
}

func (d *decoder) metadata(raw json.RawMessage) (domain.Metadata, error) {
	var m struct {
		Type      string          `json:"type"`
		Version   string          `json:"version"`
		ReportID  string          `json:"reportId"`
		CreatedAt json.RawMessage `json:"createdAt"`
		SavedAt   json.RawMessage `json:"savedAt"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.Metadata{}, fmt.Errorf("%w: metadata: %v", domain.ErrMalformedSnapshot, err)
	}
	if err := checkVersion(m.Version); err != nil {
		return domain.Metadata{}, err
	}
	if m.Version == "" {
		d.warn(SectionMetadata, "no version tag, assuming %s", domain.SnapshotVersion)
		m.Version = domain.SnapshotVersion
	}

	meta := domain.Metadata{Type: m.Type, Version: m.Version, ReportID: m.ReportID}
	if t, ok := d.timestamp(m.CreatedAt, "createdAt"); ok {
		meta.CreatedAt = t
	}
	if t, ok := d.timestamp(m.SavedAt, "savedAt"); ok {
		meta.SavedAt = &t
	}
	return meta, nil
}

// checkVersion accepts any version with the same major number.
func checkVersion(v string) error {
	if v == "" {
		return nil
	}
	major, _, _ := strings.Cut(v, ".")
	want, _, _ := strings.Cut(domain.SnapshotVersion, ".")
	if major != want {
		return fmt.Errorf("%w: unsupported version %q", domain.ErrMalformedSnapshot, v)
	}
	return nil
}

func (d *decoder) timestamp(raw json.RawMessage, field string) (time.Time, bool) {
	if isNull(raw) {
		return time.Time{}, false
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err != nil {
		d.warn(SectionMetadata, "unreadable %s ignored", field)
		return time.Time{}, false
	}
	return t.UTC(), true
}

func (d *decoder) header(raw json.RawMessage) (domain.Header, error) {
	if err := required(SectionHeader, raw); err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: header: %v", domain.ErrMalformedSnapshot, err)
	}

	known := make(map[string]bool, len(domain.HeaderFields))
	for _, f := range domain.HeaderFields {
		known[f] = true
	}

	h := domain.Header{}
	for name, v := range fields {
		if !known[name] {
			continue
		}
		s, ok := text(v)
		if !ok {
			d.warn(SectionHeader, "field %s is not text, ignored", name)
			continue
		}
		h[name] = s
	}
	return h, nil
}

func (d *decoder) dashboard(raw json.RawMessage) (domain.Dashboard, error) {
	if err := required(SectionDashboard, raw); err != nil {
		return domain.Dashboard{}, err
	}
	var w struct {
		TotalDays    json.RawMessage `json:"totalDays"`
		WorkedDays   json.RawMessage `json:"workedDays"`
		Workers      json.RawMessage `json:"workers"`
		BaseContract json.RawMessage `json:"baseContract"`
		AddContract  json.RawMessage `json:"addContract"`
		WorkItems    json.RawMessage `json:"workItems"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.Dashboard{}, fmt.Errorf("%w: dashboard: %v", domain.ErrMalformedSnapshot, err)
	}

	dash := domain.Dashboard{
		TotalDays:    d.count("totalDays", w.TotalDays),
		WorkedDays:   d.count("workedDays", w.WorkedDays),
		Workers:      d.count("workers", w.Workers),
		BaseContract: d.amount("baseContract", w.BaseContract),
		AddContract:  d.amount("addContract", w.AddContract),
	}

	if !isNull(w.WorkItems) {
		var items []json.RawMessage
		if err := json.Unmarshal(w.WorkItems, &items); err != nil {
			d.warn(SectionDashboard, "workItems unreadable, using defaults")
		}
		for i, it := range items {
			var item domain.WorkItem
			if err := json.Unmarshal(it, &item); err != nil {
				d.warn(SectionDashboard, "work item %d unreadable, skipped", i)
				continue
			}
			dash.WorkItems = append(dash.WorkItems, item)
		}
	}
	return dash, nil
}

// count reads a non-negative integer given as a number or numeric text.
func (d *decoder) count(field string, raw json.RawMessage) int {
	if isNull(raw) {
		return 0
	}
	s, ok := text(raw)
	if !ok {
		d.warn(SectionDashboard, "%s unreadable, using 0", field)
		return 0
	}
	n := domain.ParseLeadingInt(s)
	if n < 0 {
		d.warn(SectionDashboard, "%s negative, clamped to 0", field)
		return 0
	}
	return n
}

// amount reads a non-negative decimal given as a number or numeric text.
func (d *decoder) amount(field string, raw json.RawMessage) decimal.Decimal {
	if isNull(raw) {
		return decimal.Zero
	}
	s, ok := text(raw)
	if !ok {
		d.warn(SectionDashboard, "%s unreadable, using 0", field)
		return decimal.Zero
	}
	v := domain.ParseAmount(s)
	if v.IsNegative() {
		d.warn(SectionDashboard, "%s negative, clamped to 0", field)
		return decimal.Zero
	}
	return v
}

func (d *decoder) notes(section string, raw json.RawMessage) []domain.Note {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.warn(section, "unreadable, using defaults")
		return nil
	}
	notes := make([]domain.Note, 0, len(items))
	for i, it := range items {
		var n domain.Note
		if err := json.Unmarshal(it, &n); err != nil {
			d.warn(section, "item %d unreadable, skipped", i)
			continue
		}
		notes = append(notes, n)
	}
	return notes
}

func (d *decoder) tables(raw json.RawMessage) domain.Tables {
	var byName map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byName); err != nil {
		d.warn(SectionTables, "unreadable, using defaults")
		return nil
	}

	tables := domain.Tables{}
	for name, rowsRaw := range byName {
		id := domain.TableID(name)
		if _, ok := domain.LookupTable(id); !ok {
			d.warn(SectionTables, "unknown table %q ignored", name)
			continue
		}
		var rows [][]json.RawMessage
		if err := json.Unmarshal(rowsRaw, &rows); err != nil {
			d.warn(SectionTables, "table %s unreadable, using defaults", name)
			continue
		}
		out := make([]domain.TableRow, 0, len(rows))
		for _, r := range rows {
			row := make(domain.TableRow, len(r))
			for i, c := range r {
				row[i], _ = text(c)
			}
			out = append(out, row)
		}
		tables[id] = out
	}
	return tables
}

func (d *decoder) mediaSections(raw json.RawMessage) []domain.MediaSection {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.warn(SectionMediaSections, "unreadable, using defaults")
		return nil
	}

	sections := make([]domain.MediaSection, 0, len(items))
	for i, it := range items {
		var w struct {
			Group domain.MediaGroup `json:"group"`
			Title string            `json:"title"`
			Items json.RawMessage   `json:"items"`
		}
		if err := json.Unmarshal(it, &w); err != nil {
			d.warn(SectionMediaSections, "section %d unreadable, skipped", i)
			continue
		}
		if !w.Group.IsValid() {
			if w.Group != "" {
				d.warn(SectionMediaSections, "section %d has unknown group %q, using %s", i, w.Group, domain.GroupMaterials)
			}
			w.Group = domain.GroupMaterials
		}
		sec := domain.MediaSection{Group: w.Group, Title: w.Title}
		if !isNull(w.Items) {
			sec.Items = d.mediaList(SectionMediaSections, w.Items)
		}
		sections = append(sections, sec)
	}
	return sections
}

func (d *decoder) comparisonRows(raw json.RawMessage) []domain.ComparisonRow {
	var items []struct {
		Before json.RawMessage `json:"before"`
		After  json.RawMessage `json:"after"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		d.warn(SectionComparisonRows, "unreadable, using defaults")
		return nil
	}

	rows := make([]domain.ComparisonRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, domain.ComparisonRow{
			Before: d.mediaItem(SectionComparisonRows, it.Before),
			After:  d.mediaItem(SectionComparisonRows, it.After),
		})
	}
	return rows
}

func (d *decoder) mediaList(section string, raw json.RawMessage) []domain.MediaItem {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.warn(section, "media list unreadable, using defaults")
		return nil
	}
	out := make([]domain.MediaItem, 0, len(items))
	for _, it := range items {
		if item := d.mediaItem(section, it); item != nil {
			out = append(out, *item)
		}
	}
	return out
}

// mediaItem reads one media item. Content may be the structured form or a
// legacy data URL string. Payload validity is checked later, per item, by the Applier.
func (d *decoder) mediaItem(section string, raw json.RawMessage) *domain.MediaItem {
	if isNull(raw) {
		return nil
	}
	var w struct {
		ID          string          `json:"id"`
		DisplayName string          `json:"displayName"`
		Content     json.RawMessage `json:"content"`
		Caption     string          `json:"caption"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		d.warn(section, "media item unreadable, skipped")
		return nil
	}

	item := &domain.MediaItem{ID: w.ID, DisplayName: w.DisplayName, Caption: w.Caption}
	if len(w.Content) > 0 && w.Content[0] == '"' {
		var url string
		_ = json.Unmarshal(w.Content, &url)
		if m, err := codec.ParseDataURL(url); err == nil {
			item.Content = m
		}
		return item
	}
	if !isNull(w.Content) {
		if err := json.Unmarshal(w.Content, &item.Content); err != nil {
			d.warn(section, "media item %s content unreadable", w.ID)
		}
	}
	return item
}

// text returns a JSON string as-is and a JSON number or bool in its literal form.
func text(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return "", true
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	}
	if string(raw) == "true" || string(raw) == "false" {
		return string(raw), true
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
		return "", false
	}
	return string(raw), true
}
