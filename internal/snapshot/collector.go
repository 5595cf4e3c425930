// Package snapshot projects the live editor surface into a DocumentSnapshot
// and rebuilds the surface from one.
package snapshot

import (
	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/editor"
)

// Collect reads the current state of s into a new snapshot stamped with meta.
// It never mutates s. Sections are read in a fixed order, so two collects of
// the same state serialize to identical bytes.
//
// Values are read as displayed. Percent text is not validated here; day counts
// and amounts are parsed the same way the derived displays parse them.
func Collect(s *editor.Surface, meta domain.Metadata) *domain.DocumentSnapshot {
	snap := &domain.DocumentSnapshot{
		Metadata: meta,
		Header:   collectHeader(s),
	}
	snap.Dashboard = collectDashboard(s)
	snap.Summaries = collectNotes(s.Container(editor.RoleSummaries))
	snap.Tables = collectTables(s)
	snap.CostNotes = collectNotes(s.Container(editor.RoleCostNotes))
	snap.MediaSections = append(
		collectSections(s.Container(editor.RoleMaterials), domain.GroupMaterials),
		collectSections(s.Container(editor.RoleSiteDocs), domain.GroupSiteDocs)...,
	)
	snap.ComparisonRows = collectComparison(s.Container(editor.RoleComparison))
	snap.Documents = collectMedia(s.Container(editor.RoleDocuments))
	snap.Config = s.Config()

	snap.Normalize()
	return snap
}

func collectHeader(s *editor.Surface) domain.Header {
	h := domain.Header{}
	for _, name := range domain.HeaderFields {
		if v, ok := s.Field(editor.RoleHeader, name); ok {
			h[name] = v
		}
	}
	return h
}

func collectDashboard(s *editor.Surface) domain.Dashboard {
	field := func(name string) string {
		v, _ := s.Field(editor.RoleDashboard, name)
		return v
	}

	d := domain.Dashboard{
		TotalDays:    domain.ParseLeadingInt(field(editor.FieldTotalDays)),
		WorkedDays:   domain.ParseLeadingInt(field(editor.FieldWorkedDays)),
		Workers:      domain.ParseLeadingInt(field(editor.FieldWorkers)),
		BaseContract: domain.ParseAmount(field(editor.FieldBaseContract)),
		AddContract:  domain.ParseAmount(field(editor.FieldAddContract)),
	}

	for _, n := range s.Container(editor.RoleWorkItems).Children() {
		cells := n.DataCells()
		d.WorkItems = append(d.WorkItems, domain.WorkItem{
			Name:    cellAt(cells, 0),
			Percent: domain.PercentText(cellAt(cells, 1)),
		})
	}
	return d
}

func collectNotes(c *editor.Container) []domain.Note {
	notes := make([]domain.Note, 0, c.Len())
	for _, n := range c.Children() {
		cells := n.DataCells()
		notes = append(notes, domain.Note{Title: cellAt(cells, 0), Body: cellAt(cells, 1)})
	}
	return notes
}

// collectTables takes exactly the data columns of each row. The trailing
// control cells are excluded by position.
func collectTables(s *editor.Surface) domain.Tables {
	tables := domain.Tables{}
	for _, spec := range domain.TableSpecs() {
		c := s.Container(editor.TableRole(spec.ID))
		rows := make([]domain.TableRow, 0, c.Len())
		for _, n := range c.Children() {
			cells := n.DataCells()
			if len(cells) > spec.Columns {
				cells = cells[:spec.Columns]
			}
			rows = append(rows, append(domain.TableRow(nil), cells...))
		}
		tables[spec.ID] = rows
	}
	return tables
}

func collectSections(c *editor.Container, group domain.MediaGroup) []domain.MediaSection {
	sections := make([]domain.MediaSection, 0, c.Len())
	for _, n := range c.Children() {
		sections = append(sections, domain.MediaSection{
			Group: group,
			Title: n.Title,
			Items: collectMedia(n.Slot(editor.SlotGrid)),
		})
	}
	return sections
}

func collectComparison(c *editor.Container) []domain.ComparisonRow {
	rows := make([]domain.ComparisonRow, 0, c.Len())
	for _, n := range c.Children() {
		rows = append(rows, domain.ComparisonRow{
			Before: slotItem(n.Slot(editor.SlotBefore)),
			After:  slotItem(n.Slot(editor.SlotAfter)),
		})
	}
	return rows
}

func collectMedia(c *editor.Container) []domain.MediaItem {
	if c == nil {
		return []domain.MediaItem{}
	}
	items := make([]domain.MediaItem, 0, c.Len())
	for _, n := range c.Children() {
		if n.Media != nil {
			items = append(items, *n.Media)
		}
	}
	return items
}

func slotItem(c *editor.Container) *domain.MediaItem {
	if c == nil {
		return nil
	}
	for _, n := range c.Children() {
		if n.Media != nil {
			item := *n.Media
			return &item
		}
	}
	return nil
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}
