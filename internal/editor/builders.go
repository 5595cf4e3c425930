package editor

import (
	"fmt"

	"github.com/designpm/designpm-core/internal/core/domain"
)

// ControlCell is the UI-only delete control trailing every table row.
const ControlCell = "✕"

// Cell positions inside work item and note fragments.
const (
	cellName    = 0
	cellPercent = 1
	cellTitle   = 0
	cellBody    = 1
)

// Note field names accepted by edit events.
const (
	FieldName    = "name"
	FieldPercent = "percent"
	FieldTitle   = "title"
	FieldBody    = "body"
	FieldCaption = "caption"
)

var (
	textActions  = []Action{ActionEdit, ActionCommit, ActionDelete}
	mediaActions = []Action{ActionEdit, ActionCommit, ActionDelete, ActionView}
)

// PreviewScheduler starts asynchronous page rendering for a document into
// the pages group with groupID.
type PreviewScheduler interface {
	SchedulePreview(groupID string, doc domain.MediaItem)
}

// Builders constructs interactive fragments from data records. Every builder
// appends to the container it is given and never deduplicates: calling a
// builder twice produces two fragments.
type Builders struct {
	ids      domain.IDGenerator
	previews PreviewScheduler
}

// NewBuilders creates builders. ids generates node and missing media IDs.
// previews may be nil, in which case documents get empty preview groups.
func NewBuilders(ids domain.IDGenerator, previews PreviewScheduler) *Builders {
	if ids == nil {
		ids = domain.GenerateID
	}
	return &Builders{ids: ids, previews: previews}
}

// WithPreviews returns a copy of b that schedules previews on p.
func (b *Builders) WithPreviews(p PreviewScheduler) *Builders {
	return &Builders{ids: b.ids, previews: p}
}

// NewID returns a fresh identifier from the builders' generator.
func (b *Builders) NewID() string {
	return b.ids()
}

func (b *Builders) node(kind Kind, actions []Action) *Node {
	return &Node{ID: b.ids(), Kind: kind, Actions: actions}
}

// WorkItem builds a name/percent row.
func (b *Builders) WorkItem(c *Container, item domain.WorkItem) *Node {
	n := b.node(KindWorkItem, textActions)
	n.Cells = []string{item.Name, string(item.Percent)}
	c.Append(n)
	return n
}

// Note builds a title/body item (summaries and cost notes).
func (b *Builders) Note(c *Container, note domain.Note) *Node {
	n := b.node(KindNote, textActions)
	n.Cells = []string{note.Title, note.Body}
	c.Append(n)
	return n
}

// TableRow builds a table row shaped to spec's column count, followed by the control cell.
func (b *Builders) TableRow(c *Container, spec domain.TableSpec, row domain.TableRow) *Node {
	cells, _ := spec.Normalize(row)
	n := b.node(KindTableRow, textActions)
	n.Cells = append([]string(cells), ControlCell)
	n.Controls = 1
	c.Append(n)
	return n
}

// MediaSection builds a titled section with an empty thumbnail grid.
func (b *Builders) MediaSection(c *Container, title string) *Node {
	n := b.node(KindMediaSection, textActions)
	n.Title = title
	n.Slots = map[string]*Container{
		SlotGrid: {Role: RoleThumbs},
	}
	n.Slots[SlotGrid].owner = n
	c.Append(n)
	return n
}

// Thumb builds a gallery item. The node takes the media item's ID; an item
// without one is assigned a fresh ID.
func (b *Builders) Thumb(c *Container, item domain.MediaItem) *Node {
	if item.ID == "" {
		item.ID = b.ids()
	}
	n := &Node{ID: item.ID, Kind: KindThumb, Media: &item, Actions: mediaActions}
	c.Append(n)
	return n
}

// ComparisonRow builds an empty before/after row.
func (b *Builders) ComparisonRow(c *Container) *Node {
	n := b.node(KindComparisonRow, []Action{ActionDelete})
	n.Slots = map[string]*Container{
		SlotBefore: {Role: RoleCompareBox},
		SlotAfter:  {Role: RoleCompareBox},
	}
	for _, s := range n.Slots {
		s.owner = n
	}
	c.Append(n)
	return n
}

// SetSlot places item in a comparison row slot, overwriting any previous item.
func (b *Builders) SetSlot(row *Node, slot string, item domain.MediaItem) (*Node, error) {
	box := row.Slot(slot)
	if box == nil {
		return nil, fmt.Errorf("slot %q: %w", slot, domain.ErrInvalidInput)
	}
	box.Clear()
	return b.Thumb(box, item), nil
}

// Document builds an attached document entry in docs and its pages group in
// previews, then schedules page rendering. The entry is usable before any
// page has rendered.
func (b *Builders) Document(docs, previews *Container, item domain.MediaItem) (entry, group *Node) {
	entry = b.Thumb(docs, item)
	entry.Kind = KindDocument
	group = b.PagesGroup(previews, *entry.Media)
	if b.previews != nil {
		b.previews.SchedulePreview(group.ID, *entry.Media)
	}
	return entry, group
}

// PagesGroup builds the full-preview area of a document, keyed by display name.
// Its single cell holds the document's media ID.
func (b *Builders) PagesGroup(previews *Container, doc domain.MediaItem) *Node {
	n := b.node(KindPagesGroup, nil)
	n.Title = doc.DisplayName
	n.Cells = []string{doc.ID}
	previews.Append(n)
	return n
}

// GroupRef returns the document media ID a pages group belongs to.
func GroupRef(group *Node) string {
	if len(group.Cells) == 0 {
		return ""
	}
	return group.Cells[0]
}

// AppendPage adds a rendered page to the pages group with groupID. It fails
// with ErrTargetGone when the group was removed or rebuilt meanwhile.
func AppendPage(s *Surface, groupID string, page domain.PreviewPage) error {
	g, ok := s.Find(groupID)
	if !ok || g.Kind != KindPagesGroup {
		return fmt.Errorf("pages group %s: %w", groupID, domain.ErrTargetGone)
	}
	g.Pages = append(g.Pages, page)
	return nil
}

// Bind registers the handler of every fragment kind these builders produce.
func (b *Builders) Bind(d *Dispatcher) {
	for _, role := range []Role{RoleHeader, RoleDashboard} {
		recompute := role == RoleDashboard
		d.Register(role, ActionEdit, fieldHandler(PersistDebounced, recompute))
		d.Register(role, ActionCommit, fieldHandler(PersistImmediate, recompute))
	}

	d.Register(RoleWorkItems, ActionAdd, b.addHandler(func(c *Container, ev Event) *Node {
		return b.WorkItem(c, domain.WorkItem{Name: ev.Value, Percent: "0%"})
	}, true))
	d.Register(RoleWorkItems, ActionEdit, cellHandler(PersistDebounced, workItemCell, true))
	d.Register(RoleWorkItems, ActionCommit, cellHandler(PersistImmediate, workItemCell, true))
	d.Register(RoleWorkItems, ActionDelete, removeHandler(true))

	for _, role := range []Role{RoleSummaries, RoleCostNotes} {
		d.Register(role, ActionAdd, b.addHandler(func(c *Container, ev Event) *Node {
			return b.Note(c, domain.Note{Title: ev.Value})
		}, false))
		d.Register(role, ActionEdit, cellHandler(PersistDebounced, noteCell, false))
		d.Register(role, ActionCommit, cellHandler(PersistImmediate, noteCell, false))
		d.Register(role, ActionDelete, removeHandler(false))
	}

	for _, spec := range domain.TableSpecs() {
		role := TableRole(spec.ID)
		d.Register(role, ActionAdd, b.addHandler(func(c *Container, _ Event) *Node {
			return b.TableRow(c, spec, spec.BlankRow())
		}, false))
		d.Register(role, ActionEdit, cellHandler(PersistDebounced, tableCell, false))
		d.Register(role, ActionCommit, cellHandler(PersistImmediate, tableCell, false))
		d.Register(role, ActionDelete, removeHandler(false))
	}

	for _, role := range []Role{RoleMaterials, RoleSiteDocs} {
		d.Register(role, ActionAdd, b.addHandler(func(c *Container, ev Event) *Node {
			return b.MediaSection(c, ev.Value)
		}, false))
		d.Register(role, ActionEdit, titleHandler(PersistDebounced))
		d.Register(role, ActionCommit, titleHandler(PersistImmediate))
		d.Register(role, ActionDelete, removeHandler(false))
	}

	for _, role := range []Role{RoleThumbs, RoleCompareBox, RoleDocuments} {
		d.Register(role, ActionEdit, captionHandler(PersistDebounced))
		d.Register(role, ActionCommit, captionHandler(PersistImmediate))
		d.Register(role, ActionView, viewHandler)
	}
	d.Register(RoleThumbs, ActionDelete, removeHandler(false))
	d.Register(RoleCompareBox, ActionDelete, removeHandler(false))
	d.Register(RoleComparison, ActionAdd, b.addHandler(func(c *Container, _ Event) *Node {
		return b.ComparisonRow(c)
	}, false))
	d.Register(RoleComparison, ActionDelete, removeHandler(false))
	d.Register(RoleDocuments, ActionDelete, removeDocumentHandler)
}

// addHandler appends a fragment built by build to the top-level container of the event's role.
func (b *Builders) addHandler(build func(c *Container, ev Event) *Node, recompute bool) Handler {
	return func(s *Surface, _ *Node, ev Event) (Outcome, error) {
		c := s.Container(ev.Role)
		if c == nil {
			return Outcome{}, fmt.Errorf("container %s: %w", ev.Role, domain.ErrInvalidInput)
		}
		n := build(c, ev)
		return Outcome{Persist: PersistDebounced, Recompute: recompute, Created: n.ID}, nil
	}
}

func fieldHandler(mode PersistMode, recompute bool) Handler {
	return func(s *Surface, _ *Node, ev Event) (Outcome, error) {
		if !knownField(ev.Role, ev.Field) {
			return Outcome{}, fmt.Errorf("field %s/%s: %w", ev.Role, ev.Field, domain.ErrInvalidInput)
		}
		s.SetField(ev.Role, ev.Field, ev.Value)
		return Outcome{Persist: mode, Recompute: recompute}, nil
	}
}

func knownField(role Role, field string) bool {
	names := DashboardFields
	if role == RoleHeader {
		names = domain.HeaderFields
	}
	for _, n := range names {
		if n == field {
			return true
		}
	}
	return false
}

// cellIndex maps an event to a data cell position of n.
type cellIndex func(n *Node, ev Event) (int, bool)

func workItemCell(_ *Node, ev Event) (int, bool) {
	switch ev.Field {
	case FieldName:
		return cellName, true
	case FieldPercent:
		return cellPercent, true
	}
	return 0, false
}

func noteCell(_ *Node, ev Event) (int, bool) {
	switch ev.Field {
	case FieldTitle:
		return cellTitle, true
	case FieldBody:
		return cellBody, true
	}
	return 0, false
}

func tableCell(n *Node, ev Event) (int, bool) {
	return ev.Cell, ev.Cell >= 0 && ev.Cell < len(n.DataCells())
}

func cellHandler(mode PersistMode, index cellIndex, recompute bool) Handler {
	return func(_ *Surface, n *Node, ev Event) (Outcome, error) {
		i, ok := index(n, ev)
		if !ok {
			return Outcome{}, fmt.Errorf("cell %q/%d of %s: %w", ev.Field, ev.Cell, n.Kind, domain.ErrInvalidInput)
		}
		n.Cells[i] = ev.Value
		return Outcome{Persist: mode, Recompute: recompute}, nil
	}
}

func titleHandler(mode PersistMode) Handler {
	return func(_ *Surface, n *Node, ev Event) (Outcome, error) {
		n.Title = ev.Value
		return Outcome{Persist: mode}, nil
	}
}

func captionHandler(mode PersistMode) Handler {
	return func(_ *Surface, n *Node, ev Event) (Outcome, error) {
		n.Media.Caption = ev.Value
		return Outcome{Persist: mode}, nil
	}
}

func viewHandler(_ *Surface, n *Node, _ Event) (Outcome, error) {
	item := *n.Media
	return Outcome{View: &item}, nil
}

func removeHandler(recompute bool) Handler {
	return func(s *Surface, n *Node, _ Event) (Outcome, error) {
		removed := mediaUnder(n)
		if !s.Remove(n) {
			return Outcome{}, fmt.Errorf("node %s: %w", n.ID, domain.ErrTargetGone)
		}
		return Outcome{Persist: PersistDebounced, Recompute: recompute, Removed: removed}, nil
	}
}

// removeDocumentHandler removes a document and the pages group rendered from it.
func removeDocumentHandler(s *Surface, n *Node, _ Event) (Outcome, error) {
	if !s.Remove(n) {
		return Outcome{}, fmt.Errorf("node %s: %w", n.ID, domain.ErrTargetGone)
	}
	for _, g := range s.Container(RolePreviews).Children() {
		if GroupRef(g) == n.Media.ID {
			s.Remove(g)
		}
	}
	return Outcome{Persist: PersistDebounced, Removed: []string{n.Media.ID}}, nil
}

func mediaUnder(n *Node) []string {
	var ids []string
	if n.Media != nil {
		ids = append(ids, n.Media.ID)
	}
	for _, name := range slotOrder(n) {
		for _, child := range n.Slots[name].children {
			ids = append(ids, mediaUnder(child)...)
		}
	}
	return ids
}
