package editor

import (
	"fmt"
	"testing"

	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() domain.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("n%d", n)
	}
}

func newTestEditor() (*Surface, *Builders, *Dispatcher) {
	s := NewSurface()
	b := NewBuilders(sequentialIDs(), nil)
	return s, b, NewDispatcher(b)
}

type recordingScheduler struct {
	groups []string
	docs   []string
}

func (r *recordingScheduler) SchedulePreview(groupID string, doc domain.MediaItem) {
	r.groups = append(r.groups, groupID)
	r.docs = append(r.docs, doc.ID)
}

func TestDashboardScenario(t *testing.T) {
	s, b, d := newTestEditor()

	_, err := d.Dispatch(s, Event{Role: RoleDashboard, Action: ActionEdit, Field: FieldTotalDays, Value: "20"})
	require.NoError(t, err)
	_, err = d.Dispatch(s, Event{Role: RoleDashboard, Action: ActionCommit, Field: FieldWorkedDays, Value: "5"})
	require.NoError(t, err)
	assert.Equal(t, "15", s.Display(DisplayRemainingDays))

	items := s.Container(RoleWorkItems)
	b.WorkItem(items, domain.WorkItem{Name: "Demolition", Percent: "50%"})
	framing := b.WorkItem(items, domain.WorkItem{Name: "Framing", Percent: "0%"})
	Recompute(s)
	assert.Equal(t, "25%", s.Display(DisplayOverallPercent))

	_, err = d.Dispatch(s, Event{Action: ActionDelete, NodeID: framing.ID})
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	assert.Equal(t, 2, items.Len())

	out, err := d.Dispatch(s, Event{Action: ActionDelete, NodeID: framing.ID, Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, PersistDebounced, out.Persist)
	assert.Equal(t, 1, items.Len())
	assert.Equal(t, "50%", s.Display(DisplayOverallPercent))
}

func TestRemainingNeverNegative(t *testing.T) {
	s, _, d := newTestEditor()

	for _, tc := range []struct{ total, worked, want string }{
		{"10", "3", "7"},
		{"3", "10", "0"},
		{"", "4", "0"},
		{"8", "", "8"},
	} {
		_, err := d.Dispatch(s, Event{Role: RoleDashboard, Action: ActionEdit, Field: FieldTotalDays, Value: tc.total})
		require.NoError(t, err)
		_, err = d.Dispatch(s, Event{Role: RoleDashboard, Action: ActionEdit, Field: FieldWorkedDays, Value: tc.worked})
		require.NoError(t, err)
		assert.Equal(t, tc.want, s.Display(DisplayRemainingDays), "total=%q worked=%q", tc.total, tc.worked)
	}
}

func TestCostDisplays(t *testing.T) {
	s, _, d := newTestEditor()

	_, err := d.Dispatch(s, Event{Role: RoleDashboard, Action: ActionCommit, Field: FieldBaseContract, Value: "300"})
	require.NoError(t, err)
	_, err = d.Dispatch(s, Event{Role: RoleDashboard, Action: ActionCommit, Field: FieldAddContract, Value: "100.5"})
	require.NoError(t, err)

	assert.Equal(t, "400.50", s.Display(DisplayTotalCost))
	assert.Equal(t, "74.91", s.Display(DisplayBaseShare))
}

func TestDispatch_UnknownFieldAndTarget(t *testing.T) {
	s, _, d := newTestEditor()

	_, err := d.Dispatch(s, Event{Role: RoleHeader, Action: ActionEdit, Field: "nope", Value: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = d.Dispatch(s, Event{Action: ActionEdit, NodeID: "missing"})
	assert.ErrorIs(t, err, domain.ErrTargetGone)

	_, err = d.Dispatch(s, Event{Role: RolePreviews, Action: ActionEdit})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTableRow_ControlCellIsNotData(t *testing.T) {
	s, b, d := newTestEditor()
	spec, _ := domain.LookupTable(domain.TableRisk)

	row := b.TableRow(s.Container(TableRole(domain.TableRisk)), spec, spec.BlankRow())
	assert.Len(t, row.Cells, 6)
	assert.Equal(t, ControlCell, row.Cells[5])
	assert.Equal(t, domain.TableRow{"描述", "解决", "执行方", "最后期限", "状态"}, domain.TableRow(row.DataCells()))

	_, err := d.Dispatch(s, Event{Action: ActionEdit, NodeID: row.ID, Cell: 5, Value: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = d.Dispatch(s, Event{Action: ActionCommit, NodeID: row.ID, Cell: 4, Value: "done"})
	require.NoError(t, err)
	assert.Equal(t, "done", row.Cells[4])
}

func TestMediaSection_DeleteRemovesItems(t *testing.T) {
	s, b, d := newTestEditor()

	section := b.MediaSection(s.Container(RoleMaterials), "Tiles")
	grid := section.Slot(SlotGrid)
	b.Thumb(grid, domain.MediaItem{ID: "m1", DisplayName: "a.png"})
	b.Thumb(grid, domain.MediaItem{DisplayName: "b.png"})
	assert.Len(t, s.MediaIDs(), 2)

	_, err := d.Dispatch(s, Event{Action: ActionEdit, NodeID: "m1", Value: "north wall"})
	require.NoError(t, err)
	n, ok := s.Find("m1")
	require.True(t, ok)
	assert.Equal(t, "north wall", n.Media.Caption)

	out, err := d.Dispatch(s, Event{Action: ActionDelete, NodeID: section.ID, Confirmed: true})
	require.NoError(t, err)
	assert.Len(t, out.Removed, 2)
	assert.Empty(t, s.MediaIDs())
	assert.False(t, s.Attached(n))
}

func TestComparison_SetSlotOverwrites(t *testing.T) {
	s, b, d := newTestEditor()

	row := b.ComparisonRow(s.Container(RoleComparison))
	_, err := b.SetSlot(row, SlotBefore, domain.MediaItem{ID: "old"})
	require.NoError(t, err)
	_, err = b.SetSlot(row, SlotBefore, domain.MediaItem{ID: "new"})
	require.NoError(t, err)

	assert.Equal(t, 1, row.Slot(SlotBefore).Len())
	assert.Equal(t, []string{"new"}, s.MediaIDs())

	_, err = b.SetSlot(row, "sideways", domain.MediaItem{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	out, err := d.Dispatch(s, Event{Action: ActionView, NodeID: "new"})
	require.NoError(t, err)
	require.NotNil(t, out.View)
	assert.Equal(t, "new", out.View.ID)
}

func TestDocument_PreviewDecoupledAndGuarded(t *testing.T) {
	s := NewSurface()
	sched := &recordingScheduler{}
	b := NewBuilders(sequentialIDs(), sched)
	d := NewDispatcher(b)

	doc := domain.MediaItem{ID: "doc1", DisplayName: "plan.pdf", Content: domain.EncodedMedia{MimeType: "application/pdf", Data: "JVBERg=="}}
	entry, group := b.Document(s.Container(RoleDocuments), s.Container(RolePreviews), doc)

	assert.Equal(t, KindDocument, entry.Kind)
	assert.True(t, entry.Supports(ActionView))
	assert.Equal(t, []string{group.ID}, sched.groups)
	g, ok := s.PagesGroup("plan.pdf")
	require.True(t, ok)
	assert.Same(t, group, g)

	require.NoError(t, AppendPage(s, group.ID, domain.PreviewPage{Number: 1}))
	assert.Len(t, group.Pages, 1)

	_, err := d.Dispatch(s, Event{Action: ActionDelete, NodeID: "doc1", Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Container(RolePreviews).Len())

	err = AppendPage(s, group.ID, domain.PreviewPage{Number: 2})
	assert.ErrorIs(t, err, domain.ErrTargetGone)
}

func TestReplace_SwapsWholeContainer(t *testing.T) {
	s, b, _ := newTestEditor()
	live := s.Container(RoleSummaries)
	old := b.Note(live, domain.Note{Title: "old"})

	staged := NewStaging(RoleSummaries)
	n1 := b.Note(staged, domain.Note{Title: "a"})
	b.Note(staged, domain.Note{Title: "b"})
	assert.False(t, s.Attached(n1))

	s.Replace(RoleSummaries, staged)

	assert.Equal(t, 2, live.Len())
	assert.Equal(t, 0, staged.Len())
	assert.True(t, s.Attached(n1))
	assert.False(t, s.Attached(old))
}

func TestRebind_RestoresHandlers(t *testing.T) {
	s, b, d := newTestEditor()
	d.Rebind(BinderFunc(func(*Dispatcher) {}))
	assert.False(t, d.Handles(RoleWorkItems, ActionDelete))

	d.Rebind(b)
	for _, spec := range domain.TableSpecs() {
		assert.True(t, d.Handles(TableRole(spec.ID), ActionDelete))
	}
	d.Rebind()
	assert.True(t, d.Handles(RoleThumbs, ActionView))

	n := b.WorkItem(s.Container(RoleWorkItems), domain.WorkItem{Name: "x"})
	_, err := d.Dispatch(s, Event{Action: ActionCommit, NodeID: n.ID, Field: FieldPercent, Value: "30%"})
	require.NoError(t, err)
	assert.Equal(t, "30%", s.Display(DisplayOverallPercent))
}

func TestAdd_BuildsBlankFragments(t *testing.T) {
	s, _, d := newTestEditor()

	out, err := d.Dispatch(s, Event{Role: TableRole(domain.TableProgress), Action: ActionAdd})
	require.NoError(t, err)
	row, ok := s.Find(out.Created)
	require.True(t, ok)
	assert.Equal(t, domain.TableRow{"-", "-", "-", "0%"}, domain.TableRow(row.DataCells()))

	out, err = d.Dispatch(s, Event{Role: RoleSiteDocs, Action: ActionAdd, Value: "Week 12"})
	require.NoError(t, err)
	section, ok := s.Find(out.Created)
	require.True(t, ok)
	assert.Equal(t, "Week 12", section.Title)
	assert.NotNil(t, section.Slot(SlotGrid))

	out, err = d.Dispatch(s, Event{Role: RoleWorkItems, Action: ActionAdd, Value: "Painting"})
	require.NoError(t, err)
	assert.True(t, out.Recompute)
	assert.Equal(t, "0%", s.Display(DisplayOverallPercent))

	_, err = d.Dispatch(s, Event{Role: RoleComparison, Action: ActionAdd})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Container(RoleComparison).Len())
}
