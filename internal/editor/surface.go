// Package editor models the live editable report surface: a tree of containers
// and nodes, the Entity Builders that create fragments from data records, and the
// dispatch table that routes user actions to the handlers those builders return.
//
// A Surface is not safe for concurrent use. The owner serializes access.
package editor

import (
	"slices"

	"github.com/designpm/designpm-core/internal/core/domain"
)

// Role names a container on the surface. Top-level roles are fixed; nested
// containers (a section's grid, a comparison row's slots) use their own roles.
type Role string

const (
	RoleHeader     Role = "header"
	RoleDashboard  Role = "dashboard"
	RoleWorkItems  Role = "workItems"
	RoleSummaries  Role = "summaries"
	RoleCostNotes  Role = "costNotes"
	RoleMaterials  Role = "materials"
	RoleSiteDocs   Role = "siteDocs"
	RoleComparison Role = "comparison"
	RoleDocuments  Role = "documents"
	RolePreviews   Role = "previews"

	// Nested roles
	RoleThumbs     Role = "thumbs"
	RoleCompareBox Role = "compareSlot"
	RolePages      Role = "pages"
)

// TableRole returns the container role of a data table.
func TableRole(id domain.TableID) Role {
	return Role("table:" + string(id))
}

// GroupRole returns the container role of a media section group.
func GroupRole(g domain.MediaGroup) Role {
	if g == domain.GroupSiteDocs {
		return RoleSiteDocs
	}
	return RoleMaterials
}

// Dashboard field names held on the surface as user-typed text.
const (
	FieldTotalDays    = "totalDays"
	FieldWorkedDays   = "workedDays"
	FieldWorkers      = "workers"
	FieldBaseContract = "baseContract"
	FieldAddContract  = "addContract"
)

// DashboardFields lists the dashboard input fields in document order.
var DashboardFields = []string{FieldTotalDays, FieldWorkedDays, FieldWorkers, FieldBaseContract, FieldAddContract}

// Slot names inside nested containers.
const (
	SlotGrid   = "grid"
	SlotBefore = "before"
	SlotAfter  = "after"
)

// Kind is the type of fragment a node represents.
type Kind string

const (
	KindWorkItem      Kind = "workItem"
	KindNote          Kind = "note"
	KindTableRow      Kind = "tableRow"
	KindMediaSection  Kind = "mediaSection"
	KindThumb         Kind = "thumb"
	KindComparisonRow Kind = "comparisonRow"
	KindDocument      Kind = "document"
	KindPagesGroup    Kind = "pagesGroup"
)

// Node is one interactive fragment.
//
// Cells holds the fragment's editable text in structural order. For table rows
// the data cells come first and UI-only control cells trail them; Controls counts
// the trailing control cells.
type Node struct {
	ID       string
	Kind     Kind
	Cells    []string
	Controls int
	Title    string
	Media    *domain.MediaItem
	Pages    []domain.PreviewPage
	Slots    map[string]*Container
	Actions  []Action

	parent *Container
}

// Parent returns the container holding n, or nil once detached.
func (n *Node) Parent() *Container {
	return n.parent
}

// DataCells returns the cells without trailing control cells.
func (n *Node) DataCells() []string {
	end := len(n.Cells) - n.Controls
	if end < 0 {
		end = 0
	}
	return n.Cells[:end]
}

// Slot returns a named nested container, or nil.
func (n *Node) Slot(name string) *Container {
	if n.Slots == nil {
		return nil
	}
	return n.Slots[name]
}

// Supports reports whether the node was built with action wired.
func (n *Node) Supports(a Action) bool {
	return slices.Contains(n.Actions, a)
}

// Container is an ordered list of nodes.
type Container struct {
	Role     Role
	children []*Node
	owner    *Node
	surface  *Surface
}

// NewStaging returns a detached container for building a replacement
// for a top-level container. Nothing in it is reachable from any surface
// until Surface.Replace swaps it in.
func NewStaging(role Role) *Container {
	return &Container{Role: role}
}

// Children returns a copy of the child list.
func (c *Container) Children() []*Node {
	return append([]*Node(nil), c.children...)
}

// Len returns the number of children.
func (c *Container) Len() int {
	return len(c.children)
}

// Owner returns the node whose slot this is, or nil for a top-level container.
func (c *Container) Owner() *Node {
	return c.owner
}

// Append adds n at the end of c, detaching it from any previous parent.
func (c *Container) Append(n *Node) {
	if n.parent != nil {
		n.parent.remove(n)
	}
	n.parent = c
	c.children = append(c.children, n)
}

// Clear detaches every child.
func (c *Container) Clear() {
	for _, n := range c.children {
		n.parent = nil
	}
	c.children = nil
}

func (c *Container) remove(n *Node) bool {
	i := slices.Index(c.children, n)
	if i < 0 {
		return false
	}
	c.children = slices.Delete(c.children, i, i+1)
	n.parent = nil
	return true
}

// attached reports whether c is reachable from surface s.
func (c *Container) attached(s *Surface) bool {
	for c != nil {
		if c.surface == s {
			return s != nil
		}
		if c.owner == nil {
			return false
		}
		c = c.owner.parent
	}
	return false
}

// Surface is the live editable report: header and dashboard input fields,
// derived displays, navigation state, and the dynamic containers.
type Surface struct {
	fields     map[Role]map[string]string
	displays   map[string]string
	containers map[Role]*Container
	order      []Role
	config     domain.ReportConfig
}

// NewSurface creates the empty scaffolding of a fresh report.
func NewSurface() *Surface {
	s := &Surface{
		fields: map[Role]map[string]string{
			RoleHeader:    {},
			RoleDashboard: {},
		},
		displays:   make(map[string]string),
		containers: make(map[Role]*Container),
	}
	roles := []Role{RoleWorkItems, RoleSummaries}
	for _, spec := range domain.TableSpecs() {
		roles = append(roles, TableRole(spec.ID))
	}
	roles = append(roles, RoleCostNotes, RoleMaterials, RoleSiteDocs, RoleComparison, RoleDocuments, RolePreviews)
	for _, r := range roles {
		s.containers[r] = &Container{Role: r, surface: s}
	}
	s.order = roles
	Recompute(s)
	return s
}

// Field returns an input field value and whether it has been set.
func (s *Surface) Field(role Role, name string) (string, bool) {
	v, ok := s.fields[role][name]
	return v, ok
}

// SetField writes an input field.
func (s *Surface) SetField(role Role, name, value string) {
	if s.fields[role] == nil {
		s.fields[role] = make(map[string]string)
	}
	s.fields[role][name] = value
}

// ReplaceFields swaps every field of role in one step.
func (s *Surface) ReplaceFields(role Role, values map[string]string) {
	next := make(map[string]string, len(values))
	for k, v := range values {
		next[k] = v
	}
	s.fields[role] = next
}

// Display returns a derived display value.
func (s *Surface) Display(name string) string {
	return s.displays[name]
}

// Config returns the navigation and print state.
func (s *Surface) Config() domain.ReportConfig {
	c := s.config
	c.PrintModules = slices.Clone(c.PrintModules)
	return c
}

// SetConfig replaces the navigation and print state.
func (s *Surface) SetConfig(c domain.ReportConfig) {
	c.PrintModules = slices.Clone(c.PrintModules)
	s.config = c
}

// Container returns the top-level container for role, or nil.
func (s *Surface) Container(role Role) *Container {
	return s.containers[role]
}

// Roles returns the top-level container roles in document order.
func (s *Surface) Roles() []Role {
	return slices.Clone(s.order)
}

// Replace atomically swaps the children of the top-level container for role
// with the children of staged. The previous children are detached. staged is
// left empty.
func (s *Surface) Replace(role Role, staged *Container) {
	live := s.containers[role]
	if live == nil {
		return
	}
	next := staged.children
	staged.children = nil
	live.Clear()
	for _, n := range next {
		n.parent = live
	}
	live.children = next
}

// Find returns the attached node with id, searching every container depth-first.
func (s *Surface) Find(id string) (*Node, bool) {
	var found *Node
	s.Walk(func(n *Node) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Attached reports whether n is still reachable from s.
func (s *Surface) Attached(n *Node) bool {
	return n != nil && n.parent != nil && n.parent.attached(s)
}

// AttachedContainer reports whether c is still reachable from s.
func (s *Surface) AttachedContainer(c *Container) bool {
	return c != nil && c.attached(s)
}

// Remove detaches n from its container. It returns false when n was already gone.
func (s *Surface) Remove(n *Node) bool {
	if !s.Attached(n) {
		return false
	}
	return n.parent.remove(n)
}

// Walk visits every attached node depth-first in document order until fn returns false.
func (s *Surface) Walk(fn func(n *Node) bool) {
	for _, r := range s.order {
		if !walkContainer(s.containers[r], fn) {
			return
		}
	}
}

// Walk visits the nodes of c and their slots depth-first until fn returns false.
func (c *Container) Walk(fn func(n *Node) bool) {
	walkContainer(c, fn)
}

// RenameMedia gives an attached media node a new ID. A document's pages
// group is re-pointed at the new ID.
func (s *Surface) RenameMedia(n *Node, id string) {
	if n.Media == nil {
		return
	}
	if n.Kind == KindDocument {
		for _, g := range s.containers[RolePreviews].children {
			if GroupRef(g) == n.Media.ID {
				g.Cells[0] = id
			}
		}
	}
	n.ID = id
	n.Media.ID = id
}

func walkContainer(c *Container, fn func(n *Node) bool) bool {
	for _, n := range c.children {
		if !fn(n) {
			return false
		}
		for _, name := range slotOrder(n) {
			if !walkContainer(n.Slots[name], fn) {
				return false
			}
		}
	}
	return true
}

func slotOrder(n *Node) []string {
	if len(n.Slots) == 0 {
		return nil
	}
	names := make([]string, 0, len(n.Slots))
	for _, name := range []string{SlotGrid, SlotBefore, SlotAfter} {
		if _, ok := n.Slots[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// MediaIDs returns the IDs of every attached media item in document order.
func (s *Surface) MediaIDs() []string {
	var ids []string
	s.Walk(func(n *Node) bool {
		if n.Media != nil {
			ids = append(ids, n.Media.ID)
		}
		return true
	})
	return ids
}

// PagesGroup returns the preview group for a document display name.
func (s *Surface) PagesGroup(name string) (*Node, bool) {
	for _, n := range s.containers[RolePreviews].children {
		if n.Title == name {
			return n, true
		}
	}
	return nil, false
}
