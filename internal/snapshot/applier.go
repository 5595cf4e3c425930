package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/designpm/designpm-core/internal/codec"
	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/editor"
)

// ApplyReport describes what an apply did besides succeeding.
type ApplyReport struct {
	Warnings       []Warning `json:"warnings,omitempty"`
	SkippedMedia   []string  `json:"skippedMedia,omitempty"`
	FailedSections []string  `json:"failedSections,omitempty"`
	Previews       int       `json:"previews"`
}

// Incomplete reports whether defaults were substituted or anything was skipped.
func (r *ApplyReport) Incomplete() bool {
	return len(r.Warnings) > 0 || len(r.SkippedMedia) > 0 || len(r.FailedSections) > 0
}

// Applier rebuilds a surface from a snapshot.
type Applier struct {
	builders   *editor.Builders
	dispatcher *editor.Dispatcher
	previews   editor.PreviewScheduler
	logger     *slog.Logger
}

// ApplierConfig holds configuration for the applier.
type ApplierConfig struct {
	Builders   *editor.Builders
	Dispatcher *editor.Dispatcher
	Previews   editor.PreviewScheduler // optional
	Logger     *slog.Logger
}

// NewApplier creates an applier.
func NewApplier(cfg ApplierConfig) *Applier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	builders := cfg.Builders
	if builders == nil {
		builders = editor.NewBuilders(nil, nil)
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = editor.NewDispatcher(builders)
	}
	return &Applier{
		builders:   builders,
		dispatcher: dispatcher,
		previews:   cfg.Previews,
		logger:     logger,
	}
}

// ApplyJSON decodes data and applies it. A decode failure leaves s untouched.
func (a *Applier) ApplyJSON(ctx context.Context, s *editor.Surface, data []byte) (*domain.DocumentSnapshot, *ApplyReport, error) {
	snap, warnings, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	report, err := a.Apply(ctx, s, snap)
	if err != nil {
		return nil, nil, err
	}
	report.Warnings = append(warnings, report.Warnings...)
	return snap, report, nil
}

// Apply replaces the contents of s with snap.
//
// The snapshot is validated before anything is touched. Each section is then
// built off-surface and swapped in whole, in document order: header,
// dashboard, summaries, tables, cost notes, media sections, comparison rows,
// documents with their previews, navigation state. A section that fails
// keeps its previous contents and the remaining sections still apply.
// Handlers are re-bound and derived displays recomputed once at the end.
func (a *Applier) Apply(ctx context.Context, s *editor.Surface, snap *domain.DocumentSnapshot) (*ApplyReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: empty snapshot", domain.ErrMalformedSnapshot)
	}
	if snap.Metadata.Type != domain.DocumentType {
		return nil, fmt.Errorf("%w: document type %q", domain.ErrMalformedSnapshot, snap.Metadata.Type)
	}
	if err := checkVersion(snap.Metadata.Version); err != nil {
		return nil, err
	}

	run := &applyRun{
		Applier: a,
		surface: s,
		report:  &ApplyReport{},
		seenIDs: make(map[string]bool),
		logger:  a.logger.With("report_id", snap.Metadata.ReportID),
	}

	run.section(SectionHeader, func() { run.header(snap.Header) })
	run.section(SectionDashboard, func() { run.dashboard(snap.Dashboard) })
	run.section(SectionSummaries, func() { run.notes(editor.RoleSummaries, snap.Summaries) })
	for _, spec := range domain.TableSpecs() {
		run.section(SectionTables+"."+string(spec.ID), func() { run.table(spec, snap.Tables[spec.ID]) })
	}
	run.section(SectionCostNotes, func() { run.notes(editor.RoleCostNotes, snap.CostNotes) })
	run.section(SectionMediaSections, func() { run.mediaSections(snap.MediaSections) }, editor.RoleMaterials, editor.RoleSiteDocs)
	run.section(SectionComparisonRows, func() { run.comparison(snap.ComparisonRows) }, editor.RoleComparison)
	run.section(SectionDocuments, func() { run.documents(snap.Documents) }, editor.RoleDocuments)
	run.section(SectionConfig, func() { s.SetConfig(snap.Config) })

	a.dispatcher.Rebind()
	editor.Recompute(s)

	if run.report.Incomplete() {
		run.logger.Warn("snapshot applied with problems",
			"warnings", len(run.report.Warnings),
			"skipped_media", len(run.report.SkippedMedia),
			"failed_sections", run.report.FailedSections,
		)
	}
	return run.report, nil
}

type applyRun struct {
	*Applier
	surface *editor.Surface
	report  *ApplyReport
	seenIDs map[string]bool
	logger  *slog.Logger
}

// section runs one section's build-and-swap. A panic or error inside build
// marks the section failed; since the swap is the last step, the live
// container is either fully replaced or untouched. The media in roles is
// whatever stays live after a failure, so it keeps its claim on media IDs.
func (r *applyRun) section(name string, build func(), roles ...editor.Role) {
	claimed := maps.Clone(r.seenIDs)
	defer func() {
		if rec := recover(); rec != nil {
			r.report.FailedSections = append(r.report.FailedSections, name)
			r.logger.Error("section restore failed", "section", name, "error", fmt.Sprint(rec))
			r.seenIDs = claimed
			r.retain(name, roles)
		}
	}()
	build()
}

// retain claims the media IDs of live containers kept by a failed section.
// A kept item whose ID an earlier section already restored is renamed.
func (r *applyRun) retain(section string, roles []editor.Role) {
	for _, role := range roles {
		live := r.surface.Container(role)
		if live == nil {
			continue
		}
		live.Walk(func(n *editor.Node) bool {
			if n.Media == nil {
				return true
			}
			if r.seenIDs[n.Media.ID] {
				old := n.Media.ID
				r.surface.RenameMedia(n, r.builders.NewID())
				r.warn(section, "duplicate media id %s reassigned to %s", old, n.Media.ID)
			}
			r.seenIDs[n.Media.ID] = true
			return true
		})
	}
}

func (r *applyRun) warn(section, format string, args ...any) {
	r.report.Warnings = append(r.report.Warnings, Warning{Section: section, Message: fmt.Sprintf(format, args...)})
}

func (r *applyRun) header(h domain.Header) {
	values := make(map[string]string, len(h))
	for _, name := range domain.HeaderFields {
		if v, ok := h[name]; ok {
			values[name] = v
		}
	}
	r.surface.ReplaceFields(editor.RoleHeader, values)
}

func (r *applyRun) dashboard(d domain.Dashboard) {
	staged := editor.NewStaging(editor.RoleWorkItems)
	for _, item := range d.WorkItems {
		r.builders.WorkItem(staged, item)
	}

	if d.TotalDays < 0 || d.WorkedDays < 0 || d.Workers < 0 || d.BaseContract.IsNegative() || d.AddContract.IsNegative() {
		r.warn(SectionDashboard, "negative values clamped to 0")
	}
	values := map[string]string{
		editor.FieldTotalDays:    strconv.Itoa(max(0, d.TotalDays)),
		editor.FieldWorkedDays:   strconv.Itoa(max(0, d.WorkedDays)),
		editor.FieldWorkers:      strconv.Itoa(max(0, d.Workers)),
		editor.FieldBaseContract: decimal.Max(d.BaseContract, decimal.Zero).String(),
		editor.FieldAddContract:  decimal.Max(d.AddContract, decimal.Zero).String(),
	}

	r.surface.ReplaceFields(editor.RoleDashboard, values)
	r.surface.Replace(editor.RoleWorkItems, staged)
}

func (r *applyRun) notes(role editor.Role, notes []domain.Note) {
	staged := editor.NewStaging(role)
	for _, n := range notes {
		r.builders.Note(staged, n)
	}
	r.surface.Replace(role, staged)
}

func (r *applyRun) table(spec domain.TableSpec, rows []domain.TableRow) {
	section := SectionTables + "." + string(spec.ID)
	staged := editor.NewStaging(editor.TableRole(spec.ID))
	for i, row := range rows {
		if _, changed := spec.Normalize(row); changed {
			r.warn(section, "row %d has %d cells, expected %d", i, len(row), spec.Columns)
		}
		r.builders.TableRow(staged, spec, row)
	}
	r.surface.Replace(editor.TableRole(spec.ID), staged)
}

func (r *applyRun) mediaSections(sections []domain.MediaSection) {
	staged := map[domain.MediaGroup]*editor.Container{
		domain.GroupMaterials: editor.NewStaging(editor.RoleMaterials),
		domain.GroupSiteDocs:  editor.NewStaging(editor.RoleSiteDocs),
	}
	for _, sec := range sections {
		target, ok := staged[sec.Group]
		if !ok {
			target = staged[domain.GroupMaterials]
		}
		n := r.builders.MediaSection(target, sec.Title)
		for _, item := range sec.Items {
			if it, ok := r.media(SectionMediaSections, item); ok {
				r.builders.Thumb(n.Slot(editor.SlotGrid), it)
			}
		}
	}
	r.surface.Replace(editor.RoleMaterials, staged[domain.GroupMaterials])
	r.surface.Replace(editor.RoleSiteDocs, staged[domain.GroupSiteDocs])
}

func (r *applyRun) comparison(rows []domain.ComparisonRow) {
	staged := editor.NewStaging(editor.RoleComparison)
	for _, row := range rows {
		n := r.builders.ComparisonRow(staged)
		slots := []struct {
			name string
			item *domain.MediaItem
		}{{editor.SlotBefore, row.Before}, {editor.SlotAfter, row.After}}
		for _, slot := range slots {
			if slot.item == nil {
				continue
			}
			if it, ok := r.media(SectionComparisonRows, *slot.item); ok {
				if _, err := r.builders.SetSlot(n, slot.name, it); err != nil {
					panic(err)
				}
			}
		}
	}
	r.surface.Replace(editor.RoleComparison, staged)
}

// documents rebuilds the document list and its preview area together.
// Preview rendering is scheduled only after both are live.
func (r *applyRun) documents(docs []domain.MediaItem) {
	deferred := &deferredPreviews{}
	builders := r.builders.WithPreviews(deferred)

	stagedDocs := editor.NewStaging(editor.RoleDocuments)
	stagedPages := editor.NewStaging(editor.RolePreviews)
	for _, doc := range docs {
		if it, ok := r.media(SectionDocuments, doc); ok {
			builders.Document(stagedDocs, stagedPages, it)
		}
	}
	r.surface.Replace(editor.RoleDocuments, stagedDocs)
	r.surface.Replace(editor.RolePreviews, stagedPages)

	r.report.Previews = len(deferred.jobs)
	if r.previews == nil {
		return
	}
	for _, job := range deferred.jobs {
		r.previews.SchedulePreview(job.groupID, job.doc)
	}
}

// media validates one item's payload and gives it an ID unique in this report.
func (r *applyRun) media(section string, item domain.MediaItem) (domain.MediaItem, bool) {
	if _, err := codec.Decode(item.Content); err != nil {
		r.report.SkippedMedia = append(r.report.SkippedMedia, item.ID)
		r.logger.Warn("media item skipped", "section", section, "media_id", item.ID, "name", item.DisplayName, "error", err)
		return item, false
	}
	if item.ID == "" || r.seenIDs[item.ID] {
		old := item.ID
		item.ID = r.builders.NewID()
		if old != "" {
			r.warn(section, "duplicate media id %s reassigned to %s", old, item.ID)
		}
	}
	r.seenIDs[item.ID] = true
	return item, true
}

type previewJob struct {
	groupID string
	doc     domain.MediaItem
}

type deferredPreviews struct {
	jobs []previewJob
}

func (d *deferredPreviews) SchedulePreview(groupID string, doc domain.MediaItem) {
	d.jobs = append(d.jobs, previewJob{groupID: groupID, doc: doc})
}
