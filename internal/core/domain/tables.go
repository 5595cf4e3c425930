package domain

// TableID names a data table.
type TableID string

const (
	TableProgress TableID = "progress"
	TableQuality  TableID = "quality"
	TableRisk     TableID = "risk"
)

// TableSpec fixes a table's column count and the template used for a blank row.
type TableSpec struct {
	ID       TableID
	Columns  int
	Template TableRow
}

var tableSpecs = []TableSpec{
	{ID: TableProgress, Columns: 4, Template: TableRow{"-", "-", "-", "0%"}},
	{ID: TableQuality, Columns: 3, Template: TableRow{"主题", "问题", "解决"}},
	{ID: TableRisk, Columns: 5, Template: TableRow{"描述", "解决", "执行方", "最后期限", "状态"}},
}

// TableSpecs returns the known tables in document order.
func TableSpecs() []TableSpec {
	out := make([]TableSpec, len(tableSpecs))
	copy(out, tableSpecs)
	return out
}

// LookupTable returns the spec for id.
func LookupTable(id TableID) (TableSpec, bool) {
	for _, s := range tableSpecs {
		if s.ID == id {
			return s, true
		}
	}
	return TableSpec{}, false
}

// BlankRow returns a fresh copy of the template row.
func (s TableSpec) BlankRow() TableRow {
	row := make(TableRow, len(s.Template))
	copy(row, s.Template)
	return row
}

// Normalize pads a short row with empty cells and drops cells beyond the column count.
// changed reports whether the row had the wrong width.
func (s TableSpec) Normalize(row TableRow) (out TableRow, changed bool) {
	out = make(TableRow, s.Columns)
	copy(out, row)
	return out, len(row) != s.Columns
}
