// Package schema holds the read-only table model supplied by the schema
// provider: table descriptors, per-column type tags and defaults, baseline
// rows, inherited-index declarations and value-link declarations. The store
// consumes this model and never mutates it.
package schema

import (
	"strconv"
	"strings"
)

// Object is one raw entry of a schema document, keyed by name. Tables,
// entries and columns are all objects; BuildTables stitches them together.
type Object struct {
	Name      string
	OID       []int
	Type      string
	Access    string
	Indexes   []string
	IndexFrom []IndexSource
	Rows      []map[string]Value
	Default   Value
}

// IndexSource names the module and column an inherited index comes from.
type IndexSource struct {
	Module string
	Column string
}

// Column describes one table column.
type Column struct {
	Name string
	OID  []int

	// Type is the declared type tag (e.g. "Integer32", "IpAddress").
	Type string

	Access  string
	Default Value

	// Inherited marks columns whose values come from another table via an
	// inherited-index declaration.
	Inherited bool
}

// Table is one table descriptor: its OID, entry OID, ordered index columns,
// column metadata, inherited-index sources and baseline rows.
type Table struct {
	Name     string
	Module   string
	OID      []int
	EntryOID []int

	// IndexColumns is the declared index column order.
	IndexColumns []string

	Columns   map[string]*Column
	IndexFrom []IndexSource

	// Baseline holds the statically declared rows. The first row doubles
	// as the table's default row for backfill and augment defaults.
	Baseline []map[string]Value
}

// OIDString returns the canonical dotted form of the table OID.
func (t *Table) OIDString() string { return dotted(t.OID) }

// IndexTypeTag returns the declared type tag for an index column, or the
// empty string when the column is not described in this table.
func (t *Table) IndexTypeTag(column string) string {
	if c, ok := t.Columns[column]; ok {
		return c.Type
	}
	return ""
}

// IsIndexColumn reports whether column is one of the declared index columns.
func (t *Table) IsIndexColumn(column string) bool {
	for _, c := range t.IndexColumns {
		if c == column {
			return true
		}
	}
	return false
}

// DefaultRow returns the table's default row (the first baseline row), or
// nil when the table declares none.
func (t *Table) DefaultRow() map[string]Value {
	if len(t.Baseline) == 0 {
		return nil
	}
	return t.Baseline[0]
}

// BaselineRow returns the baseline row whose index values match the given
// ones, comparing by display form. Tables without index columns match any
// first baseline row.
func (t *Table) BaselineRow(indexValues map[string]Value) (map[string]Value, bool) {
	if len(t.IndexColumns) == 0 {
		if len(t.Baseline) > 0 {
			return t.Baseline[0], true
		}
		return nil, false
	}
	for _, row := range t.Baseline {
		matches := true
		for _, col := range t.IndexColumns {
			if row[col].String() != indexValues[col].String() {
				matches = false
				break
			}
		}
		if matches {
			return row, true
		}
	}
	return nil, false
}

// Module is one loaded schema document.
type Module struct {
	Name    string
	Objects map[string]*Object
	Tables  []*Table
	Links   []LinkDecl
}

// ColumnTableOID infers the owning table OID of a named column by stripping
// the trailing entry and column path segments from the column's OID.
func (m *Module) ColumnTableOID(column string) (string, bool) {
	obj, ok := m.Objects[column]
	if !ok || len(obj.OID) < 2 {
		return "", false
	}
	return dotted(obj.OID[:len(obj.OID)-2]), true
}

// LinkDecl is a value-link declaration as it appears in a schema document,
// either with explicit endpoints or as a column-name shorthand.
type LinkDecl struct {
	ID            string
	Scope         string
	Match         string
	Description   string
	CreateMissing bool
	Endpoints     []EndpointDecl
	Columns       []string
}

// EndpointDecl is one declared link endpoint.
type EndpointDecl struct {
	TableOID string
	Column   string
}

// Set is the full collection of loaded modules with table lookup by
// canonical dotted OID.
type Set struct {
	modules []*Module
	byName  map[string]*Module
	byOID   map[string]*Table
}

// NewSet builds a Set from loaded modules. When two modules declare a table
// with the same OID the first registration wins.
func NewSet(modules ...*Module) *Set {
	s := &Set{
		byName: make(map[string]*Module),
		byOID:  make(map[string]*Table),
	}
	for _, m := range modules {
		s.modules = append(s.modules, m)
		s.byName[m.Name] = m
		for _, t := range m.Tables {
			key := t.OIDString()
			if _, exists := s.byOID[key]; !exists {
				s.byOID[key] = t
			}
		}
	}
	return s
}

// Module returns a loaded module by name.
func (s *Set) Module(name string) (*Module, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// Modules returns the loaded modules in load order.
func (s *Set) Modules() []*Module { return s.modules }

// Table returns a table descriptor by canonical dotted OID.
func (s *Set) Table(oid string) (*Table, bool) {
	t, ok := s.byOID[oid]
	return t, ok
}

// Tables returns every loaded table descriptor.
func (s *Set) Tables() []*Table {
	out := make([]*Table, 0, len(s.byOID))
	for _, m := range s.modules {
		out = append(out, m.Tables...)
	}
	return out
}

// HasTables reports whether any module declares a table at all. Marker
// pruning is skipped when no tables are loaded.
func (s *Set) HasTables() bool { return len(s.byOID) > 0 }

func dotted(parts []int) string {
	if len(parts) == 0 {
		return ""
	}
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = strconv.Itoa(p)
	}
	return strings.Join(strs, ".")
}
