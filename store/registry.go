package store

import (
	"sort"

	"go.uber.org/zap"

	"github.com/simwire/mibstate/schema"
)

// ChildSpec describes one augmented table hanging off a parent: rows added
// to or deleted from the parent are mirrored into the child.
type ChildSpec struct {
	// TableOID is the child table's canonical dotted OID.
	TableOID string

	// IndexColumns is the child's declared index column order.
	IndexColumns []string

	// InheritedColumns names the parent columns the child's index values
	// come from, in declaration order.
	InheritedColumns []string

	// Defaults holds the child's own non-index default columns, applied to
	// mirrored rows. Parent data never leaks into the child beyond its
	// index values.
	Defaults map[string]schema.Value
}

// Registry maps parent table OIDs to the augmented children mirroring them.
// Built once per schema load and read-only afterwards.
type Registry struct {
	children map[string][]ChildSpec
}

// BuildRegistry resolves every inherited-index declaration in the loaded
// schemas into parent->child edges. A declaration's source column is looked
// up inside the module it names, and the owning table is derived from the
// column's OID. Children whose sources span multiple parents, or whose
// index columns diverge from the inherited ones, are skipped with a warning.
func BuildRegistry(set *schema.Set, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{children: make(map[string][]ChildSpec)}

	for _, child := range set.Tables() {
		if len(child.IndexFrom) == 0 {
			continue
		}

		parentOID := ""
		inherited := make([]string, 0, len(child.IndexFrom))
		ok := true
		for _, src := range child.IndexFrom {
			mod, found := set.Module(src.Module)
			if !found {
				logger.Warn("augmented table references unknown module",
					zap.String("table", child.OIDString()),
					zap.String("module", src.Module))
				ok = false
				break
			}
			srcTable, found := mod.ColumnTableOID(src.Column)
			if !found {
				logger.Warn("augmented table references unknown column",
					zap.String("table", child.OIDString()),
					zap.String("module", src.Module),
					zap.String("column", src.Column))
				ok = false
				break
			}
			if parentOID != "" && parentOID != srcTable {
				logger.Warn("augmented table spans multiple parents, skipping",
					zap.String("table", child.OIDString()),
					zap.Strings("parents", []string{parentOID, srcTable}))
				ok = false
				break
			}
			parentOID = srcTable
			inherited = append(inherited, src.Column)
		}
		if !ok || parentOID == "" {
			continue
		}

		if _, found := set.Table(parentOID); !found {
			logger.Warn("augmented table parent not loaded, skipping",
				zap.String("table", child.OIDString()),
				zap.String("parent", parentOID))
			continue
		}
		if !sameColumns(child.IndexColumns, inherited) {
			logger.Warn("augmented table index differs from inherited columns, skipping",
				zap.String("table", child.OIDString()),
				zap.Strings("index", child.IndexColumns),
				zap.Strings("inherited", inherited))
			continue
		}

		defaults := make(map[string]schema.Value)
		for col, val := range child.DefaultRow() {
			if child.IsIndexColumn(col) {
				continue
			}
			defaults[col] = val
		}

		r.children[parentOID] = append(r.children[parentOID], ChildSpec{
			TableOID:         child.OIDString(),
			IndexColumns:     append([]string{}, child.IndexColumns...),
			InheritedColumns: inherited,
			Defaults:         defaults,
		})
	}

	for _, specs := range r.children {
		sort.Slice(specs, func(i, j int) bool { return specs[i].TableOID < specs[j].TableOID })
	}
	return r
}

// ChildrenOf returns the augmented children of a parent table.
func (r *Registry) ChildrenOf(parentOID string) []ChildSpec {
	return r.children[parentOID]
}

// HasChildren reports whether any augmented table mirrors the parent.
func (r *Registry) HasChildren(parentOID string) bool {
	return len(r.children[parentOID]) > 0
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string{}, a...)
	bs := append([]string{}, b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
