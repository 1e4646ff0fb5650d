package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseModule decodes one schema document. Documents are YAML (JSON is a
// YAML subset, so legacy schema.json files parse unchanged) and come in two
// shapes: the structured {"objects": {...}, "links": [...]} form and the
// old flat object map.
func ParseModule(name string, data []byte) (*Module, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: parse module %s: %w", name, err)
	}

	rawObjects := doc
	if objs, ok := doc["objects"].(map[string]any); ok {
		rawObjects = objs
	}

	m := &Module{
		Name:    name,
		Objects: make(map[string]*Object),
	}

	for objName, raw := range rawObjects {
		info, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		obj := parseObject(objName, info)
		if obj != nil {
			m.Objects[obj.Name] = obj
		}
	}

	m.Tables = buildTables(m)

	if rawLinks, ok := doc["links"].([]any); ok {
		m.Links = parseLinkDecls(rawLinks)
	}

	return m, nil
}

// LoadFile parses a single schema document; the module name is the file
// name without its extension.
func LoadFile(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return ParseModule(name, data)
}

// LoadDir parses every .json, .yaml and .yml document in dir into a Set.
func LoadDir(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var modules []*Module
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		m, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return NewSet(modules...), nil
}

func parseObject(name string, info map[string]any) *Object {
	obj := &Object{
		Name:   name,
		OID:    parseOIDList(info["oid"]),
		Type:   stringField(info, "type"),
		Access: stringField(info, "access"),
	}

	if raw, ok := info["indexes"].([]any); ok {
		for _, idx := range raw {
			if idx == nil {
				continue
			}
			obj.Indexes = append(obj.Indexes, fmt.Sprintf("%v", idx))
		}
	} else if idx, ok := info["index"]; ok && idx != nil {
		obj.Indexes = []string{fmt.Sprintf("%v", idx)}
	}

	if raw, ok := info["index_from"].([]any); ok {
		for _, entry := range raw {
			if src, ok := parseIndexSource(entry); ok {
				obj.IndexFrom = append(obj.IndexFrom, src)
			}
		}
	}

	if raw, ok := info["rows"].([]any); ok {
		for _, rowRaw := range raw {
			rowMap, ok := rowRaw.(map[string]any)
			if !ok {
				continue
			}
			row := make(map[string]Value, len(rowMap))
			for col, val := range rowMap {
				row[col] = ValueOf(val)
			}
			obj.Rows = append(obj.Rows, row)
		}
	}

	if def, ok := info["default"]; ok {
		obj.Default = ValueOf(def)
	} else if init, ok := info["initial"]; ok {
		obj.Default = ValueOf(init)
	}

	return obj
}

// parseIndexSource accepts the two declared shapes of an inherited-index
// entry: {"mib": ..., "column": ...} and ["MIB-NAME", ..., "column"].
func parseIndexSource(entry any) (IndexSource, bool) {
	switch x := entry.(type) {
	case map[string]any:
		mib, _ := x["mib"].(string)
		column, _ := x["column"].(string)
		if mib != "" && column != "" {
			return IndexSource{Module: mib, Column: column}, true
		}
	case []any:
		if len(x) >= 2 {
			mib, mok := x[0].(string)
			column, cok := x[len(x)-1].(string)
			if mok && cok {
				return IndexSource{Module: mib, Column: column}, true
			}
		}
	}
	return IndexSource{}, false
}

func buildTables(m *Module) []*Table {
	var names []string
	for name := range m.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	var tables []*Table
	for _, name := range names {
		obj := m.Objects[name]
		if !isTableObject(obj) || len(obj.OID) == 0 {
			continue
		}
		entry := findEntry(m, obj)
		if entry == nil {
			continue
		}

		t := &Table{
			Name:         obj.Name,
			Module:       m.Name,
			OID:          obj.OID,
			EntryOID:     entry.OID,
			IndexColumns: entry.Indexes,
			IndexFrom:    entry.IndexFrom,
			Columns:      make(map[string]*Column),
			Baseline:     obj.Rows,
		}

		inherited := make(map[string]bool)
		for _, src := range entry.IndexFrom {
			inherited[src.Column] = true
		}

		for _, colName := range names {
			col := m.Objects[colName]
			if len(col.OID) != len(entry.OID)+1 {
				continue
			}
			if !oidHasPrefix(col.OID, entry.OID) {
				continue
			}
			t.Columns[col.Name] = &Column{
				Name:      col.Name,
				OID:       col.OID,
				Type:      col.Type,
				Access:    col.Access,
				Default:   col.Default,
				Inherited: inherited[col.Name],
			}
		}

		tables = append(tables, t)
	}
	return tables
}

func isTableObject(obj *Object) bool {
	if obj.Type == "MibTable" {
		return true
	}
	return obj.Type == "" && strings.HasSuffix(obj.Name, "Table")
}

// findEntry locates the table's entry row object: preferred by OID (entry
// is table OID + .1), falling back to the <prefix>Entry naming convention.
func findEntry(m *Module, table *Object) *Object {
	want := append(append([]int{}, table.OID...), 1)
	for _, obj := range m.Objects {
		if obj.Type != "MibTableRow" && !strings.HasSuffix(obj.Name, "Entry") {
			continue
		}
		if oidEqual(obj.OID, want) {
			return obj
		}
	}
	if strings.HasSuffix(table.Name, "Table") {
		entryName := strings.TrimSuffix(table.Name, "Table") + "Entry"
		if obj, ok := m.Objects[entryName]; ok && len(obj.OID) > 0 {
			return obj
		}
	}
	return nil
}

func parseLinkDecls(raw []any) []LinkDecl {
	var decls []LinkDecl
	for _, entry := range raw {
		info, ok := entry.(map[string]any)
		if !ok {
			// Malformed entries surface at link load time; keep the raw
			// slot so numbering stays stable for fallback ids.
			decls = append(decls, LinkDecl{})
			continue
		}
		decl := LinkDecl{
			ID:          stringField(info, "id"),
			Scope:       stringField(info, "scope"),
			Match:       stringField(info, "match"),
			Description: stringField(info, "description"),
		}
		if cm, ok := info["create_missing"].(bool); ok {
			decl.CreateMissing = cm
		}
		if eps, ok := info["endpoints"].([]any); ok {
			for _, epRaw := range eps {
				epMap, ok := epRaw.(map[string]any)
				if !ok {
					continue
				}
				decl.Endpoints = append(decl.Endpoints, EndpointDecl{
					TableOID: stringField(epMap, "table_oid"),
					Column:   stringField(epMap, "column"),
				})
			}
		} else if cols, ok := info["columns"].([]any); ok {
			for _, c := range cols {
				if s, ok := c.(string); ok {
					decl.Columns = append(decl.Columns, s)
				}
			}
		}
		decls = append(decls, decl)
	}
	return decls
}

func parseOIDList(raw any) []int {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		switch n := item.(type) {
		case int:
			out = append(out, n)
		case int64:
			out = append(out, int(n))
		case float64:
			out = append(out, int(n))
		default:
			return nil
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func oidEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	return oidHasPrefix(a, b)
}

func oidHasPrefix(oid, prefix []int) bool {
	if len(oid) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if oid[i] != p {
			return false
		}
	}
	return true
}
