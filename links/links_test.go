package links

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/simwire/mibstate/schema"
)

const (
	tableA = "1.3.6.1.2.1.2.2"
	tableB = "1.3.6.1.2.1.31.1.1"
)

func TestAddRejectsTooFewEndpoints(t *testing.T) {
	m := NewManager(nil)
	err := m.Add(&Link{
		ID:        "solo",
		Endpoints: []Endpoint{{TableOID: tableA, Column: "ifDescr"}},
	})
	if err != ErrTooFewEndpoints {
		t.Fatalf("Add = %v, want ErrTooFewEndpoints", err)
	}
}

func TestTargetsPerInstance(t *testing.T) {
	m := NewManager(nil)
	if err := m.Add(&Link{
		ID:    "sync",
		Scope: ScopePerInstance,
		Endpoints: []Endpoint{
			{TableOID: tableA, Column: "ifDescr"},
			{TableOID: tableB, Column: "ifName"},
		},
	}); err != nil {
		t.Fatal(err)
	}

	got := m.Targets("ifDescr", tableA)
	want := []Endpoint{{TableOID: tableB, Column: "ifName"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Targets mismatch (-want +got):\n%s", diff)
	}

	if got := m.Targets("ifDescr", "9.9.9"); got != nil {
		t.Errorf("Targets from unrelated table = %v, want none", got)
	}
	if got := m.Targets("ifName", tableB); len(got) != 1 || got[0].Column != "ifDescr" {
		t.Errorf("reverse Targets = %v", got)
	}
}

func TestTargetsGlobalAndDedup(t *testing.T) {
	m := NewManager(nil)
	if err := m.Add(&Link{
		ID:        "global",
		Scope:     ScopeGlobal,
		Endpoints: []Endpoint{{Column: "sysName"}, {Column: "hostName"}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(&Link{
		ID:        "global2",
		Scope:     ScopeGlobal,
		Endpoints: []Endpoint{{Column: "sysName"}, {Column: "hostName"}},
	}); err != nil {
		t.Fatal(err)
	}

	got := m.Targets("sysName", "any.table")
	if len(got) != 1 || got[0].Column != "hostName" {
		t.Errorf("Targets = %v, want single hostName", got)
	}
}

func TestPropagationGuard(t *testing.T) {
	m := NewManager(nil)
	key := tableA + ":5"

	if !m.ShouldPropagate("ifDescr", key) {
		t.Fatal("fresh cell should propagate")
	}
	m.BeginUpdate("ifDescr", key)
	if m.ShouldPropagate("ifDescr", key) {
		t.Fatal("in-flight cell should not propagate")
	}
	if !m.ShouldPropagate("ifDescr", tableA+":6") {
		t.Fatal("other instance should still propagate")
	}
	m.EndUpdate("ifDescr", key)
	if !m.ShouldPropagate("ifDescr", key) {
		t.Fatal("guard not cleared")
	}
}

func TestRemoveOriginFilter(t *testing.T) {
	m := NewManager(nil)
	m.Add(&Link{
		ID:        "schema-link",
		Origin:    OriginSchema,
		Endpoints: []Endpoint{{Column: "a"}, {Column: "b"}},
	})

	if m.Remove("schema-link", OriginState) {
		t.Fatal("state-filtered remove deleted a schema link")
	}
	if _, ok := m.Get("schema-link"); !ok {
		t.Fatal("schema link gone")
	}
	if !m.Remove("schema-link", "") {
		t.Fatal("unfiltered remove failed")
	}
	if got := m.Targets("a", ""); got != nil {
		t.Errorf("Targets after remove = %v", got)
	}
}

func TestExportStateOnly(t *testing.T) {
	m := NewManager(nil)
	m.Add(&Link{ID: "s1", Origin: OriginSchema, Endpoints: []Endpoint{{Column: "a"}, {Column: "b"}}})
	m.Add(&Link{ID: "u1", Origin: OriginState, Endpoints: []Endpoint{{Column: "c"}, {Column: "d"}}})

	all := m.Export(true)
	if len(all) != 2 {
		t.Fatalf("Export(true) = %d records, want 2", len(all))
	}

	stateOnly := m.Export(false)
	if len(stateOnly) != 1 || stateOnly[0].ID != "u1" {
		t.Fatalf("Export(false) = %+v, want only u1", stateOnly)
	}
	if stateOnly[0].Type != "bidirectional" || stateOnly[0].Source != "state" {
		t.Errorf("record = %+v", stateOnly[0])
	}
}

func TestLoadStateSkipsMalformed(t *testing.T) {
	m := NewManager(nil)
	m.LoadState([]Record{
		{ID: "good", Endpoints: []EndpointRecord{
			{TableOID: tableA, Column: "ifDescr"},
			{TableOID: tableB, Column: "ifName"},
		}},
		{ID: "bad", Endpoints: []EndpointRecord{{Column: "lonely"}}},
		{Columns: []string{"x", "y"}},
	})

	if _, ok := m.Get("good"); !ok {
		t.Error("good record not loaded")
	}
	if _, ok := m.Get("bad"); ok {
		t.Error("malformed record loaded")
	}
	l, ok := m.Get("state_link_3")
	if !ok {
		t.Fatal("fallback id not assigned")
	}
	if l.Origin != OriginState {
		t.Errorf("origin = %v, want state", l.Origin)
	}
}

const linkedMIB = `
objects:
  ifTable:
    oid: [1, 3, 6, 1, 2, 1, 2, 2]
    type: MibTable
  ifEntry:
    oid: [1, 3, 6, 1, 2, 1, 2, 2, 1]
    type: MibTableRow
    indexes: [ifIndex]
  ifIndex:
    oid: [1, 3, 6, 1, 2, 1, 2, 2, 1, 1]
    type: Integer32
  ifDescr:
    oid: [1, 3, 6, 1, 2, 1, 2, 2, 1, 2]
    type: DisplayString
links:
  - id: descr-alias
    scope: per-instance
    columns: [ifDescr, ifAlias]
  - id: broken
    columns: [onlyOne]
`

func TestLoadSchemaInfersTables(t *testing.T) {
	mod, err := schema.ParseModule("IF-MIB", []byte(linkedMIB))
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	m := NewManager(nil)
	m.LoadSchema(schema.NewSet(mod))

	l, ok := m.Get("descr-alias")
	if !ok {
		t.Fatal("schema link not loaded")
	}
	if l.Origin != OriginSchema {
		t.Errorf("origin = %v", l.Origin)
	}
	if l.Endpoints[0].TableOID != tableA {
		t.Errorf("ifDescr endpoint table = %q, want inferred %q", l.Endpoints[0].TableOID, tableA)
	}
	// ifAlias is not declared in the module, so its endpoint stays unqualified.
	if l.Endpoints[1].TableOID != "" {
		t.Errorf("ifAlias endpoint table = %q, want empty", l.Endpoints[1].TableOID)
	}

	if _, ok := m.Get("broken"); ok {
		t.Error("single-endpoint schema link loaded")
	}
}
