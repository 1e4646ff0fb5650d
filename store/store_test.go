package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/simwire/mibstate/links"
	"github.com/simwire/mibstate/schema"
)

const (
	ifTableOID  = "1.3.6.1.2.1.2.2"
	ifXTableOID = "1.3.6.1.2.1.31.1.1"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		StatePath:         filepath.Join(dir, "mib_state.json"),
		LegacyScalarsPath: filepath.Join(dir, "overrides.json"),
		LegacyTablesPath:  filepath.Join(dir, "table_instances.json"),
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	set := schema.NewSet(
		mustModule(t, "IF-MIB", parentDoc),
		mustModule(t, "IF-X-MIB", childDoc),
	)
	return New(set, testConfig(t), nil)
}

func idx(n int64) map[string]schema.Value {
	return map[string]schema.Value{"ifIndex": schema.IntValue(n)}
}

func TestAddInstanceMergeLayering(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddInstance(ifTableOID, idx(5), map[string]schema.Value{
		"ifDescr": schema.TextValue("eth5"),
	})
	if err != nil {
		t.Fatalf("AddInstance: %v", err)
	}
	if id != ifTableOID+".5" {
		t.Errorf("instance id = %q", id)
	}

	row, err := s.Instance(ifTableOID, "5")
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	want := Row{
		"ifIndex": schema.IntValue(5),
		"ifDescr": schema.TextValue("eth5"),
		"ifType":  schema.IntValue(6),
		"ifMtu":   schema.IntValue(1500),
	}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestAddInstanceBaselineOverridesDefaults(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddInstance(ifTableOID, idx(1), nil); err != nil {
		t.Fatalf("AddInstance: %v", err)
	}
	row, err := s.Instance(ifTableOID, "1")
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	if got := row["ifType"]; !got.Equal(schema.IntValue(24)) {
		t.Errorf("ifType = %v, want baseline 24 over default 6", got)
	}
	if got := row["ifDescr"]; !got.Equal(schema.TextValue("lo")) {
		t.Errorf("ifDescr = %v", got)
	}
}

func TestAddInstanceValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddInstance(ifTableOID, nil, nil)
	if !errors.Is(err, ErrMissingIndexColumn) {
		t.Errorf("missing index: err = %v", err)
	}

	_, err = s.AddInstance("9.9.9.9", idx(1), nil)
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("unknown table: err = %v", err)
	}

	// Nothing was stored or propagated.
	if got := s.Instances(ifTableOID); len(got) != 0 {
		t.Errorf("instances after failed adds = %v", got)
	}
}

func TestAddInstanceIdempotent(t *testing.T) {
	s := newTestStore(t)

	cols := map[string]schema.Value{"ifDescr": schema.TextValue("eth5")}
	if _, err := s.AddInstance(ifTableOID, idx(5), cols); err != nil {
		t.Fatal(err)
	}
	first, _ := s.Instance(ifTableOID, "5")
	if _, err := s.AddInstance(ifTableOID, idx(5), cols); err != nil {
		t.Fatal(err)
	}
	second, _ := s.Instance(ifTableOID, "5")

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated add diverged (-first +second):\n%s", diff)
	}
	if got := len(s.Instances(ifTableOID)); got != 1 {
		t.Errorf("instance count = %d, want 1", got)
	}
}

func TestAugmentedAddMirrorsChild(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddInstance(ifTableOID, idx(5), nil); err != nil {
		t.Fatal(err)
	}

	child, err := s.Instance(ifXTableOID, "5")
	if err != nil {
		t.Fatalf("child instance missing: %v", err)
	}
	if got := child["ifIndex"]; !got.Equal(schema.IntValue(5)) {
		t.Errorf("child ifIndex = %v", got)
	}
	// Child rows carry the child's own defaults, never parent columns.
	if _, leaked := child["ifMtu"]; leaked {
		t.Error("parent column leaked into child row")
	}
	if _, ok := child["ifName"]; !ok {
		t.Error("child default ifName missing")
	}
}

func TestAugmentedDeleteMirrorsChild(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddInstance(ifTableOID, idx(5), nil); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteInstance(ifTableOID, idx(5)); err != nil {
		t.Fatalf("DeleteInstance: %v", err)
	}

	if _, err := s.Instance(ifTableOID, "5"); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("parent still present: %v", err)
	}
	if _, err := s.Instance(ifXTableOID, "5"); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("child still present: %v", err)
	}
	// Instance 5 is not in any baseline, so no marker appears.
	if markers := s.DeletionMarkers(); len(markers) != 0 {
		t.Errorf("markers = %v, want none", markers)
	}
}

func TestDeleteUnknownInstance(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteInstance(ifTableOID, idx(99))
	if !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("err = %v, want ErrInstanceNotFound", err)
	}
}

func TestBaselineDeleteMarksOnce(t *testing.T) {
	s := newTestStore(t)

	if err := s.DeleteInstance(ifTableOID, idx(1)); err != nil {
		t.Fatalf("DeleteInstance: %v", err)
	}
	// The child table declares instance 1 in its baseline too, so the
	// mirrored delete marks it as well.
	want := []string{ifTableOID + ".1", ifXTableOID + ".1"}
	if diff := cmp.Diff(want, s.DeletionMarkers()); diff != "" {
		t.Errorf("markers mismatch (-want +got):\n%s", diff)
	}

	// Deleting an already-marked baseline instance is a no-op.
	if err := s.DeleteInstance(ifTableOID, idx(1)); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if got := s.DeletionMarkers(); len(got) != 2 {
		t.Errorf("markers after repeat delete = %v", got)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.DeleteInstance(ifTableOID, idx(1)); err != nil {
		t.Fatal(err)
	}

	restored, err := s.RestoreInstance(ifTableOID, idx(1), nil)
	if err != nil {
		t.Fatalf("RestoreInstance: %v", err)
	}
	if !restored {
		t.Fatal("restore of marked instance returned false")
	}
	if s.IsDeleted(ifTableOID + ".1") {
		t.Error("marker survived restore")
	}
	row, err := s.Instance(ifTableOID, "1")
	if err != nil {
		t.Fatalf("restored instance missing: %v", err)
	}
	if got := row["ifDescr"]; !got.Equal(schema.TextValue("lo")) {
		t.Errorf("restored ifDescr = %v", got)
	}

	// Not marked anymore: restore is a no-op reporting false.
	restored, err = s.RestoreInstance(ifTableOID, idx(1), nil)
	if err != nil || restored {
		t.Errorf("second restore = %v, %v, want false, nil", restored, err)
	}
}

func TestAddClearsMarker(t *testing.T) {
	s := newTestStore(t)

	if err := s.DeleteInstance(ifTableOID, idx(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddInstance(ifTableOID, idx(1), nil); err != nil {
		t.Fatal(err)
	}
	if s.IsDeleted(ifTableOID + ".1") {
		t.Error("add did not clear the deletion marker")
	}
}

func TestUpdateCellsPropagatesLinks(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddInstance(ifTableOID, idx(5), nil); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateCells(ifTableOID, "5", map[string]schema.Value{
		"ifDescr": schema.TextValue("wan0"),
	}); err != nil {
		t.Fatalf("UpdateCells: %v", err)
	}

	child, _ := s.Instance(ifXTableOID, "5")
	if got := child["ifName"]; !got.Equal(schema.TextValue("wan0")) {
		t.Errorf("linked ifName = %v, want wan0", got)
	}

	// The link is bidirectional and terminates.
	if err := s.UpdateCells(ifXTableOID, "5", map[string]schema.Value{
		"ifName": schema.TextValue("lan0"),
	}); err != nil {
		t.Fatalf("reverse UpdateCells: %v", err)
	}
	parent, _ := s.Instance(ifTableOID, "5")
	if got := parent["ifDescr"]; !got.Equal(schema.TextValue("lan0")) {
		t.Errorf("linked ifDescr = %v, want lan0", got)
	}
}

func TestUpdateCellsScopedToInstance(t *testing.T) {
	s := newTestStore(t)

	s.AddInstance(ifTableOID, idx(5), nil)
	s.AddInstance(ifTableOID, idx(6), nil)

	s.UpdateCells(ifTableOID, "5", map[string]schema.Value{
		"ifDescr": schema.TextValue("wan0"),
	})

	other, _ := s.Instance(ifXTableOID, "6")
	if got := other["ifName"]; got.Equal(schema.TextValue("wan0")) {
		t.Error("propagation crossed instances")
	}
}

func TestUpdateCellsIgnoresIndexColumns(t *testing.T) {
	s := newTestStore(t)

	s.AddInstance(ifTableOID, idx(5), nil)
	if err := s.UpdateCells(ifTableOID, "5", map[string]schema.Value{
		"ifIndex": schema.IntValue(7),
		"ifMtu":   schema.IntValue(9000),
	}); err != nil {
		t.Fatal(err)
	}

	row, _ := s.Instance(ifTableOID, "5")
	if got := row["ifIndex"]; !got.Equal(schema.IntValue(5)) {
		t.Errorf("index column rewritten: %v", got)
	}
	if got := row["ifMtu"]; !got.Equal(schema.IntValue(9000)) {
		t.Errorf("ifMtu = %v", got)
	}
}

func TestUpdateCellsNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateCells(ifTableOID, "42", map[string]schema.Value{
		"ifDescr": schema.TextValue("x"),
	})
	if !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("err = %v, want ErrInstanceNotFound", err)
	}
}

func TestScalars(t *testing.T) {
	s := newTestStore(t)

	s.SetScalar("1.3.6.1.2.1.1.5.0.", schema.TextValue("core-sw1"))

	v, ok := s.Scalar("1.3.6.1.2.1.1.5.0")
	if !ok || !v.Equal(schema.TextValue("core-sw1")) {
		t.Errorf("Scalar = %v, %v", v, ok)
	}
	if got := s.Scalars(); len(got) != 1 {
		t.Errorf("Scalars = %v", got)
	}
}

func TestLinkCRUD(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.CreateLink(links.Record{
		Scope: "global",
		Endpoints: []links.EndpointRecord{
			{Column: "sysName"},
			{Column: "hostName"},
		},
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("no id generated")
	}
	if rec.Source != "state" {
		t.Errorf("source = %q", rec.Source)
	}

	// Schema-origin ids are off limits for the management surface.
	if _, err := s.CreateLink(links.Record{
		ID:        "if-name-sync",
		Endpoints: []links.EndpointRecord{{Column: "a"}, {Column: "b"}},
	}); !errors.Is(err, ErrSchemaLink) {
		t.Errorf("shadowing schema id: err = %v", err)
	}
	if err := s.DeleteLink("if-name-sync"); !errors.Is(err, ErrSchemaLink) {
		t.Errorf("deleting schema link: err = %v", err)
	}

	updated, err := s.UpdateLink(rec.ID, links.Record{
		Scope: "global",
		Endpoints: []links.EndpointRecord{
			{Column: "sysName"},
			{Column: "nodeName"},
		},
	})
	if err != nil {
		t.Fatalf("UpdateLink: %v", err)
	}
	if updated.ID != rec.ID {
		t.Errorf("update changed id: %q -> %q", rec.ID, updated.ID)
	}

	stateOnly := s.Links(true)
	if len(stateOnly) != 1 || stateOnly[0].ID != rec.ID {
		t.Errorf("Links(true) = %+v", stateOnly)
	}
	if all := s.Links(false); len(all) != 2 {
		t.Errorf("Links(false) = %d records, want schema + state", len(all))
	}

	if err := s.DeleteLink(rec.ID); err != nil {
		t.Fatalf("DeleteLink: %v", err)
	}
	if err := s.DeleteLink(rec.ID); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("double delete: err = %v", err)
	}
}
