package store

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/simwire/mibstate/internal/oid"
	"github.com/simwire/mibstate/links"
	"github.com/simwire/mibstate/schema"
)

// Row holds one instance's column values.
type Row map[string]schema.Value

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Store is the indexed row store: dynamically created table instances,
// scalar overrides, deletion markers for schema-baseline rows, augmented
// table mirroring and value-link propagation, all persisted in a single
// state document.
//
// A single mutex serializes every public operation; propagation and
// persistence complete synchronously inside it.
type Store struct {
	mu       sync.Mutex
	config   Config
	logger   *zap.Logger
	schemas  *schema.Set
	registry *Registry
	links    *links.Manager

	scalars map[string]schema.Value
	tables  map[string]map[string]Row
	deleted []string
}

// New creates a Store over the loaded schema set and restores persisted
// state from the configured path, folding in legacy files when the unified
// document does not exist yet. A nil logger defaults to a no-op.
func New(set *schema.Set, config Config, logger *zap.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		config:   config,
		logger:   logger,
		schemas:  set,
		registry: BuildRegistry(set, logger),
		links:    links.NewManager(logger),
		scalars:  make(map[string]schema.Value),
		tables:   make(map[string]map[string]Row),
	}
	s.links.LoadSchema(set)
	s.load()
	return s
}

// AddInstance creates or replaces one table instance. The stored row is
// layered from the table's column defaults, the baseline row matching the
// index values, the caller's columns and finally the index values
// themselves. A matching deletion marker is cleared, augmented children are
// mirrored and the result is persisted. Returns the fully-qualified
// instance id. Adding the same instance twice converges on the same row.
func (s *Store) AddInstance(tableOID string, indexValues, columnValues map[string]schema.Value) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, err := s.addInstance(oid.Normalize(tableOID), indexValues, columnValues, true)
	if err != nil {
		return "", err
	}
	s.persist()
	return oid.Normalize(tableOID) + "." + instance, nil
}

// UpdateCells merges non-index column values into an existing instance and
// drives value-link propagation to linked columns.
func (s *Store) UpdateCells(tableOID, instance string, columnValues map[string]schema.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := oid.Normalize(tableOID)
	rows, ok := s.tables[key]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrInstanceNotFound, key, instance)
	}
	if _, ok := rows[instance]; !ok {
		return fmt.Errorf("%w: %s.%s", ErrInstanceNotFound, key, instance)
	}

	s.applyCells(key, instance, columnValues, make(map[string]struct{}))
	s.persist()
	return nil
}

// DeleteInstance removes one table instance. Instances declared in the
// schema baseline are additionally marked deleted so they stay suppressed
// across reloads; deleting an already-marked baseline instance is a no-op.
// The removal is mirrored into augmented children.
func (s *Store) DeleteInstance(tableOID string, indexValues map[string]schema.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteInstance(oid.Normalize(tableOID), indexValues, true); err != nil {
		return err
	}
	s.persist()
	return nil
}

// RestoreInstance re-adds a baseline instance that was marked deleted.
// Returns false without touching anything when no marker matches.
func (s *Store) RestoreInstance(tableOID string, indexValues, columnValues map[string]schema.Value) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := oid.Normalize(tableOID)
	table, ok := s.schemas.Table(key)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrTableNotFound, key)
	}
	instance := oid.InstanceString(table.IndexColumns, table.IndexTypeTag, indexValues)
	if !s.isMarked(key + "." + instance) {
		return false, nil
	}

	if _, err := s.addInstance(key, indexValues, columnValues, true); err != nil {
		return false, err
	}
	s.persist()
	return true, nil
}

// Instance returns a copy of one live instance row.
func (s *Store) Instance(tableOID, instance string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := oid.Normalize(tableOID)
	row, ok := s.tables[key][instance]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrInstanceNotFound, key, instance)
	}
	return row.clone(), nil
}

// Instances returns copies of every live instance row of a table.
func (s *Store) Instances(tableOID string) map[string]Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Row)
	for instance, row := range s.tables[oid.Normalize(tableOID)] {
		out[instance] = row.clone()
	}
	return out
}

// SetScalar stores a scalar override keyed by its dotted OID.
func (s *Store) SetScalar(oidStr string, value schema.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scalars[oid.Normalize(oidStr)] = value
	s.persist()
}

// Scalar returns a scalar override.
func (s *Store) Scalar(oidStr string) (schema.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.scalars[oid.Normalize(oidStr)]
	return v, ok
}

// Scalars returns a copy of every scalar override.
func (s *Store) Scalars() map[string]schema.Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]schema.Value, len(s.scalars))
	for k, v := range s.scalars {
		out[k] = v
	}
	return out
}

// addInstance is the internal add path shared by AddInstance, restore and
// augment mirroring. It validates, layers, stores and optionally fans out
// to augmented children; it never persists.
func (s *Store) addInstance(tableOID string, indexValues, columnValues map[string]schema.Value, propagate bool) (string, error) {
	table, ok := s.schemas.Table(tableOID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTableNotFound, tableOID)
	}

	for _, col := range table.IndexColumns {
		if v, ok := indexValues[col]; !ok || v.IsAbsent() {
			return "", fmt.Errorf("%w: %s", ErrMissingIndexColumn, col)
		}
	}

	instance := oid.InstanceString(table.IndexColumns, table.IndexTypeTag, indexValues)

	row := make(Row)
	for name, col := range table.Columns {
		if !col.Default.IsAbsent() {
			row[name] = col.Default
		}
	}
	if baseline, ok := table.BaselineRow(indexValues); ok {
		for name, v := range baseline {
			row[name] = v
		}
	}
	for name, v := range columnValues {
		if v.IsAbsent() {
			continue
		}
		row[name] = v
	}
	for name, v := range indexValues {
		row[name] = v
	}

	if s.tables[tableOID] == nil {
		s.tables[tableOID] = make(map[string]Row)
	}
	s.tables[tableOID][instance] = row
	s.clearMarker(tableOID + "." + instance)

	s.logger.Info("added table instance",
		zap.String("table", tableOID),
		zap.String("instance", instance))

	if propagate {
		s.propagateAdd(tableOID, instance, indexValues)
	}
	return instance, nil
}

// deleteInstance is the internal delete path. Absent rows that the schema
// baseline declares still get marked; absent rows outside the baseline are
// not found.
func (s *Store) deleteInstance(tableOID string, indexValues map[string]schema.Value, propagate bool) error {
	table, ok := s.schemas.Table(tableOID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, tableOID)
	}

	instance := oid.InstanceString(table.IndexColumns, table.IndexTypeTag, indexValues)

	removed := false
	if rows, ok := s.tables[tableOID]; ok {
		if _, ok := rows[instance]; ok {
			delete(rows, instance)
			removed = true
			if len(rows) == 0 {
				delete(s.tables, tableOID)
			}
		}
	}

	_, isBaseline := table.BaselineRow(indexValues)
	if isBaseline {
		s.addMarker(tableOID + "." + instance)
	} else if !removed {
		return fmt.Errorf("%w: %s.%s", ErrInstanceNotFound, tableOID, instance)
	}

	s.logger.Info("deleted table instance",
		zap.String("table", tableOID),
		zap.String("instance", instance),
		zap.Bool("baseline", isBaseline))

	if propagate {
		s.propagateDelete(tableOID, indexValues)
	}
	return nil
}

// applyCells merges cell writes into a row and fans each write out to its
// linked columns. The processed set caps work per (table, column) pair and
// the in-flight guard breaks propagation cycles between linked endpoints.
func (s *Store) applyCells(tableOID, instance string, columnValues map[string]schema.Value, processed map[string]struct{}) {
	table, _ := s.schemas.Table(tableOID)

	cols := make([]string, 0, len(columnValues))
	for col := range columnValues {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		value := columnValues[col]
		if value.IsAbsent() {
			continue
		}
		if table != nil && table.IsIndexColumn(col) {
			continue
		}
		procKey := tableOID + ":" + col
		if _, done := processed[procKey]; done {
			continue
		}
		processed[procKey] = struct{}{}

		row, ok := s.tables[tableOID][instance]
		if !ok {
			continue
		}
		row[col] = value

		targets := s.links.Targets(col, tableOID)
		if len(targets) == 0 {
			continue
		}

		s.links.BeginUpdate(col, instanceKey(tableOID, instance))
		for _, target := range targets {
			targetTable := target.TableOID
			if targetTable == "" {
				targetTable = tableOID
			}
			if !s.links.ShouldPropagate(target.Column, instanceKey(targetTable, instance)) {
				continue
			}
			if _, ok := s.tables[targetTable][instance]; !ok {
				continue
			}
			s.applyCells(targetTable, instance, map[string]schema.Value{target.Column: value}, processed)
		}
		s.links.EndUpdate(col, instanceKey(tableOID, instance))
	}
}

func instanceKey(tableOID, instance string) string {
	return tableOID + ":" + instance
}
