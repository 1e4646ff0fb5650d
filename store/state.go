package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/simwire/mibstate/internal/oid"
	"github.com/simwire/mibstate/links"
	"github.com/simwire/mibstate/schema"
)

// stateDocument is the on-disk shape of the unified state file. Key names
// are fixed by the legacy format.
type stateDocument struct {
	Scalars          map[string]schema.Value              `json:"scalars"`
	Tables           map[string]map[string]instanceRecord `json:"tables"`
	DeletedInstances []string                             `json:"deleted_instances"`
	Links            []links.Record                       `json:"links"`
}

type instanceRecord struct {
	ColumnValues map[string]schema.Value `json:"column_values"`
}

// load restores persisted state. It is forgiving throughout: a missing
// document triggers legacy migration, a corrupt one logs and starts empty.
// Loaded data is repaired in place (sloppy OID keys normalized, default
// columns backfilled, stale markers pruned) and re-saved when anything
// changed.
func (s *Store) load() {
	data, err := os.ReadFile(s.config.StatePath)
	if errors.Is(err, fs.ErrNotExist) {
		if s.migrateLegacy() {
			s.persist()
		}
		return
	}
	if err != nil {
		s.logger.Error("cannot read state file, starting empty",
			zap.String("path", s.config.StatePath),
			zap.Error(err))
		return
	}

	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Error("state file corrupt, starting empty",
			zap.String("path", s.config.StatePath),
			zap.Error(err))
		return
	}

	repaired := false

	for key, v := range doc.Scalars {
		s.scalars[oid.Normalize(key)] = v
	}

	for rawOID, instances := range doc.Tables {
		key := oid.Normalize(rawOID)
		if key != rawOID {
			repaired = true
		}
		if s.tables[key] == nil {
			s.tables[key] = make(map[string]Row)
		}
		for instance, rec := range instances {
			row := make(Row, len(rec.ColumnValues))
			for col, v := range rec.ColumnValues {
				row[col] = v
			}
			s.tables[key][instance] = row
		}
	}

	if s.backfillDefaults() {
		repaired = true
	}

	s.deleted = doc.DeletedInstances
	if s.pruneMarkers() {
		repaired = true
	}

	s.links.LoadState(doc.Links)

	if repaired {
		s.persist()
	}
}

// backfillDefaults fills columns that the schema default row declares but
// loaded instances are missing, or carry only the legacy "unset" sentinel.
// Index columns are never touched.
func (s *Store) backfillDefaults() bool {
	changed := false
	for tableOID, instances := range s.tables {
		table, ok := s.schemas.Table(tableOID)
		if !ok {
			continue
		}
		defaults := table.DefaultRow()
		if defaults == nil {
			continue
		}
		for _, row := range instances {
			for col, def := range defaults {
				if table.IsIndexColumn(col) {
					continue
				}
				cur, present := row[col]
				if present && !cur.IsAbsent() && !isUnset(cur) {
					continue
				}
				row[col] = def
				changed = true
			}
		}
	}
	return changed
}

func isUnset(v schema.Value) bool {
	t, ok := v.Text()
	return ok && strings.EqualFold(strings.TrimSpace(t), "unset")
}

// pruneMarkers drops deletion markers that no longer match any baseline
// instance of the loaded schemas. Skipped entirely when no tables are
// loaded, so a partial schema set cannot wipe markers.
func (s *Store) pruneMarkers() bool {
	if !s.schemas.HasTables() {
		return false
	}
	valid := s.baselineInstanceIDs()
	kept := s.deleted[:0]
	changed := false
	for _, m := range s.deleted {
		if _, ok := valid[m]; ok {
			kept = append(kept, m)
		} else {
			changed = true
		}
	}
	s.deleted = kept
	return changed
}

// baselineInstanceIDs enumerates the fully-qualified ids of every baseline
// row the loaded schemas declare.
func (s *Store) baselineInstanceIDs() map[string]struct{} {
	out := make(map[string]struct{})
	for _, table := range s.schemas.Tables() {
		for _, row := range table.Baseline {
			instance := oid.InstanceString(table.IndexColumns, table.IndexTypeTag, row)
			if instance == "" {
				continue
			}
			out[table.OIDString()+"."+instance] = struct{}{}
		}
	}
	return out
}

// migrateLegacy folds the pre-unification overrides and table instance
// files into memory. Reports whether anything was found.
func (s *Store) migrateLegacy() bool {
	migrated := false

	if data, err := os.ReadFile(s.config.LegacyScalarsPath); err == nil {
		var scalars map[string]schema.Value
		if err := json.Unmarshal(data, &scalars); err != nil {
			s.logger.Warn("legacy overrides file unreadable, skipping",
				zap.String("path", s.config.LegacyScalarsPath),
				zap.Error(err))
		} else {
			for key, v := range scalars {
				s.scalars[oid.Normalize(key)] = v
			}
			migrated = len(scalars) > 0 || migrated
		}
	}

	if data, err := os.ReadFile(s.config.LegacyTablesPath); err == nil {
		var tables map[string]map[string]map[string]schema.Value
		if err := json.Unmarshal(data, &tables); err != nil {
			s.logger.Warn("legacy table instances file unreadable, skipping",
				zap.String("path", s.config.LegacyTablesPath),
				zap.Error(err))
		} else {
			for rawOID, instances := range tables {
				key := oid.Normalize(rawOID)
				if s.tables[key] == nil {
					s.tables[key] = make(map[string]Row)
				}
				for instance, cols := range instances {
					row := make(Row, len(cols))
					for col, v := range cols {
						row[col] = v
					}
					s.tables[key][instance] = row
				}
				migrated = migrated || len(instances) > 0
			}
		}
	}

	if migrated {
		s.logger.Info("migrated legacy state files",
			zap.String("scalars", s.config.LegacyScalarsPath),
			zap.String("tables", s.config.LegacyTablesPath))
	}
	return migrated
}

// Save writes the current state to the configured path.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// persist saves and logs failures; mutations succeed even when the disk
// write does not.
func (s *Store) persist() {
	if err := s.save(); err != nil {
		s.logger.Error("state save failed",
			zap.String("path", s.config.StatePath),
			zap.Error(err))
	}
}

func (s *Store) save() error {
	doc := stateDocument{
		Scalars:          s.scalars,
		Tables:           make(map[string]map[string]instanceRecord, len(s.tables)),
		DeletedInstances: append([]string{}, s.deleted...),
		Links:            s.links.Export(false),
	}
	for tableOID, instances := range s.tables {
		recs := make(map[string]instanceRecord, len(instances))
		for instance, row := range instances {
			recs[instance] = instanceRecord{ColumnValues: row}
		}
		doc.Tables[tableOID] = recs
	}
	sort.Strings(doc.DeletedInstances)
	if doc.Links == nil {
		doc.Links = []links.Record{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.config.StatePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.config.StatePath, data, 0o644)
}
