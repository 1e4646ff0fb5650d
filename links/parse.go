package links

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/simwire/mibstate/schema"
)

// LoadSchema registers the value links declared across the loaded schema
// modules. Declarations may list explicit endpoints or a column shorthand;
// for per-instance shorthand links the owning table is inferred from the
// column's OID within the declaring module. Malformed declarations are
// skipped with a warning, never fatal.
func (m *Manager) LoadSchema(set *schema.Set) {
	n := 0
	for _, mod := range set.Modules() {
		for _, decl := range mod.Links {
			n++
			l, err := linkFromDecl(mod, decl, n)
			if err != nil {
				m.logger.Warn("skipping malformed schema link",
					zap.String("module", mod.Name),
					zap.String("id", decl.ID),
					zap.Error(err))
				continue
			}
			if err := m.Add(l); err != nil {
				m.logger.Warn("skipping schema link",
					zap.String("module", mod.Name),
					zap.String("id", l.ID),
					zap.Error(err))
			}
		}
	}
}

// LoadState registers operator-created links restored from the state
// document. Malformed records are skipped with a warning.
func (m *Manager) LoadState(recs []Record) {
	for i, rec := range recs {
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("state_link_%d", i+1)
		}
		l, err := LinkFromRecord(rec, OriginState)
		if err != nil {
			m.logger.Warn("skipping malformed state link",
				zap.String("id", rec.ID),
				zap.Error(err))
			continue
		}
		if err := m.Add(l); err != nil {
			m.logger.Warn("skipping state link",
				zap.String("id", l.ID),
				zap.Error(err))
		}
	}
}

func linkFromDecl(mod *schema.Module, decl schema.LinkDecl, seq int) (*Link, error) {
	l := &Link{
		ID:            decl.ID,
		Scope:         decl.Scope,
		Match:         decl.Match,
		Origin:        OriginSchema,
		Description:   decl.Description,
		CreateMissing: decl.CreateMissing,
	}
	if l.ID == "" {
		l.ID = fmt.Sprintf("link_%d", seq)
	}
	if l.Scope == "" {
		l.Scope = ScopePerInstance
	}

	for _, ep := range decl.Endpoints {
		if ep.Column == "" {
			return nil, fmt.Errorf("endpoint without column")
		}
		l.Endpoints = append(l.Endpoints, Endpoint{TableOID: ep.TableOID, Column: ep.Column})
	}

	if len(l.Endpoints) == 0 {
		for _, col := range decl.Columns {
			ep := Endpoint{Column: col}
			if l.Scope == ScopePerInstance {
				if tableOID, ok := mod.ColumnTableOID(col); ok {
					ep.TableOID = tableOID
				}
			}
			l.Endpoints = append(l.Endpoints, ep)
		}
	}

	if len(l.Endpoints) < 2 {
		return nil, ErrTooFewEndpoints
	}
	return l, nil
}
