// Package links maintains bidirectional value links between table columns
// and the in-flight guard that keeps their propagation loop-safe.
package links

import (
	"errors"

	"go.uber.org/zap"
)

// Origin records where a link definition came from. Schema-origin links are
// re-derived from schema documents on every load; state-origin links are
// operator-created and persisted.
type Origin string

const (
	OriginSchema Origin = "schema"
	OriginState  Origin = "state"
)

// Scope controls how widely a write propagates.
const (
	// ScopePerInstance propagates only between endpoints sharing the
	// writing row's instance.
	ScopePerInstance = "per-instance"

	// ScopeGlobal propagates to every endpoint regardless of table.
	ScopeGlobal = "global"
)

// MatchSharedIndex is the only supported match strategy: target rows are
// addressed by the source row's instance string.
const MatchSharedIndex = "shared-index"

// ErrTooFewEndpoints rejects link definitions with fewer than two endpoints.
var ErrTooFewEndpoints = errors.New("mibstate: link needs at least two endpoints")

// Endpoint is one side of a value link. TableOID may be empty for
// global-scope links, in which case the column name alone addresses it.
type Endpoint struct {
	TableOID string
	Column   string
}

// Link is one bidirectional value link.
type Link struct {
	ID            string
	Endpoints     []Endpoint
	Scope         string
	Match         string
	Origin        Origin
	Description   string
	CreateMissing bool
}

// Manager indexes links by column and tracks in-flight propagation. It is
// not safe for concurrent use; the owning store serializes access.
type Manager struct {
	logger   *zap.Logger
	links    []*Link
	byColumn map[string][]*Link
	inFlight map[string]struct{}
}

// NewManager returns an empty Manager. A nil logger defaults to a no-op.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:   logger,
		byColumn: make(map[string][]*Link),
		inFlight: make(map[string]struct{}),
	}
}

// Add registers a link, defaulting scope and match when unset.
func (m *Manager) Add(l *Link) error {
	if len(l.Endpoints) < 2 {
		return ErrTooFewEndpoints
	}
	if l.Scope == "" {
		l.Scope = ScopePerInstance
	}
	if l.Match == "" {
		l.Match = MatchSharedIndex
	}
	m.links = append(m.links, l)
	m.index(l)
	return nil
}

// Remove deletes the link with the given id. A non-empty origin restricts
// removal to links of that origin. Reports whether a link was removed.
func (m *Manager) Remove(id string, origin Origin) bool {
	for i, l := range m.links {
		if l.ID != id {
			continue
		}
		if origin != "" && l.Origin != origin {
			return false
		}
		m.links = append(m.links[:i], m.links[i+1:]...)
		m.reindex()
		return true
	}
	return false
}

// Get returns the link with the given id.
func (m *Manager) Get(id string) (*Link, bool) {
	for _, l := range m.links {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// Clear drops every link and any in-flight guard state.
func (m *Manager) Clear() {
	m.links = nil
	m.byColumn = make(map[string][]*Link)
	m.inFlight = make(map[string]struct{})
}

// Targets returns the endpoints a write to (column, tableOID) propagates
// to, de-duplicated, excluding the source endpoint itself. Per-instance
// links only fire when the source endpoint's table matches.
func (m *Manager) Targets(column, tableOID string) []Endpoint {
	var out []Endpoint
	seen := make(map[Endpoint]struct{})
	for _, l := range m.byColumn[column] {
		if !l.sourceMatches(column, tableOID) {
			continue
		}
		for _, ep := range l.Endpoints {
			if ep.Column == column && (ep.TableOID == "" || ep.TableOID == tableOID) {
				continue
			}
			if _, dup := seen[ep]; dup {
				continue
			}
			seen[ep] = struct{}{}
			out = append(out, ep)
		}
	}
	return out
}

func (l *Link) sourceMatches(column, tableOID string) bool {
	for _, ep := range l.Endpoints {
		if ep.Column != column {
			continue
		}
		if l.Scope == ScopeGlobal || ep.TableOID == "" || ep.TableOID == tableOID {
			return true
		}
	}
	return false
}

// ShouldPropagate reports whether a write to the keyed cell may fan out.
// It returns false while that cell is already being updated by an ongoing
// propagation, which is what breaks A->B->A cycles.
func (m *Manager) ShouldPropagate(column, instanceKey string) bool {
	_, busy := m.inFlight[guardKey(column, instanceKey)]
	return !busy
}

// BeginUpdate marks the keyed cell as in-flight.
func (m *Manager) BeginUpdate(column, instanceKey string) {
	m.inFlight[guardKey(column, instanceKey)] = struct{}{}
}

// EndUpdate clears the keyed cell's in-flight mark.
func (m *Manager) EndUpdate(column, instanceKey string) {
	delete(m.inFlight, guardKey(column, instanceKey))
}

func guardKey(column, instanceKey string) string {
	if instanceKey == "" {
		return column
	}
	return column + ":" + instanceKey
}

// Export serializes links for persistence or the management surface. With
// includeSchema false only state-origin links are returned, which is the
// set that belongs in the state document.
func (m *Manager) Export(includeSchema bool) []Record {
	var out []Record
	for _, l := range m.links {
		if !includeSchema && l.Origin != OriginState {
			continue
		}
		out = append(out, recordOf(l))
	}
	return out
}

func (m *Manager) index(l *Link) {
	for _, ep := range l.Endpoints {
		m.byColumn[ep.Column] = append(m.byColumn[ep.Column], l)
	}
}

func (m *Manager) reindex() {
	m.byColumn = make(map[string][]*Link)
	for _, l := range m.links {
		m.index(l)
	}
}
