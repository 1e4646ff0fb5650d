package links

// Record is the serialized form of a link, both in the state document and
// on the management surface. Field names match the legacy file format.
type Record struct {
	ID            string           `json:"id"`
	Scope         string           `json:"scope"`
	Type          string           `json:"type"`
	Match         string           `json:"match"`
	Description   string           `json:"description,omitempty"`
	Source        string           `json:"source"`
	CreateMissing bool             `json:"create_missing,omitempty"`
	Endpoints     []EndpointRecord `json:"endpoints"`
	Columns       []string         `json:"columns,omitempty"`
}

// EndpointRecord is one serialized endpoint.
type EndpointRecord struct {
	TableOID string `json:"table_oid,omitempty"`
	Column   string `json:"column"`
}

// Record returns the serialized form of the link.
func (l *Link) Record() Record { return recordOf(l) }

func recordOf(l *Link) Record {
	rec := Record{
		ID:            l.ID,
		Scope:         l.Scope,
		Type:          "bidirectional",
		Match:         l.Match,
		Description:   l.Description,
		Source:        string(l.Origin),
		CreateMissing: l.CreateMissing,
	}
	seen := make(map[string]struct{})
	for _, ep := range l.Endpoints {
		rec.Endpoints = append(rec.Endpoints, EndpointRecord{
			TableOID: ep.TableOID,
			Column:   ep.Column,
		})
		if _, dup := seen[ep.Column]; !dup {
			seen[ep.Column] = struct{}{}
			rec.Columns = append(rec.Columns, ep.Column)
		}
	}
	return rec
}

// LinkFromRecord rebuilds a Link from its serialized form. Records carrying
// only a column list become endpoints without table qualification.
func LinkFromRecord(rec Record, origin Origin) (*Link, error) {
	l := &Link{
		ID:            rec.ID,
		Scope:         rec.Scope,
		Match:         rec.Match,
		Origin:        origin,
		Description:   rec.Description,
		CreateMissing: rec.CreateMissing,
	}
	for _, ep := range rec.Endpoints {
		l.Endpoints = append(l.Endpoints, Endpoint{TableOID: ep.TableOID, Column: ep.Column})
	}
	if len(l.Endpoints) == 0 {
		for _, col := range rec.Columns {
			l.Endpoints = append(l.Endpoints, Endpoint{Column: col})
		}
	}
	if len(l.Endpoints) < 2 {
		return nil, ErrTooFewEndpoints
	}
	return l, nil
}
