package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/simwire/mibstate/links"
)

// CreateLink registers an operator-created value link. The origin is always
// state regardless of what the record claims, and a missing id gets a
// generated one. Schema-origin ids cannot be shadowed.
func (s *Store) CreateLink(rec links.Record) (links.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if existing, ok := s.links.Get(rec.ID); ok {
		if existing.Origin == links.OriginSchema {
			return links.Record{}, fmt.Errorf("%w: %s", ErrSchemaLink, rec.ID)
		}
		return links.Record{}, fmt.Errorf("%w: %s", ErrLinkExists, rec.ID)
	}

	l, err := links.LinkFromRecord(rec, links.OriginState)
	if err != nil {
		return links.Record{}, err
	}
	if err := s.links.Add(l); err != nil {
		return links.Record{}, err
	}
	s.persist()
	return l.Record(), nil
}

// UpdateLink replaces a state-origin link in place, keeping its id.
func (s *Store) UpdateLink(id string, rec links.Record) (links.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.links.Get(id)
	if !ok {
		return links.Record{}, fmt.Errorf("%w: %s", ErrLinkNotFound, id)
	}
	if existing.Origin == links.OriginSchema {
		return links.Record{}, fmt.Errorf("%w: %s", ErrSchemaLink, id)
	}

	rec.ID = id
	l, err := links.LinkFromRecord(rec, links.OriginState)
	if err != nil {
		return links.Record{}, err
	}
	s.links.Remove(id, links.OriginState)
	if err := s.links.Add(l); err != nil {
		s.links.Add(existing)
		return links.Record{}, err
	}
	s.persist()
	return l.Record(), nil
}

// DeleteLink removes a state-origin link.
func (s *Store) DeleteLink(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.links.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrLinkNotFound, id)
	}
	if existing.Origin == links.OriginSchema {
		return fmt.Errorf("%w: %s", ErrSchemaLink, id)
	}
	s.links.Remove(id, links.OriginState)
	s.persist()
	return nil
}

// Links returns the registered links, all of them or only the
// operator-created state-origin ones.
func (s *Store) Links(stateOnly bool) []links.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links.Export(!stateOnly)
}
