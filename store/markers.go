package store

// Deletion markers suppress schema-baseline instances across reloads. A
// marker is the fully-qualified instance id, table OID dot instance string.

func (s *Store) isMarked(id string) bool {
	for _, m := range s.deleted {
		if m == id {
			return true
		}
	}
	return false
}

func (s *Store) addMarker(id string) {
	if s.isMarked(id) {
		return
	}
	s.deleted = append(s.deleted, id)
}

func (s *Store) clearMarker(id string) {
	for i, m := range s.deleted {
		if m == id {
			s.deleted = append(s.deleted[:i], s.deleted[i+1:]...)
			return
		}
	}
}

// DeletionMarkers returns a copy of the current markers.
func (s *Store) DeletionMarkers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.deleted...)
}

// IsDeleted reports whether the fully-qualified instance id carries a
// deletion marker.
func (s *Store) IsDeleted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isMarked(id)
}
