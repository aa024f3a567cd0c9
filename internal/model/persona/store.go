package persona

import "strings"

// Store exposes the personas a session can be bound to.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	// Default returns the persona used when a session does not name one.
	Default() (Persona, bool)
}

// MemoryStore keeps the built-in personas in declaration order.
// Identifiers are matched case-insensitively; a later duplicate id is ignored.
type MemoryStore struct {
	items []Persona
	index map[string]int
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{index: make(map[string]int, len(items))}
	for _, item := range items {
		key := normalizeID(item.ID)
		if key == "" {
			continue
		}
		if _, dup := s.index[key]; dup {
			continue
		}
		s.index[key] = len(s.items)
		s.items = append(s.items, item)
	}
	return s
}

// List returns a copy of the personas.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	i, ok := s.index[normalizeID(id)]
	if !ok {
		return Persona{}, false
	}
	return s.items[i], true
}

// Default returns the kiddybot persona, or the first persona when the store
// was built without it.
func (s *MemoryStore) Default() (Persona, bool) {
	if p, ok := s.FindByID(DefaultID); ok {
		return p, true
	}
	if len(s.items) == 0 {
		return Persona{}, false
	}
	return s.items[0], true
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
