package state

import "github.com/hashmap-kz/katomik-flow/id"

// Store is an ordered ItemID -> ErasedState map. Iteration order matches
// the order ids were first inserted, which callers populate to match the
// owning item graph's insertion order so serialization is deterministic.
type Store struct {
	order  []id.ItemID
	values map[id.ItemID]ErasedState
}

// NewStore returns an empty state store.
func NewStore() *Store {
	return &Store{values: make(map[id.ItemID]ErasedState)}
}

// Set inserts or replaces the state for itemID, appending it to the
// iteration order on first insertion.
func (s *Store) Set(itemID id.ItemID, v ErasedState) {
	if _, ok := s.values[itemID]; !ok {
		s.order = append(s.order, itemID)
	}
	s.values[itemID] = v
}

// Get returns the state for itemID, if present.
func (s *Store) Get(itemID id.ItemID) (ErasedState, bool) {
	v, ok := s.values[itemID]
	return v, ok
}

// Delete removes itemID from the store.
func (s *Store) Delete(itemID id.ItemID) {
	if _, ok := s.values[itemID]; !ok {
		return
	}
	delete(s.values, itemID)
	for i, existing := range s.order {
		if existing == itemID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries in the store.
func (s *Store) Len() int { return len(s.order) }

// Iter calls fn for each entry, in iteration order.
func (s *Store) Iter(fn func(id.ItemID, ErasedState) error) error {
	for _, itemID := range s.order {
		if err := fn(itemID, s.values[itemID]); err != nil {
			return err
		}
	}
	return nil
}

// Order returns a copy of the current iteration order.
func (s *Store) Order() []id.ItemID {
	out := make([]id.ItemID, len(s.order))
	copy(out, s.order)
	return out
}
