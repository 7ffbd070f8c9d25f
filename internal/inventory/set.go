package inventory

// Set keeps an unordered id collection. Take and IDs walk Go map iteration
// order, which is deliberately unspecified; callers must not depend on it.
type Set struct {
	ids map[uint64]struct{}
}

// NewSet builds an unordered inventory seeded with ids.
func NewSet(ids []uint64) (*Set, error) {
	inv := &Set{ids: make(map[uint64]struct{}, len(ids))}
	if err := inv.Add(ids...); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Set) Add(ids ...uint64) error {
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.ids[id]; ok {
			return ErrDuplicateID
		}
		if _, dup := seen[id]; dup {
			return ErrDuplicateID
		}
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return nil
}

func (s *Set) Remove(ids []uint64) error {
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.ids[id]; !ok {
			return ErrNotInInventory
		}
		if _, dup := seen[id]; dup {
			return ErrNotInInventory
		}
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		delete(s.ids, id)
	}
	return nil
}

func (s *Set) Take(n int) ([]uint64, error) {
	if n <= 0 || n > len(s.ids) {
		return nil, ErrNotEnough
	}
	taken := make([]uint64, 0, n)
	for id := range s.ids {
		taken = append(taken, id)
		if len(taken) == n {
			break
		}
	}
	for _, id := range taken {
		delete(s.ids, id)
	}
	return taken, nil
}

func (s *Set) Contains(id uint64) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Set) Size() int { return len(s.ids) }

func (s *Set) IDs() []uint64 {
	out := make([]uint64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

func (s *Set) Clone() Inventory {
	clone := &Set{ids: make(map[uint64]struct{}, len(s.ids))}
	for id := range s.ids {
		clone.ids[id] = struct{}{}
	}
	return clone
}
