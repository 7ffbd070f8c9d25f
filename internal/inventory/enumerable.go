package inventory

// Enumerable keeps ids in insertion order with a reverse index for
// membership checks. Take always removes from the front of the sequence,
// which integrators may rely on.
type Enumerable struct {
	order []uint64
	index map[uint64]int
}

// NewEnumerable builds an ordered inventory seeded with ids.
func NewEnumerable(ids []uint64) (*Enumerable, error) {
	inv := &Enumerable{index: make(map[uint64]int, len(ids))}
	if err := inv.Add(ids...); err != nil {
		return nil, err
	}
	return inv, nil
}

func (e *Enumerable) Add(ids ...uint64) error {
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := e.index[id]; ok {
			return ErrDuplicateID
		}
		if _, dup := seen[id]; dup {
			return ErrDuplicateID
		}
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		e.index[id] = len(e.order)
		e.order = append(e.order, id)
	}
	return nil
}

func (e *Enumerable) Remove(ids []uint64) error {
	drop := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := e.index[id]; !ok {
			return ErrNotInInventory
		}
		if _, dup := drop[id]; dup {
			return ErrNotInInventory
		}
		drop[id] = struct{}{}
	}

	kept := e.order[:0]
	for _, id := range e.order {
		if _, gone := drop[id]; gone {
			delete(e.index, id)
			continue
		}
		e.index[id] = len(kept)
		kept = append(kept, id)
	}
	e.order = kept
	return nil
}

func (e *Enumerable) Take(n int) ([]uint64, error) {
	if n <= 0 || n > len(e.order) {
		return nil, ErrNotEnough
	}
	taken := make([]uint64, n)
	copy(taken, e.order[:n])
	if err := e.Remove(taken); err != nil {
		return nil, err
	}
	return taken, nil
}

func (e *Enumerable) Contains(id uint64) bool {
	_, ok := e.index[id]
	return ok
}

func (e *Enumerable) Size() int { return len(e.order) }

func (e *Enumerable) IDs() []uint64 {
	out := make([]uint64, len(e.order))
	copy(out, e.order)
	return out
}

func (e *Enumerable) Clone() Inventory {
	clone := &Enumerable{
		order: make([]uint64, len(e.order)),
		index: make(map[uint64]int, len(e.index)),
	}
	copy(clone.order, e.order)
	for id, pos := range e.index {
		clone.index[id] = pos
	}
	return clone
}
