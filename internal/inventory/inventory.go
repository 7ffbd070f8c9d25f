// Package inventory tracks the NFT ids a pool holds. Two strategies back
// the same capability: Enumerable preserves insertion order and hands out
// ids deterministically from the front, Set keeps an unordered collection
// whose hand-out order is unspecified.
package inventory

import "errors"

var (
	ErrNotInInventory = errors.New("id not in inventory")
	ErrDuplicateID    = errors.New("id already in inventory")
	ErrNotEnough      = errors.New("not enough ids in inventory")
)

// Inventory is the capability a pool needs from its id tracker.
type Inventory interface {
	// Add inserts ids, rejecting duplicates.
	Add(ids ...uint64) error
	// Remove deletes the given ids; fails without mutation if any is absent.
	Remove(ids []uint64) error
	// Take removes and returns n ids chosen by the strategy.
	Take(n int) ([]uint64, error)
	Contains(id uint64) bool
	Size() int
	// IDs returns a copy of the held ids in strategy order.
	IDs() []uint64
	// Clone returns an independent deep copy.
	Clone() Inventory
}
