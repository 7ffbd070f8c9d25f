package asset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotOwner    = errors.New("id not owned by holder")
	ErrNotApproved = errors.New("operator not approved")
	ErrUnknownID   = errors.New("id not minted")
)

// NFTBook tracks ownership per collection plus operator approvals.
type NFTBook struct {
	mu        sync.RWMutex
	owners    map[common.Address]map[uint64]common.Address
	operators map[common.Address]map[common.Address]map[common.Address]bool
}

func NewNFTBook() *NFTBook {
	return &NFTBook{
		owners:    make(map[common.Address]map[uint64]common.Address),
		operators: make(map[common.Address]map[common.Address]map[common.Address]bool),
	}
}

// Mint assigns fresh ids in a collection to an owner.
func (n *NFTBook) Mint(collection, owner common.Address, ids ...uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	held, ok := n.owners[collection]
	if !ok {
		held = make(map[uint64]common.Address)
		n.owners[collection] = held
	}
	for _, id := range ids {
		held[id] = owner
	}
}

// OwnerOf reports the current owner of an id.
func (n *NFTBook) OwnerOf(collection common.Address, id uint64) (common.Address, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	owner, ok := n.owners[collection][id]
	return owner, ok
}

// SetApprovalForAll lets operator move any of owner's ids in a collection.
func (n *NFTBook) SetApprovalForAll(collection, owner, operator common.Address, approved bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	byOwner, ok := n.operators[collection]
	if !ok {
		byOwner = make(map[common.Address]map[common.Address]bool)
		n.operators[collection] = byOwner
	}
	ops, ok := byOwner[owner]
	if !ok {
		ops = make(map[common.Address]bool)
		byOwner[owner] = ops
	}
	ops[operator] = approved
}

// TransferFrom moves ids from one holder to another on behalf of operator.
// Every id must belong to `from`, and the operator must be the owner or an
// approved operator; nothing moves otherwise.
func (n *NFTBook) TransferFrom(collection, operator, from, to common.Address, ids []uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	held, ok := n.owners[collection]
	if !ok {
		return fmt.Errorf("collection %s: %w", collection, ErrUnknownID)
	}
	if operator != from && !n.operators[collection][from][operator] {
		return fmt.Errorf("operator %s for %s: %w", operator, from, ErrNotApproved)
	}
	for _, id := range ids {
		owner, ok := held[id]
		if !ok {
			return fmt.Errorf("id %d: %w", id, ErrUnknownID)
		}
		if owner != from {
			return fmt.Errorf("id %d: %w", id, ErrNotOwner)
		}
	}
	for _, id := range ids {
		held[id] = to
	}
	return nil
}

// Snapshot returns a deep copy of ownership and approvals.
func (n *NFTBook) Snapshot() *NFTBook {
	n.mu.RLock()
	defer n.mu.RUnlock()

	clone := NewNFTBook()
	for collection, held := range n.owners {
		dst := make(map[uint64]common.Address, len(held))
		for id, owner := range held {
			dst[id] = owner
		}
		clone.owners[collection] = dst
	}
	for collection, byOwner := range n.operators {
		dstByOwner := make(map[common.Address]map[common.Address]bool, len(byOwner))
		for owner, ops := range byOwner {
			dst := make(map[common.Address]bool, len(ops))
			for op, approved := range ops {
				dst[op] = approved
			}
			dstByOwner[owner] = dst
		}
		clone.operators[collection] = dstByOwner
	}
	return clone
}

// Restore replaces the book's state with a snapshot's.
func (n *NFTBook) Restore(snapshot *NFTBook) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.owners = snapshot.owners
	n.operators = snapshot.operators
}
