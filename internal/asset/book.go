// Package asset holds the in-process custody collaborators the engine
// settles against: a base-asset balance book with token allowances and an
// NFT ownership book with operator approvals.
package asset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Native is the asset id of the chain's own coin. Any other id is treated
// as a fungible token and moves through the allowance path.
var Native = common.Address{}

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Book tracks per-asset balances and token allowances.
type Book struct {
	mu         sync.RWMutex
	balances   map[common.Address]map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]map[common.Address]*uint256.Int
}

func NewBook() *Book {
	return &Book{
		balances:   make(map[common.Address]map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Mint credits amount of asset to holder.
func (b *Book) Mint(asset, holder common.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(asset, holder, amount)
}

// BalanceOf returns a copy of holder's balance for asset.
func (b *Book) BalanceOf(asset, holder common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[asset][holder]; ok {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

// Transfer moves amount of asset from one holder to another.
func (b *Book) Transfer(asset, from, to common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(asset, from, to, amount)
}

// Approve lets spender move up to amount of owner's asset.
func (b *Book) Approve(asset, owner, spender common.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	owners, ok := b.allowances[asset]
	if !ok {
		owners = make(map[common.Address]map[common.Address]*uint256.Int)
		b.allowances[asset] = owners
	}
	spenders, ok := owners[owner]
	if !ok {
		spenders = make(map[common.Address]*uint256.Int)
		owners[owner] = spenders
	}
	spenders[spender] = new(uint256.Int).Set(amount)
}

// Allowance returns a copy of the remaining allowance.
func (b *Book) Allowance(asset, owner, spender common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if a, ok := b.allowances[asset][owner][spender]; ok {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int)
}

// TransferFrom moves amount of asset from `from` on behalf of spender,
// consuming allowance unless the spender is the owner. Native transfers
// never consume allowance.
func (b *Book) TransferFrom(asset, spender, from, to common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if asset != Native && spender != from {
		allowance, ok := b.allowances[asset][from][spender]
		if !ok || allowance.Lt(amount) {
			return fmt.Errorf("spender %s of %s: %w", spender, from, ErrInsufficientAllowance)
		}
		allowance.Sub(allowance, amount)
	}
	return b.move(asset, from, to, amount)
}

// Snapshot returns a deep copy of balances and allowances.
func (b *Book) Snapshot() *Book {
	b.mu.RLock()
	defer b.mu.RUnlock()

	clone := NewBook()
	for asset, holders := range b.balances {
		dst := make(map[common.Address]*uint256.Int, len(holders))
		for holder, bal := range holders {
			dst[holder] = new(uint256.Int).Set(bal)
		}
		clone.balances[asset] = dst
	}
	for asset, owners := range b.allowances {
		dstOwners := make(map[common.Address]map[common.Address]*uint256.Int, len(owners))
		for owner, spenders := range owners {
			dst := make(map[common.Address]*uint256.Int, len(spenders))
			for spender, allowance := range spenders {
				dst[spender] = new(uint256.Int).Set(allowance)
			}
			dstOwners[owner] = dst
		}
		clone.allowances[asset] = dstOwners
	}
	return clone
}

// Restore replaces the book's state with a snapshot's.
func (b *Book) Restore(snapshot *Book) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances = snapshot.balances
	b.allowances = snapshot.allowances
}

func (b *Book) move(asset, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	bal, ok := b.balances[asset][from]
	if !ok || bal.Lt(amount) {
		return fmt.Errorf("holder %s: %w", from, ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	b.credit(asset, to, amount)
	return nil
}

func (b *Book) credit(asset, holder common.Address, amount *uint256.Int) {
	holders, ok := b.balances[asset]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		b.balances[asset] = holders
	}
	if bal, ok := holders[holder]; ok {
		bal.Add(bal, amount)
		return
	}
	holders[holder] = new(uint256.Int).Set(amount)
}
