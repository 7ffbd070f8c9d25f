// Package factory creates and indexes pairs, keeps the bonding-curve
// allow-list, and accounts for the protocol fee routed by the pairs it
// created.
package factory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/mathewwhere/lssvm/internal/asset"
	"github.com/mathewwhere/lssvm/internal/curve"
	"github.com/mathewwhere/lssvm/internal/pair"
)

var (
	ErrUnrecognizedCurve = errors.New("curve not on the allow-list")
	ErrUnauthorized      = errors.New("caller is not authorized")
	ErrInvalidFeeRate    = errors.New("protocol fee rate must be below one")
)

// Config carries the factory's administrative setup.
type Config struct {
	Address        common.Address
	Owner          common.Address
	Treasury       common.Address
	ProtocolFeeBps uint64
	Logger         *zap.Logger
}

// Factory owns the curve registry and the pair index. It implements
// pair.FeeRouter for the pairs it creates.
type Factory struct {
	mu             sync.RWMutex
	addr           common.Address
	owner          common.Address
	treasury       common.Address
	protocolFeeBps uint64
	curves         map[string]curve.Curve
	pairs          map[common.Address]*pair.Pair
	accrued        map[common.Address]*uint256.Int
	book           *asset.Book
	nfts           *asset.NFTBook
	logger         *zap.Logger
	nonce          uint64
}

func New(cfg Config, book *asset.Book, nfts *asset.NFTBook) (*Factory, error) {
	if book == nil || nfts == nil {
		return nil, fmt.Errorf("custody books are required")
	}
	if cfg.ProtocolFeeBps >= curve.FeeDenominator {
		return nil, ErrInvalidFeeRate
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		addr:           cfg.Address,
		owner:          cfg.Owner,
		treasury:       cfg.Treasury,
		protocolFeeBps: cfg.ProtocolFeeBps,
		curves:         make(map[string]curve.Curve),
		pairs:          make(map[common.Address]*pair.Pair),
		accrued:        make(map[common.Address]*uint256.Int),
		book:           book,
		nfts:           nfts,
		logger:         logger,
	}, nil
}

// AllowCurve puts a curve implementation on the allow-list, owner only.
func (f *Factory) AllowCurve(caller common.Address, c curve.Curve) error {
	if caller != f.owner {
		return ErrUnauthorized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.curves[c.Name()] = c
	return nil
}

// RevokeCurve removes a curve from the allow-list, owner only. Pairs
// already bound to it keep their captured implementation.
func (f *Factory) RevokeCurve(caller common.Address, name string) error {
	if caller != f.owner {
		return ErrUnauthorized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.curves, name)
	return nil
}

// CurveAllowed reports whether a curve name is on the allow-list.
func (f *Factory) CurveAllowed(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.curves[name]
	return ok
}

// SetProtocolFeeBps changes the protocol fee rate, owner only.
func (f *Factory) SetProtocolFeeBps(caller common.Address, bps uint64) error {
	if caller != f.owner {
		return ErrUnauthorized
	}
	if bps >= curve.FeeDenominator {
		return ErrInvalidFeeRate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.protocolFeeBps = bps
	return nil
}

// SetTreasury redirects future protocol fees, owner only.
func (f *Factory) SetTreasury(caller, treasury common.Address) error {
	if caller != f.owner {
		return ErrUnauthorized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.treasury = treasury
	return nil
}

// ProtocolFeeBps implements pair.FeeRouter.
func (f *Factory) ProtocolFeeBps() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.protocolFeeBps
}

// Treasury implements pair.FeeRouter.
func (f *Factory) Treasury() common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.treasury
}

// RouteFee records a protocol fee forwarded by a pair. Only pairs this
// factory created may call it.
func (f *Factory) RouteFee(pairAddr common.Address, assetID common.Address, amount *uint256.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pairs[pairAddr]; !ok {
		return ErrUnauthorized
	}
	if total, ok := f.accrued[assetID]; ok {
		total.Add(total, amount)
	} else {
		f.accrued[assetID] = new(uint256.Int).Set(amount)
	}
	return nil
}

// AccruedFees returns the protocol fees routed so far for an asset.
func (f *Factory) AccruedFees(assetID common.Address) *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if total, ok := f.accrued[assetID]; ok {
		return new(uint256.Int).Set(total)
	}
	return new(uint256.Int)
}

// Pair looks up a pair by handle.
func (f *Factory) Pair(addr common.Address) (*pair.Pair, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.pairs[addr]
	return p, ok
}

// PairCount reports how many pairs this factory created.
func (f *Factory) PairCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.pairs)
}

// deriveHandle produces a deterministic address for the next pair.
func (f *Factory) deriveHandle() common.Address {
	f.nonce++
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], f.nonce)
	hash := crypto.Keccak256(f.addr.Bytes(), seed[:])
	return common.BytesToAddress(hash[12:])
}
