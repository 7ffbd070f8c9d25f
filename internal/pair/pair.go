// Package pair implements the pool state machine: it applies a bonding
// curve to buy and sell requests and settles the resulting asset moves.
// Every swap follows the same phase discipline: price against the curve,
// check the caller's limit, finalize parameters and inventory, then issue
// transfers; a failed transfer restores the pre-trade state. Calls are not
// internally synchronized; the enclosing engine serializes state-mutating
// invocations, mirroring how a ledger serializes transactions.
package pair

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/mathewwhere/lssvm/internal/asset"
	"github.com/mathewwhere/lssvm/internal/curve"
	"github.com/mathewwhere/lssvm/internal/inventory"
)

// PoolType restricts which trade directions a pool accepts.
type PoolType uint8

const (
	// TokenPool holds base asset and only buys NFTs from traders.
	TokenPool PoolType = iota
	// NFTPool holds NFTs and only sells them to traders.
	NFTPool
	// TradePool trades in both directions.
	TradePool
)

func (t PoolType) String() string {
	switch t {
	case TokenPool:
		return "token"
	case NFTPool:
		return "nft"
	case TradePool:
		return "trade"
	default:
		return "unknown"
	}
}

// FeeRouter is the factory-side fee surface a pair needs: the current
// protocol fee rate, where the fee goes, and an accounting callback gated
// to pairs the factory created.
type FeeRouter interface {
	ProtocolFeeBps() uint64
	Treasury() common.Address
	RouteFee(pairAddr common.Address, assetID common.Address, amount *uint256.Int) error
}

// Config carries everything a pair binds at creation.
type Config struct {
	Address        common.Address
	Owner          common.Address
	Collection     common.Address
	AssetID        common.Address // asset.Native for native-coin custody
	PoolType       PoolType
	Curve          curve.Curve
	Params         curve.Params
	FeeBps         uint64
	AssetRecipient common.Address // zero keeps proceeds in the pool
	FeeRecipient   common.Address // zero falls back to the owner
	Inventory      inventory.Inventory
	Logger         *zap.Logger
}

// Pair is one liquidity pool: one collection, one curve, one custody mode.
type Pair struct {
	addr           common.Address
	owner          common.Address
	collection     common.Address
	assetID        common.Address
	poolType       PoolType
	pricing        curve.Curve
	params         curve.Params
	feeBps         uint64
	assetRecipient common.Address
	feeRecipient   common.Address
	inv            inventory.Inventory
	book           *asset.Book
	nfts           *asset.NFTBook
	fees           FeeRouter
	logger         *zap.Logger
}

// New validates the configuration and binds the pair to its collaborators.
func New(cfg Config, book *asset.Book, nfts *asset.NFTBook, fees FeeRouter) (*Pair, error) {
	if cfg.Curve == nil {
		return nil, fmt.Errorf("curve is required")
	}
	if cfg.Inventory == nil {
		return nil, fmt.Errorf("inventory is required")
	}
	if book == nil || nfts == nil {
		return nil, fmt.Errorf("custody books are required")
	}
	if fees == nil {
		return nil, fmt.Errorf("fee router is required")
	}
	if cfg.FeeBps >= curve.FeeDenominator {
		return nil, curve.ErrInvalidFee
	}
	if err := cfg.Curve.Validate(cfg.Params); err != nil {
		return nil, err
	}

	feeRecipient := cfg.FeeRecipient
	if feeRecipient == (common.Address{}) {
		feeRecipient = cfg.Owner
	}
	assetRecipient := cfg.AssetRecipient
	if assetRecipient == (common.Address{}) {
		assetRecipient = cfg.Address
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pair{
		addr:           cfg.Address,
		owner:          cfg.Owner,
		collection:     cfg.Collection,
		assetID:        cfg.AssetID,
		poolType:       cfg.PoolType,
		pricing:        cfg.Curve,
		params:         cfg.Params.Clone(),
		feeBps:         cfg.FeeBps,
		assetRecipient: assetRecipient,
		feeRecipient:   feeRecipient,
		inv:            cfg.Inventory,
		book:           book,
		nfts:           nfts,
		fees:           fees,
		logger:         logger,
	}, nil
}

func (p *Pair) Address() common.Address    { return p.addr }
func (p *Pair) Owner() common.Address      { return p.owner }
func (p *Pair) Collection() common.Address { return p.collection }
func (p *Pair) AssetID() common.Address    { return p.assetID }
func (p *Pair) PoolType() PoolType         { return p.poolType }
func (p *Pair) Curve() curve.Curve         { return p.pricing }
func (p *Pair) FeeBps() uint64             { return p.feeBps }

// Params returns a copy of the current curve parameters.
func (p *Pair) Params() curve.Params { return p.params.Clone() }

// Balance is the pool's own base-asset balance.
func (p *Pair) Balance() *uint256.Int { return p.book.BalanceOf(p.assetID, p.addr) }

// HeldIDs returns the pool's inventory in strategy order.
func (p *Pair) HeldIDs() []uint64 { return p.inv.IDs() }

// InventorySize reports how many NFTs the pool holds.
func (p *Pair) InventorySize() int { return p.inv.Size() }

// Holds reports whether the pool inventory currently tracks id.
func (p *Pair) Holds(id uint64) bool { return p.inv.Contains(id) }

// FeeRates bundles the current trade and protocol fee rates.
func (p *Pair) FeeRates() curve.Fees {
	return curve.Fees{TradeBps: p.feeBps, ProtocolBps: p.fees.ProtocolFeeBps()}
}

// Snapshot captures the pair's pricing state for rollback.
type Snapshot struct {
	params curve.Params
	inv    inventory.Inventory
}

// Snapshot copies the current parameters and inventory.
func (p *Pair) Snapshot() Snapshot {
	return Snapshot{params: p.params.Clone(), inv: p.inv.Clone()}
}

// Restore rewinds the pair to a previously taken snapshot.
func (p *Pair) Restore(s Snapshot) {
	p.params = s.params.Clone()
	p.inv = s.inv.Clone()
}

// pull moves base asset from a payer. Native custody debits directly;
// token custody spends the payer's allowance granted to the pair.
func (p *Pair) pull(from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	var err error
	if p.assetID == asset.Native {
		err = p.book.Transfer(asset.Native, from, to, amount)
	} else {
		err = p.book.TransferFrom(p.assetID, p.addr, from, to, amount)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// pay moves base asset out of the pool's own balance.
func (p *Pair) pay(to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := p.book.Transfer(p.assetID, p.addr, to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

func (p *Pair) routeProtocolFee(from common.Address, amount *uint256.Int, fromPool bool) error {
	if amount.IsZero() {
		return nil
	}
	var err error
	if fromPool {
		err = p.pay(p.fees.Treasury(), amount)
	} else {
		err = p.pull(from, p.fees.Treasury(), amount)
	}
	if err != nil {
		return err
	}
	return p.fees.RouteFee(p.addr, p.assetID, amount)
}
