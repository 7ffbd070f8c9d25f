package factory

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/mathewwhere/lssvm/internal/curve"
	"github.com/mathewwhere/lssvm/internal/inventory"
	"github.com/mathewwhere/lssvm/internal/pair"
)

// PairSpec describes the pair to create. Initial deposits are pulled from
// the creator, who must have approved the factory as an operator for the
// collection (and granted a token allowance in token mode).
type PairSpec struct {
	Owner          common.Address
	Collection     common.Address
	AssetID        common.Address
	PoolType       pair.PoolType
	CurveName      string
	Params         curve.Params
	FeeBps         uint64
	AssetRecipient common.Address
	FeeRecipient   common.Address
	Enumerable     bool
	InitialIDs     []uint64
	InitialBalance *uint256.Int
}

// CreatePair validates the requested pair against the allow-list, funds the new pool
// with the initial deposits, and indexes it. The pair captures the curve
// implementation at creation; later allow-list changes do not affect it.
func (f *Factory) CreatePair(spec PairSpec) (*pair.Pair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.curves[spec.CurveName]
	if !ok {
		return nil, fmt.Errorf("curve %q: %w", spec.CurveName, ErrUnrecognizedCurve)
	}
	if err := c.Validate(spec.Params); err != nil {
		return nil, err
	}

	var inv inventory.Inventory
	var err error
	if spec.Enumerable {
		inv, err = inventory.NewEnumerable(spec.InitialIDs)
	} else {
		inv, err = inventory.NewSet(spec.InitialIDs)
	}
	if err != nil {
		return nil, fmt.Errorf("seed inventory: %w", err)
	}

	handle := f.deriveHandle()

	bookSnap := f.book.Snapshot()
	nftSnap := f.nfts.Snapshot()
	if len(spec.InitialIDs) > 0 {
		if err := f.nfts.TransferFrom(spec.Collection, f.addr, spec.Owner, handle, spec.InitialIDs); err != nil {
			return nil, fmt.Errorf("%w: %v", pair.ErrTransferFailed, err)
		}
	}
	if spec.InitialBalance != nil && !spec.InitialBalance.IsZero() {
		err := f.book.TransferFrom(spec.AssetID, f.addr, spec.Owner, handle, spec.InitialBalance)
		if err != nil {
			f.nfts.Restore(nftSnap)
			f.book.Restore(bookSnap)
			return nil, fmt.Errorf("%w: %v", pair.ErrTransferFailed, err)
		}
	}

	p, err := pair.New(pair.Config{
		Address:        handle,
		Owner:          spec.Owner,
		Collection:     spec.Collection,
		AssetID:        spec.AssetID,
		PoolType:       spec.PoolType,
		Curve:          c,
		Params:         spec.Params,
		FeeBps:         spec.FeeBps,
		AssetRecipient: spec.AssetRecipient,
		FeeRecipient:   spec.FeeRecipient,
		Inventory:      inv,
		Logger:         f.logger,
	}, f.book, f.nfts, f)
	if err != nil {
		f.nfts.Restore(nftSnap)
		f.book.Restore(bookSnap)
		return nil, err
	}

	f.pairs[handle] = p
	f.logger.Info("pair created",
		zap.String("pair", handle.Hex()),
		zap.String("owner", spec.Owner.Hex()),
		zap.String("collection", spec.Collection.Hex()),
		zap.String("curve", spec.CurveName),
		zap.String("pool_type", spec.PoolType.String()),
		zap.Int("initial_nfts", len(spec.InitialIDs)),
	)
	return p, nil
}
