// Package router coordinates swap plans that span several pairs. A plan
// either settles every leg or none: pricing is dry-run against simulated
// curve state before anything commits, and a settlement failure rewinds
// all books and pairs touched so far. The router escrows the caller's
// declared maximum for buys and refunds the excess in the same call; it
// holds no balance between calls.
package router

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/mathewwhere/lssvm/internal/asset"
	"github.com/mathewwhere/lssvm/internal/curve"
	"github.com/mathewwhere/lssvm/internal/pair"
)

var (
	ErrDeadlineExpired = errors.New("deadline expired")
	ErrEmptyPlan       = errors.New("plan has no legs")
	ErrMixedAssets     = errors.New("plan mixes base-asset modes")
)

// Config wires the router to the custody books.
type Config struct {
	Address common.Address
	Now     func() time.Time
	Logger  *zap.Logger
}

type Router struct {
	addr   common.Address
	book   *asset.Book
	nfts   *asset.NFTBook
	now    func() time.Time
	logger *zap.Logger
}

func New(cfg Config, book *asset.Book, nfts *asset.NFTBook) *Router {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{addr: cfg.Address, book: book, nfts: nfts, now: now, logger: logger}
}

func (r *Router) Address() common.Address { return r.addr }

// BuyLeg buys from one pair: specific ids when IDs is set, otherwise
// Quantity ids chosen by the pool.
type BuyLeg struct {
	Pair     *pair.Pair
	IDs      []uint64
	Quantity uint64
}

// SellLeg sells the given ids into one pair.
type SellLeg struct {
	Pair *pair.Pair
	IDs  []uint64
}

// LegResult reports one settled leg.
type LegResult struct {
	Pair   common.Address
	Result pair.SwapResult
}

func (r *Router) checkDeadline(deadline time.Time) error {
	if !deadline.IsZero() && r.now().After(deadline) {
		return ErrDeadlineExpired
	}
	return nil
}

func planAsset(first common.Address, legs []*pair.Pair) (common.Address, error) {
	for _, p := range legs {
		if p.AssetID() != first {
			return common.Address{}, ErrMixedAssets
		}
	}
	return first, nil
}

// SwapTokenForNFTs executes a buy plan. The whole plan fails with no state
// change if the summed quotes exceed maxTotalInput; any escrow not spent
// is refunded to the payer.
func (r *Router) SwapTokenForNFTs(payer, recipient common.Address, legs []BuyLeg, maxTotalInput *uint256.Int, deadline time.Time) ([]LegResult, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, ErrEmptyPlan
	}
	if maxTotalInput == nil {
		return nil, pair.ErrSlippageExceeded
	}
	pairs := make([]*pair.Pair, len(legs))
	for i, leg := range legs {
		pairs[i] = leg.Pair
	}
	assetID, err := planAsset(legs[0].Pair.AssetID(), pairs)
	if err != nil {
		return nil, err
	}

	quotes, total, err := r.dryRunBuys(legs)
	if err != nil {
		return nil, err
	}
	if total.Gt(maxTotalInput) {
		return nil, pair.ErrSlippageExceeded
	}

	// collect the declared maximum up front, pay legs from escrow,
	// refund the remainder below
	if err := r.collect(assetID, payer, maxTotalInput); err != nil {
		return nil, err
	}
	refundEscrow := func() {
		// escrow return path; collect succeeded so this cannot fail
		_ = r.book.Transfer(assetID, r.addr, payer, r.book.BalanceOf(assetID, r.addr))
	}

	bookSnap := r.book.Snapshot()
	nftSnap := r.nfts.Snapshot()
	pairSnaps := snapshotPairs(pairs)

	results := make([]LegResult, 0, len(legs))
	for i, leg := range legs {
		if assetID != asset.Native {
			r.book.Approve(assetID, r.addr, leg.Pair.Address(), quotes[i].Total)
		}
		var res pair.SwapResult
		var err error
		if len(leg.IDs) > 0 {
			res, err = leg.Pair.SwapTokenForSpecificNFTs(r.addr, recipient, leg.IDs, quotes[i].Total)
		} else {
			res, err = leg.Pair.SwapTokenForAnyNFTs(r.addr, recipient, leg.Quantity, quotes[i].Total)
		}
		if err != nil {
			r.book.Restore(bookSnap)
			r.nfts.Restore(nftSnap)
			restorePairs(pairSnaps)
			refundEscrow()
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		results = append(results, LegResult{Pair: leg.Pair.Address(), Result: res})
	}

	refundEscrow()

	r.logger.Debug("buy plan settled",
		zap.Int("legs", len(legs)),
		zap.String("total_input", total.Dec()),
	)
	return results, nil
}

// SwapNFTsForToken executes a sell plan. The whole plan fails with no
// state change if the summed quotes fall below minTotalOutput.
func (r *Router) SwapNFTsForToken(seller, recipient common.Address, legs []SellLeg, minTotalOutput *uint256.Int, deadline time.Time) ([]LegResult, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, ErrEmptyPlan
	}
	pairs := make([]*pair.Pair, len(legs))
	for i, leg := range legs {
		pairs[i] = leg.Pair
	}
	if _, err := planAsset(legs[0].Pair.AssetID(), pairs); err != nil {
		return nil, err
	}

	total, err := r.dryRunSells(legs)
	if err != nil {
		return nil, err
	}
	if minTotalOutput != nil && total.Lt(minTotalOutput) {
		return nil, pair.ErrSlippageExceeded
	}

	bookSnap := r.book.Snapshot()
	nftSnap := r.nfts.Snapshot()
	pairSnaps := snapshotPairs(pairs)

	results := make([]LegResult, 0, len(legs))
	for i, leg := range legs {
		res, err := leg.Pair.SwapNFTsForToken(seller, recipient, leg.IDs, nil)
		if err != nil {
			r.book.Restore(bookSnap)
			r.nfts.Restore(nftSnap)
			restorePairs(pairSnaps)
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		results = append(results, LegResult{Pair: leg.Pair.Address(), Result: res})
	}

	r.logger.Debug("sell plan settled",
		zap.Int("legs", len(legs)),
		zap.String("total_output", total.Dec()),
	)
	return results, nil
}

// collect pulls the escrow amount from the payer into the router.
func (r *Router) collect(assetID, payer common.Address, amount *uint256.Int) error {
	var err error
	if assetID == asset.Native {
		err = r.book.Transfer(asset.Native, payer, r.addr, amount)
	} else {
		err = r.book.TransferFrom(assetID, r.addr, payer, r.addr, amount)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", pair.ErrTransferFailed, err)
	}
	return nil
}

// dryRunBuys prices every leg against simulated curve state, carrying
// parameter updates across legs that target the same pair.
func (r *Router) dryRunBuys(legs []BuyLeg) ([]curve.Quote, *uint256.Int, error) {
	simParams := make(map[*pair.Pair]curve.Params)
	simCount := make(map[*pair.Pair]int)
	simTaken := make(map[*pair.Pair]map[uint64]struct{})

	quotes := make([]curve.Quote, len(legs))
	total := new(uint256.Int)
	for i, leg := range legs {
		p := leg.Pair
		if p.PoolType() == pair.TokenPool {
			return nil, nil, fmt.Errorf("leg %d: %w", i, pair.ErrWrongPoolType)
		}
		params, ok := simParams[p]
		if !ok {
			params = p.Params()
			simCount[p] = p.InventorySize()
			simTaken[p] = make(map[uint64]struct{})
		}

		quantity := leg.Quantity
		if len(leg.IDs) > 0 {
			quantity = uint64(len(leg.IDs))
			for _, id := range leg.IDs {
				if _, used := simTaken[p][id]; used || !p.Holds(id) {
					return nil, nil, fmt.Errorf("leg %d id %d: %w", i, id, pair.ErrNftNotInPool)
				}
				simTaken[p][id] = struct{}{}
			}
		}
		if quantity == 0 || quantity > uint64(simCount[p]) {
			return nil, nil, fmt.Errorf("leg %d: %w", i, pair.ErrEmptyPool)
		}

		quote, err := p.Curve().BuyInfo(params, quantity, p.FeeRates())
		if err != nil {
			return nil, nil, fmt.Errorf("leg %d: %w", i, err)
		}
		quotes[i] = quote
		simParams[p] = quote.NewParams
		simCount[p] -= int(quantity)

		var overflow bool
		total, overflow = total.AddOverflow(total, quote.Total)
		if overflow {
			return nil, nil, fmt.Errorf("leg %d: %w", i, curve.ErrPriceOverflow)
		}
	}
	return quotes, total, nil
}

// dryRunSells mirrors dryRunBuys for the sell direction, tracking each
// pool's remaining base-asset balance across legs.
func (r *Router) dryRunSells(legs []SellLeg) (*uint256.Int, error) {
	simParams := make(map[*pair.Pair]curve.Params)
	simBalance := make(map[*pair.Pair]*uint256.Int)

	total := new(uint256.Int)
	for i, leg := range legs {
		p := leg.Pair
		if p.PoolType() == pair.NFTPool {
			return nil, fmt.Errorf("leg %d: %w", i, pair.ErrWrongPoolType)
		}
		params, ok := simParams[p]
		if !ok {
			params = p.Params()
			simBalance[p] = p.Balance()
		}
		if len(leg.IDs) == 0 {
			return nil, fmt.Errorf("leg %d: %w", i, curve.ErrZeroQuantity)
		}

		quote, err := p.Curve().SellInfo(params, uint64(len(leg.IDs)), p.FeeRates())
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		if simBalance[p].Lt(quote.Principal) {
			return nil, fmt.Errorf("leg %d: %w", i, pair.ErrEmptyPool)
		}
		simBalance[p].Sub(simBalance[p], quote.Principal)
		simParams[p] = quote.NewParams
		total.Add(total, quote.Total)
	}
	return total, nil
}

func snapshotPairs(pairs []*pair.Pair) map[*pair.Pair]pair.Snapshot {
	snaps := make(map[*pair.Pair]pair.Snapshot, len(pairs))
	for _, p := range pairs {
		if _, ok := snaps[p]; !ok {
			snaps[p] = p.Snapshot()
		}
	}
	return snaps
}

func restorePairs(snaps map[*pair.Pair]pair.Snapshot) {
	for p, snap := range snaps {
		p.Restore(snap)
	}
}
