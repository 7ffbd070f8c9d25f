package pair

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/mathewwhere/lssvm/internal/curve"
)

// SwapResult reports one settled trade.
type SwapResult struct {
	IDs         []uint64
	Amount      *uint256.Int // input paid (buy) or output received (sell)
	ProtocolFee *uint256.Int
	TradeFee    *uint256.Int
	SpotBefore  *uint256.Int
	SpotAfter   *uint256.Int
}

// QuoteBuy prices buying quantity NFTs from the pool without mutating it.
func (p *Pair) QuoteBuy(quantity uint64) (curve.Quote, error) {
	if p.poolType == TokenPool {
		return curve.Quote{}, ErrWrongPoolType
	}
	if p.inv.Size() == 0 || quantity > uint64(p.inv.Size()) {
		return curve.Quote{}, ErrEmptyPool
	}
	return p.pricing.BuyInfo(p.params, quantity, p.FeeRates())
}

// QuoteBuySpecific prices buying the given ids, verifying membership.
func (p *Pair) QuoteBuySpecific(ids []uint64) (curve.Quote, error) {
	if p.poolType == TokenPool {
		return curve.Quote{}, ErrWrongPoolType
	}
	if p.inv.Size() == 0 {
		return curve.Quote{}, ErrEmptyPool
	}
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if !p.inv.Contains(id) {
			return curve.Quote{}, fmt.Errorf("id %d: %w", id, ErrNftNotInPool)
		}
		if _, dup := seen[id]; dup {
			return curve.Quote{}, fmt.Errorf("id %d repeated: %w", id, ErrNftNotInPool)
		}
		seen[id] = struct{}{}
	}
	return p.pricing.BuyInfo(p.params, uint64(len(ids)), p.FeeRates())
}

// QuoteSell prices selling quantity NFTs into the pool without mutation.
func (p *Pair) QuoteSell(quantity uint64) (curve.Quote, error) {
	if p.poolType == NFTPool {
		return curve.Quote{}, ErrWrongPoolType
	}
	quote, err := p.pricing.SellInfo(p.params, quantity, p.FeeRates())
	if err != nil {
		return curve.Quote{}, err
	}
	if p.Balance().Lt(quote.Principal) {
		return curve.Quote{}, ErrEmptyPool
	}
	return quote, nil
}

// SwapTokenForSpecificNFTs buys the given ids for base asset. The payer is
// charged at most maxInput; nothing mutates when the quote exceeds it.
func (p *Pair) SwapTokenForSpecificNFTs(payer, recipient common.Address, ids []uint64, maxInput *uint256.Int) (SwapResult, error) {
	quote, err := p.QuoteBuySpecific(ids)
	if err != nil {
		return SwapResult{}, err
	}
	if maxInput == nil || quote.Total.Gt(maxInput) {
		return SwapResult{}, ErrSlippageExceeded
	}
	taken := make([]uint64, len(ids))
	copy(taken, ids)
	return p.settleBuy(payer, recipient, taken, uint64(len(ids)), quote)
}

// SwapTokenForAnyNFTs buys quantity NFTs chosen by the inventory strategy:
// front of sequence for enumerable pools, unspecified order otherwise.
func (p *Pair) SwapTokenForAnyNFTs(payer, recipient common.Address, quantity uint64, maxInput *uint256.Int) (SwapResult, error) {
	quote, err := p.QuoteBuy(quantity)
	if err != nil {
		return SwapResult{}, err
	}
	if maxInput == nil || quote.Total.Gt(maxInput) {
		return SwapResult{}, ErrSlippageExceeded
	}
	return p.settleBuy(payer, recipient, nil, quantity, quote)
}

// SwapNFTsForToken sells the given ids into the pool. The seller must own
// every id; the pool pays out at least minOutput or nothing happens.
func (p *Pair) SwapNFTsForToken(seller, recipient common.Address, ids []uint64, minOutput *uint256.Int) (SwapResult, error) {
	if p.poolType == NFTPool {
		return SwapResult{}, ErrWrongPoolType
	}
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		owner, ok := p.nfts.OwnerOf(p.collection, id)
		if !ok || owner != seller {
			return SwapResult{}, fmt.Errorf("id %d not held by seller: %w", id, ErrNftNotInPool)
		}
		if _, dup := seen[id]; dup {
			return SwapResult{}, fmt.Errorf("id %d repeated: %w", id, ErrNftNotInPool)
		}
		seen[id] = struct{}{}
	}

	quote, err := p.QuoteSell(uint64(len(ids)))
	if err != nil {
		return SwapResult{}, err
	}
	if minOutput != nil && quote.Total.Lt(minOutput) {
		return SwapResult{}, ErrSlippageExceeded
	}

	spotBefore := new(uint256.Int).Set(p.params.SpotPrice)
	pairSnap := p.Snapshot()
	bookSnap := p.book.Snapshot()
	nftSnap := p.nfts.Snapshot()

	// finalize state before any outbound transfer
	if err := p.inv.Add(ids...); err != nil {
		return SwapResult{}, fmt.Errorf("%w: %v", ErrNftNotInPool, err)
	}
	p.params = quote.NewParams.Clone()

	err = func() error {
		if err := p.nfts.TransferFrom(p.collection, p.addr, seller, p.addr, ids); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		if err := p.pay(recipient, quote.Total); err != nil {
			return err
		}
		if err := p.routeProtocolFee(p.addr, quote.ProtocolFee, true); err != nil {
			return err
		}
		return p.pay(p.feeRecipient, quote.TradeFee)
	}()
	if err != nil {
		p.Restore(pairSnap)
		p.book.Restore(bookSnap)
		p.nfts.Restore(nftSnap)
		return SwapResult{}, err
	}

	p.logger.Debug("nfts sold into pool",
		zap.String("pair", p.addr.Hex()),
		zap.Int("quantity", len(ids)),
		zap.String("output", quote.Total.Dec()),
	)

	return SwapResult{
		IDs:         ids,
		Amount:      quote.Total,
		ProtocolFee: quote.ProtocolFee,
		TradeFee:    quote.TradeFee,
		SpotBefore:  spotBefore,
		SpotAfter:   new(uint256.Int).Set(p.params.SpotPrice),
	}, nil
}

// settleBuy finalizes a priced buy: ids nil means the inventory strategy
// picks quantity ids during the mutation phase.
func (p *Pair) settleBuy(payer, recipient common.Address, ids []uint64, quantity uint64, quote curve.Quote) (SwapResult, error) {
	spotBefore := new(uint256.Int).Set(p.params.SpotPrice)
	pairSnap := p.Snapshot()
	bookSnap := p.book.Snapshot()
	nftSnap := p.nfts.Snapshot()

	// finalize state before any outbound transfer
	var err error
	if ids == nil {
		ids, err = p.inv.Take(int(quantity))
	} else {
		err = p.inv.Remove(ids)
	}
	if err != nil {
		return SwapResult{}, fmt.Errorf("%w: %v", ErrNftNotInPool, err)
	}
	p.params = quote.NewParams.Clone()

	err = func() error {
		if err := p.routeProtocolFee(payer, quote.ProtocolFee, false); err != nil {
			return err
		}
		if err := p.pull(payer, p.feeRecipient, quote.TradeFee); err != nil {
			return err
		}
		if err := p.pull(payer, p.assetRecipient, quote.Principal); err != nil {
			return err
		}
		if err := p.nfts.TransferFrom(p.collection, p.addr, p.addr, recipient, ids); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		return nil
	}()
	if err != nil {
		p.Restore(pairSnap)
		p.book.Restore(bookSnap)
		p.nfts.Restore(nftSnap)
		return SwapResult{}, err
	}

	p.logger.Debug("nfts bought from pool",
		zap.String("pair", p.addr.Hex()),
		zap.Int("quantity", len(ids)),
		zap.String("input", quote.Total.Dec()),
	)

	return SwapResult{
		IDs:         ids,
		Amount:      quote.Total,
		ProtocolFee: quote.ProtocolFee,
		TradeFee:    quote.TradeFee,
		SpotBefore:  spotBefore,
		SpotAfter:   new(uint256.Int).Set(p.params.SpotPrice),
	}, nil
}
