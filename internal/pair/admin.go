package pair

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mathewwhere/lssvm/internal/curve"
)

// DepositNFTs pulls ids from a depositor into the pool inventory.
func (p *Pair) DepositNFTs(from common.Address, ids []uint64) error {
	snap := p.Snapshot()
	nftSnap := p.nfts.Snapshot()

	if err := p.inv.Add(ids...); err != nil {
		return fmt.Errorf("deposit ids: %w", err)
	}
	if err := p.nfts.TransferFrom(p.collection, p.addr, from, p.addr, ids); err != nil {
		p.Restore(snap)
		p.nfts.Restore(nftSnap)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// DepositToken pulls base asset from a depositor into the pool balance.
func (p *Pair) DepositToken(from common.Address, amount *uint256.Int) error {
	return p.pull(from, p.addr, amount)
}

// WithdrawNFTs sends ids from the pool inventory to the owner's recipient.
func (p *Pair) WithdrawNFTs(caller, to common.Address, ids []uint64) error {
	if caller != p.owner {
		return ErrUnauthorized
	}
	snap := p.Snapshot()
	nftSnap := p.nfts.Snapshot()

	if err := p.inv.Remove(ids); err != nil {
		return fmt.Errorf("%w: %v", ErrNftNotInPool, err)
	}
	if err := p.nfts.TransferFrom(p.collection, p.addr, p.addr, to, ids); err != nil {
		p.Restore(snap)
		p.nfts.Restore(nftSnap)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// WithdrawToken sends base asset from the pool balance to the owner's
// recipient.
func (p *Pair) WithdrawToken(caller, to common.Address, amount *uint256.Int) error {
	if caller != p.owner {
		return ErrUnauthorized
	}
	return p.pay(to, amount)
}

// SetParams replaces the curve parameters, owner only.
func (p *Pair) SetParams(caller common.Address, params curve.Params) error {
	if caller != p.owner {
		return ErrUnauthorized
	}
	if err := p.pricing.Validate(params); err != nil {
		return err
	}
	p.params = params.Clone()
	return nil
}

// SetFeeBps changes the trade fee rate, owner only.
func (p *Pair) SetFeeBps(caller common.Address, bps uint64) error {
	if caller != p.owner {
		return ErrUnauthorized
	}
	if bps >= curve.FeeDenominator {
		return curve.ErrInvalidFee
	}
	p.feeBps = bps
	return nil
}

// SetAssetRecipient redirects trade principal, owner only. The zero
// address points proceeds back at the pool.
func (p *Pair) SetAssetRecipient(caller, recipient common.Address) error {
	if caller != p.owner {
		return ErrUnauthorized
	}
	if recipient == (common.Address{}) {
		recipient = p.addr
	}
	p.assetRecipient = recipient
	return nil
}

// SetFeeRecipient redirects trade fees, owner only.
func (p *Pair) SetFeeRecipient(caller, recipient common.Address) error {
	if caller != p.owner {
		return ErrUnauthorized
	}
	if recipient == (common.Address{}) {
		recipient = p.owner
	}
	p.feeRecipient = recipient
	return nil
}
