package curve

import (
	"errors"

	"github.com/holiman/uint256"
)

// FeeDenominator is the basis-point scale for fee rates.
const FeeDenominator = 10_000

var (
	ErrInvalidDelta     = errors.New("delta out of curve domain")
	ErrInvalidSpotPrice = errors.New("spot price out of curve domain")
	ErrZeroQuantity     = errors.New("quantity must be greater than zero")
	ErrPriceOverflow    = errors.New("price exceeds representable range")
	ErrPriceUnderflow   = errors.New("price below representable range")
	ErrInvalidFee       = errors.New("combined fee rate must be below one")
)

// Params is the numeric state a curve prices against. Delta semantics are
// curve-specific: an absolute step for the linear curve, a WAD-scaled ratio
// for the exponential curve.
type Params struct {
	SpotPrice *uint256.Int
	Delta     *uint256.Int
}

// Clone returns an independent copy of the parameters.
func (p Params) Clone() Params {
	out := Params{}
	if p.SpotPrice != nil {
		out.SpotPrice = new(uint256.Int).Set(p.SpotPrice)
	}
	if p.Delta != nil {
		out.Delta = new(uint256.Int).Set(p.Delta)
	}
	return out
}

// Fees carries the basis-point rates applied to the curve principal.
type Fees struct {
	TradeBps    uint64
	ProtocolBps uint64
}

func (f Fees) validate() error {
	// individual checks first so the sum cannot wrap
	if f.TradeBps >= FeeDenominator || f.ProtocolBps >= FeeDenominator {
		return ErrInvalidFee
	}
	if f.TradeBps+f.ProtocolBps >= FeeDenominator {
		return ErrInvalidFee
	}
	return nil
}

// Quote is the result of pricing one trade. Total is the amount charged to
// the buyer (principal plus fees) or owed to the seller (principal minus
// fees); principal + protocolFee + tradeFee always reassembles the amount
// the buy side pays.
type Quote struct {
	NewParams   Params
	Principal   *uint256.Int
	ProtocolFee *uint256.Int
	TradeFee    *uint256.Int
	Total       *uint256.Int
}

// Curve prices buys and sells against opaque parameters. Implementations
// are pure: deterministic, no custody knowledge, no side effects.
type Curve interface {
	Name() string
	Validate(p Params) error
	BuyInfo(p Params, quantity uint64, fees Fees) (Quote, error)
	SellInfo(p Params, quantity uint64, fees Fees) (Quote, error)
}

// buyQuote assembles a quote where fees are charged on top of the principal.
func buyQuote(newParams Params, principal *uint256.Int, fees Fees) (Quote, error) {
	if err := fees.validate(); err != nil {
		return Quote{}, err
	}
	protocol, err := bpsShare(principal, fees.ProtocolBps)
	if err != nil {
		return Quote{}, err
	}
	trade, err := bpsShare(principal, fees.TradeBps)
	if err != nil {
		return Quote{}, err
	}
	total, overflow := new(uint256.Int).AddOverflow(principal, protocol)
	if overflow {
		return Quote{}, ErrPriceOverflow
	}
	total, overflow = total.AddOverflow(total, trade)
	if overflow {
		return Quote{}, ErrPriceOverflow
	}
	return Quote{
		NewParams:   newParams,
		Principal:   principal,
		ProtocolFee: protocol,
		TradeFee:    trade,
		Total:       total,
	}, nil
}

// sellQuote assembles a quote where fees are deducted from the principal.
func sellQuote(newParams Params, principal *uint256.Int, fees Fees) (Quote, error) {
	if err := fees.validate(); err != nil {
		return Quote{}, err
	}
	protocol, err := bpsShare(principal, fees.ProtocolBps)
	if err != nil {
		return Quote{}, err
	}
	trade, err := bpsShare(principal, fees.TradeBps)
	if err != nil {
		return Quote{}, err
	}
	total := new(uint256.Int).Sub(principal, protocol)
	total.Sub(total, trade)
	return Quote{
		NewParams:   newParams,
		Principal:   principal,
		ProtocolFee: protocol,
		TradeFee:    trade,
		Total:       total,
	}, nil
}
