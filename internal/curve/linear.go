package curve

import "github.com/holiman/uint256"

// Linear prices each successive unit one delta step away from the previous
// one: buying quantity n from spot s costs s + (s+d) + ... + (s+(n-1)d) and
// moves the spot to s + n*d; selling mirrors it exactly, so a zero-fee
// round trip restores the original parameters.
type Linear struct{}

func (Linear) Name() string { return "linear" }

func (Linear) Validate(p Params) error {
	if p.SpotPrice == nil || p.Delta == nil {
		return ErrInvalidSpotPrice
	}
	return nil
}

func (c Linear) BuyInfo(p Params, quantity uint64, fees Fees) (Quote, error) {
	if err := c.Validate(p); err != nil {
		return Quote{}, err
	}
	if quantity == 0 {
		return Quote{}, ErrZeroQuantity
	}

	q := uint256.NewInt(quantity)
	step, overflow := new(uint256.Int).MulOverflow(p.Delta, q)
	if overflow {
		return Quote{}, ErrPriceOverflow
	}
	newSpot, overflow := new(uint256.Int).AddOverflow(p.SpotPrice, step)
	if overflow {
		return Quote{}, ErrPriceOverflow
	}

	principal, err := arithmeticSeries(p.SpotPrice, p.Delta, quantity)
	if err != nil {
		return Quote{}, err
	}

	newParams := Params{SpotPrice: newSpot, Delta: new(uint256.Int).Set(p.Delta)}
	return buyQuote(newParams, principal, fees)
}

func (c Linear) SellInfo(p Params, quantity uint64, fees Fees) (Quote, error) {
	if err := c.Validate(p); err != nil {
		return Quote{}, err
	}
	if quantity == 0 {
		return Quote{}, ErrZeroQuantity
	}

	q := uint256.NewInt(quantity)
	dec, overflow := new(uint256.Int).MulOverflow(p.Delta, q)
	if overflow || dec.Gt(p.SpotPrice) {
		return Quote{}, ErrPriceUnderflow
	}
	newSpot := new(uint256.Int).Sub(p.SpotPrice, dec)

	// sum_{i=1..q}(spot - i*delta) == q*newSpot + delta*q*(q-1)/2
	principal, err := arithmeticSeries(newSpot, p.Delta, quantity)
	if err != nil {
		return Quote{}, err
	}

	newParams := Params{SpotPrice: newSpot, Delta: new(uint256.Int).Set(p.Delta)}
	return sellQuote(newParams, principal, fees)
}

// arithmeticSeries computes q*start + delta*q*(q-1)/2.
func arithmeticSeries(start, delta *uint256.Int, quantity uint64) (*uint256.Int, error) {
	q := uint256.NewInt(quantity)
	base, overflow := new(uint256.Int).MulOverflow(start, q)
	if overflow {
		return nil, ErrPriceOverflow
	}

	// q*(q-1) is even, so halving first keeps the series exact.
	pairs := new(uint256.Int).Mul(q, uint256.NewInt(quantity-1))
	pairs.Rsh(pairs, 1)
	tri, overflow := new(uint256.Int).MulOverflow(delta, pairs)
	if overflow {
		return nil, ErrPriceOverflow
	}

	sum, overflow := base.AddOverflow(base, tri)
	if overflow {
		return nil, ErrPriceOverflow
	}
	return sum, nil
}
