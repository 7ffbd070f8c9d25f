package curve

import "github.com/holiman/uint256"

// Exponential scales the price multiplicatively by a WAD-scaled ratio per
// unit: buying quantity n from spot s costs s*(d^n - 1)/(d - 1) and moves
// the spot to s*d^n; selling divides the spot by d per unit. Delta must be
// strictly above one, so the spot never reaches zero on buys and a sell
// that would round it to zero is rejected.
type Exponential struct{}

func (Exponential) Name() string { return "exponential" }

func (Exponential) Validate(p Params) error {
	if p.Delta == nil || !p.Delta.Gt(wad) {
		return ErrInvalidDelta
	}
	if p.SpotPrice == nil || p.SpotPrice.IsZero() {
		return ErrInvalidSpotPrice
	}
	return nil
}

func (c Exponential) BuyInfo(p Params, quantity uint64, fees Fees) (Quote, error) {
	if err := c.Validate(p); err != nil {
		return Quote{}, err
	}
	if quantity == 0 {
		return Quote{}, ErrZeroQuantity
	}

	deltaPowQ, err := wpow(p.Delta, quantity)
	if err != nil {
		return Quote{}, err
	}
	newSpot, err := wmul(p.SpotPrice, deltaPowQ)
	if err != nil {
		return Quote{}, err
	}

	// principal = spot * (delta^q - 1) / (delta - 1), all WAD-scaled
	num, overflow := new(uint256.Int).MulOverflow(p.SpotPrice, new(uint256.Int).Sub(deltaPowQ, wad))
	if overflow {
		return Quote{}, ErrPriceOverflow
	}
	principal := num.Div(num, new(uint256.Int).Sub(p.Delta, wad))

	newParams := Params{SpotPrice: newSpot, Delta: new(uint256.Int).Set(p.Delta)}
	return buyQuote(newParams, principal, fees)
}

func (c Exponential) SellInfo(p Params, quantity uint64, fees Fees) (Quote, error) {
	if err := c.Validate(p); err != nil {
		return Quote{}, err
	}
	if quantity == 0 {
		return Quote{}, ErrZeroQuantity
	}

	invDelta, err := wdiv(wad, p.Delta)
	if err != nil {
		return Quote{}, err
	}
	invPowQ, err := wpow(invDelta, quantity)
	if err != nil {
		return Quote{}, err
	}
	newSpot, err := wmul(p.SpotPrice, invPowQ)
	if err != nil {
		return Quote{}, err
	}
	if newSpot.IsZero() {
		return Quote{}, ErrPriceUnderflow
	}

	// principal = spot * invDelta * (1 - invDelta^q) / (1 - invDelta)
	multiplier := new(uint256.Int).Mul(invDelta, new(uint256.Int).Sub(wad, invPowQ))
	multiplier.Div(multiplier, new(uint256.Int).Sub(wad, invDelta))
	principal, err := wmul(p.SpotPrice, multiplier)
	if err != nil {
		return Quote{}, err
	}

	newParams := Params{SpotPrice: newSpot, Delta: new(uint256.Int).Set(p.Delta)}
	return sellQuote(newParams, principal, fees)
}
