package curve

import "github.com/holiman/uint256"

// wad is the fixed-point scale (1e18) shared by all WAD-valued parameters.
var wad = uint256.NewInt(1e18)

// WAD returns a copy of the fixed-point one.
func WAD() *uint256.Int {
	return new(uint256.Int).Set(wad)
}

// wmul computes x*y/WAD, rejecting intermediate 256-bit overflow.
func wmul(x, y *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrPriceOverflow
	}
	return product.Div(product, wad), nil
}

// wdiv computes x*WAD/y rounded down.
func wdiv(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return nil, ErrInvalidDelta
	}
	scaled, overflow := new(uint256.Int).MulOverflow(x, wad)
	if overflow {
		return nil, ErrPriceOverflow
	}
	return scaled.Div(scaled, y), nil
}

// wpow raises a WAD-scaled base to an integer power by squaring. Relative
// error is a few parts in 1e18 per multiplication, far inside the 1e-9
// budget for any quantity a single trade can carry.
func wpow(base *uint256.Int, n uint64) (*uint256.Int, error) {
	result := WAD()
	factor := new(uint256.Int).Set(base)
	for n > 0 {
		if n&1 == 1 {
			next, err := wmul(result, factor)
			if err != nil {
				return nil, err
			}
			result = next
		}
		n >>= 1
		if n == 0 {
			break
		}
		next, err := wmul(factor, factor)
		if err != nil {
			return nil, err
		}
		factor = next
	}
	return result, nil
}

// bpsShare computes amount*bps/10000 rounded down.
func bpsShare(amount *uint256.Int, bps uint64) (*uint256.Int, error) {
	if bps == 0 {
		return new(uint256.Int), nil
	}
	share, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(bps))
	if overflow {
		return nil, ErrPriceOverflow
	}
	return share.Div(share, uint256.NewInt(FeeDenominator)), nil
}
