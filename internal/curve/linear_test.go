package curve

import (
	"errors"
	"math"
	"testing"

	"github.com/holiman/uint256"
)

func linearParams(spot, delta uint64) Params {
	return Params{SpotPrice: uint256.NewInt(spot), Delta: uint256.NewInt(delta)}
}

func TestLinearBuySeries(t *testing.T) {
	quote, err := Linear{}.BuyInfo(linearParams(100, 10), 3, Fees{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 100 + 110 + 120
	if quote.Total.Uint64() != 330 {
		t.Fatalf("total mismatch: got %s, want 330", quote.Total)
	}
	if quote.NewParams.SpotPrice.Uint64() != 130 {
		t.Fatalf("new spot mismatch: got %s, want 130", quote.NewParams.SpotPrice)
	}
	if quote.NewParams.Delta.Uint64() != 10 {
		t.Fatalf("delta changed: got %s", quote.NewParams.Delta)
	}
}

func TestLinearSellAfterBuy(t *testing.T) {
	quote, err := Linear{}.SellInfo(linearParams(130, 10), 1, Fees{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Total.Uint64() != 120 {
		t.Fatalf("proceeds mismatch: got %s, want 120", quote.Total)
	}
	if quote.NewParams.SpotPrice.Uint64() != 120 {
		t.Fatalf("new spot mismatch: got %s, want 120", quote.NewParams.SpotPrice)
	}
}

func TestLinearRoundTrip(t *testing.T) {
	start := linearParams(1000, 37)

	buy, err := Linear{}.BuyInfo(start, 5, Fees{})
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	sell, err := Linear{}.SellInfo(buy.NewParams, 5, Fees{})
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	if !sell.NewParams.SpotPrice.Eq(start.SpotPrice) {
		t.Fatalf("spot not restored: got %s, want %s", sell.NewParams.SpotPrice, start.SpotPrice)
	}
	if !sell.Total.Eq(buy.Total) {
		t.Fatalf("zero-fee round trip not exact: paid %s, received %s", buy.Total, sell.Total)
	}
}

func TestLinearFeeIdentity(t *testing.T) {
	fees := Fees{TradeBps: 100, ProtocolBps: 50}

	buy, err := Linear{}.BuyInfo(linearParams(100, 10), 3, fees)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	sum := new(uint256.Int).Add(buy.Principal, buy.ProtocolFee)
	sum.Add(sum, buy.TradeFee)
	if !sum.Eq(buy.Total) {
		t.Fatalf("fee identity broken: %s + %s + %s != %s",
			buy.Principal, buy.ProtocolFee, buy.TradeFee, buy.Total)
	}

	sell, err := Linear{}.SellInfo(linearParams(1000, 10), 2, fees)
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	sum = new(uint256.Int).Add(sell.Total, sell.ProtocolFee)
	sum.Add(sum, sell.TradeFee)
	if !sum.Eq(sell.Principal) {
		t.Fatalf("fee identity broken: %s + %s + %s != %s",
			sell.Total, sell.ProtocolFee, sell.TradeFee, sell.Principal)
	}
}

func TestLinearSellUnderflow(t *testing.T) {
	_, err := Linear{}.SellInfo(linearParams(100, 50), 3, Fees{})
	if !errors.Is(err, ErrPriceUnderflow) {
		t.Fatalf("expected ErrPriceUnderflow, got %v", err)
	}
}

func TestLinearBuyOverflow(t *testing.T) {
	maxDelta := new(uint256.Int).Sub(new(uint256.Int), uint256.NewInt(1)) // 2^256-1
	params := Params{SpotPrice: uint256.NewInt(1), Delta: maxDelta}
	if _, err := (Linear{}).BuyInfo(params, 2, Fees{}); !errors.Is(err, ErrPriceOverflow) {
		t.Fatalf("expected ErrPriceOverflow, got %v", err)
	}
}

func TestLinearZeroQuantity(t *testing.T) {
	if _, err := (Linear{}).BuyInfo(linearParams(100, 10), 0, Fees{}); !errors.Is(err, ErrZeroQuantity) {
		t.Fatalf("expected ErrZeroQuantity, got %v", err)
	}
	if _, err := (Linear{}).SellInfo(linearParams(100, 10), 0, Fees{}); !errors.Is(err, ErrZeroQuantity) {
		t.Fatalf("expected ErrZeroQuantity, got %v", err)
	}
}

func TestInvalidFeeRates(t *testing.T) {
	fees := Fees{TradeBps: 9000, ProtocolBps: 1000}
	if _, err := (Linear{}).BuyInfo(linearParams(100, 10), 1, fees); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}

	// rates whose uint64 sum wraps around to something small
	huge := Fees{TradeBps: math.MaxUint64, ProtocolBps: 2}
	if _, err := (Linear{}).BuyInfo(linearParams(100, 10), 1, huge); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
	if _, err := (Linear{}).SellInfo(linearParams(100, 10), 1, huge); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
}
