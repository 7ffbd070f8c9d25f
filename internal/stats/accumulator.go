package stats

import (
	"fmt"
	"math/big"

	"github.com/mathewwhere/lssvm/internal/model"
)

// Accumulator holds aggregate values for a pair window.
type Accumulator struct {
	PairAddress  string
	PairMeta     model.PairMeta
	Collection   string
	AssetID      string
	WindowStart  uint64
	WindowEnd    uint64
	TradeCount   uint64
	BuyCount     uint64
	SellCount    uint64
	VolumeIn     *big.Int
	VolumeOut    *big.Int
	ProtocolFees *big.Int
	TradeFees    *big.Int
	NFTsIn       uint64
	NFTsOut      uint64
	SpotOpen     string
	SpotClose    string
	LastTS       uint64
	FirstStep    uint64
}

func NewAccumulator(record model.TradeRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PairAddress:  record.Pair,
		PairMeta:     record.Meta,
		Collection:   record.Collection,
		AssetID:      record.AssetID,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		VolumeIn:     big.NewInt(0),
		VolumeOut:    big.NewInt(0),
		ProtocolFees: big.NewInt(0),
		TradeFees:    big.NewInt(0),
		SpotOpen:     record.SpotBefore,
		LastTS:       record.Timestamp,
		FirstStep:    record.Step,
	}
}

func (a *Accumulator) AddTrade(record model.TradeRecord) error {
	amount, err := parseBigInt(record.Amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	protocolFee, err := parseBigInt(record.ProtocolFee)
	if err != nil {
		return fmt.Errorf("protocol fee: %w", err)
	}
	tradeFee, err := parseBigInt(record.TradeFee)
	if err != nil {
		return fmt.Errorf("trade fee: %w", err)
	}

	switch record.Side {
	case model.SideBuy:
		a.BuyCount++
		a.VolumeIn.Add(a.VolumeIn, amount)
		a.NFTsOut += uint64(len(record.TokenIDs))
	case model.SideSell:
		a.SellCount++
		a.VolumeOut.Add(a.VolumeOut, amount)
		a.NFTsIn += uint64(len(record.TokenIDs))
	default:
		return fmt.Errorf("unknown trade side: %q", record.Side)
	}

	a.ProtocolFees.Add(a.ProtocolFees, protocolFee)
	a.TradeFees.Add(a.TradeFees, tradeFee)
	a.TradeCount++

	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
		a.SpotClose = record.SpotAfter
	}
	if a.FirstStep == 0 || record.Step < a.FirstStep {
		a.FirstStep = record.Step
	}
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
