package sim

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mathewwhere/lssvm/internal/model"
	"github.com/mathewwhere/lssvm/internal/pair"
)

func buildTradeRecord(pool *pair.Pair, side string, trader common.Address, res pair.SwapResult, step, ts uint64) model.TradeRecord {
	ids := make([]uint64, len(res.IDs))
	copy(ids, res.IDs)

	return model.TradeRecord{
		Pair:       pool.Address().Hex(),
		Collection: pool.Collection().Hex(),
		AssetID:    pool.AssetID().Hex(),
		Meta: model.PairMeta{
			PoolType: pool.PoolType().String(),
			Curve:    pool.Curve().Name(),
			FeeBps:   pool.FeeBps(),
		},
		Side:        side,
		Trader:      trader.Hex(),
		TokenIDs:    ids,
		Amount:      res.Amount.Dec(),
		ProtocolFee: res.ProtocolFee.Dec(),
		TradeFee:    res.TradeFee.Dec(),
		SpotBefore:  res.SpotBefore.Dec(),
		SpotAfter:   res.SpotAfter.Dec(),
		Step:        step,
		Timestamp:   ts,
		IngestedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
}
