package model

import (
	"encoding/json"
)

// Trade sides as stored.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// PairMeta carries static pair attributes on each trade record so
// downstream consumers do not need a separate pair lookup.
type PairMeta struct {
	PoolType string `json:"pool_type"`
	Curve    string `json:"curve"`
	FeeBps   uint64 `json:"fee_bps"`
}

// TradeRecord is the normalized representation of a settled swap for storage.
// Amounts are decimal strings so records survive JSON round trips without
// precision loss.
type TradeRecord struct {
	Pair        string   `json:"pair"`
	Collection  string   `json:"collection"`
	AssetID     string   `json:"asset_id"`
	Meta        PairMeta `json:"pair_meta"`
	Side        string   `json:"side"`
	Trader      string   `json:"trader"`
	TokenIDs    []uint64 `json:"token_ids"`
	Amount      string   `json:"amount"`
	ProtocolFee string   `json:"protocol_fee"`
	TradeFee    string   `json:"trade_fee"`
	SpotBefore  string   `json:"spot_before"`
	SpotAfter   string   `json:"spot_after"`
	Step        uint64   `json:"step"`
	Timestamp   uint64   `json:"timestamp"`
	IngestedAt  string   `json:"ingested_at"`
}

// MarshalJSON ensures TradeRecord is encoded with stable field names.
func (tr TradeRecord) MarshalJSON() ([]byte, error) {
	type Alias TradeRecord
	return json.Marshal(Alias(tr))
}

// UnmarshalJSON decodes a TradeRecord from JSON.
func (tr *TradeRecord) UnmarshalJSON(data []byte) error {
	type Alias TradeRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*tr = TradeRecord(a)
	return nil
}
