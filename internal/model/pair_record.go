package model

// PairRecord represents pair metadata for storage.
type PairRecord struct {
	Address       string `json:"address"`
	Collection    string `json:"collection"`
	AssetID       string `json:"asset_id"`
	PoolType      string `json:"pool_type"`
	Curve         string `json:"curve"`
	FeeBps        uint64 `json:"fee_bps"`
	FirstSeenStep uint64 `json:"first_seen_step"`
}
