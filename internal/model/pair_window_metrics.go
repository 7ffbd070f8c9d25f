package model

import "time"

// PairWindowMetrics stores aggregated trade metrics for a pair window.
type PairWindowMetrics struct {
	PairAddress    string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	TradeCount     uint64
	BuyCount       uint64
	SellCount      uint64
	VolumeIn       string
	VolumeOut      string
	ProtocolFees   string
	TradeFees      string
	NFTsIn         uint64
	NFTsOut        uint64
	SpotOpen       string
	SpotClose      string
}
