package storage

import "github.com/mathewwhere/lssvm/internal/model"

// Storage defines a sink for trade records.
type Storage interface {
	PutTradeBatch(trades []model.TradeRecord) error
}
