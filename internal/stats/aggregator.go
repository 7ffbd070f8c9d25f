package stats

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mathewwhere/lssvm/internal/model"
	"github.com/mathewwhere/lssvm/internal/storage/postgres"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Aggregator aggregates trade records into pair window metrics.
type Aggregator struct {
	cfg          Config
	store        *postgres.Store
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	pairSeen     map[string]model.PairRecord
}

func NewAggregator(cfg Config, store *postgres.Store, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		pairSeen:     make(map[string]model.PairRecord),
	}
}

// Run executes aggregation over a trade records JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PairWindowMetrics, 0, a.cfg.BatchSize)
	pairs := make([]model.PairRecord, 0, 256)
	maxTs := startTs
	var total, aggregated, skipped, failed int

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.TradeRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode trade record", zap.Error(err))
			continue
		}

		if record.Timestamp <= startTs {
			skipped++
			continue
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := pairKey(record.Pair)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			metrics, pairRecord := a.flushAccumulator(acc)
			if metrics != nil {
				batch = append(batch, *metrics)
				aggregated++
			}
			if pairRecord != nil {
				pairs = append(pairs, *pairRecord)
			}
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddTrade(record); err != nil {
			failed++
			a.logger.Warn("aggregate trade", zap.Error(err), zap.String("pair", record.Pair), zap.String("side", record.Side))
			continue
		}

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch, pairs); err != nil {
				return err
			}
			batch = batch[:0]
			pairs = pairs[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		metrics, pairRecord := a.flushAccumulator(acc)
		if metrics != nil {
			batch = append(batch, *metrics)
			aggregated++
		}
		if pairRecord != nil {
			pairs = append(pairs, *pairRecord)
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pairs) > 0 {
		if err := a.flushBatches(ctx, batch, pairs); err != nil {
			return err
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("aggregated", aggregated),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PairWindowMetrics, pairs []model.PairRecord) error {
	if len(pairs) > 0 {
		if err := a.store.UpsertPairs(ctx, pairs); err != nil {
			return err
		}
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) (*model.PairWindowMetrics, *model.PairRecord) {
	if acc == nil || acc.TradeCount == 0 {
		return nil, nil
	}

	pairRecord := a.registerPair(acc)

	metrics := &model.PairWindowMetrics{
		PairAddress:    acc.PairAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		TradeCount:     acc.TradeCount,
		BuyCount:       acc.BuyCount,
		SellCount:      acc.SellCount,
		VolumeIn:       acc.VolumeIn.String(),
		VolumeOut:      acc.VolumeOut.String(),
		ProtocolFees:   acc.ProtocolFees.String(),
		TradeFees:      acc.TradeFees.String(),
		NFTsIn:         acc.NFTsIn,
		NFTsOut:        acc.NFTsOut,
		SpotOpen:       acc.SpotOpen,
		SpotClose:      acc.SpotClose,
	}

	return metrics, pairRecord
}

func (a *Aggregator) registerPair(acc *Accumulator) *model.PairRecord {
	key := pairKey(acc.PairAddress)
	record := model.PairRecord{
		Address:       acc.PairAddress,
		Collection:    acc.Collection,
		AssetID:       acc.AssetID,
		PoolType:      acc.PairMeta.PoolType,
		Curve:         acc.PairMeta.Curve,
		FeeBps:        acc.PairMeta.FeeBps,
		FirstSeenStep: acc.FirstStep,
	}

	existing, ok := a.pairSeen[key]
	if ok {
		if existing.FirstSeenStep <= record.FirstSeenStep {
			return nil
		}
	}

	a.pairSeen[key] = record
	return &record
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func pairKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
