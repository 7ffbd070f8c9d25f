package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathewwhere/lssvm/internal/model"
)

// Store provides Postgres persistence for pair metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPairs inserts or updates pair metadata.
func (s *Store) UpsertPairs(ctx context.Context, pairs []model.PairRecord) error {
	if len(pairs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pairs {
		batch.Queue(`
			INSERT INTO pairs (
				pair_address, collection, asset_id, pool_type, curve, fee_bps, first_seen_step, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (pair_address)
			DO UPDATE SET
				collection = EXCLUDED.collection,
				asset_id = EXCLUDED.asset_id,
				pool_type = EXCLUDED.pool_type,
				curve = EXCLUDED.curve,
				fee_bps = EXCLUDED.fee_bps,
				first_seen_step = LEAST(pairs.first_seen_step, EXCLUDED.first_seen_step),
				updated_at = now()
		`,
			p.Address,
			p.Collection,
			p.AssetID,
			p.PoolType,
			p.Curve,
			int64(p.FeeBps),
			int64(p.FirstSeenStep),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pairs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PairWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pair_window_metrics (
				pair_address, window_size_seconds, window_start_ts, window_end_ts,
				trade_count, buy_count, sell_count, volume_in, volume_out,
				protocol_fees, trade_fees, nfts_in, nfts_out, spot_open, spot_close,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now(),now())
			ON CONFLICT (pair_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				trade_count = EXCLUDED.trade_count,
				buy_count = EXCLUDED.buy_count,
				sell_count = EXCLUDED.sell_count,
				volume_in = EXCLUDED.volume_in,
				volume_out = EXCLUDED.volume_out,
				protocol_fees = EXCLUDED.protocol_fees,
				trade_fees = EXCLUDED.trade_fees,
				nfts_in = EXCLUDED.nfts_in,
				nfts_out = EXCLUDED.nfts_out,
				spot_open = EXCLUDED.spot_open,
				spot_close = EXCLUDED.spot_close,
				updated_at = now()
		`,
			m.PairAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.TradeCount),
			int64(m.BuyCount),
			int64(m.SellCount),
			m.VolumeIn,
			m.VolumeOut,
			m.ProtocolFees,
			m.TradeFees,
			int64(m.NFTsIn),
			int64(m.NFTsOut),
			m.SpotOpen,
			m.SpotClose,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts uint64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregator_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregator_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, ts)
	return err
}
