package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/mathewwhere/lssvm/internal/asset"
	"github.com/mathewwhere/lssvm/internal/curve"
	"github.com/mathewwhere/lssvm/internal/factory"
	"github.com/mathewwhere/lssvm/internal/model"
	"github.com/mathewwhere/lssvm/internal/pair"
	"github.com/mathewwhere/lssvm/internal/router"
	"github.com/mathewwhere/lssvm/internal/storage"
)

// Engine-owned handles. Scenario actors live in the same address space,
// so these stay out of the range a scenario would plausibly use.
var (
	factoryAddress = common.HexToAddress("0xFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFA")
	adminAddress   = common.HexToAddress("0xFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFB")
	routerAddress  = common.HexToAddress("0xFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFC")
)

// RunConfig holds runtime settings for the simulation runner.
type RunConfig struct {
	ScenarioPath      string
	BatchSize         int
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner replays a scenario against a fresh engine and writes the
// resulting trade records to storage. Scenario replay is deterministic,
// so a checkpoint only marks which steps were already emitted: on resume
// the earlier steps are re-executed to rebuild state without re-emitting.
type Runner struct {
	cfg        RunConfig
	storage    storage.Storage
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		storage:    storageSink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the scenario loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize <= 0 {
		r.cfg.BatchSize = 100
	}

	scenario, err := LoadScenario(r.cfg.ScenarioPath)
	if err != nil {
		return err
	}

	eng, err := buildEngine(scenario, r.logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	var emitAfter uint64
	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok {
			emitAfter = cp.LastProcessedStep
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", emitAfter))
		}
	}

	batch := make([]model.TradeRecord, 0, r.cfg.BatchSize)
	var emitted, replayed, failed int
	var lastFlushed uint64

	for i, step := range scenario.Steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stepNo := uint64(i + 1)
		ts := scenario.BaseTimestamp + uint64(i)*scenario.StepSeconds

		record, traded, err := eng.execute(step, stepNo, ts)
		if err != nil {
			failed++
			r.logger.Warn("step failed",
				zap.Uint64("step", stepNo),
				zap.String("action", step.Action),
				zap.Error(err),
			)
			continue
		}
		if !traded {
			continue
		}
		if stepNo <= emitAfter {
			replayed++
			continue
		}

		batch = append(batch, record)
		emitted++

		if len(batch) >= r.cfg.BatchSize {
			if err := r.flush(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			lastFlushed = stepNo

			if r.checkpoint != nil {
				if err := r.checkpoint.Save(lastFlushed); err != nil {
					return err
				}
			}
		}
	}

	if len(batch) > 0 {
		if err := r.flush(ctx, batch); err != nil {
			return err
		}
	}
	if r.checkpoint != nil && len(scenario.Steps) > 0 {
		if err := r.checkpoint.Save(uint64(len(scenario.Steps))); err != nil {
			return err
		}
	}

	r.logger.Info("scenario complete",
		zap.Int("steps", len(scenario.Steps)),
		zap.Int("emitted", emitted),
		zap.Int("replayed", replayed),
		zap.Int("failed", failed),
	)

	return nil
}

func (r *Runner) flush(ctx context.Context, batch []model.TradeRecord) error {
	records := make([]model.TradeRecord, len(batch))
	copy(records, batch)
	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		if err := r.storage.PutTradeBatch(records); err != nil {
			r.logger.Warn("store trades failed", zap.Error(err), zap.Int("count", len(records)))
			return err
		}
		return nil
	})
}

// engine bundles the live market state a scenario executes against. Trade
// steps go through the router so each one gets the full plan treatment:
// dry-run pricing, escrow, and settlement rollback.
type engine struct {
	book    *asset.Book
	nfts    *asset.NFTBook
	factory *factory.Factory
	router  *router.Router
	pools   []*pair.Pair
	assetID common.Address
}

func buildEngine(sc *Scenario, logger *zap.Logger) (*engine, error) {
	book := asset.NewBook()
	nfts := asset.NewNFTBook()
	collection := common.HexToAddress(sc.Collection)
	assetID := asset.Native
	if sc.AssetID != "" {
		assetID = common.HexToAddress(sc.AssetID)
	}
	treasury := adminAddress
	if sc.Treasury != "" {
		treasury = common.HexToAddress(sc.Treasury)
	}

	fac, err := factory.New(factory.Config{
		Address:        factoryAddress,
		Owner:          adminAddress,
		Treasury:       treasury,
		ProtocolFeeBps: sc.ProtocolFeeBps,
		Logger:         logger,
	}, book, nfts)
	if err != nil {
		return nil, err
	}
	if err := fac.AllowCurve(adminAddress, curve.Linear{}); err != nil {
		return nil, err
	}
	if err := fac.AllowCurve(adminAddress, curve.Exponential{}); err != nil {
		return nil, err
	}

	maxAllowance := new(uint256.Int).SetAllOne()
	for _, actor := range sc.Actors {
		addr := common.HexToAddress(actor.Address)
		balance, err := parseAmount(actor.Balance)
		if err != nil {
			return nil, fmt.Errorf("actor %s: %w", actor.Address, err)
		}
		if !balance.IsZero() {
			book.Mint(assetID, addr, balance)
		}
		if len(actor.TokenIDs) > 0 {
			nfts.Mint(collection, addr, actor.TokenIDs...)
		}
		nfts.SetApprovalForAll(collection, addr, factoryAddress, true)
		if assetID != asset.Native {
			book.Approve(assetID, addr, factoryAddress, maxAllowance.Clone())
			book.Approve(assetID, addr, routerAddress, maxAllowance.Clone())
		}
	}

	eng := &engine{
		book:    book,
		nfts:    nfts,
		factory: fac,
		router:  router.New(router.Config{Address: routerAddress, Logger: logger}, book, nfts),
		assetID: assetID,
	}
	for i, pool := range sc.Pools {
		created, err := eng.createPool(sc, collection, pool)
		if err != nil {
			return nil, fmt.Errorf("pool %d: %w", i, err)
		}
		eng.pools = append(eng.pools, created)

		for _, actor := range sc.Actors {
			addr := common.HexToAddress(actor.Address)
			nfts.SetApprovalForAll(collection, addr, created.Address(), true)
			if assetID != asset.Native {
				book.Approve(assetID, addr, created.Address(), maxAllowance.Clone())
			}
		}
	}
	return eng, nil
}

func (e *engine) createPool(sc *Scenario, collection common.Address, pool PoolSpec) (*pair.Pair, error) {
	spot, err := parseAmount(pool.SpotPrice)
	if err != nil {
		return nil, fmt.Errorf("spot price: %w", err)
	}
	delta, err := parseAmount(pool.Delta)
	if err != nil {
		return nil, fmt.Errorf("delta: %w", err)
	}
	balance, err := parseAmount(pool.Balance)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	poolType, err := parsePoolType(pool.PoolType)
	if err != nil {
		return nil, err
	}

	return e.factory.CreatePair(factory.PairSpec{
		Owner:      common.HexToAddress(pool.Owner),
		Collection: collection,
		AssetID:    e.assetID,
		PoolType:   poolType,
		CurveName:  pool.Curve,
		Params: curve.Params{
			SpotPrice: spot,
			Delta:     delta,
		},
		FeeBps:         pool.FeeBps,
		Enumerable:     pool.Enumerable,
		InitialIDs:     pool.TokenIDs,
		InitialBalance: balance,
	})
}

// execute applies one step. The returned bool reports whether a trade
// settled and produced a record; deposits and withdrawals mutate state
// without emitting one.
func (e *engine) execute(step Step, stepNo, ts uint64) (model.TradeRecord, bool, error) {
	pool := e.pools[step.Pair]
	actor := common.HexToAddress(step.Actor)

	switch step.Action {
	case ActionBuy, ActionBuySpecific:
		maxInput, err := parseAmount(step.MaxInput)
		if err != nil {
			return model.TradeRecord{}, false, err
		}
		leg := router.BuyLeg{Pair: pool, Quantity: step.Quantity}
		if step.Action == ActionBuySpecific {
			leg = router.BuyLeg{Pair: pool, IDs: step.TokenIDs}
		}
		results, err := e.router.SwapTokenForNFTs(actor, actor, []router.BuyLeg{leg}, maxInput, time.Time{})
		if err != nil {
			return model.TradeRecord{}, false, err
		}
		return buildTradeRecord(pool, model.SideBuy, actor, results[0].Result, stepNo, ts), true, nil

	case ActionSell:
		minOutput, err := parseAmount(step.MinOutput)
		if err != nil {
			return model.TradeRecord{}, false, err
		}
		legs := []router.SellLeg{{Pair: pool, IDs: step.TokenIDs}}
		results, err := e.router.SwapNFTsForToken(actor, actor, legs, minOutput, time.Time{})
		if err != nil {
			return model.TradeRecord{}, false, err
		}
		return buildTradeRecord(pool, model.SideSell, actor, results[0].Result, stepNo, ts), true, nil

	case ActionDeposit:
		if len(step.TokenIDs) > 0 {
			if err := pool.DepositNFTs(actor, step.TokenIDs); err != nil {
				return model.TradeRecord{}, false, err
			}
		}
		if step.Amount != "" {
			amount, err := parseAmount(step.Amount)
			if err != nil {
				return model.TradeRecord{}, false, err
			}
			if err := pool.DepositToken(actor, amount); err != nil {
				return model.TradeRecord{}, false, err
			}
		}
		return model.TradeRecord{}, false, nil

	case ActionWithdraw:
		if len(step.TokenIDs) > 0 {
			if err := pool.WithdrawNFTs(actor, actor, step.TokenIDs); err != nil {
				return model.TradeRecord{}, false, err
			}
		}
		if step.Amount != "" {
			amount, err := parseAmount(step.Amount)
			if err != nil {
				return model.TradeRecord{}, false, err
			}
			if err := pool.WithdrawToken(actor, actor, amount); err != nil {
				return model.TradeRecord{}, false, err
			}
		}
		return model.TradeRecord{}, false, nil

	default:
		return model.TradeRecord{}, false, fmt.Errorf("unknown action %q", step.Action)
	}
}

func parsePoolType(name string) (pair.PoolType, error) {
	switch name {
	case "token":
		return pair.TokenPool, nil
	case "nft":
		return pair.NFTPool, nil
	case "trade", "":
		return pair.TradePool, nil
	default:
		return 0, fmt.Errorf("unknown pool type %q", name)
	}
}
