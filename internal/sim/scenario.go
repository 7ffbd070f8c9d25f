package sim

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Step actions understood by the runner.
const (
	ActionBuy         = "buy"
	ActionBuySpecific = "buy_specific"
	ActionSell        = "sell"
	ActionDeposit     = "deposit"
	ActionWithdraw    = "withdraw"
)

// Actor funds one simulated account.
type Actor struct {
	Address  string   `json:"address"`
	Balance  string   `json:"balance"`
	TokenIDs []uint64 `json:"token_ids"`
}

// PoolSpec describes one pair to create before the steps run.
type PoolSpec struct {
	Owner      string   `json:"owner"`
	PoolType   string   `json:"pool_type"`
	Curve      string   `json:"curve"`
	SpotPrice  string   `json:"spot_price"`
	Delta      string   `json:"delta"`
	FeeBps     uint64   `json:"fee_bps"`
	Enumerable bool     `json:"enumerable"`
	TokenIDs   []uint64 `json:"token_ids"`
	Balance    string   `json:"balance"`
}

// Step is one trade instruction against a created pair.
type Step struct {
	Action    string   `json:"action"`
	Actor     string   `json:"actor"`
	Pair      int      `json:"pair"`
	Quantity  uint64   `json:"quantity"`
	TokenIDs  []uint64 `json:"token_ids"`
	MaxInput  string   `json:"max_input"`
	MinOutput string   `json:"min_output"`
	Amount    string   `json:"amount"`
}

// Scenario is the JSON description of a full simulation run. Token
// amounts are decimal strings. AssetID zero means the native asset.
type Scenario struct {
	BaseTimestamp  uint64     `json:"base_ts"`
	StepSeconds    uint64     `json:"step_seconds"`
	ProtocolFeeBps uint64     `json:"protocol_fee_bps"`
	Treasury       string     `json:"treasury"`
	Collection     string     `json:"collection"`
	AssetID        string     `json:"asset_id"`
	Actors         []Actor    `json:"actors"`
	Pools          []PoolSpec `json:"pools"`
	Steps          []Step     `json:"steps"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if !common.IsHexAddress(sc.Collection) {
		return fmt.Errorf("invalid collection address: %q", sc.Collection)
	}
	if sc.AssetID != "" && !common.IsHexAddress(sc.AssetID) {
		return fmt.Errorf("invalid asset id: %q", sc.AssetID)
	}
	if len(sc.Pools) == 0 {
		return fmt.Errorf("scenario needs at least one pool")
	}
	if sc.StepSeconds == 0 {
		sc.StepSeconds = 1
	}
	for i, step := range sc.Steps {
		if step.Pair < 0 || step.Pair >= len(sc.Pools) {
			return fmt.Errorf("step %d references pool %d of %d", i, step.Pair, len(sc.Pools))
		}
		if !common.IsHexAddress(step.Actor) {
			return fmt.Errorf("step %d: invalid actor address %q", i, step.Actor)
		}
		switch step.Action {
		case ActionBuy, ActionBuySpecific, ActionSell, ActionDeposit, ActionWithdraw:
		default:
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
	}
	return nil
}

func parseAmount(value string) (*uint256.Int, error) {
	if value == "" {
		return uint256.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %q", value)
	}
	out, overflow := uint256.FromBig(parsed)
	if overflow {
		return nil, fmt.Errorf("amount exceeds 256 bits: %q", value)
	}
	return out, nil
}
