package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/mathewwhere/lssvm/internal/curve"
)

type quoteOutput struct {
	Curve       string `json:"curve"`
	Side        string `json:"side"`
	Quantity    uint64 `json:"quantity"`
	Principal   string `json:"principal"`
	ProtocolFee string `json:"protocol_fee"`
	TradeFee    string `json:"trade_fee"`
	Total       string `json:"total"`
	NewSpot     string `json:"new_spot"`
	NewDelta    string `json:"new_delta"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	curveName, _ := cmd.Flags().GetString("curve")
	side, _ := cmd.Flags().GetString("side")
	spotStr, _ := cmd.Flags().GetString("spot")
	deltaStr, _ := cmd.Flags().GetString("delta")
	quantity, _ := cmd.Flags().GetUint64("quantity")
	tradeBps, _ := cmd.Flags().GetUint64("trade-fee-bps")
	protocolBps, _ := cmd.Flags().GetUint64("protocol-fee-bps")

	var pricing curve.Curve
	switch curveName {
	case "linear":
		pricing = curve.Linear{}
	case "exponential":
		pricing = curve.Exponential{}
	default:
		return fmt.Errorf("unknown curve %q", curveName)
	}

	spot, err := parseUint256(spotStr)
	if err != nil {
		return fmt.Errorf("spot: %w", err)
	}
	delta, err := parseUint256(deltaStr)
	if err != nil {
		return fmt.Errorf("delta: %w", err)
	}

	params := curve.Params{SpotPrice: spot, Delta: delta}
	if err := pricing.Validate(params); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	fees := curve.Fees{TradeBps: tradeBps, ProtocolBps: protocolBps}

	var quote curve.Quote
	switch side {
	case "buy":
		quote, err = pricing.BuyInfo(params, quantity, fees)
	case "sell":
		quote, err = pricing.SellInfo(params, quantity, fees)
	default:
		return fmt.Errorf("unknown side %q", side)
	}
	if err != nil {
		return err
	}

	out := quoteOutput{
		Curve:       curveName,
		Side:        side,
		Quantity:    quantity,
		Principal:   quote.Principal.Dec(),
		ProtocolFee: quote.ProtocolFee.Dec(),
		TradeFee:    quote.TradeFee.Dec(),
		Total:       quote.Total.Dec(),
		NewSpot:     quote.NewParams.SpotPrice.Dec(),
		NewDelta:    quote.NewParams.Delta.Dec(),
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func parseUint256(value string) (*uint256.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value is required")
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid value: %q", value)
	}
	out, overflow := uint256.FromBig(parsed)
	if overflow {
		return nil, fmt.Errorf("value exceeds 256 bits: %q", value)
	}
	return out, nil
}
