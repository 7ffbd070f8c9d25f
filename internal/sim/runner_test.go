package sim

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mathewwhere/lssvm/internal/model"
	"github.com/mathewwhere/lssvm/internal/storage"
)

const testScenario = `{
  "base_ts": 1700000000,
  "step_seconds": 60,
  "protocol_fee_bps": 0,
  "collection": "0x0000000000000000000000000000000000005005",
  "actors": [
    {"address": "0x0000000000000000000000000000000000001111", "balance": "1000", "token_ids": [5, 9, 12]},
    {"address": "0x0000000000000000000000000000000000002222", "balance": "10000"}
  ],
  "pools": [
    {
      "owner": "0x0000000000000000000000000000000000001111",
      "pool_type": "trade",
      "curve": "linear",
      "spot_price": "100",
      "delta": "10",
      "enumerable": true,
      "token_ids": [5, 9, 12],
      "balance": "1000"
    }
  ],
  "steps": [
    {"action": "buy", "actor": "0x0000000000000000000000000000000000002222", "pair": 0, "quantity": 2, "max_input": "210"},
    {"action": "buy", "actor": "0x0000000000000000000000000000000000002222", "pair": 0, "quantity": 1, "max_input": "1"},
    {"action": "sell", "actor": "0x0000000000000000000000000000000000002222", "pair": 0, "token_ids": [5], "min_output": "0"}
  ]
}`

func writeScenario(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.json")
	if err := os.WriteFile(path, []byte(testScenario), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func readRecords(t *testing.T, path string) []model.TradeRecord {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var records []model.TradeRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec model.TradeRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode record: %v", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan output: %v", err)
	}
	return records
}

func TestRunnerEmitsTradeRecords(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "trades.jsonl")

	runner := NewRunner(RunConfig{
		ScenarioPath: writeScenario(t, dir),
		BatchSize:    10,
	}, storage.NewJsonlStorage(outPath), nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	records := readRecords(t, outPath)
	if len(records) != 2 {
		t.Fatalf("expected 2 records (failed step skipped), got %d", len(records))
	}

	buy := records[0]
	if buy.Side != model.SideBuy || buy.Amount != "210" || buy.Step != 1 {
		t.Fatalf("buy record: %+v", buy)
	}
	if buy.SpotBefore != "100" || buy.SpotAfter != "120" {
		t.Fatalf("buy spots: before=%s after=%s", buy.SpotBefore, buy.SpotAfter)
	}
	if buy.Timestamp != 1700000000 {
		t.Fatalf("buy timestamp: %d", buy.Timestamp)
	}
	if buy.Meta.Curve != "linear" || buy.Meta.PoolType != "trade" {
		t.Fatalf("buy meta: %+v", buy.Meta)
	}

	sell := records[1]
	if sell.Side != model.SideSell || sell.Amount != "110" || sell.Step != 3 {
		t.Fatalf("sell record: %+v", sell)
	}
	if sell.Timestamp != 1700000000+2*60 {
		t.Fatalf("sell timestamp: %d", sell.Timestamp)
	}
}

func TestRunnerResumeSkipsEmittedSteps(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "trades.jsonl")
	cfg := RunConfig{
		ScenarioPath:      writeScenario(t, dir),
		BatchSize:         10,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
	}

	runner := NewRunner(cfg, storage.NewJsonlStorage(outPath), nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := len(readRecords(t, outPath)); got != 2 {
		t.Fatalf("first run records: %d", got)
	}

	// a second run replays the scenario but emits nothing new
	runner = NewRunner(cfg, storage.NewJsonlStorage(outPath), nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := len(readRecords(t, outPath)); got != 2 {
		t.Fatalf("resume appended duplicates: %d records", got)
	}
}

func TestLoadScenarioRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		body string
	}{
		{"bad collection", `{"collection": "not-an-address", "pools": [{}]}`},
		{"no pools", `{"collection": "0x0000000000000000000000000000000000005005"}`},
		{"bad pool index", `{
			"collection": "0x0000000000000000000000000000000000005005",
			"pools": [{"owner": "0x0000000000000000000000000000000000001111"}],
			"steps": [{"action": "buy", "actor": "0x0000000000000000000000000000000000002222", "pair": 3}]
		}`},
		{"bad action", `{
			"collection": "0x0000000000000000000000000000000000005005",
			"pools": [{"owner": "0x0000000000000000000000000000000000001111"}],
			"steps": [{"action": "stake", "actor": "0x0000000000000000000000000000000000002222", "pair": 0}]
		}`},
	}

	for _, tc := range cases {
		path := filepath.Join(dir, tc.name+".json")
		if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadScenario(path); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
