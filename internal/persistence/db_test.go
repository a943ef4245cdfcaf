package persistence

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleResult() *engine.Result {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &engine.Result{
		RunID:        "run-1",
		Seed:         42,
		Cycles:       2,
		PriceHistory: []float64{100, 104, 99},
		AgentStates: []engine.TickState{
			{Tick: 0, MarketPrice: 100, Investors: map[string]engine.InvestorState{
				"investor-a": {FiatBalance: 500, CryptoBalance: 5, RiskTolerance: 0.1},
			}},
			{Tick: 1, MarketPrice: 104, Investors: map[string]engine.InvestorState{
				"investor-a": {FiatBalance: 396, CryptoBalance: 6, RiskTolerance: 0.1},
			}},
			{Tick: 2, MarketPrice: 99, Investors: map[string]engine.InvestorState{
				"investor-a": {FiatBalance: 396, CryptoBalance: 6, RiskTolerance: 0.1},
			}},
		},
		Transactions: []engine.Transaction{
			{Tick: 1, Sender: "market-01", Receiver: "investor-a", Action: "buy", Price: 104},
		},
		DroppedMessages: 0,
		StartedAt:       started,
		FinishedAt:      started.Add(3 * time.Second),
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	db := openTestDB(t)
	want := sampleResult()

	if err := db.SaveRun(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.LoadRun("run-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got.Seed != 42 || got.Cycles != 2 {
		t.Fatalf("run metadata mismatch: %+v", got)
	}
	if !reflect.DeepEqual(got.PriceHistory, want.PriceHistory) {
		t.Fatalf("price history mismatch: %v", got.PriceHistory)
	}
	if !reflect.DeepEqual(got.Transactions, want.Transactions) {
		t.Fatalf("transactions mismatch: %+v", got.Transactions)
	}
	if !reflect.DeepEqual(got.AgentStates, want.AgentStates) {
		t.Fatalf("agent states mismatch: %+v", got.AgentStates)
	}
	if !got.StartedAt.Equal(want.StartedAt) || !got.FinishedAt.Equal(want.FinishedAt) {
		t.Fatalf("timestamps mismatch: %v / %v", got.StartedAt, got.FinishedAt)
	}

	// Statistics are recomputed from the persisted data.
	if got.Statistics.FinalPrice != 99 || got.Statistics.BuyTransactions != 1 {
		t.Fatalf("statistics not rebuilt: %+v", got.Statistics)
	}
}

func TestLoadRun_NotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadRun("missing"); err != ErrRunNotFound {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	db := openTestDB(t)

	first := sampleResult()
	second := sampleResult()
	second.RunID = "run-2"
	second.StartedAt = first.StartedAt.Add(time.Minute)
	second.FinishedAt = second.StartedAt.Add(time.Second)

	if err := db.SaveRun(first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := db.SaveRun(second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	rows, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(rows))
	}
	// Newest first.
	if rows[0].ID != "run-2" || rows[1].ID != "run-1" {
		t.Fatalf("unexpected order: %s, %s", rows[0].ID, rows[1].ID)
	}

	rows, err = db.ListRuns(1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "run-2" {
		t.Fatalf("limit not applied: %+v", rows)
	}
}

func TestSaveRun_DuplicateID(t *testing.T) {
	db := openTestDB(t)
	res := sampleResult()
	if err := db.SaveRun(res); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveRun(res); err == nil {
		t.Fatal("expected error on duplicate run id")
	}
}
