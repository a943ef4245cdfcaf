// Package persistence provides SQLite-based storage for completed
// simulation runs.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/engine"
)

// ErrRunNotFound is returned by LoadRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		cycles INTEGER NOT NULL,
		dropped_messages INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS price_points (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		price REAL NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		sender TEXT NOT NULL,
		receiver TEXT NOT NULL,
		action TEXT NOT NULL,
		price REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS investor_snapshots (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		investor_id TEXT NOT NULL,
		fiat_balance REAL NOT NULL,
		crypto_balance REAL NOT NULL,
		risk_tolerance REAL NOT NULL,
		PRIMARY KEY (run_id, tick, investor_id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_run ON transactions(run_id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON investor_snapshots(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun writes a completed run and all its captured data.
func (db *DB) SaveRun(res *engine.Result) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, seed, cycles, dropped_messages, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Seed, res.Cycles, res.DroppedMessages,
		res.StartedAt.Format(time.RFC3339Nano),
		res.FinishedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", res.RunID, err)
	}

	priceStmt, err := tx.Preparex(
		"INSERT INTO price_points (run_id, tick, price) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer priceStmt.Close()

	for tick, price := range res.PriceHistory {
		if _, err := priceStmt.Exec(res.RunID, tick, price); err != nil {
			return fmt.Errorf("insert price point %d: %w", tick, err)
		}
	}

	txStmt, err := tx.Preparex(`INSERT INTO transactions
		(run_id, tick, sender, receiver, action, price)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer txStmt.Close()

	for _, t := range res.Transactions {
		if _, err := txStmt.Exec(res.RunID, t.Tick, t.Sender, t.Receiver, t.Action, t.Price); err != nil {
			return fmt.Errorf("insert transaction at tick %d: %w", t.Tick, err)
		}
	}

	snapStmt, err := tx.Preparex(`INSERT INTO investor_snapshots
		(run_id, tick, investor_id, fiat_balance, crypto_balance, risk_tolerance)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer snapStmt.Close()

	for _, st := range res.AgentStates {
		for id, inv := range st.Investors {
			_, err := snapStmt.Exec(res.RunID, st.Tick, id,
				inv.FiatBalance, inv.CryptoBalance, inv.RiskTolerance)
			if err != nil {
				return fmt.Errorf("insert snapshot tick %d investor %s: %w", st.Tick, id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("run saved",
		"run_id", res.RunID,
		"cycles", res.Cycles,
		"transactions", len(res.Transactions))
	return nil
}

// RunRow is one row of the run index.
type RunRow struct {
	ID              string `db:"id" json:"run_id"`
	Seed            int64  `db:"seed" json:"seed"`
	Cycles          int    `db:"cycles" json:"cycles"`
	DroppedMessages int    `db:"dropped_messages" json:"dropped_messages"`
	StartedAt       string `db:"started_at" json:"started_at"`
	FinishedAt      string `db:"finished_at" json:"finished_at"`
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunRow, error) {
	rows := []RunRow{}
	err := db.conn.Select(&rows, `SELECT id, seed, cycles, dropped_messages,
		started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	return rows, err
}

// LoadRun rebuilds a stored run, recomputing its statistics from the
// persisted price history and transaction log.
func (db *DB) LoadRun(id string) (*engine.Result, error) {
	var row RunRow
	err := db.conn.Get(&row,
		"SELECT id, seed, cycles, dropped_messages, started_at, finished_at FROM runs WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}

	res := &engine.Result{
		RunID:           row.ID,
		Seed:            row.Seed,
		Cycles:          row.Cycles,
		DroppedMessages: row.DroppedMessages,
	}
	res.StartedAt, _ = time.Parse(time.RFC3339Nano, row.StartedAt)
	res.FinishedAt, _ = time.Parse(time.RFC3339Nano, row.FinishedAt)

	err = db.conn.Select(&res.PriceHistory,
		"SELECT price FROM price_points WHERE run_id = ? ORDER BY tick", id)
	if err != nil {
		return nil, fmt.Errorf("load prices for %s: %w", id, err)
	}

	var txRows []struct {
		Tick     int     `db:"tick"`
		Sender   string  `db:"sender"`
		Receiver string  `db:"receiver"`
		Action   string  `db:"action"`
		Price    float64 `db:"price"`
	}
	err = db.conn.Select(&txRows,
		"SELECT tick, sender, receiver, action, price FROM transactions WHERE run_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", id, err)
	}
	for _, t := range txRows {
		res.Transactions = append(res.Transactions, engine.Transaction{
			Tick: t.Tick, Sender: t.Sender, Receiver: t.Receiver,
			Action: t.Action, Price: t.Price,
		})
	}

	var snapRows []struct {
		Tick          int     `db:"tick"`
		InvestorID    string  `db:"investor_id"`
		FiatBalance   float64 `db:"fiat_balance"`
		CryptoBalance float64 `db:"crypto_balance"`
		RiskTolerance float64 `db:"risk_tolerance"`
	}
	err = db.conn.Select(&snapRows,
		"SELECT tick, investor_id, fiat_balance, crypto_balance, risk_tolerance FROM investor_snapshots WHERE run_id = ? ORDER BY tick", id)
	if err != nil {
		return nil, fmt.Errorf("load snapshots for %s: %w", id, err)
	}
	if len(snapRows) > 0 {
		maxTick := snapRows[len(snapRows)-1].Tick
		res.AgentStates = make([]engine.TickState, maxTick+1)
		for i := range res.AgentStates {
			res.AgentStates[i] = engine.TickState{
				Tick:      i,
				Investors: make(map[string]engine.InvestorState),
			}
			if i < len(res.PriceHistory) {
				res.AgentStates[i].MarketPrice = res.PriceHistory[i]
			}
		}
		for _, s := range snapRows {
			res.AgentStates[s.Tick].Investors[s.InvestorID] = engine.InvestorState{
				FiatBalance:   s.FiatBalance,
				CryptoBalance: s.CryptoBalance,
				RiskTolerance: s.RiskTolerance,
			}
		}
	}

	res.Statistics = engine.ComputeStatistics(res.PriceHistory, res.Transactions)
	return res, nil
}
