package engine

import "time"

// Transaction is one settled trade, captured from a success INFORM at
// delivery time.
type Transaction struct {
	Tick     int     `json:"tick"`
	Sender   string  `json:"sender"`
	Receiver string  `json:"receiver"`
	Action   string  `json:"action"`
	Price    float64 `json:"price"`
}

// InvestorState is one investor's balance snapshot.
type InvestorState struct {
	FiatBalance   float64 `json:"fiat_balance"`
	CryptoBalance float64 `json:"crypto_balance"`
	RiskTolerance float64 `json:"risk_tolerance"`
}

// TickState captures the world after a tick's dispatch reached fixpoint.
// Tick 0 is the baseline before the first price update.
type TickState struct {
	Tick        int                      `json:"tick"`
	MarketPrice float64                  `json:"market_price"`
	Investors   map[string]InvestorState `json:"investors"`
}

// Statistics summarizes a completed run.
type Statistics struct {
	InitialPrice       float64 `json:"initial_price"`
	FinalPrice         float64 `json:"final_price"`
	MaxPrice           float64 `json:"max_price"`
	MinPrice           float64 `json:"min_price"`
	PriceChange        float64 `json:"price_change"`
	PriceChangePercent float64 `json:"price_change_percent"`
	TotalTransactions  int     `json:"total_transactions"`
	BuyTransactions    int     `json:"buy_transactions"`
	SellTransactions   int     `json:"sell_transactions"`
}

// Result is everything one run produced.
type Result struct {
	RunID           string        `json:"run_id"`
	Seed            int64         `json:"seed"`
	Cycles          int           `json:"cycles"`
	PriceHistory    []float64     `json:"price_history"`
	AgentStates     []TickState   `json:"agent_states"`
	Transactions    []Transaction `json:"transactions"`
	DroppedMessages int           `json:"dropped_messages"`
	Statistics      Statistics    `json:"statistics"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
}

// ComputeStatistics summarizes a price history and transaction log.
// Exported so persisted runs can be rebuilt without replaying them.
func ComputeStatistics(prices []float64, txs []Transaction) Statistics {
	var st Statistics
	if len(prices) == 0 {
		return st
	}

	st.InitialPrice = prices[0]
	st.FinalPrice = prices[len(prices)-1]
	st.MinPrice = prices[0]
	st.MaxPrice = prices[0]
	for _, p := range prices {
		if p < st.MinPrice {
			st.MinPrice = p
		}
		if p > st.MaxPrice {
			st.MaxPrice = p
		}
	}
	st.PriceChange = st.FinalPrice - st.InitialPrice
	if st.InitialPrice != 0 {
		st.PriceChangePercent = st.PriceChange / st.InitialPrice * 100
	}

	st.TotalTransactions = len(txs)
	for _, tx := range txs {
		switch tx.Action {
		case "buy":
			st.BuyTransactions++
		case "sell":
			st.SellTransactions++
		}
	}
	return st
}
