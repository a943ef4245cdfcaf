// Package engine drives a market simulation: one tick advances the
// price, lets every investor decide, dispatches the resulting
// negotiation to fixpoint, and captures state.
package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/agents"
	"github.com/JoaStacker/simulador-mercado-cripto/internal/dispatch"
	"github.com/JoaStacker/simulador-mercado-cripto/internal/entropy"
	"github.com/JoaStacker/simulador-mercado-cripto/internal/fipa"
)

// Defaults applied by Options.applyDefaults.
const (
	DefaultMarketID     = "market-01"
	DefaultInitialPrice = 100.0
	DefaultMaxPasses    = 10
)

// InvestorSpec describes one investor in the roster.
type InvestorSpec struct {
	ID            string
	RiskTolerance float64
	FiatBalance   float64
	CryptoBalance float64
}

// Options configures a simulation run.
type Options struct {
	MarketID     string
	InitialPrice float64
	PriceFloor   float64
	WalkPct      float64
	MaxPasses    int
	Seed         int64 // 0 draws a fresh seed
	Investors    []InvestorSpec
}

func (o *Options) applyDefaults() {
	if o.MarketID == "" {
		o.MarketID = DefaultMarketID
	}
	if o.InitialPrice <= 0 {
		o.InitialPrice = DefaultInitialPrice
	}
	if o.PriceFloor <= 0 {
		o.PriceFloor = agents.DefaultPriceFloor
	}
	if o.WalkPct <= 0 {
		o.WalkPct = agents.DefaultWalkPct
	}
	if o.MaxPasses <= 0 {
		o.MaxPasses = DefaultMaxPasses
	}
	if len(o.Investors) == 0 {
		o.Investors = DefaultInvestors()
	}
}

// DefaultInvestors is the stock roster: one cautious, one impulsive,
// and one balanced investor.
func DefaultInvestors() []InvestorSpec {
	return []InvestorSpec{
		{ID: "investor-rational-a1", RiskTolerance: 0.1, FiatBalance: 500.0, CryptoBalance: 5.0},
		{ID: "investor-impulsive-b", RiskTolerance: 0.6, FiatBalance: 500.0, CryptoBalance: 5.0},
		{ID: "investor-balanced-c", RiskTolerance: 0.3, FiatBalance: 500.0, CryptoBalance: 5.0},
	}
}

// Simulation holds the wired roster for one run. Every agent receives
// the dispatcher by injection at construction; there is no shared
// global instance, so concurrent requests can each own a Simulation.
type Simulation struct {
	Dispatcher *dispatch.Dispatcher
	Market     *agents.Market
	Investors  []*agents.Investor
	MaxPasses  int

	seed int64
}

// NewSimulation wires a fresh dispatcher, one market agent, and the
// investor roster described by opts.
func NewSimulation(opts Options) *Simulation {
	opts.applyDefaults()

	d := dispatch.New()
	rng := entropy.NewSource(opts.Seed)
	rule := agents.RandomWalkRule(opts.WalkPct, opts.PriceFloor)

	market := agents.NewMarket(fipa.AgentID(opts.MarketID), opts.InitialPrice, rule, rng)
	market.Comms.Bind(d)
	d.Register(market.ID(), market)

	investors := make([]*agents.Investor, 0, len(opts.Investors))
	for _, spec := range opts.Investors {
		inv := agents.NewInvestor(fipa.AgentID(spec.ID), market.ID(),
			spec.RiskTolerance, spec.FiatBalance, spec.CryptoBalance,
			agents.ThresholdPolicy{RiskTolerance: spec.RiskTolerance})
		inv.Comms.Bind(d)
		d.Register(inv.ID(), inv)
		investors = append(investors, inv)
		slog.Debug("investor registered",
			"agent", inv.ID(), "personality", inv.Personality(), "risk", spec.RiskTolerance)
	}

	return &Simulation{
		Dispatcher: d,
		Market:     market,
		Investors:  investors,
		MaxPasses:  opts.MaxPasses,
		seed:       rng.Seed(),
	}
}

// Seed returns the seed the run is using.
func (s *Simulation) Seed() int64 {
	return s.seed
}

// RunSimulation executes the tick loop for the given number of cycles
// and returns the captured run data.
func (s *Simulation) RunSimulation(cycles int) *Result {
	return s.Run(cycles, nil)
}

// Run is RunSimulation with a per-tick observer, used by the streaming
// transport. The observer sees each TickState right after it is
// captured, which is always after that tick's dispatch reached fixpoint.
func (s *Simulation) Run(cycles int, onTick func(TickState)) *Result {
	res := &Result{
		RunID:     uuid.NewString(),
		Seed:      s.seed,
		Cycles:    cycles,
		StartedAt: time.Now().UTC(),
	}

	currentTick := 0
	s.Dispatcher.Tap = func(msg fipa.Message) {
		if msg.Performative != fipa.Inform {
			return
		}
		if status, _ := msg.Str("status"); status != fipa.StatusSuccess {
			return
		}
		price, _ := msg.Float("price")
		action, _ := msg.Str("action")
		res.Transactions = append(res.Transactions, Transaction{
			Tick:     currentTick,
			Sender:   string(msg.Sender),
			Receiver: string(msg.Receiver),
			Action:   action,
			Price:    price,
		})
	}
	defer func() { s.Dispatcher.Tap = nil }()

	// Baseline snapshot before the first tick.
	res.PriceHistory = append(res.PriceHistory, s.Market.CurrentPrice)
	res.AgentStates = append(res.AgentStates, s.snapshot(0))

	for t := 1; t <= cycles; t++ {
		currentTick = t

		s.Market.UpdatePrice()

		for _, inv := range s.Investors {
			if err := inv.RunCycle(t, s.Market.PriceHistory); err != nil {
				slog.Warn("investor decision failed", "agent", inv.ID(), "tick", t, "error", err)
			}
		}

		rep := s.Dispatcher.RunToFixpoint(s.MaxPasses)
		res.DroppedMessages += len(rep.Dropped)

		state := s.snapshot(t)
		res.AgentStates = append(res.AgentStates, state)
		res.PriceHistory = append(res.PriceHistory, s.Market.CurrentPrice)
		if onTick != nil {
			onTick(state)
		}
	}

	res.FinishedAt = time.Now().UTC()
	res.Statistics = ComputeStatistics(res.PriceHistory, res.Transactions)

	slog.Info("simulation finished",
		"run_id", res.RunID, "cycles", cycles, "seed", res.Seed,
		"final_price", res.Statistics.FinalPrice,
		"transactions", res.Statistics.TotalTransactions,
		"dropped_messages", res.DroppedMessages)
	return res
}

// snapshot captures the market price and every investor's balances.
func (s *Simulation) snapshot(tick int) TickState {
	st := TickState{
		Tick:        tick,
		MarketPrice: s.Market.CurrentPrice,
		Investors:   make(map[string]InvestorState, len(s.Investors)),
	}
	for _, inv := range s.Investors {
		st.Investors[string(inv.ID())] = InvestorState{
			FiatBalance:   inv.FiatBalance,
			CryptoBalance: inv.CryptoBalance,
			RiskTolerance: inv.RiskTolerance,
		}
	}
	return st
}
