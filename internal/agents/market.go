package agents

import (
	"log/slog"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/entropy"
	"github.com/JoaStacker/simulador-mercado-cripto/internal/fipa"
)

// PriceRule advances the market price by one tick. It is a pluggable
// policy: the market invokes it but does not own its math.
type PriceRule func(current float64, rng *entropy.Source) float64

const (
	// DefaultPriceFloor is the minimum price the default rule allows.
	DefaultPriceFloor = 1.0
	// DefaultWalkPct bounds the per-tick percentage move of the default rule.
	DefaultWalkPct = 5.0

	// Spread of the informational best buy/sell bounds around a quote.
	bestBuyFactor  = 0.99
	bestSellFactor = 1.01
)

// RandomWalkRule returns the default price rule: a multiplicative walk
// of up to ±walkPct percent per tick, clamped at floor.
func RandomWalkRule(walkPct, floor float64) PriceRule {
	return func(current float64, rng *entropy.Source) float64 {
		change := rng.Uniform(-walkPct, walkPct)
		next := current * (1 + change/100)
		if next < floor {
			next = floor
		}
		return next
	}
}

// Market is the protocol responder. Its negotiation logic is stateless
// and reactive: every CFP gets a proposal at the current market price,
// and every accepted proposal settles successfully — there is no
// inventory check, counterparty matching, or slippage between PROPOSE
// and ACCEPT.
type Market struct {
	Comms Comms

	id   fipa.AgentID
	rule PriceRule
	rng  *entropy.Source

	// CurrentPrice is the quote used for every proposal and settlement.
	CurrentPrice float64
	// PriceHistory is append-only and never truncated; it gains exactly
	// one entry per tick, trade or no trade.
	PriceHistory []float64
}

// NewMarket creates a market agent seeding its history with the initial
// price.
func NewMarket(id fipa.AgentID, initialPrice float64, rule PriceRule, rng *entropy.Source) *Market {
	return &Market{
		id:           id,
		rule:         rule,
		rng:          rng,
		CurrentPrice: initialPrice,
		PriceHistory: []float64{initialPrice},
	}
}

func (m *Market) ID() fipa.AgentID { return m.id }

// UpdatePrice advances the price one tick and appends it to the history.
func (m *Market) UpdatePrice() {
	m.CurrentPrice = m.rule(m.CurrentPrice, m.rng)
	m.PriceHistory = append(m.PriceHistory, m.CurrentPrice)
	slog.Debug("price updated", "agent", m.id, "price", m.CurrentPrice)
}

// Handle routes an inbound message by performative. The market answers
// calls for proposals and accepted proposals; anything else is ignored.
func (m *Market) Handle(msg fipa.Message) []fipa.Message {
	switch msg.Performative {
	case fipa.CFP:
		return m.handleCFP(msg)
	case fipa.AcceptProposal:
		return m.handleAccept(msg)
	default:
		slog.Debug("market ignoring performative",
			"agent", m.id, "performative", msg.Performative, "from", msg.Sender)
		return nil
	}
}

// handleCFP always proposes; the market never rejects a call. Trades
// only happen at market price — best_buy/best_sell are informational.
func (m *Market) handleCFP(msg fipa.Message) []fipa.Message {
	return []fipa.Message{fipa.NewPropose(m.id, msg.Sender,
		m.CurrentPrice, m.CurrentPrice*bestBuyFactor, m.CurrentPrice*bestSellFactor)}
}

// handleAccept executes the transaction unconditionally and confirms it.
func (m *Market) handleAccept(msg fipa.Message) []fipa.Message {
	typ, _ := msg.Str("type")
	action := fipa.TradeAction(typ)
	slog.Info("transaction executed",
		"agent", m.id, "counterparty", msg.Sender, "action", action, "price", m.CurrentPrice)
	return []fipa.Message{fipa.NewInform(m.id, msg.Sender, fipa.StatusSuccess, m.CurrentPrice, action)}
}
