package agents

import (
	"log/slog"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/fipa"
)

// settlementUnit is the fixed quantity applied on settlement regardless
// of the amount requested in the CFP. Preserved quirk of the protocol:
// the amount never travels past the CFP payload.
const settlementUnit = 1.0

// Investor is the protocol initiator. Its negotiation state machine is
// Idle → AwaitingProposal → Idle: a trade intent fills the single-slot
// pending action and opens a CFP; the matching proposal is accepted at
// whatever price was quoted and clears the slot; the settling INFORM
// reconciles the balances.
type Investor struct {
	Comms Comms

	id     fipa.AgentID
	market fipa.AgentID
	policy DecisionPolicy

	RiskTolerance float64
	FiatBalance   float64
	CryptoBalance float64

	// pending is the single-slot buffer holding the direction of the one
	// open CFP; nil means idle. The slot is never overwritten: while it
	// is occupied, per-tick decisions are suppressed.
	pending *fipa.TradeAction

	// awaitingSettlement is set when an ACCEPT goes out and cleared by
	// the first settling INFORM, so a duplicated INFORM applies nothing.
	awaitingSettlement bool
}

// NewInvestor creates an investor trading against the named market.
func NewInvestor(id, market fipa.AgentID, riskTolerance, fiatBalance, cryptoBalance float64, policy DecisionPolicy) *Investor {
	return &Investor{
		id:            id,
		market:        market,
		policy:        policy,
		RiskTolerance: riskTolerance,
		FiatBalance:   fiatBalance,
		CryptoBalance: cryptoBalance,
	}
}

func (v *Investor) ID() fipa.AgentID { return v.id }

// PendingAction returns the direction of the open CFP, if any.
func (v *Investor) PendingAction() (fipa.TradeAction, bool) {
	if v.pending == nil {
		return "", false
	}
	return *v.pending, true
}

// Personality labels the investor's temperament from its risk tolerance.
func (v *Investor) Personality() string {
	if v.RiskTolerance > 0.4 {
		return "impulsive"
	}
	return "rational"
}

// EvaluatePriceChange returns the relative change between the last two
// prices in the history, or 0 when there is not enough data.
func EvaluatePriceChange(history []float64) float64 {
	if len(history) < 2 {
		return 0
	}
	prev := history[len(history)-2]
	return (history[len(history)-1] - prev) / prev
}

// RunCycle makes the per-tick trading decision. Nothing happens until
// the market has at least two price points, and a decision is only
// taken while no CFP is open.
func (v *Investor) RunCycle(tick int, marketHistory []float64) error {
	if len(marketHistory) < 2 {
		slog.Debug("waiting for market data", "agent", v.id, "tick", tick)
		return nil
	}
	if v.pending != nil {
		slog.Debug("decision suppressed, negotiation open",
			"agent", v.id, "tick", tick, "pending", *v.pending)
		return nil
	}

	change := EvaluatePriceChange(marketHistory)
	action, amount, ok := v.policy.Decide(change)
	if !ok {
		return nil
	}

	cfp, err := fipa.NewCFP(v.id, v.market, action, amount)
	if err != nil {
		return err
	}
	if err := v.Comms.Send(cfp); err != nil {
		return err
	}
	a := action
	v.pending = &a
	slog.Info("cfp sent",
		"agent", v.id, "tick", tick, "action", action, "amount", amount,
		"price_change_pct", change*100)
	return nil
}

// Handle routes an inbound message by performative. Investors act on
// proposals and settlement informs; anything else is ignored.
func (v *Investor) Handle(msg fipa.Message) []fipa.Message {
	switch msg.Performative {
	case fipa.Propose:
		return v.handlePropose(msg)
	case fipa.Inform:
		v.handleInform(msg)
		return nil
	default:
		slog.Debug("investor ignoring performative",
			"agent", v.id, "performative", msg.Performative, "from", msg.Sender)
		return nil
	}
}

// handlePropose accepts the quoted price for the pending action and
// clears the slot exactly once. The offered price is never evaluated
// against the investor's own risk — the contract is to accept whatever
// the market quoted.
func (v *Investor) handlePropose(msg fipa.Message) []fipa.Message {
	price, _ := msg.Float("price")
	if v.pending == nil {
		// Slot already cleared by a prior unmatched flow; decline
		// implicitly with no reply.
		slog.Debug("proposal without pending action, ignoring",
			"agent", v.id, "price", price)
		return nil
	}

	action := *v.pending
	v.pending = nil
	v.awaitingSettlement = true
	slog.Info("proposal accepted", "agent", v.id, "action", action, "price", price)
	return []fipa.Message{fipa.NewAccept(v.id, msg.Sender, price, action)}
}

// handleInform applies the settlement for a successful transaction:
// exactly one unit of crypto against price × unit of fiat. Any other
// status only logs. A settlement is applied at most once.
func (v *Investor) handleInform(msg fipa.Message) {
	status, _ := msg.Str("status")
	price, _ := msg.Float("price")
	actionStr, _ := msg.Str("action")

	if status != fipa.StatusSuccess {
		slog.Warn("transaction failed", "agent", v.id, "status", status, "price", price)
		return
	}
	if !v.awaitingSettlement {
		slog.Debug("settlement with nothing awaited, ignoring",
			"agent", v.id, "action", actionStr, "price", price)
		return
	}
	v.awaitingSettlement = false

	switch fipa.TradeAction(actionStr) {
	case fipa.Buy:
		v.CryptoBalance += settlementUnit
		v.FiatBalance -= price * settlementUnit
	case fipa.Sell:
		v.CryptoBalance -= settlementUnit
		v.FiatBalance += price * settlementUnit
	}
	slog.Info("settlement applied",
		"agent", v.id, "action", actionStr, "price", price,
		"fiat", v.FiatBalance, "crypto", v.CryptoBalance)
}
