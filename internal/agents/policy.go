package agents

import "github.com/JoaStacker/simulador-mercado-cripto/internal/fipa"

// DecisionPolicy yields a trade intent from the latest relative price
// change, or ok=false for no action. It is a pluggable collaborator:
// the investor invokes it but does not own the heuristic.
type DecisionPolicy interface {
	Decide(priceChange float64) (action fipa.TradeAction, amount float64, ok bool)
}

const (
	// minProfitBuy is the margin above the buy threshold before a rise
	// is actionable.
	minProfitBuy = 0.01
	// strongMove is the size beyond which a move reads as a surge or a
	// crash for any temperament.
	strongMove = 0.05
)

// ThresholdPolicy is the default decision heuristic. Thresholds are
// derived from risk tolerance: a cautious investor buys on a slow climb
// and a risk-tolerant one chases surges and panics out of drops faster.
type ThresholdPolicy struct {
	RiskTolerance float64
}

// Decide maps the relative price change of the last tick to an intent.
// The traded amount is fixed at one unit.
func (p ThresholdPolicy) Decide(priceChange float64) (fipa.TradeAction, float64, bool) {
	const amount = 1.0

	buyThreshold := 0.02 * (1.0 - p.RiskTolerance)
	panicThreshold := 0.05 * p.RiskTolerance

	switch {
	case priceChange > buyThreshold+minProfitBuy:
		if priceChange > strongMove && p.RiskTolerance > 0.3 {
			return fipa.Buy, amount, true // surge chase
		}
		if priceChange > buyThreshold {
			return fipa.Buy, amount, true // steady climb
		}
	case priceChange < -panicThreshold:
		if priceChange < -strongMove || p.RiskTolerance > 0.3 {
			return fipa.Sell, amount, true // panic exit
		}
	}
	return "", 0, false
}
