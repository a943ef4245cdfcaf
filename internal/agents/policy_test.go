package agents

import (
	"testing"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/fipa"
)

func TestThresholdPolicy_RationalBuysOnSteadyClimb(t *testing.T) {
	p := ThresholdPolicy{RiskTolerance: 0.1}
	// buy threshold 0.018 + margin 0.01 = 0.028
	action, amount, ok := p.Decide(0.03)
	if !ok || action != fipa.Buy {
		t.Fatalf("expected buy, got %q (ok=%v)", action, ok)
	}
	if amount != 1.0 {
		t.Fatalf("expected unit amount, got %v", amount)
	}
}

func TestThresholdPolicy_RationalHoldsOnSmallMove(t *testing.T) {
	p := ThresholdPolicy{RiskTolerance: 0.1}
	if _, _, ok := p.Decide(0.01); ok {
		t.Fatal("small rise must not trigger")
	}
	if _, _, ok := p.Decide(-0.02); ok {
		t.Fatal("rational investor must not panic on a 2% dip")
	}
}

func TestThresholdPolicy_ImpulsiveChasesSurge(t *testing.T) {
	p := ThresholdPolicy{RiskTolerance: 0.6}
	action, _, ok := p.Decide(0.06)
	if !ok || action != fipa.Buy {
		t.Fatalf("expected surge buy, got %q (ok=%v)", action, ok)
	}
}

func TestThresholdPolicy_ImpulsiveSellsOnModerateDrop(t *testing.T) {
	p := ThresholdPolicy{RiskTolerance: 0.6}
	// panic threshold 0.03; risk > 0.3 sells without a full crash.
	action, _, ok := p.Decide(-0.04)
	if !ok || action != fipa.Sell {
		t.Fatalf("expected panic sell, got %q (ok=%v)", action, ok)
	}
}

func TestThresholdPolicy_RationalSellsOnlyOnCrash(t *testing.T) {
	p := ThresholdPolicy{RiskTolerance: 0.1}
	if _, _, ok := p.Decide(-0.04); ok {
		t.Fatal("4% drop must not trigger a rational sell")
	}
	action, _, ok := p.Decide(-0.06)
	if !ok || action != fipa.Sell {
		t.Fatalf("expected crash sell, got %q (ok=%v)", action, ok)
	}
}

func TestThresholdPolicy_FlatMarketNoAction(t *testing.T) {
	for _, risk := range []float64{0.1, 0.3, 0.6} {
		p := ThresholdPolicy{RiskTolerance: risk}
		if _, _, ok := p.Decide(0); ok {
			t.Fatalf("risk %v: flat market must not trigger", risk)
		}
	}
}
