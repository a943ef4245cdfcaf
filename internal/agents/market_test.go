package agents

import (
	"testing"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/entropy"
	"github.com/JoaStacker/simulador-mercado-cripto/internal/fipa"
)

func fixedRule(price float64) PriceRule {
	return func(current float64, rng *entropy.Source) float64 { return price }
}

func TestMarket_CFPAlwaysGetsProposal(t *testing.T) {
	m := NewMarket("market-01", 100.0, fixedRule(100.0), entropy.NewSource(1))

	cfp, err := fipa.NewCFP("investor-a", "market-01", fipa.Buy, 1.0)
	if err != nil {
		t.Fatalf("NewCFP: %v", err)
	}
	out := m.Handle(cfp)
	if len(out) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(out))
	}
	reply := out[0]
	if reply.Performative != fipa.Propose {
		t.Fatalf("expected PROPOSE, got %s", reply.Performative)
	}
	if reply.Receiver != "investor-a" {
		t.Fatalf("proposal must go back to the caller, got %s", reply.Receiver)
	}
	if price, _ := reply.Float("price"); price != 100.0 {
		t.Fatalf("expected market price 100.0, got %v", price)
	}
	if bb, _ := reply.Float("best_buy"); bb != 99.0 {
		t.Fatalf("expected best_buy 99.0, got %v", bb)
	}
	if bs, _ := reply.Float("best_sell"); bs != 101.0 {
		t.Fatalf("expected best_sell 101.0, got %v", bs)
	}
}

func TestMarket_AcceptAlwaysSettles(t *testing.T) {
	m := NewMarket("market-01", 100.0, fixedRule(100.0), entropy.NewSource(1))

	out := m.Handle(fipa.NewAccept("investor-a", "market-01", 100.0, fipa.Sell))
	if len(out) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(out))
	}
	inform := out[0]
	if inform.Performative != fipa.Inform {
		t.Fatalf("expected INFORM, got %s", inform.Performative)
	}
	if status, _ := inform.Str("status"); status != fipa.StatusSuccess {
		t.Fatalf("expected success, got %q", status)
	}
	if action, _ := inform.Str("action"); action != "sell" {
		t.Fatalf("expected action sell, got %q", action)
	}
	if price, _ := inform.Float("price"); price != 100.0 {
		t.Fatalf("expected price 100.0, got %v", price)
	}
}

func TestMarket_IgnoresUnexpectedPerformatives(t *testing.T) {
	m := NewMarket("market-01", 100.0, fixedRule(100.0), entropy.NewSource(1))

	out := m.Handle(fipa.Message{
		Sender:       "investor-a",
		Receiver:     "market-01",
		Performative: fipa.RejectProposal,
	})
	if out != nil {
		t.Fatalf("unexpected performative must be a no-op, got %d replies", len(out))
	}
}

func TestMarket_PriceHistoryAppendsOncePerTick(t *testing.T) {
	m := NewMarket("market-01", 100.0, RandomWalkRule(DefaultWalkPct, DefaultPriceFloor), entropy.NewSource(42))

	const ticks = 50
	for i := 0; i < ticks; i++ {
		m.UpdatePrice()
	}
	if len(m.PriceHistory) != ticks+1 {
		t.Fatalf("expected %d history entries, got %d", ticks+1, len(m.PriceHistory))
	}
	for i, p := range m.PriceHistory {
		if p < DefaultPriceFloor {
			t.Fatalf("price %v at %d below floor %v", p, i, DefaultPriceFloor)
		}
	}
}

func TestRandomWalkRule_ClampsAtFloor(t *testing.T) {
	rule := RandomWalkRule(DefaultWalkPct, DefaultPriceFloor)
	rng := entropy.NewSource(3)
	price := 1.0
	for i := 0; i < 200; i++ {
		price = rule(price, rng)
		if price < DefaultPriceFloor {
			t.Fatalf("price %v fell below floor", price)
		}
	}
}
