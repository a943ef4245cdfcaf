package dispatch

import (
	"testing"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/fipa"
)

// recorder is a handler that records deliveries and optionally replies.
type recorder struct {
	id       fipa.AgentID
	received []fipa.Message
	reply    func(fipa.Message) []fipa.Message
}

func (r *recorder) ID() fipa.AgentID { return r.id }

func (r *recorder) Handle(msg fipa.Message) []fipa.Message {
	r.received = append(r.received, msg)
	if r.reply != nil {
		return r.reply(msg)
	}
	return nil
}

func inform(sender, receiver fipa.AgentID) fipa.Message {
	return fipa.NewInform(sender, receiver, fipa.StatusSuccess, 1.0, fipa.Buy)
}

func TestEnqueue_RejectsMalformed(t *testing.T) {
	d := New()
	err := d.Enqueue(fipa.Message{Receiver: "b", Performative: fipa.Inform})
	if err == nil {
		t.Fatal("expected error for message without sender")
	}
	if d.QueueLen() != 0 {
		t.Fatalf("malformed message must not be queued, queue len %d", d.QueueLen())
	}
	if len(d.History()) != 0 {
		t.Fatalf("malformed message must not reach history, len %d", len(d.History()))
	}
}

func TestEnqueue_AppendsToQueueAndHistory(t *testing.T) {
	d := New()
	if err := d.Enqueue(inform("a", "b")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if d.QueueLen() != 1 {
		t.Fatalf("expected queue len 1, got %d", d.QueueLen())
	}
	if len(d.History()) != 1 {
		t.Fatalf("expected history len 1, got %d", len(d.History()))
	}
}

func TestRunToFixpoint_DeferredReceiversDeliveredAfterRegistration(t *testing.T) {
	d := New()
	for _, id := range []fipa.AgentID{"x", "y", "z"} {
		if err := d.Enqueue(inform("seed", id)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	// Nothing is registered yet: one pass only defers.
	rep := d.RunToFixpoint(1)
	if rep.Delivered != 0 {
		t.Fatalf("expected 0 delivered before registration, got %d", rep.Delivered)
	}
	if len(rep.Dropped) != 3 {
		t.Fatalf("expected 3 dropped at ceiling, got %d", len(rep.Dropped))
	}

	// Re-seed and register all three receivers.
	for _, id := range []fipa.AgentID{"x", "y", "z"} {
		d.Register(id, &recorder{id: id})
		if err := d.Enqueue(inform("seed", id)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	rep = d.RunToFixpoint(2)
	if rep.Delivered != 3 {
		t.Fatalf("expected 3 delivered, got %d", rep.Delivered)
	}
	if len(rep.Dropped) != 0 {
		t.Fatalf("expected no drops, got %d", len(rep.Dropped))
	}
	if d.QueueLen() != 0 {
		t.Fatalf("expected empty queue, got %d", d.QueueLen())
	}
}

func TestRunToFixpoint_ZeroPassesLeavesQueueUntouched(t *testing.T) {
	d := New()
	d.Register("b", &recorder{id: "b"})
	if err := d.Enqueue(inform("a", "b")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	rep := d.RunToFixpoint(0)
	if rep.Delivered != 0 {
		t.Fatalf("expected 0 delivered with 0 passes, got %d", rep.Delivered)
	}
	if len(rep.Dropped) != 0 {
		t.Fatalf("expected nothing dropped with 0 passes, got %d", len(rep.Dropped))
	}
	if d.QueueLen() != 1 {
		t.Fatalf("expected queue untouched (len 1), got %d", d.QueueLen())
	}
}

func TestRunToFixpoint_RepliesWaitForNextPass(t *testing.T) {
	d := New()
	var order []string

	b := &recorder{id: "b"}
	a := &recorder{id: "a", reply: func(msg fipa.Message) []fipa.Message {
		return []fipa.Message{inform("a", "b")}
	}}
	d.Register("a", a)
	d.Register("b", b)
	d.Tap = func(msg fipa.Message) {
		order = append(order, string(msg.Receiver))
	}

	if err := d.Enqueue(inform("seed", "a")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	rep := d.RunToFixpoint(10)

	if rep.Delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", rep.Delivered)
	}
	if rep.Passes != 2 {
		t.Fatalf("reply must be delivered in a later pass, passes=%d", rep.Passes)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected delivery order %v", order)
	}
}

func TestRunToFixpoint_StopsEarlyOnEmptyQueue(t *testing.T) {
	d := New()
	d.Register("b", &recorder{id: "b"})
	if err := d.Enqueue(inform("a", "b")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	rep := d.RunToFixpoint(10)
	if rep.Passes != 1 {
		t.Fatalf("expected fixpoint after 1 pass, got %d", rep.Passes)
	}
}

func TestRunToFixpoint_DroppedMessagesAreEnumerated(t *testing.T) {
	d := New()
	if err := d.Enqueue(inform("a", "nobody")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	rep := d.RunToFixpoint(3)
	if len(rep.Dropped) != 1 {
		t.Fatalf("expected 1 dropped message, got %d", len(rep.Dropped))
	}
	if rep.Dropped[0].Receiver != "nobody" {
		t.Fatalf("unexpected dropped receiver %s", rep.Dropped[0].Receiver)
	}
	if d.QueueLen() != 0 {
		t.Fatalf("dropped messages must leave the queue, len %d", d.QueueLen())
	}
}

func TestRegister_OverwritesHandler(t *testing.T) {
	d := New()
	first := &recorder{id: "b"}
	second := &recorder{id: "b"}
	d.Register("b", first)
	d.Register("b", second)

	if err := d.Enqueue(inform("a", "b")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.RunToFixpoint(1)

	if len(first.received) != 0 {
		t.Fatal("overwritten handler must not receive")
	}
	if len(second.received) != 1 {
		t.Fatalf("replacement handler expected 1 message, got %d", len(second.received))
	}
}

func TestUnregister_DefersDelivery(t *testing.T) {
	d := New()
	r := &recorder{id: "b"}
	d.Register("b", r)
	d.Unregister("b")

	if err := d.Enqueue(inform("a", "b")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	rep := d.RunToFixpoint(1)
	if rep.Delivered != 0 {
		t.Fatalf("expected deferred delivery, delivered %d", rep.Delivered)
	}
	if len(r.received) != 0 {
		t.Fatal("unregistered handler must not receive")
	}
}
