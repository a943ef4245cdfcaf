// Package dispatch provides the message queue and routing table through
// which agents communicate. Delivery is batched per pass so a chain of
// replies resolves deterministically within one simulation tick.
package dispatch

import (
	"log/slog"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/fipa"
)

// Handler is the uniform capability through which the dispatcher
// delivers a message. Implementations route on the performative and
// return any outbound replies; a performative the receiver does not
// understand is ignored, not an error.
type Handler interface {
	ID() fipa.AgentID
	Handle(msg fipa.Message) []fipa.Message
}

// Dispatcher owns the pending-message queue, the registration table, and
// an append-only history of everything ever enqueued. It is the sole
// channel between agents and must be constructed and injected
// explicitly; there is no process-wide default instance.
//
// Not safe for concurrent use: a simulation run is single-threaded and
// each run owns its own Dispatcher.
type Dispatcher struct {
	queue   []fipa.Message
	agents  map[fipa.AgentID]Handler
	history []fipa.Message

	// Tap, when set, observes every message at delivery time. Used by
	// the simulation driver to capture executed transactions.
	Tap func(fipa.Message)
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{agents: make(map[fipa.AgentID]Handler)}
}

// Register adds or replaces the handler registered under id.
func (d *Dispatcher) Register(id fipa.AgentID, h Handler) {
	d.agents[id] = h
}

// Unregister removes the handler registered under id.
func (d *Dispatcher) Unregister(id fipa.AgentID) {
	delete(d.agents, id)
}

// Enqueue appends a well-formed message to the queue tail and to the
// history log. Nothing is delivered synchronously; a malformed message
// is rejected here and never queued.
func (d *Dispatcher) Enqueue(msg fipa.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	d.queue = append(d.queue, msg)
	d.history = append(d.history, msg)
	return nil
}

// Report summarizes one RunToFixpoint call. Dropped holds the messages
// that were still undeliverable when the pass ceiling was exhausted;
// they are removed from the queue and handed back to the caller instead
// of being discarded silently.
type Report struct {
	Delivered int
	Passes    int
	Dropped   []fipa.Message
}

// RunToFixpoint drains the queue in batched passes, up to maxPasses of
// them. Each pass takes the entire current queue as one batch, clears
// the queue, and delivers each message in enqueue order. Replies
// produced during delivery are enqueued and wait for the next pass; a
// message whose receiver is not registered is re-enqueued for a later
// pass rather than dropped. The loop stops early when a pass begins
// with an empty queue.
//
// With maxPasses <= 0 nothing is delivered and the queue is untouched.
func (d *Dispatcher) RunToFixpoint(maxPasses int) Report {
	var rep Report
	for pass := 0; pass < maxPasses; pass++ {
		if len(d.queue) == 0 {
			break
		}
		batch := d.queue
		d.queue = nil
		rep.Passes++

		for _, msg := range batch {
			h, ok := d.agents[msg.Receiver]
			if !ok {
				// Deferred, not failed: retried next pass.
				d.queue = append(d.queue, msg)
				continue
			}
			d.deliver(h, msg)
			rep.Delivered++
		}
	}

	if maxPasses > 0 && rep.Passes == maxPasses && len(d.queue) > 0 {
		rep.Dropped = d.queue
		d.queue = nil
		slog.Warn("undeliverable messages dropped after pass ceiling",
			"count", len(rep.Dropped), "max_passes", maxPasses)
	}
	return rep
}

func (d *Dispatcher) deliver(h Handler, msg fipa.Message) {
	if d.Tap != nil {
		d.Tap(msg)
	}
	for _, out := range h.Handle(msg) {
		if err := d.Enqueue(out); err != nil {
			slog.Warn("discarding malformed reply",
				"sender", out.Sender, "performative", out.Performative, "error", err)
		}
	}
}

// QueueLen returns the number of messages still pending delivery.
func (d *Dispatcher) QueueLen() int {
	return len(d.queue)
}

// ClearQueue discards all pending messages. The history is unaffected.
func (d *Dispatcher) ClearQueue() {
	d.queue = nil
}

// History returns every message ever enqueued, in order. Diagnostic
// only; routing never consults it.
func (d *Dispatcher) History() []fipa.Message {
	return d.history
}
