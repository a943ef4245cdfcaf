// Package agents implements the negotiating parties of the market
// protocol: the market responder, the investor initiator with its
// pending-action state machine, and the communication capability that
// binds an agent to a dispatcher.
package agents

import (
	"errors"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/dispatch"
	"github.com/JoaStacker/simulador-mercado-cripto/internal/fipa"
)

// Comms is a per-agent facade over the dispatcher. Outbound messages
// are validated and enqueued only; delivery always happens through the
// dispatcher's pass loop, never synchronously.
type Comms struct {
	dispatcher *dispatch.Dispatcher
}

// Bind attaches the capability to a dispatcher, replacing any prior
// binding. An agent is bound to exactly one dispatcher at a time.
func (c *Comms) Bind(d *dispatch.Dispatcher) {
	c.dispatcher = d
}

// Bound reports whether a dispatcher is attached.
func (c *Comms) Bound() bool {
	return c.dispatcher != nil
}

// Send enqueues an outbound message. It fails when no dispatcher is
// bound or the message is malformed; a failed send queues nothing.
func (c *Comms) Send(msg fipa.Message) error {
	if c.dispatcher == nil {
		return errors.New("comms: not bound to a dispatcher")
	}
	return c.dispatcher.Enqueue(msg)
}
