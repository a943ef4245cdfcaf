// Package fipa defines the contract-net vocabulary exchanged between
// agents: performatives, trade actions, and the message record carried
// by the dispatcher.
package fipa

import (
	"errors"
	"fmt"
	"math"
)

// Performative is the speech-act tag that tells a receiver how to
// interpret a message's content.
type Performative string

const (
	CFP            Performative = "call_for_proposals"
	Propose        Performative = "propose"
	AcceptProposal Performative = "accept_proposal"
	RejectProposal Performative = "reject_proposal"
	Inform         Performative = "inform"
	Failure        Performative = "failure"
)

// TradeAction is the direction of a requested trade.
type TradeAction string

const (
	Buy  TradeAction = "buy"
	Sell TradeAction = "sell"
)

// AgentID uniquely names an agent for the lifetime of a simulation run.
type AgentID string

// Message is one protocol step between two named parties. A message is
// immutable once created, carries no identity beyond its fields, and is
// ordered only by enqueue time.
type Message struct {
	Sender       AgentID        `json:"sender"`
	Receiver     AgentID        `json:"receiver"`
	Performative Performative   `json:"performative"`
	Content      map[string]any `json:"content"`
}

// ErrInvalidMessage marks a message rejected before it reaches the queue.
var ErrInvalidMessage = errors.New("invalid message")

// Validate reports whether the message is well-formed enough to enqueue.
func (m Message) Validate() error {
	switch {
	case m.Sender == "":
		return fmt.Errorf("%w: missing sender", ErrInvalidMessage)
	case m.Receiver == "":
		return fmt.Errorf("%w: missing receiver", ErrInvalidMessage)
	case m.Performative == "":
		return fmt.Errorf("%w: missing performative", ErrInvalidMessage)
	}
	return nil
}

func (m Message) String() string {
	return fmt.Sprintf("[%s -> %s] %s: %v", m.Sender, m.Receiver, m.Performative, m.Content)
}

// Float returns the numeric content value stored under key.
func (m Message) Float(key string) (float64, bool) {
	switch v := m.Content[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Str returns the string content value stored under key.
func (m Message) Str(key string) (string, bool) {
	s, ok := m.Content[key].(string)
	return s, ok
}

// RequestOfferForTrade is the fixed request key carried by every CFP.
const RequestOfferForTrade = "offer_for_trade"

// StatusSuccess marks a settled transaction in an INFORM payload.
const StatusSuccess = "success"

// NewCFP builds a call-for-proposals for a trade in the given direction.
// The amount must be a positive finite number; anything else is rejected
// here, at send time, rather than silently queued.
func NewCFP(sender, receiver AgentID, action TradeAction, amount float64) (Message, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return Message{}, fmt.Errorf("%w: cfp amount must be a positive finite number, got %v", ErrInvalidMessage, amount)
	}
	return Message{
		Sender:       sender,
		Receiver:     receiver,
		Performative: CFP,
		Content: map[string]any{
			"request": RequestOfferForTrade,
			"type":    string(action),
			"amount":  amount,
		},
	}, nil
}

// NewPropose quotes a price with informational best buy/sell bounds.
func NewPropose(sender, receiver AgentID, price, bestBuy, bestSell float64) Message {
	return Message{
		Sender:       sender,
		Receiver:     receiver,
		Performative: Propose,
		Content: map[string]any{
			"price":     price,
			"best_buy":  bestBuy,
			"best_sell": bestSell,
		},
	}
}

// NewAccept accepts a quoted price for the given trade direction.
func NewAccept(sender, receiver AgentID, price float64, action TradeAction) Message {
	return Message{
		Sender:       sender,
		Receiver:     receiver,
		Performative: AcceptProposal,
		Content: map[string]any{
			"price": price,
			"type":  string(action),
		},
	}
}

// NewInform reports the outcome of an executed transaction.
func NewInform(sender, receiver AgentID, status string, price float64, action TradeAction) Message {
	return Message{
		Sender:       sender,
		Receiver:     receiver,
		Performative: Inform,
		Content: map[string]any{
			"status": status,
			"price":  price,
			"action": string(action),
		},
	}
}
