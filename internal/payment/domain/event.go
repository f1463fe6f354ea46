package domain

import "time"

// Event is a verified gateway webhook event. The set of variants is closed:
// CheckoutCompleted, AsyncPaymentSucceeded, AsyncPaymentFailed,
// SessionExpired and Unrecognized.
type Event interface {
	Meta() EventMeta
	gatewayEvent()
}

type EventMeta struct {
	ID        string
	Type      string
	CreatedAt time.Time
}

func (m EventMeta) Meta() EventMeta { return m }

type CheckoutCompleted struct {
	EventMeta
	Session CheckoutSession
}

type AsyncPaymentSucceeded struct {
	EventMeta
	Session CheckoutSession
}

type AsyncPaymentFailed struct {
	EventMeta
	Session CheckoutSession
}

type SessionExpired struct {
	EventMeta
	Session CheckoutSession
}

// Unrecognized is any event type the lifecycle does not act on. Processing
// it is always a no-op.
type Unrecognized struct {
	EventMeta
}

func (CheckoutCompleted) gatewayEvent()     {}
func (AsyncPaymentSucceeded) gatewayEvent() {}
func (AsyncPaymentFailed) gatewayEvent()    {}
func (SessionExpired) gatewayEvent()        {}
func (Unrecognized) gatewayEvent()          {}
