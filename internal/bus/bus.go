// Package bus implements the Message Bus Abstraction (spec §4.1): typed
// publish/subscribe and request/reply over durable ("jetstream") and
// ephemeral subjects, with last-value-per-subject snapshot reads. Two
// implementations satisfy the Bus interface: nats.go-backed (production)
// and an in-memory one (tests).
package bus

import (
	"context"
	"encoding/json"
	"time"
)

// DeliveryPolicy selects how a durable subscription replays history on
// start (spec §4.1).
type DeliveryPolicy int

const (
	// DeliverAll replays every durable message still retained.
	DeliverAll DeliveryPolicy = iota
	// DeliverLastPerSubject replays only the most recent message for each
	// distinct subject matching the subscription pattern.
	DeliverLastPerSubject
	// DeliverNew skips history and delivers only messages published after
	// the subscription is established.
	DeliverNew
)

// Msg is a single bus message delivered to a subscriber or returned by
// Snapshot.
type Msg struct {
	Subject string
	Data    []byte

	// ReplyTo is the inbox address to answer through, set only on messages
	// delivered by Request/SplitRequest. A handler passes the Msg it
	// received straight to Reply; Reply is a no-op when ReplyTo is empty.
	ReplyTo string
}

// Decode unmarshals Data as JSON into v.
func (m Msg) Decode(v any) error { return json.Unmarshal(m.Data, v) }

// Subscription is an active ephemeral or durable subscription. Callers
// must call Unsubscribe to release underlying resources.
type Subscription interface {
	// Unsubscribe stops delivery and releases resources.
	Unsubscribe() error
}

// PendingRequest is the first half of a SplitRequest: a request that has
// been published, whose reply has not yet been awaited. This lets a
// caller do other work (such as waiting on a second, downstream RPC)
// before blocking on the reply — the scheduler needs this to observe the
// drone's spawn ack before its own schedule reply returns (spec §4.1).
type PendingRequest interface {
	// Await blocks (bounded by ctx) for the reply and decodes it into v.
	Await(ctx context.Context, v any) error
}

// Bus is the Message Bus Abstraction's public contract (spec §4.1).
type Bus interface {
	// Publish is fire-and-forget, at-most-once delivery to current
	// subscribers of subject.
	Publish(ctx context.Context, subject string, v any) error

	// PublishDurable stores v with last-value-per-subject retention
	// semantics, so a subscriber reading subject later (even after a
	// cold start) can recover it via Snapshot or SubscribeDurable.
	PublishDurable(ctx context.Context, subject string, v any) error

	// Request publishes v on subject and blocks (bounded by ctx, or by
	// the Bus's configured default timeout if ctx carries no deadline)
	// for a single correlated reply, decoded into resp.
	Request(ctx context.Context, subject string, v any, resp any) error

	// SplitRequest is the two-phase form of Request: it publishes now and
	// returns a PendingRequest whose reply can be awaited later.
	SplitRequest(ctx context.Context, subject string, v any) (PendingRequest, error)

	// Subscribe delivers every message published on subjects matching
	// pattern from the moment of subscription onward (no replay).
	Subscribe(ctx context.Context, pattern string, handler func(Msg)) (Subscription, error)

	// SubscribeDurable delivers messages matching pattern according to
	// policy, replaying retained history first if the policy calls for
	// it.
	SubscribeDurable(ctx context.Context, pattern string, policy DeliveryPolicy, handler func(Msg)) (Subscription, error)

	// Snapshot drains the last durable value for each subject matching
	// pattern and returns them as a point-in-time list.
	Snapshot(ctx context.Context, pattern string) ([]Msg, error)

	// Reply is used by a Subscribe/SubscribeDurable handler to answer a
	// Request/SplitRequest. It is a no-op if the originating message
	// carried no reply address (e.g. a plain Publish was delivered to a
	// handler registered for request/reply traffic).
	Reply(ctx context.Context, original Msg, v any) error

	// Close releases the underlying connection.
	Close() error
}

// DefaultRequestTimeout is used by Request/SplitRequest callers that don't
// set a deadline on ctx themselves, and matches the schedule RPC's default
// bound (spec §4.3).
const DefaultRequestTimeout = 10 * time.Second

func ctxWithDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
