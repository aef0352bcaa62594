package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig configures the JetStream-backed Bus. Durable subjects
// (PublishDurable/SubscribeDurable/Snapshot) are backed by a single
// "PLANE" stream with last-value-per-subject retention so a late
// subscriber always recovers the most recent state for every subject it
// cares about — liveness status, backend state, DNS records (spec §4.1).
// Request/Reply stays on core NATS for latency, the same split the
// fluxor cluster bus makes.
type NATSConfig struct {
	// URL is the NATS server URL, e.g. "nats://127.0.0.1:4222".
	URL string

	// StreamName names the JetStream stream backing durable subjects.
	// Default: "PLANE".
	StreamName string

	// StreamSubjects are the subject filters the durable stream captures.
	// Default: []string{"cluster.>", "backend.>"}.
	StreamSubjects []string

	// RequestTimeout is the default bound for Request/SplitRequest.Await
	// when the caller's context carries no deadline. Default:
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	// ConnName is an optional NATS connection name, useful in `nats`
	// server-side connection listings.
	ConnName string
}

func (c NATSConfig) withDefaults() NATSConfig {
	if c.StreamName == "" {
		c.StreamName = "PLANE"
	}
	if len(c.StreamSubjects) == 0 {
		c.StreamSubjects = []string{"cluster.>", "backend.>"}
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

type natsBus struct {
	nc  *nats.Conn
	js  nats.JetStreamContext
	cfg NATSConfig

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATS connects to cfg.URL, ensures the durable stream exists, and
// returns a Bus backed by it.
func NewNATS(cfg NATSConfig) (Bus, error) {
	cfg = cfg.withDefaults()
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url, func(o *nats.Options) error {
		if cfg.ConnName != "" {
			o.Name = cfg.ConnName
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bus: connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: jetstream context: %w", err)
	}

	b := &natsBus{nc: nc, js: js, cfg: cfg}
	if err := b.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return b, nil
}

func (b *natsBus) ensureStream() error {
	if _, err := b.js.StreamInfo(b.cfg.StreamName); err == nil {
		return nil
	}
	_, err := b.js.AddStream(&nats.StreamConfig{
		Name:      b.cfg.StreamName,
		Subjects:  b.cfg.StreamSubjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxMsgsPerSubject: 1, // last-value-per-subject: exactly what durable liveness/state/DNS publishing needs
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("bus: ensure stream %s: %w", b.cfg.StreamName, err)
	}
	return nil
}

func (b *natsBus) Publish(ctx context.Context, subject string, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	return b.nc.Publish(subject, data)
}

func (b *natsBus) PublishDurable(ctx context.Context, subject string, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	_, err = b.js.Publish(subject, data)
	return err
}

func (b *natsBus) Request(ctx context.Context, subject string, v any, resp any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	ctx, cancel := ctxWithDefaultTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()
	msg, err := b.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return err
	}
	return decodeInto(msg.Data, resp)
}

type natsPending struct {
	bus *natsBus
	sub *nats.Subscription
}

func (p *natsPending) Await(ctx context.Context, v any) error {
	defer p.sub.Unsubscribe()
	ctx, cancel := ctxWithDefaultTimeout(ctx, p.bus.cfg.RequestTimeout)
	defer cancel()
	msg, err := p.sub.NextMsgWithContext(ctx)
	if err != nil {
		return err
	}
	return decodeInto(msg.Data, v)
}

func (b *natsBus) SplitRequest(ctx context.Context, subject string, v any) (PendingRequest, error) {
	data, err := encode(v)
	if err != nil {
		return nil, err
	}
	inbox := nats.NewInbox()
	sub, err := b.nc.SubscribeSync(inbox)
	if err != nil {
		return nil, err
	}
	if err := b.nc.PublishRequest(subject, inbox, data); err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return &natsPending{bus: b, sub: sub}, nil
}

func (b *natsBus) Subscribe(ctx context.Context, pattern string, handler func(Msg)) (Subscription, error) {
	sub, err := b.nc.Subscribe(pattern, func(nm *nats.Msg) {
		handler(Msg{Subject: nm.Subject, Data: nm.Data, ReplyTo: nm.Reply})
	})
	if err != nil {
		return nil, err
	}
	b.trackSub(sub)
	return &natsSubscription{bus: b, sub: sub}, nil
}

func (b *natsBus) SubscribeDurable(ctx context.Context, pattern string, policy DeliveryPolicy, handler func(Msg)) (Subscription, error) {
	opts := []nats.SubOpt{nats.DeliverAll()}
	switch policy {
	case DeliverLastPerSubject:
		opts = []nats.SubOpt{nats.DeliverLastPerSubject()}
	case DeliverNew:
		opts = []nats.SubOpt{nats.DeliverNew()}
	}
	sub, err := b.js.Subscribe(pattern, func(nm *nats.Msg) {
		handler(Msg{Subject: nm.Subject, Data: nm.Data, ReplyTo: nm.Reply})
		_ = nm.Ack()
	}, append(opts, nats.AckExplicit())...)
	if err != nil {
		return nil, err
	}
	b.trackSub(sub)
	return &natsSubscription{bus: b, sub: sub}, nil
}

func (b *natsBus) Snapshot(ctx context.Context, pattern string) ([]Msg, error) {
	sub, err := b.js.SubscribeSync(pattern, nats.DeliverLastPerSubject(), nats.AckExplicit())
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	var out []Msg
	for {
		nm, err := sub.NextMsg(200 * time.Millisecond)
		if err != nil {
			break
		}
		_ = nm.Ack()
		out = append(out, Msg{Subject: nm.Subject, Data: nm.Data})
	}
	return out, nil
}

func (b *natsBus) Reply(ctx context.Context, original Msg, v any) error {
	if original.ReplyTo == "" {
		return nil
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	return b.nc.Publish(original.ReplyTo, data)
}

func (b *natsBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	_ = b.nc.Drain()
	b.nc.Close()
	return nil
}

func (b *natsBus) trackSub(sub *nats.Subscription) {
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
}

type natsSubscription struct {
	bus *natsBus
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	for i, sub := range s.bus.subs {
		if sub == s.sub {
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			break
		}
	}
	s.bus.mu.Unlock()
	return s.sub.Unsubscribe()
}
