package bus

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/axelav/spawner/internal/domain"
	"github.com/google/uuid"
)

// memoryBus is an in-process Bus used by tests (scheduler_test.go,
// executor_test.go) and by MockEngine-style harnesses that want scheduler
// and executor wired together without a NATS server. It implements the
// same delivery semantics nats.go provides — durable last-value retention,
// request/reply via a reply inbox, wildcard subscriptions — against plain
// maps and channels instead of JetStream.
type memoryBus struct {
	mu       sync.RWMutex
	subs     map[string]*memorySub
	durable  map[string][]byte // subject -> last published value
	inboxes  map[string]chan Msg
	closed   bool
}

type memorySub struct {
	id      string
	pattern string
	handler func(Msg)
}

// NewMemory returns a Bus with no external dependencies, suitable for unit
// tests and in-process integration tests that exercise the scheduler and
// executor together.
func NewMemory() Bus {
	return &memoryBus{
		subs:    make(map[string]*memorySub),
		durable: make(map[string][]byte),
		inboxes: make(map[string]chan Msg),
	}
}

func matchSubject(pattern, subject string) bool {
	pTok := strings.Split(pattern, ".")
	sTok := strings.Split(subject, ".")
	for i, p := range pTok {
		if p == ">" {
			return true
		}
		if i >= len(sTok) {
			return false
		}
		if p != "*" && p != sTok[i] {
			return false
		}
	}
	return len(pTok) == len(sTok)
}

func encode(v any) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return json.Marshal(v)
}

func decodeInto(data []byte, v any) error {
	if v == nil {
		return nil
	}
	if bp, ok := v.(*[]byte); ok {
		*bp = data
		return nil
	}
	return json.Unmarshal(data, v)
}

func (b *memoryBus) deliver(msg Msg) {
	b.mu.RLock()
	var matched []*memorySub
	for _, s := range b.subs {
		if matchSubject(s.pattern, msg.Subject) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()
	for _, s := range matched {
		go s.handler(msg)
	}
}

func (b *memoryBus) Publish(ctx context.Context, subject string, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	b.deliver(Msg{Subject: subject, Data: data})
	return nil
}

func (b *memoryBus) PublishDurable(ctx context.Context, subject string, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.ErrBusClosed
	}
	b.durable[subject] = data
	b.mu.Unlock()
	b.deliver(Msg{Subject: subject, Data: data})
	return nil
}

func (b *memoryBus) Request(ctx context.Context, subject string, v any, resp any) error {
	pending, err := b.SplitRequest(ctx, subject, v)
	if err != nil {
		return err
	}
	return pending.Await(ctx, resp)
}

type memoryPending struct {
	bus   *memoryBus
	inbox string
	ch    chan Msg
}

func (p *memoryPending) Await(ctx context.Context, v any) error {
	defer func() {
		p.bus.mu.Lock()
		delete(p.bus.inboxes, p.inbox)
		p.bus.mu.Unlock()
	}()
	ctx, cancel := ctxWithDefaultTimeout(ctx, DefaultRequestTimeout)
	defer cancel()
	select {
	case msg := <-p.ch:
		return decodeInto(msg.Data, v)
	case <-ctx.Done():
		return domain.ErrBusRequestTimeout
	}
}

func (b *memoryBus) SplitRequest(ctx context.Context, subject string, v any) (PendingRequest, error) {
	data, err := encode(v)
	if err != nil {
		return nil, err
	}
	inbox := uuid.NewString()
	ch := make(chan Msg, 1)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, domain.ErrBusClosed
	}
	b.inboxes[inbox] = ch
	b.mu.Unlock()
	b.deliver(Msg{Subject: subject, Data: data, ReplyTo: inbox})
	return &memoryPending{bus: b, inbox: inbox, ch: ch}, nil
}

func (b *memoryBus) Subscribe(ctx context.Context, pattern string, handler func(Msg)) (Subscription, error) {
	return b.addSub(pattern, handler), nil
}

func (b *memoryBus) SubscribeDurable(ctx context.Context, pattern string, policy DeliveryPolicy, handler func(Msg)) (Subscription, error) {
	if policy != DeliverNew {
		snap, err := b.Snapshot(ctx, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range snap {
			handler(m)
		}
	}
	return b.addSub(pattern, handler), nil
}

func (b *memoryBus) addSub(pattern string, handler func(Msg)) Subscription {
	s := &memorySub{id: uuid.NewString(), pattern: pattern, handler: handler}
	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()
	return &memorySubscription{bus: b, id: s.id}
}

type memorySubscription struct {
	bus *memoryBus
	id  string
}

func (s *memorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	return nil
}

func (b *memoryBus) Snapshot(ctx context.Context, pattern string) ([]Msg, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, domain.ErrBusClosed
	}
	var out []Msg
	for subj, data := range b.durable {
		if matchSubject(pattern, subj) {
			out = append(out, Msg{Subject: subj, Data: data})
		}
	}
	return out, nil
}

func (b *memoryBus) Reply(ctx context.Context, original Msg, v any) error {
	if original.ReplyTo == "" {
		return nil
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	b.mu.RLock()
	ch, ok := b.inboxes[original.ReplyTo]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	select {
	case ch <- Msg{Subject: original.Subject, Data: data}:
	default:
	}
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
