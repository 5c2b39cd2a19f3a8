package bus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/dom/linklearn/internal/domain"
	"github.com/nats-io/nats.go"
)

const (
	StreamName      = "LINKLEARN"
	SubjectSettled  = "linklearn.sessions.settled"
	subjectsPattern = "linklearn.>"
)

var errNilBus = errors.New("nil bus")

// Bus wraps a NATS JetStream connection used to publish committed settlements
// for downstream consumers.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New connects to url and makes sure the LINKLEARN stream exists.
func New(url string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	b := &Bus{conn: nc, js: js}
	if err := b.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bus) ensureStream() error {
	_, err := b.js.StreamInfo(StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = b.js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{subjectsPattern},
	})
	return err
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish encodes v as JSON and publishes it to subj.
func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil {
		return errNilBus
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = b.js.Publish(subj, data, nats.Context(ctx))
	return err
}

// PublishSettlement satisfies service.SettlementPublisher.
func (b *Bus) PublishSettlement(ctx context.Context, summary *domain.SettlementSummary) error {
	return b.Publish(ctx, SubjectSettled, summary)
}

type subscription struct {
	sub    *nats.Subscription
	mu     sync.Mutex
	closed bool
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sub.Drain()
}

// SubscribeSettlements attaches a durable consumer to the settled subject.
// A handler error naks the message for redelivery.
func (b *Bus) SubscribeSettlements(ctx context.Context, durable string, fn func(ctx context.Context, summary *domain.SettlementSummary) error) (io.Closer, error) {
	if b == nil {
		return nil, errNilBus
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	handler := func(msg *nats.Msg) {
		var summary domain.SettlementSummary
		if err := json.Unmarshal(msg.Data, &summary); err != nil {
			// Undecodable messages would be redelivered forever.
			_ = msg.Term()
			return
		}
		if err := fn(ctx, &summary); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}

	sub, err := b.js.Subscribe(SubjectSettled, handler, nats.Durable(durable), nats.ManualAck(), nats.AckExplicit())
	if err != nil {
		return nil, err
	}

	s := &subscription{sub: sub}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	return s, nil
}
