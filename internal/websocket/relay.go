package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Scope string

const (
	ScopeSession  Scope = "session"
	ScopePresence Scope = "presence"
)

// Envelope is a broadcast on its way to the hubs of every process.
type Envelope struct {
	Scope     Scope     `json:"scope"`
	SessionID uuid.UUID `json:"session_id,omitempty"`
	SenderID  uuid.UUID `json:"sender_id,omitempty"`
	Echo      bool      `json:"echo"`
	Message   *Message  `json:"message"`
}

// Relay carries envelopes to every hub. Run blocks until ctx is done,
// handing received envelopes to deliver.
type Relay interface {
	Publish(ctx context.Context, env *Envelope) error
	Run(ctx context.Context, deliver func(*Envelope)) error
}

// LocalRelay delivers envelopes in process. It serves single-instance
// deployments and tests.
type LocalRelay struct {
	mu      sync.RWMutex
	deliver func(*Envelope)
}

func NewLocalRelay() *LocalRelay {
	return &LocalRelay{}
}

func (r *LocalRelay) Publish(_ context.Context, env *Envelope) error {
	r.mu.RLock()
	deliver := r.deliver
	r.mu.RUnlock()
	if deliver != nil {
		deliver(env)
	}
	return nil
}

// Attach sets the delivery target without blocking.
func (r *LocalRelay) Attach(deliver func(*Envelope)) {
	r.mu.Lock()
	r.deliver = deliver
	r.mu.Unlock()
}

func (r *LocalRelay) Run(ctx context.Context, deliver func(*Envelope)) error {
	r.Attach(deliver)
	<-ctx.Done()
	r.Attach(nil)
	return nil
}

const redisChannelPrefix = "linklearn:"

// RedisRelay fans envelopes out over redis pub/sub so sockets held by other
// server processes receive them too.
type RedisRelay struct {
	client *redis.Client
}

func NewRedisRelay(client *redis.Client) *RedisRelay {
	return &RedisRelay{client: client}
}

// NewRedisClient parses url and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func channelFor(env *Envelope) string {
	if env.Scope == ScopePresence {
		return redisChannelPrefix + "presence"
	}
	return redisChannelPrefix + "session:" + env.SessionID.String()
}

func (r *RedisRelay) Publish(ctx context.Context, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channelFor(env), data).Err()
}

func (r *RedisRelay) Run(ctx context.Context, deliver func(*Envelope)) error {
	pubsub := r.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(msg.Channel, redisChannelPrefix) {
				continue
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("drop malformed envelope")
				continue
			}
			deliver(&env)
		}
	}
}
