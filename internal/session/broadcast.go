package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel carrying session events.
const Channel = "auth:session"

// EventType names a session change.
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

// Event tells subscribers that the identity behind a session changed.
type Event struct {
	Type        EventType `json:"type"`
	AccountID   string    `json:"account_id"`
	SessionID   string    `json:"session_id,omitempty"`
	Role        string    `json:"role,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	At          time.Time `json:"at"`
}

// Broadcaster fans session events out to subscribers. Subscribe returns a
// channel of events and a function releasing the subscription.
type Broadcaster interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context) (<-chan Event, func())
}

const subscriberBuffer = 16

type memoryBroadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewMemoryBroadcaster builds an in-process broadcaster. Slow subscribers
// miss events instead of blocking publishers.
func NewMemoryBroadcaster() Broadcaster {
	return &memoryBroadcaster{subs: make(map[chan Event]struct{})}
}

func (b *memoryBroadcaster) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (b *memoryBroadcaster) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	release := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			release()
		case <-done:
		}
	}()
	return ch, release
}

// RedisBroadcaster publishes events on a Redis channel so every instance
// sees them.
type RedisBroadcaster struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBroadcaster builds a Redis pub/sub broadcaster.
func NewRedisBroadcaster(client *redis.Client, logger *slog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, logger: logger}
}

// Publish implements Broadcaster.
func (b *RedisBroadcaster) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode session event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish session event: %w", err)
	}
	return nil
}

// Subscribe implements Broadcaster. The subscription is confirmed before it
// returns, so events published afterwards are delivered.
func (b *RedisBroadcaster) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ctx, cancel := context.WithCancel(ctx)
	pubsub := b.client.Subscribe(ctx, Channel)
	out := make(chan Event, subscriberBuffer)

	if _, err := pubsub.Receive(ctx); err != nil {
		b.logger.Warn("subscribe session events", slog.Any("error", err))
	}

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("decode session event", slog.Any("error", err))
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			cancel()
			_ = pubsub.Close()
		})
	}
}
