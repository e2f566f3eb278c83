package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so several replicas
// can serve viewers from one scene.
type RedisBroker struct {
	rdb    *redis.Client
	prefix string
	log    *slog.Logger

	mu  sync.Mutex
	pss map[chan Message]*redis.PubSub
}

func NewRedisBroker(url string, log *slog.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisBroker{
		rdb:    redis.NewClient(opt),
		prefix: "fleetglobe:",
		log:    log,
		pss:    map[chan Message]*redis.PubSub{},
	}, nil
}

// Ping checks the Redis connection.
func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) Subscribe(topic string) chan Message {
	ch := make(chan Message, 64)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(topic))
	// initial consume to ensure subscription
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warn("redis subscribe failed", "topic", topic, "err", err)
	}
	b.mu.Lock()
	b.pss[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				continue
			}
			select {
			case ch <- m:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the underlying PubSub; the relay goroutine then closes ch.
func (b *RedisBroker) Unsubscribe(topic string, ch chan Message) {
	b.mu.Lock()
	ps := b.pss[ch]
	delete(b.pss, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(topic string, msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(msg)
	if err := b.rdb.Publish(ctx, b.chanName(topic), data).Err(); err != nil {
		b.log.Warn("redis publish failed", "topic", topic, "err", err)
	}
}

func (b *RedisBroker) chanName(topic string) string { return b.prefix + topic }
