package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus is a Redis Pub/Sub-backed Signal Bus implementation. It lets
// driver-facing processes publish pickup and delivery signals to a saga
// running in another process.
type RedisBus struct {
	client        redis.UniversalClient
	channelPrefix string
	bufferSize    int

	mu          sync.RWMutex
	subscribers map[string]*redisSubscription
	closed      bool
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan *Signal
	cancel context.CancelFunc
}

// NewRedisBus creates a new Redis-backed Signal Bus.
func NewRedisBus(client redis.UniversalClient, channelPrefix string, bufferSize int) *RedisBus {
	if channelPrefix == "" {
		channelPrefix = "dishpatch:signal:"
	}
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &RedisBus{
		client:        client,
		channelPrefix: channelPrefix,
		bufferSize:    bufferSize,
		subscribers:   make(map[string]*redisSubscription),
	}
}

// Publish sends a signal via Redis Pub/Sub.
func (b *RedisBus) Publish(ctx context.Context, sig *Signal) error {
	if sig == nil {
		metricsRecorder().RecordSignalDropped("redis", "unknown", "nil_signal")
		return fmt.Errorf("signal cannot be nil")
	}
	if sig.OrderID == "" {
		metricsRecorder().RecordSignalDropped("redis", string(sig.Kind), "empty_order_id")
		return fmt.Errorf("signal order_id cannot be empty")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		metricsRecorder().RecordSignalDropped("redis", string(sig.Kind), "bus_closed")
		return fmt.Errorf("signal bus is closed")
	}
	b.mu.RUnlock()

	data, err := json.Marshal(sig)
	if err != nil {
		metricsRecorder().RecordSignalDropped("redis", string(sig.Kind), "marshal_failed")
		return fmt.Errorf("failed to marshal signal: %w", err)
	}

	channel := b.channelPrefix + sig.OrderID
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		metricsRecorder().RecordSignalDropped("redis", string(sig.Kind), "publish_failed")
		return err
	}
	metricsRecorder().RecordSignalSent("redis", string(sig.Kind))
	return nil
}

// Subscribe creates a channel receiving signals for the given order via
// Redis Pub/Sub.
func (b *RedisBus) Subscribe(ctx context.Context, orderID string) (<-chan *Signal, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order_id cannot be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("signal bus is closed")
	}

	if _, exists := b.subscribers[orderID]; exists {
		return nil, fmt.Errorf("order %s already subscribed", orderID)
	}

	channel := b.channelPrefix + orderID
	pubsub := b.client.Subscribe(ctx, channel)

	ch := make(chan *Signal, b.bufferSize)
	subCtx, cancel := context.WithCancel(ctx)

	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     ch,
		cancel: cancel,
	}
	b.subscribers[orderID] = sub

	go b.forwardMessages(subCtx, pubsub, ch)

	return ch, nil
}

func (b *RedisBus) forwardMessages(ctx context.Context, pubsub *redis.PubSub, ch chan *Signal) {
	defer func() {
		_ = pubsub.Close()
	}()

	redisCh := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-redisCh:
			if !ok {
				return
			}
			var sig Signal
			if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
				metricsRecorder().RecordSignalDropped("redis", "unknown", "decode_failed")
				continue
			}
			select {
			case ch <- &sig:
				metricsRecorder().RecordSignalDelivered("redis", string(sig.Kind))
			default:
				metricsRecorder().RecordSignalDropped("redis", string(sig.Kind), "buffer_full")
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- &sig:
					metricsRecorder().RecordSignalDelivered("redis", string(sig.Kind))
				default:
					metricsRecorder().RecordSignalDropped("redis", string(sig.Kind), "buffer_still_full")
				}
			}
		}
	}
}

// Unsubscribe removes the Redis subscription for the given order.
func (b *RedisBus) Unsubscribe(orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[orderID]
	if !ok {
		return nil
	}

	sub.cancel()
	delete(b.subscribers, orderID)
	return nil
}

// Close shuts down the bus and all subscriptions.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	for orderID, sub := range b.subscribers {
		sub.cancel()
		delete(b.subscribers, orderID)
	}
	return nil
}

// Healthy pings Redis to check connectivity.
func (b *RedisBus) Healthy() bool {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return false
	}
	b.mu.RUnlock()
	return b.client.Ping(context.Background()).Err() == nil
}
