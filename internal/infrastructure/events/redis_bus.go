package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eclairia/internal/core/domain"
	"eclairia/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultChannel = "eclairia:events"

	publishTimeout = 2 * time.Second
)

// envelope tags an event with the instance that produced it.
type envelope struct {
	InstanceID string       `json:"instance_id"`
	Event      domain.Event `json:"event"`
}

// RedisBus relays validation events between server instances over Redis
// pub/sub, so subscribers of any instance see runs started on another.
type RedisBus struct {
	client     *redis.Client
	instanceID string
	channel    string
	logger     *zap.SugaredLogger
}

var _ ports.EventPublisher = (*RedisBus)(nil)

func NewRedisBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RedisBus{
		client:     client,
		instanceID: instanceID,
		channel:    DefaultChannel,
		logger:     logger,
	}
}

// Publish sends event to the other instances. Failures are logged; a
// broken relay never stalls a run.
func (b *RedisBus) Publish(event domain.Event) {
	data, err := json.Marshal(envelope{InstanceID: b.instanceID, Event: event})
	if err != nil {
		b.logger.Warnw("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Warnw("failed to relay event",
			"type", event.Type,
			"run_id", event.RunID,
			"error", err,
		)
	}
}

// Subscribe delivers events published by other instances to handler
// until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(domain.Event)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warnw("failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			if env.InstanceID == b.instanceID {
				continue
			}
			handler(env.Event)
		}
	}
}

// Fanout publishes every event to each publisher in order.
type Fanout []ports.EventPublisher

func (f Fanout) Publish(event domain.Event) {
	for _, p := range f {
		p.Publish(event)
	}
}
