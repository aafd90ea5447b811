package events

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"eclairia/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *capturePublisher) Publish(event domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturePublisher) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestFanout_PublishesToEveryPublisher(t *testing.T) {
	a, b := &capturePublisher{}, &capturePublisher{}
	Fanout{a, b}.Publish(domain.Event{Type: domain.EventRunStarted, RunID: "r1"})

	assert.Equal(t, 1, a.len())
	assert.Equal(t, 1, b.len())
	assert.Equal(t, "r1", b.events[0].RunID)
}

func TestRedisBus_RelaysBetweenInstances(t *testing.T) {
	addr := os.Getenv("ECLAIRIA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ECLAIRIA_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { client.Close() })

	log := zaptest.NewLogger(t).Sugar()
	sender := NewRedisBus(client, "instance-a", log)
	receiver := NewRedisBus(client, "instance-b", log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := &capturePublisher{}
	own := &capturePublisher{}
	go receiver.Subscribe(ctx, received.Publish)
	go sender.Subscribe(ctx, own.Publish)

	// Give both subscriptions time to register before publishing.
	time.Sleep(100 * time.Millisecond)
	sender.Publish(domain.Event{Type: domain.EventRunStarted, RunID: "r1"})

	require.Eventually(t, func() bool { return received.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "r1", received.events[0].RunID)
	assert.Equal(t, 0, own.len())
}
