package distributed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotHeld = errors.New("lock was not held by this instance")

// releaseScript deletes the key only when it still carries our holder value.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// renewScript extends the ttl only when it still carries our holder value.
var renewScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Lock is a non-blocking Redis lock held by one holder at a time. While
// held, its ttl is renewed in the background so a long run keeps it.
type Lock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu     sync.Mutex
	holder string
	stop   chan struct{}
}

func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Lock{client: client, key: key, ttl: ttl}
}

// TryAcquire takes the lock for holder without waiting. It reports false
// when another holder has it.
func (l *Lock) TryAcquire(ctx context.Context, holder string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holder != "" {
		return false, nil
	}

	acquired, err := l.client.SetNX(ctx, l.key, holder, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !acquired {
		return false, nil
	}

	l.holder = holder
	l.stop = make(chan struct{})
	go l.renew(holder, l.stop)
	return true, nil
}

// Release gives the lock up. Releasing a lock that expired under us
// returns ErrNotHeld.
func (l *Lock) Release(ctx context.Context) error {
	l.mu.Lock()
	holder := l.holder
	if holder == "" {
		l.mu.Unlock()
		return ErrNotHeld
	}
	close(l.stop)
	l.holder = ""
	l.stop = nil
	l.mu.Unlock()

	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, holder).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Holder returns the current holder recorded in Redis, or "" if free.
func (l *Lock) Holder(ctx context.Context) (string, error) {
	v, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (l *Lock) renew(holder string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/2)
			n, err := renewScript.Run(ctx, l.client, []string{l.key}, holder, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil || n == 0 {
				// lost the key; Release will report it
				return
			}
		}
	}
}
