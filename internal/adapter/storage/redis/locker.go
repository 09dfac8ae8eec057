package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry forward only while the caller still holds the lock.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker implements ports.Locker with SET NX PX and a token-checked release.
// The TTL bounds how long a crashed holder can block others; a live holder
// renews it every ttl/3 until it unlocks.
type Locker struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    zerolog.Logger
}

// NewLocker creates a Redis-backed locker.
func NewLocker(client *goredis.Client, ttl time.Duration, log zerolog.Logger) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{
		client: client,
		prefix: keyPrefix + "lock:",
		ttl:    ttl,
		retry:  15 * time.Millisecond,
		log:    log,
	}
}

// Lock polls until the key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		_, err := l.client.SetArgs(ctx, redisKey, token, goredis.SetArgs{
			Mode: "NX",
			TTL:  l.ttl,
		}).Result()
		if err == nil {
			break
		}
		if !errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.keepAlive(key, redisKey, token, done)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped
			// The caller's ctx may already be cancelled; release must still run.
			if err := releaseScript.Run(context.Background(), l.client, []string{redisKey}, token).Err(); err != nil {
				l.log.Warn().Err(err).Str("key", key).Msg("redis lock release failed")
			}
		})
	}, nil
}

func (l *Locker) keepAlive(key, redisKey, token string, done <-chan struct{}) {
	every := l.ttl / 3
	if every < time.Millisecond {
		every = time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			held, err := extendScript.Run(context.Background(), l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int64()
			if err != nil {
				l.log.Warn().Err(err).Str("key", key).Msg("redis lock renewal failed")
				continue
			}
			if held == 0 {
				l.log.Error().Str("key", key).Msg("redis lock lost while held")
				return
			}
		}
	}
}
