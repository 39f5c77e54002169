package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/lcpu-club/hpccontainer/container/configure"
	"github.com/satori/uuid"
)

const redisLockKey = "coordination-lock"

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock taken over by another container is left alone.
var releaseScript = redis.NewScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisBackend takes a lock with a TTL in a redis server local to the
// machine.
type RedisBackend struct {
	configure *configure.RedisConfigure
	timeout   time.Duration
}

func NewRedisBackend(conf *configure.RedisConfigure, timeout time.Duration) *RedisBackend {
	return &RedisBackend{configure: conf, timeout: timeout}
}

func (b *RedisBackend) Name() string {
	return configure.BackendRedis
}

func (b *RedisBackend) Key() string {
	return b.configure.KeyPrefix + redisLockKey
}

func (b *RedisBackend) dial(ctx context.Context) (redis.Conn, error) {
	options := []redis.DialOption{}
	if b.configure.Password != "" {
		options = append(options, redis.DialPassword(b.configure.Password))
	}
	options = append(options, redis.DialKeepAlive(b.configure.KeepAlive.Std()))
	options = append(options, redis.DialDatabase(b.configure.Database))
	return redis.DialContext(ctx, "tcp", b.configure.Address, options...)
}

func (b *RedisBackend) Acquire(ctx context.Context) (func(), error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	conn, err := b.dial(ctx)
	if err != nil {
		return nil, err
	}
	key := b.Key()
	token := uuid.NewV4().String()
	ttl := b.configure.LockTTL.Std().Milliseconds()
	for {
		_, err := redis.String(conn.Do("SET", key, token, "NX", "PX", ttl))
		if err == nil {
			break
		}
		if !errors.Is(err, redis.ErrNil) {
			conn.Close()
			return nil, err
		}
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, key)
		case <-time.After(b.configure.RetryInterval.Std()):
		}
	}
	return func() {
		_, _ = releaseScript.Do(conn, key, token)
		conn.Close()
	}, nil
}
