package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when releasing a lock that already expired or
// was taken over.
var ErrLockNotHeld = errors.New("lock was not held or already expired")

// Client wraps redis.Client. Cache reads and writes fail safe by swallowing
// connectivity errors; lock operations report them.
type Client struct {
	client *redis.Client
	locks  *redsync.Redsync
}

// New creates a new Redis client.
func New(addr, password string, db int) *Client {
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	return NewFromRedis(redis.NewClient(opts))
}

// NewFromRedis wraps an existing redis client.
func NewFromRedis(client *redis.Client) *Client {
	return &Client{
		client: client,
		locks:  redsync.New(goredis.NewPool(client)),
	}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("redis client not configured")
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Get returns value or nil if missing or redis unavailable.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	res, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		// fail safe: behave like cache miss
		return nil, nil
	}
	return res, nil
}

// Set stores value with TTL, ignoring redis errors.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		// fail safe: ignore redis errors
		return nil
	}
	return nil
}

// Delete removes a key, ignoring redis errors.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return nil
	}
	return nil
}

// Lock is a held distributed lock.
type Lock struct {
	mutex *redsync.Mutex
}

// Release gives the lock up. It reports ErrLockNotHeld when the lock expired
// before the holder was done.
func (l *Lock) Release(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) {
			return ErrLockNotHeld
		}
		return err
	}
	if !ok {
		return ErrLockNotHeld
	}
	return nil
}

// TryLock attempts to take key once without retrying. It returns false with a
// nil error when another holder owns the lock.
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	if c == nil || c.locks == nil {
		return nil, false, errors.New("redis client not configured")
	}

	mutex := c.locks.NewMutex(key, redsync.WithExpiry(ttl), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &Lock{mutex: mutex}, true, nil
}
