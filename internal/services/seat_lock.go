package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/collegetransit/booking-service/internal/metrics"
	"github.com/collegetransit/booking-service/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SeatLocker serializes the availability check and insert for one vehicle-day.
// Lock blocks until the key is free or ctx is done; the returned func releases it.
type SeatLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// SeatLockKey identifies the critical section for a vehicle on a travel day
func SeatLockKey(vehicleID string, day models.TravelDay) string {
	return vehicleID + "|" + day.Date
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// LocalSeatLocker is an in-process keyed mutex. It is sufficient when a single
// instance serves bookings; the storage constraints still back it up.
type LocalSeatLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

// NewLocalSeatLocker creates a new LocalSeatLocker
func NewLocalSeatLocker() *LocalSeatLocker {
	return &LocalSeatLocker{locks: make(map[string]*keyedLock)}
}

// Lock acquires key, waiting while another holder has it
func (l *LocalSeatLocker) Lock(ctx context.Context, key string) (func(), error) {
	started := time.Now()

	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, lock)
		return nil, fmt.Errorf("%w: %v", ErrSeatLockTimeout, ctx.Err())
	}
	metrics.SeatLockWait.Observe(time.Since(started).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.ch
			l.release(key, lock)
		})
	}, nil
}

func (l *LocalSeatLocker) release(key string, lock *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}

// unlockScript deletes the key only if this holder still owns it
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisSeatLocker is a SET NX PX lock shared by every instance talking to the
// same Redis. Keys expire after ttl so a crashed holder cannot block a vehicle-day.
type RedisSeatLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// NewRedisSeatLocker creates a new RedisSeatLocker
func NewRedisSeatLocker(client redis.UniversalClient, ttl time.Duration) *RedisSeatLocker {
	return &RedisSeatLocker{
		client: client,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		prefix: "seatlock:",
	}
}

// Lock polls SET NX until it wins the key, ctx is done or ttl has elapsed
func (l *RedisSeatLocker) Lock(ctx context.Context, key string) (func(), error) {
	started := time.Now()
	redisKey := l.prefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		acquired, err := l.client.SetNX(waitCtx, redisKey, token, l.ttl).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("%w: %v", ErrSeatLockTimeout, err)
			}
			return nil, fmt.Errorf("failed to acquire seat lock: %w", err)
		}
		if acquired {
			break
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			return nil, fmt.Errorf("%w: %v", ErrSeatLockTimeout, waitCtx.Err())
		}
	}
	metrics.SeatLockWait.Observe(time.Since(started).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = unlockScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
		})
	}, nil
}
