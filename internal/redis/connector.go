package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stash/internal/logger"
)

// ConnectOptions describes the Redis instance holding the document store
// and sessions, and how long startup may wait for it.
type ConnectOptions struct {
	Addr         string
	User         string
	Password     string
	RedisDB      int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	ConnectTimeout time.Duration // budget for all attempts
	RetryInterval  time.Duration // first wait, doubled after each failure
	MaxWait        time.Duration // cap on the wait
	PingTimeout    time.Duration // per attempt
	WarnThreshold  int           // failures logged at warn before switching to error
}

// Validate reports every invalid setting at once.
func (o ConnectOptions) Validate() error {
	var errs []error
	if o.Addr == "" {
		errs = append(errs, errors.New("redis: Addr is required"))
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"ConnectTimeout", o.ConnectTimeout},
		{"RetryInterval", o.RetryInterval},
		{"MaxWait", o.MaxWait},
		{"PingTimeout", o.PingTimeout},
	} {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("redis: %s must be > 0, got %v", d.name, d.val))
		}
	}
	if o.WarnThreshold < 0 {
		errs = append(errs, fmt.Errorf("redis: WarnThreshold must be >= 0, got %d", o.WarnThreshold))
	}
	return errors.Join(errs...)
}

func (o ConnectOptions) client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Username:     o.User,
		Password:     o.Password,
		DB:           o.RedisDB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
	})
}

// backoff doubles the wait after each call, up to max.
type backoff struct {
	next time.Duration
	max  time.Duration
}

func (b *backoff) wait() time.Duration {
	d := b.next
	b.next = min(b.next*2, b.max)
	return min(d, b.max)
}

// Connect pings Redis until it answers, ConnectTimeout runs out or ctx is
// done. Stash cannot serve without its store, so callers treat an error as
// fatal.
func Connect(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log = log.Named("redis").With(logger.String("addr", opts.Addr))

	client := opts.client()
	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	started := time.Now()
	bo := backoff{next: opts.RetryInterval, max: opts.MaxWait}
	log.Info("connecting to redis", logger.Duration("timeout", opts.ConnectTimeout))

	for attempt := 1; ; attempt++ {
		err := ping(ctx, client, opts.PingTimeout)
		if err == nil {
			fields := []logger.Field{logger.Int("attempts", attempt), logger.Duration("elapsed", time.Since(started))}
			if attempt > 1 {
				log.Warn("redis reachable after retries", fields...)
			} else {
				log.Info("redis reachable", fields...)
			}
			return client, nil
		}

		wait := bo.wait()
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			wait = max(time.Until(deadline), 0)
		}
		retry := []logger.Field{logger.Int("attempt", attempt), logger.Duration("next_retry_in", wait), logger.Error(err)}
		if attempt <= opts.WarnThreshold {
			log.Warn("redis not reachable, retrying", retry...)
		} else {
			log.Error("redis still not reachable, retrying", retry...)
		}

		select {
		case <-ctx.Done():
			_ = client.Close()
			log.Error("giving up on redis", logger.Int("attempts", attempt), logger.Error(err))
			return nil, fmt.Errorf("redis unreachable at %s after %d attempts: %w", opts.Addr, attempt, err)
		case <-time.After(wait):
		}
	}
}

func ping(ctx context.Context, c *redis.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Ping(ctx).Err()
}
