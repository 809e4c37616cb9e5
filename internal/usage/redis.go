package usage

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hpungsan/hostgate/internal/logger"
)

const (
	// KeyLaunchCounts is the hash of browser package -> launch count
	KeyLaunchCounts = "hostgate:usage:count"
	// KeyLastUsed is the hash of browser package -> last launch (Unix ms)
	KeyLastUsed = "hostgate:usage:last"
)

// ConnectOptions configures the Redis connection.
type ConnectOptions struct {
	Addr     string        // Redis address (ex: "localhost:6379")
	Password string        // Optional password
	DB       int           // Redis DB number
	Timeout  time.Duration // dial/read/write and ping timeout
}

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})

	log.Info("connecting to redis",
		logger.String("addr", opts.Addr),
		logger.Duration("timeout", opts.Timeout))

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Error("redis unavailable",
			logger.String("addr", opts.Addr),
			logger.Error(err))
		return nil, fmt.Errorf("redis unavailable at %s: %w", opts.Addr, err)
	}

	log.Info("connected to redis", logger.String("addr", opts.Addr))
	return client, nil
}

// RedisCounter stores counts in two Redis hashes.
type RedisCounter struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisCounter returns a counter using client.
func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client, now: time.Now}
}

// Increment adds one launch for browserPackage.
func (c *RedisCounter) Increment(ctx context.Context, browserPackage string) error {
	browserPackage = strings.TrimSpace(browserPackage)
	if browserPackage == "" {
		return fmt.Errorf("browser package is required")
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, KeyLaunchCounts, browserPackage, 1)
		pipe.HSet(ctx, KeyLastUsed, browserPackage, c.now().UnixMilli())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	return nil
}

// Stats returns every counter, most launched first.
func (c *RedisCounter) Stats(ctx context.Context) ([]Entry, error) {
	counts, err := c.client.HGetAll(ctx, KeyLaunchCounts).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get usage counts: %w", err)
	}
	last, err := c.client.HGetAll(ctx, KeyLastUsed).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get usage timestamps: %w", err)
	}
	return mergeStats(counts, last)
}

// mergeStats joins the two hashes into entries ordered like the SQLite
// counter: launch count descending, then package name.
func mergeStats(counts, last map[string]string) ([]Entry, error) {
	out := make([]Entry, 0, len(counts))
	for pkg, raw := range counts {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid usage count for %s: %w", pkg, err)
		}
		var lastUsed int64
		if v, ok := last[pkg]; ok {
			lastUsed, _ = strconv.ParseInt(v, 10, 64)
		}
		out = append(out, Entry{BrowserPackage: pkg, LaunchCount: n, LastUsedAt: lastUsed})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if a.LaunchCount != b.LaunchCount {
			if a.LaunchCount > b.LaunchCount {
				return -1
			}
			return 1
		}
		return strings.Compare(a.BrowserPackage, b.BrowserPackage)
	})
	return out, nil
}
