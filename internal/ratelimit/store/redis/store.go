// Package redis implements store.Store on top of go-redis.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pastebin/internal/ratelimit/store"
	dErrors "pastebin/pkg/domain-errors"
)

// slidingWindowScript trims entries older than the window, admits the
// request if there is room, refreshes the key TTL and returns
// {allowed, count, oldestScore}. Scores are epoch milliseconds.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, member)
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
	oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 500

// Store is a Redis-backed store.Store.
type Store struct {
	client redis.UniversalClient
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for sliding window scores.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps an existing client. The caller owns the client's lifecycle.
func New(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	s := &Store{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func unavailable(err error, op string) error {
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "redis "+op+" failed")
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", unavailable(err, "get")
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err, "set")
	}
	return nil
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err, "incr")
	}
	return n, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return unavailable(err, "expire")
	}
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable(err, "del")
	}
	return n, nil
}

// Keys walks the keyspace with SCAN so large keyspaces do not block the server.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, unavailable(err, "scan")
		}
		out = append(out, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return dedupe(out), nil
}

// dedupe drops repeats; SCAN may return a key more than once.
func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func (s *Store) MGet(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	raw, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err, "mget")
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		if str, ok := v.(string); ok {
			out[i] = str
		}
	}
	return out, nil
}

func (s *Store) HIncrBy(ctx context.Context, key, field string, n int64) (int64, error) {
	v, err := s.client.HIncrBy(ctx, key, field, n).Result()
	if err != nil {
		return 0, unavailable(err, "hincrby")
	}
	return v, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	v, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, unavailable(err, "hgetall")
	}
	return v, nil
}

func (s *Store) SlidingWindow(ctx context.Context, key string, limit int, window time.Duration) (store.WindowResult, error) {
	now := s.now()
	member := strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()

	vals, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return store.WindowResult{}, unavailable(err, "sliding window")
	}
	if len(vals) != 3 {
		return store.WindowResult{}, dErrors.New(dErrors.CodeInternal, "unexpected sliding window reply")
	}

	return store.WindowResult{
		Allowed: vals[0] == 1,
		Count:   int(vals[1]),
		Reset:   time.UnixMilli(vals[2]).Add(window),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err, "ping")
	}
	return nil
}

var _ store.Store = (*Store)(nil)
