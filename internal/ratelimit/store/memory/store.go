// Package memory is a process-local Store. It backs unit tests and
// single-instance deployments without Redis.
package memory

import (
	"context"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"pastebin/internal/ratelimit/store"
	dErrors "pastebin/pkg/domain-errors"
)

// Store implements store.Store with maps guarded by one mutex.
type Store struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]int64
	windows map[string]*slidingWindow
	expiry  map[string]time.Time
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source so tests can move time forward.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]int64),
		windows: make(map[string]*slidingWindow),
		expiry:  make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// slidingWindow keeps the admission times inside the current window.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

// tryConsume admits one request if fewer than limit are in the window.
func (sw *slidingWindow) tryConsume(limit int, now time.Time) store.WindowResult {
	sw.cleanupExpired(now)

	if len(sw.timestamps) >= limit {
		return store.WindowResult{Allowed: false, Count: len(sw.timestamps), Reset: sw.reset(now)}
	}
	sw.timestamps = append(sw.timestamps, now)
	return store.WindowResult{Allowed: true, Count: len(sw.timestamps), Reset: sw.reset(now)}
}

func (sw *slidingWindow) reset(now time.Time) time.Time {
	if len(sw.timestamps) == 0 {
		return now.Add(sw.window)
	}
	return sw.timestamps[0].Add(sw.window)
}

func (sw *slidingWindow) cleanupExpired(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// evictIfExpired must be called with mu held.
func (s *Store) evictIfExpired(key string) {
	exp, ok := s.expiry[key]
	if !ok || s.now().Before(exp) {
		return
	}
	s.deleteLocked(key)
}

func (s *Store) deleteLocked(key string) bool {
	_, str := s.strings[key]
	_, hash := s.hashes[key]
	_, win := s.windows[key]
	delete(s.strings, key)
	delete(s.hashes, key)
	delete(s.windows, key)
	delete(s.expiry, key)
	return str || hash || win
}

func (s *Store) existsLocked(key string) bool {
	_, str := s.strings[key]
	_, hash := s.hashes[key]
	_, win := s.windows[key]
	return str || hash || win
}

func wrongType(key string) error {
	return dErrors.New(dErrors.CodeInvalidInput, "wrong value type for key "+key)
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIfExpired(key)
	v, ok := s.strings[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(key)
	s.strings[key] = value
	if ttl > 0 {
		s.expiry[key] = s.now().Add(ttl)
	}
	return nil
}

func (s *Store) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIfExpired(key)
	if _, isHash := s.hashes[key]; isHash {
		return 0, wrongType(key)
	}
	var n int64
	if v, ok := s.strings[key]; ok {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, wrongType(key)
		}
		n = parsed
	}
	n++
	s.strings[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIfExpired(key)
	if !s.existsLocked(key) {
		return nil
	}
	s.expiry[key] = s.now().Add(ttl)
	return nil
}

func (s *Store) Del(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		s.evictIfExpired(key)
		if s.deleteLocked(key) {
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	collect := func(key string) {
		s.evictIfExpired(key)
		if !s.existsLocked(key) {
			return
		}
		if ok, _ := path.Match(pattern, key); ok {
			out = append(out, key)
		}
	}
	for _, key := range s.allKeysLocked() {
		collect(key)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) allKeysLocked() []string {
	keys := make([]string, 0, len(s.strings)+len(s.hashes)+len(s.windows))
	for k := range s.strings {
		keys = append(keys, k)
	}
	for k := range s.hashes {
		keys = append(keys, k)
	}
	for k := range s.windows {
		keys = append(keys, k)
	}
	return keys
}

func (s *Store) MGet(_ context.Context, keys ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(keys))
	for i, key := range keys {
		s.evictIfExpired(key)
		out[i] = s.strings[key]
	}
	return out, nil
}

func (s *Store) HIncrBy(_ context.Context, key, field string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIfExpired(key)
	if _, isString := s.strings[key]; isString {
		return 0, wrongType(key)
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]int64)
		s.hashes[key] = h
	}
	h[field] += n
	return h[field], nil
}

func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIfExpired(key)
	out := make(map[string]string, len(s.hashes[key]))
	for field, v := range s.hashes[key] {
		out[field] = strconv.FormatInt(v, 10)
	}
	return out, nil
}

func (s *Store) SlidingWindow(_ context.Context, key string, limit int, window time.Duration) (store.WindowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIfExpired(key)
	sw, ok := s.windows[key]
	if !ok {
		sw = &slidingWindow{window: window}
		s.windows[key] = sw
	}
	now := s.now()
	res := sw.tryConsume(limit, now)
	s.expiry[key] = now.Add(window)
	return res, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// TTL reports the remaining lifetime of a key, for tests and debugging.
// ok is false when the key does not exist or has no expiry.
func (s *Store) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIfExpired(key)
	exp, ok := s.expiry[key]
	if !ok {
		return 0, false
	}
	return exp.Sub(s.now()), true
}

var _ store.Store = (*Store)(nil)
