package gatekeeper

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"banking-service/internal/util"
)

const shardCount = 32

// MemoryLimiter is an in-process RateLimiter backed by a sharded, bounded
// bucket cache. Shard selection hashes the client key so that buckets for
// different clients do not contend on one lock; the per-bucket mutex keeps
// the check-and-decrement linearizable. Buckets are created lazily, evicted
// after an idle period by the janitor, and evicted least-recently-used when
// a shard outgrows its size bound.
type MemoryLimiter struct {
	shards      [shardCount]*limiterShard
	maxPerShard int
	idleTTL     time.Duration
	now         func() time.Time
}

type limiterShard struct {
	mu      sync.Mutex
	buckets map[string]*list.Element
	lru     *list.List // front is most recently used
}

type lruEntry struct {
	key      string
	b        *bucket
	lastSeen time.Time
}

// MemoryLimiterOption customizes a MemoryLimiter.
type MemoryLimiterOption func(*MemoryLimiter)

// WithClock overrides the limiter's time source, used by tests.
func WithClock(now func() time.Time) MemoryLimiterOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// NewMemoryLimiter builds a limiter with the given total bucket bound and
// idle eviction duration.
func NewMemoryLimiter(maxSize int, idleTTL time.Duration, opts ...MemoryLimiterOption) *MemoryLimiter {
	perShard := maxSize / shardCount
	if perShard < 1 {
		perShard = 1
	}

	l := &MemoryLimiter{
		maxPerShard: perShard,
		idleTTL:     idleTTL,
		now:         time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &limiterShard{
			buckets: make(map[string]*list.Element),
			lru:     list.New(),
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one token for the (clientKey, policy) bucket if available.
func (l *MemoryLimiter) Allow(clientKey string, policy Policy) bool {
	now := l.now()
	b := l.fetchOrCreate(clientKey, policy, now)
	return b.take(now)
}

// AvailableTokens reports the whole tokens currently available without
// consuming. A missing bucket means the client has full burst capacity.
func (l *MemoryLimiter) AvailableTokens(clientKey string, policy Policy) int {
	key := cacheKey(clientKey, policy)
	shard := l.shardFor(key)

	shard.mu.Lock()
	elem, ok := shard.buckets[key]
	shard.mu.Unlock()

	if !ok {
		return policy.Burst
	}
	return elem.Value.(*lruEntry).b.available(l.now())
}

// Len reports the number of live buckets across all shards.
func (l *MemoryLimiter) Len() int {
	total := 0
	for _, shard := range l.shards {
		shard.mu.Lock()
		total += len(shard.buckets)
		shard.mu.Unlock()
	}
	return total
}

// StartJanitor runs periodic idle eviction until the context is done.
func (l *MemoryLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.evictIdle()
			}
		}
	}()
}

func (l *MemoryLimiter) fetchOrCreate(clientKey string, policy Policy, now time.Time) *bucket {
	key := cacheKey(clientKey, policy)
	shard := l.shardFor(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if elem, ok := shard.buckets[key]; ok {
		entry := elem.Value.(*lruEntry)
		entry.lastSeen = now
		shard.lru.MoveToFront(elem)
		return entry.b
	}

	b := newBucket(policy, now)
	elem := shard.lru.PushFront(&lruEntry{key: key, b: b, lastSeen: now})
	shard.buckets[key] = elem

	// Size bound: discard the coldest bucket. Only idle history is lost;
	// the new bucket starts at full burst either way.
	if shard.lru.Len() > l.maxPerShard {
		oldest := shard.lru.Back()
		if oldest != nil && oldest != elem {
			shard.lru.Remove(oldest)
			delete(shard.buckets, oldest.Value.(*lruEntry).key)
		}
	}

	return b
}

func (l *MemoryLimiter) evictIdle() {
	cutoff := l.now().Add(-l.idleTTL)
	evicted := 0

	for _, shard := range l.shards {
		shard.mu.Lock()
		for elem := shard.lru.Back(); elem != nil; {
			entry := elem.Value.(*lruEntry)
			if !entry.lastSeen.Before(cutoff) {
				break
			}
			prev := elem.Prev()
			shard.lru.Remove(elem)
			delete(shard.buckets, entry.key)
			evicted++
			elem = prev
		}
		shard.mu.Unlock()
	}

	if evicted > 0 {
		util.Debug("Evicted idle rate-limit buckets", util.Int("count", evicted))
	}
}

func (l *MemoryLimiter) shardFor(key string) *limiterShard {
	return l.shards[murmur3.Sum32([]byte(key))%shardCount]
}

func cacheKey(clientKey string, policy Policy) string {
	return clientKey + "|" + policy.Name
}
