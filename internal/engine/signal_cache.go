package engine

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

const cacheShardCount = 16

// signalCache tracks recently emitted combined signals per symbol for
// cooldown enforcement. Shards are locked independently so analyses of
// different symbols do not contend.
type signalCache struct {
	shards [cacheShardCount]cacheShard
}

type cacheShard struct {
	mu      sync.Mutex
	entries map[string][]cacheEntry
}

type cacheEntry struct {
	signal types.CombinedSignal
	at     time.Time
}

func newSignalCache() *signalCache {
	c := &signalCache{} //nolint:exhaustruct
	for i := range c.shards {
		c.shards[i].entries = make(map[string][]cacheEntry)
	}

	return c
}

func (c *signalCache) shardFor(symbol string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(symbol))

	return &c.shards[h.Sum32()%cacheShardCount]
}

// activeCount returns the number of non-expired signals for the symbol.
func (c *signalCache) activeCount(symbol string, now time.Time, timeout time.Duration) int {
	shard := c.shardFor(symbol)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	count := 0
	for _, entry := range shard.entries[symbol] {
		if now.Sub(entry.at) < timeout {
			count++
		}
	}

	return count
}

// record stores a combined signal and trims entries older than twice the
// cooldown timeout.
func (c *signalCache) record(symbol string, signal types.CombinedSignal, now time.Time, timeout time.Duration) {
	shard := c.shardFor(symbol)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	kept := shard.entries[symbol][:0]
	for _, entry := range shard.entries[symbol] {
		if now.Sub(entry.at) <= 2*timeout {
			kept = append(kept, entry)
		}
	}

	shard.entries[symbol] = append(kept, cacheEntry{signal: signal, at: now})
}

// latest returns the most recent non-expired signal for the symbol.
func (c *signalCache) latest(symbol string, now time.Time, timeout time.Duration) (types.CombinedSignal, bool) {
	shard := c.shardFor(symbol)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	entries := shard.entries[symbol]
	for i := len(entries) - 1; i >= 0; i-- {
		if now.Sub(entries[i].at) < timeout {
			return entries[i].signal, true
		}
	}

	return types.CombinedSignal{}, false //nolint:exhaustruct
}
