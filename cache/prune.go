package cache

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/sandrolain/nfhttp"
)

// indexKey is the well-known (unhashed) metadata-store key holding the
// prune index. Fingerprints are 64-character hex SHA-256 digests, so this
// reserved name can never collide with one.
const indexKey = "nfhttp-cache-index"

// indexRecord is the bookkeeping entry Prune sorts on. It mirrors entry's
// size/timestamp fields without requiring a full metadata read for every
// candidate.
type indexRecord struct {
	Fingerprint  string    `json:"fingerprint"`
	ExpiryTime   time.Time `json:"expiry_time"`
	LastAccessed time.Time `json:"last_accessed"`
	PayloadSize  int       `json:"payload_size"`
}

func (c *Cache) loadIndex(ctx context.Context) []indexRecord {
	raw, ok, err := c.meta.Get(ctx, indexKey)
	if err != nil || !ok {
		return nil
	}
	var records []indexRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil
	}
	return records
}

func (c *Cache) saveIndex(ctx context.Context, records []indexRecord) {
	raw, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := c.meta.Set(ctx, indexKey, raw); err != nil {
		c.logger().Warn("failed to persist cache index", "error", err)
	}
}

func (c *Cache) indexPut(ctx context.Context, fp string, expiryTime, lastAccessed time.Time, size int) {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	records := c.loadIndex(ctx)
	for i := range records {
		if records[i].Fingerprint == fp {
			records[i].ExpiryTime = expiryTime
			records[i].LastAccessed = lastAccessed
			records[i].PayloadSize = size
			c.saveIndex(ctx, records)
			return
		}
	}
	records = append(records, indexRecord{
		Fingerprint:  fp,
		ExpiryTime:   expiryTime,
		LastAccessed: lastAccessed,
		PayloadSize:  size,
	})
	c.saveIndex(ctx, records)
}

func (c *Cache) indexRemove(ctx context.Context, fp string) {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	records := c.loadIndex(ctx)
	out := records[:0]
	for _, r := range records {
		if r.Fingerprint != fp {
			out = append(out, r)
		}
	}
	c.saveIndex(ctx, out)
}

// entryExpiry computes the entry's absolute expiry time from its stored
// Cache-Control/Expires/Date headers, used only for prune ordering (the
// freshness check itself always re-derives this from the live headers).
func (c *Cache) entryExpiry(ent *entry) time.Time {
	respCC := nfhttp.ParseResponseCacheControl(ent.Header)
	date, err := Date(ent.Header)
	if err != nil {
		date = ent.StoredAt
	}
	return date.Add(calculateLifetime(respCC, ent.Header, date))
}

func (c *Cache) maybePrune(ctx context.Context) {
	if err := c.Prune(ctx); err != nil {
		c.logger().Warn("cache prune failed", "error", err)
	}
}

// Prune enforces Config.PruneThresholdBytes with the documented two-pass
// eviction order: expiry time ascending, then last-accessed ascending.
// Pinned entries are never evicted by either pass.
func (c *Cache) Prune(ctx context.Context) error {
	c.indexMu.Lock()
	records := c.loadIndex(ctx)
	c.indexMu.Unlock()

	var total int64
	for _, r := range records {
		total += int64(r.PayloadSize)
	}
	if total <= c.config.PruneThresholdBytes {
		return nil
	}

	pinned := c.pinnedFingerprintSet(ctx)
	evictable := make([]indexRecord, 0, len(records))
	for _, r := range records {
		if !pinned[r.Fingerprint] {
			evictable = append(evictable, r)
		}
	}

	sort.Slice(evictable, func(i, j int) bool { return evictable[i].ExpiryTime.Before(evictable[j].ExpiryTime) })
	total, evictable = c.evictPass(ctx, evictable, total)

	if total > c.config.PruneThresholdBytes {
		sort.Slice(evictable, func(i, j int) bool { return evictable[i].LastAccessed.Before(evictable[j].LastAccessed) })
		total, _ = c.evictPass(ctx, evictable, total)
	}

	return nil
}

func (c *Cache) evictPass(ctx context.Context, evictable []indexRecord, total int64) (int64, []indexRecord) {
	i := 0
	for total > c.config.PruneThresholdBytes && i < len(evictable) {
		r := evictable[i]
		unlock := c.locker.lock(r.Fingerprint)
		err := c.delete(ctx, r.Fingerprint)
		unlock()
		if err != nil {
			c.logger().Warn("failed to evict cache entry", "fingerprint", r.Fingerprint, "error", err)
			i++
			continue
		}
		total -= int64(r.PayloadSize)
		i++
	}
	return total, evictable[i:]
}
