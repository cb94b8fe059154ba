package cache

import (
	"context"
	"encoding/json"
)

// varyIndexKey namespaces the record of which headers a fingerprint's
// stored response has told us to vary on, so a later lookup can rebuild the
// same extended key without already knowing the response.
func (c *Cache) varyIndexKey(baseFP string) string { return hashKey("varyindex:" + baseFP) }

func (c *Cache) knownVaryHeaders(ctx context.Context, baseFP string) []string {
	raw, ok, err := c.meta.Get(ctx, c.varyIndexKey(baseFP))
	if err != nil || !ok {
		return nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil
	}
	return names
}

func (c *Cache) setKnownVaryHeaders(ctx context.Context, baseFP string, names []string) {
	raw, err := json.Marshal(names)
	if err != nil {
		return
	}
	if err := c.meta.Set(ctx, c.varyIndexKey(baseFP), raw); err != nil {
		c.logger().Warn("failed to persist vary index", "fingerprint", baseFP, "error", err)
	}
}
