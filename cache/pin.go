package cache

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sandrolain/nfhttp"
)

// pinLabelsIndexKey is the well-known metadata-store key holding the set of
// every label currently in use, so PinLabels doesn't need a store scan.
const pinLabelsIndexKey = "nfhttp-cache-pin-labels"

func (c *Cache) pinFPKey(fp string) string       { return hashKey("pinfp:" + fp) }
func (c *Cache) pinLabelKey(label string) string { return hashKey("pinlabel:" + label) }

func (c *Cache) stringSet(ctx context.Context, key string) []string {
	raw, ok, err := c.meta.Get(ctx, key)
	if err != nil || !ok {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func (c *Cache) setStringSet(ctx context.Context, key string, values []string) {
	if len(values) == 0 {
		_ = c.meta.Delete(ctx, key)
		return
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return
	}
	if err := c.meta.Set(ctx, key, raw); err != nil {
		c.logger().Warn("failed to persist pin index", "key", key, "error", err)
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func removeString(values []string, target string) []string {
	out := values[:0]
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

// Pin implements nfhttp.Capability: it marks request's cache entry so Prune
// never evicts it while label remains attached.
func (c *Cache) Pin(request *nfhttp.Request, label string) error {
	ctx := context.Background()
	fp := request.Fingerprint()

	unlock := c.locker.lock(fp)
	defer unlock()

	labels := c.stringSet(ctx, c.pinFPKey(fp))
	if !containsString(labels, label) {
		c.setStringSet(ctx, c.pinFPKey(fp), append(labels, label))
	}

	fps := c.stringSet(ctx, c.pinLabelKey(label))
	if !containsString(fps, fp) {
		c.setStringSet(ctx, c.pinLabelKey(label), append(fps, fp))
	}

	c.addKnownLabel(ctx, label)
	return nil
}

// Unpin implements nfhttp.Capability.
func (c *Cache) Unpin(request *nfhttp.Request, label string) error {
	ctx := context.Background()
	fp := request.Fingerprint()

	unlock := c.locker.lock(fp)
	labels := removeString(c.stringSet(ctx, c.pinFPKey(fp)), label)
	c.setStringSet(ctx, c.pinFPKey(fp), labels)
	unlock()

	fps := removeString(c.stringSet(ctx, c.pinLabelKey(label)), fp)
	c.setStringSet(ctx, c.pinLabelKey(label), fps)
	if len(fps) == 0 {
		c.removeKnownLabel(ctx, label)
	}
	return nil
}

// RemovePinned implements nfhttp.Capability: every entry pinned under label
// loses that label, and label itself is forgotten once unused.
func (c *Cache) RemovePinned(label string) error {
	ctx := context.Background()
	fps := c.stringSet(ctx, c.pinLabelKey(label))

	for _, fp := range fps {
		unlock := c.locker.lock(fp)
		labels := removeString(c.stringSet(ctx, c.pinFPKey(fp)), label)
		c.setStringSet(ctx, c.pinFPKey(fp), labels)
		unlock()
	}

	_ = c.meta.Delete(ctx, c.pinLabelKey(label))
	c.removeKnownLabel(ctx, label)
	return nil
}

// PinnedFor implements nfhttp.Capability: the labels currently pinning
// request's cache entry.
func (c *Cache) PinnedFor(request *nfhttp.Request) ([]string, error) {
	return c.stringSet(context.Background(), c.pinFPKey(request.Fingerprint())), nil
}

// PinLabels implements nfhttp.Capability: every label currently in use.
func (c *Cache) PinLabels() ([]string, error) {
	return c.stringSet(context.Background(), pinLabelsIndexKey), nil
}

func (c *Cache) addKnownLabel(ctx context.Context, label string) {
	labels := c.stringSet(ctx, pinLabelsIndexKey)
	if !containsString(labels, label) {
		c.setStringSet(ctx, pinLabelsIndexKey, append(labels, label))
	}
}

func (c *Cache) removeKnownLabel(ctx context.Context, label string) {
	labels := removeString(c.stringSet(ctx, pinLabelsIndexKey), label)
	c.setStringSet(ctx, pinLabelsIndexKey, labels)
}

func (c *Cache) pinnedFingerprintSet(ctx context.Context) map[string]bool {
	set := make(map[string]bool)
	for _, label := range c.stringSet(ctx, pinLabelsIndexKey) {
		for _, fp := range c.stringSet(ctx, c.pinLabelKey(label)) {
			set[fp] = true
		}
	}
	return set
}

// MaterializeLabel returns the full cached Response (headers and body) for
// every fingerprint pinned under label, matching the reference behavior of
// pinnedFor(label, cb). PinnedFor on the Capability interface instead
// returns only the label set for a request, keeping every pipeline layer's
// interface uniform; this richer accessor lives on Cache specifically.
func (c *Cache) MaterializeLabel(ctx context.Context, label string) []*nfhttp.Response {
	var responses []*nfhttp.Response
	for _, fp := range c.stringSet(ctx, c.pinLabelKey(label)) {
		ent, body, ok := c.load(ctx, fp)
		if !ok {
			continue
		}
		req, err := nfhttp.NewRequest(nfhttp.Method(ent.RequestMethod), ent.RequestURL, make(http.Header), nil)
		if err != nil {
			continue
		}
		responses = append(responses, nfhttp.NewResponse(req, ent.Status, ent.Header.Clone(), body))
	}
	return responses
}
