package cache

import "context"

// metaKey namespaces and hashes a fingerprint for the metadata store.
func (c *Cache) metaKey(fp string) string { return hashKey("meta:" + fp) }

// blobKeyFor namespaces and hashes a fingerprint for the blob store.
func (c *Cache) blobKeyFor(fp string) string { return hashKey("blob:" + fp) }

// load returns the entry and body stored for fp. Per the crash-consistency
// rule, metadata present with a missing blob is treated as a miss.
func (c *Cache) load(ctx context.Context, fp string) (*entry, []byte, bool) {
	raw, ok, err := c.meta.Get(ctx, c.metaKey(fp))
	if err != nil {
		c.logger().Warn("cache metadata lookup failed", "fingerprint", fp, "error", err)
		return nil, nil, false
	}
	if !ok {
		return nil, nil, false
	}

	ent, err := c.decodeEntry(raw)
	if err != nil {
		c.logger().Warn("failed to decode cache metadata", "fingerprint", fp, "error", err)
		return nil, nil, false
	}

	body, ok, err := c.blobs.Get(ctx, c.blobKeyFor(fp))
	if err != nil {
		c.logger().Warn("cache blob lookup failed", "fingerprint", fp, "error", err)
		return nil, nil, false
	}
	if !ok {
		return nil, nil, false
	}

	return ent, body, true
}

func (c *Cache) decodeEntry(raw []byte) (*entry, error) {
	if c.config.Encryption != nil {
		plain, err := decrypt(c.config.Encryption.gcm, raw)
		if err != nil {
			return nil, err
		}
		raw = plain
	}
	return deserializeEntry(raw)
}

func (c *Cache) encodeEntry(ent *entry) ([]byte, error) {
	raw, err := ent.serialize()
	if err != nil {
		return nil, err
	}
	if c.config.Encryption != nil {
		return encrypt(c.config.Encryption.gcm, raw)
	}
	return raw, nil
}

// persist writes both the body and the metadata record for fp, and updates
// the prune index.
func (c *Cache) persist(ctx context.Context, fp string, ent *entry, body []byte) error {
	if err := c.blobs.Set(ctx, c.blobKeyFor(fp), body); err != nil {
		return err
	}
	return c.persistMeta(ctx, fp, ent)
}

// persistMeta writes only the metadata record, for callers (touch, 304
// merge) that don't need to rewrite the body.
func (c *Cache) persistMeta(ctx context.Context, fp string, ent *entry) error {
	raw, err := c.encodeEntry(ent)
	if err != nil {
		return err
	}
	if err := c.meta.Set(ctx, c.metaKey(fp), raw); err != nil {
		return err
	}
	c.indexPut(ctx, fp, c.entryExpiry(ent), ent.LastAccessed, ent.PayloadSize)
	return nil
}

// delete removes fp's metadata, blob, and index record.
func (c *Cache) delete(ctx context.Context, fp string) error {
	if err := c.meta.Delete(ctx, c.metaKey(fp)); err != nil {
		return err
	}
	if err := c.blobs.Delete(ctx, c.blobKeyFor(fp)); err != nil {
		return err
	}
	c.indexRemove(ctx, fp)
	return nil
}
