package redis

import (
	"context"
	"time"
)

// releaseScript deletes the lease only while it still carries the caller's token.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0`

// AcquireLease claims key for ttl on behalf of token.
func (c *Client) AcquireLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, key, token, ttl)
}

// ReleaseLease frees key if token still owns it. It reports whether a delete happened.
func (c *Client) ReleaseLease(ctx context.Context, key, token string) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	n, err := c.store.Eval(ctx, releaseScript, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
