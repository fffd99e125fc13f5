package redis

import "strings"

const (
	keyNamespace      = "sf"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	leasePrefix       = "lease"
)

// buildKey joins non-empty parts under the sf: namespace.
func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey(rateLimitPrefix, scope)
}

// LeaseKey names a cluster-wide lease such as the cron lock.
func LeaseKey(name, env string) string {
	if env == "" {
		env = "default"
	}
	return buildKey(leasePrefix, name, env)
}
