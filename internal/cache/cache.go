/*
Package cache holds short-lived report results (quick info, overdue
customers) keyed per company.

GROUPS:
  Every entry is written under a group (the company id). Any mutation in
  the company invalidates the whole group, so a report is never served
  across a ledger or stock change.

IMPLEMENTATIONS:
  - Redis: shared between replicas. Group membership is a Redis set.
  - Memory: per-process TTL map for single-node and tests.
*/
package cache

import (
	"context"
	"time"
)

// Cache stores JSON-encodable values.
type Cache interface {
	// Get decodes the entry into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, group, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, group string) error
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	key := "report"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func groupKey(group string) string {
	return "report-group:" + group
}
