// Package rkv is the KV port: a narrow command surface covering every
// primitive spec §6's Downward interface lists (HSET/HGETALL/HDEL,
// SADD/SREM/SMEMBERS/SISMEMBER/SCARD, ZADD/ZREM/ZRANGEBYSCORE/ZRANGE/
// ZCARD, GET/SET with NX+PX, DEL with value check). internal/store and
// internal/lock depend only on this interface, never on a concrete Redis
// client, so tests run against internal/rkv/fake instead of a live server.
package rkv

import (
	"context"
	"time"
)

// ScoredMember is one member of a sorted-set range result.
type ScoredMember struct {
	Member string
	Score  float64
}

// Client is every KV command the schema/store/lock layers need. All
// methods are context-aware so callers can honor cancellation at KV
// round-trips (spec §5).
type Client interface {
	// Hash
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HDel(ctx context.Context, key string, fields ...string) error

	// Unordered set
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SCard(ctx context.Context, key string) (int64, error)

	// Sorted set
	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRem(ctx context.Context, key string, members ...string) error
	// ZRangeByScore returns members with score <= max, ascending by score.
	ZRangeByScore(ctx context.Context, key string, max float64) ([]ScoredMember, error)
	ZRange(ctx context.Context, key string) ([]ScoredMember, error)
	ZCard(ctx context.Context, key string) (int64, error)
	ZScore(ctx context.Context, key, member string) (float64, bool, error)

	// String / mutex primitives
	Get(ctx context.Context, key string) (string, bool, error)
	// Set unconditionally stores key=value with no expiry (used for
	// calendar payloads, spec §4.1's "calendar" string key).
	Set(ctx context.Context, key, value string) error
	// SetNX sets key=value with a TTL only if key is absent, returning
	// whether it was set.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// DelIfMatch deletes key only if its current value equals expected,
	// atomically (spec §4.3's "atomic check-and-delete").
	DelIfMatch(ctx context.Context, key, expected string) (bool, error)
	Del(ctx context.Context, keys ...string) error

	// Close releases underlying connections.
	Close() error
}
