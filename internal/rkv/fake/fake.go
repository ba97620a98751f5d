// Package fake provides an in-memory stand-in for a real Redis server,
// implementing the same rkv.Client surface internal/store and
// internal/lock depend on. It plays the role the teacher's temp-dir
// BoltDB file plays for BoltDBClient tests — a real, if small,
// implementation rather than a mock of individual calls — except here no
// external process is available to point tests at, so the fake
// reimplements hash/set/sorted-set/string semantics directly.
package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kvscheduler/quartzredis/internal/rkv"
)

type entry struct {
	expiresAt time.Time // zero means no expiry
}

// Client is a single-process, mutex-guarded fake KV store.
type Client struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	zsets   map[string]map[string]float64
	strings map[string]string
	expiry  map[string]time.Time
	now     func() time.Time
}

// New constructs an empty fake client.
func New() *Client {
	return &Client{
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
		zsets:   make(map[string]map[string]float64),
		strings: make(map[string]string),
		expiry:  make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock overrides the time source SetNX/expiry checks use, for
// deterministic TTL tests.
func (c *Client) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Client) expired(key string) bool {
	exp, ok := c.expiry[key]
	return ok && !exp.IsZero() && !c.now().Before(exp)
}

func (c *Client) evictIfExpired(key string) {
	if c.expired(key) {
		delete(c.strings, key)
		delete(c.expiry, key)
	}
}

func (c *Client) HSet(_ context.Context, key string, fields map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hashes[key]
	if !ok {
		h = make(map[string]string)
		c.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (c *Client) HGetAll(_ context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string)
	for k, v := range c.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (c *Client) HGet(_ context.Context, key, field string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (c *Client) HDel(_ context.Context, key string, fields ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hashes[key]
	if !ok {
		return nil
	}
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(c.hashes, key)
	}
	return nil
}

func (c *Client) SAdd(_ context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sets[key]
	if !ok {
		s = make(map[string]struct{})
		c.sets[key] = s
	}
	for _, m := range members {
		s[m] = struct{}{}
	}
	return nil
}

func (c *Client) SRem(_ context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(s, m)
	}
	if len(s) == 0 {
		delete(c.sets, key)
	}
	return nil
}

func (c *Client) SMembers(_ context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sets[key]))
	for m := range c.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Client) SIsMember(_ context.Context, key, member string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sets[key][member]
	return ok, nil
}

func (c *Client) SCard(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.sets[key])), nil
}

func (c *Client) ZAdd(_ context.Context, key, member string, score float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	z, ok := c.zsets[key]
	if !ok {
		z = make(map[string]float64)
		c.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (c *Client) ZRem(_ context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	z, ok := c.zsets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(z, m)
	}
	if len(z) == 0 {
		delete(c.zsets, key)
	}
	return nil
}

func (c *Client) ZRangeByScore(_ context.Context, key string, max float64) ([]rkv.ScoredMember, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []rkv.ScoredMember
	for m, score := range c.zsets[key] {
		if score <= max {
			out = append(out, rkv.ScoredMember{Member: m, Score: score})
		}
	}
	sortScored(out)
	return out, nil
}

func (c *Client) ZRange(_ context.Context, key string) ([]rkv.ScoredMember, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]rkv.ScoredMember, 0, len(c.zsets[key]))
	for m, score := range c.zsets[key] {
		out = append(out, rkv.ScoredMember{Member: m, Score: score})
	}
	sortScored(out)
	return out, nil
}

func (c *Client) ZCard(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.zsets[key])), nil
}

func (c *Client) ZScore(_ context.Context, key, member string) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	score, ok := c.zsets[key][member]
	return score, ok, nil
}

func (c *Client) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictIfExpired(key)
	v, ok := c.strings[key]
	return v, ok, nil
}

func (c *Client) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strings[key] = value
	c.expiry[key] = time.Time{}
	return nil
}

func (c *Client) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictIfExpired(key)
	if _, ok := c.strings[key]; ok {
		return false, nil
	}
	c.strings[key] = value
	if ttl > 0 {
		c.expiry[key] = c.now().Add(ttl)
	} else {
		c.expiry[key] = time.Time{}
	}
	return true, nil
}

func (c *Client) DelIfMatch(_ context.Context, key, expected string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictIfExpired(key)
	if v, ok := c.strings[key]; ok && v == expected {
		delete(c.strings, key)
		delete(c.expiry, key)
		return true, nil
	}
	return false, nil
}

func (c *Client) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.strings, key)
		delete(c.expiry, key)
		delete(c.hashes, key)
		delete(c.sets, key)
		delete(c.zsets, key)
	}
	return nil
}

func (c *Client) Close() error { return nil }

func sortScored(s []rkv.ScoredMember) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score < s[j].Score
		}
		return s[i].Member < s[j].Member
	})
}

var _ rkv.Client = (*Client)(nil)
