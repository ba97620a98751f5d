package rkv

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// delIfMatchScript performs spec §4.3's "atomic check-and-delete": delete
// the key only if its value still equals the caller's token. It is the
// release half of the mutex and is also reused nowhere else; one script,
// cached by go-redis on first EVALSHA.
var delIfMatchScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// RedisClient adapts github.com/redis/go-redis/v9 to the Client port. It
// wraps redis.UniversalClient the way the teacher's BoltDBClient wraps
// *bbolt.DB: one small struct, every method a thin, error-wrapped
// forwarding call (database/boltdb.go).
type RedisClient struct {
	rdb redis.UniversalClient
}

// NewRedisClient builds a Client backed by a single-node or cluster
// go-redis connection. Connection establishment itself — address
// resolution, TLS, auth — is spec's out-of-scope external collaborator;
// callers construct rdb and hand it in already connected.
func NewRedisClient(rdb redis.UniversalClient) *RedisClient {
	return &RedisClient{rdb: rdb}
}

func (c *RedisClient) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return errors.Wrap(c.rdb.HSet(ctx, key, args...).Err(), "rkv: hset")
}

func (c *RedisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := c.rdb.HGetAll(ctx, key).Result()
	return m, errors.Wrap(err, "rkv: hgetall")
}

func (c *RedisClient) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := c.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	return v, err == nil, errors.Wrap(err, "rkv: hget")
}

func (c *RedisClient) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return errors.Wrap(c.rdb.HDel(ctx, key, fields...).Err(), "rkv: hdel")
}

func (c *RedisClient) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return errors.Wrap(c.rdb.SAdd(ctx, key, args...).Err(), "rkv: sadd")
}

func (c *RedisClient) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return errors.Wrap(c.rdb.SRem(ctx, key, args...).Err(), "rkv: srem")
}

func (c *RedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	m, err := c.rdb.SMembers(ctx, key).Result()
	return m, errors.Wrap(err, "rkv: smembers")
}

func (c *RedisClient) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := c.rdb.SIsMember(ctx, key, member).Result()
	return ok, errors.Wrap(err, "rkv: sismember")
}

func (c *RedisClient) SCard(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.SCard(ctx, key).Result()
	return n, errors.Wrap(err, "rkv: scard")
}

func (c *RedisClient) ZAdd(ctx context.Context, key, member string, score float64) error {
	return errors.Wrap(c.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(), "rkv: zadd")
}

func (c *RedisClient) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return errors.Wrap(c.rdb.ZRem(ctx, key, args...).Err(), "rkv: zrem")
}

func (c *RedisClient) ZRangeByScore(ctx context.Context, key string, max float64) ([]ScoredMember, error) {
	res, err := c.rdb.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", max),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "rkv: zrangebyscore")
	}
	return toScoredMembers(res), nil
}

func (c *RedisClient) ZRange(ctx context.Context, key string) ([]ScoredMember, error) {
	res, err := c.rdb.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "rkv: zrange")
	}
	return toScoredMembers(res), nil
}

func (c *RedisClient) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.ZCard(ctx, key).Result()
	return n, errors.Wrap(err, "rkv: zcard")
}

func (c *RedisClient) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	score, err := c.rdb.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	return score, err == nil, errors.Wrap(err, "rkv: zscore")
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	return v, err == nil, errors.Wrap(err, "rkv: get")
}

func (c *RedisClient) Set(ctx context.Context, key, value string) error {
	return errors.Wrap(c.rdb.Set(ctx, key, value, 0).Err(), "rkv: set")
}

func (c *RedisClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	return ok, errors.Wrap(err, "rkv: setnx")
}

func (c *RedisClient) DelIfMatch(ctx context.Context, key, expected string) (bool, error) {
	res, err := delIfMatchScript.Run(ctx, c.rdb, []string{key}, expected).Result()
	if err != nil {
		return false, errors.Wrap(err, "rkv: delifmatch")
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (c *RedisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(c.rdb.Del(ctx, keys...).Err(), "rkv: del")
}

func (c *RedisClient) Close() error {
	return errors.Wrap(c.rdb.Close(), "rkv: close")
}

func toScoredMembers(zs []redis.Z) []ScoredMember {
	out := make([]ScoredMember, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		out[i] = ScoredMember{Member: member, Score: z.Score}
	}
	return out
}
