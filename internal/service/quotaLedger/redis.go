package quotaLedger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Each account is a hash with "used" and "limit" fields. The scripts run
// atomically inside Redis, so concurrent reservations from any number of
// service instances cannot over-admit.
var (
	reserveScript = redis.NewScript(`
local used = tonumber(redis.call('HGET', KEYS[1], 'used'))
local limit = tonumber(redis.call('HGET', KEYS[1], 'limit'))
if used == nil or limit == nil then
  return -1
end
local size = tonumber(ARGV[1])
if used + size > limit then
  return 0
end
redis.call('HINCRBY', KEYS[1], 'used', ARGV[1])
return 1
`)

	releaseScript = redis.NewScript(`
local used = tonumber(redis.call('HGET', KEYS[1], 'used'))
if used == nil then
  return -1
end
if used <= tonumber(ARGV[1]) then
  redis.call('HSET', KEYS[1], 'used', 0)
else
  redis.call('HINCRBY', KEYS[1], 'used', ARGV[2])
end
return 1
`)

	setLimitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
redis.call('HSET', KEYS[1], 'limit', ARGV[1])
return 1
`)
)

type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

func (r *Redis) buildKey(accountID uuid.UUID) string {
	return fmt.Sprintf("quota:%s", accountID)
}

func (r *Redis) Open(ctx context.Context, accountID uuid.UUID, limit, used int64) error {
	if err := checkSize(limit); err != nil {
		return err
	}
	if err := checkSize(used); err != nil {
		return err
	}
	return r.Client.HSet(ctx, r.buildKey(accountID), "used", used, "limit", limit).Err()
}

func (r *Redis) Reserve(ctx context.Context, accountID uuid.UUID, size int64) error {
	if err := checkSize(size); err != nil {
		return err
	}
	res, err := reserveScript.Run(ctx, r.Client, []string{r.buildKey(accountID)}, size).Int()
	if err != nil {
		return fmt.Errorf("reserve quota: %w", err)
	}
	switch res {
	case -1:
		return unknownAccount(accountID)
	case 0:
		return quotaExceeded(accountID, size)
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, accountID uuid.UUID, size int64) error {
	if err := checkSize(size); err != nil {
		return err
	}
	res, err := releaseScript.Run(ctx, r.Client, []string{r.buildKey(accountID)}, size, -size).Int()
	if err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	if res == -1 {
		return unknownAccount(accountID)
	}
	return nil
}

func (r *Redis) Usage(ctx context.Context, accountID uuid.UUID) (Usage, error) {
	vals, err := r.Client.HMGet(ctx, r.buildKey(accountID), "used", "limit").Result()
	if err != nil {
		return Usage{}, fmt.Errorf("read quota: %w", err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Usage{}, unknownAccount(accountID)
	}
	used, err := strconv.ParseInt(fmt.Sprint(vals[0]), 10, 64)
	if err != nil {
		return Usage{}, fmt.Errorf("parse used bytes: %w", err)
	}
	limit, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return Usage{}, fmt.Errorf("parse quota limit: %w", err)
	}
	return Usage{BytesUsed: used, QuotaLimit: limit}, nil
}

func (r *Redis) SetLimit(ctx context.Context, accountID uuid.UUID, limit int64) error {
	if err := checkSize(limit); err != nil {
		return err
	}
	res, err := setLimitScript.Run(ctx, r.Client, []string{r.buildKey(accountID)}, limit).Int()
	if err != nil {
		return fmt.Errorf("set quota limit: %w", err)
	}
	if res == -1 {
		return unknownAccount(accountID)
	}
	return nil
}

func (r *Redis) Close(ctx context.Context, accountID uuid.UUID) error {
	err := r.Client.Del(ctx, r.buildKey(accountID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
