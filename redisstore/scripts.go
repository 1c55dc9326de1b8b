package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Servers before 2.6.12 have no SET ... NX EX, so the set and the expiry
// are combined in one script to stay atomic.
var atomicSet = redis.NewScript(`
local key = KEYS[1]
local value = ARGV[1]
local seconds = tonumber(ARGV[2])

if (redis.call('SETNX', key, value) == 0) then
  return 0
end
if (seconds > 0) then
  redis.call('EXPIRE', key, seconds)
end
return 1
`)

var atomicExpire = redis.NewScript(`
local key = KEYS[1]
local value = ARGV[1]
local ms = ARGV[2]

if (value == redis.call('GET', key)) then
  redis.call('PEXPIRE', key, ms)
  return 1
else
  return 0
end
`)

var atomicDelete = redis.NewScript(`
local key = KEYS[1]
local value = ARGV[1]

if (redis.call('GET', key) == value) then
  redis.call('DEL', key)
  return 1
else
  return 0
end
`)

func registerScripts(ctx context.Context, r redis.Scripter) error {
	if err := atomicSet.Load(ctx, r).Err(); err != nil {
		return err
	}
	if err := atomicExpire.Load(ctx, r).Err(); err != nil {
		return err
	}
	if err := atomicDelete.Load(ctx, r).Err(); err != nil {
		return err
	}
	return nil
}

func scriptStatus(v interface{}) bool {
	if i, ok := v.(int64); ok {
		return i == 1
	}
	return false
}

func doAtomicSet(ctx context.Context, r redis.Scripter, key, value string, ttl time.Duration) (bool, error) {
	seconds := int64(0)
	if ttl > 0 {
		seconds = int64(ttl / time.Second)
		if seconds == 0 {
			seconds = 1
		}
	}
	v, err := atomicSet.Run(ctx, r, []string{key}, value, seconds).Result()
	if err != nil {
		return false, err
	}
	return scriptStatus(v), nil
}

func doAtomicDelete(ctx context.Context, r redis.Scripter, key, value string) (bool, error) {
	v, err := atomicDelete.Run(ctx, r, []string{key}, value).Result()
	if err != nil {
		return false, err
	}
	return scriptStatus(v), nil
}

func doAtomicExpire(ctx context.Context, r redis.Scripter, key, value string, ttl time.Duration) (bool, error) {
	v, err := atomicExpire.Run(ctx, r, []string{key}, value, ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	return scriptStatus(v), nil
}
