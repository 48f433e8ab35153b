package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis backs the KV contract for multi-instance deployments.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed getting key %s", key)
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed setnx on key %s", key)
	}
	return ok, nil
}

var casScript = redis.NewScript(`
	local current = redis.call("GET", KEYS[1])
	if not current then
		return -1
	end
	if current ~= ARGV[1] then
		return 0
	end
	if tonumber(ARGV[3]) > 0 then
		redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	else
		redis.call("SET", KEYS[1], ARGV[2])
	end
	return 1
`)

func (r *Redis) CompareAndSwap(ctx context.Context, key string, old, new []byte, ttl time.Duration) (bool, error) {
	res, err := casScript.Run(ctx, r.client, []string{key},
		string(old), string(new), ttl.Milliseconds()).Int()
	if err != nil {
		return false, errors.Wrapf(err, "failed cas on key %s", key)
	}
	switch res {
	case -1:
		return false, ErrNotFound
	case 0:
		return false, nil
	}
	return true, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed scanning prefix %s", prefix)
	}
	return out, nil
}
