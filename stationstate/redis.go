package stationstate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore caches machine occupancy in Redis.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Connect dials Redis and verifies it answers. Callers treat an error as
// "run without cache".
func Connect(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisStore(client), nil
}

func operatorsKey(machine string) string {
	return fmt.Sprintf("fpiff:machine:%s:operators", machine)
}

func countKey(machine string) string {
	return fmt.Sprintf("fpiff:machine:%s:count", machine)
}

const allMachinesKey = "fpiff:machines"

// SetMachine replaces the cached team of a machine.
func (r *RedisStore) SetMachine(ctx context.Context, machine string, ops []Operator) error {
	data, err := json.Marshal(ops)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, operatorsKey(machine), data, 0)
	pipe.Set(ctx, countKey(machine), len(ops), 0)
	pipe.SAdd(ctx, allMachinesKey, machine)
	_, err = pipe.Exec(ctx)
	return err
}

// GetMachine returns the cached team. A cache miss returns nil, false.
func (r *RedisStore) GetMachine(ctx context.Context, machine string) ([]Operator, bool, error) {
	data, err := r.client.Get(ctx, operatorsKey(machine)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ops []Operator
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, false, err
	}
	return ops, true, nil
}

func (r *RedisStore) GetAllMachines(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, allMachinesKey).Result()
}

func (r *RedisStore) RemoveMachine(ctx context.Context, machine string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, operatorsKey(machine), countKey(machine))
	pipe.SRem(ctx, allMachinesKey, machine)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) FlushAll(ctx context.Context) error {
	machines, err := r.GetAllMachines(ctx)
	if err != nil {
		return err
	}
	for _, m := range machines {
		r.RemoveMachine(ctx, m)
	}
	return r.client.Del(ctx, allMachinesKey).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
