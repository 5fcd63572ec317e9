// Copyright 2024 The nearprime authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package redisdb wraps the Redis client with operations
// needed by the result cache, the publication sink and
// the prefetch queue.
package redisdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrKeyNotFound = errors.New("key not found")

type RedisAdapter struct {
	conf  *RedisConf
	redis redis.UniversalClient
}

func (rd *RedisAdapter) String() string {
	if rd.redis == nil {
		return fmt.Sprintf(
			"RedisAdapter (inactive), address %s:%d, db %d",
			rd.conf.Host, rd.conf.Port, rd.conf.DB,
		)
	}
	return fmt.Sprintf(
		"RedisAdapter (active) address %s:%d, db %d",
		rd.conf.Host, rd.conf.Port, rd.conf.DB,
	)
}

// MkKey creates a key in the application's namespace.
func (rd *RedisAdapter) MkKey(parts ...string) string {
	ans := rd.conf.KeyPrefix
	for _, p := range parts {
		if ans == "" {
			ans = p

		} else {
			ans += ":" + p
		}
	}
	return ans
}

func (rd *RedisAdapter) Ping(ctx context.Context) error {
	if err := rd.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis at %s:%d: %w", rd.conf.Host, rd.conf.Port, err)
	}
	return nil
}

// Get returns a value stored under k. In case there is
// no such key, ErrKeyNotFound is returned.
func (rd *RedisAdapter) Get(ctx context.Context, k string) (string, error) {
	cmd := rd.redis.Get(ctx, k)
	if cmd.Err() == redis.Nil {
		return "", ErrKeyNotFound
	}
	if cmd.Err() != nil {
		return "", fmt.Errorf("failed to get Redis entry %s: %w", k, cmd.Err())
	}
	return cmd.Val(), nil
}

// Set stores v under k. Zero ttl means no expiration.
func (rd *RedisAdapter) Set(ctx context.Context, k string, v any, ttl time.Duration) error {
	cmd := rd.redis.Set(ctx, k, v, ttl)
	if cmd.Err() != nil {
		return fmt.Errorf("failed to set Redis item %s: %w", k, cmd.Err())
	}
	return nil
}

func (rd *RedisAdapter) HSet(ctx context.Context, key, field string, value any) error {
	cmd := rd.redis.HSet(ctx, key, field, value)
	if cmd.Err() != nil {
		return fmt.Errorf("failed to set field %s of hash %s: %w", field, key, cmd.Err())
	}
	return nil
}

// TriggerChan publishes value to a channel chname.
func (rd *RedisAdapter) TriggerChan(ctx context.Context, chname, value string) error {
	if err := rd.redis.Publish(ctx, chname, value).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", chname, err)
	}
	return nil
}

// QueuePush adds items to the end of a Redis list.
func (rd *RedisAdapter) QueuePush(ctx context.Context, queue string, items ...string) error {
	if len(items) == 0 {
		return nil
	}
	values := make([]any, len(items))
	for i, v := range items {
		values[i] = v
	}
	if err := rd.redis.RPush(ctx, queue, values...).Err(); err != nil {
		return fmt.Errorf("failed to push items to queue %s: %w", queue, err)
	}
	return nil
}

func (rd *RedisAdapter) QueueLen(ctx context.Context, queue string) (int, error) {
	cmd := rd.redis.LLen(ctx, queue)
	if cmd.Err() != nil {
		return 0, fmt.Errorf("failed to get length of queue %s: %w", queue, cmd.Err())
	}
	return int(cmd.Val()), nil
}

// NextNItems fetches (and removes) up to n oldest items from a queue
// filled by QueuePush. The items are returned in the order they
// have been added.
func (rd *RedisAdapter) NextNItems(ctx context.Context, queue string, n int64) ([]string, error) {
	ppl := rd.redis.TxPipeline()
	lrangeCmd := ppl.LRange(ctx, queue, 0, n-1)
	ppl.LTrim(ctx, queue, n, -1)
	_, err := ppl.Exec(ctx)
	if err != nil {
		return []string{}, fmt.Errorf("failed to get items from queue: %w", err)
	}
	items, err := lrangeCmd.Result()
	if err != nil {
		return []string{}, fmt.Errorf("failed to get items from queue: %w", err)
	}
	return items, nil
}

func (rd *RedisAdapter) Close() error {
	return rd.redis.Close()
}

func NewRedisAdapter(conf *RedisConf) *RedisAdapter {
	return &RedisAdapter{
		conf: conf,
		redis: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", conf.Host, conf.Port),
			Password: conf.Password,
			DB:       conf.DB,
		}),
	}
}
