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

package publish

import (
	"context"
	"fmt"
)

const (
	primeNumberField = "primeImage.primeNumberString"
)

// HashPublisher is a subset of redisdb.RedisAdapter used by RedisSink.
type HashPublisher interface {
	MkKey(parts ...string) string
	HSet(ctx context.Context, key, field string, value any) error
	TriggerChan(ctx context.Context, chname, value string) error
}

// RedisSink stores publications into Redis hashes (one per post)
// and announces the post ID on a channel.
type RedisSink struct {
	redis      HashPublisher
	collection string
	channel    string
}

func (sink *RedisSink) Publish(ctx context.Context, pub Publication) error {
	key := sink.redis.MkKey(sink.collection, pub.PostID)
	if err := sink.redis.HSet(ctx, key, primeNumberField, pub.PrimeNumberString); err != nil {
		return fmt.Errorf("failed to publish prime for post %s: %w", pub.PostID, err)
	}
	if err := sink.redis.TriggerChan(ctx, sink.channel, pub.PostID); err != nil {
		return fmt.Errorf("failed to announce prime for post %s: %w", pub.PostID, err)
	}
	return nil
}

func NewRedisSink(redis HashPublisher, collection, channel string) *RedisSink {
	return &RedisSink{
		redis:      redis,
		collection: collection,
		channel:    channel,
	}
}
