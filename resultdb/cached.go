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

package resultdb

import (
	"context"
	"errors"
	"time"

	"nearprime/redisdb"

	"github.com/rs/zerolog/log"
)

// KeyValueCache is a subset of redisdb.RedisAdapter used by CachedStore.
type KeyValueCache interface {
	MkKey(parts ...string) string
	Get(ctx context.Context, k string) (string, error)
	Set(ctx context.Context, k string, v any, ttl time.Duration) error
}

// CachedStore is a read-through/write-through Redis layer over
// another store. Redis failures are logged and the wrapped store
// is used instead.
type CachedStore struct {
	backend ResultStore
	cache   KeyValueCache
	ttl     time.Duration
}

func (cs *CachedStore) key(numeral string) string {
	return cs.cache.MkKey("result", numeral)
}

func (cs *CachedStore) LookupSourceNumber(ctx context.Context, numeral string) (string, error) {
	ans, err := cs.cache.Get(ctx, cs.key(numeral))
	if err == nil {
		storeLookups.WithLabelValues("redis", "hit").Inc()
		return ans, nil
	}
	if !errors.Is(err, redisdb.ErrKeyNotFound) {
		log.Warn().Err(err).Msg("failed to look up result in Redis, using the database")
	}
	storeLookups.WithLabelValues("redis", "miss").Inc()
	ans, err = cs.backend.LookupSourceNumber(ctx, numeral)
	if err != nil {
		return ans, err
	}
	if err := cs.cache.Set(ctx, cs.key(numeral), ans, cs.ttl); err != nil {
		log.Warn().Err(err).Msg("failed to store result to Redis")
	}
	return ans, nil
}

func (cs *CachedStore) InsertResult(ctx context.Context, rec Result) error {
	if err := cs.backend.InsertResult(ctx, rec); err != nil {
		return err
	}
	if err := cs.cache.Set(ctx, cs.key(rec.SourceNumber), rec.Result, cs.ttl); err != nil {
		log.Warn().Err(err).Msg("failed to store result to Redis")
	}
	return nil
}

func (cs *CachedStore) Close() error {
	return cs.backend.Close()
}

func NewCachedStore(backend ResultStore, cache KeyValueCache, ttl time.Duration) *CachedStore {
	return &CachedStore{
		backend: backend,
		cache:   cache,
		ttl:     ttl,
	}
}
