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
	"fmt"

	"github.com/rs/zerolog/log"
)

// abbreviate shortens long numerals for logging.
func abbreviate(numeral string) string {
	if len(numeral) <= 24 {
		return numeral
	}
	return fmt.Sprintf("%s...%s(%d)", numeral[:10], numeral[len(numeral)-10:], len(numeral))
}

// NewStore creates a result store according to the configuration.
// The chain is: Redis (if cache is not nil) -> known numerals
// filter (optional) -> configured database backend. The filter guards
// only the local backend so values shared through Redis are never hidden.
func NewStore(ctx context.Context, conf *Conf, cache KeyValueCache) (ResultStore, error) {
	var ans ResultStore
	var scannable ScannableStore
	switch conf.Backend {
	case BackendSQLite:
		store, err := NewSQLiteStore(ctx, conf.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create result store: %w", err)
		}
		ans = store
		scannable = store
	case BackendMySQL:
		store, err := NewMySQLStore(conf.MySQL)
		if err != nil {
			return nil, fmt.Errorf("failed to create result store: %w", err)
		}
		ans = store
	case BackendDummy:
		store := NewDummyStore()
		ans = store
		scannable = store
	default:
		return nil, fmt.Errorf("failed to create result store: unknown backend %s", conf.Backend)
	}
	log.Info().Str("backend", conf.Backend).Msg("initialized result store")

	if conf.KnownFilterStatePath != "" {
		if scannable == nil {
			ans.Close()
			return nil, fmt.Errorf(
				"failed to create result store: known filter cannot be used with backend %s", conf.Backend)
		}
		ks, err := NewKnownFilterStore(scannable, conf.KnownFilterStatePath)
		if err != nil {
			ans.Close()
			return nil, fmt.Errorf("failed to create result store: %w", err)
		}
		if err := ks.Sync(ctx); err != nil {
			log.Error().Err(err).Msg("failed to sync known filter, using the result store without it")

		} else {
			ans = ks
		}
	}

	if cache != nil {
		ans = NewCachedStore(ans, cache, conf.CacheTTL())
		log.Info().Dur("ttl", conf.CacheTTL()).Msg("using Redis as result cache layer")
	}
	return ans, nil
}
