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
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom"
	"github.com/czcorpus/cnc-gokit/fs"
	"github.com/rs/zerolog/log"
)

const (
	bloomFilterMinItems      = 1000000
	bloomFilterProbCollision = 0.01
	knownFilterCloseTimeout  = 10 * time.Second

	// unknownCount marks a stored state which must not be trusted
	unknownCount int64 = -1
)

// KnownFilterStore keeps track of all numerals stored in the wrapped store
// using a Bloom filter. Lookups of numerals the filter has never seen
// are answered with ErrRecordNotFound without touching the database.
//
// The filter must cover every stored record, so the wrapped store must
// be owned by this process (all inserts go through the filter) and Sync
// must succeed before the first lookup. The state is written to disk
// on Close along with the number of stored records and on start it is
// reused only if the number still matches. Records are never deleted.
type KnownFilterStore struct {
	backend         ScannableStore
	mu              sync.RWMutex
	items           *bloom.BloomFilter
	storedCount     int64
	storageFilePath string
}

func (ks *KnownFilterStore) StoreToDisk(count int64) error {
	f, err := os.OpenFile(ks.storageFilePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to store known filter state to disk: %w", err)
	}
	defer f.Close()
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if err := binary.Write(f, binary.BigEndian, count); err != nil {
		return fmt.Errorf("failed to store known filter state to disk: %w", err)
	}
	if _, err := ks.items.WriteTo(f); err != nil {
		return fmt.Errorf("failed to store known filter state to disk: %w", err)
	}
	return nil
}

func (ks *KnownFilterStore) LoadFromDisk() error {
	f, err := os.Open(ks.storageFilePath)
	if err != nil {
		return fmt.Errorf("failed to load known filter state from disk: %w", err)
	}
	defer f.Close()
	ks.mu.Lock()
	defer ks.mu.Unlock()
	var count int64
	if err := binary.Read(f, binary.BigEndian, &count); err != nil {
		return fmt.Errorf("failed to load known filter state from disk: %w", err)
	}
	items := &bloom.BloomFilter{}
	if _, err := items.ReadFrom(f); err != nil {
		return fmt.Errorf("failed to load known filter state from disk: %w", err)
	}
	ks.items = items
	ks.storedCount = count
	return nil
}

func (ks *KnownFilterStore) add(numeral string) {
	ks.mu.Lock()
	ks.items.AddString(numeral)
	ks.mu.Unlock()
}

func (ks *KnownFilterStore) test(numeral string) bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.items.TestString(numeral)
}

// reset replaces the filter with an empty one sized for expectedItems
func (ks *KnownFilterStore) reset(expectedItems int64) {
	capacity := uint(max(bloomFilterMinItems, 2*expectedItems))
	ks.mu.Lock()
	ks.items = bloom.NewWithEstimates(capacity, bloomFilterProbCollision)
	ks.storedCount = unknownCount
	ks.mu.Unlock()
}

// Sync makes sure the filter covers all the records of the wrapped store.
// A state loaded from disk is kept only if it has been stored with the
// same number of records the store contains now. Otherwise the filter
// is rebuilt from all the stored numerals.
func (ks *KnownFilterStore) Sync(ctx context.Context) error {
	count, err := ks.backend.CountResults(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync known filter: %w", err)
	}
	if ks.storedCount == count {
		log.Info().Int64("numItems", count).Msg("known filter state is up to date")
		return nil
	}
	log.Warn().
		Int64("numItems", count).
		Int64("stateNumItems", ks.storedCount).
		Msg("known filter state does not match the result store, rebuilding")
	ks.reset(count)
	var numAdded int64
	err = ks.backend.ForEachSourceNumber(ctx, func(numeral string) error {
		ks.add(numeral)
		numAdded++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sync known filter: %w", err)
	}
	log.Info().Int64("numItems", numAdded).Msg("known filter rebuilt")
	return nil
}

func (ks *KnownFilterStore) LookupSourceNumber(ctx context.Context, numeral string) (string, error) {
	if !ks.test(numeral) {
		storeLookups.WithLabelValues("knownFilter", "miss").Inc()
		return "", ErrRecordNotFound
	}
	ans, err := ks.backend.LookupSourceNumber(ctx, numeral)
	if errors.Is(err, ErrRecordNotFound) {
		log.Debug().
			Str("sourceNumber", abbreviate(numeral)).
			Msg("possible Bloom filter false positive")
	}
	return ans, err
}

func (ks *KnownFilterStore) InsertResult(ctx context.Context, rec Result) error {
	if err := ks.backend.InsertResult(ctx, rec); err != nil {
		return err
	}
	ks.add(rec.SourceNumber)
	return nil
}

// Close stores the filter state and closes the wrapped store.
func (ks *KnownFilterStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), knownFilterCloseTimeout)
	defer cancel()
	count, err := ks.backend.CountResults(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to count results, known filter state will be rebuilt on next start")
		count = unknownCount
	}
	err = ks.StoreToDisk(count)
	if err2 := ks.backend.Close(); err2 != nil && err == nil {
		err = err2
	}
	return err
}

// NewKnownFilterStore creates the filter and loads its previous state
// if available. An unreadable state is ignored. Sync must be called
// before the store is used.
func NewKnownFilterStore(backend ScannableStore, stateFilePath string) (*KnownFilterStore, error) {
	ks := &KnownFilterStore{
		backend:         backend,
		items:           bloom.NewWithEstimates(bloomFilterMinItems, bloomFilterProbCollision),
		storedCount:     unknownCount,
		storageFilePath: stateFilePath,
	}
	isf, err := fs.IsFile(stateFilePath)
	if err != nil {
		return ks, fmt.Errorf("failed to init KnownFilterStore: %w", err)
	}
	if isf {
		if err := ks.LoadFromDisk(); err != nil {
			log.Warn().Err(err).Str("file", stateFilePath).Msg("ignoring unreadable known filter state")
			ks.reset(0)

		} else {
			log.Info().Str("file", stateFilePath).Msg("loaded previously stored known filter state")
		}
	}
	return ks, nil
}
