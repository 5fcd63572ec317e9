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
	"sync"
)

// DummyStore is an in-memory store for testing and dry runs.
type DummyStore struct {
	mu      sync.Mutex
	data    map[string]Result
	Inserts int
}

func (ds *DummyStore) LookupSourceNumber(ctx context.Context, numeral string) (string, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	rec, ok := ds.data[numeral]
	if !ok {
		return "", ErrRecordNotFound
	}
	return rec.Result, nil
}

func (ds *DummyStore) InsertResult(ctx context.Context, rec Result) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.Inserts++
	if _, ok := ds.data[rec.SourceNumber]; !ok {
		ds.data[rec.SourceNumber] = rec
	}
	return nil
}

func (ds *DummyStore) CountResults(ctx context.Context) (int64, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return int64(len(ds.data)), nil
}

func (ds *DummyStore) ForEachSourceNumber(ctx context.Context, fn func(numeral string) error) error {
	ds.mu.Lock()
	keys := make([]string, 0, len(ds.data))
	for k := range ds.data {
		keys = append(keys, k)
	}
	ds.mu.Unlock()
	for _, k := range keys {
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (ds *DummyStore) Close() error {
	return nil
}

func NewDummyStore() *DummyStore {
	return &DummyStore{data: make(map[string]Result)}
}
