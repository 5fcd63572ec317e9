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

// Package resultdb provides stores for already computed nearby primes.
// The store is keyed by the canonical source numeral.
package resultdb

import (
	"context"
	"errors"
	"time"
)

const (
	resultsTable = "prime_results"
)

var ErrRecordNotFound = errors.New("record not found")

// Result is a single computed nearby prime.
type Result struct {
	SourceNumber string `json:"sourceNumber"`
	Result       string `json:"result"`

	// Duration of the search in seconds
	Duration float64   `json:"duration"`
	Created  time.Time `json:"created"`
}

// ResultStore is a persistent cache of search results.
// Inserting an already stored source number is not an error;
// the first stored result is kept.
type ResultStore interface {

	// LookupSourceNumber returns a stored prime for the numeral.
	// In case there is no such record, ErrRecordNotFound is returned.
	LookupSourceNumber(ctx context.Context, numeral string) (string, error)

	InsertResult(ctx context.Context, rec Result) error

	Close() error
}

// ScannableStore is a store able to enumerate all the stored numerals.
type ScannableStore interface {
	ResultStore

	CountResults(ctx context.Context) (int64, error)

	// ForEachSourceNumber calls fn for every stored numeral. An error
	// returned by fn stops the iteration and it is returned.
	ForEachSourceNumber(ctx context.Context, fn func(numeral string) error) error
}
