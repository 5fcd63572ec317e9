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

package search

import (
	"errors"
	"math/big"
)

var (
	// ErrSearchExhausted means no prime has been found within
	// the search window or the candidate budget. It is an expected
	// outcome, not a fault.
	ErrSearchExhausted = errors.New("search exhausted")

	// ErrInvalidInput is returned for a negative (or missing) source.
	ErrInvalidInput = errors.New("invalid search input")
)

// Outcome is a result of a nearby prime search.
type Outcome struct {

	// Prime is the found probable prime; nil if Err != nil
	Prime *big.Int

	// Offset is Prime - source (negative if the prime is below the source)
	Offset int64

	// Examined is the number of candidates passed to the primality tester
	Examined int

	// Err is ErrSearchExhausted, ErrInvalidInput or a context error
	// in case the search has been cancelled.
	Err error
}

func (o Outcome) Found() bool {
	return o.Err == nil && o.Prime != nil
}

// Exhausted tells whether the search ended without a result
// due to the search window or budget limits.
func (o Outcome) Exhausted() bool {
	return errors.Is(o.Err, ErrSearchExhausted)
}

func (o Outcome) resultLabel() string {
	switch {
	case o.Found():
		return "found"
	case o.Exhausted():
		return "exhausted"
	case errors.Is(o.Err, ErrInvalidInput):
		return "invalid"
	default:
		return "cancelled"
	}
}
