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

import "math/big"

var bigTwo = big.NewInt(2)

type candidate struct {
	value  *big.Int
	offset int64
}

// candidates generates the search order: the source itself first,
// then source+d, source-d for d = 1, 2, ..., maxDist. Values below 2
// and even values other than 2 are skipped. With a sieve attached,
// values with a small prime factor are skipped too.
type candidates struct {
	source    *big.Int
	maxDist   int64
	dist      int64
	started   bool
	lowerNext bool
	sieve     *windowSieve
}

func (c *candidates) next() (candidate, bool) {
	for {
		var offset int64
		if !c.started {
			c.started = true

		} else if c.lowerNext {
			c.lowerNext = false
			offset = -c.dist

		} else {
			if c.dist >= c.maxDist {
				return candidate{}, false
			}
			c.dist++
			c.lowerNext = true
			offset = c.dist
		}
		if c.sieve != nil && c.sieve.hasSmallFactor(offset) {
			continue
		}
		value := new(big.Int).Add(c.source, big.NewInt(offset))
		if isEligible(value) {
			return candidate{value: value, offset: offset}, true
		}
	}
}

func isEligible(v *big.Int) bool {
	if v.Cmp(bigTwo) < 0 {
		return false
	}
	return v.Bit(0) == 1 || v.Cmp(bigTwo) == 0
}

func newCandidates(source *big.Int, maxDist int64, sieve *windowSieve) *candidates {
	return &candidates{
		source:  source,
		maxDist: maxDist,
		sieve:   sieve,
	}
}
