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
	"math/big"

	"nearprime/prime"
)

const (
	// sources shorter than this are searched without sieving
	sieveMinDigits = 200

	sieveMinLimit       = 1 << 16
	sievePrimesPerDigit = 1024
	maxSieveLimit       = 1 << 26
	sieveBlockSize      = 1 << 15
)

// windowSieve marks the distances d for which source+d or source-d
// is divisible by one of the small primes. The residues source mod p
// are computed only once, the distances are then crossed out block
// by block as the search moves outward.
type windowSieve struct {
	primes   []uint64
	residues []uint64

	// blockStart is the first distance of the current block
	// (-1 if no block has been filled yet)
	blockStart int64
	blockSize  int64
	upper      []bool
	lower      []bool
}

// hasSmallFactor reports whether source+offset is divisible by one
// of the sieving primes. Calls must come with non-decreasing |offset|.
func (ws *windowSieve) hasSmallFactor(offset int64) bool {
	dist := offset
	if dist < 0 {
		dist = -dist
	}
	if ws.blockStart < 0 || dist < ws.blockStart || dist >= ws.blockStart+ws.blockSize {
		ws.fill(dist)
	}
	if offset < 0 {
		return ws.lower[dist-ws.blockStart]
	}
	return ws.upper[dist-ws.blockStart]
}

func (ws *windowSieve) fill(start int64) {
	ws.blockStart = start
	clear(ws.upper)
	clear(ws.lower)
	size := uint64(ws.blockSize)
	for i, p := range ws.primes {
		r := ws.residues[i]
		s := uint64(start) % p
		// source + d = 0 (mod p) for d = -r
		for j := (2*p - r - s) % p; j < size; j += p {
			ws.upper[j] = true
		}
		// source - d = 0 (mod p) for d = r
		for j := (p + r - s) % p; j < size; j += p {
			ws.lower[j] = true
		}
	}
}

func newWindowSieve(primes, residues []uint64, blockSize int64) *windowSieve {
	return &windowSieve{
		primes:     primes,
		residues:   residues,
		blockStart: -1,
		blockSize:  blockSize,
		upper:      make([]bool, blockSize),
		lower:      make([]bool, blockSize),
	}
}

// sieveLimit returns the largest sieving prime worth using for
// a source with the specified number of digits (zero = no sieving).
func (s *Searcher) sieveLimit(digits int) int {
	if s.conf.SieveLimit <= 0 || digits < sieveMinDigits {
		return 0
	}
	return min(max(digits*sievePrimesPerDigit, sieveMinLimit), s.conf.SieveLimit)
}

// newSieve prepares a sieve for the search window around src
// or returns nil if the source is too short to benefit from it.
func (s *Searcher) newSieve(src Source, window int64) *windowSieve {
	limit := s.sieveLimit(src.Digits)
	if limit == 0 {
		return nil
	}
	s.smallPrimesOnce.Do(func() {
		s.smallPrimes = prime.NewSmallPrimeSet(s.conf.SieveLimit)
	})
	// no candidate may be one of the sieving primes itself
	lowest := new(big.Int).Sub(src.Value, big.NewInt(window))
	if lowest.Cmp(new(big.Int).SetUint64(s.smallPrimes.Largest())) <= 0 {
		return nil
	}
	primes, residues := s.smallPrimes.Residues(src.Value, uint64(limit))
	return newWindowSieve(primes, residues, sieveBlockSize)
}
